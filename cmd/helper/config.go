package main

import "time"

// Configuration constants for rate limiting
const (
	DefaultUpdateInterval = 3 * time.Second
	HTTPRequestDelay      = 200 * time.Millisecond
	InitialConnectDelay   = 1 * time.Second
)

// API endpoints
const (
	DefaultBaseURL = "http://localhost:3001"
	TogglePath     = "/driver/toggle-location"
	WSPath         = "/ws"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Config struct {
	BaseURL        string
	DriverID       string
	Token          string
	Secret         string
	Start          Location
	SpeedMps       float64
	HeadingDegrees float64
	UpdateInterval time.Duration
	Samples        int
}
