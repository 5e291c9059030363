package model

import "time"

// LocationRecord is one accepted sample in the history trail. ID keeps
// repeated writes of the same sample from producing a second row.
type LocationRecord struct {
	ID         string    `json:"record_id"`
	VehicleID  string    `json:"bus_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}
