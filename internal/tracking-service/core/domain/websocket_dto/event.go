package websocketdto

import (
	"encoding/json"

	"bus-tracker/internal/tracking-service/core/domain/model"
)

// WebSocket event types
const (
	EventSnapshot       = "snapshot"
	EventLocationUpdate = "location_update"
	EventToggleLocation = "toggle_location"
	EventAck            = "ack"
	EventError          = "error"
	EventPing           = "ping"
	EventPong           = "pong"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Snapshot struct {
	Vehicles []model.VehicleState `json:"vehicles"`
}

type ToggleLocation struct {
	IsActive bool `json:"is_active"`
}

type Ack struct {
	For       string `json:"for"`
	VehicleID string `json:"vehicle_id"`
	Applied   bool   `json:"applied"`
	Active    bool   `json:"active"`
	Version   uint64 `json:"version"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
