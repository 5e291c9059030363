package model

import "time"

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VehicleState is the last known state of one bus. Position and LastUpdated
// are either both set or both nil, and both are nil whenever Active is false.
type VehicleState struct {
	VehicleID   string     `json:"vehicle_id"`
	DriverID    string     `json:"driver_id,omitempty"`
	Position    *Position  `json:"position"`
	LastUpdated *time.Time `json:"last_updated"`
	Active      bool       `json:"active"`
	Version     uint64     `json:"version"`
}

// Copy returns a value that shares no pointers with s.
func (s VehicleState) Copy() VehicleState {
	out := s
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}
