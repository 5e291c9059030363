package dto

import (
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"
)

// LocationSample is a driver position report as received over the wire.
// Coordinates are pointers so a missing field is told apart from zero.
type LocationSample struct {
	Latitude   *float64   `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64   `json:"longitude" validate:"required,gte=-180,lte=180"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

func NewLocationSample(lat, lon float64, recordedAt *time.Time) LocationSample {
	return LocationSample{Latitude: &lat, Longitude: &lon, RecordedAt: recordedAt}
}

type IngestResult struct {
	State   model.VehicleState `json:"state"`
	Applied bool               `json:"applied"`
}

type HistoryResponse struct {
	VehicleID string                 `json:"vehicle_id"`
	From      time.Time              `json:"from"`
	To        time.Time              `json:"to"`
	Records   []model.LocationRecord `json:"records"`
}

type RouteVehiclesResponse struct {
	RouteID  string               `json:"route_id"`
	Vehicles []model.VehicleState `json:"vehicles"`
}
