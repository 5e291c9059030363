package driver

import (
	"context"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

type ITrackingService interface {
	Identify(ctx context.Context, p model.Principal) (model.Identity, error)
	Join(out driven.Outbound, id model.Identity) (model.SessionInfo, error)
	Disconnect(sessionID string)
	Ingest(ctx context.Context, sessionID string, sample dto.LocationSample) (dto.IngestResult, error)
	IngestDriver(ctx context.Context, id model.DriverIdentity, sample dto.LocationSample) (dto.IngestResult, error)
	Reply(sessionID string, eventType string, payload any) error
	SetTracking(ctx context.Context, id model.DriverIdentity, active bool) (model.VehicleState, error)
	CanView(id model.Identity, vehicleID string) bool
	CurrentLocation(vehicleID string) (model.VehicleState, error)
	History(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error)
	Snapshot() []model.VehicleState
	RouteVehicles(routeID string) []model.VehicleState
}
