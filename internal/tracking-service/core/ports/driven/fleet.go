package driven

import (
	"context"

	"bus-tracker/internal/tracking-service/core/domain/model"
)

// FleetDirectory answers read-only questions about buses, routes and the
// people assigned to them.
type FleetDirectory interface {
	VehicleForDriver(driverID string) (string, bool)
	RouteForStudent(studentID string) (string, bool)
	RoutesForVehicle(vehicleID string) []string
	VehiclesOnRoute(routeID string) []string
	Bus(vehicleID string) (model.Bus, bool)
}

type IFleetRepository interface {
	ListBuses(ctx context.Context) ([]model.Bus, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
}
