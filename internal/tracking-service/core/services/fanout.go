package services

import (
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

// Fanout pushes vehicle state changes to the rooms interested in them.
type Fanout struct {
	registry *Registry
	fleet    driven.FleetDirectory
	log      mylogger.Logger
	metrics  driven.IMetrics
}

func NewFanout(registry *Registry, fleet driven.FleetDirectory, log mylogger.Logger, metrics driven.IMetrics) *Fanout {
	return &Fanout{
		registry: registry,
		fleet:    fleet,
		log:      log,
		metrics:  metrics,
	}
}

// Publish delivers state to admins, to every driver but the vehicle's own,
// and to the students of each route the vehicle serves. Sessions whose queue
// is full are dropped and have to rejoin.
func (f *Fanout) Publish(state model.VehicleState) {
	ev, err := NewEvent(websocketdto.EventLocationUpdate, state)
	if err != nil {
		f.log.Action("publish").Error("failed to encode update", err, "vehicle_id", state.VehicleID)
		return
	}

	var slow []*Session
	send := func(roomName string, members []*Session) {
		for _, s := range members {
			if !s.deliver(state.VehicleID, state.Version, ev) {
				slow = append(slow, s)
				continue
			}
			f.metrics.Delivered(roomName)
		}
	}

	send(model.RoomAdmins, f.registry.RoomMembers(model.RoomAdmins))

	drivers := f.registry.RoomMembers(model.RoomDrivers)
	others := drivers[:0]
	for _, s := range drivers {
		if d, ok := s.Identity.(model.DriverIdentity); ok && d.VehicleID == state.VehicleID {
			continue
		}
		others = append(others, s)
	}
	send(model.RoomDrivers, others)

	for _, routeID := range f.fleet.RoutesForVehicle(state.VehicleID) {
		roomName := model.RouteRoom(routeID)
		send(roomName, f.registry.RoomMembers(roomName))
	}

	for _, s := range slow {
		if _, ok := f.registry.Leave(s.ID); ok {
			f.metrics.Evicted(s.Room)
			f.log.Action("evict_session").Warn("session queue full, dropping observer",
				"session_id", s.ID, "room", s.Room, "vehicle_id", state.VehicleID)
		}
	}
}
