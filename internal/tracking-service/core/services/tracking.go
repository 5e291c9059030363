package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
	"bus-tracker/internal/tracking-service/core/ports/driver"
)

var _ driver.ITrackingService = (*TrackingService)(nil)

// TrackingService is the entry point the transports talk to.
type TrackingService struct {
	registry *Registry
	store    *StateStore
	history  *HistoryRecorder
	toggle   *ToggleMachine
	liveness *Liveness
	ingestor *Ingestor
	fleet    driven.FleetDirectory
	log      mylogger.Logger
}

// Identify resolves a token principal into a room-ready identity using the
// fleet records.
func (t *TrackingService) Identify(ctx context.Context, p model.Principal) (model.Identity, error) {
	switch p.Role {
	case model.RoleAdmin:
		return model.AdminIdentity{UserID: p.UserID}, nil
	case model.RoleDriver:
		vehicleID, ok := t.fleet.VehicleForDriver(p.UserID)
		if !ok {
			return nil, fmt.Errorf("driver %s has no bus assigned: %w", p.UserID, model.ErrAuthorization)
		}
		return model.DriverIdentity{UserID: p.UserID, VehicleID: vehicleID}, nil
	case model.RoleStudent:
		routeID, ok := t.fleet.RouteForStudent(p.UserID)
		if !ok {
			return nil, fmt.Errorf("student %s has no route: %w", p.UserID, model.ErrAuthorization)
		}
		return model.StudentIdentity{UserID: p.UserID, RouteID: routeID}, nil
	}
	return nil, fmt.Errorf("role %q: %w", p.Role, model.ErrAuthorization)
}

func (t *TrackingService) Join(out driven.Outbound, id model.Identity) (model.SessionInfo, error) {
	s, err := t.registry.Join(out, id)
	if err != nil {
		return model.SessionInfo{}, err
	}
	if d, ok := id.(model.DriverIdentity); ok {
		t.liveness.DriverJoined(d.UserID)
	}
	return s.Info(), nil
}

// Disconnect removes the session. A tracking driver that disconnects gets a
// grace period before the vehicle is taken offline.
func (t *TrackingService) Disconnect(sessionID string) {
	s, ok := t.registry.Leave(sessionID)
	if !ok {
		return
	}
	if d, ok := s.Identity.(model.DriverIdentity); ok && !t.registry.DriverConnected(d.UserID) {
		t.liveness.DriverLeft(d.UserID)
	}
}

func (t *TrackingService) Ingest(ctx context.Context, sessionID string, sample dto.LocationSample) (dto.IngestResult, error) {
	return t.ingestor.Ingest(ctx, sessionID, sample)
}

// IngestDriver applies a sample sent outside a socket session, as the HTTP
// update endpoint does.
func (t *TrackingService) IngestDriver(ctx context.Context, id model.DriverIdentity, sample dto.LocationSample) (dto.IngestResult, error) {
	return t.ingestor.IngestFor(ctx, id, sample)
}

// Reply sends an event to one session only, bypassing the broadcast path.
func (t *TrackingService) Reply(sessionID string, eventType string, payload any) error {
	s, ok := t.registry.Get(sessionID)
	if !ok {
		return model.ErrSessionNotFound
	}
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	if !s.send(ev) {
		t.registry.Leave(sessionID)
		return ErrSlowConsumer
	}
	return nil
}

func (t *TrackingService) SetTracking(ctx context.Context, id model.DriverIdentity, active bool) (model.VehicleState, error) {
	if active {
		return t.toggle.ToggleOn(ctx, id.UserID, id.VehicleID)
	}
	return t.toggle.ToggleOff(ctx, id.UserID)
}

func (t *TrackingService) TrackingState(driverID string) string {
	return t.toggle.State(driverID)
}

// CurrentLocation returns the live state of a vehicle. Buses known to the
// fleet but never seen report as inactive.
func (t *TrackingService) CurrentLocation(vehicleID string) (model.VehicleState, error) {
	if st, ok := t.store.Get(vehicleID); ok {
		return st, nil
	}
	if _, ok := t.fleet.Bus(vehicleID); ok {
		return model.VehicleState{VehicleID: vehicleID}, nil
	}
	return model.VehicleState{}, fmt.Errorf("vehicle %s: %w", vehicleID, model.ErrVehicleNotFound)
}

// CanView reports whether id may look at vehicleID: admins see every bus,
// drivers their own, students the buses serving their route.
func (t *TrackingService) CanView(id model.Identity, vehicleID string) bool {
	switch v := id.(type) {
	case model.AdminIdentity:
		return true
	case model.DriverIdentity:
		return v.VehicleID == vehicleID
	case model.StudentIdentity:
		for _, r := range t.fleet.RoutesForVehicle(vehicleID) {
			if r == v.RouteID {
				return true
			}
		}
	}
	return false
}

func (t *TrackingService) History(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error) {
	if _, err := t.CurrentLocation(vehicleID); err != nil {
		return nil, err
	}
	return t.history.Range(ctx, vehicleID, from, to)
}

func (t *TrackingService) Snapshot() []model.VehicleState {
	return t.store.Snapshot()
}

// RouteVehicles returns the state of every bus serving routeID.
func (t *TrackingService) RouteVehicles(routeID string) []model.VehicleState {
	ids := t.fleet.VehiclesOnRoute(routeID)
	out := make([]model.VehicleState, 0, len(ids))
	for _, id := range ids {
		st, ok := t.store.Get(id)
		if !ok {
			st = model.VehicleState{VehicleID: id}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (t *TrackingService) SessionCount() int {
	return t.registry.Count()
}

// Shutdown closes every session and drains the history queue.
func (t *TrackingService) Shutdown(ctx context.Context) error {
	t.liveness.Stop()
	t.registry.Close()
	if err := t.history.Stop(ctx); err != nil {
		t.log.Action("history_drain_failed").Error("history queue not drained", err)
		return errors.Join(model.ErrPersistence, err)
	}
	return nil
}
