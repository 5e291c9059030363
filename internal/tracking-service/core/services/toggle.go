package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/looplab/fsm"
)

const (
	StateInactive = "inactive"
	StateActive   = "active"

	EventToggleOn  = "toggle_on"
	EventToggleOff = "toggle_off"
)

func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

type trackingMachine struct {
	mu        sync.Mutex
	fsm       *fsm.FSM
	vehicleID string
	last      model.VehicleState
}

// ToggleMachine keeps one tracking state machine per driver.
type ToggleMachine struct {
	store   *StateStore
	log     mylogger.Logger
	metrics driven.IMetrics

	mu       sync.Mutex
	machines map[string]*trackingMachine
}

func NewToggleMachine(store *StateStore, log mylogger.Logger, metrics driven.IMetrics) *ToggleMachine {
	return &ToggleMachine{
		store:    store,
		log:      log,
		metrics:  metrics,
		machines: make(map[string]*trackingMachine),
	}
}

func (t *ToggleMachine) machine(driverID string) *trackingMachine {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.machines[driverID]
	if ok {
		return m
	}

	m = &trackingMachine{}
	m.fsm = fsm.NewFSM(
		StateInactive,
		fsm.Events{
			{Name: EventToggleOn, Src: []string{StateInactive}, Dst: StateActive},
			{Name: EventToggleOff, Src: []string{StateActive}, Dst: StateInactive},
		},
		fsm.Callbacks{
			"enter_" + StateActive: wrapEvent(func(_ context.Context, e *fsm.Event) error {
				if len(e.Args) == 0 {
					return fmt.Errorf("toggle on without vehicle: %w", model.ErrAuthorization)
				}
				vehicleID, _ := e.Args[0].(string)
				m.vehicleID = vehicleID
				m.last = t.store.Activate(vehicleID, driverID)
				return nil
			}),
			"enter_" + StateInactive: wrapEvent(func(_ context.Context, e *fsm.Event) error {
				if len(e.Args) > 0 {
					if cleared, ok := e.Args[0].(model.VehicleState); ok {
						m.last = cleared
						return nil
					}
				}
				m.last = t.store.Clear(m.vehicleID)
				return nil
			}),
		},
	)
	t.machines[driverID] = m
	return m
}

// ToggleOn starts tracking vehicleID for driverID. The vehicle becomes active
// without a position; the next sample supplies one.
func (t *ToggleMachine) ToggleOn(ctx context.Context, driverID, vehicleID string) (model.VehicleState, error) {
	if driverID == "" || vehicleID == "" {
		return model.VehicleState{}, fmt.Errorf("toggle on for driver %q vehicle %q: %w", driverID, vehicleID, model.ErrAuthorization)
	}
	m := t.machine(driverID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, EventToggleOn, vehicleID); err != nil {
		return model.VehicleState{}, t.transitionError(driverID, EventToggleOn, err)
	}
	t.metrics.TrackingToggled(StateActive)
	t.log.Action("tracking_on").Info("tracking enabled", "driver_id", driverID, "vehicle_id", vehicleID)
	return m.last, nil
}

// ToggleOff stops tracking and clears the vehicle's live state. Observers
// get the cleared state right away.
func (t *ToggleMachine) ToggleOff(ctx context.Context, driverID string) (model.VehicleState, error) {
	m := t.machine(driverID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, EventToggleOff); err != nil {
		return model.VehicleState{}, t.transitionError(driverID, EventToggleOff, err)
	}
	t.metrics.TrackingToggled(StateInactive)
	t.log.Action("tracking_off").Info("tracking disabled", "driver_id", driverID, "vehicle_id", m.vehicleID)
	return m.last, nil
}

// ToggleOffIfStale is ToggleOff for the staleness sweep. It does nothing and
// reports false when the vehicle reported at or after cutoff.
func (t *ToggleMachine) ToggleOffIfStale(ctx context.Context, driverID string, cutoff time.Time) (model.VehicleState, bool, error) {
	m := t.machine(driverID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm.Current() != StateActive {
		return model.VehicleState{}, false, fmt.Errorf("driver %s %s: %w", driverID, EventToggleOff, model.ErrInvalidStateTransition)
	}
	cleared, ok := t.store.ClearIfStale(m.vehicleID, cutoff)
	if !ok {
		return cleared, false, nil
	}
	if err := m.fsm.Event(ctx, EventToggleOff, cleared); err != nil {
		return model.VehicleState{}, false, t.transitionError(driverID, EventToggleOff, err)
	}
	t.metrics.TrackingToggled(StateInactive)
	t.log.Action("tracking_off").Info("tracking disabled", "driver_id", driverID, "vehicle_id", m.vehicleID, "reason", "stale")
	return m.last, true, nil
}

// State returns the driver's current tracking state.
func (t *ToggleMachine) State(driverID string) string {
	t.mu.Lock()
	m, ok := t.machines[driverID]
	t.mu.Unlock()
	if !ok {
		return StateInactive
	}
	return m.fsm.Current()
}

func (t *ToggleMachine) transitionError(driverID, event string, err error) error {
	var invalid fsm.InvalidEventError
	var none fsm.NoTransitionError
	if errors.As(err, &invalid) || errors.As(err, &none) {
		return fmt.Errorf("driver %s %s: %w", driverID, event, model.ErrInvalidStateTransition)
	}
	return fmt.Errorf("driver %s %s: %w", driverID, event, err)
}
