package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
)

// Liveness takes vehicles offline when their driver vanished without
// toggling off. A driver that disconnects gets a grace period to come back;
// a vehicle that stops reporting is cleared by the periodic sweep.
type Liveness struct {
	cfg      *config.Livenessconfig
	toggle   *ToggleMachine
	store    *StateStore
	registry *Registry
	log      mylogger.Logger
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewLiveness(cfg *config.Livenessconfig, toggle *ToggleMachine, store *StateStore, registry *Registry, log mylogger.Logger) *Liveness {
	return &Liveness{
		cfg:      cfg,
		toggle:   toggle,
		store:    store,
		registry: registry,
		log:      log,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
}

// DriverLeft starts the grace timer for an actively tracking driver.
func (l *Liveness) DriverLeft(driverID string) {
	if l.toggle.State(driverID) != StateActive {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if t, ok := l.timers[driverID]; ok {
		t.Stop()
	}
	l.timers[driverID] = time.AfterFunc(l.cfg.DriverGrace, func() { l.expire(driverID) })
}

// DriverJoined cancels a pending grace timer.
func (l *Liveness) DriverJoined(driverID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[driverID]; ok {
		t.Stop()
		delete(l.timers, driverID)
	}
}

func (l *Liveness) expire(driverID string) {
	l.mu.Lock()
	delete(l.timers, driverID)
	stopped := l.stopped
	l.mu.Unlock()
	if stopped || l.registry.DriverConnected(driverID) {
		return
	}
	l.takeOffline(driverID, "driver_grace_expired")
}

func (l *Liveness) takeOffline(driverID, reason string) {
	log := l.log.Action("liveness_offline")
	st, err := l.toggle.ToggleOff(context.Background(), driverID)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidStateTransition) {
			log.Error("failed to take driver offline", err, "driver_id", driverID)
		}
		return
	}
	log.Info("vehicle taken offline", "driver_id", driverID, "vehicle_id", st.VehicleID, "reason", reason)
}

// Sweep clears every active vehicle silent for longer than StaleAfter and
// returns how many it cleared.
func (l *Liveness) Sweep() int {
	cutoff := l.now().Add(-l.cfg.StaleAfter)
	n := 0
	for _, st := range l.store.Stale(cutoff) {
		if l.offlineIfStale(st, cutoff) {
			n++
		}
	}
	return n
}

// offlineIfStale re-checks st under the vehicle lock before clearing it, so a
// sample that lands between listing and clearing wins.
func (l *Liveness) offlineIfStale(st model.VehicleState, cutoff time.Time) bool {
	log := l.log.Action("liveness_offline")
	if st.DriverID == "" {
		if _, ok := l.store.ClearIfStale(st.VehicleID, cutoff); !ok {
			return false
		}
		log.Info("vehicle cleared", "vehicle_id", st.VehicleID, "reason", "stale")
		return true
	}
	cleared, ok, err := l.toggle.ToggleOffIfStale(context.Background(), st.DriverID, cutoff)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidStateTransition) {
			log.Error("failed to take driver offline", err, "driver_id", st.DriverID)
		}
		return false
	}
	if !ok {
		log.Debug("vehicle reported since sweep started", "driver_id", st.DriverID, "vehicle_id", st.VehicleID)
		return false
	}
	log.Info("vehicle taken offline", "driver_id", st.DriverID, "vehicle_id", cleared.VehicleID, "reason", "stale")
	return true
}
