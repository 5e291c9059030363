package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"
)

type vehicleEntry struct {
	mu          sync.Mutex
	state       model.VehicleState
	activatedAt time.Time
}

// StateStore holds the last known state of every vehicle seen since start.
// The entry map lock is only taken for lookup and insert; updates serialize
// on the per-vehicle mutex.
type StateStore struct {
	mu       sync.RWMutex
	entries  map[string]*vehicleEntry
	onChange func(model.VehicleState)
	now      func() time.Time
}

func NewStateStore() *StateStore {
	return &StateStore{
		entries:  make(map[string]*vehicleEntry),
		onChange: func(model.VehicleState) {},
		now:      time.Now,
	}
}

// OnChange installs the hook called for every change of live state. It runs
// with the vehicle lock held, so it sees changes of one vehicle in apply
// order. Must be set before the store is shared.
func (s *StateStore) OnChange(fn func(model.VehicleState)) {
	if fn == nil {
		fn = func(model.VehicleState) {}
	}
	s.onChange = fn
}

func (s *StateStore) lookup(vehicleID string) *vehicleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[vehicleID]
}

func (s *StateStore) entry(vehicleID string) *vehicleEntry {
	if e := s.lookup(vehicleID); e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vehicleID]
	if !ok {
		e = &vehicleEntry{state: model.VehicleState{VehicleID: vehicleID}}
		s.entries[vehicleID] = e
	}
	return e
}

// Snapshot returns every vehicle ordered by VehicleID.
func (s *StateStore) Snapshot() []model.VehicleState {
	s.mu.RLock()
	entries := make([]*vehicleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]model.VehicleState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state.Copy())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

func (s *StateStore) Get(vehicleID string) (model.VehicleState, bool) {
	e := s.lookup(vehicleID)
	if e == nil {
		return model.VehicleState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Copy(), true
}

// Apply records a position for the vehicle, creating and activating the entry
// if needed. A timestamp older than the stored one leaves live state alone.
func (s *StateStore) Apply(vehicleID string, pos model.Position, ts time.Time) model.VehicleState {
	e := s.entry(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()
	st, _ := s.advance(e, pos, ts)
	return st
}

// ApplyActive is Apply for vehicles that have tracking enabled. The activity
// check and the update happen under the same lock.
func (s *StateStore) ApplyActive(vehicleID string, pos model.Position, ts time.Time) (model.VehicleState, bool, error) {
	e := s.lookup(vehicleID)
	if e == nil {
		return model.VehicleState{}, false, fmt.Errorf("vehicle %s: %w", vehicleID, model.ErrNotTracking)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active {
		return e.state.Copy(), false, fmt.Errorf("vehicle %s: %w", vehicleID, model.ErrNotTracking)
	}
	st, applied := s.advance(e, pos, ts)
	return st, applied, nil
}

func (s *StateStore) advance(e *vehicleEntry, pos model.Position, ts time.Time) (model.VehicleState, bool) {
	if e.state.LastUpdated != nil && ts.Before(*e.state.LastUpdated) {
		return e.state.Copy(), false
	}
	p := pos
	t := ts
	e.state.Position = &p
	e.state.LastUpdated = &t
	e.state.Active = true
	e.state.Version++

	st := e.state.Copy()
	s.onChange(st)
	return st, true
}

// Activate marks the vehicle as tracked by driverID. No position is set and
// observers are not notified until the first sample arrives.
func (s *StateStore) Activate(vehicleID, driverID string) model.VehicleState {
	e := s.entry(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Active = true
	e.state.DriverID = driverID
	e.state.Position = nil
	e.state.LastUpdated = nil
	e.state.Version++
	e.activatedAt = s.now()
	return e.state.Copy()
}

// Clear takes the vehicle offline. The entry stays in the store.
func (s *StateStore) Clear(vehicleID string) model.VehicleState {
	e := s.entry(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.clear(e)
}

// ClearIfStale takes the vehicle offline only if it is still active and has
// not reported since cutoff. The check and the clear share the vehicle lock,
// so a sample applied after Stale was read keeps the vehicle live.
func (s *StateStore) ClearIfStale(vehicleID string, cutoff time.Time) (model.VehicleState, bool) {
	e := s.lookup(vehicleID)
	if e == nil {
		return model.VehicleState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stale(cutoff) {
		return e.state.Copy(), false
	}
	return s.clear(e), true
}

func (s *StateStore) clear(e *vehicleEntry) model.VehicleState {
	e.state.Active = false
	e.state.Position = nil
	e.state.LastUpdated = nil
	e.state.Version++
	e.activatedAt = time.Time{}

	st := e.state.Copy()
	s.onChange(st)
	return st
}

// Stale lists active vehicles that have not reported since cutoff. A vehicle
// without any sample is measured from its activation.
func (s *StateStore) Stale(cutoff time.Time) []model.VehicleState {
	s.mu.RLock()
	entries := make([]*vehicleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []model.VehicleState
	for _, e := range entries {
		e.mu.Lock()
		if e.stale(cutoff) {
			out = append(out, e.state.Copy())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// stale must be called with e.mu held.
func (e *vehicleEntry) stale(cutoff time.Time) bool {
	if !e.state.Active {
		return false
	}
	ref := e.activatedAt
	if e.state.LastUpdated != nil {
		ref = *e.state.LastUpdated
	}
	return ref.Before(cutoff)
}
