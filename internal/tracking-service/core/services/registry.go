package services

import (
	"errors"
	"fmt"
	"sync"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/google/uuid"
)

var (
	ErrRegistryClosed = errors.New("session registry closed")
	ErrSlowConsumer   = errors.New("session could not keep up")
)

type pendingEvent struct {
	vehicleID string
	version   uint64
	ev        websocketdto.Event
}

// Session is one live connection. Until the snapshot is delivered the session
// is not primed and updates addressed to it are held back in pending.
type Session struct {
	ID       string
	Role     model.Role
	Identity model.Identity
	Room     string

	out        driven.Outbound
	maxPending int

	mu      sync.Mutex
	primed  bool
	closed  bool
	pending []pendingEvent
}

func (s *Session) Info() model.SessionInfo {
	return model.SessionInfo{ID: s.ID, Role: s.Role, Identity: s.Identity, Room: s.Room}
}

// deliver hands an update to the session. It returns false only when the
// session's queue overflowed.
func (s *Session) deliver(vehicleID string, version uint64, ev websocketdto.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if !s.primed {
		if len(s.pending) >= s.maxPending {
			return false
		}
		s.pending = append(s.pending, pendingEvent{vehicleID: vehicleID, version: version, ev: ev})
		return true
	}
	return s.out.Send(ev)
}

// send bypasses the delivery gate; used for replies to the session's own
// requests.
func (s *Session) send(ev websocketdto.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.out.Send(ev)
}

// prime sends the snapshot and then whatever was held back that the snapshot
// does not already cover.
func (s *Session) prime(snapshot []model.VehicleState, ev websocketdto.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if !s.out.Send(ev) {
		return false
	}
	seen := make(map[string]uint64, len(snapshot))
	for _, st := range snapshot {
		seen[st.VehicleID] = st.Version
	}
	for _, p := range s.pending {
		if p.version <= seen[p.vehicleID] {
			continue
		}
		if !s.out.Send(p.ev) {
			return false
		}
	}
	s.pending = nil
	s.primed = true
	return true
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	s.out.Close()
}

type room struct {
	mu      sync.RWMutex
	members map[string]*Session
}

// Registry tracks live sessions and the room each one belongs to.
type Registry struct {
	store      *StateStore
	log        mylogger.Logger
	metrics    driven.IMetrics
	maxPending int

	mu       sync.RWMutex
	closed   bool
	sessions map[string]*Session
	rooms    map[string]*room
}

func NewRegistry(store *StateStore, maxPending int, log mylogger.Logger, metrics driven.IMetrics) *Registry {
	return &Registry{
		store:      store,
		log:        log,
		metrics:    metrics,
		maxPending: maxPending,
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*room),
	}
}

func roomFor(id model.Identity) (model.Role, string, error) {
	switch v := id.(type) {
	case model.AdminIdentity:
		if v.UserID == "" {
			return "", "", fmt.Errorf("admin without user id: %w", model.ErrAuthorization)
		}
		return model.RoleAdmin, model.RoomAdmins, nil
	case model.DriverIdentity:
		if v.UserID == "" || v.VehicleID == "" {
			return "", "", fmt.Errorf("driver %q has no vehicle: %w", v.UserID, model.ErrAuthorization)
		}
		return model.RoleDriver, model.RoomDrivers, nil
	case model.StudentIdentity:
		if v.UserID == "" || v.RouteID == "" {
			return "", "", fmt.Errorf("student %q has no route: %w", v.UserID, model.ErrAuthorization)
		}
		return model.RoleStudent, model.RouteRoom(v.RouteID), nil
	}
	return "", "", fmt.Errorf("unknown identity %T: %w", id, model.ErrAuthorization)
}

// Join registers a session for identity. Admin and student sessions get the
// current snapshot as their first event.
func (r *Registry) Join(out driven.Outbound, id model.Identity) (*Session, error) {
	role, roomName, err := roomFor(id)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         uuid.NewString(),
		Role:       role,
		Identity:   id,
		Room:       roomName,
		out:        out,
		maxPending: r.maxPending,
		primed:     role == model.RoleDriver,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.sessions[s.ID] = s
	rm, ok := r.rooms[roomName]
	if !ok {
		rm = &room{members: make(map[string]*Session)}
		r.rooms[roomName] = rm
	}
	rm.mu.Lock()
	rm.members[s.ID] = s
	rm.mu.Unlock()
	r.mu.Unlock()

	r.metrics.SessionOpened(string(role))
	r.log.Action("session_joined").Debug("session joined", "session_id", s.ID, "room", roomName, "user_id", id.Subject())

	if s.primed {
		return s, nil
	}

	snapshot := r.store.Snapshot()
	ev, err := NewEvent(websocketdto.EventSnapshot, websocketdto.Snapshot{Vehicles: snapshot})
	if err != nil {
		r.Leave(s.ID)
		return nil, err
	}
	if !s.prime(snapshot, ev) {
		r.Leave(s.ID)
		return nil, ErrSlowConsumer
	}
	return s, nil
}

// Leave removes the session and closes its outbound queue. Unknown or already
// removed sessions are ignored.
func (r *Registry) Leave(sessionID string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.sessions, sessionID)
	if rm, ok := r.rooms[s.Room]; ok {
		rm.mu.Lock()
		delete(rm.members, sessionID)
		rm.mu.Unlock()
	}
	r.mu.Unlock()

	s.close()
	r.metrics.SessionClosed(string(s.Role))
	r.log.Action("session_left").Debug("session left", "session_id", s.ID, "room", s.Room)
	return s, true
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// RoomMembers copies the current members of name.
func (r *Registry) RoomMembers(name string) []*Session {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Session, 0, len(rm.members))
	for _, s := range rm.members {
		out = append(out, s)
	}
	return out
}

// DriverConnected reports whether driverID has at least one live session.
func (r *Registry) DriverConnected(driverID string) bool {
	for _, s := range r.RoomMembers(model.RoomDrivers) {
		if s.Identity.Subject() == driverID {
			return true
		}
	}
	return false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) RoomCount(name string) int {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

// Close drops every session. Joins after Close fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	for _, rm := range r.rooms {
		rm.mu.Lock()
		rm.members = make(map[string]*Session)
		rm.mu.Unlock()
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
		r.metrics.SessionClosed(string(s.Role))
	}
	r.log.Action("registry_closed").Info("all sessions closed", "count", len(sessions))
}
