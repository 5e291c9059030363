package services

import (
	"errors"
	"testing"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"
)

func newTestRegistry(store *StateStore) *Registry {
	return NewRegistry(store, 16, mylogger.NewNop(), nopMetrics{})
}

func TestJoinRejectsUnmappableIdentity(t *testing.T) {
	r := newTestRegistry(NewStateStore())
	tests := []struct {
		name string
		id   model.Identity
	}{
		{"nil identity", nil},
		{"student without route", model.StudentIdentity{UserID: "s1"}},
		{"driver without vehicle", model.DriverIdentity{UserID: "d1"}},
		{"admin without user", model.AdminIdentity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newOutbound(0)
			if _, err := r.Join(out, tt.id); !errors.Is(err, model.ErrAuthorization) {
				t.Errorf("Join err = %v, want ErrAuthorization", err)
			}
			if len(out.Events()) != 0 {
				t.Error("rejected session received events")
			}
		})
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after rejected joins", r.Count())
	}
}

func TestJoinAssignsRooms(t *testing.T) {
	r := newTestRegistry(NewStateStore())
	tests := []struct {
		id   model.Identity
		room string
	}{
		{model.AdminIdentity{UserID: "a1"}, model.RoomAdmins},
		{model.DriverIdentity{UserID: "d1", VehicleID: "v1"}, model.RoomDrivers},
		{model.StudentIdentity{UserID: "s1", RouteID: "r7"}, "route:r7"},
	}
	for _, tt := range tests {
		s, err := r.Join(newOutbound(0), tt.id)
		if err != nil {
			t.Fatalf("Join(%+v): %v", tt.id, err)
		}
		if s.Room != tt.room {
			t.Errorf("room = %q, want %q", s.Room, tt.room)
		}
		if r.RoomCount(tt.room) != 1 {
			t.Errorf("RoomCount(%q) = %d", tt.room, r.RoomCount(tt.room))
		}
	}
	if r.Count() != 3 {
		t.Errorf("Count = %d, want 3", r.Count())
	}
}

func TestObserverFirstEventIsSnapshot(t *testing.T) {
	store := NewStateStore()
	store.Apply("v2", model.Position{Latitude: 2}, at(2))
	store.Apply("v1", model.Position{Latitude: 1}, at(1))
	r := newTestRegistry(store)

	for _, id := range []model.Identity{
		model.AdminIdentity{UserID: "a1"},
		model.StudentIdentity{UserID: "s1", RouteID: "r1"},
	} {
		out := newOutbound(0)
		if _, err := r.Join(out, id); err != nil {
			t.Fatal(err)
		}
		evs := out.Events()
		if len(evs) != 1 {
			t.Fatalf("%T got %d events, want 1", id, len(evs))
		}
		snap := decodeSnapshot(t, evs[0])
		want := store.Snapshot()
		if len(snap) != len(want) {
			t.Fatalf("snapshot has %d vehicles, want %d", len(snap), len(want))
		}
		for i := range want {
			if snap[i].VehicleID != want[i].VehicleID || snap[i].Version != want[i].Version {
				t.Errorf("snapshot[%d] = %+v, want %+v", i, snap[i], want[i])
			}
		}
	}
}

func TestDriverGetsNoSnapshot(t *testing.T) {
	store := NewStateStore()
	store.Apply("v1", model.Position{}, at(1))
	r := newTestRegistry(store)

	out := newOutbound(0)
	if _, err := r.Join(out, model.DriverIdentity{UserID: "d1", VehicleID: "v1"}); err != nil {
		t.Fatal(err)
	}
	if n := len(out.Events()); n != 0 {
		t.Errorf("driver got %d events on join", n)
	}
}

func TestPrimeSkipsUpdatesCoveredBySnapshot(t *testing.T) {
	out := newOutbound(0)
	s := &Session{ID: "s", out: out, maxPending: 8}

	for v := uint64(1); v <= 3; v++ {
		ev, _ := NewEvent(websocketdto.EventLocationUpdate, model.VehicleState{VehicleID: "v1", Version: v})
		if !s.deliver("v1", v, ev) {
			t.Fatal("deliver before prime failed")
		}
	}
	other, _ := NewEvent(websocketdto.EventLocationUpdate, model.VehicleState{VehicleID: "v9", Version: 1})
	s.deliver("v9", 1, other)

	if len(out.Events()) != 0 {
		t.Fatal("events delivered before the snapshot")
	}

	snapshot := []model.VehicleState{{VehicleID: "v1", Version: 2}}
	snapEv, _ := NewEvent(websocketdto.EventSnapshot, websocketdto.Snapshot{Vehicles: snapshot})
	if !s.prime(snapshot, snapEv) {
		t.Fatal("prime failed")
	}

	evs := out.Events()
	if len(evs) != 3 {
		t.Fatalf("got %d events, want snapshot + 2 updates", len(evs))
	}
	if evs[0].Type != websocketdto.EventSnapshot {
		t.Errorf("first event = %s", evs[0].Type)
	}
	if st := decodeState(t, evs[1]); st.VehicleID != "v1" || st.Version != 3 {
		t.Errorf("second event = %+v, want v1 version 3", st)
	}
	if st := decodeState(t, evs[2]); st.VehicleID != "v9" {
		t.Errorf("third event = %+v, want v9", st)
	}
}

func TestPendingOverflowReportsSlow(t *testing.T) {
	s := &Session{ID: "s", out: newOutbound(0), maxPending: 2}
	ev, _ := NewEvent(websocketdto.EventLocationUpdate, model.VehicleState{})
	s.deliver("v1", 1, ev)
	s.deliver("v1", 2, ev)
	if s.deliver("v1", 3, ev) {
		t.Error("deliver past maxPending should report a slow session")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := newTestRegistry(NewStateStore())
	out := newOutbound(0)
	s, err := r.Join(out, model.AdminIdentity{UserID: "a1"})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := r.Leave(s.ID); !ok {
		t.Fatal("first Leave reported unknown session")
	}
	if _, ok := r.Leave(s.ID); ok {
		t.Error("second Leave reported a removal")
	}
	if !out.Closed() {
		t.Error("outbound not closed on leave")
	}
	if r.RoomCount(model.RoomAdmins) != 0 {
		t.Error("session still in room")
	}

	before := len(out.Events())
	ev, _ := NewEvent(websocketdto.EventLocationUpdate, model.VehicleState{VehicleID: "v1"})
	s.deliver("v1", 1, ev)
	if len(out.Events()) != before {
		t.Error("left session still receives deliveries")
	}
}

func TestCloseDropsAllSessions(t *testing.T) {
	r := newTestRegistry(NewStateStore())
	outs := []*fakeOutbound{newOutbound(0), newOutbound(0)}
	r.Join(outs[0], model.AdminIdentity{UserID: "a1"})
	r.Join(outs[1], model.DriverIdentity{UserID: "d1", VehicleID: "v1"})

	r.Close()

	for i, out := range outs {
		if !out.Closed() {
			t.Errorf("outbound %d not closed", i)
		}
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after Close", r.Count())
	}
	if _, err := r.Join(newOutbound(0), model.AdminIdentity{UserID: "a2"}); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Join after Close err = %v", err)
	}
}

func TestDriverConnected(t *testing.T) {
	r := newTestRegistry(NewStateStore())
	s, _ := r.Join(newOutbound(0), model.DriverIdentity{UserID: "d1", VehicleID: "v1"})
	if !r.DriverConnected("d1") {
		t.Error("d1 should be connected")
	}
	if r.DriverConnected("d2") {
		t.Error("d2 should not be connected")
	}
	r.Leave(s.ID)
	if r.DriverConnected("d1") {
		t.Error("d1 still connected after leave")
	}
}
