package services

import (
	"context"
	"errors"
	"testing"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
)

func TestToggleTransitions(t *testing.T) {
	store := NewStateStore()
	tm := NewToggleMachine(store, mylogger.NewNop(), nopMetrics{})
	ctx := context.Background()

	if got := tm.State("d1"); got != StateInactive {
		t.Fatalf("initial state = %s", got)
	}

	st, err := tm.ToggleOn(ctx, "d1", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Active || st.Position != nil || st.DriverID != "d1" {
		t.Errorf("toggle on state = %+v", st)
	}

	if _, err := tm.ToggleOn(ctx, "d1", "v1"); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Errorf("second toggle on err = %v", err)
	}
	if tm.State("d1") != StateActive {
		t.Error("redundant toggle on changed state")
	}

	store.ApplyActive("v1", model.Position{Latitude: 5}, at(1))
	st, err = tm.ToggleOff(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Active || st.Position != nil || st.LastUpdated != nil {
		t.Errorf("toggle off state = %+v", st)
	}

	if _, err := tm.ToggleOff(ctx, "d1"); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Errorf("second toggle off err = %v", err)
	}
	if tm.State("d1") != StateInactive {
		t.Error("redundant toggle off changed state")
	}

	if _, err := tm.ToggleOn(ctx, "d1", "v1"); err != nil {
		t.Errorf("toggle on after off: %v", err)
	}
}

func TestToggleOffForUnknownDriver(t *testing.T) {
	tm := NewToggleMachine(NewStateStore(), mylogger.NewNop(), nopMetrics{})
	if _, err := tm.ToggleOff(context.Background(), "nobody"); !errors.Is(err, model.ErrInvalidStateTransition) {
		t.Errorf("err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestToggleOnRequiresVehicle(t *testing.T) {
	tm := NewToggleMachine(NewStateStore(), mylogger.NewNop(), nopMetrics{})
	if _, err := tm.ToggleOn(context.Background(), "d1", ""); !errors.Is(err, model.ErrAuthorization) {
		t.Errorf("err = %v, want ErrAuthorization", err)
	}
	if tm.State("d1") != StateInactive {
		t.Error("rejected toggle changed state")
	}
}

func TestToggleOffIsVisibleToObservers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := model.DriverIdentity{UserID: "d1", VehicleID: "v1"}
	info, _ := h.join(t, d)
	h.track.SetTracking(ctx, d, true)
	h.track.Ingest(ctx, info.ID, sampleAt(10, 20, at(1)))

	_, admin := h.join(t, model.AdminIdentity{UserID: "a1"})
	_, student := h.join(t, model.StudentIdentity{UserID: "s1", RouteID: "r1"})

	if _, err := h.track.SetTracking(ctx, d, false); err != nil {
		t.Fatal(err)
	}

	for name, out := range map[string]*fakeOutbound{"admin": admin, "student": student} {
		ups := out.updates(t)
		if len(ups) != 1 {
			t.Fatalf("%s got %d updates, want the cleared state", name, len(ups))
		}
		if ups[0].VehicleID != "v1" || ups[0].Active || ups[0].Position != nil || ups[0].LastUpdated != nil {
			t.Errorf("%s saw %+v", name, ups[0])
		}
	}

	live, _ := h.track.CurrentLocation("v1")
	if live.Active || live.Position != nil {
		t.Errorf("live state after toggle off = %+v", live)
	}
}
