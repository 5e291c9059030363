package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
)

type fakeRepo struct {
	buses    []model.Bus
	students []model.Student
	err      error
}

func (f *fakeRepo) ListBuses(ctx context.Context) ([]model.Bus, error) { return f.buses, f.err }
func (f *fakeRepo) ListStudents(ctx context.Context) ([]model.Student, error) {
	return f.students, f.err
}

func seeded() *fakeRepo {
	return &fakeRepo{
		buses: []model.Bus{
			{BusID: "b2", RouteID: "r1", DriverID: "d2"},
			{BusID: "b1", RouteID: "r1", DriverID: "d1"},
			{BusID: "b3", RouteID: "r2"},
			{BusID: "b4"},
		},
		students: []model.Student{
			{StudentID: "s1", RouteID: "r1"},
			{StudentID: "s2"},
		},
	}
}

func TestDirectoryLookups(t *testing.T) {
	d := NewDirectory(seeded(), mylogger.NewNop())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if v, ok := d.VehicleForDriver("d1"); !ok || v != "b1" {
		t.Errorf("VehicleForDriver(d1) = %q, %v", v, ok)
	}
	if _, ok := d.VehicleForDriver("d9"); ok {
		t.Error("unknown driver resolved")
	}
	if r, ok := d.RouteForStudent("s1"); !ok || r != "r1" {
		t.Errorf("RouteForStudent(s1) = %q, %v", r, ok)
	}
	if _, ok := d.RouteForStudent("s2"); ok {
		t.Error("student without route resolved")
	}
	if got := d.RoutesForVehicle("b3"); len(got) != 1 || got[0] != "r2" {
		t.Errorf("RoutesForVehicle(b3) = %v", got)
	}
	if got := d.RoutesForVehicle("b4"); len(got) != 0 {
		t.Errorf("RoutesForVehicle(b4) = %v", got)
	}
	if got := d.VehiclesOnRoute("r1"); len(got) != 2 || got[0] != "b1" || got[1] != "b2" {
		t.Errorf("VehiclesOnRoute(r1) = %v", got)
	}
	if _, ok := d.Bus("b4"); !ok {
		t.Error("bus without route missing")
	}
}

func TestDirectoryRefreshFailureKeepsRecords(t *testing.T) {
	repo := seeded()
	d := NewDirectory(repo, mylogger.NewNop())
	d.Refresh(context.Background())

	repo.err = errors.New("db down")
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if _, ok := d.VehicleForDriver("d1"); !ok {
		t.Error("records lost after a failed refresh")
	}
}

func TestDirectoryReplaceReassignsDriver(t *testing.T) {
	d := NewDirectory(seeded(), mylogger.NewNop())
	d.Refresh(context.Background())

	d.Replace([]model.Bus{{BusID: "b3", RouteID: "r2", DriverID: "d1"}}, nil)
	if v, _ := d.VehicleForDriver("d1"); v != "b3" {
		t.Errorf("VehicleForDriver(d1) = %q after reassignment", v)
	}
	if _, ok := d.Bus("b1"); ok {
		t.Error("removed bus still present")
	}
}

func TestDirectoryRunStopsWithContext(t *testing.T) {
	d := NewDirectory(seeded(), mylogger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := d.VehicleForDriver("d1"); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := d.VehicleForDriver("d1"); !ok {
		t.Error("Run never refreshed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
