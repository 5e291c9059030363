package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

var _ driven.FleetDirectory = (*Directory)(nil)

type index struct {
	buses         map[string]model.Bus
	driverVehicle map[string]string
	studentRoute  map[string]string
	routeVehicles map[string][]string
}

func buildIndex(buses []model.Bus, students []model.Student) *index {
	idx := &index{
		buses:         make(map[string]model.Bus, len(buses)),
		driverVehicle: make(map[string]string),
		studentRoute:  make(map[string]string, len(students)),
		routeVehicles: make(map[string][]string),
	}
	for _, b := range buses {
		idx.buses[b.BusID] = b
		if b.DriverID != "" {
			idx.driverVehicle[b.DriverID] = b.BusID
		}
		if b.RouteID != "" {
			idx.routeVehicles[b.RouteID] = append(idx.routeVehicles[b.RouteID], b.BusID)
		}
	}
	for _, ids := range idx.routeVehicles {
		sort.Strings(ids)
	}
	for _, s := range students {
		if s.RouteID != "" {
			idx.studentRoute[s.StudentID] = s.RouteID
		}
	}
	return idx
}

// Directory is an in-memory copy of the fleet records, swapped wholesale on
// every refresh.
type Directory struct {
	repo driven.IFleetRepository
	log  mylogger.Logger

	mu  sync.RWMutex
	idx *index
}

func NewDirectory(repo driven.IFleetRepository, log mylogger.Logger) *Directory {
	return &Directory{
		repo: repo,
		log:  log,
		idx:  buildIndex(nil, nil),
	}
}

// Refresh reloads buses and students from the repository.
func (d *Directory) Refresh(ctx context.Context) error {
	buses, err := d.repo.ListBuses(ctx)
	if err != nil {
		return fmt.Errorf("refresh fleet: %w", err)
	}
	students, err := d.repo.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("refresh fleet: %w", err)
	}
	d.Replace(buses, students)
	d.log.Action("fleet_refreshed").Debug("fleet records loaded", "buses", len(buses), "students", len(students))
	return nil
}

// Replace swaps in a new set of records.
func (d *Directory) Replace(buses []model.Bus, students []model.Student) {
	idx := buildIndex(buses, students)
	d.mu.Lock()
	d.idx = idx
	d.mu.Unlock()
}

// Run refreshes every interval until ctx is done. Failed refreshes keep the
// previous records.
func (d *Directory) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
				d.log.Action("fleet_refresh_failed").Error("keeping previous fleet records", err)
			}
		}
	}
}

func (d *Directory) current() *index {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.idx
}

func (d *Directory) VehicleForDriver(driverID string) (string, bool) {
	v, ok := d.current().driverVehicle[driverID]
	return v, ok
}

func (d *Directory) RouteForStudent(studentID string) (string, bool) {
	r, ok := d.current().studentRoute[studentID]
	return r, ok
}

func (d *Directory) RoutesForVehicle(vehicleID string) []string {
	b, ok := d.current().buses[vehicleID]
	if !ok || b.RouteID == "" {
		return nil
	}
	return []string{b.RouteID}
}

func (d *Directory) VehiclesOnRoute(routeID string) []string {
	ids := d.current().routeVehicles[routeID]
	return append([]string(nil), ids...)
}

func (d *Directory) Bus(vehicleID string) (model.Bus, bool) {
	b, ok := d.current().buses[vehicleID]
	return b, ok
}
