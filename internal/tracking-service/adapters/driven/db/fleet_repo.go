package db

import (
	"context"
	"fmt"

	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

var _ driven.IFleetRepository = (*FleetRepository)(nil)

// FleetRepository reads the bus and student records owned by the admin
// application. It never writes.
type FleetRepository struct {
	db driven.IDB
}

func NewFleetRepository(db driven.IDB) *FleetRepository {
	return &FleetRepository{db: db}
}

func (r *FleetRepository) ListBuses(ctx context.Context) ([]model.Bus, error) {
	query := `
		SELECT bus_id::text, COALESCE(bus_number, ''), COALESCE(route_id::text, ''), COALESCE(driver_id::text, '')
		FROM buses`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query buses: %w", err)
	}
	defer rows.Close()

	var buses []model.Bus
	for rows.Next() {
		var b model.Bus
		if err := rows.Scan(&b.BusID, &b.BusNumber, &b.RouteID, &b.DriverID); err != nil {
			return nil, fmt.Errorf("scan bus: %w", err)
		}
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buses: %w", err)
	}
	return buses, nil
}

func (r *FleetRepository) ListStudents(ctx context.Context) ([]model.Student, error) {
	query := `
		SELECT student_id::text, route_id::text
		FROM students
		WHERE route_id IS NOT NULL`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.StudentID, &s.RouteID); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}
