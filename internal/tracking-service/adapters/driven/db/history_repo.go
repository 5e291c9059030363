package db

import (
	"context"
	"fmt"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

var _ driven.HistoryStore = (*HistoryRepository)(nil)

type HistoryRepository struct {
	db driven.IDB
}

func NewHistoryRepository(db driven.IDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Migrate creates the history table and its lookup index if missing.
func (r *HistoryRepository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS location_history (
			record_id   UUID PRIMARY KEY,
			bus_id      TEXT NOT NULL,
			latitude    DOUBLE PRECISION NOT NULL,
			longitude   DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_location_history_bus_time
			ON location_history (bus_id, recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate location_history: %w", err)
		}
	}
	return nil
}

// Append inserts rec. A record that is already stored is left untouched.
func (r *HistoryRepository) Append(ctx context.Context, rec model.LocationRecord) error {
	query := `
		INSERT INTO location_history (record_id, bus_id, latitude, longitude, recorded_at)
		VALUES ($1::uuid, $2, $3, $4, $5)
		ON CONFLICT (record_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, rec.ID, rec.VehicleID, rec.Latitude, rec.Longitude, rec.RecordedAt); err != nil {
		return fmt.Errorf("insert location %s: %w", rec.ID, err)
	}
	return nil
}

func (r *HistoryRepository) Range(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error) {
	query := `
		SELECT record_id::text, bus_id, latitude, longitude, recorded_at
		FROM location_history
		WHERE bus_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at`
	rows, err := r.db.Query(ctx, query, vehicleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	recs := make([]model.LocationRecord, 0)
	for rows.Next() {
		var rec model.LocationRecord
		if err := rows.Scan(&rec.ID, &rec.VehicleID, &rec.Latitude, &rec.Longitude, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.RecordedAt = rec.RecordedAt.UTC()
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return recs, nil
}
