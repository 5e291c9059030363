package driven

import (
	"context"
	"time"

	"bus-tracker/internal/tracking-service/core/domain/model"
)

// HistoryStore is the append-only location trail. Append must be idempotent
// on LocationRecord.ID.
type HistoryStore interface {
	Append(ctx context.Context, rec model.LocationRecord) error
	Range(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error)
}

type LocationEventPublisher interface {
	PublishLocation(ctx context.Context, rec model.LocationRecord) error
}
