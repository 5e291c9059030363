package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/dto"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Ingest outcomes reported to metrics.
const (
	OutcomeApplied    = "applied"
	OutcomeStale      = "stale"
	OutcomeRejected   = "rejected"
	OutcomeNotTracked = "not_tracking"
	OutcomeInvalid    = "invalid"
)

// maxClockSkew is how far past server time a sample may be stamped. Later
// stamps are replaced by the receipt time.
const maxClockSkew = 30 * time.Second

type recorder interface {
	Record(ctx context.Context, rec model.LocationRecord) error
}

type Ingestor struct {
	registry *Registry
	store    *StateStore
	history  recorder
	validate *validator.Validate
	log      mylogger.Logger
	metrics  driven.IMetrics
	now      func() time.Time
}

func NewIngestor(registry *Registry, store *StateStore, history recorder, log mylogger.Logger, metrics driven.IMetrics) *Ingestor {
	return &Ingestor{
		registry: registry,
		store:    store,
		history:  history,
		validate: validator.New(),
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Ingest applies a sample reported over the driver's socket session.
func (i *Ingestor) Ingest(ctx context.Context, sessionID string, sample dto.LocationSample) (dto.IngestResult, error) {
	s, ok := i.registry.Get(sessionID)
	if !ok {
		i.metrics.IngestOutcome(OutcomeRejected)
		return dto.IngestResult{}, fmt.Errorf("session %s: %w", sessionID, model.ErrSessionNotFound)
	}
	driver, ok := s.Identity.(model.DriverIdentity)
	if !ok {
		i.metrics.IngestOutcome(OutcomeRejected)
		return dto.IngestResult{}, fmt.Errorf("session %s is %s: %w", sessionID, s.Role, model.ErrAuthorization)
	}
	return i.IngestFor(ctx, driver, sample)
}

// IngestFor applies a sample on behalf of an already identified driver. The
// state change reaches observers through the store's change hook; the history
// write is queued and never fails the call.
func (i *Ingestor) IngestFor(ctx context.Context, driver model.DriverIdentity, sample dto.LocationSample) (dto.IngestResult, error) {
	if driver.UserID == "" || driver.VehicleID == "" {
		i.metrics.IngestOutcome(OutcomeRejected)
		return dto.IngestResult{}, fmt.Errorf("driver %q without vehicle: %w", driver.UserID, model.ErrAuthorization)
	}
	if sample.Latitude == nil || sample.Longitude == nil {
		i.metrics.IngestOutcome(OutcomeInvalid)
		return dto.IngestResult{}, fmt.Errorf("latitude and longitude are required: %w", model.ErrInvalidCoordinate)
	}
	lat, lon := *sample.Latitude, *sample.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		i.metrics.IngestOutcome(OutcomeInvalid)
		return dto.IngestResult{}, fmt.Errorf("NaN coordinate: %w", model.ErrInvalidCoordinate)
	}
	if err := i.validate.Struct(sample); err != nil {
		i.metrics.IngestOutcome(OutcomeInvalid)
		return dto.IngestResult{}, fmt.Errorf("(%v, %v): %w", lat, lon, model.ErrInvalidCoordinate)
	}

	now := i.now().UTC()
	ts := now
	if sample.RecordedAt != nil && !sample.RecordedAt.IsZero() {
		ts = sample.RecordedAt.UTC()
	}
	if ts.After(now.Add(maxClockSkew)) {
		i.log.Action("ingest_location").Warn("sample stamped in the future, using receipt time",
			"vehicle_id", driver.VehicleID, "recorded_at", ts, "received_at", now)
		ts = now
	}

	pos := model.Position{Latitude: lat, Longitude: lon}
	state, applied, err := i.store.ApplyActive(driver.VehicleID, pos, ts)
	if err != nil {
		i.metrics.IngestOutcome(OutcomeNotTracked)
		return dto.IngestResult{}, err
	}
	if applied {
		i.metrics.IngestOutcome(OutcomeApplied)
	} else {
		i.metrics.IngestOutcome(OutcomeStale)
	}

	rec := model.LocationRecord{
		ID:         uuid.NewString(),
		VehicleID:  driver.VehicleID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: ts,
	}
	if err := i.history.Record(ctx, rec); err != nil {
		i.log.Action("history_enqueue").Warn("sample not queued for history",
			"vehicle_id", driver.VehicleID, "record_id", rec.ID, "error", err.Error())
	}

	return dto.IngestResult{State: state, Applied: applied}, nil
}
