package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"

	"github.com/google/uuid"
)

type recordingPublisher struct {
	mu   sync.Mutex
	recs []model.LocationRecord
	err  error
}

func (p *recordingPublisher) PublishLocation(ctx context.Context, rec model.LocationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, rec)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

func newRecord(vehicleID string, sec int) model.LocationRecord {
	return model.LocationRecord{ID: uuid.NewString(), VehicleID: vehicleID, Latitude: 1, Longitude: 2, RecordedAt: at(sec)}
}

func newTestRecorder(store *memHistory, events *recordingPublisher, metrics *countingMetrics) *HistoryRecorder {
	cfg := testConfig().History
	if events == nil {
		return NewHistoryRecorder(store, nil, cfg, mylogger.NewNop(), metrics)
	}
	return NewHistoryRecorder(store, events, cfg, mylogger.NewNop(), metrics)
}

func stopRecorder(t *testing.T, h *HistoryRecorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRecorderRetriesUntilWritten(t *testing.T) {
	store := newMemHistory()
	store.fail = 2
	metrics := &countingMetrics{}
	h := newTestRecorder(store, nil, metrics)
	h.Start()

	if err := h.Record(context.Background(), newRecord("v1", 1)); err != nil {
		t.Fatal(err)
	}
	stopRecorder(t, h)

	if n := len(store.All()); n != 1 {
		t.Fatalf("stored %d records, want 1", n)
	}
	if n := store.Appends(); n != 3 {
		t.Errorf("appends = %d, want 3", n)
	}
	if written, failed, _, _ := metrics.snapshot(); written != 1 || failed != 0 {
		t.Errorf("written = %d, failed = %d", written, failed)
	}
}

func TestRecorderGivesUpAfterRetries(t *testing.T) {
	store := newMemHistory()
	store.fail = 1000
	metrics := &countingMetrics{}
	h := newTestRecorder(store, nil, metrics)
	h.Start()

	if err := h.Record(context.Background(), newRecord("v1", 1)); err != nil {
		t.Fatal(err)
	}
	stopRecorder(t, h)

	if n := store.Appends(); n != 4 {
		t.Errorf("appends = %d, want 1 attempt + 3 retries", n)
	}
	if _, failed, _, _ := metrics.snapshot(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestRecorderRetryAfterLostAckKeepsOneRecord(t *testing.T) {
	store := newMemHistory()
	store.lostAcks = 1
	h := newTestRecorder(store, nil, &countingMetrics{})
	h.Start()

	h.Record(context.Background(), newRecord("v1", 1))
	stopRecorder(t, h)

	if n := len(store.All()); n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
	if n := store.Appends(); n != 2 {
		t.Errorf("appends = %d, want 2", n)
	}
}

func TestRecordFailsWhenQueueFull(t *testing.T) {
	cfg := testConfig().History
	cfg.QueueSize = 1
	metrics := &countingMetrics{}
	h := NewHistoryRecorder(newMemHistory(), nil, cfg, mylogger.NewNop(), metrics)

	if err := h.Record(context.Background(), newRecord("v1", 1)); err != nil {
		t.Fatal(err)
	}
	err := h.Record(context.Background(), newRecord("v1", 2))
	if !errors.Is(err, model.ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
	if _, _, dropped, _ := metrics.snapshot(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	stopRecorder(t, h)
}

func TestRecordAfterStop(t *testing.T) {
	h := newTestRecorder(newMemHistory(), nil, &countingMetrics{})
	h.Start()
	stopRecorder(t, h)

	if err := h.Record(context.Background(), newRecord("v1", 1)); !errors.Is(err, model.ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
	stopRecorder(t, h)
}

func TestStopDrainsQueue(t *testing.T) {
	store := newMemHistory()
	h := newTestRecorder(store, nil, &countingMetrics{})
	h.Start()

	for i := 0; i < 30; i++ {
		if err := h.Record(context.Background(), newRecord("v1", i)); err != nil {
			t.Fatal(err)
		}
	}
	stopRecorder(t, h)

	if n := len(store.All()); n != 30 {
		t.Errorf("stored %d records after drain, want 30", n)
	}
}

func TestRecorderPublishesAfterWrite(t *testing.T) {
	store := newMemHistory()
	events := &recordingPublisher{}
	h := newTestRecorder(store, events, &countingMetrics{})
	h.Start()

	h.Record(context.Background(), newRecord("v1", 1))
	h.Record(context.Background(), newRecord("v1", 2))
	stopRecorder(t, h)

	if n := events.count(); n != 2 {
		t.Errorf("published %d events, want 2", n)
	}
}

func TestRecorderPublishFailureDoesNotLoseRecord(t *testing.T) {
	store := newMemHistory()
	events := &recordingPublisher{err: errors.New("broker down")}
	metrics := &countingMetrics{}
	h := newTestRecorder(store, events, metrics)
	h.Start()

	h.Record(context.Background(), newRecord("v1", 1))
	stopRecorder(t, h)

	if n := len(store.All()); n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
	if written, failed, _, _ := metrics.snapshot(); written != 1 || failed != 0 {
		t.Errorf("written = %d, failed = %d", written, failed)
	}
}

func TestRangeFiltersByVehicleAndWindow(t *testing.T) {
	store := newMemHistory()
	h := newTestRecorder(store, nil, &countingMetrics{})
	h.Start()
	for _, rec := range []model.LocationRecord{newRecord("v1", 1), newRecord("v1", 5), newRecord("v1", 9), newRecord("v2", 5)} {
		h.Record(context.Background(), rec)
	}
	stopRecorder(t, h)

	recs, err := h.Range(context.Background(), "v1", at(2), at(9))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("Range returned %d records, want 2", len(recs))
	}
	for _, r := range recs {
		if r.VehicleID != "v1" {
			t.Errorf("foreign record %+v", r)
		}
	}
}
