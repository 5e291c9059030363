package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
)

// HistoryRecorder appends accepted samples to the history store off the
// ingest path. Records wait in a bounded queue and are written by a fixed
// pool of workers.
type HistoryRecorder struct {
	store   driven.HistoryStore
	events  driven.LocationEventPublisher
	cfg     *config.Historyconfig
	log     mylogger.Logger
	metrics driven.IMetrics
	breaker *gobreaker.CircuitBreaker[struct{}]

	queue chan model.LocationRecord

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	runCtx context.Context
	cancel context.CancelFunc
}

// NewHistoryRecorder builds a recorder. events may be nil.
func NewHistoryRecorder(store driven.HistoryStore, events driven.LocationEventPublisher, cfg *config.Historyconfig, log mylogger.Logger, metrics driven.IMetrics) *HistoryRecorder {
	h := &HistoryRecorder{
		store:   store,
		events:  events,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		queue:   make(chan model.LocationRecord, cfg.QueueSize),
	}
	h.runCtx, h.cancel = context.WithCancel(context.Background())
	h.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "history-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Action("breaker_state_changed").Warn("history breaker changed state",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return h
}

// Start launches the workers. Calling it twice has no effect.
func (h *HistoryRecorder) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.started = true
	for i := 0; i < h.cfg.Workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	h.log.Action("history_started").Info("history recorder started", "workers", h.cfg.Workers, "queue", h.cfg.QueueSize)
}

// Record enqueues rec without blocking. It fails with ErrPersistence when the
// queue is full or the recorder has been stopped.
func (h *HistoryRecorder) Record(ctx context.Context, rec model.LocationRecord) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return fmt.Errorf("recorder stopped: %w", model.ErrPersistence)
	}
	select {
	case h.queue <- rec:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("record %s: %w", rec.ID, model.ErrPersistence)
	default:
		h.metrics.HistoryDropped()
		return fmt.Errorf("history queue full: %w", model.ErrPersistence)
	}
}

func (h *HistoryRecorder) worker() {
	defer h.wg.Done()
	for rec := range h.queue {
		h.write(rec)
	}
}

func (h *HistoryRecorder) write(rec model.LocationRecord) {
	l := h.log.Action("history_write").With("record_id", rec.ID, "vehicle_id", rec.VehicleID)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = h.cfg.InitialBackoff
	expo.MaxInterval = h.cfg.MaxBackoff
	expo.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		attempts++
		_, err := h.breaker.Execute(func() (struct{}, error) {
			ctx, cancel := context.WithTimeout(h.runCtx, h.cfg.WriteTimeout)
			defer cancel()
			return struct{}{}, h.store.Append(ctx, rec)
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(h.cfg.MaxRetries)), h.runCtx)
	if err := backoff.Retry(op, policy); err != nil {
		h.metrics.HistoryFailed()
		l.Warn("history record lost after retries", "attempts", attempts, "error", fmt.Errorf("%w: %v", model.ErrPersistence, err).Error())
		return
	}
	h.metrics.HistoryWritten()

	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.runCtx, h.cfg.WriteTimeout)
	defer cancel()
	if err := h.events.PublishLocation(ctx, rec); err != nil {
		l.Warn("failed to publish location event", "error", err.Error())
	}
}

func (h *HistoryRecorder) Range(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error) {
	recs, err := h.store.Range(ctx, vehicleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("history range %s: %w", vehicleID, err)
	}
	return recs, nil
}

// Stop refuses new records and waits until the queue is drained or ctx ends.
// Writes still in flight when ctx ends are cancelled.
func (h *HistoryRecorder) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	started := h.started
	close(h.queue)
	h.mu.Unlock()

	if !started {
		h.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.cancel()
		h.log.Action("history_stopped").Info("history recorder drained")
		return nil
	case <-ctx.Done():
		h.cancel()
		<-done
		return fmt.Errorf("history drain: %w", ctx.Err())
	}
}

// Pending reports how many records wait in the queue.
func (h *HistoryRecorder) Pending() int {
	return len(h.queue)
}
