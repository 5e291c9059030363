package services

import (
	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/ports/driven"
)

type Service struct {
	AuthService     *AuthService
	TrackingService *TrackingService
}

// Deps are the driven adapters the services run on. Events and Metrics are
// optional.
type Deps struct {
	History driven.HistoryStore
	Events  driven.LocationEventPublisher
	Fleet   driven.FleetDirectory
	Metrics driven.IMetrics
}

func New(cfg *config.Config, deps Deps, log mylogger.Logger) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	store := NewStateStore()
	registry := NewRegistry(store, cfg.Session.SendBuffer, log.With("component", "registry"), metrics)
	fanout := NewFanout(registry, deps.Fleet, log.With("component", "fanout"), metrics)
	store.OnChange(fanout.Publish)

	history := NewHistoryRecorder(deps.History, deps.Events, cfg.History, log.With("component", "history"), metrics)
	toggle := NewToggleMachine(store, log.With("component", "toggle"), metrics)
	liveness := NewLiveness(cfg.Liveness, toggle, store, registry, log.With("component", "liveness"))

	return &Service{
		AuthService: NewAuthService(cfg.JWT.Secret),
		TrackingService: &TrackingService{
			registry: registry,
			store:    store,
			history:  history,
			toggle:   toggle,
			liveness: liveness,
			ingestor: NewIngestor(registry, store, history, log.With("component", "ingest"), metrics),
			fleet:    deps.Fleet,
			log:      log,
		},
	}
}

// Start launches the background workers owned by the tracking service.
func (t *TrackingService) Start() {
	t.history.Start()
}

// Liveness exposes the sweeper so the caller can run it next to the server.
func (t *TrackingService) Liveness() *Liveness {
	return t.liveness
}
