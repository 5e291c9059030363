package metrics

import (
	"net/http"

	"bus-tracker/internal/tracking-service/core/domain/model"
	"bus-tracker/internal/tracking-service/core/ports/driven"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ driven.IMetrics = (*Metrics)(nil)

// Metrics owns its registry so several instances can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	ingest        *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	evicted       *prometheus.CounterVec
	historyWrites *prometheus.CounterVec
	sessions      *prometheus.GaugeVec
	toggles       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingest: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustracker",
			Name:      "ingest_samples_total",
			Help:      "Location samples received from drivers, by outcome.",
		}, []string{"outcome"}),
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustracker",
			Name:      "fanout_deliveries_total",
			Help:      "Updates queued to observer sessions, by room kind.",
		}, []string{"room"}),
		evicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustracker",
			Name:      "fanout_evictions_total",
			Help:      "Sessions dropped because their queue was full, by room kind.",
		}, []string{"room"}),
		historyWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustracker",
			Name:      "history_records_total",
			Help:      "History records by result.",
		}, []string{"result"}),
		sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bustracker",
			Name:      "sessions_connected",
			Help:      "Connected sessions by role.",
		}, []string{"role"}),
		toggles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bustracker",
			Name:      "tracking_toggles_total",
			Help:      "Tracking state transitions by target state.",
		}, []string{"state"}),
	}
}

// roomKind keeps label cardinality bounded: every route room counts as "route".
func roomKind(room string) string {
	switch room {
	case model.RoomAdmins, model.RoomDrivers:
		return room
	}
	return "route"
}

func (m *Metrics) IngestOutcome(outcome string) { m.ingest.WithLabelValues(outcome).Inc() }
func (m *Metrics) Delivered(room string)        { m.delivered.WithLabelValues(roomKind(room)).Inc() }
func (m *Metrics) Evicted(room string)          { m.evicted.WithLabelValues(roomKind(room)).Inc() }
func (m *Metrics) HistoryWritten()              { m.historyWrites.WithLabelValues("written").Inc() }
func (m *Metrics) HistoryFailed()               { m.historyWrites.WithLabelValues("failed").Inc() }
func (m *Metrics) HistoryDropped()              { m.historyWrites.WithLabelValues("dropped").Inc() }
func (m *Metrics) SessionOpened(role string)    { m.sessions.WithLabelValues(role).Inc() }
func (m *Metrics) SessionClosed(role string)    { m.sessions.WithLabelValues(role).Dec() }
func (m *Metrics) TrackingToggled(state string) { m.toggles.WithLabelValues(state).Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
