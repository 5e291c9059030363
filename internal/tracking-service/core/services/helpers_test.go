package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
	"bus-tracker/internal/tracking-service/core/domain/model"
	websocketdto "bus-tracker/internal/tracking-service/core/domain/websocket_dto"

	"github.com/goccy/go-json"
)

type fakeOutbound struct {
	mu     sync.Mutex
	events []websocketdto.Event
	limit  int
	closed bool
}

func newOutbound(limit int) *fakeOutbound {
	return &fakeOutbound{limit: limit}
}

func (o *fakeOutbound) Send(ev websocketdto.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	if o.limit > 0 && len(o.events) >= o.limit {
		return false
	}
	o.events = append(o.events, ev)
	return true
}

func (o *fakeOutbound) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *fakeOutbound) Events() []websocketdto.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]websocketdto.Event(nil), o.events...)
}

func (o *fakeOutbound) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// updates decodes every location_update the outbound received.
func (o *fakeOutbound) updates(t *testing.T) []model.VehicleState {
	t.Helper()
	var out []model.VehicleState
	for _, ev := range o.Events() {
		if ev.Type == websocketdto.EventLocationUpdate {
			out = append(out, decodeState(t, ev))
		}
	}
	return out
}

func decodeState(t *testing.T, ev websocketdto.Event) model.VehicleState {
	t.Helper()
	var st model.VehicleState
	if err := json.Unmarshal(ev.Data, &st); err != nil {
		t.Fatalf("decode %s: %v", ev.Type, err)
	}
	return st
}

func decodeSnapshot(t *testing.T, ev websocketdto.Event) []model.VehicleState {
	t.Helper()
	if ev.Type != websocketdto.EventSnapshot {
		t.Fatalf("event type = %q, want snapshot", ev.Type)
	}
	var snap websocketdto.Snapshot
	if err := json.Unmarshal(ev.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap.Vehicles
}

type staticFleet struct {
	drivers  map[string]string
	students map[string]string
	routes   map[string][]string
}

func (f *staticFleet) VehicleForDriver(driverID string) (string, bool) {
	v, ok := f.drivers[driverID]
	return v, ok
}

func (f *staticFleet) RouteForStudent(studentID string) (string, bool) {
	r, ok := f.students[studentID]
	return r, ok
}

func (f *staticFleet) RoutesForVehicle(vehicleID string) []string {
	return f.routes[vehicleID]
}

func (f *staticFleet) VehiclesOnRoute(routeID string) []string {
	var out []string
	for v, routes := range f.routes {
		for _, r := range routes {
			if r == routeID {
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (f *staticFleet) Bus(vehicleID string) (model.Bus, bool) {
	routes, ok := f.routes[vehicleID]
	if !ok {
		return model.Bus{}, false
	}
	bus := model.Bus{BusID: vehicleID}
	if len(routes) > 0 {
		bus.RouteID = routes[0]
	}
	return bus, true
}

// testFleet: driver d1 drives v1 on route r1, d2 drives v2 on route r1,
// d3 drives v3 on route r2. Student s1 rides r1, s2 rides r2.
func testFleet() *staticFleet {
	return &staticFleet{
		drivers:  map[string]string{"d1": "v1", "d2": "v2", "d3": "v3"},
		students: map[string]string{"s1": "r1", "s2": "r2"},
		routes:   map[string][]string{"v1": {"r1"}, "v2": {"r1"}, "v3": {"r2"}},
	}
}

var errUnavailable = errors.New("history store unavailable")

type memHistory struct {
	mu sync.Mutex
	// fail makes the next n appends fail without storing.
	fail int
	// lostAcks makes the next n appends store the record but report failure.
	lostAcks int
	appends  int
	recs     map[string]model.LocationRecord
}

func newMemHistory() *memHistory {
	return &memHistory{recs: make(map[string]model.LocationRecord)}
}

func (h *memHistory) Append(ctx context.Context, rec model.LocationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appends++
	if h.fail > 0 {
		h.fail--
		return errUnavailable
	}
	if _, ok := h.recs[rec.ID]; !ok {
		h.recs[rec.ID] = rec
	}
	if h.lostAcks > 0 {
		h.lostAcks--
		return errUnavailable
	}
	return nil
}

func (h *memHistory) Range(ctx context.Context, vehicleID string, from, to time.Time) ([]model.LocationRecord, error) {
	var out []model.LocationRecord
	for _, r := range h.All() {
		if r.VehicleID == vehicleID && !r.RecordedAt.Before(from) && !r.RecordedAt.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *memHistory) All() []model.LocationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.LocationRecord, 0, len(h.recs))
	for _, r := range h.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

func (h *memHistory) Appends() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.appends
}

type countingMetrics struct {
	nopMetrics
	mu      sync.Mutex
	written int
	failed  int
	dropped int
	evicted int
}

func (m *countingMetrics) HistoryWritten() { m.mu.Lock(); m.written++; m.mu.Unlock() }
func (m *countingMetrics) HistoryFailed()  { m.mu.Lock(); m.failed++; m.mu.Unlock() }
func (m *countingMetrics) HistoryDropped() { m.mu.Lock(); m.dropped++; m.mu.Unlock() }
func (m *countingMetrics) Evicted(string)  { m.mu.Lock(); m.evicted++; m.mu.Unlock() }

func (m *countingMetrics) snapshot() (written, failed, dropped, evicted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written, m.failed, m.dropped, m.evicted
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: &config.JWTconfig{Secret: "test-secret"},
		History: &config.Historyconfig{
			Backend:         "postgres",
			QueueSize:       64,
			Workers:         2,
			MaxRetries:      3,
			InitialBackoff:  time.Millisecond,
			MaxBackoff:      5 * time.Millisecond,
			WriteTimeout:    time.Second,
			BreakerFailures: 100,
			BreakerTimeout:  time.Second,
		},
		Liveness: &config.Livenessconfig{
			DriverGrace:   50 * time.Millisecond,
			StaleAfter:    time.Minute,
			SweepInterval: time.Hour,
		},
		Session: &config.Sessionconfig{SendBuffer: 16},
	}
}

type harness struct {
	svc     *Service
	track   *TrackingService
	fleet   *staticFleet
	history *memHistory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fleet: testFleet(), history: newMemHistory()}
	h.svc = New(testConfig(), Deps{History: h.history, Fleet: h.fleet}, mylogger.NewNop())
	h.track = h.svc.TrackingService
	h.track.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.track.Shutdown(ctx)
	})
	return h
}

func (h *harness) join(t *testing.T, id model.Identity) (model.SessionInfo, *fakeOutbound) {
	t.Helper()
	out := newOutbound(0)
	info, err := h.track.Join(out, id)
	if err != nil {
		t.Fatalf("Join(%+v) error = %v", id, err)
	}
	return info, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
