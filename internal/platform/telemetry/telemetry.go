// Package telemetry exposes request metrics for the scheduling API using
// standard library constructs only: counters, gauges, a latency histogram,
// and a Prometheus text exposition endpoint.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Config identifies the service in the exported resource attributes.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "agenda-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// defaultDurationBuckets are the histogram boundaries in seconds.
var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// histogram is a thread-safe histogram with fixed bucket boundaries. Bucket
// counts are stored non-cumulative; the exporter accumulates them.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits for atomic add
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		out[i] = running
	}
	return out
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}

type counterStore struct {
	mu       sync.RWMutex
	counters map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{counters: make(map[string]*int64)}
}

func (s *counterStore) inc(key string) {
	s.mu.RLock()
	c, ok := s.counters[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if c, ok = s.counters[key]; !ok {
			c = new(int64)
			s.counters[key] = c
		}
		s.mu.Unlock()
	}
	atomic.AddInt64(c, 1)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.counters[key]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for k, c := range s.counters {
		out[k] = atomic.LoadInt64(c)
	}
	return out
}

type gaugeStore struct {
	mu     sync.RWMutex
	gauges map[string]*int64
}

func newGaugeStore() *gaugeStore {
	return &gaugeStore{gauges: make(map[string]*int64)}
}

func (s *gaugeStore) cell(name string) *int64 {
	s.mu.RLock()
	g, ok := s.gauges[name]
	s.mu.RUnlock()
	if ok {
		return g
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok = s.gauges[name]; !ok {
		g = new(int64)
		s.gauges[name] = g
	}
	return g
}

func (s *gaugeStore) set(name string, val int64)   { atomic.StoreInt64(s.cell(name), val) }
func (s *gaugeStore) add(name string, delta int64) { atomic.AddInt64(s.cell(name), delta) }
func (s *gaugeStore) get(name string) int64        { return atomic.LoadInt64(s.cell(name)) }

// Provider owns the metric stores and hands out middleware and the
// exposition handler.
type Provider struct {
	cfg      Config
	counters *counterStore
	gauges   *gaugeStore
	duration *histogram
}

func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{
		cfg:      cfg,
		counters: newCounterStore(),
		gauges:   newGaugeStore(),
		duration: newHistogram(defaultDurationBuckets),
	}
}

// BookingEvent counts a booking lifecycle operation (reserved, confirmed,
// cancelled, attended, missed).
func (p *Provider) BookingEvent(op string) {
	p.counters.inc("booking|" + op)
}

// SlotsGenerated counts created and skipped slots per generation call.
func (p *Provider) SlotsGenerated(created, skipped int) {
	for i := 0; i < created; i++ {
		p.counters.inc("slots|created")
	}
	for i := 0; i < skipped; i++ {
		p.counters.inc("slots|skipped")
	}
}

// SetDBPoolStats publishes connection pool gauges.
func (p *Provider) SetDBPoolStats(active, idle int64) {
	p.gauges.set("db.pool.active_connections", active)
	p.gauges.set("db.pool.idle_connections", idle)
}

// BookingsByStatusGauge publishes the current booking count for a status.
func (p *Provider) BookingsByStatusGauge(status string, n int64) {
	p.gauges.set("bookings.status."+strings.ToLower(status), n)
}

// MetricsMiddleware records per-request latency, status counts and the
// active request gauge.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.Enabled {
				return next(c)
			}

			p.gauges.add("http.active_requests", 1)
			start := time.Now()

			err := next(c)

			p.gauges.add("http.active_requests", -1)
			p.duration.Observe(time.Since(start).Seconds())

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			p.counters.inc(fmt.Sprintf("http|%s|%s|%d", c.Request().Method, route, c.Response().Status))

			return err
		}
	}
}

// PrometheusHandler serves the stores in Prometheus text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		fmt.Fprintf(&b, "# HELP agenda_build_info Service identity.\n# TYPE agenda_build_info gauge\n")
		fmt.Fprintf(&b, "agenda_build_info{service=%q,version=%q,environment=%q} 1\n\n",
			p.cfg.ServiceName, p.cfg.ServiceVersion, p.cfg.Environment)

		b.WriteString("# HELP http_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_request_duration_seconds histogram\n")
		cum := p.duration.cumulativeBuckets()
		for i, bound := range defaultDurationBuckets {
			fmt.Fprintf(&b, "http_request_duration_seconds_bucket{le=\"%g\"} %d\n", bound, cum[i])
		}
		fmt.Fprintf(&b, "http_request_duration_seconds_bucket{le=\"+Inf\"} %d\n", p.duration.Count())
		fmt.Fprintf(&b, "http_request_duration_seconds_sum %g\n", p.duration.Sum())
		fmt.Fprintf(&b, "http_request_duration_seconds_count %d\n\n", p.duration.Count())

		b.WriteString("# HELP http_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_active_requests gauge\n")
		fmt.Fprintf(&b, "http_active_requests %d\n\n", p.gauges.get("http.active_requests"))

		counters := p.counters.snapshot()
		keys := make([]string, 0, len(counters))
		for k := range counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("# HELP http_requests_total HTTP requests by method, route and status.\n")
		b.WriteString("# TYPE http_requests_total counter\n")
		for _, k := range keys {
			parts := strings.SplitN(k, "|", 4)
			if len(parts) == 4 && parts[0] == "http" {
				fmt.Fprintf(&b, "http_requests_total{method=%q,route=%q,status=%q} %d\n",
					parts[1], parts[2], parts[3], counters[k])
			}
		}
		b.WriteByte('\n')

		b.WriteString("# HELP booking_events_total Booking lifecycle operations.\n")
		b.WriteString("# TYPE booking_events_total counter\n")
		for _, k := range keys {
			parts := strings.SplitN(k, "|", 2)
			if len(parts) == 2 && parts[0] == "booking" {
				fmt.Fprintf(&b, "booking_events_total{operation=%q} %d\n", parts[1], counters[k])
			}
		}
		b.WriteByte('\n')

		b.WriteString("# HELP slots_generated_total Slots produced by generation calls.\n")
		b.WriteString("# TYPE slots_generated_total counter\n")
		for _, k := range keys {
			parts := strings.SplitN(k, "|", 2)
			if len(parts) == 2 && parts[0] == "slots" {
				fmt.Fprintf(&b, "slots_generated_total{outcome=%q} %d\n", parts[1], counters[k])
			}
		}
		b.WriteByte('\n')

		for _, g := range []struct{ prom, name, help string }{
			{"db_pool_active_connections", "db.pool.active_connections", "Active database pool connections."},
			{"db_pool_idle_connections", "db.pool.idle_connections", "Idle database pool connections."},
		} {
			fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n",
				g.prom, g.help, g.prom, g.prom, p.gauges.get(g.name))
		}

		return c.String(http.StatusOK, b.String())
	}
}
