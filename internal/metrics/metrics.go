package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	movements     *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	lowStock      prometheus.Counter
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_movements_total",
			Help: "Stock movements recorded or removed, by direction and action.",
		}, []string{"direction", "action"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_projection_cache_total",
			Help: "Projection cache lookups by result.",
		}, []string{"result"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_low_stock_alerts_total",
			Help: "Outbound movements that left a product at or below its minimum stock.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockledger_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.movements,
		m.loginAttempts,
		m.cacheLookups,
		m.lowStock,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MovementRecorded(direction string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(direction, "append").Inc()
}

func (m *Metrics) MovementRemoved(direction string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(direction, "remove").Inc()
}

func (m *Metrics) LoginAttempt(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) LowStockAlert() {
	if m == nil {
		return
	}
	m.lowStock.Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
