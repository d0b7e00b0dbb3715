package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and presence collectors of one registry
type Metrics struct {
	registry       *prometheus.Registry
	httpReqCnt     *prometheus.CounterVec
	httpDur        *prometheus.HistogramVec
	httpInfl       *prometheus.GaugeVec
	registrations  *prometheus.CounterVec
	heartbeats     *prometheus.CounterVec
	sessionsEnded  *prometheus.CounterVec
	enrichments    *prometheus.CounterVec
	activeVisitors prometheus.Gauge
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "visitor_registrations_total"}, []string{"result"})
	heartbeats := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "visitor_heartbeats_total"}, []string{"result"})
	sessionsEnded := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "visitor_sessions_ended_total"}, []string{"reason"})
	enrichments := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "visitor_enrichments_total"}, []string{"result"})
	activeVisitors := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "active_visitors"})
	r.MustRegister(registrations, heartbeats, sessionsEnded, enrichments, activeVisitors)

	return &Metrics{
		registry:       r,
		httpReqCnt:     httpReqCnt,
		httpDur:        httpDur,
		httpInfl:       httpInfl,
		registrations:  registrations,
		heartbeats:     heartbeats,
		sessionsEnded:  sessionsEnded,
		enrichments:    enrichments,
		activeVisitors: activeVisitors,
	}
}

// Registered counts a registration attempt
func (m *Metrics) Registered(ok bool) {
	m.registrations.WithLabelValues(okLabel(ok)).Inc()
}

// Heartbeat counts a heartbeat by its outcome
func (m *Metrics) Heartbeat(result string) {
	m.heartbeats.WithLabelValues(result).Inc()
}

// Ended counts n sessions closed for reason (exit, stale or forced)
func (m *Metrics) Ended(reason string, n int) {
	if n > 0 {
		m.sessionsEnded.WithLabelValues(reason).Add(float64(n))
	}
}

// Enriched counts an enrichment outcome: ok, ip_failed or failed
func (m *Metrics) Enriched(result string) {
	m.enrichments.WithLabelValues(result).Inc()
}

// ActiveVisitors records the size of the last live snapshot
func (m *Metrics) ActiveVisitors(n int) {
	m.activeVisitors.Set(float64(n))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
