// Package metrics exposes Prometheus collectors for provisioning runs and
// vendor calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts finished provisioning runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_runs_total",
		Help: "Finished provisioning runs.",
	}, []string{"outcome"})

	// RunsInFlight is the number of provisioning runs executing now.
	RunsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outreach_runs_in_flight",
		Help: "Provisioning runs currently executing.",
	})

	// PhaseDuration observes phase wall time by phase and terminal status.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outreach_phase_duration_seconds",
		Help:    "Duration of provisioning phases.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"phase", "status"})

	// VendorCalls counts vendor API calls by operation and error class.
	VendorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_vendor_calls_total",
		Help: "Lead vendor API calls.",
	}, []string{"op", "class"})

	// VendorLatency observes vendor call latency including retries.
	VendorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outreach_vendor_call_duration_seconds",
		Help:    "Lead vendor API call latency including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// LeadsBound counts leads submitted to campaigns.
	LeadsBound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_leads_bound_total",
		Help: "Leads submitted for binding to campaigns.",
	})

	// OracleFallbacks counts fallbacks taken when an oracle fails.
	OracleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_oracle_fallbacks_total",
		Help: "Oracle failures replaced by fallback output.",
	}, []string{"kind"})

	// OracleTokens counts model tokens by provider, purpose and direction.
	OracleTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_oracle_tokens_total",
		Help: "Tokens consumed by oracle calls.",
	}, []string{"provider", "purpose", "direction"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outreach_http_request_duration_seconds",
		Help:    "HTTP request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveVendorCall records one vendor call. Its signature matches
// instantly.Observer.
func ObserveVendorCall(op, class string, d time.Duration) {
	VendorCalls.WithLabelValues(op, class).Inc()
	VendorLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveOracleUsage records the tokens of one oracle call.
func ObserveOracleUsage(provider, purpose string, in, out int64) {
	OracleTokens.WithLabelValues(provider, purpose, "input").Add(float64(in))
	OracleTokens.WithLabelValues(provider, purpose, "output").Add(float64(out))
}

// ObservePhase records one finished phase.
func ObservePhase(phase, status string, d time.Duration) {
	PhaseDuration.WithLabelValues(phase, status).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route should be the matched
// pattern, not the raw path.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
