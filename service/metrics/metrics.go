package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// The struct is passed explicitly to every component that records metrics;
// a nil *Metrics is valid and records nothing.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Summary Metrics
	summariesTotal    *prometheus.CounterVec
	instructionsPerTx prometheus.Histogram

	// LLM Provider Metrics
	llmCallsTotal   *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec

	// Explanation Metrics
	explanationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method"},
		),

		// Summary Metrics
		summariesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_summaries_total",
				Help: "Total number of transaction summaries built, by whether the transaction had metadata",
			},
			[]string{"has_meta"},
		),
		instructionsPerTx: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transaction_instructions",
				Help:    "Number of top-level instructions per summarized transaction",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 20, 50},
			},
		),

		// LLM Provider Metrics
		llmCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of LLM provider calls by provider and status",
			},
			[]string{"provider", "status"},
		),
		llmCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Duration of LLM provider calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_fallbacks_total",
				Help: "Total number of fallback attempts after a primary quota error, by outcome",
			},
			[]string{"outcome"},
		),

		// Explanation Metrics
		explanationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explanations_total",
				Help: "Total number of explanation requests by outcome",
			},
			[]string{"outcome"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5, 10, 30, 60},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordSummary records a reduced transaction.
func (m *Metrics) RecordSummary(hasMeta bool, numInstructions int) {
	if m == nil {
		return
	}
	label := "false"
	if hasMeta {
		label = "true"
	}
	m.summariesTotal.WithLabelValues(label).Inc()
	m.instructionsPerTx.Observe(float64(numInstructions))
}

// LLM metric helpers

// RecordLLMCall records a single provider call.
func (m *Metrics) RecordLLMCall(provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.llmCallsTotal.WithLabelValues(provider, status).Inc()
	m.llmCallDuration.WithLabelValues(provider).Observe(duration)
}

// RecordFallback records the outcome of a fallback attempt
// ("success", "failed" or "unconfigured").
func (m *Metrics) RecordFallback(outcome string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(outcome).Inc()
}

// RecordExplanation records the final outcome of an explanation
// ("ok" or a failure kind).
func (m *Metrics) RecordExplanation(outcome string) {
	if m == nil {
		return
	}
	m.explanationsTotal.WithLabelValues(outcome).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
