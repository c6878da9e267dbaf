// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// InboundTurnsTotal tracks inbound gateway turns by outcome.
	InboundTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_turns_total",
			Help: "Inbound gateway turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	// IntentsTotal tracks classified intents.
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_total",
			Help: "Detected intents",
		},
		[]string{"intent"},
	)

	// GatewaySendsTotal tracks outbound gateway sends.
	GatewaySendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_sends_total",
			Help: "Outbound gateway sends",
		},
		[]string{"status"},
	)

	// LeadsTotal tracks created leads by source and temperature.
	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_total",
			Help: "Leads created",
		},
		[]string{"source", "temperature"},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active widget stream connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records one inbound turn outcome (responded, silent, duplicate,
// rejected, error).
func RecordTurn(outcome string) {
	InboundTurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordIntent records one classified intent.
func RecordIntent(intent string) {
	IntentsTotal.WithLabelValues(intent).Inc()
}

// RecordLead records one created lead.
func RecordLead(source string, hot bool) {
	temperature := "warm"
	if hot {
		temperature = "hot"
	}
	LeadsTotal.WithLabelValues(source, temperature).Inc()
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
