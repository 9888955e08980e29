// Package metrics holds the Prometheus collectors shared by the API and the
// worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fincommerce_http_request_duration_seconds",
		Help:    "Latency of HTTP requests by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RetrievalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fincommerce_retrieval_duration_seconds",
		Help:    "Latency of vector retrieval calls",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation", "status"})

	FeedTermFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fincommerce_feed_term_failures_total",
		Help: "Interest-term retrieval calls that failed or timed out while building a mixed feed",
	})

	FeedFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincommerce_feed_fallbacks_total",
		Help: "Feed responses served from the trending query instead of personalization",
	}, []string{"reason"})

	EventsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincommerce_behavior_events_total",
		Help: "Behavior events recorded by type and outcome",
	}, []string{"event_type", "status"})

	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincommerce_llm_calls_total",
		Help: "Assistant LLM calls by step and outcome",
	}, []string{"step", "status"})

	TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fincommerce_task_duration_seconds",
		Help:    "Background task run time by type and outcome",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"type", "status"})

	GuardrailFlags = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fincommerce_guardrail_flags_total",
		Help: "Assistant inputs that tripped the prompt screen, by flag",
	}, []string{"flag"})
)

// Register adds every collector to reg. Call once per process.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestDuration,
		RetrievalDuration,
		FeedTermFailures,
		FeedFallbacks,
		EventsRecorded,
		LLMCalls,
		TaskDuration,
		GuardrailFlags,
	)
}

// NewRegistry returns a registry with the service collectors plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	Register(reg)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
