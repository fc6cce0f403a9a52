package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kidneyqa_pipeline_duration_seconds",
			Help:    "End-to-end answer pipeline duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"outcome"},
	)

	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_gate_decisions_total",
			Help: "Relevance gate decisions",
		},
		[]string{"decision"},
	)

	RetrievalStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_retrieval_stage_total",
			Help: "Retrieval stage attempts by verdict",
		},
		[]string{"stage", "verdict"},
	)

	RetrievalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_retrieval_outcome_total",
			Help: "Terminal retrieval outcomes",
		},
		[]string{"outcome"},
	)

	ContextRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kidneyqa_context_rows",
			Help:    "Context rows backing a retrieval answer",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
	)

	StreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_stream_events_total",
			Help: "Stream events emitted to callers",
		},
		[]string{"type"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_llm_calls_total",
			Help: "Language model calls",
		},
		[]string{"model", "mode", "status"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kidneyqa_llm_latency_seconds",
			Help:    "Language model call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "mode"},
	)

	SessionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidneyqa_session_operations_total",
			Help: "Session store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kidneyqa_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PipelineDuration)
		prometheus.MustRegister(GateDecisions)
		prometheus.MustRegister(RetrievalStages)
		prometheus.MustRegister(RetrievalOutcomes)
		prometheus.MustRegister(ContextRows)
		prometheus.MustRegister(StreamEvents)
		prometheus.MustRegister(LLMCalls)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(SessionOperations)
		prometheus.MustRegister(RateLimited)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
