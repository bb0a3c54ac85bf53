package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Chat outcomes.
const (
	OutcomeAnswered   = "answered"
	OutcomeRejected   = "rejected"
	OutcomeClarify    = "clarify"
	OutcomeParseError = "parse_error"
	OutcomeLLMError   = "llm_error"
	OutcomeFailed     = "failed"
)

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_chat_requests_total",
			Help: "Total number of database chat requests by outcome.",
		},
		[]string{"outcome"},
	)
	chatStageDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrchat_chat_stage_duration_ms",
			Help:    "Latency of chat pipeline stages in milliseconds.",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"stage"},
	)
	queryRouteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_query_route_total",
			Help: "Executed intermediate queries by route (generic, shape, operation).",
		},
		[]string{"route"},
	)
	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrchat_query_result_rows",
			Help:    "Rows returned per executed query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		},
	)
	sessionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrchat_session_rejections_total",
			Help: "Chat requests refused by session metering.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		chatRequestsTotal,
		chatStageDurationMs,
		queryRouteTotal,
		queryResultRows,
		sessionRejectionsTotal,
	)
}

func ObserveChatOutcome(outcome string) {
	chatRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records one pipeline stage: translate, execute, narrate or total.
func ObserveStage(stage string, elapsed time.Duration) {
	chatStageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQuery(route string, rows int) {
	queryRouteTotal.WithLabelValues(route).Inc()
	if rows < 0 {
		rows = 0
	}
	queryResultRows.Observe(float64(rows))
}

func IncrementSessionRejection(reason string) {
	sessionRejectionsTotal.WithLabelValues(reason).Inc()
}
