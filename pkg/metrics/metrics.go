package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlgpt_build_info",
			Help: "Build information of sql-gpt",
		},
		[]string{"version", "commit", "date"},
	)

	AgentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgpt_agent_transitions_total",
			Help: "Router transitions taken by the agent, by source and destination step",
		},
		[]string{"from", "to"},
	)

	AgentStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlgpt_agent_step_duration_seconds",
			Help:    "Duration of agent step executions",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"step"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgpt_llm_requests_total",
			Help: "Language model invocations, by provider and status",
		},
		[]string{"provider", "status"},
	)

	EngineQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlgpt_engine_queries_total",
			Help: "Query engine executions, by engine and status",
		},
		[]string{"engine", "status"},
	)
)

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
