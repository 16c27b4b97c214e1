package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Chat turn outcomes used as the "outcome" label of ChatTurns.
const (
	OutcomeLLM      = "llm"
	OutcomeFixed    = "fixed"
	OutcomeReplayed = "replayed"
	OutcomeError    = "error"
)

var (
	// ChatTurns counts answered or failed chat turns by outcome.
	ChatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns handled, by outcome.",
		},
		[]string{"outcome"},
	)

	// WidgetResolutions counts widget resolutions by calling context
	// (embed/preview) and result (ok/not_found/error).
	WidgetResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_resolutions_total",
			Help: "Widget configuration resolutions, by context and result.",
		},
		[]string{"context", "result"},
	)

	// LLMLatency records completion round-trip time, retries included.
	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of completion requests in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"model", "status"},
	)
)

func init() {
	prometheus.MustRegister(ChatTurns, WidgetResolutions, LLMLatency)
}
