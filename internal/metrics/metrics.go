// Package metrics declares the Prometheus collectors for the game.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rounds submitted, by result: scored or persist_failed
	roundsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptfix_rounds_submitted_total",
			Help: "Total number of round submissions",
		},
		[]string{"result"},
	)

	roundScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptfix_round_score",
			Help:    "Distribution of total round scores (0-10)",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	criterionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptfix_criterion_outcomes_total",
			Help: "Criterion evaluations by criterion and outcome",
		},
		[]string{"criterion", "outcome"},
	)

	modelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptfix_model_call_duration_seconds",
			Help:    "Time spent waiting on judge and generation models",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "mode", "status"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptfix_active_sessions_current",
			Help: "Current number of registered sessions",
		},
	)

	sessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptfix_sessions_swept_total",
			Help: "Sessions removed by the inactivity sweeper",
		},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptfix_events_dropped_total",
			Help: "Game events dropped because the dispatch queue was full or publishing failed",
		},
		[]string{"type", "reason"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RoundSubmitted(result string) {
	roundsSubmitted.WithLabelValues(result).Inc()
}

func RoundScored(score float64) {
	roundScore.Observe(score)
}

func CriterionOutcome(criterion, outcome string) {
	criterionOutcomes.WithLabelValues(criterion, outcome).Inc()
}

// ModelCall records the latency of one model call started at start.
func ModelCall(model, mode string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelCallDuration.WithLabelValues(model, mode, status).Observe(time.Since(start).Seconds())
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func SessionsSwept(n int) {
	sessionsSwept.Add(float64(n))
}

func EventDropped(eventType, reason string) {
	eventsDropped.WithLabelValues(eventType, reason).Inc()
}
