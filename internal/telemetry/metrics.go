package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esketch_games_started_total",
		Help: "Number of game sessions started.",
	})

	GamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esketch_games_completed_total",
		Help: "Number of game sessions played to the final round.",
	})

	RoundsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esketch_rounds_matched_total",
		Help: "Number of rounds ended by a successful match.",
	})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esketch_classifications_total",
		Help: "Classifier calls by result.",
	}, []string{"result"})

	ClassifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "esketch_classify_duration_seconds",
		Help:    "Latency of classifier calls.",
		Buckets: prometheus.DefBuckets,
	})
)
