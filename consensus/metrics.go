package consensus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdin_rounds_opened_total",
		Help: "Consensus rounds opened, by proposal class",
	}, []string{"class"})

	roundsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdin_rounds_finalized_total",
		Help: "Consensus rounds finalized, by proposal class",
	}, []string{"class"})

	roundsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdin_rounds_expired_total",
		Help: "Consensus rounds expired without reaching threshold, by proposal class",
	}, []string{"class"})

	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdin_votes_total",
		Help: "Vote submissions by outcome",
	}, []string{"outcome"})

	finalityDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gdin_round_finality_seconds",
		Help:    "Time from round open to finalization",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
