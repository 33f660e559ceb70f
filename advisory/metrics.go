package advisory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var advisoryCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gdin_advisory_requests_total",
	Help: "Advisory gateway calls by operation and outcome",
}, []string{"op", "outcome"})

func observeCall(op, outcome string) {
	advisoryCalls.WithLabelValues(op, outcome).Inc()
}
