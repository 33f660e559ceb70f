package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdin_active_validators",
		Help: "Current number of active validators",
	})

	registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdin_validator_registrations_total",
		Help: "Total successful validator registrations",
	})
)
