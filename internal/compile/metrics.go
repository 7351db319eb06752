package compile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_compile_runs_total",
		Help: "Compile invocations by target kind and outcome.",
	}, []string{"target", "outcome"})

	compileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_compile_duration_seconds",
		Help:    "Wall time of successful compiles.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"target"})
)
