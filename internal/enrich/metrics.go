package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_enrich_runs_total",
		Help: "Enrichment pass runs by pass and final status.",
	}, []string{"pass", "status"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_enrich_duration_seconds",
		Help:    "Enrichment pass duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"pass"})

	claimsJudged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_enrich_claims_total",
		Help: "Verified claims by status.",
	}, []string{"status"})
)
