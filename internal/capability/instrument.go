package capability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	capabilityCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_capability_calls_total",
		Help: "External capability calls by capability and outcome.",
	}, []string{"capability", "outcome"})

	capabilityDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notebook_capability_duration_seconds",
		Help:    "External capability call latency.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"capability"})
)

func observe(name string, stats *LatencyStats, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	capabilityCalls.WithLabelValues(name, outcome).Inc()
	capabilityDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if stats != nil {
		stats.Record(elapsed.Milliseconds(), err != nil)
	}
}

type instrumentedSearch struct {
	name  string
	next  SearchCapability
	stats *LatencyStats
}

// InstrumentSearch records latency and outcome of every search call.
func InstrumentSearch(name string, s SearchCapability, stats *LatencyStats) SearchCapability {
	return &instrumentedSearch{name: name, next: s, stats: stats}
}

func (i *instrumentedSearch) Search(ctx context.Context, query string) ([]Snippet, error) {
	start := time.Now()
	out, err := i.next.Search(ctx, query)
	observe(i.name, i.stats, start, err)
	return out, err
}

type instrumentedGeneration struct {
	name  string
	next  GenerationCapability
	stats *LatencyStats
}

// InstrumentGeneration records latency and outcome of every generation call.
func InstrumentGeneration(name string, g GenerationCapability, stats *LatencyStats) GenerationCapability {
	return &instrumentedGeneration{name: name, next: g, stats: stats}
}

func (i *instrumentedGeneration) Generate(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, p)
	observe(i.name, i.stats, start, err)
	return out, err
}
