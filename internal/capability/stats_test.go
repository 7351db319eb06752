package capability

import (
	"testing"
	"time"
)

func TestLatencyStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLatencyStats(time.Hour)
	stats.Record(100, false)
	stats.Record(200, false)
	stats.Record(300, true)
	stats.Record(400, false)
	stats.Record(500, false)

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.Failures != 1 {
		t.Fatalf("expected failures=1, got %d", snap.Failures)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLatencyStatsPrunesExpiredSamples(t *testing.T) {
	clock := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	stats := NewLatencyStats(time.Minute)
	stats.now = func() time.Time { return clock }

	stats.Record(100, false)
	clock = clock.Add(2 * time.Minute)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200, false)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLatencyStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLatencyStats(time.Hour)
	stats.Record(-10, false)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLatencyStatsEmpty(t *testing.T) {
	if snap := NewLatencyStats(0).Snapshot(); snap != (StatsSnapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
