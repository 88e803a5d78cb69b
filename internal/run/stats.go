package run

import (
	"log/slog"
	"time"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
	"github.com/dusk-indust/gridmerge/internal/validate"
)

// Stats summarizes one run end to end.
type Stats struct {
	Status   Status
	Strategy Strategy

	// Ingest counters.
	Expected         int
	Fetched          int
	Skipped          int
	FailedPartitions int

	// Failed lists the failed partitions' index ranges.
	Failed []string

	// Merge counters.
	OutputFeatures int
	Unresolved     int
	Degraded       int
	PerCode        map[int]dissolve.CodeStats

	// Validation counters.
	Rejected       int
	RejectedByRule map[validate.Rule]int

	Duration  time.Duration
	Artifacts []string
}

// Compile-time check.
var _ slog.LogValuer = Stats{}

// ReductionPct is the share of input features eliminated by merging, in
// percent. Zero input yields zero.
func (s Stats) ReductionPct() float64 {
	if s.Fetched == 0 {
		return 0
	}
	return (1 - float64(s.OutputFeatures)/float64(s.Fetched)) * 100
}

// CompressionRatio is input features per output feature. Zero output yields
// zero.
func (s Stats) CompressionRatio() float64 {
	if s.OutputFeatures == 0 {
		return 0
	}
	return float64(s.Fetched) / float64(s.OutputFeatures)
}

// FeaturesPerSecond is ingest throughput over the whole run.
func (s Stats) FeaturesPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Fetched) / secs
}

// LogValue implements slog.LogValuer so a whole run logs as one group.
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("status", string(s.Status)),
		slog.String("strategy", string(s.Strategy)),
		slog.Int("expected", s.Expected),
		slog.Int("fetched", s.Fetched),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed_partitions", s.FailedPartitions),
		slog.Int("output_features", s.OutputFeatures),
		slog.Int("unresolved", s.Unresolved),
		slog.Int("degraded", s.Degraded),
		slog.Int("rejected", s.Rejected),
		slog.Float64("reduction_pct", s.ReductionPct()),
		slog.Float64("compression_ratio", s.CompressionRatio()),
		slog.Float64("features_per_second", s.FeaturesPerSecond()),
		slog.Duration("duration", s.Duration),
	}
	return slog.GroupValue(attrs...)
}
