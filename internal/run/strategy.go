package run

import "github.com/dusk-indust/gridmerge/internal/geo"

// Strategy selects how the merge engine traverses the dataset.
type Strategy string

const (
	// StrategyInMemory dissolves the whole dataset in one pass.
	StrategyInMemory Strategy = "in-memory"

	// StrategyChunked dissolves per spatial tile with a final
	// merge-of-merges pass. Used when the working set is too large to
	// union in one go.
	StrategyChunked Strategy = "chunked"
)

// SelectStrategy estimates the working set by total vertex count and picks
// the merge strategy. A threshold of zero always selects in-memory.
// The estimate deliberately counts all features, not just mergeable ones:
// passthrough features still occupy the working set during conversion.
func SelectStrategy(records []geo.FeatureRecord, threshold int) (Strategy, int) {
	total := 0
	for _, rec := range records {
		total += rec.VertexCount()
	}
	if threshold > 0 && total > threshold {
		return StrategyChunked, total
	}
	return StrategyInMemory, total
}
