package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

func squareRecord(t *testing.T) geo.FeatureRecord {
	t.Helper()
	p, err := geo.NewPolygon([]geom.Coord{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	require.NoError(t, err)
	return geo.FeatureRecord{GridCode: 12, Polygon: p}
}

func TestSelectStrategy(t *testing.T) {
	records := []geo.FeatureRecord{squareRecord(t), squareRecord(t)} // 10 vertices

	strategy, vertices := SelectStrategy(records, 100)
	assert.Equal(t, StrategyInMemory, strategy)
	assert.Equal(t, 10, vertices)

	strategy, _ = SelectStrategy(records, 9)
	assert.Equal(t, StrategyChunked, strategy)

	// Exactly at the threshold stays in memory.
	strategy, _ = SelectStrategy(records, 10)
	assert.Equal(t, StrategyInMemory, strategy)
}

func TestSelectStrategyZeroThreshold(t *testing.T) {
	records := []geo.FeatureRecord{squareRecord(t)}
	strategy, _ := SelectStrategy(records, 0)
	assert.Equal(t, StrategyInMemory, strategy)
}

func TestSelectStrategyEmpty(t *testing.T) {
	strategy, vertices := SelectStrategy(nil, 100)
	assert.Equal(t, StrategyInMemory, strategy)
	assert.Zero(t, vertices)
}
