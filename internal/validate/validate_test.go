package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
	"github.com/dusk-indust/gridmerge/internal/geo"
)

func feature(t *testing.T, side float64) dissolve.MergedFeature {
	t.Helper()
	p, err := geo.NewPolygon([]geom.Coord{
		{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0},
	})
	require.NoError(t, err)
	return dissolve.MergedFeature{
		Geometry:    p,
		GridCode:    12,
		SourceCount: 1,
		Area:        side * side,
	}
}

func TestApply_AcceptsWithinBounds(t *testing.T) {
	rules := Rules{MinPoints: 4, MinArea: 1.0, MaxArea: 100.0}
	report := Apply([]dissolve.MergedFeature{feature(t, 2)}, rules, nil)

	assert.Len(t, report.Accepted, 1)
	assert.Zero(t, report.RejectedTotal())
}

func TestApply_RejectsByRule(t *testing.T) {
	rules := Rules{MinPoints: 4, MinArea: 1.0, MaxArea: 100.0}
	features := []dissolve.MergedFeature{
		feature(t, 0.5), // area 0.25 < min_area
		feature(t, 2),   // fine
		feature(t, 50),  // area 2500 > max_area
	}

	report := Apply(features, rules, nil)
	assert.Len(t, report.Accepted, 1)
	assert.Equal(t, 1, report.Rejected[RuleMinArea])
	assert.Equal(t, 1, report.Rejected[RuleMaxArea])
	assert.Equal(t, 2, report.RejectedTotal())
}

func TestApply_MinPoints(t *testing.T) {
	mf := feature(t, 2)
	rules := Rules{MinPoints: 10}

	report := Apply([]dissolve.MergedFeature{mf}, rules, nil)
	assert.Empty(t, report.Accepted)
	assert.Equal(t, 1, report.Rejected[RuleMinPoints])
}

func TestApply_ZeroBoundsDisableChecks(t *testing.T) {
	report := Apply([]dissolve.MergedFeature{feature(t, 1000)}, Rules{}, nil)
	assert.Len(t, report.Accepted, 1)
}

func TestRules_Validate(t *testing.T) {
	require.NoError(t, Rules{MinPoints: 4, MinArea: 1, MaxArea: 2}.Validate())
	require.Error(t, Rules{MinArea: 10, MaxArea: 1}.Validate())
	require.Error(t, Rules{MinPoints: -1}.Validate())
}
