package wfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ExactScenario(t *testing.T) {
	p := NewPartitioner(nil, 0)
	parts, err := p.Split(250000, 100000, "http://example/wfs", "natur:kulstof2022", time.Minute)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, 0, parts[0].StartIndex)
	assert.Equal(t, 100000, parts[0].EndIndex)
	assert.Equal(t, 100000, parts[1].StartIndex)
	assert.Equal(t, 200000, parts[1].EndIndex)
	assert.Equal(t, 200000, parts[2].StartIndex)
	assert.Equal(t, 250000, parts[2].EndIndex)
}

func TestSplit_CoversIndexSpace(t *testing.T) {
	cases := []struct {
		total, batch int
	}{
		{0, 10},
		{1, 10},
		{9, 10},
		{10, 10},
		{11, 10},
		{9999, 250},
		{100001, 100000},
	}
	p := NewPartitioner(nil, 0)
	for _, tc := range cases {
		parts, err := p.Split(tc.total, tc.batch, "u", "l", 0)
		require.NoError(t, err)

		next := 0
		for _, part := range parts {
			assert.Equal(t, next, part.StartIndex, "partitions must be sorted and gapless for total=%d batch=%d", tc.total, tc.batch)
			assert.Greater(t, part.EndIndex, part.StartIndex)
			next = part.EndIndex
		}
		assert.Equal(t, tc.total, next, "partitions must cover [0,total) for total=%d batch=%d", tc.total, tc.batch)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	p := NewPartitioner(nil, 0)
	a, err := p.Split(123457, 1000, "u", "l", 0)
	require.NoError(t, err)
	b, err := p.Split(123457, 1000, "u", "l", 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_CapWidensBatchSize(t *testing.T) {
	p := NewPartitioner(nil, 4)
	parts, err := p.Split(1000, 10, "u", "l", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(parts), 4, "cap must bound the fan-out")

	next := 0
	for _, part := range parts {
		assert.Equal(t, next, part.StartIndex)
		next = part.EndIndex
	}
	assert.Equal(t, 1000, next, "widening must not drop data")
}

func TestSplit_InvalidInputs(t *testing.T) {
	p := NewPartitioner(nil, 0)

	_, err := p.Split(-1, 10, "u", "l", 0)
	require.Error(t, err)

	_, err = p.Split(10, 0, "u", "l", 0)
	require.Error(t, err)
}
