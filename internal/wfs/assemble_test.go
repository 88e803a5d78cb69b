package wfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

func mkRecords(n int) []geo.FeatureRecord {
	recs := make([]geo.FeatureRecord, n)
	for i := range recs {
		recs[i] = geo.FeatureRecord{GridCode: 12}
	}
	return recs
}

func TestAssemble_AllPartitionsSucceed(t *testing.T) {
	results := []PartitionResult{
		{Partition: Partition{StartIndex: 0, EndIndex: 3}, Features: mkRecords(3)},
		{Partition: Partition{StartIndex: 3, EndIndex: 5}, Features: mkRecords(2)},
	}

	asm := Assemble(results, 5)
	assert.Len(t, asm.Features, 5)
	assert.Empty(t, asm.Failed)
	assert.Nil(t, asm.Incomplete)
	require.NoError(t, asm.Strict())
}

func TestAssemble_FailedPartitionIsPartial(t *testing.T) {
	results := []PartitionResult{
		{Partition: Partition{StartIndex: 0, EndIndex: 3}, Features: mkRecords(3)},
		{Partition: Partition{StartIndex: 3, EndIndex: 6}, Err: errors.New("boom")},
	}

	asm := Assemble(results, 6)
	assert.Len(t, asm.Features, 3)
	require.Len(t, asm.Failed, 1)
	assert.Equal(t, 3, asm.Failed[0].StartIndex)

	require.NotNil(t, asm.Incomplete)
	assert.Equal(t, 6, asm.Incomplete.Expected)
	assert.Equal(t, 3, asm.Incomplete.Received)

	err := asm.Strict()
	require.Error(t, err, "strict mode refuses partial ingest")
}

func TestAssemble_SkippedFeaturesAccounted(t *testing.T) {
	// Two features were present but unparsable; the assembly is complete
	// from the source's point of view, just thinner.
	results := []PartitionResult{
		{Partition: Partition{EndIndex: 5}, Features: mkRecords(3), Skipped: 2},
	}

	asm := Assemble(results, 5)
	assert.Equal(t, 2, asm.Skipped)
	assert.Nil(t, asm.Incomplete, "skips are not an ingest shortfall")
	require.NoError(t, asm.Strict())
}

func TestAssemble_OrderIndependent(t *testing.T) {
	a := []PartitionResult{
		{Partition: Partition{StartIndex: 0, EndIndex: 2}, Features: mkRecords(2)},
		{Partition: Partition{StartIndex: 2, EndIndex: 4}, Features: mkRecords(2)},
	}
	b := []PartitionResult{a[1], a[0]}

	asmA := Assemble(a, 4)
	asmB := Assemble(b, 4)
	assert.Equal(t, len(asmA.Features), len(asmB.Features))
	assert.Equal(t, asmA.Skipped, asmB.Skipped)
}
