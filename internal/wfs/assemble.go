package wfs

import (
	"fmt"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

// Assembly is the unified dataset built from all partition results.
type Assembly struct {
	// Features is the union of all successfully fetched records. Partitions
	// are index-disjoint, so no cross-partition deduplication is needed.
	Features []geo.FeatureRecord

	// Expected is the total the partitioner discovered.
	Expected int

	// Skipped counts per-feature parse failures across all partitions.
	Skipped int

	// Failed lists the partitions that failed as a whole.
	Failed []Partition

	// Incomplete is non-nil when fewer features were assembled than the
	// source reported, after accounting for skipped parse failures.
	Incomplete *IncompleteIngestError
}

// Assemble merges partition results into one collection. Result order does
// not matter: combination is a set union. A shortfall against the expected
// total produces an Incomplete marker; aborting on it is the caller's call
// (strict mode), not the assembler's.
func Assemble(results []PartitionResult, expected int) Assembly {
	asm := Assembly{Expected: expected}
	for _, res := range results {
		if res.Err != nil {
			asm.Failed = append(asm.Failed, res.Partition)
			continue
		}
		asm.Features = append(asm.Features, res.Features...)
		asm.Skipped += res.Skipped
	}

	if len(asm.Features)+asm.Skipped < expected {
		asm.Incomplete = &IncompleteIngestError{
			Expected: expected,
			Received: len(asm.Features),
			Failed:   asm.Failed,
		}
	}
	return asm
}

// Strict returns an error when the assembly is missing anything a strict-mode
// run should refuse to process.
func (a Assembly) Strict() error {
	if len(a.Failed) > 0 {
		return fmt.Errorf("wfs: strict mode: %d failed partitions", len(a.Failed))
	}
	if a.Incomplete != nil {
		return a.Incomplete
	}
	return nil
}
