// Package wfs ingests features from a paginated WFS 2.0.0 endpoint: it
// discovers the total feature count, splits the index space into disjoint
// partitions, fetches and parses each partition with bounded retries, and
// assembles the per-partition results into one collection.
package wfs

import (
	"errors"
	"fmt"
	"time"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

// ErrSourceUnavailable marks a discovery or fetch request that could not be
// completed after retries.
var ErrSourceUnavailable = errors.New("wfs: source unavailable")

// ErrMalformedResponse marks a response missing its expected structure, such
// as an absent or non-numeric numberMatched attribute.
var ErrMalformedResponse = errors.New("wfs: malformed source response")

// Partition is one disjoint index range of the source feature space.
// Partitions are created once by the Partitioner, never mutated, and
// consumed exactly once by a fetcher.
type Partition struct {
	StartIndex int
	EndIndex   int // exclusive
	SourceURL  string
	Layer      string
	Timeout    time.Duration
}

// Size returns the number of feature indices covered by the partition.
func (p Partition) Size() int { return p.EndIndex - p.StartIndex }

func (p Partition) String() string {
	return fmt.Sprintf("[%d,%d)", p.StartIndex, p.EndIndex)
}

// PartitionResult is the outcome of fetching one partition.
type PartitionResult struct {
	Partition Partition

	// Features holds the successfully parsed records. Features whose
	// geometry or attributes could not be extracted are skipped and counted
	// in Skipped, not represented here.
	Features []geo.FeatureRecord

	// Skipped counts per-feature parse failures within the partition.
	Skipped int

	// CRS is the coordinate reference system declared for the features.
	CRS string

	// Err is non-nil when the partition failed as a whole (network
	// exhaustion or a malformed response). A failed partition carries no
	// features.
	Err error
}

// Schema maps the configured layer onto the elements the parser extracts.
// A single well-defined extraction path per layer, supplied as
// configuration.
type Schema struct {
	// FeatureElement is the local name of the per-feature element
	// (e.g. "kulstof2022").
	FeatureElement string

	// ClassField is the local name of the integer classification element
	// (e.g. "gridcode").
	ClassField string

	// AuxField is the local name of the optional percentage element
	// (e.g. "toerv_pct"). Empty disables extraction of the attribute.
	AuxField string
}

// Validate reports whether the schema names the required elements.
func (s Schema) Validate() error {
	if s.FeatureElement == "" {
		return errors.New("wfs: schema missing feature element")
	}
	if s.ClassField == "" {
		return errors.New("wfs: schema missing class field")
	}
	return nil
}

// IncompleteIngestError reports that fewer features were assembled than the
// source declared. It is surfaced as a warning unless strict mode is on.
type IncompleteIngestError struct {
	Expected int
	Received int
	Failed   []Partition
}

func (e *IncompleteIngestError) Error() string {
	return fmt.Sprintf("wfs: incomplete ingest: received %d of %d features (%d failed partitions)",
		e.Received, e.Expected, len(e.Failed))
}
