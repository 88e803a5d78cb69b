package wfs

import (
	"context"
	"fmt"
	"time"
)

// Partitioner discovers the source feature count and splits the index space
// into deterministic, disjoint fetch partitions.
type Partitioner struct {
	client *Client

	// MaxPartitions caps the fetch fan-out. When the computed partition
	// count would exceed it, the batch size is widened so the cap holds
	// without dropping any index range.
	MaxPartitions int
}

// NewPartitioner creates a Partitioner using the given client.
func NewPartitioner(client *Client, maxPartitions int) *Partitioner {
	return &Partitioner{client: client, MaxPartitions: maxPartitions}
}

// Discover issues a minimal-cost GetFeature request (count=1) and returns
// the service-reported total feature count. Failure after retries is fatal
// for the run.
func (p *Partitioner) Discover(ctx context.Context, endpoint, layer, crs string) (int, error) {
	body, err := p.client.GetFeature(ctx, endpoint, layer, crs, 1, 0)
	if err != nil {
		return 0, fmt.Errorf("wfs: discovery request: %w", err)
	}
	total, err := ParseNumberMatched(body)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Split computes the partitions for a run. Output is deterministic in
// (total, batchSize): sorted by start index, non-overlapping, covering
// exactly [0, total).
func (p *Partitioner) Split(total, batchSize int, endpoint, layer string, timeout time.Duration) ([]Partition, error) {
	if total < 0 {
		return nil, fmt.Errorf("wfs: negative total %d", total)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("wfs: batch size %d must be positive", batchSize)
	}
	if total == 0 {
		return nil, nil
	}

	count := (total + batchSize - 1) / batchSize
	if p.MaxPartitions > 0 && count > p.MaxPartitions {
		// Widen the batch size to respect the cap instead of dropping data.
		batchSize = (total + p.MaxPartitions - 1) / p.MaxPartitions
		count = (total + batchSize - 1) / batchSize
	}

	partitions := make([]Partition, 0, count)
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		partitions = append(partitions, Partition{
			StartIndex: start,
			EndIndex:   end,
			SourceURL:  endpoint,
			Layer:      layer,
			Timeout:    timeout,
		})
	}
	return partitions, nil
}
