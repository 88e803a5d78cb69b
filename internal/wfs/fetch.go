package wfs

import (
	"context"
	"log/slog"
)

// Fetcher retrieves and parses one partition at a time. It holds no mutable
// state between calls, so a single Fetcher may serve many goroutines.
type Fetcher struct {
	client *Client
	schema Schema
	crs    string
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. A nil logger falls back to slog.Default().
func NewFetcher(client *Client, schema Schema, crs string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, schema: schema, crs: crs, logger: logger}
}

// Fetch retrieves one partition. Network exhaustion and malformed responses
// are recorded on the result's Err rather than returned, so a failed
// partition never takes its siblings down; the coordinator decides what a
// failed partition means for the run. A partition with zero features is not
// an error.
func (f *Fetcher) Fetch(ctx context.Context, part Partition) PartitionResult {
	res := PartitionResult{Partition: part, CRS: f.crs}

	fetchCtx := ctx
	if part.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, part.Timeout)
		defer cancel()
	}

	body, err := f.client.GetFeature(fetchCtx, part.SourceURL, part.Layer, f.crs, part.Size(), part.StartIndex)
	if err != nil {
		f.logger.Error("partition fetch failed", "partition", part.String(), "error", err)
		res.Err = err
		return res
	}

	features, skipped, err := ParseFeatures(body, f.schema, f.crs, f.logger)
	if err != nil {
		f.logger.Error("partition response unparsable", "partition", part.String(), "error", err)
		res.Err = err
		return res
	}

	res.Features = features
	res.Skipped = skipped
	if skipped > 0 {
		f.logger.Warn("skipped unparsable features",
			"partition", part.String(), "skipped", skipped, "parsed", len(features))
	}
	return res
}
