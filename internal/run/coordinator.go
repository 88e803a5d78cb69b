// Package run coordinates the full pipeline: partition discovery, parallel
// ingest, assembly, merge, validation and artifact export. The coordinator
// owns strategy selection, terminal status and run statistics; the stages it
// calls stay pure.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/gridmerge/internal/config"
	"github.com/dusk-indust/gridmerge/internal/dissolve"
	"github.com/dusk-indust/gridmerge/internal/sink"
	"github.com/dusk-indust/gridmerge/internal/validate"
	"github.com/dusk-indust/gridmerge/internal/wfs"
)

// Coordinator executes one configured run.
type Coordinator struct {
	cfg      *config.Run
	client   *wfs.Client
	logger   *slog.Logger
	progress *ProgressReporter
}

// NewCoordinator wires a Coordinator from the run configuration. The WFS
// client inherits the configured timeout and retry bounds.
func NewCoordinator(cfg *config.Run, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	retry := wfs.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.FetchRetries

	client := wfs.NewClient(
		wfs.WithTimeout(cfg.FetchTimeout.Std()),
		wfs.WithRetryPolicy(retry),
	)

	return &Coordinator{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		progress: NewProgressReporter(),
	}
}

// Progress returns a channel that emits progress events.
func (c *Coordinator) Progress() <-chan Event {
	return c.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when
// the coordinator is no longer needed.
func (c *Coordinator) Close() {
	c.progress.Close()
}

// Run executes the pipeline end to end. Stats are always returned, carrying
// the terminal status; the error is non-nil only on StatusFailure.
func (c *Coordinator) Run(ctx context.Context) (*Stats, error) {
	started := time.Now()
	stats := &Stats{Status: StatusFailure}

	if c.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout.Std())
		defer cancel()
	}

	fail := func(phase Phase, err error) (*Stats, error) {
		c.progress.Emit(Event{Phase: phase, Status: EventFailed, Message: err.Error()})
		stats.Duration = time.Since(started)
		return stats, err
	}

	if c.cfg.CheckCapabilities {
		if err := c.checkLayer(ctx); err != nil {
			return fail(PhaseDiscover, err)
		}
	}

	// Discover and partition.
	c.progress.Emit(Event{Phase: PhaseDiscover, Detail: c.cfg.LayerName, Status: EventWorking})
	partitioner := wfs.NewPartitioner(c.client, c.cfg.MaxPartitions)
	total, err := partitioner.Discover(ctx, c.cfg.SourceURL, c.cfg.LayerName, c.cfg.TargetCRS)
	if err != nil {
		return fail(PhaseDiscover, fmt.Errorf("run: discover: %w", err))
	}
	stats.Expected = total

	parts, err := partitioner.Split(total, c.cfg.BatchSize, c.cfg.SourceURL, c.cfg.LayerName, c.cfg.FetchTimeout.Std())
	if err != nil {
		return fail(PhaseDiscover, fmt.Errorf("run: partition: %w", err))
	}
	c.progress.Emit(Event{Phase: PhaseDiscover, Detail: c.cfg.LayerName, Status: EventComplete})
	c.logger.Info("source discovered", "layer", c.cfg.LayerName, "total", total, "partitions", len(parts))

	// Fetch all partitions with bounded concurrency. A run-level timeout
	// cancels outstanding fetches; those partitions surface as failed rather
	// than aborting the run.
	results := c.fetchAll(ctx, parts)

	// Assemble.
	c.progress.Emit(Event{Phase: PhaseAssemble, Status: EventWorking})
	asm := wfs.Assemble(results, total)
	stats.Fetched = len(asm.Features)
	stats.Skipped = asm.Skipped
	stats.FailedPartitions = len(asm.Failed)
	for _, part := range asm.Failed {
		stats.Failed = append(stats.Failed, part.String())
	}

	if c.cfg.Strict {
		if err := asm.Strict(); err != nil {
			return fail(PhaseAssemble, fmt.Errorf("run: %w", err))
		}
	}
	if total > 0 && len(asm.Features) == 0 {
		return fail(PhaseAssemble, fmt.Errorf("run: no features assembled from %d expected", total))
	}
	c.progress.Emit(Event{Phase: PhaseAssemble, Status: EventComplete})

	writer, err := sink.NewWriter(c.cfg.OutputDir, c.logger)
	if err != nil {
		return fail(PhaseExport, err)
	}
	rawPath, err := writer.WriteRaw(asm.Features)
	if err != nil {
		return fail(PhaseExport, err)
	}
	stats.Artifacts = append(stats.Artifacts, rawPath)

	// Merge.
	strategy, vertices := SelectStrategy(asm.Features, c.cfg.MergeMemoryThreshold)
	stats.Strategy = strategy
	c.logger.Info("merge strategy selected", "strategy", string(strategy), "vertices", vertices)
	c.progress.Emit(Event{Phase: PhaseMerge, Detail: string(strategy), Status: EventWorking})

	engine := &dissolve.Engine{
		Codes:        c.cfg.MergeableSet(),
		Policy:       dissolve.ContiguityPolicy(c.cfg.Contiguity),
		VertexBudget: c.cfg.WorkerMemoryLimit,
		Logger:       c.logger,
	}
	var merged *dissolve.Result
	switch strategy {
	case StrategyChunked:
		merged, err = engine.DissolveChunked(asm.Features, c.cfg.ChunkCount, c.cfg.ChunkOverlap, c.cfg.MergeWorkers)
	default:
		merged, err = engine.Dissolve(asm.Features)
	}
	if err != nil {
		return fail(PhaseMerge, fmt.Errorf("run: merge: %w", err))
	}
	stats.Unresolved = merged.Unresolved
	stats.Degraded = merged.Degraded
	stats.PerCode = merged.PerCode
	c.progress.Emit(Event{Phase: PhaseMerge, Detail: string(strategy), Status: EventComplete})

	// Validate.
	c.progress.Emit(Event{Phase: PhaseValidate, Status: EventWorking})
	rules := validate.Rules{
		MinPoints: c.cfg.MinPoints,
		MinArea:   c.cfg.MinArea,
		MaxArea:   c.cfg.MaxArea,
	}
	report := validate.Apply(merged.Features, rules, c.logger)
	stats.OutputFeatures = len(report.Accepted)
	stats.Rejected = report.RejectedTotal()
	stats.RejectedByRule = report.Rejected
	c.progress.Emit(Event{Phase: PhaseValidate, Status: EventComplete})

	// Export.
	c.progress.Emit(Event{Phase: PhaseExport, Status: EventWorking})
	processedPath, err := writer.WriteProcessed(report.Accepted, c.cfg.TargetCRS)
	if err != nil {
		return fail(PhaseExport, err)
	}
	stats.Artifacts = append(stats.Artifacts, processedPath)

	if c.cfg.Shapefile && len(report.Accepted) > 0 {
		shpPath, err := writer.WriteShapefile(report.Accepted)
		if err != nil {
			return fail(PhaseExport, err)
		}
		stats.Artifacts = append(stats.Artifacts, shpPath)
	}
	c.progress.Emit(Event{Phase: PhaseExport, Status: EventComplete})

	stats.Duration = time.Since(started)
	stats.Status = c.terminalStatus(stats, asm)
	c.logger.Info("run finished", "run_id", writer.RunID(), "stats", stats)
	return stats, nil
}

// fetchAll dispatches every partition in parallel, limited to the configured
// concurrency, and collects results positionally. Partition failures live in
// the result, not the group error, so one bad partition never cancels the
// rest.
func (c *Coordinator) fetchAll(ctx context.Context, parts []wfs.Partition) []wfs.PartitionResult {
	schema := wfs.Schema{
		FeatureElement: c.cfg.Schema.FeatureElement,
		ClassField:     c.cfg.Schema.ClassField,
		AuxField:       c.cfg.Schema.AuxField,
	}
	fetcher := wfs.NewFetcher(c.client, schema, c.cfg.TargetCRS, c.logger)

	results := make([]wfs.PartitionResult, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.FetchConcurrency)

	for i, part := range parts {
		c.progress.Emit(Event{Phase: PhaseFetch, Detail: part.String(), Status: EventPending})

		i, part := i, part
		g.Go(func() error {
			c.progress.Emit(Event{Phase: PhaseFetch, Detail: part.String(), Status: EventWorking})
			results[i] = fetcher.Fetch(gctx, part)
			if results[i].Err != nil {
				c.progress.Emit(Event{
					Phase:   PhaseFetch,
					Detail:  part.String(),
					Status:  EventFailed,
					Message: results[i].Err.Error(),
				})
				return nil
			}
			c.progress.Emit(Event{Phase: PhaseFetch, Detail: part.String(), Status: EventComplete})
			return nil
		})
	}

	g.Wait() //nolint:errcheck // goroutines never return errors
	return results
}

// checkLayer verifies the configured layer against the service capabilities.
func (c *Coordinator) checkLayer(ctx context.Context) error {
	layers, err := c.client.Capabilities(ctx, c.cfg.SourceURL)
	if err != nil {
		return fmt.Errorf("run: capabilities: %w", err)
	}
	for _, layer := range layers {
		if layer == c.cfg.LayerName {
			return nil
		}
	}
	return fmt.Errorf("run: layer %s not advertised by source", c.cfg.LayerName)
}

// terminalStatus classifies a completed run. Any defect downgrades success
// to partial: the output exists but does not fully represent the source.
func (c *Coordinator) terminalStatus(stats *Stats, asm wfs.Assembly) Status {
	if stats.FailedPartitions > 0 || stats.Skipped > 0 || asm.Incomplete != nil {
		return StatusPartial
	}
	if stats.Unresolved > 0 || stats.Degraded > 0 {
		return StatusPartial
	}
	return StatusSuccess
}
