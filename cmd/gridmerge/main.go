package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dusk-indust/gridmerge/internal/config"
	"github.com/dusk-indust/gridmerge/internal/run"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigPath string
	Strict     bool
	Verbose    bool
	Quiet      bool
	Version    bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	code, err := runMain(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(code)
}

func runMain(args []string) (int, error) {
	var flags cliFlags

	fs := flag.NewFlagSet("gridmerge", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigPath, "config", "gridmerge.yml", "path to the run configuration")
	fs.BoolVar(&flags.Strict, "strict", false, "abort on any partition failure or ingest shortfall")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.Quiet, "quiet", false, "suppress per-partition progress output")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 1, nil
	}

	if flags.Version {
		fmt.Println(version)
		return 0, nil
	}

	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return 1, err
	}
	if flags.Strict {
		cfg.Strict = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := run.NewCoordinator(cfg, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range coordinator.Progress() {
			if !flags.Quiet {
				fmt.Println(run.FormatEvent(ev))
			}
		}
	}()

	stats, err := coordinator.Run(ctx)
	coordinator.Close()
	<-done

	printSummary(stats)
	if err != nil {
		return stats.Status.ExitCode(), err
	}
	return stats.Status.ExitCode(), nil
}

func printSummary(stats *run.Stats) {
	fmt.Printf("\nRun %s (%s strategy)\n", stats.Status, stats.Strategy)
	fmt.Printf("  features:   %d fetched of %d expected (%d skipped, %d partitions failed)\n",
		stats.Fetched, stats.Expected, stats.Skipped, stats.FailedPartitions)
	fmt.Printf("  merged:     %d output features (%.1f%% reduction, %.1fx compression)\n",
		stats.OutputFeatures, stats.ReductionPct(), stats.CompressionRatio())
	if stats.Unresolved > 0 || stats.Degraded > 0 {
		fmt.Printf("  defects:    %d unresolved, %d degraded\n", stats.Unresolved, stats.Degraded)
	}
	if stats.Rejected > 0 {
		fmt.Printf("  rejected:   %d features\n", stats.Rejected)
		for rule, n := range stats.RejectedByRule {
			fmt.Printf("    %s: %d\n", rule, n)
		}
	}
	for code, cs := range stats.PerCode {
		fmt.Printf("  gridcode %d: %d -> %d\n", code, cs.Input, cs.Output)
	}
	fmt.Printf("  duration:   %s (%.0f features/s)\n", stats.Duration.Round(time.Millisecond), stats.FeaturesPerSecond())
	for _, artifact := range stats.Artifacts {
		fmt.Printf("  artifact:   %s\n", artifact)
	}
}
