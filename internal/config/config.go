// Package config loads and validates the run configuration. Every
// recognized option is an explicit field; no component reads process
// environment state.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML decoding from strings like "300s".
type Duration time.Duration

// Compile-time check.
var _ yaml.Unmarshaler = (*Duration)(nil)

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Schema names the layer elements the feature parser extracts.
type Schema struct {
	FeatureElement string `yaml:"feature_element"`
	ClassField     string `yaml:"class_field"`
	AuxField       string `yaml:"aux_field,omitempty"`
}

// Run holds the full configuration for one pipeline run.
type Run struct {
	SourceURL string `yaml:"source_url"`
	LayerName string `yaml:"layer_name"`
	Schema    Schema `yaml:"schema"`

	BatchSize     int    `yaml:"batch_size,omitempty"`
	MaxPartitions int    `yaml:"max_partitions,omitempty"`
	TargetCRS     string `yaml:"target_crs,omitempty"`

	MergeableCodes []int  `yaml:"mergeable_codes"`
	Contiguity     string `yaml:"contiguity,omitempty"` // queen | edge

	MinPoints int     `yaml:"min_points,omitempty"`
	MinArea   float64 `yaml:"min_area,omitempty"`
	MaxArea   float64 `yaml:"max_area,omitempty"`

	FetchConcurrency int      `yaml:"fetch_concurrency,omitempty"`
	FetchTimeout     Duration `yaml:"fetch_timeout,omitempty"`
	FetchRetries     int      `yaml:"fetch_retries,omitempty"`
	RunTimeout       Duration `yaml:"run_timeout,omitempty"`

	// Strict aborts the run when any partition fails or the ingest falls
	// short of the discovered total.
	Strict bool `yaml:"strict,omitempty"`

	// MergeMemoryThreshold is the total vertex count above which the merge
	// engine switches from in-memory to chunked execution.
	MergeMemoryThreshold int `yaml:"merge_memory_threshold,omitempty"`

	// WorkerMemoryLimit is the per-component vertex budget; components
	// above it degrade to the hull fallback.
	WorkerMemoryLimit int `yaml:"worker_memory_limit,omitempty"`

	ChunkCount   int     `yaml:"chunk_count,omitempty"`
	ChunkOverlap float64 `yaml:"chunk_overlap,omitempty"`
	MergeWorkers int     `yaml:"merge_workers,omitempty"`

	OutputDir string `yaml:"output_dir,omitempty"`
	Shapefile bool   `yaml:"shapefile,omitempty"`

	// CheckCapabilities verifies the configured layer against the service's
	// GetCapabilities listing before partitioning.
	CheckCapabilities bool `yaml:"check_capabilities,omitempty"`
}

// Defaults mirror the source service's observed limits.
const (
	DefaultBatchSize            = 100000
	DefaultMaxPartitions        = 64
	DefaultTargetCRS            = "EPSG:25832"
	DefaultFetchConcurrency     = 5
	DefaultFetchTimeout         = 300 * time.Second
	DefaultFetchRetries         = 3
	DefaultMinPoints            = 4
	DefaultMinArea              = 1.0
	DefaultMaxArea              = 1e8
	DefaultMergeMemoryThreshold = 2_000_000
	DefaultWorkerMemoryLimit    = 500_000
	DefaultChunkCount           = 4
	DefaultChunkOverlap         = 100.0
	DefaultMergeWorkers         = 4
	DefaultOutputDir            = "out"
)

// Load reads and validates a YAML run configuration.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Run
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Run) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxPartitions == 0 {
		c.MaxPartitions = DefaultMaxPartitions
	}
	if c.TargetCRS == "" {
		c.TargetCRS = DefaultTargetCRS
	}
	if c.Contiguity == "" {
		c.Contiguity = "queen"
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = Duration(DefaultFetchTimeout)
	}
	if c.FetchRetries == 0 {
		c.FetchRetries = DefaultFetchRetries
	}
	if c.MinPoints == 0 {
		c.MinPoints = DefaultMinPoints
	}
	if c.MinArea == 0 {
		c.MinArea = DefaultMinArea
	}
	if c.MaxArea == 0 {
		c.MaxArea = DefaultMaxArea
	}
	if c.MergeMemoryThreshold == 0 {
		c.MergeMemoryThreshold = DefaultMergeMemoryThreshold
	}
	if c.WorkerMemoryLimit == 0 {
		c.WorkerMemoryLimit = DefaultWorkerMemoryLimit
	}
	if c.ChunkCount == 0 {
		c.ChunkCount = DefaultChunkCount
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.MergeWorkers == 0 {
		c.MergeWorkers = DefaultMergeWorkers
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Run) Validate() error {
	if c.SourceURL == "" {
		return errors.New("config: source_url is required")
	}
	if c.LayerName == "" {
		return errors.New("config: layer_name is required")
	}
	if c.Schema.FeatureElement == "" {
		return errors.New("config: schema.feature_element is required")
	}
	if c.Schema.ClassField == "" {
		return errors.New("config: schema.class_field is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size %d must be positive", c.BatchSize)
	}
	if c.MaxPartitions < 0 {
		return fmt.Errorf("config: max_partitions %d must not be negative", c.MaxPartitions)
	}
	if c.Contiguity != "queen" && c.Contiguity != "edge" {
		return fmt.Errorf("config: contiguity %q must be queen or edge", c.Contiguity)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("config: fetch_concurrency %d must be positive", c.FetchConcurrency)
	}
	if c.FetchRetries < 1 {
		return fmt.Errorf("config: fetch_retries %d must be at least 1", c.FetchRetries)
	}
	if c.MinArea > c.MaxArea {
		return fmt.Errorf("config: min_area %g exceeds max_area %g", c.MinArea, c.MaxArea)
	}
	if c.ChunkCount < 1 {
		return fmt.Errorf("config: chunk_count %d must be at least 1", c.ChunkCount)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("config: chunk_overlap %g must not be negative", c.ChunkOverlap)
	}
	if c.MergeWorkers < 1 {
		return fmt.Errorf("config: merge_workers %d must be at least 1", c.MergeWorkers)
	}
	return nil
}

// MergeableSet returns the mergeable codes as a set.
func (c *Run) MergeableSet() map[int]bool {
	set := make(map[int]bool, len(c.MergeableCodes))
	for _, code := range c.MergeableCodes {
		set[code] = true
	}
	return set
}
