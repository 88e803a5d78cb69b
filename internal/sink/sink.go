// Package sink writes run artifacts: the raw feature dump, the processed
// GeoJSON collection, and the optional shapefile archive. Every artifact is
// tagged with the run ID so repeated runs never clobber each other.
package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Writer places all artifacts for one run under a single directory.
type Writer struct {
	dir    string
	runID  string
	logger *slog.Logger
}

// NewWriter creates the output directory and assigns a fresh run ID.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create output dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, runID: uuid.NewString(), logger: logger}, nil
}

// RunID returns the identifier stamped on every artifact.
func (w *Writer) RunID() string { return w.runID }

func (w *Writer) path(name string) string {
	return filepath.Join(w.dir, w.runID+"_"+name)
}
