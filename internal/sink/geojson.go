package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
	"github.com/dusk-indust/gridmerge/internal/geo"
)

// FeatureCollection is the processed-output document.
type FeatureCollection struct {
	Type      string    `json:"type"`
	CRS       *namedCRS `json:"crs,omitempty"`
	RunID     string    `json:"run_id"`
	CreatedAt string    `json:"created_at"`
	Features  []Feature `json:"features"`
}

// Feature is one merged output feature with its component stats.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties Properties      `json:"properties"`
}

// Properties carries the merge provenance of a feature.
type Properties struct {
	GridCode    int     `json:"gridcode"`
	SourceCount int     `json:"source_count"`
	Area        float64 `json:"area"`
	Degraded    bool    `json:"degraded,omitempty"`
}

type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// WriteProcessed writes merged features as a GeoJSON FeatureCollection.
func (w *Writer) WriteProcessed(features []dissolve.MergedFeature, crs string) (string, error) {
	fc := FeatureCollection{
		Type:      "FeatureCollection",
		RunID:     w.runID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Features:  make([]Feature, 0, len(features)),
	}
	if crs != "" {
		fc.CRS = &namedCRS{Type: "name", Properties: map[string]string{"name": crs}}
	}

	for i, mf := range features {
		geometry, err := geo.MarshalGeoJSON(mf.Geometry)
		if err != nil {
			return "", fmt.Errorf("sink: merged feature %d: %w", i, err)
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: geometry,
			Properties: Properties{
				GridCode:    mf.GridCode,
				SourceCount: mf.SourceCount,
				Area:        mf.Area,
				Degraded:    mf.Degraded,
			},
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("sink: marshal collection: %w", err)
	}
	path := w.path("merged.geojson")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("sink: write %s: %w", path, err)
	}

	w.logger.Info("processed output written", "path", path, "features", len(fc.Features))
	return path, nil
}
