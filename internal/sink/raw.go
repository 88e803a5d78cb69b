package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

type rawLine struct {
	ID       string          `json:"id"`
	GridCode int             `json:"gridcode"`
	AuxPct   string          `json:"aux_pct,omitempty"`
	CRS      string          `json:"crs"`
	Geometry json.RawMessage `json:"geometry"`
}

// WriteRaw dumps the ingested features as one GeoJSON-geometry line per
// feature. The dump is the recovery point when a later stage fails.
func (w *Writer) WriteRaw(records []geo.FeatureRecord) (string, error) {
	path := w.path("raw.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("sink: create %s: %w", path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	for _, rec := range records {
		geometry, err := geo.MarshalGeoJSON(rec.Polygon)
		if err != nil {
			return "", fmt.Errorf("sink: feature %s: %w", rec.ID, err)
		}
		line := rawLine{
			ID:       rec.ID,
			GridCode: rec.GridCode,
			AuxPct:   rec.AuxPct,
			CRS:      rec.CRS,
			Geometry: geometry,
		}
		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("sink: encode feature %s: %w", rec.ID, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return "", fmt.Errorf("sink: flush %s: %w", path, err)
	}

	w.logger.Info("raw dump written", "path", path, "features", len(records))
	return path, nil
}
