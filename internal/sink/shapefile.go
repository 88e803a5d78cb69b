package sink

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
)

var shapeFields = []shp.Field{
	shp.NumberField("GRIDCODE", 10),
	shp.NumberField("SRC_COUNT", 10),
	shp.FloatField("AREA", 19, 5),
	shp.StringField("DEGRADED", 5),
}

// WriteShapefile exports merged features as a zipped polygon shapefile.
// The .shp, .shx and .dbf components share the archive with a .prj-less
// layout; the CRS travels in the GeoJSON artifact instead.
func (w *Writer) WriteShapefile(features []dissolve.MergedFeature) (string, error) {
	if len(features) == 0 {
		return "", fmt.Errorf("sink: no features to export")
	}

	tempDir, err := os.MkdirTemp("", "gridmerge_shp_")
	if err != nil {
		return "", fmt.Errorf("sink: temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	shpPath := filepath.Join(tempDir, "merged.shp")
	if err := writeShapefile(shpPath, features); err != nil {
		return "", err
	}

	zipPath := w.path("merged_shp.zip")
	if err := zipShapefile(zipPath, shpPath); err != nil {
		return "", err
	}

	w.logger.Info("shapefile written", "path", zipPath, "features", len(features))
	return zipPath, nil
}

func writeShapefile(path string, features []dissolve.MergedFeature) error {
	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("sink: create shapefile: %w", err)
	}
	defer writer.Close()

	writer.SetFields(shapeFields)

	for i, mf := range features {
		polygon, err := shapePolygon(mf.Geometry)
		if err != nil {
			return fmt.Errorf("sink: feature %d: %w", i, err)
		}
		writer.Write(polygon)

		degraded := "false"
		if mf.Degraded {
			degraded = "true"
		}
		attrs := []interface{}{mf.GridCode, mf.SourceCount, mf.Area, degraded}
		for field, value := range attrs {
			if err := writer.WriteAttribute(i, field, value); err != nil {
				return fmt.Errorf("sink: feature %d attribute %s: %w", i, shapeFields[field].String(), err)
			}
		}
	}
	return nil
}

// shapePolygon flattens a polygon or multipolygon into the part-indexed
// point list the shapefile format uses.
func shapePolygon(g geom.T) (*shp.Polygon, error) {
	var rings [][]geom.Coord
	switch t := g.(type) {
	case *geom.Polygon:
		rings = t.Coords()
	case *geom.MultiPolygon:
		for _, poly := range t.Coords() {
			rings = append(rings, poly...)
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}

	polygon := &shp.Polygon{}
	for _, ring := range rings {
		polygon.Parts = append(polygon.Parts, int32(len(polygon.Points)))
		for _, c := range ring {
			polygon.Points = append(polygon.Points, shp.Point{X: c[0], Y: c[1]})
		}
	}
	polygon.NumParts = int32(len(polygon.Parts))
	polygon.NumPoints = int32(len(polygon.Points))
	polygon.Box = polygonBox(polygon.Points)
	return polygon, nil
}

func polygonBox(points []shp.Point) shp.Box {
	box := shp.Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		if p.X < box.MinX {
			box.MinX = p.X
		}
		if p.Y < box.MinY {
			box.MinY = p.Y
		}
		if p.X > box.MaxX {
			box.MaxX = p.X
		}
		if p.Y > box.MaxY {
			box.MaxY = p.Y
		}
	}
	return box
}

func zipShapefile(zipPath, shpPath string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", zipPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	base := strings.TrimSuffix(shpPath, ".shp")
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		content, err := os.ReadFile(base + ext)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("sink: read %s component: %w", ext, err)
		}
		entry, err := zw.Create("merged" + ext)
		if err != nil {
			return fmt.Errorf("sink: zip entry %s: %w", ext, err)
		}
		if _, err := entry.Write(content); err != nil {
			return fmt.Errorf("sink: zip write %s: %w", ext, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("sink: close zip: %w", err)
	}
	return nil
}
