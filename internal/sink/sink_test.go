package sink

import (
	"archive/zip"
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dusk-indust/gridmerge/internal/dissolve"
	"github.com/dusk-indust/gridmerge/internal/geo"
)

func square(t *testing.T, x, y, size float64) *geom.Polygon {
	t.Helper()
	p, err := geo.NewPolygon([]geom.Coord{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	})
	require.NoError(t, err)
	return p
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return w
}

func TestWriterRunIDs(t *testing.T) {
	a := newTestWriter(t)
	b := newTestWriter(t)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestWriteRaw(t *testing.T) {
	w := newTestWriter(t)
	records := []geo.FeatureRecord{
		{ID: "kulstof2022.1", GridCode: 12, AuxPct: "6-12", Polygon: square(t, 0, 0, 1), CRS: "EPSG:25832"},
		{ID: "kulstof2022.2", GridCode: 60, Polygon: square(t, 5, 5, 2), CRS: "EPSG:25832"},
	}

	path, err := w.WriteRaw(records)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []rawLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line rawLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	assert.Equal(t, "kulstof2022.1", lines[0].ID)
	assert.Equal(t, 12, lines[0].GridCode)
	assert.Equal(t, "6-12", lines[0].AuxPct)
	assert.Equal(t, "EPSG:25832", lines[0].CRS)

	g, err := geo.UnmarshalGeoJSON(lines[1].Geometry)
	require.NoError(t, err)
	poly, ok := g.(*geom.Polygon)
	require.True(t, ok)
	assert.InDelta(t, 4.0, poly.Area(), 1e-9)
}

func TestWriteProcessed(t *testing.T) {
	w := newTestWriter(t)
	features := []dissolve.MergedFeature{
		{Geometry: square(t, 0, 0, 2), GridCode: 12, SourceCount: 3, Area: 4.0},
		{Geometry: square(t, 10, 10, 1), GridCode: 60, SourceCount: 1, Area: 1.0, Degraded: true},
	}

	path, err := w.WriteProcessed(features, "EPSG:25832")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, w.RunID(), fc.RunID)
	require.NotNil(t, fc.CRS)
	assert.Equal(t, "EPSG:25832", fc.CRS.Properties["name"])
	require.Len(t, fc.Features, 2)

	assert.Equal(t, 12, fc.Features[0].Properties.GridCode)
	assert.Equal(t, 3, fc.Features[0].Properties.SourceCount)
	assert.False(t, fc.Features[0].Properties.Degraded)
	assert.True(t, fc.Features[1].Properties.Degraded)
}

func TestWriteShapefile(t *testing.T) {
	w := newTestWriter(t)
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(t, 0, 0, 1)))
	require.NoError(t, mp.Push(square(t, 3, 3, 1)))

	features := []dissolve.MergedFeature{
		{Geometry: square(t, 0, 0, 2), GridCode: 12, SourceCount: 2, Area: 4.0},
		{Geometry: mp, GridCode: 60, SourceCount: 2, Area: 2.0},
	}

	path, err := w.WriteShapefile(features)
	require.NoError(t, err)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	dir := t.TempDir()
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.NoError(t, os.WriteFile(filepath.Join(dir, f.Name), content, 0o644))
	}
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		assert.FileExists(t, filepath.Join(dir, "merged"+ext))
	}

	// Every attribute write is checked, so the values must survive a
	// round trip through the dbf.
	reader, err := shp.Open(filepath.Join(dir, "merged.shp"))
	require.NoError(t, err)
	defer reader.Close()

	require.True(t, reader.Next())
	assert.Equal(t, "12", strings.TrimSpace(reader.ReadAttribute(0, 0)))
	assert.Equal(t, "2", strings.TrimSpace(reader.ReadAttribute(0, 1)))
	assert.Equal(t, "false", strings.TrimSpace(reader.ReadAttribute(0, 3)))
	require.True(t, reader.Next())
	assert.Equal(t, "60", strings.TrimSpace(reader.ReadAttribute(1, 0)))
}

func TestWriteShapefileEmpty(t *testing.T) {
	w := newTestWriter(t)
	_, err := w.WriteShapefile(nil)
	assert.Error(t, err)
}

func TestShapePolygonUnsupported(t *testing.T) {
	pt := geom.NewPoint(geom.XY)
	_, err := shapePolygon(pt)
	assert.ErrorContains(t, err, "unsupported geometry type")
}
