// Package geo holds the feature data model shared by the ingest and merge
// stages, plus the codec that moves polygons between the GML wire format,
// the in-memory go-geom representation, and the GEOS engine used for
// dissolve operations.
package geo

import (
	"github.com/twpayne/go-geom"
)

// FeatureRecord is one parsed source feature. Records are produced by the
// batch fetcher and immutable afterward.
type FeatureRecord struct {
	// ID is the source feature identifier (gml:id).
	ID string

	// GridCode is the classification code used as the dissolve grouping key.
	GridCode int

	// AuxPct is the auxiliary percentage attribute, empty when the source
	// feature does not carry one.
	AuxPct string

	// Polygon is the feature geometry. Always closed: the codec appends the
	// first vertex when the source ring is open.
	Polygon *geom.Polygon

	// CRS is the coordinate reference system the coordinates are expressed
	// in (e.g. "EPSG:25832").
	CRS string
}

// VertexCount returns the number of vertices across all rings of the
// feature's polygon. Used for working-set estimation.
func (f FeatureRecord) VertexCount() int {
	if f.Polygon == nil {
		return 0
	}
	return len(f.Polygon.FlatCoords()) / f.Polygon.Stride()
}
