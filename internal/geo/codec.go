package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrDegenerateRing is returned when a coordinate list has fewer than three
// distinct vertices and cannot form a polygon ring.
var ErrDegenerateRing = errors.New("geo: ring has fewer than 3 distinct vertices")

// ParsePosList parses a flat GML posList ("x1 y1 x2 y2 ...") into a closed
// exterior ring. The ring is closed by appending the first vertex when the
// source omits the closing vertex.
func ParsePosList(posList string) ([]geom.Coord, error) {
	fields := strings.Fields(posList)
	if len(fields) == 0 {
		return nil, errors.New("geo: empty posList")
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("geo: posList has odd coordinate count %d", len(fields))
	}

	ring := make([]geom.Coord, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("geo: bad x ordinate %q: %w", fields[i], err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("geo: bad y ordinate %q: %w", fields[i+1], err)
		}
		ring = append(ring, geom.Coord{x, y})
	}

	ring = CloseRing(ring)
	if distinctVertices(ring) < 3 {
		return nil, ErrDegenerateRing
	}
	return ring, nil
}

// CloseRing appends the first vertex to the ring when the first and last
// vertices differ. Already-closed rings are returned unchanged.
func CloseRing(ring []geom.Coord) []geom.Coord {
	if len(ring) < 3 {
		return ring
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] == last[0] && first[1] == last[1] {
		return ring
	}
	return append(ring, geom.Coord{first[0], first[1]})
}

// NewPolygon builds an XY polygon from an exterior ring and optional
// interior rings. Each ring must already be closed.
func NewPolygon(exterior []geom.Coord, interiors ...[]geom.Coord) (*geom.Polygon, error) {
	rings := make([][]geom.Coord, 0, 1+len(interiors))
	rings = append(rings, exterior)
	rings = append(rings, interiors...)

	p := geom.NewPolygon(geom.XY)
	if _, err := p.SetCoords(rings); err != nil {
		return nil, fmt.Errorf("geo: build polygon: %w", err)
	}
	return p, nil
}

// MarshalGeoJSON serializes any supported geometry to its GeoJSON encoding.
func MarshalGeoJSON(g geom.T) ([]byte, error) {
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("geo: marshal geojson: %w", err)
	}
	return data, nil
}

// UnmarshalGeoJSON parses a GeoJSON geometry document.
func UnmarshalGeoJSON(data []byte) (geom.T, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("geo: unmarshal geojson: %w", err)
	}
	return g, nil
}

func distinctVertices(ring []geom.Coord) int {
	seen := make(map[[2]float64]struct{}, len(ring))
	for _, c := range ring {
		seen[[2]float64{c[0], c[1]}] = struct{}{}
	}
	return len(seen)
}
