package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"
)

// ToGeos converts a go-geom polygon into a GEOS geometry for predicate and
// union work. The caller owns the returned geometry and must Destroy it.
func ToGeos(p *geom.Polygon) (*geos.Geom, error) {
	if p == nil {
		return nil, errors.New("geo: nil polygon")
	}
	coords := p.Coords()
	rings := make([][][]float64, 0, len(coords))
	for _, ring := range coords {
		r := make([][]float64, 0, len(ring))
		for _, c := range ring {
			r = append(r, []float64{c[0], c[1]})
		}
		rings = append(rings, r)
	}
	g := geos.NewPolygon(rings)
	if g == nil {
		return nil, errors.New("geo: GEOS rejected polygon coordinates")
	}
	return g, nil
}

// FromGeos converts a GEOS polygon or multipolygon back into the go-geom
// representation. Point and line results (from degenerate unions) are
// rejected.
func FromGeos(g *geos.Geom) (geom.T, error) {
	if g == nil {
		return nil, errors.New("geo: nil GEOS geometry")
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return polygonFromGeos(g)
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < g.NumGeometries(); i++ {
			sub := g.Geometry(i)
			if sub.TypeID() != geos.TypeIDPolygon {
				// Unions of valid polygons only produce polygonal parts;
				// anything else is a degenerate sliver we drop.
				continue
			}
			p, err := polygonFromGeos(sub)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(p); err != nil {
				return nil, fmt.Errorf("geo: assemble multipolygon: %w", err)
			}
		}
		if mp.NumPolygons() == 0 {
			return nil, errors.New("geo: GEOS geometry has no polygonal parts")
		}
		if mp.NumPolygons() == 1 {
			return mp.Polygon(0), nil
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("geo: unsupported GEOS type %d", g.TypeID())
	}
}

func polygonFromGeos(g *geos.Geom) (*geom.Polygon, error) {
	rings := make([][]geom.Coord, 0, 1+g.NumInteriorRings())
	ext, err := ringCoords(g.ExteriorRing())
	if err != nil {
		return nil, err
	}
	rings = append(rings, ext)
	for i := 0; i < g.NumInteriorRings(); i++ {
		r, err := ringCoords(g.InteriorRing(i))
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}

	p := geom.NewPolygon(geom.XY)
	if _, err := p.SetCoords(rings); err != nil {
		return nil, fmt.Errorf("geo: polygon from GEOS: %w", err)
	}
	return p, nil
}

func ringCoords(ring *geos.Geom) ([]geom.Coord, error) {
	if ring == nil {
		return nil, errors.New("geo: nil GEOS ring")
	}
	seq := ring.CoordSeq()
	if seq == nil {
		return nil, errors.New("geo: GEOS ring has no coordinate sequence")
	}
	coords := make([]geom.Coord, 0, seq.Size())
	for i := 0; i < seq.Size(); i++ {
		coords = append(coords, geom.Coord{seq.X(i), seq.Y(i)})
	}
	return coords, nil
}
