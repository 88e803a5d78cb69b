package dissolve

import (
	"errors"

	"github.com/twpayne/go-geos"
)

// ErrUnresolvableGeometry marks a component whose union stayed invalid after
// repair. The component's members pass through undissolved instead of being
// dropped.
var ErrUnresolvableGeometry = errors.New("dissolve: union produced unresolvable geometry")

// cascadedUnion unions geometries by divide and conquer, which keeps
// intermediate results small compared to a left fold. Input geometries are
// never consumed; intermediates are destroyed eagerly to bound memory.
func cascadedUnion(geoms []*geos.Geom) *geos.Geom {
	if len(geoms) == 1 {
		return geoms[0].Clone()
	}
	mid := len(geoms) / 2
	left := cascadedUnion(geoms[:mid])
	right := cascadedUnion(geoms[mid:])

	result := left.Union(right)
	left.Destroy()
	right.Destroy()
	return result
}

// unionComponent dissolves a component's member geometries into one
// geometry. Numerically degenerate unions are repaired with a zero-width
// buffer, then with MakeValid; a result that is still invalid is
// unresolvable.
func unionComponent(geoms []*geos.Geom) (*geos.Geom, error) {
	result := cascadedUnion(geoms)
	if result == nil {
		return nil, ErrUnresolvableGeometry
	}
	if result.IsValid() && !result.IsEmpty() {
		return result, nil
	}

	repaired := result.Buffer(0, 8)
	result.Destroy()
	if repaired != nil && repaired.IsValid() && !repaired.IsEmpty() {
		return repaired, nil
	}
	if repaired == nil {
		return nil, ErrUnresolvableGeometry
	}

	valid := repaired.MakeValid()
	repaired.Destroy()
	if valid == nil || !valid.IsValid() || valid.IsEmpty() {
		if valid != nil {
			valid.Destroy()
		}
		return nil, ErrUnresolvableGeometry
	}
	return valid, nil
}

// hullMerge is the degraded fallback for components too large to union
// within the vertex budget: the convex hull of the member collection, a
// cheap over-approximation that keeps the run alive.
func hullMerge(geoms []*geos.Geom) (*geos.Geom, error) {
	clones := make([]*geos.Geom, len(geoms))
	for i, g := range geoms {
		clones[i] = g.Clone()
	}
	coll := geos.NewCollection(geos.TypeIDGeometryCollection, clones)
	if coll == nil {
		return nil, ErrUnresolvableGeometry
	}
	hull := coll.ConvexHull()
	coll.Destroy()
	if hull == nil || hull.IsEmpty() {
		if hull != nil {
			hull.Destroy()
		}
		return nil, ErrUnresolvableGeometry
	}
	return hull, nil
}
