package dissolve

import (
	"fmt"
	"log/slog"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"

	"github.com/dusk-indust/gridmerge/internal/geo"
)

// ContiguityPolicy selects the adjacency test between same-class polygons.
type ContiguityPolicy string

const (
	// ContiguityQueen treats polygons as neighbors when their boundaries
	// share at least one point (edge or vertex).
	ContiguityQueen ContiguityPolicy = "queen"

	// ContiguityEdge requires a shared boundary of non-zero length; corner
	// touches do not connect.
	ContiguityEdge ContiguityPolicy = "edge"
)

// MergedFeature is one output polygon: either the dissolve of a connected
// component or a passthrough of a single input feature.
type MergedFeature struct {
	Geometry geom.T
	GridCode int

	// SourceCount is the number of input features dissolved into this one.
	// A count of one means the geometry equals the original input polygon.
	SourceCount int

	Area float64

	// Degraded is set when the component exceeded the vertex budget and was
	// merged with the hull fallback instead of an exact union.
	Degraded bool
}

// CodeStats is the per-classification-code input/output breakdown.
type CodeStats struct {
	Input  int
	Output int
}

// Result is the merge engine's output for one run.
type Result struct {
	Features []MergedFeature

	// Unresolved counts components whose union stayed invalid after repair;
	// their members passed through undissolved.
	Unresolved int

	// Degraded counts components merged with the hull fallback.
	Degraded int

	PerCode map[int]CodeStats
}

// Engine dissolves contiguous same-code polygons.
type Engine struct {
	// Codes is the allow-list of mergeable classification codes. Features
	// with other codes pass through unmodified as singletons.
	Codes map[int]bool

	// Policy is the contiguity test; defaults to queen.
	Policy ContiguityPolicy

	// VertexBudget bounds the total vertex count a component may carry into
	// an exact union; above it the hull fallback applies. Zero disables the
	// budget.
	VertexBudget int

	Logger *slog.Logger
}

// item is the engine's working unit: a GEOS geometry plus the set of source
// record indices it covers. Per-tile outputs and final-pass inputs share
// this shape, so the merge-of-merges pass is the same code as the per-tile
// dissolve.
type item struct {
	g        *geos.Geom
	members  map[int]struct{}
	vertices int
	degraded bool

	// srcIdx is the record index when the item is an untouched single
	// feature, -1 otherwise. Lets singletons emit the original polygon.
	srcIdx int
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) policy() ContiguityPolicy {
	if e.Policy == "" {
		return ContiguityQueen
	}
	return e.Policy
}

// Dissolve runs the engine in one pass over the whole dataset. Suitable
// below the coordinator's memory threshold.
func (e *Engine) Dissolve(records []geo.FeatureRecord) (*Result, error) {
	return e.run(records, nil)
}

// DissolveChunked runs the engine per spatial tile and reconciles tile
// outputs with a final merge-of-merges pass. Tiles are expanded by the
// overlap margin so boundary-straddling polygons land in every tile they
// touch; the final pass merges the resulting duplicates because duplicate
// geometries are mutually adjacent and their member sets union away the
// double counting.
func (e *Engine) DissolveChunked(records []geo.FeatureRecord, chunks int, overlap float64, workers int) (*Result, error) {
	if chunks < 1 {
		chunks = 1
	}
	plan := &chunkPlan{chunks: chunks, overlap: overlap, workers: workers}
	return e.run(records, plan)
}

func (e *Engine) run(records []geo.FeatureRecord, plan *chunkPlan) (*Result, error) {
	res := &Result{PerCode: make(map[int]CodeStats)}

	byCode := make(map[int][]int)
	for i, rec := range records {
		byCode[rec.GridCode] = append(byCode[rec.GridCode], i)
	}

	for code, indices := range byCode {
		stats := CodeStats{Input: len(indices)}

		if !e.Codes[code] {
			for _, i := range indices {
				res.Features = append(res.Features, passthrough(records[i]))
			}
			stats.Output = len(indices)
			res.PerCode[code] = stats
			continue
		}

		items, err := e.buildItems(records, indices)
		if err != nil {
			return nil, err
		}

		var merged []*item
		if plan == nil {
			var unresolved, degraded int
			merged, unresolved, degraded = e.dissolveItems(items)
			res.Unresolved += unresolved
			res.Degraded += degraded
		} else {
			merged, err = e.dissolveTiled(items, plan, res)
			if err != nil {
				destroyItems(items)
				return nil, err
			}
		}

		for _, it := range merged {
			mf, err := e.finalize(records, it, code)
			if err != nil {
				destroyItems(merged)
				return nil, err
			}
			res.Features = append(res.Features, mf)
		}
		stats.Output = len(merged)
		res.PerCode[code] = stats
		destroyItems(merged)
	}
	return res, nil
}

// buildItems converts the group's records into working items. Records whose
// geometry GEOS rejects pass through later as singletons via srcIdx.
func (e *Engine) buildItems(records []geo.FeatureRecord, indices []int) ([]*item, error) {
	items := make([]*item, 0, len(indices))
	for _, i := range indices {
		g, err := geo.ToGeos(records[i].Polygon)
		if err != nil {
			destroyItems(items)
			return nil, fmt.Errorf("dissolve: feature %q: %w", records[i].ID, err)
		}
		items = append(items, &item{
			g:        g,
			members:  map[int]struct{}{i: {}},
			vertices: records[i].VertexCount(),
			srcIdx:   i,
		})
	}
	return items, nil
}

// dissolveItems is the core pass: contiguity graph over the items, connected
// components, one merged item per component. It consumes the input items
// (merged components' geometries are destroyed; passthrough items are
// reused).
func (e *Engine) dissolveItems(items []*item) (merged []*item, unresolved, degraded int) {
	if len(items) <= 1 {
		return items, 0, 0
	}

	geoms := make([]*geos.Geom, len(items))
	for i, it := range items {
		geoms[i] = it.g
	}

	index := newSpatialIndex(geoms)
	uf := newUnionFind(len(items))
	for i := range items {
		for _, j := range index.candidates(i) {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if e.adjacent(geoms[i], geoms[j]) {
				uf.union(i, j)
			}
		}
	}

	for _, comp := range uf.components() {
		if len(comp) == 1 {
			merged = append(merged, items[comp[0]])
			continue
		}

		members := make(map[int]struct{})
		compGeoms := make([]*geos.Geom, 0, len(comp))
		vertices := 0
		anyDegraded := false
		for _, idx := range comp {
			compGeoms = append(compGeoms, items[idx].g)
			vertices += items[idx].vertices
			anyDegraded = anyDegraded || items[idx].degraded
			for m := range items[idx].members {
				members[m] = struct{}{}
			}
		}

		var (
			g   *geos.Geom
			err error
		)
		useHull := e.VertexBudget > 0 && vertices > e.VertexBudget
		if useHull {
			g, err = hullMerge(compGeoms)
			if err == nil {
				degraded++
				e.logger().Warn("component exceeded vertex budget, merged by hull",
					"members", len(comp), "vertices", vertices, "budget", e.VertexBudget)
			}
		} else {
			g, err = unionComponent(compGeoms)
		}
		if err != nil {
			// Unresolvable: members pass through undissolved rather than
			// being dropped.
			unresolved++
			e.logger().Warn("component union unresolvable, passing members through",
				"members", len(comp), "error", err)
			merged = append(merged, collect(items, comp)...)
			continue
		}

		for _, idx := range comp {
			items[idx].g.Destroy()
		}
		merged = append(merged, &item{
			g:        g,
			members:  members,
			vertices: geosVertexCount(g),
			degraded: useHull || anyDegraded,
			srcIdx:   -1,
		})
	}
	return merged, unresolved, degraded
}

// adjacent applies the configured contiguity test to an index-confirmed
// candidate pair.
func (e *Engine) adjacent(a, b *geos.Geom) bool {
	switch e.policy() {
	case ContiguityEdge:
		inter := a.Intersection(b)
		if inter == nil {
			return false
		}
		defer inter.Destroy()
		return hasLinealPart(inter)
	default:
		return a.Intersects(b)
	}
}

// hasLinealPart reports whether a geometry contains any part of dimension
// one or higher. Point-only intersections fail the edge policy.
func hasLinealPart(g *geos.Geom) bool {
	switch g.TypeID() {
	case geos.TypeIDPoint, geos.TypeIDMultiPoint:
		return false
	case geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			if hasLinealPart(g.Geometry(i)) {
				return true
			}
		}
		return false
	default:
		return !g.IsEmpty()
	}
}

// finalize converts a working item into a MergedFeature. Untouched single
// features emit their original polygon so a no-op dissolve is exact.
func (e *Engine) finalize(records []geo.FeatureRecord, it *item, code int) (MergedFeature, error) {
	if len(it.members) == 1 && it.srcIdx >= 0 && !it.degraded {
		return passthrough(records[it.srcIdx]), nil
	}

	g, err := geo.FromGeos(it.g)
	if err != nil {
		return MergedFeature{}, fmt.Errorf("dissolve: convert merged geometry: %w", err)
	}
	return MergedFeature{
		Geometry:    g,
		GridCode:    code,
		SourceCount: len(it.members),
		Area:        it.g.Area(),
		Degraded:    it.degraded,
	}, nil
}

func passthrough(rec geo.FeatureRecord) MergedFeature {
	return MergedFeature{
		Geometry:    rec.Polygon,
		GridCode:    rec.GridCode,
		SourceCount: 1,
		Area:        rec.Polygon.Area(),
	}
}

func collect(items []*item, indices []int) []*item {
	out := make([]*item, 0, len(indices))
	for _, i := range indices {
		out = append(out, items[i])
	}
	return out
}

func destroyItems(items []*item) {
	for _, it := range items {
		if it.g != nil {
			it.g.Destroy()
			it.g = nil
		}
	}
}

func geosVertexCount(g *geos.Geom) int {
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		n := g.ExteriorRing().CoordSeq().Size()
		for i := 0; i < g.NumInteriorRings(); i++ {
			n += g.InteriorRing(i).CoordSeq().Size()
		}
		return n
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		n := 0
		for i := 0; i < g.NumGeometries(); i++ {
			n += geosVertexCount(g.Geometry(i))
		}
		return n
	default:
		seq := g.CoordSeq()
		if seq == nil {
			return 0
		}
		return seq.Size()
	}
}
