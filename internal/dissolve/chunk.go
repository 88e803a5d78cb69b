package dissolve

import (
	"math"

	"github.com/twpayne/go-geos"
	"golang.org/x/sync/errgroup"
)

// chunkPlan describes the tiled execution strategy used above the memory
// threshold: the dataset is split into roughly square spatial tiles, each
// tile is dissolved independently under a bounded worker pool, and a final
// merge-of-merges pass reconciles components that straddle tile boundaries.
type chunkPlan struct {
	chunks  int
	overlap float64
	workers int
}

type tileBounds struct {
	minX, minY, maxX, maxY float64
}

func (t tileBounds) overlaps(b *geos.Box2D) bool {
	return t.minX <= b.MaxX && b.MinX <= t.maxX &&
		t.minY <= b.MaxY && b.MinY <= t.maxY
}

// dissolveTiled dissolves one code group tile by tile. The input items are
// consumed: every tile works on clones, so a polygon in an overlap margin
// participates in each tile it touches.
func (e *Engine) dissolveTiled(items []*item, plan *chunkPlan, res *Result) ([]*item, error) {
	tiles := planTiles(items, plan.chunks, plan.overlap)

	// Assign items to every tile their bbox overlaps. Margin duplicates are
	// intentional; the final pass merges them back.
	assigned := make([][]*item, len(tiles))
	for _, it := range items {
		b := it.g.Bounds()
		for ti, tile := range tiles {
			if tile.overlaps(b) {
				assigned[ti] = append(assigned[ti], cloneItem(it))
			}
		}
	}
	destroyItems(items)

	workers := plan.workers
	if workers < 1 {
		workers = 1
	}

	type tileOutcome struct {
		merged     []*item
		unresolved int
		degraded   int
	}
	outcomes := make([]tileOutcome, len(tiles))

	var g errgroup.Group
	g.SetLimit(workers)
	for ti := range tiles {
		if len(assigned[ti]) == 0 {
			continue
		}
		ti := ti
		g.Go(func() error {
			merged, unresolved, degraded := e.dissolveItems(assigned[ti])
			outcomes[ti] = tileOutcome{merged: merged, unresolved: unresolved, degraded: degraded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []*item
	for _, out := range outcomes {
		combined = append(combined, out.merged...)
		res.Unresolved += out.unresolved
		res.Degraded += out.degraded
	}

	// Merge-of-merges: duplicate geometries from overlap margins intersect
	// each other, so the contiguity pass folds them into one component and
	// the member-set union removes the double counting.
	final, unresolved, degraded := e.dissolveItems(combined)
	res.Unresolved += unresolved
	res.Degraded += degraded
	return final, nil
}

// planTiles splits the group's bounding box into a near-square grid of
// tiles, each expanded by the overlap margin.
func planTiles(items []*item, chunks int, overlap float64) []tileBounds {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, it := range items {
		b := it.g.Bounds()
		minX = math.Min(minX, b.MinX)
		minY = math.Min(minY, b.MinY)
		maxX = math.Max(maxX, b.MaxX)
		maxY = math.Max(maxY, b.MaxY)
	}
	if len(items) == 0 || minX > maxX {
		return nil
	}

	perSide := int(math.Ceil(math.Sqrt(float64(chunks))))
	if perSide < 1 {
		perSide = 1
	}
	width := (maxX - minX) / float64(perSide)
	height := (maxY - minY) / float64(perSide)

	tiles := make([]tileBounds, 0, perSide*perSide)
	for i := 0; i < perSide; i++ {
		for j := 0; j < perSide; j++ {
			tiles = append(tiles, tileBounds{
				minX: minX + float64(i)*width - overlap,
				minY: minY + float64(j)*height - overlap,
				maxX: minX + float64(i+1)*width + overlap,
				maxY: minY + float64(j+1)*height + overlap,
			})
		}
	}
	return tiles
}

func cloneItem(it *item) *item {
	members := make(map[int]struct{}, len(it.members))
	for m := range it.members {
		members[m] = struct{}{}
	}
	return &item{
		g:        it.g.Clone(),
		members:  members,
		vertices: it.vertices,
		degraded: it.degraded,
		srcIdx:   it.srcIdx,
	}
}
