package volumeset

import (
	"math"
	"slices"

	"github.com/aukilabs/spatialid/geometry"
	"github.com/aukilabs/spatialid/spatialid"
	"github.com/aukilabs/spatialid/tilemath"
)

// gridIndex is a uniform grid over the tiles of a single zoom level. The
// zoom is the coarsest zoom of the indexed volumes so that every volume
// falls in exactly one cell: the tile of its ancestor at that zoom.
type gridIndex struct {
	zoom    uint8
	cells   map[tilemath.Tile][]int
	regions []geometry.Region
}

func newGridIndex(ids []spatialid.ID, regions []geometry.Region) *gridIndex {
	idx := &gridIndex{
		zoom:    spatialid.MaxZoom,
		cells:   make(map[tilemath.Tile][]int),
		regions: regions,
	}

	for _, id := range ids {
		idx.zoom = min(idx.zoom, id.Z)
	}

	for i, id := range ids {
		ancestor, _ := id.Ancestor(idx.zoom)
		cell := tilemath.TileOf(ancestor)
		idx.cells[cell] = append(idx.cells[cell], i)
	}
	return idx
}

// search returns the sorted positions of the regions intersecting q.
func (idx *gridIndex) search(q geometry.Region) []int {
	if !isFinite(q.West, q.South, q.East, q.North, q.MinHeight, q.MaxHeight) {
		return nil
	}

	if q.West <= q.East {
		return idx.searchPart(q)
	}

	east := q
	east.East = math.Pi
	west := q
	west.West = -math.Pi

	res := append(idx.searchPart(east), idx.searchPart(west)...)
	slices.Sort(res)
	return slices.Compact(res)
}

func (idx *gridIndex) searchPart(q geometry.Region) []int {
	q.West = math.Max(q.West, -math.Pi)
	q.East = math.Min(q.East, math.Pi)

	nw, err := tilemath.TileAt(q.West, tilemath.ClampLatitude(q.North), idx.zoom)
	if err != nil {
		return nil
	}
	se, err := tilemath.TileAt(q.East, tilemath.ClampLatitude(q.South), idx.zoom)
	if err != nil {
		return nil
	}

	if se.X < nw.X || se.Y < nw.Y {
		return nil
	}

	var res []int
	cellCount := (uint64(se.X-nw.X) + 1) * (uint64(se.Y-nw.Y) + 1)
	if cellCount > uint64(len(idx.regions)) {
		for i, r := range idx.regions {
			if r.Intersects(q) {
				res = append(res, i)
			}
		}
		return res
	}

	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			for _, i := range idx.cells[tilemath.Tile{Z: idx.zoom, X: x, Y: y}] {
				if idx.regions[i].Intersects(q) {
					res = append(res, i)
				}
			}
		}
	}

	slices.Sort(res)
	return res
}

func isFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
