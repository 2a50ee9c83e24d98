// Package grid provides the uniform spatial index used for proximity
// queries. It is rebuilt from scratch every tick; with a bounded population
// a full rebuild is cheaper and safer than incremental bookkeeping.
package grid

import "math"

const DefaultCellSize = 10.0

type cellKey struct{ cx, cz int }

type entry struct {
	id   string
	x, z float64
}

type Grid struct {
	cellSize float64
	cells    map[cellKey][]entry
	count    int
}

func New(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{cellSize: cellSize, cells: make(map[cellKey][]entry)}
}

// Reset empties the grid keeping cell slice capacity for the next rebuild.
func (g *Grid) Reset() {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	g.count = 0
}

func (g *Grid) Insert(id string, x, z float64) {
	k := g.keyFor(x, z)
	g.cells[k] = append(g.cells[k], entry{id: id, x: x, z: z})
	g.count++
}

func (g *Grid) Len() int { return g.count }

func (g *Grid) keyFor(x, z float64) cellKey {
	return cellKey{
		cx: int(math.Floor(x / g.cellSize)),
		cz: int(math.Floor(z / g.cellSize)),
	}
}

// QueryRadius returns the ids of all entries within r of (x, z). Cells whose
// bounding box intersects the disc are scanned, then exact distance filters.
func (g *Grid) QueryRadius(x, z, r float64) []string {
	if r < 0 {
		return nil
	}
	var out []string
	g.scan(x, z, r, func(id string) { out = append(out, id) })
	return out
}

// QueryRadiusSet is QueryRadius with set semantics, for membership tests.
func (g *Grid) QueryRadiusSet(x, z, r float64) map[string]struct{} {
	out := make(map[string]struct{})
	if r < 0 {
		return out
	}
	g.scan(x, z, r, func(id string) { out[id] = struct{}{} })
	return out
}

func (g *Grid) scan(x, z, r float64, visit func(string)) {
	r2 := r * r
	cx0 := int(math.Floor((x - r) / g.cellSize))
	cx1 := int(math.Floor((x + r) / g.cellSize))
	cz0 := int(math.Floor((z - r) / g.cellSize))
	cz1 := int(math.Floor((z + r) / g.cellSize))
	for cx := cx0; cx <= cx1; cx++ {
		for cz := cz0; cz <= cz1; cz++ {
			for _, e := range g.cells[cellKey{cx, cz}] {
				dx, dz := e.x-x, e.z-z
				if dx*dx+dz*dz <= r2 {
					visit(e.id)
				}
			}
		}
	}
}
