package grid

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Metric selects the neighborhood distance function.
type Metric string

const (
	MetricChebyshev Metric = "chebyshev"
	MetricManhattan Metric = "manhattan"
)

// ErrOutOfBounds reports a placement outside the lattice. It indicates a
// movement-rule bug in the caller and is never silently clamped.
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// Coord is a cell coordinate on the lattice.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Config struct {
	Width  int
	Height int
	Torus  bool
	Metric Metric
}

// Grid is a 2D lattice of cells, each holding zero or more agents. An agent
// occupies exactly one cell at a time; the position index and the cell
// occupancy sets are kept in lockstep.
type Grid struct {
	cfg       Config
	cells     map[Coord]map[int]struct{}
	positions map[int]Coord
}

func New(cfg Config) (*Grid, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive: %dx%d", cfg.Width, cfg.Height)
	}
	switch cfg.Metric {
	case "":
		cfg.Metric = MetricChebyshev
	case MetricChebyshev, MetricManhattan:
	default:
		return nil, fmt.Errorf("unsupported grid metric: %s", cfg.Metric)
	}
	return &Grid{
		cfg:       cfg,
		cells:     make(map[Coord]map[int]struct{}),
		positions: make(map[int]Coord),
	}, nil
}

func (g *Grid) Width() int  { return g.cfg.Width }
func (g *Grid) Height() int { return g.cfg.Height }
func (g *Grid) Torus() bool { return g.cfg.Torus }

func (g *Grid) Contains(c Coord) bool {
	return c.X >= 0 && c.X < g.cfg.Width && c.Y >= 0 && c.Y < g.cfg.Height
}

// Place registers the agent in the given cell, removing any prior
// registration for that agent. Fails with ErrOutOfBounds for coordinates
// outside [0,width)x[0,height).
func (g *Grid) Place(id int, c Coord) error {
	if !g.Contains(c) {
		return fmt.Errorf("place agent %d at (%d,%d): %w", id, c.X, c.Y, ErrOutOfBounds)
	}
	if prev, ok := g.positions[id]; ok {
		g.removeFromCell(id, prev)
	}
	cell := g.cells[c]
	if cell == nil {
		cell = make(map[int]struct{})
		g.cells[c] = cell
	}
	cell[id] = struct{}{}
	g.positions[id] = c
	return nil
}

func (g *Grid) Remove(id int) {
	if c, ok := g.positions[id]; ok {
		g.removeFromCell(id, c)
		delete(g.positions, id)
	}
}

func (g *Grid) removeFromCell(id int, c Coord) {
	if cell := g.cells[c]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, c)
		}
	}
}

func (g *Grid) PositionOf(id int) (Coord, bool) {
	c, ok := g.positions[id]
	return c, ok
}

// CellAgents returns the agents occupying the cell in ascending ID order.
func (g *Grid) CellAgents(c Coord) []int {
	cell := g.cells[c]
	if len(cell) == 0 {
		return nil
	}
	ids := make([]int, 0, len(cell))
	for id := range cell {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CellmatesOf returns the agents sharing the given agent's cell, excluding
// the agent itself, in ascending ID order.
func (g *Grid) CellmatesOf(id int) []int {
	c, ok := g.positions[id]
	if !ok {
		return nil
	}
	all := g.CellAgents(c)
	out := all[:0]
	for _, other := range all {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}

// Neighbors returns the agents in cells within the configured metric
// distance of c, including c itself, in ascending ID order.
func (g *Grid) Neighbors(c Coord, radius int) []int {
	if radius < 0 {
		return nil
	}
	var ids []int
	seen := make(map[Coord]struct{})
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if g.cfg.Metric == MetricManhattan && abs(dx)+abs(dy) > radius {
				continue
			}
			target, ok := g.resolve(Coord{X: c.X + dx, Y: c.Y + dy})
			if !ok {
				continue
			}
			// On a torus a large radius can wrap onto the same cell twice.
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			for id := range g.cells[target] {
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids
}

// RandomCell returns a uniformly sampled coordinate, deterministic given a
// seeded random source.
func (g *Grid) RandomCell(rng *rand.Rand) Coord {
	return Coord{X: rng.Intn(g.cfg.Width), Y: rng.Intn(g.cfg.Height)}
}

// RandomCellNear returns a uniformly sampled coordinate within Chebyshev
// distance maxStep of c. On a bounded grid the candidate range is the
// intersection of the step box with the lattice; on a torus it wraps.
func (g *Grid) RandomCellNear(rng *rand.Rand, c Coord, maxStep int) Coord {
	if maxStep <= 0 {
		return c
	}
	if g.cfg.Torus {
		x := wrap(c.X+rng.Intn(2*maxStep+1)-maxStep, g.cfg.Width)
		y := wrap(c.Y+rng.Intn(2*maxStep+1)-maxStep, g.cfg.Height)
		return Coord{X: x, Y: y}
	}
	xLo, xHi := clampRange(c.X, maxStep, g.cfg.Width)
	yLo, yHi := clampRange(c.Y, maxStep, g.cfg.Height)
	return Coord{
		X: xLo + rng.Intn(xHi-xLo+1),
		Y: yLo + rng.Intn(yHi-yLo+1),
	}
}

// resolve maps a raw coordinate to a lattice cell, wrapping on a torus and
// rejecting out-of-range coordinates on a bounded grid.
func (g *Grid) resolve(c Coord) (Coord, bool) {
	if g.cfg.Torus {
		return Coord{X: wrap(c.X, g.cfg.Width), Y: wrap(c.Y, g.cfg.Height)}, true
	}
	if !g.Contains(c) {
		return Coord{}, false
	}
	return c, true
}

func clampRange(center, radius, limit int) (int, int) {
	lo := center - radius
	if lo < 0 {
		lo = 0
	}
	hi := center + radius
	if hi > limit-1 {
		hi = limit - 1
	}
	return lo, hi
}

func wrap(v, limit int) int {
	v %= limit
	if v < 0 {
		v += limit
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
