package grid

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewValidatesDimensions(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Width: 5, Height: 5}, true},
		{"zero width", Config{Width: 0, Height: 5}, false},
		{"negative height", Config{Width: 5, Height: -1}, false},
		{"bad metric", Config{Width: 5, Height: 5, Metric: "euclidean"}, false},
		{"manhattan", Config{Width: 5, Height: 5, Metric: MetricManhattan}, true},
	}
	for _, tc := range cases {
		_, err := New(tc.cfg)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestPlaceOutOfBounds(t *testing.T) {
	g, err := New(Config{Width: 3, Height: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, c := range []Coord{{X: -1, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}} {
		if err := g.Place(1, c); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("place at (%d,%d): expected ErrOutOfBounds, got %v", c.X, c.Y, err)
		}
	}
	if _, ok := g.PositionOf(1); ok {
		t.Fatal("failed placement must not register the agent")
	}
}

func TestPlaceMovesSingleOccupancy(t *testing.T) {
	g, err := New(Config{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := g.Place(7, Coord{X: 1, Y: 1}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := g.Place(7, Coord{X: 2, Y: 3}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := g.CellAgents(Coord{X: 1, Y: 1}); len(got) != 0 {
		t.Fatalf("old cell still occupied: %v", got)
	}
	pos, ok := g.PositionOf(7)
	if !ok || pos != (Coord{X: 2, Y: 3}) {
		t.Fatalf("unexpected position: %v ok=%t", pos, ok)
	}
}

func TestCellmatesExcludesSelf(t *testing.T) {
	g, err := New(Config{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, id := range []int{3, 1, 2} {
		if err := g.Place(id, Coord{X: 0, Y: 0}); err != nil {
			t.Fatalf("place %d: %v", id, err)
		}
	}
	got := g.CellmatesOf(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected cellmates: %v", got)
	}
}

func TestNeighborsChebyshevAndManhattan(t *testing.T) {
	chebyshev, err := New(Config{Width: 5, Height: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	manhattan, err := New(Config{Width: 5, Height: 5, Metric: MetricManhattan})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// Diagonal neighbor at Chebyshev distance 1, Manhattan distance 2.
	for _, g := range []*Grid{chebyshev, manhattan} {
		if err := g.Place(1, Coord{X: 2, Y: 2}); err != nil {
			t.Fatalf("place: %v", err)
		}
		if err := g.Place(2, Coord{X: 3, Y: 3}); err != nil {
			t.Fatalf("place: %v", err)
		}
	}
	if got := chebyshev.Neighbors(Coord{X: 2, Y: 2}, 1); len(got) != 2 {
		t.Fatalf("chebyshev radius 1: expected both agents, got %v", got)
	}
	if got := manhattan.Neighbors(Coord{X: 2, Y: 2}, 1); len(got) != 1 || got[0] != 1 {
		t.Fatalf("manhattan radius 1: expected only center agent, got %v", got)
	}
	if got := manhattan.Neighbors(Coord{X: 2, Y: 2}, 2); len(got) != 2 {
		t.Fatalf("manhattan radius 2: expected both agents, got %v", got)
	}
}

func TestNeighborsWrapOnTorus(t *testing.T) {
	g, err := New(Config{Width: 4, Height: 4, Torus: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := g.Place(1, Coord{X: 0, Y: 0}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := g.Place(2, Coord{X: 3, Y: 3}); err != nil {
		t.Fatalf("place: %v", err)
	}
	got := g.Neighbors(Coord{X: 0, Y: 0}, 1)
	if len(got) != 2 {
		t.Fatalf("expected wraparound neighbor, got %v", got)
	}
}

func TestRandomCellNearDeterministicAndBounded(t *testing.T) {
	g, err := New(Config{Width: 5, Height: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	origin := Coord{X: 0, Y: 0}
	for i := 0; i < 100; i++ {
		ca := g.RandomCellNear(a, origin, 2)
		cb := g.RandomCellNear(b, origin, 2)
		if ca != cb {
			t.Fatalf("same seed diverged at draw %d: %v vs %v", i, ca, cb)
		}
		if !g.Contains(ca) {
			t.Fatalf("candidate outside lattice: %v", ca)
		}
		if ca.X > 2 || ca.Y > 2 {
			t.Fatalf("candidate outside step box from corner: %v", ca)
		}
	}
}

func TestRandomCellNearZeroStepStays(t *testing.T) {
	g, err := New(Config{Width: 5, Height: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	at := Coord{X: 2, Y: 2}
	if got := g.RandomCellNear(rng, at, 0); got != at {
		t.Fatalf("zero step size must not move: %v", got)
	}
}
