package grid

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sortedQuery(g *Grid, x, z, r float64) []string {
	ids := g.QueryRadius(x, z, r)
	sort.Strings(ids)
	return ids
}

func TestQueryRadiusBoundaryInclusive(t *testing.T) {
	g := New(10)
	g.Insert("near", 3, 4) // exactly 5 from origin
	g.Insert("far", 3, 4.1)

	assert.Equal(t, []string{"near"}, sortedQuery(g, 0, 0, 5))
	assert.Equal(t, []string{"far", "near"}, sortedQuery(g, 0, 0, 6))
}

func TestQuerySpansCells(t *testing.T) {
	g := New(10)
	// Neighbours on either side of a cell boundary.
	g.Insert("west", 9.5, 0)
	g.Insert("east", 10.5, 0)
	g.Insert("distant", 80, 80)

	assert.Equal(t, []string{"east", "west"}, sortedQuery(g, 10, 0, 2))
	assert.Equal(t, 3, g.Len())
}

func TestQueryNegativeCoordinates(t *testing.T) {
	g := New(10)
	g.Insert("sw", -145, -145)
	g.Insert("origin", 0, 0)

	assert.Equal(t, []string{"sw"}, sortedQuery(g, -144, -144, 3))
	assert.Empty(t, g.QueryRadius(-144, -144, 0.5))
}

func TestQueryRadiusZeroMatchesColocated(t *testing.T) {
	g := New(10)
	g.Insert("here", 1, 1)
	assert.Equal(t, []string{"here"}, sortedQuery(g, 1, 1, 0))
	assert.Empty(t, g.QueryRadius(1, 1, -1))
}

func TestQueryRadiusSet(t *testing.T) {
	g := New(10)
	g.Insert("a", 0, 0)
	g.Insert("b", 30, 0)

	set := g.QueryRadiusSet(0, 0, 10)
	_, hasA := set["a"]
	_, hasB := set["b"]
	assert.True(t, hasA)
	assert.False(t, hasB)
}

func TestResetEmptiesIndex(t *testing.T) {
	g := New(10)
	for i := 0; i < 50; i++ {
		g.Insert("x", float64(i), float64(i))
	}
	g.Reset()

	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.QueryRadius(25, 25, 100))

	// Rebuild after reset behaves like a fresh grid.
	g.Insert("y", 5, 5)
	assert.Equal(t, []string{"y"}, sortedQuery(g, 5, 5, 1))
}

func TestDefaultCellSize(t *testing.T) {
	g := New(0)
	g.Insert("a", 0, 0)
	assert.Equal(t, []string{"a"}, sortedQuery(g, 0, 0, 1))
}
