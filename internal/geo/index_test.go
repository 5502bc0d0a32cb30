package geo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offsetNorth сдвигает точку на заданное число метров к северу.
func offsetNorth(p Point, meters float64) Point {
	return Point{Longitude: p.Longitude, Latitude: p.Latitude + toDegrees(meters/EarthRadiusMeters)}
}

func TestIndex_WithinFiltersByRadiusAndSorts(t *testing.T) {
	center := Point{Longitude: 80.27, Latitude: 13.08}
	ix := NewIndex[string](0)

	ix.Insert("far", offsetNorth(center, 5000))
	ix.Insert("mid", offsetNorth(center, 3000))
	ix.Insert("near", offsetNorth(center, 200))

	hits := ix.Within(center, 1000, nil, nil)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].Key)

	hits = ix.Within(center, 10000, nil, nil)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"near", "mid", "far"}, keys(hits))
	for i := 1; i < len(hits); i++ {
		assert.Less(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestIndex_TieBreakAndFilter(t *testing.T) {
	center := Point{Longitude: 0, Latitude: 0}
	same := offsetNorth(center, 100)
	ix := NewIndex[string](0)
	ix.Insert("b", same)
	ix.Insert("a", same)
	ix.Insert("skip", same)

	hits := ix.Within(center, 500,
		func(k string) bool { return k != "skip" },
		func(a, b string) int { return strings.Compare(a, b) },
	)
	assert.Equal(t, []string{"a", "b"}, keys(hits))
}

func TestIndex_MoveAndRemove(t *testing.T) {
	center := Point{Longitude: 10, Latitude: 10}
	ix := NewIndex[int](0.01)

	ix.Insert(1, center)
	ix.Insert(1, offsetNorth(center, 50000))
	assert.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Within(center, 1000, nil, nil))

	ix.Remove(1)
	assert.Equal(t, 0, ix.Len())
}

func TestIndex_ManyPointsMatchesBruteForce(t *testing.T) {
	center := Point{Longitude: 80.27, Latitude: 13.08}
	ix := NewIndex[string](0.01)
	all := map[string]Point{}
	for i := 0; i < 40; i++ {
		for j := 0; j < 40; j++ {
			p := Point{Longitude: 80.0 + float64(i)*0.015, Latitude: 12.8 + float64(j)*0.015}
			k := fmt.Sprintf("%d-%d", i, j)
			all[k] = p
			ix.Insert(k, p)
		}
	}

	radius := 7000.0
	expected := 0
	for _, p := range all {
		if Distance(center, p) <= radius {
			expected++
		}
	}

	hits := ix.Within(center, radius, nil, nil)
	assert.Len(t, hits, expected)
	for _, h := range hits {
		assert.LessOrEqual(t, h.Distance, radius)
	}
}

func keys[K comparable](hits []Hit[K]) []K {
	out := make([]K, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Key)
	}
	return out
}

func TestIndex_WithinReturnsWholeRing(t *testing.T) {
	center := Point{Longitude: 10, Latitude: 60}
	radius := 1_000_000.0
	ix := NewIndex[int](0)
	points := ring(center, 0.99*radius, 360)
	for i, p := range points {
		ix.Insert(i, p)
	}
	// за пределами радиуса
	ix.Insert(-1, destination(center, 90, 1.05*radius))

	hits := ix.Within(center, radius, nil, nil)
	assert.Len(t, hits, len(points))
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Key, 0)
	}
}
