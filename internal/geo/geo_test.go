package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_KnownPairs(t *testing.T) {
	chennai := Point{Longitude: 80.27, Latitude: 13.08}

	assert.InDelta(t, 0, Distance(chennai, chennai), 1e-6)

	// Один градус широты ~ 111.19 км при R = 6371 км.
	north := Point{Longitude: 80.27, Latitude: 14.08}
	assert.InDelta(t, 111195, Distance(chennai, north), 50)

	// Симметрия.
	assert.InDelta(t, Distance(chennai, north), Distance(north, chennai), 1e-6)
}

func TestNewPoint_Validation(t *testing.T) {
	_, err := NewPoint(181, 0)
	assert.Error(t, err)

	_, err = NewPoint(0, -91)
	assert.Error(t, err)

	p, err := NewPoint(80.27, 13.08)
	require.NoError(t, err)
	assert.Equal(t, 13.08, p.Latitude)
}

func TestBoundsAround_ContainsCircle(t *testing.T) {
	center := Point{Longitude: 80.27, Latitude: 13.08}
	box := BoundsAround(center, 5000)

	assert.True(t, box.Contains(center))
	// Точка ровно на 4.9 км к северу попадает в прямоугольник.
	assert.True(t, box.Contains(Point{Longitude: 80.27, Latitude: 13.08 + 0.044}))
	assert.False(t, box.Contains(Point{Longitude: 80.27, Latitude: 13.2}))
}

func TestBoundsAround_NearPoleCoversAllLongitudes(t *testing.T) {
	box := BoundsAround(Point{Longitude: 10, Latitude: 89.99}, 10000)
	assert.Equal(t, -180.0, box.MinLongitude)
	assert.Equal(t, 180.0, box.MaxLongitude)
}

// destination возвращает точку на расстоянии meters от p по азимуту bearingDeg.
func destination(p Point, bearingDeg, meters float64) Point {
	lat1 := p.Latitude * math.Pi / 180
	lon1 := p.Longitude * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := meters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))
	lon := math.Mod(toDegrees(lon2)+540, 360) - 180
	return Point{Longitude: lon, Latitude: toDegrees(lat2)}
}

// ring раскладывает n точек по окружности радиуса meters.
func ring(center Point, meters float64, n int) []Point {
	out := make([]Point, n)
	for i := range out {
		out[i] = destination(center, float64(i)*360/float64(n), meters)
	}
	return out
}

func TestBoundsAround_CoversWholeCircle(t *testing.T) {
	cases := []struct {
		name   string
		center Point
		radius float64
	}{
		{"ченнай 5 км", Point{Longitude: 80.27, Latitude: 13.08}, 5000},
		{"высокие широты 1000 км", Point{Longitude: 10, Latitude: 60}, 1_000_000},
		{"экватор 3000 км", Point{Longitude: 0, Latitude: 0}, 3_000_000},
		{"южное полушарие 800 км", Point{Longitude: -70, Latitude: -72}, 800_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			box := BoundsAround(tc.center, tc.radius)
			for _, p := range ring(tc.center, 0.99*tc.radius, 360) {
				require.InDelta(t, 0.99*tc.radius, Distance(tc.center, p), 1)
				assert.True(t, box.Contains(p), "точка %+v вне прямоугольника %+v", p, box)
			}
		})
	}
}

func TestBoundsAround_AntimeridianCoversAllLongitudes(t *testing.T) {
	center := Point{Longitude: 179.9, Latitude: 0}
	box := BoundsAround(center, 50000)
	assert.Equal(t, -180.0, box.MinLongitude)
	assert.Equal(t, 180.0, box.MaxLongitude)
	assert.True(t, box.Contains(destination(center, 90, 40000)))
}
