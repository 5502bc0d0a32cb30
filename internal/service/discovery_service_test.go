package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

func nearbyQuery(lon, lat, radius float64) dto.NearbyReportsQuery {
	return dto.NearbyReportsQuery{Longitude: &lon, Latitude: &lat, Radius: &radius}
}

func TestNearbyReports_Radius(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	far := f.submit(t, pointNorth(chennai, 5000))

	items, ordered, err := f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(chennai.Longitude, chennai.Latitude, 1000))
	require.NoError(t, err)
	assert.True(t, ordered)
	assert.Empty(t, items)

	items, ordered, err = f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(chennai.Longitude, chennai.Latitude, 10000))
	require.NoError(t, err)
	assert.True(t, ordered)
	require.Len(t, items, 1)
	assert.Equal(t, far.ID, items[0].ID)
	assert.InDelta(t, 5000, items[0].DistanceMeters, 5)
}

func TestNearbyReports_NearestFirstAndUnassignedOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w2 := f.worker2.ID

	mid := f.submit(t, pointNorth(chennai, 2000))
	near := f.submit(t, pointNorth(chennai, 300))
	f.putReport(t, valueobject.ReportStatusAssigned, &w2, pointNorth(chennai, 100))
	f.putReport(t, valueobject.ReportStatusRejected, nil, pointNorth(chennai, 50))

	items, _, err := f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(chennai.Longitude, chennai.Latitude, 5000))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, near.ID, items[0].ID)
	assert.Equal(t, mid.ID, items[1].ID)
	assert.LessOrEqual(t, items[0].DistanceMeters, items[1].DistanceMeters)
}

func TestNearbyReports_IncludeAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1, w2 := f.worker1.ID, f.worker2.ID

	f.submit(t, pointNorth(chennai, 500))
	own := f.putReport(t, valueobject.ReportStatusInProgress, &w1, pointNorth(chennai, 200))
	f.putReport(t, valueobject.ReportStatusAssigned, &w2, pointNorth(chennai, 100))

	q := nearbyQuery(chennai.Longitude, chennai.Latitude, 5000)
	q.IncludeAssigned = true
	items, _, err := f.discovery.NearbyReports(ctx, f.worker1, q)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, own.ID, items[0].ID)

	// без координат поиск возвращает неупорядоченный список
	items, ordered, err := f.discovery.NearbyReports(ctx, f.worker1, dto.NearbyReportsQuery{IncludeAssigned: true})
	require.NoError(t, err)
	assert.False(t, ordered)
	assert.Len(t, items, 2)
}

func TestNearbyReports_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.discovery.NearbyReports(ctx, f.citizen, nearbyQuery(chennai.Longitude, chennai.Latitude, 1000))
	assert.True(t, apperror.IsForbidden(err))

	lon := chennai.Longitude
	_, _, err = f.discovery.NearbyReports(ctx, f.worker1, dto.NearbyReportsQuery{Longitude: &lon})
	assert.True(t, apperror.IsValidation(err))

	_, _, err = f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(200, 0, 1000))
	assert.True(t, apperror.IsValidation(err))

	_, _, err = f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(chennai.Longitude, chennai.Latitude, 25_000_000))
	assert.True(t, apperror.IsValidation(err))
}

// pointAt сдвигает точку по большому кругу на meters по азимуту bearingDeg.
func pointAt(p geo.Point, bearingDeg, meters float64) geo.Point {
	lat1 := p.Latitude * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := meters / geo.EarthRadiusMeters
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	dLon := math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))
	return geo.Point{Longitude: p.Longitude + dLon*180/math.Pi, Latitude: lat2 * 180 / math.Pi}
}

func TestNearbyReports_WideRadiusKeepsCircleEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// самая восточная точка круга лежит не на азимуте 90°, а ближе к полюсу
	center := geo.Point{Longitude: 10, Latitude: 60}
	edge := f.submit(t, pointAt(center, 74, 990_000))

	items, ordered, err := f.discovery.NearbyReports(ctx, f.worker1, nearbyQuery(center.Longitude, center.Latitude, 1_000_000))
	require.NoError(t, err)
	assert.True(t, ordered)
	require.Len(t, items, 1)
	assert.Equal(t, edge.ID, items[0].ID)
	assert.InDelta(t, 990_000, items[0].DistanceMeters, 10)
}

func TestFacilities_CreateNearbyAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := NewCacheService()
	defer c.Close()
	f.discovery = NewDiscoveryService(f.reports, f.facilities, c, DiscoveryConfig{FacilityCacheTTL: time.Minute})

	create := func(name string, meters float64, wasteTypes ...string) *models.Facility {
		p := pointNorth(chennai, meters)
		lon, lat := p.Longitude, p.Latitude
		fac, err := f.discovery.CreateFacility(ctx, f.admin, dto.CreateFacilityRequest{
			Name:               name,
			Type:               models.FacilityRecyclingCenter,
			Longitude:          &lon,
			Latitude:           &lat,
			AcceptedWasteTypes: wasteTypes,
		})
		require.NoError(t, err)
		return fac
	}

	plastic := create("Пластик", 800, models.WasteTypePlastic, models.WasteTypePaper)
	lon, lat, radius := chennai.Longitude, chennai.Latitude, 3000.0
	q := dto.NearbyFacilitiesQuery{Longitude: &lon, Latitude: &lat, Radius: &radius}

	items, ordered, err := f.discovery.NearbyFacilities(ctx, q)
	require.NoError(t, err)
	assert.True(t, ordered)
	require.Len(t, items, 1)
	assert.Equal(t, plastic.ID, items[0].ID)

	// новый пункт сбрасывает кэш, следующий запрос его видит
	glass := create("Стекло", 400, models.WasteTypeGlass)
	items, _, err = f.discovery.NearbyFacilities(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, glass.ID, items[0].ID)

	q.WasteTypes = []string{models.WasteTypePaper}
	items, _, err = f.discovery.NearbyFacilities(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, plastic.ID, items[0].ID)

	_, err = f.discovery.CreateFacility(ctx, f.worker1, dto.CreateFacilityRequest{})
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.discovery.GetFacility(ctx, glass.ID)
	require.NoError(t, err)
	assert.Equal(t, "Стекло", got.Name)
}
