// Package geo содержит расчёт расстояний по поверхности Земли и простой
// пространственный индекс для поиска точек в радиусе.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters: средний радиус Земли.
const EarthRadiusMeters = 6371000.0

// Point хранит координаты в градусах.
type Point struct {
	Longitude float64 `json:"longitude" bson:"longitude" db:"longitude"`
	Latitude  float64 `json:"latitude" bson:"latitude" db:"latitude"`
}

// NewPoint проверяет диапазоны координат.
func NewPoint(longitude, latitude float64) (Point, error) {
	p := Point{Longitude: longitude, Latitude: latitude}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate проверяет, что долгота в [-180, 180], а широта в [-90, 90].
func (p Point) Validate() error {
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	return nil
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func (p Point) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Latitude, p.Longitude)
}

// angleFor переводит метры по поверхности в центральный угол.
func angleFor(meters float64) s1.Angle {
	return s1.Angle(meters / EarthRadiusMeters)
}

// Distance возвращает расстояние по большому кругу в метрах.
func Distance(a, b Point) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusMeters
}

// BoundingBox: прямоугольник в градусах, покрывающий круг.
type BoundingBox struct {
	MinLongitude float64
	MinLatitude  float64
	MaxLongitude float64
	MaxLatitude  float64
}

// Contains проверяет попадание точки в прямоугольник.
func (b BoundingBox) Contains(p Point) bool {
	return p.Latitude >= b.MinLatitude && p.Latitude <= b.MaxLatitude &&
		p.Longitude >= b.MinLongitude && p.Longitude <= b.MaxLongitude
}

// BoundsAround строит прямоугольник, целиком покрывающий круг радиуса radiusMeters.
// Это только префильтр, точное расстояние считается отдельно.
// Если круг накрывает полюс или пересекает 180-й меридиан, долгота берётся целиком.
func BoundsAround(center Point, radiusMeters float64) BoundingBox {
	capRegion := s2.CapFromCenterAngle(s2.PointFromLatLng(center.latLng()), angleFor(radiusMeters))
	rect := capRegion.RectBound()

	box := BoundingBox{
		MinLongitude: -180,
		MinLatitude:  math.Max(rect.Lo().Lat.Degrees(), -90),
		MaxLongitude: 180,
		MaxLatitude:  math.Min(rect.Hi().Lat.Degrees(), 90),
	}
	if !rect.Lng.IsFull() && !rect.Lng.IsInverted() {
		box.MinLongitude = rect.Lo().Lng.Degrees()
		box.MaxLongitude = rect.Hi().Lng.Degrees()
	}
	return box
}
