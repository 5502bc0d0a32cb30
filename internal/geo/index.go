package geo

import (
	"cmp"
	"math"
	"slices"
	"sync"
)

// DefaultCellSize: размер ячейки сетки в градусах (~5.5 км по широте).
const DefaultCellSize = 0.05

type cellKey struct {
	x, y int
}

// Hit: найденная точка с расстоянием до центра запроса в метрах.
type Hit[K comparable] struct {
	Key      K
	Point    Point
	Distance float64
}

// Index: сеточный пространственный индекс. Безопасен для конкурентного использования.
type Index[K comparable] struct {
	mu       sync.RWMutex
	cellSize float64
	cells    map[cellKey]map[K]struct{}
	points   map[K]Point
}

// NewIndex создаёт индекс; cellSize <= 0 заменяется на DefaultCellSize.
func NewIndex[K comparable](cellSize float64) *Index[K] {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index[K]{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[K]struct{}),
		points:   make(map[K]Point),
	}
}

func (ix *Index[K]) cellOf(p Point) cellKey {
	return cellKey{
		x: int(math.Floor(p.Longitude / ix.cellSize)),
		y: int(math.Floor(p.Latitude / ix.cellSize)),
	}
}

// Insert добавляет или перемещает точку.
func (ix *Index[K]) Insert(key K, p Point) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.points[key]; ok {
		ix.removeFromCell(key, old)
	}
	ix.points[key] = p
	c := ix.cellOf(p)
	if ix.cells[c] == nil {
		ix.cells[c] = make(map[K]struct{})
	}
	ix.cells[c][key] = struct{}{}
}

// Remove удаляет точку, если она есть.
func (ix *Index[K]) Remove(key K) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.points[key]; ok {
		ix.removeFromCell(key, old)
		delete(ix.points, key)
	}
}

func (ix *Index[K]) removeFromCell(key K, p Point) {
	c := ix.cellOf(p)
	if bucket, ok := ix.cells[c]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(ix.cells, c)
		}
	}
}

// Len возвращает количество точек.
func (ix *Index[K]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

// Within возвращает точки в радиусе radiusMeters от center по возрастанию расстояния.
// keep может быть nil; tie разрешает равные расстояния и тоже может быть nil.
func (ix *Index[K]) Within(center Point, radiusMeters float64, keep func(K) bool, tie func(a, b K) int) []Hit[K] {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	box := BoundsAround(center, radiusMeters)
	minCell := ix.cellOf(Point{Longitude: box.MinLongitude, Latitude: box.MinLatitude})
	maxCell := ix.cellOf(Point{Longitude: box.MaxLongitude, Latitude: box.MaxLatitude})

	var hits []Hit[K]
	consider := func(key K) {
		p := ix.points[key]
		if !box.Contains(p) {
			return
		}
		if keep != nil && !keep(key) {
			return
		}
		d := Distance(center, p)
		if d <= radiusMeters {
			hits = append(hits, Hit[K]{Key: key, Point: p, Distance: d})
		}
	}

	cellCount := (maxCell.x - minCell.x + 1) * (maxCell.y - minCell.y + 1)
	if cellCount > len(ix.points) {
		for key := range ix.points {
			consider(key)
		}
	} else {
		for x := minCell.x; x <= maxCell.x; x++ {
			for y := minCell.y; y <= maxCell.y; y++ {
				for key := range ix.cells[cellKey{x: x, y: y}] {
					consider(key)
				}
			}
		}
	}

	SortHits(hits, tie)
	return hits
}

// SortHits сортирует по расстоянию, равные расстояния упорядочивает tie.
func SortHits[K comparable](hits []Hit[K], tie func(a, b K) int) {
	slices.SortStableFunc(hits, func(a, b Hit[K]) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		if tie != nil {
			return tie(a.Key, b.Key)
		}
		return 0
	})
}
