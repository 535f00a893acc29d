package world

import (
	"math"
	"sort"

	"github.com/annel0/rescue-sim/internal/vec"
)

// SpatialIndex - равномерная сетка препятствий для быстрых запросов
// "что рядом с точкой". Ячейка хранит центры препятствий, попавших в неё.
type SpatialIndex struct {
	cellSize int
	cells    map[cellKey][]vec.Vec2
}

// cellKey представляет ключ ячейки в пространственной сетке
type cellKey struct {
	x, y int
}

// NewSpatialIndex создаёт новый пространственный индекс
func NewSpatialIndex(cellSize int) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = DefaultGridSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey][]vec.Vec2),
	}
}

func (si *SpatialIndex) keyFor(x, y int) cellKey {
	return cellKey{x: floorDiv(x, si.cellSize), y: floorDiv(y, si.cellSize)}
}

// Insert добавляет точку. Повторная вставка той же точки игнорируется.
func (si *SpatialIndex) Insert(pos vec.Vec2) {
	key := si.keyFor(pos.X, pos.Y)
	for _, p := range si.cells[key] {
		if p == pos {
			return
		}
	}
	si.cells[key] = append(si.cells[key], pos)
}

// Query возвращает точки, у которых |Δx| < radius и |Δy| < radius.
// Результат отсортирован по (Y, X) для детерминированного обхода.
func (si *SpatialIndex) Query(center vec.Vec2, radius float64) []vec.Vec2 {
	r := int(math.Ceil(radius))
	minKey := si.keyFor(center.X-r, center.Y-r)
	maxKey := si.keyFor(center.X+r, center.Y+r)

	var result []vec.Vec2
	for cx := minKey.x; cx <= maxKey.x; cx++ {
		for cy := minKey.y; cy <= maxKey.y; cy++ {
			for _, p := range si.cells[cellKey{x: cx, y: cy}] {
				if math.Abs(float64(p.X-center.X)) < radius && math.Abs(float64(p.Y-center.Y)) < radius {
					result = append(result, p)
				}
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Y != result[j].Y {
			return result[i].Y < result[j].Y
		}
		return result[i].X < result[j].X
	})
	return result
}

// Len возвращает число проиндексированных точек
func (si *SpatialIndex) Len() int {
	n := 0
	for _, cell := range si.cells {
		n += len(cell)
	}
	return n
}

// floorDiv - деление с округлением вниз и для отрицательных координат
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
