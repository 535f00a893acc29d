package vec

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vec2 представляет целочисленную позицию на 2D сетке мира
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Clamp ограничивает координаты прямоугольником [0,maxX] × [0,maxY]
func (v Vec2) Clamp(maxX, maxY int) Vec2 {
	return Vec2{X: clampInt(v.X, 0, maxX), Y: clampInt(v.Y, 0, maxY)}
}

// MoveClamped сдвигает точку на delta и ограничивает результат прямоугольником
// [0,maxX] × [0,maxY]. Сложение насыщающее: сколь угодно большое смещение
// упирается в границу, а не переполняется.
func (v Vec2) MoveClamped(delta Vec2, maxX, maxY int) Vec2 {
	return Vec2{
		X: clampInt(saturatingAdd(v.X, delta.X), 0, maxX),
		Y: clampInt(saturatingAdd(v.Y, delta.Y), 0, maxY),
	}
}

// InBounds проверяет, лежит ли точка внутри [0,maxX] × [0,maxY]
func (v Vec2) InBounds(maxX, maxY int) bool {
	return v.X >= 0 && v.X <= maxX && v.Y >= 0 && v.Y <= maxY
}

// ChebyshevLen возвращает max(|x|, |y|) - число шагов с учётом диагоналей
func (v Vec2) ChebyshevLen() int {
	ax, ay := absInt(v.X), absInt(v.Y)
	if ax > ay {
		return ax
	}
	return ay
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// String возвращает координаты в виде (x,y)
func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Y)
}

// MarshalJSON сериализует позицию парой [x, y]
func (v Vec2) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{v.X, v.Y})
}

// UnmarshalJSON читает позицию из пары [x, y]
func (v *Vec2) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("позиция должна быть парой [x, y]: %w", err)
	}
	v.X, v.Y = pair[0], pair[1]
	return nil
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func saturatingAdd(a, b int) int {
	sum := a + b
	if b > 0 && sum < a {
		return math.MaxInt
	}
	if b < 0 && sum > a {
		return math.MinInt
	}
	return sum
}

// absInt насыщается на MinInt: |MinInt| не представим в int
func absInt(x int) int {
	if x == math.MinInt {
		return math.MaxInt
	}
	if x < 0 {
		return -x
	}
	return x
}
