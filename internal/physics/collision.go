package physics

import (
	"math"

	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/paulmach/orb"
)

// BoxCollider представляет квадратное препятствие со стороной Size
type BoxCollider struct {
	Size float64 // Сторона квадрата в единицах мира
}

// NewBoxCollider создаёт коллайдер с указанной стороной
func NewBoxCollider(size float64) *BoxCollider {
	return &BoxCollider{Size: size}
}

// Threshold возвращает половину стороны - порог столкновения по каждой оси
func (bc *BoxCollider) Threshold() float64 {
	return bc.Size / 2
}

// Bound возвращает прямоугольник препятствия с центром center (для отрисовки)
func (bc *BoxCollider) Bound(center vec.Vec2) orb.Bound {
	half := bc.Threshold()
	p := ToPoint(center)
	return orb.Bound{
		Min: orb.Point{p[0] - half, p[1] - half},
		Max: orb.Point{p[0] + half, p[1] + half},
	}
}

// Collides проверяет столкновение точки pos с препятствием в center.
// Проверка строгая: точка ровно на границе не сталкивается.
func (bc *BoxCollider) Collides(pos, center vec.Vec2) bool {
	return Collides(pos, center, bc.Threshold())
}

// CanMoveToPosition проверяет кандидатную позицию против всех препятствий.
// blocks(i) сообщает, непроходимо ли i-е препятствие для данной сущности.
func (bc *BoxCollider) CanMoveToPosition(newPos vec.Vec2, obstacles []vec.Vec2, blocks func(i int) bool) bool {
	for i, center := range obstacles {
		if bc.Collides(newPos, center) && blocks(i) {
			return false
		}
	}
	return true
}

// Collides - бокс-тест по Чебышёву: |Δx| < threshold и |Δy| < threshold
func Collides(a, b vec.Vec2, threshold float64) bool {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	return dx < threshold && dy < threshold
}
