// Package physics содержит геометрию восприятия и проверку столкновений.
package physics

import (
	"math"

	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// FullTurn - полный оборот в радианах
const FullTurn = 2 * math.Pi

// После этого порога угол сначала редуцируется math.Remainder,
// чтобы цикл нормализации делал не больше пары итераций.
const maxLoopAngle = 64 * math.Pi

// ToPoint переводит позицию сетки в точку orb
func ToPoint(v vec.Vec2) orb.Point {
	return orb.Point{float64(v.X), float64(v.Y)}
}

// Distance возвращает евклидово расстояние sqrt(dx²+dy²)
func Distance(a, b vec.Vec2) float64 {
	return planar.Distance(ToPoint(a), ToPoint(b))
}

// Bearing возвращает направление atan2(dy, dx) от from к to
func Bearing(from, to vec.Vec2) float64 {
	return math.Atan2(float64(to.Y-from.Y), float64(to.X-from.X))
}

// NormalizeAngle приводит угол к диапазону (-π, π].
// Для NaN и бесконечностей возвращает вход без изменений.
func NormalizeAngle(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return angle
	}
	if math.Abs(angle) > maxLoopAngle {
		angle = math.Remainder(angle, FullTurn)
	}
	for angle > math.Pi {
		angle -= FullTurn
	}
	for angle <= -math.Pi {
		angle += FullTurn
	}
	return angle
}

// WrapHeading приводит угол к диапазону [0, 2π)
func WrapHeading(angle float64) float64 {
	angle = math.Mod(angle, FullTurn)
	if angle < 0 {
		angle += FullTurn
	}
	if angle >= FullTurn {
		angle = 0
	}
	return angle
}

// Radians переводит градусы в радианы
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// InCone проверяет попадание цели в сектор обзора.
// Обе границы включительные: distance == viewRange и угол ровно halfFOV считаются видимыми.
func InCone(origin vec.Vec2, heading, halfFOV, viewRange float64, target vec.Vec2) bool {
	if Distance(origin, target) > viewRange {
		return false
	}
	diff := math.Abs(NormalizeAngle(Bearing(origin, target) - heading))
	return diff <= halfFOV
}
