package policy

import (
	"math/rand"

	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Random блуждает случайно в пределах скорости своего типа.
// Генератор свой у каждого агента, поэтому прогон воспроизводим по сиду.
type Random struct {
	rng   *rand.Rand
	speed int
}

// NewRandom создаёт случайную политику
func NewRandom(p Params) (Policy, error) {
	seed := p.Seed + int64(p.AgentID)*7919
	return &Random{
		rng:   rand.New(rand.NewSource(seed)),
		speed: p.Kind.Rules().Speed,
	}, nil
}

// SelectAction возвращает случайное смещение в [-speed, speed] по каждой оси
func (r *Random) SelectAction(world.Observation) vec.Vec2 {
	if r.speed == 0 {
		return vec.Vec2{}
	}
	span := 2*r.speed + 1
	return vec.Vec2{X: r.rng.Intn(span) - r.speed, Y: r.rng.Intn(span) - r.speed}
}
