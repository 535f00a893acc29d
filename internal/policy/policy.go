// Package policy описывает функцию принятия решений агента и встроенные
// реализации. Движок не вызывает политики сам: их опрашивает цикл симуляции.
package policy

import (
	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Policy выбирает смещение агента по его наблюдению
type Policy interface {
	SelectAction(obs world.Observation) vec.Vec2
}

// Messenger - политика, которая может отправить сообщение в тике
type Messenger interface {
	Message(obs world.Observation) comm.Payload
}

// Learner - политика, получающая опыт после каждого тика
type Learner interface {
	Update(exp Experience)
}

// Experience - переход, который видит агент: наблюдение, действие, следующее наблюдение
type Experience struct {
	AgentID     int
	Observation world.Observation
	Action      vec.Vec2
	Next        world.Observation
	Done        bool
}

// Params - параметры создания политики для конкретного агента
type Params struct {
	AgentID int
	Kind    agent.Kind
	Seed    int64
	Script  []vec.Vec2
	Loop    bool
}

// Idle всегда стоит на месте
type Idle struct{}

// NewIdle создаёт неподвижную политику
func NewIdle(Params) (Policy, error) { return Idle{}, nil }

// SelectAction возвращает нулевое смещение
func (Idle) SelectAction(world.Observation) vec.Vec2 { return vec.Vec2{} }

// clampStep ограничивает смещение скоростью по каждой оси
func clampStep(v vec.Vec2, speed int) vec.Vec2 {
	return vec.Vec2{X: clamp(v.X, speed), Y: clamp(v.Y, speed)}
}

func clamp(x, limit int) int {
	if x > limit {
		return limit
	}
	if x < -limit {
		return -limit
	}
	return x
}
