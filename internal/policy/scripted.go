package policy

import (
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Scripted проигрывает заранее заданную последовательность смещений.
// После конца сценария стоит на месте или начинает сначала при Loop.
type Scripted struct {
	moves []vec.Vec2
	loop  bool
	next  int
}

// NewScripted создаёт политику по сценарию из параметров
func NewScripted(p Params) (Policy, error) {
	if len(p.Script) == 0 {
		return nil, errs.Configuration("agents.script", "пустой сценарий для агента %d", p.AgentID)
	}
	moves := make([]vec.Vec2, len(p.Script))
	copy(moves, p.Script)
	return &Scripted{moves: moves, loop: p.Loop}, nil
}

// SelectAction возвращает следующее смещение сценария
func (s *Scripted) SelectAction(world.Observation) vec.Vec2 {
	if s.next >= len(s.moves) {
		if !s.loop {
			return vec.Vec2{}
		}
		s.next = 0
	}
	m := s.moves[s.next]
	s.next++
	return m
}
