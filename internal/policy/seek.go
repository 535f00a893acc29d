package policy

import (
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Типы сообщений, которые понимает Seek
const (
	MessageObservation = "observation"
	MessageTarget      = "target"
)

// DefaultReachRadius - на каком расстоянии пациент считается достигнутым
const DefaultReachRadius = 5.0

// Сколько тиков обходить препятствие после неудачного хода
const detourTicks = 6

// Seek жадно идёт к ближайшему известному пациенту. Пациенты берутся из
// собственного обзора и из сообщений наблюдателя, цель сообщается остальным.
// Пациентов, выбранных другими агентами, Seek выбирает в последнюю очередь.
type Seek struct {
	agentID int
	speed   int
	reach   float64

	target    vec.Vec2
	hasTarget bool
	visited   map[vec.Vec2]struct{}

	stuck  int
	detour int
}

var detours = []vec.Vec2{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: -1}, {X: -1, Y: 0}}

// NewSeek создаёт политику поиска
func NewSeek(p Params) (Policy, error) {
	return &Seek{
		agentID: p.AgentID,
		speed:   p.Kind.Rules().Speed,
		reach:   DefaultReachRadius,
		visited: make(map[vec.Vec2]struct{}),
	}, nil
}

// Target возвращает текущую цель
func (s *Seek) Target() (vec.Vec2, bool) {
	return s.target, s.hasTarget
}

// SelectAction выбирает шаг к цели или шаг обхода после столкновения
func (s *Seek) SelectAction(obs world.Observation) vec.Vec2 {
	if s.speed == 0 {
		return vec.Vec2{}
	}

	if s.hasTarget && physics.Distance(obs.Position, s.target) <= s.reach {
		s.visited[s.target] = struct{}{}
		s.hasTarget = false
	}
	if !s.hasTarget {
		s.target, s.hasTarget = s.choose(obs)
	}
	if !s.hasTarget {
		return vec.Vec2{}
	}

	if s.stuck > 0 {
		s.stuck--
		d := detours[s.detour%len(detours)]
		return vec.Vec2{X: d.X * s.speed, Y: d.Y * s.speed}
	}
	return clampStep(s.target.Sub(obs.Position), s.speed)
}

// Message сообщает выбранную цель
func (s *Seek) Message(world.Observation) comm.Payload {
	if !s.hasTarget {
		return nil
	}
	return comm.Payload{"type": MessageTarget, "position": s.target}
}

// Update включает обход, если ход не удался
func (s *Seek) Update(exp Experience) {
	if exp.Action == (vec.Vec2{}) {
		return
	}
	if exp.Next.Position == exp.Observation.Position {
		s.stuck = detourTicks
		s.detour++
	}
}

func (s *Seek) choose(obs world.Observation) (vec.Vec2, bool) {
	candidates := append([]vec.Vec2(nil), obs.Patients...)
	claimed := make(map[vec.Vec2]struct{})

	for _, msg := range obs.Messages {
		switch msg.Payload["type"] {
		case MessageObservation:
			if detections, ok := msg.Payload["data"].([]sensor.Detection); ok {
				for _, d := range detections {
					candidates = append(candidates, d.Position)
				}
			}
		case MessageTarget:
			if pos, ok := msg.Payload["position"].(vec.Vec2); ok {
				claimed[pos] = struct{}{}
			}
		}
	}

	var (
		best, fallback       vec.Vec2
		bestDist, fbDist     float64
		foundBest, foundBack bool
	)
	for _, c := range candidates {
		if _, done := s.visited[c]; done {
			continue
		}
		d := physics.Distance(obs.Position, c)
		if _, taken := claimed[c]; taken {
			if !foundBack || d < fbDist {
				fallback, fbDist, foundBack = c, d, true
			}
			continue
		}
		if !foundBest || d < bestDist {
			best, bestDist, foundBest = c, d, true
		}
	}
	if foundBest {
		return best, true
	}
	return fallback, foundBack
}
