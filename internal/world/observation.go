package world

import (
	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/vec"
)

// Observation - то, что агент видит в конце тика. Это единственный вход
// для функции принятия решений.
type Observation struct {
	AgentID   int            `json:"agent_id"`
	Kind      string         `json:"kind"`
	Time      int            `json:"time"`
	Position  vec.Vec2       `json:"position"`
	Patients  []vec.Vec2     `json:"patients"`
	Obstacles []ObstacleView `json:"obstacles"`
	Agents    []AgentView    `json:"agents"`
	Messages  []comm.Message `json:"messages"`
}

// Observe строит наблюдение агента по снимку: всё, что в пределах
// радиуса обзора его типа, плюс входящие сообщения тика.
func Observe(a *agent.Agent, snap Snapshot) Observation {
	viewRange := a.Rules().ViewRange
	visible := func(p vec.Vec2) bool {
		return physics.Distance(a.Position, p) <= viewRange
	}

	obs := Observation{
		AgentID:   a.ID,
		Kind:      a.Kind.String(),
		Time:      snap.Time,
		Position:  a.Position,
		Patients:  make([]vec.Vec2, 0),
		Obstacles: make([]ObstacleView, 0),
		Agents:    make([]AgentView, 0),
		Messages:  make([]comm.Message, len(a.Inbox)),
	}
	copy(obs.Messages, a.Inbox)

	for _, p := range snap.Patients {
		if visible(p) {
			obs.Patients = append(obs.Patients, p)
		}
	}
	for _, o := range snap.Obstacles {
		if visible(o.Position) {
			obs.Obstacles = append(obs.Obstacles, o)
		}
	}
	for _, other := range snap.Agents {
		if other.ID != a.ID && visible(other.Position) {
			obs.Agents = append(obs.Agents, other)
		}
	}
	return obs
}

// NearestPatient возвращает ближайшего видимого пациента
func (o Observation) NearestPatient() (vec.Vec2, bool) {
	var (
		best  vec.Vec2
		found bool
		dist  float64
	)
	for _, p := range o.Patients {
		d := physics.Distance(o.Position, p)
		if !found || d < dist {
			best, dist, found = p, d, true
		}
	}
	return best, found
}
