package warehouse

import (
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/vec"
)

// AgentView - агент в проекции состояния
type AgentView struct {
	ID       int      `json:"id"`
	Position vec.Vec2 `json:"position"`
	Kind     string   `json:"type"`
	Battery  int      `json:"battery"`
	Carrying bool     `json:"carrying"`
}

// State - проекция склада на момент Time. Срезы скопированы.
type State struct {
	Time             int         `json:"time"`
	Items            []Item      `json:"items"`
	Shelves          []vec.Vec2  `json:"shelves"`
	ChargingStations []vec.Vec2  `json:"charging_stations"`
	Agents           []AgentView `json:"agents"`
}

// Observation - то, что складской агент видит в пределах дальности своего типа
type Observation struct {
	AgentID  int        `json:"agent_id"`
	Position vec.Vec2   `json:"position"`
	Battery  int        `json:"battery"`
	Carrying bool       `json:"carrying"`
	Items    []vec.Vec2 `json:"items"`
	Shelves  []vec.Vec2 `json:"shelves"`
	Stations []vec.Vec2 `json:"charging_stations"`
}

// State строит проекцию текущего состояния
func (e *Env) State() State {
	s := State{
		Time:             e.time,
		Items:            make([]Item, 0, len(e.itemOrder)),
		Shelves:          append([]vec.Vec2{}, e.shelves...),
		ChargingStations: append([]vec.Vec2{}, e.stations...),
		Agents:           make([]AgentView, 0, len(e.agents)),
	}
	for _, pos := range e.itemOrder {
		s.Items = append(s.Items, e.items[pos])
	}
	for _, a := range e.agents {
		st := e.state[a.ID]
		s.Agents = append(s.Agents, AgentView{
			ID:       a.ID,
			Position: a.Position,
			Kind:     a.Kind.String(),
			Battery:  st.Battery,
			Carrying: st.Carrying != nil,
		})
	}
	return s
}

func (e *Env) observe(s State) []Observation {
	result := make([]Observation, 0, len(e.agents))
	for i, a := range e.agents {
		view := a.Rules().ViewRange
		obs := Observation{
			AgentID:  a.ID,
			Position: a.Position,
			Battery:  s.Agents[i].Battery,
			Carrying: s.Agents[i].Carrying,
			Items:    []vec.Vec2{},
			Shelves:  withinRange(a.Position, s.Shelves, view),
			Stations: withinRange(a.Position, s.ChargingStations, view),
		}
		for _, item := range s.Items {
			if physics.Distance(a.Position, item.Position) <= view {
				obs.Items = append(obs.Items, item.Position)
			}
		}
		result = append(result, obs)
	}
	return result
}

func withinRange(origin vec.Vec2, points []vec.Vec2, r float64) []vec.Vec2 {
	out := []vec.Vec2{}
	for _, p := range points {
		if physics.Distance(origin, p) <= r {
			out = append(out, p)
		}
	}
	return out
}

// DefaultLayout ставит три ряда стеллажей с проходами, товары у стеллажей
// и две зарядные станции у южной стены
func DefaultLayout(e *Env) error {
	for _, y := range []int{200, 400, 600} {
		for x := 200; x <= 800; x += 40 {
			if err := e.AddShelf(vec.Vec2{X: x, Y: y}); err != nil {
				return err
			}
		}
	}
	items := []struct {
		pos vec.Vec2
		sku string
	}{
		{vec.Vec2{X: 240, Y: 250}, "SKU-001"},
		{vec.Vec2{X: 520, Y: 250}, "SKU-002"},
		{vec.Vec2{X: 360, Y: 450}, "SKU-003"},
		{vec.Vec2{X: 760, Y: 550}, "SKU-004"},
	}
	for _, it := range items {
		if err := e.AddItem(it.pos, map[string]interface{}{"sku": it.sku}); err != nil {
			return err
		}
	}
	for _, pos := range []vec.Vec2{{X: 100, Y: 750}, {X: 900, Y: 750}} {
		if err := e.AddChargingStation(pos); err != nil {
			return err
		}
	}
	return nil
}
