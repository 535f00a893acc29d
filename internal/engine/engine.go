// Package engine продвигает мир на один дискретный тик: скан наблюдателя,
// обмен сообщениями, разрешение ходов и построение наблюдений.
package engine

import (
	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Action - решение одного агента на тик
type Action struct {
	Movement vec.Vec2     `json:"movement"`
	Message  comm.Payload `json:"message,omitempty"`
}

// Move - итог хода одного агента
type Move struct {
	AgentID   int        `json:"agent_id"`
	Kind      agent.Kind `json:"kind"`
	From      vec.Vec2   `json:"from"`
	To        vec.Vec2   `json:"to"`
	Committed bool       `json:"committed"`
}

// Info - диагностика тика
type Info struct {
	Time       int                `json:"time"`
	Detections []sensor.Detection `json:"detections"`
	Moves      []Move             `json:"moves"`
	Committed  int                `json:"committed"`
	Rejected   int                `json:"rejected"`
	Messages   int                `json:"messages"`
}

// StepResult - результат одного тика
type StepResult struct {
	Snapshot     world.Snapshot      `json:"snapshot"`
	Observations []world.Observation `json:"observations"`
	Done         bool                `json:"done"`
	Info         Info                `json:"info"`
}

// Engine владеет миром, наблюдателем и каналом связи на время эпизода.
// Не потокобезопасен: Step вызывается из одного цикла.
type Engine struct {
	world    *world.World
	observer *sensor.Observer
	channel  *comm.Channel
	collider *physics.BoxCollider
	logger   *logging.Logger

	speedLimit         bool
	persistentMessages bool
	terminate          func(world.Snapshot) bool

	historyLimit int
	history      map[int][]world.Observation
}

// New создаёт движок над миром и наблюдателем
func New(w *world.World, observer *sensor.Observer, opts ...Option) *Engine {
	e := &Engine{
		world:        w,
		observer:     observer,
		channel:      comm.NewChannel(),
		collider:     physics.NewBoxCollider(w.ObstacleSize()),
		logger:       logging.GetEngineLogger(),
		historyLimit: DefaultHistoryLimit,
		history:      make(map[int][]world.Observation),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// World возвращает мир движка
func (e *Engine) World() *world.World { return e.world }

// Observer возвращает наблюдателя
func (e *Engine) Observer() *sensor.Observer { return e.observer }

// Channel возвращает канал связи
func (e *Engine) Channel() *comm.Channel { return e.channel }

// Step выполняет один тик. При ошибке валидации состояние не меняется.
func (e *Engine) Step(actions []Action) (StepResult, error) {
	agents := e.world.Agents()
	if err := e.validate(agents, actions); err != nil {
		return StepResult{}, err
	}

	if !e.persistentMessages {
		e.channel.Clear()
	}

	detections := e.observer.Scan(e.world.Snapshot())
	e.channel.Broadcast(comm.SensorID, comm.Payload{
		"type": "observation",
		"data": append([]sensor.Detection(nil), detections...),
	})

	info := Info{
		Detections: detections,
		Moves:      make([]Move, 0, len(agents)),
	}
	for i, a := range agents {
		action := actions[i]
		if action.Message != nil {
			e.channel.Broadcast(a.ID, action.Message)
		}
		a.Deliver(e.channel.Receive(a.ID))

		candidate := a.Position.MoveClamped(action.Movement, e.world.Width(), e.world.Height())
		move := Move{AgentID: a.ID, Kind: a.Kind, From: a.Position, To: candidate}
		if e.ValidMove(a.Kind, candidate) {
			a.Position = candidate
			move.Committed = true
			info.Committed++
		} else {
			move.To = a.Position
			info.Rejected++
			e.logger.Trace("🚧 Ход агента %d (%s) %s -> %s отклонён препятствием", a.ID, a.Kind, a.Position, candidate)
		}
		info.Moves = append(info.Moves, move)
	}

	e.world.AdvanceTime()

	snap := e.world.Snapshot()
	observations := e.observe(agents, snap, true)

	info.Time = snap.Time
	info.Messages = e.channel.Len()

	return StepResult{
		Snapshot:     snap,
		Observations: observations,
		Done:         e.terminate != nil && e.terminate(snap),
		Info:         info,
	}, nil
}

func (e *Engine) validate(agents []*agent.Agent, actions []Action) error {
	if len(actions) != len(agents) {
		return errs.Argument("ожидалось %d действий, получено %d", len(agents), len(actions))
	}
	if !e.speedLimit {
		return nil
	}
	for i, a := range agents {
		speed := a.Rules().Speed
		if step := actions[i].Movement.ChebyshevLen(); step > speed {
			return errs.Argument("агент %d (%s): смещение %s превышает скорость %d", a.ID, a.Kind, actions[i].Movement, speed)
		}
	}
	return nil
}

// Time возвращает текущий тик мира
func (e *Engine) Time() int { return e.world.Time() }

// ObservationSpace описывает пространство наблюдений среды
func (e *Engine) ObservationSpace() world.ObservationSpace { return e.world.ObservationSpace() }

// ActionSpace описывает пространство действий среды
func (e *Engine) ActionSpace() world.ActionSpace { return e.world.ActionSpace() }

// ValidMove проверяет, может ли агент типа kind стоять в позиции pos.
// Обычные препятствия блокируют всех, воздушные - всех, кто не летает.
func (e *Engine) ValidMove(kind agent.Kind, pos vec.Vec2) bool {
	obstacles := e.world.ObstaclesNear(pos, e.collider.Threshold())
	positions := make([]vec.Vec2, len(obstacles))
	for i, o := range obstacles {
		positions[i] = o.Position
	}
	passesAerial := kind.Rules().PassesAerial
	return e.collider.CanMoveToPosition(pos, positions, func(i int) bool {
		return obstacles[i].Kind == world.ObstacleNormal || !passesAerial
	})
}

// Observations строит текущие наблюдения всех агентов, не трогая историю
func (e *Engine) Observations() []world.Observation {
	return e.observe(e.world.Agents(), e.world.Snapshot(), false)
}

func (e *Engine) observe(agents []*agent.Agent, snap world.Snapshot, record bool) []world.Observation {
	observations := make([]world.Observation, 0, len(agents))
	for _, a := range agents {
		obs := world.Observe(a, snap)
		observations = append(observations, obs)
		if record {
			e.remember(obs)
		}
	}
	return observations
}

func (e *Engine) remember(obs world.Observation) {
	if e.historyLimit <= 0 {
		return
	}
	h := append(e.history[obs.AgentID], obs)
	if len(h) > e.historyLimit {
		h = h[len(h)-e.historyLimit:]
	}
	e.history[obs.AgentID] = h
}

// History возвращает последние наблюдения агента, от старых к новым
func (e *Engine) History(agentID int) []world.Observation {
	h := e.history[agentID]
	result := make([]world.Observation, len(h))
	copy(result, h)
	return result
}

// Reset обнуляет время и возвращает снимок. Содержимое мира сохраняется.
func (e *Engine) Reset() world.Snapshot {
	e.world.ResetTime()
	e.channel.Clear()
	e.history = make(map[int][]world.Observation)
	return e.world.Snapshot()
}
