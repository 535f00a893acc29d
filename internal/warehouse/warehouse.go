// Package warehouse - вторая среда симулятора: склад со стеллажами, товарами
// и зарядными станциями. Движение агентов разрешается так же, как в
// спасательной среде: насыщающий сдвиг, отсечение по границам и бокс-тест
// столкновений, только порог берётся по полному размеру стеллажа.
package warehouse

import (
	"sort"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// Параметры склада по умолчанию
const (
	DefaultWidth        = 1000
	DefaultHeight       = 800
	DefaultGridSize     = 20
	ShelfSize           = 40 // Порог столкновения со стеллажом по каждой оси
	ItemSize            = 15 // Радиус захвата товара
	ChargingStationSize = 30 // Сторона площадки зарядки
	FullBattery         = 100
)

// ActionKind - тип действия складского агента
type ActionKind uint8

const (
	ActionMove ActionKind = iota
	ActionPickup
	ActionDrop
	ActionCharge
)

var actionNames = map[ActionKind]string{
	ActionMove:   "move",
	ActionPickup: "pickup",
	ActionDrop:   "drop",
	ActionCharge: "charge",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid сообщает, известен ли тип действия
func (k ActionKind) Valid() bool {
	_, ok := actionNames[k]
	return ok
}

// ParseAction ищет тип действия по имени
func ParseAction(name string) (ActionKind, error) {
	for k, n := range actionNames {
		if n == name {
			return k, nil
		}
	}
	return 0, errs.Lookup("warehouse action", name)
}

// Action - действие агента на тик. Movement учитывается только для ActionMove.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Movement vec.Vec2   `json:"movement"`
}

// Item - товар на полке или в руках агента
type Item struct {
	Position vec.Vec2               `json:"position"`
	Info     map[string]interface{} `json:"info,omitempty"`
}

// AgentState - складское состояние агента
type AgentState struct {
	Battery  int   `json:"battery"`
	Carrying *Item `json:"carrying,omitempty"`
}

// Outcome - итог действия одного агента
type Outcome struct {
	AgentID int        `json:"agent_id"`
	Action  ActionKind `json:"action"`
	From    vec.Vec2   `json:"from"`
	To      vec.Vec2   `json:"to"`
	Success bool       `json:"success"`
}

// StepResult - результат тика склада
type StepResult struct {
	State        State         `json:"state"`
	Observations []Observation `json:"observations"`
	Done         bool          `json:"done"`
	Outcomes     []Outcome     `json:"outcomes"`
}

// Option настраивает Env при создании
type Option func(*Env)

// WithTermination задаёт правило завершения эпизода. По умолчанию эпизод не завершается.
func WithTermination(done func(State) bool) Option {
	return func(e *Env) { e.terminate = done }
}

// WithLogger задаёт логгер среды
func WithLogger(logger *logging.Logger) Option {
	return func(e *Env) { e.logger = logger }
}

// Env - состояние склада и его шаг. Не потокобезопасен.
type Env struct {
	width, height int
	time          int

	shelves   []vec.Vec2
	stations  []vec.Vec2
	items     map[vec.Vec2]Item
	itemOrder []vec.Vec2

	agents   []*agent.Agent
	agentIDs map[int]struct{}
	state    map[int]*AgentState

	terminate func(State) bool
	logger    *logging.Logger
}

// New создаёт пустой склад width × height
func New(width, height int, opts ...Option) (*Env, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Configuration("warehouse", "размеры склада должны быть положительными: %dx%d", width, height)
	}
	e := &Env{
		width:    width,
		height:   height,
		items:    make(map[vec.Vec2]Item),
		agentIDs: make(map[int]struct{}),
		state:    make(map[int]*AgentState),
		logger:   logging.GetComponentLogger("warehouse"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewDefault создаёт склад 1000×800
func NewDefault(opts ...Option) *Env {
	e, _ := New(DefaultWidth, DefaultHeight, opts...)
	return e
}

// Time возвращает текущий тик
func (e *Env) Time() int { return e.time }

func (e *Env) checkBounds(field string, pos vec.Vec2) error {
	if !pos.InBounds(e.width, e.height) {
		return errs.Configuration(field, "позиция %s вне склада %dx%d", pos, e.width, e.height)
	}
	return nil
}

// AddShelf добавляет стеллаж
func (e *Env) AddShelf(pos vec.Vec2) error {
	if err := e.checkBounds("shelf", pos); err != nil {
		return err
	}
	e.shelves = append(e.shelves, pos)
	return nil
}

// AddChargingStation добавляет зарядную станцию
func (e *Env) AddChargingStation(pos vec.Vec2) error {
	if err := e.checkBounds("charging_station", pos); err != nil {
		return err
	}
	e.stations = append(e.stations, pos)
	return nil
}

// AddItem кладёт товар. Товар в той же позиции заменяется, место в порядке сохраняется.
func (e *Env) AddItem(pos vec.Vec2, info map[string]interface{}) error {
	if err := e.checkBounds("item", pos); err != nil {
		return err
	}
	e.putItem(Item{Position: pos, Info: info})
	return nil
}

func (e *Env) putItem(item Item) {
	if _, exists := e.items[item.Position]; !exists {
		e.itemOrder = append(e.itemOrder, item.Position)
	}
	e.items[item.Position] = item
}

func (e *Env) takeItem(pos vec.Vec2) Item {
	item := e.items[pos]
	delete(e.items, pos)
	for i, p := range e.itemOrder {
		if p == pos {
			e.itemOrder = append(e.itemOrder[:i], e.itemOrder[i+1:]...)
			break
		}
	}
	return item
}

// AddAgent добавляет агента с полной батареей. ID должен быть уникальным.
func (e *Env) AddAgent(a *agent.Agent) error {
	if _, dup := e.agentIDs[a.ID]; dup {
		return errs.Configuration("agent.id", "агент %d уже существует", a.ID)
	}
	if err := e.checkBounds("agent", a.Position); err != nil {
		return err
	}
	e.agentIDs[a.ID] = struct{}{}
	e.agents = append(e.agents, a)
	e.state[a.ID] = &AgentState{Battery: FullBattery}
	return nil
}

// Agents возвращает агентов в порядке добавления
func (e *Env) Agents() []*agent.Agent {
	result := make([]*agent.Agent, len(e.agents))
	copy(result, e.agents)
	return result
}

// AgentState возвращает копию складского состояния агента
func (e *Env) AgentState(id int) (AgentState, bool) {
	st, ok := e.state[id]
	if !ok {
		return AgentState{}, false
	}
	return *st, true
}

// ValidMove проверяет, свободна ли позиция от стеллажей
func (e *Env) ValidMove(pos vec.Vec2) bool {
	for _, shelf := range e.shelves {
		if physics.Collides(pos, shelf, ShelfSize) {
			return false
		}
	}
	return true
}

// Step применяет действия агентов по порядку и продвигает время.
// Число действий должно совпадать с числом агентов, типы действий - быть известны;
// иначе ArgumentError и состояние не меняется.
func (e *Env) Step(actions []Action) (StepResult, error) {
	if len(actions) != len(e.agents) {
		return StepResult{}, errs.Argument("ожидалось %d действий, получено %d", len(e.agents), len(actions))
	}
	for i, act := range actions {
		if !act.Kind.Valid() {
			return StepResult{}, errs.Argument("агент %d: неизвестное действие %d", e.agents[i].ID, act.Kind)
		}
	}

	outcomes := make([]Outcome, 0, len(e.agents))
	for i, a := range e.agents {
		act := actions[i]
		st := e.state[a.ID]
		out := Outcome{AgentID: a.ID, Action: act.Kind, From: a.Position, To: a.Position}

		switch act.Kind {
		case ActionMove:
			out.Success = e.move(a, st, act.Movement)
			out.To = a.Position
		case ActionPickup:
			out.Success = e.pickup(a, st)
		case ActionDrop:
			out.Success = e.drop(a, st)
		case ActionCharge:
			out.Success = e.charge(a, st)
		}
		if !out.Success {
			e.logger.Trace("📦 Действие %s агента %d в %s не выполнено", act.Kind, a.ID, a.Position)
		}
		outcomes = append(outcomes, out)
	}

	e.time++
	state := e.State()
	return StepResult{
		State:        state,
		Observations: e.observe(state),
		Done:         e.terminate != nil && e.terminate(state),
		Outcomes:     outcomes,
	}, nil
}

// move тратит единицу заряда на каждый состоявшийся сдвиг
func (e *Env) move(a *agent.Agent, st *AgentState, delta vec.Vec2) bool {
	if st.Battery <= 0 {
		return false
	}
	candidate := a.Position.MoveClamped(delta, e.width, e.height)
	if !e.ValidMove(candidate) {
		return false
	}
	if candidate != a.Position {
		a.Position = candidate
		st.Battery--
	}
	return true
}

// pickup берёт ближайший товар в радиусе ItemSize; при равенстве - более ранний
func (e *Env) pickup(a *agent.Agent, st *AgentState) bool {
	if st.Carrying != nil {
		return false
	}
	best, found := vec.Vec2{}, false
	bestDist := 0.0
	for _, pos := range e.itemOrder {
		d := physics.Distance(a.Position, pos)
		if d <= ItemSize && (!found || d < bestDist) {
			best, bestDist, found = pos, d, true
		}
	}
	if !found {
		return false
	}
	item := e.takeItem(best)
	st.Carrying = &item
	return true
}

// drop кладёт товар в позицию агента, если она не занята другим товаром
func (e *Env) drop(a *agent.Agent, st *AgentState) bool {
	if st.Carrying == nil {
		return false
	}
	if _, occupied := e.items[a.Position]; occupied {
		return false
	}
	item := *st.Carrying
	item.Position = a.Position
	e.putItem(item)
	st.Carrying = nil
	return true
}

// charge заряжает батарею, если агент стоит на площадке станции
func (e *Env) charge(a *agent.Agent, st *AgentState) bool {
	for _, station := range e.stations {
		if physics.Collides(a.Position, station, ChargingStationSize/2) {
			st.Battery = FullBattery
			return true
		}
	}
	return false
}

// Reset очищает стеллажи, товары и станции и обнуляет время.
// Агенты остаются на местах с полной батареей и пустыми руками.
func (e *Env) Reset() State {
	e.time = 0
	e.shelves = nil
	e.stations = nil
	e.items = make(map[vec.Vec2]Item)
	e.itemOrder = nil
	for _, st := range e.state {
		*st = AgentState{Battery: FullBattery}
	}
	return e.State()
}

// ObservationSpace описывает пространство наблюдений склада
func (e *Env) ObservationSpace() world.ObservationSpace {
	return world.ObservationSpace{
		Width:    e.width,
		Height:   e.height,
		GridSize: DefaultGridSize,
		Features: []string{"items", "shelves", "charging_stations", "agents"},
	}
}

// ActionSpace описывает дискретные действия склада
func (e *Env) ActionSpace() world.ActionSpace {
	kinds := make([]ActionKind, 0, len(actionNames))
	for k := range actionNames {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return world.ActionSpace{Type: "discrete", Actions: names}
}
