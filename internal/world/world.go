// Package world хранит авторитетное состояние спасательной миссии:
// время, пациентов, типизированные препятствия и агентов.
package world

import (
	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/vec"
)

// Значения по умолчанию из исходной конфигурации спасательной среды
const (
	DefaultWidth        = 800
	DefaultHeight       = 600
	DefaultGridSize     = 20
	DefaultObstacleSize = 20
)

// Obstacle - препятствие с позицией и типом проходимости
type Obstacle struct {
	Position vec.Vec2
	Kind     ObstacleKind
}

// World - состояние мира. Не потокобезопасен: между тиками мир настраивает
// вызывающий код, во время тика изменяет только движок шага.
type World struct {
	width        int
	height       int
	gridSize     int
	obstacleSize float64
	time         int

	patients      []vec.Vec2
	obstacles     map[vec.Vec2]ObstacleKind
	obstacleOrder []vec.Vec2 // Порядок первой вставки - для детерминированных снимков
	index         *SpatialIndex
	agents        []*agent.Agent
	agentIDs      map[int]struct{}
	nextAgentID   int
}

// Option настраивает World при создании
type Option func(*World)

// WithGridSize задаёт шаг сетки (используется для описания пространства наблюдений)
func WithGridSize(size int) Option {
	return func(w *World) { w.gridSize = size }
}

// WithObstacleSize задаёт сторону квадратного препятствия
func WithObstacleSize(size float64) Option {
	return func(w *World) { w.obstacleSize = size }
}

// New создаёт пустой мир размером width × height
func New(width, height int, opts ...Option) (*World, error) {
	w := &World{
		width:        width,
		height:       height,
		gridSize:     DefaultGridSize,
		obstacleSize: DefaultObstacleSize,
		obstacles:    make(map[vec.Vec2]ObstacleKind),
		agentIDs:     make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.width <= 0 || w.height <= 0 {
		return nil, errs.Configuration("environment", "размеры мира должны быть положительными: %dx%d", w.width, w.height)
	}
	if w.gridSize <= 0 {
		return nil, errs.Configuration("environment.grid_size", "шаг сетки должен быть положительным: %d", w.gridSize)
	}
	if w.obstacleSize <= 0 {
		return nil, errs.Configuration("environment.obstacle_size", "размер препятствия должен быть положительным: %v", w.obstacleSize)
	}
	w.index = NewSpatialIndex(w.gridSize)
	return w, nil
}

// NewDefault создаёт мир 800×600 с параметрами по умолчанию
func NewDefault() *World {
	w, _ := New(DefaultWidth, DefaultHeight)
	return w
}

// Width возвращает ширину мира
func (w *World) Width() int { return w.width }

// Height возвращает высоту мира
func (w *World) Height() int { return w.height }

// GridSize возвращает шаг сетки
func (w *World) GridSize() int { return w.gridSize }

// ObstacleSize возвращает сторону препятствия
func (w *World) ObstacleSize() float64 { return w.obstacleSize }

// Time возвращает текущий тик
func (w *World) Time() int { return w.time }

// AdvanceTime увеличивает время на один тик
func (w *World) AdvanceTime() { w.time++ }

// ResetTime обнуляет время, сохраняя содержимое мира
func (w *World) ResetTime() { w.time = 0 }

func (w *World) checkBounds(field string, pos vec.Vec2) error {
	if !pos.InBounds(w.width, w.height) {
		return errs.Configuration(field, "позиция %s вне мира [0,%d]×[0,%d]", pos, w.width, w.height)
	}
	return nil
}

// AddPatient добавляет пациента. Дубликаты допустимы, порядок - порядок вставки.
func (w *World) AddPatient(pos vec.Vec2) error {
	if err := w.checkBounds("patient", pos); err != nil {
		return err
	}
	w.patients = append(w.patients, pos)
	return nil
}

// AddObstacle добавляет препятствие. Повторное добавление в ту же позицию
// перезаписывает тип, сохраняя исходное место в порядке обхода.
func (w *World) AddObstacle(pos vec.Vec2, kind ObstacleKind) error {
	if !kind.Valid() {
		return errs.Configuration("obstacle.kind", "неизвестный тип препятствия %d", kind)
	}
	if err := w.checkBounds("obstacle", pos); err != nil {
		return err
	}
	if _, exists := w.obstacles[pos]; !exists {
		w.obstacleOrder = append(w.obstacleOrder, pos)
		w.index.Insert(pos)
	}
	w.obstacles[pos] = kind
	return nil
}

// ObstaclesNear возвращает препятствия, центр которых ближе radius по каждой оси
func (w *World) ObstaclesNear(pos vec.Vec2, radius float64) []Obstacle {
	points := w.index.Query(pos, radius)
	result := make([]Obstacle, len(points))
	for i, p := range points {
		result[i] = Obstacle{Position: p, Kind: w.obstacles[p]}
	}
	return result
}

// ObstacleAt возвращает тип препятствия в позиции
func (w *World) ObstacleAt(pos vec.Vec2) (ObstacleKind, bool) {
	kind, ok := w.obstacles[pos]
	return kind, ok
}

// AddAgent добавляет агента с заранее заданным ID.
// ID должен быть уникальным и не совпадать с comm.SensorID.
func (w *World) AddAgent(a *agent.Agent) error {
	if a == nil {
		return errs.Configuration("agent", "агент не задан")
	}
	if a.ID == comm.SensorID {
		return errs.Configuration("agent.id", "ID %d зарезервирован за наблюдателем", a.ID)
	}
	if _, exists := w.agentIDs[a.ID]; exists {
		return errs.Configuration("agent.id", "агент с ID %d уже существует", a.ID)
	}
	if !a.Kind.Valid() {
		return errs.Configuration("agent.kind", "неизвестный тип агента %d", a.Kind)
	}
	if err := w.checkBounds("agent.position", a.Position); err != nil {
		return err
	}

	w.agents = append(w.agents, a)
	w.agentIDs[a.ID] = struct{}{}
	if a.ID >= w.nextAgentID {
		w.nextAgentID = a.ID + 1
	}
	return nil
}

// SpawnAgent создаёт агента со следующим свободным ID и добавляет его в мир.
// ID никогда не переиспользуются.
func (w *World) SpawnAgent(kind agent.Kind, pos vec.Vec2) (*agent.Agent, error) {
	a := agent.New(w.nextAgentID, kind, pos)
	if err := w.AddAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Agents возвращает агентов в порядке добавления. Этот порядок - порядок
// разрешения одновременных ходов. Срез копируется, указатели - нет.
func (w *World) Agents() []*agent.Agent {
	result := make([]*agent.Agent, len(w.agents))
	copy(result, w.agents)
	return result
}

// AgentCount возвращает количество агентов
func (w *World) AgentCount() int {
	return len(w.agents)
}

// Patients возвращает копию списка пациентов
func (w *World) Patients() []vec.Vec2 {
	result := make([]vec.Vec2, len(w.patients))
	copy(result, w.patients)
	return result
}

// Obstacles возвращает препятствия в порядке первой вставки
func (w *World) Obstacles() []Obstacle {
	result := make([]Obstacle, 0, len(w.obstacleOrder))
	for _, pos := range w.obstacleOrder {
		result = append(result, Obstacle{Position: pos, Kind: w.obstacles[pos]})
	}
	return result
}

// Snapshot строит свежую проекцию состояния. Все срезы - копии.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Time:      w.time,
		Patients:  w.Patients(),
		Obstacles: make([]ObstacleView, 0, len(w.obstacleOrder)),
		Agents:    make([]AgentView, 0, len(w.agents)),
	}
	for _, pos := range w.obstacleOrder {
		snap.Obstacles = append(snap.Obstacles, ObstacleView{Position: pos, Kind: w.obstacles[pos].String()})
	}
	for _, a := range w.agents {
		snap.Agents = append(snap.Agents, AgentView{ID: a.ID, Position: a.Position, Kind: a.Kind.String()})
	}
	return snap
}

// ObservationSpace описывает пространство наблюдений среды
func (w *World) ObservationSpace() ObservationSpace {
	return ObservationSpace{
		Width:    w.width,
		Height:   w.height,
		GridSize: w.gridSize,
		Features: []string{"patients", "obstacles", "agents"},
	}
}

// ActionSpace описывает пространство действий: вектор смещения (dx, dy)
func (w *World) ActionSpace() ActionSpace {
	return ActionSpace{
		Type:  "discrete",
		Shape: []int{2},
		Min:   -maxSpeed(),
		Max:   maxSpeed(),
	}
}

func maxSpeed() int {
	best := 0
	for _, k := range agent.Kinds() {
		if s := k.Rules().Speed; s > best {
			best = s
		}
	}
	return best
}
