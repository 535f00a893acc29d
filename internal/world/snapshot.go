package world

import (
	"strings"

	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/vec"
)

// ObstacleKind определяет, кто может пройти сквозь препятствие
type ObstacleKind uint8

const (
	ObstacleNormal ObstacleKind = iota // Блокирует всех агентов
	ObstacleAerial                     // Блокирует всех, кроме пролетающих
)

// String возвращает имя типа: NORMAL или AERIAL
func (k ObstacleKind) String() string {
	switch k {
	case ObstacleNormal:
		return "NORMAL"
	case ObstacleAerial:
		return "AERIAL"
	default:
		return "UNKNOWN"
	}
}

// Valid сообщает, является ли значение известным типом препятствия
func (k ObstacleKind) Valid() bool {
	return k == ObstacleNormal || k == ObstacleAerial
}

// ParseObstacleKind разбирает имя типа препятствия без учёта регистра
func ParseObstacleKind(name string) (ObstacleKind, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NORMAL":
		return ObstacleNormal, nil
	case "AERIAL":
		return ObstacleAerial, nil
	default:
		return 0, errs.Configuration("obstacle.kind", "неизвестный тип препятствия %q", name)
	}
}

// ObstacleView - препятствие в снимке
type ObstacleView struct {
	Position vec.Vec2 `json:"position"`
	Kind     string   `json:"kind"`
}

// AgentView - агент в снимке
type AgentView struct {
	ID       int      `json:"id"`
	Position vec.Vec2 `json:"position"`
	Kind     string   `json:"kind"`
}

// Snapshot - неизменяемая проекция состояния мира на момент Time.
// Изменение срезов снимка не влияет на мир.
type Snapshot struct {
	Time      int            `json:"time"`
	Patients  []vec.Vec2     `json:"patients"`
	Obstacles []ObstacleView `json:"obstacles"`
	Agents    []AgentView    `json:"agents"`
}

// Agent ищет агента снимка по ID
func (s Snapshot) Agent(id int) (AgentView, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentView{}, false
}

// ObservationSpace - описание пространства наблюдений
type ObservationSpace struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	GridSize int      `json:"grid_size"`
	Features []string `json:"features"`
}

// ActionSpace - описание пространства действий
type ActionSpace struct {
	Type    string   `json:"type"`
	Actions []string `json:"actions,omitempty"` // Именованные действия, если среда их различает
	Shape   []int    `json:"shape,omitempty"`
	Min     int      `json:"min,omitempty"`
	Max     int      `json:"max,omitempty"`
}
