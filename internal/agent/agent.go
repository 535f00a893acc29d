// Package agent описывает агентов спасательной миссии.
//
// Вместо иерархии классов у агента есть тег Kind; правила движения, обзора
// и проходимости берутся из таблицы по этому тегу.
package agent

import (
	"strings"

	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/vec"
)

// Kind определяет тип агента
type Kind uint8

const (
	KindAerial Kind = iota // Дрон: быстрый, пролетает воздушные препятствия
	KindGround             // Колёсный агент: медленный, узкий обзор
	KindSensor             // Неподвижный наблюдатель с широким обзором
	numKinds
)

// Rules - правила, определяемые типом агента
type Rules struct {
	Speed        int     // Максимальный шаг по каждой оси за тик
	ViewRange    float64 // Радиус обзора (включительно)
	PassesAerial bool    // Может ли проходить сквозь воздушные препятствия
}

var kindRules = [numKinds]Rules{
	KindAerial: {Speed: 2, ViewRange: 150, PassesAerial: true},
	KindGround: {Speed: 1, ViewRange: 100, PassesAerial: false},
	KindSensor: {Speed: 0, ViewRange: 700, PassesAerial: false},
}

var kindNames = [numKinds]string{
	KindAerial: "AERIAL",
	KindGround: "GROUND",
	KindSensor: "SENSOR",
}

// Псевдонимы из исходных имён классов агентов
var kindAliases = map[string]Kind{
	"aerial":       KindAerial,
	"drone":        KindAerial,
	"droneagent":   KindAerial,
	"ground":       KindGround,
	"wheeled":      KindGround,
	"wheeledagent": KindGround,
	"sensor":       KindSensor,
	"observer":     KindSensor,
}

// String возвращает стабильное имя типа: AERIAL, GROUND или SENSOR
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Valid сообщает, является ли тип известным
func (k Kind) Valid() bool {
	return k < numKinds
}

// Rules возвращает правила типа. Для неизвестного типа - нулевые правила.
func (k Kind) Rules() Rules {
	if k < numKinds {
		return kindRules[k]
	}
	return Rules{}
}

// Kinds возвращает все известные типы в стабильном порядке
func Kinds() []Kind {
	return []Kind{KindAerial, KindGround, KindSensor}
}

// ParseKind разбирает имя типа без учёта регистра.
// Неизвестное имя - ConfigurationError.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return 0, errs.Configuration("agent.kind", "неизвестный тип агента %q", name)
}

// MarshalText кодирует тип его именем
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText разбирает тип по имени или псевдониму
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Agent - участник симуляции. Позицию меняет только движок шага.
type Agent struct {
	ID       int
	Kind     Kind
	Position vec.Vec2
	Inbox    []comm.Message // Сообщения, полученные в последнем тике
}

// New создаёт агента с указанным ID
func New(id int, kind Kind, pos vec.Vec2) *Agent {
	return &Agent{ID: id, Kind: kind, Position: pos}
}

// Rules возвращает правила типа агента
func (a *Agent) Rules() Rules {
	return a.Kind.Rules()
}

// Deliver заменяет входящие сообщения агента сообщениями текущего тика
func (a *Agent) Deliver(msgs []comm.Message) {
	a.Inbox = msgs
}
