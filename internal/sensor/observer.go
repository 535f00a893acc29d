// Package sensor реализует вращающийся наблюдатель с конусом обзора.
package sensor

import (
	"math"

	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// CategoryPatient - категория обнаружения пациента
const CategoryPatient = "patient"

// Параметры наблюдателя по умолчанию
var (
	DefaultPosition      = vec.Vec2{X: 100, Y: 300}
	DefaultViewRange     = 800.0
	DefaultFOV           = math.Pi / 3
	DefaultRotationSpeed = 2.0 // градусов за тик
)

// Detection - одно обнаружение за скан
type Detection struct {
	Category      string   `json:"type"`
	Position      vec.Vec2 `json:"position"`
	Distance      float64  `json:"distance"`
	DetectionTime int      `json:"detection_time"`
}

// Observer - неподвижный сенсор, который каждый тик поворачивает конус
// обзора и ищет в нём пациентов.
type Observer struct {
	position      vec.Vec2
	viewRange     float64
	fov           float64 // Полный угол обзора в радианах
	rotationSpeed float64 // Градусов за тик
	heading       float64 // Радианы, [0, 2π)
	history       []Detection
}

// Option настраивает Observer
type Option func(*Observer)

// WithPosition задаёт позицию наблюдателя
func WithPosition(pos vec.Vec2) Option {
	return func(o *Observer) { o.position = pos }
}

// WithViewRange задаёт дальность обзора
func WithViewRange(r float64) Option {
	return func(o *Observer) { o.viewRange = r }
}

// WithFOV задаёт полный угол обзора в радианах
func WithFOV(fov float64) Option {
	return func(o *Observer) { o.fov = fov }
}

// WithRotationSpeed задаёт скорость вращения в градусах за тик
func WithRotationSpeed(deg float64) Option {
	return func(o *Observer) { o.rotationSpeed = deg }
}

// WithHeading задаёт начальное направление в радианах
func WithHeading(rad float64) Option {
	return func(o *Observer) { o.heading = physics.WrapHeading(rad) }
}

// NewObserver создаёт наблюдателя с параметрами по умолчанию
func NewObserver(opts ...Option) *Observer {
	o := &Observer{
		position:      DefaultPosition,
		viewRange:     DefaultViewRange,
		fov:           DefaultFOV,
		rotationSpeed: DefaultRotationSpeed,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Position возвращает позицию наблюдателя
func (o *Observer) Position() vec.Vec2 { return o.position }

// ViewRange возвращает дальность обзора
func (o *Observer) ViewRange() float64 { return o.viewRange }

// FOV возвращает полный угол обзора
func (o *Observer) FOV() float64 { return o.fov }

// Heading возвращает текущее направление в радианах
func (o *Observer) Heading() float64 { return o.heading }

// Scan поворачивает конус на один шаг и возвращает пациентов, попавших в него.
// Обнаружения также добавляются в историю.
func (o *Observer) Scan(snap world.Snapshot) []Detection {
	o.heading = physics.WrapHeading(o.heading + physics.Radians(o.rotationSpeed))

	halfFOV := o.fov / 2
	detections := make([]Detection, 0)
	for _, p := range snap.Patients {
		if !physics.InCone(o.position, o.heading, halfFOV, o.viewRange, p) {
			continue
		}
		detections = append(detections, Detection{
			Category:      CategoryPatient,
			Position:      p,
			Distance:      physics.Distance(o.position, p),
			DetectionTime: snap.Time,
		})
	}

	o.history = append(o.history, detections...)
	return detections
}

// History возвращает копию всех обнаружений с момента создания
func (o *Observer) History() []Detection {
	result := make([]Detection, len(o.history))
	copy(result, o.history)
	return result
}
