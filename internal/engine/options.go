package engine

import (
	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/comm"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/world"
)

// DefaultHistoryLimit - сколько последних наблюдений хранится на агента
const DefaultHistoryLimit = 64

// Option настраивает Engine
type Option func(*Engine)

// WithSpeedLimit включает проверку скорости: смещение больше скорости типа
// агента (по каждой оси) отклоняет весь шаг с ArgumentError.
func WithSpeedLimit() Option {
	return func(e *Engine) { e.speedLimit = true }
}

// WithPersistentMessages отключает очистку канала в начале тика
func WithPersistentMessages() Option {
	return func(e *Engine) { e.persistentMessages = true }
}

// WithTermination задаёт правило завершения эпизода
func WithTermination(done func(world.Snapshot) bool) Option {
	return func(e *Engine) { e.terminate = done }
}

// WithLogger задаёт логгер движка
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithChannel подключает внешний канал связи
func WithChannel(ch *comm.Channel) Option {
	return func(e *Engine) { e.channel = ch }
}

// WithHistoryLimit задаёт длину истории наблюдений агента
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.historyLimit = n }
}

// PatientsReached завершает эпизод, когда у каждого пациента есть
// подвижный агент в пределах radius.
func PatientsReached(radius float64) func(world.Snapshot) bool {
	return func(snap world.Snapshot) bool {
		if len(snap.Patients) == 0 {
			return false
		}
		for _, p := range snap.Patients {
			reached := false
			for _, a := range snap.Agents {
				if a.Kind == agent.KindSensor.String() {
					continue
				}
				if physics.Distance(a.Position, p) <= radius {
					reached = true
					break
				}
			}
			if !reached {
				return false
			}
		}
		return true
	}
}
