// Package metrics собирает Prometheus-метрики симуляции и процесса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/rescue-sim/internal/engine"
)

const namespace = "rescue"

// SimMetrics - счётчики тиков, ходов, обнаружений и сообщений
type SimMetrics struct {
	ticks        prometheus.Counter
	moves        *prometheus.CounterVec
	detections   prometheus.Counter
	messages     prometheus.Counter
	stepDuration prometheus.Histogram
	episodes     *prometheus.CounterVec
}

// NewSimMetrics создаёт метрики и регистрирует их в reg
func NewSimMetrics(reg prometheus.Registerer) (*SimMetrics, error) {
	m := &SimMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Количество выполненных тиков.",
		}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Ходы агентов по типу и результату.",
		}, []string{"kind", "result"}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Пациенты, попавшие в конус наблюдателя.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Сообщения в канале на конец тика.",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Длительность Engine.Step.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Завершённые эпизоды по причине остановки.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{m.ticks, m.moves, m.detections, m.messages, m.stepDuration, m.episodes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveStep учитывает результат тика и его длительность в секундах
func (m *SimMetrics) ObserveStep(info engine.Info, seconds float64) {
	m.ticks.Inc()
	m.stepDuration.Observe(seconds)
	m.detections.Add(float64(len(info.Detections)))
	m.messages.Add(float64(info.Messages))
	for _, mv := range info.Moves {
		result := "rejected"
		if mv.Committed {
			result = "committed"
		}
		m.moves.WithLabelValues(mv.Kind.String(), result).Inc()
	}
}

// EpisodeFinished учитывает завершение эпизода
func (m *SimMetrics) EpisodeFinished(reason string) {
	m.episodes.WithLabelValues(reason).Inc()
}

// NewRegistry создаёт отдельный реестр со стандартными Go-коллекторами
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
