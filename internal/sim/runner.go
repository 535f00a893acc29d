// Package sim крутит эпизод: опрашивает политики, вызывает Engine.Step и
// раздаёт результат тика хранилищу, шине событий, метрикам и наблюдателям.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/eventbus"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/metrics"
	"github.com/annel0/rescue-sim/internal/observability"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/storage"
	"github.com/annel0/rescue-sim/internal/world"
)

// Причины завершения эпизода
const (
	ReasonDone      = "done"
	ReasonMaxTicks  = "max_ticks"
	ReasonCancelled = "cancelled"
)

const eventSource = "runner"

var (
	// ErrNotPaused возвращается при попытке пошагового режима без паузы
	ErrNotPaused = errors.New("цикл не на паузе")
	errPaused    = errors.New("цикл на паузе")
)

// Status - состояние цикла для API
type Status struct {
	EpisodeID string `json:"episode_id"`
	Tick      int    `json:"tick"`
	Running   bool   `json:"running"`
	Paused    bool   `json:"paused"`
	Done      bool   `json:"done"`
}

// Summary - итог эпизода
type Summary struct {
	EpisodeID string `json:"episode_id"`
	Ticks     int    `json:"ticks"`
	Reason    string `json:"reason"`
}

// Runner управляет одним эпизодом. Engine принадлежит циклу: все вызовы Step
// идут под stepMu, а читатели получают копию последнего результата.
type Runner struct {
	engine   *engine.Engine
	policies []policy.Policy

	store   storage.SnapshotStore
	bus     eventbus.EventBus
	metrics *metrics.SimMetrics
	tracer  trace.Tracer
	logger  *logging.Logger

	episodeID string
	maxTicks  int
	interval  time.Duration

	stepMu  sync.Mutex
	current []world.Observation

	mu       sync.RWMutex
	last     engine.StepResult
	paused   bool
	running  bool
	done     bool
	resumeCh chan struct{}
	watchers map[int]chan engine.StepResult
	nextW    int
}

// Option настраивает Runner
type Option func(*Runner)

// WithStore сохраняет каждый тик в хранилище реплеев
func WithStore(store storage.SnapshotStore) Option {
	return func(r *Runner) { r.store = store }
}

// WithBus публикует события тиков в шину
func WithBus(bus eventbus.EventBus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithMetrics включает учёт Prometheus-метрик
func WithMetrics(m *metrics.SimMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer задаёт трейсер вместо глобального
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithLogger задаёт логгер цикла
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithEpisodeID задаёт идентификатор эпизода
func WithEpisodeID(id string) Option {
	return func(r *Runner) { r.episodeID = id }
}

// WithMaxTicks ограничивает длину эпизода. 0 - без ограничения.
func WithMaxTicks(n int) Option {
	return func(r *Runner) { r.maxTicks = n }
}

// WithInterval задаёт паузу между тиками. 0 - без задержки.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithPaused запускает цикл на паузе
func WithPaused() Option {
	return func(r *Runner) { r.paused = true }
}

// NewRunner связывает движок с политиками. Политики идут в порядке агентов мира.
func NewRunner(eng *engine.Engine, policies []policy.Policy, opts ...Option) (*Runner, error) {
	if n := eng.World().AgentCount(); n != len(policies) {
		return nil, errs.Argument("ожидалось %d политик, получено %d", n, len(policies))
	}
	r := &Runner{
		engine:    eng,
		policies:  policies,
		tracer:    observability.Tracer(),
		logger:    logging.Default(),
		episodeID: "episode",
		resumeCh:  make(chan struct{}),
		watchers:  make(map[int]chan engine.StepResult),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.current = eng.Observations()
	r.last = engine.StepResult{
		Snapshot:     eng.World().Snapshot(),
		Observations: r.current,
	}
	return r, nil
}

// Engine возвращает движок эпизода. Вызывать Step напрямую нельзя, пока работает Run.
func (r *Runner) Engine() *engine.Engine { return r.engine }

// EpisodeID возвращает идентификатор эпизода
func (r *Runner) EpisodeID() string { return r.episodeID }

// Store возвращает хранилище реплеев или nil
func (r *Runner) Store() storage.SnapshotStore { return r.store }

// Tick выполняет один тик: действия политик, Step, опыт для обучаемых политик
// и раздача результата.
func (r *Runner) Tick(ctx context.Context) (engine.StepResult, error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	return r.tick(ctx)
}

func (r *Runner) tick(ctx context.Context) (engine.StepResult, error) {
	ctx, span := r.tracer.Start(ctx, "sim.Tick", trace.WithAttributes(
		attribute.String("episode.id", r.episodeID),
	))
	defer span.End()

	actions := make([]engine.Action, len(r.policies))
	for i, p := range r.policies {
		obs := r.current[i]
		actions[i].Movement = p.SelectAction(obs)
		if m, ok := p.(policy.Messenger); ok {
			actions[i].Message = m.Message(obs)
		}
	}

	start := time.Now()
	result, err := r.engine.Step(actions)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return engine.StepResult{}, err
	}

	for i, p := range r.policies {
		if l, ok := p.(policy.Learner); ok {
			l.Update(policy.Experience{
				AgentID:     r.current[i].AgentID,
				Observation: r.current[i],
				Action:      actions[i].Movement,
				Next:        result.Observations[i],
				Done:        result.Done,
			})
		}
	}
	r.current = result.Observations

	span.SetAttributes(
		attribute.Int("tick", result.Info.Time),
		attribute.Int("moves.committed", result.Info.Committed),
		attribute.Int("moves.rejected", result.Info.Rejected),
		attribute.Int("detections", len(result.Info.Detections)),
	)

	if r.metrics != nil {
		r.metrics.ObserveStep(result.Info, elapsed.Seconds())
	}
	if err := r.persist(ctx, result); err != nil {
		// Потеря записи реплея не останавливает эпизод
		r.logger.Warn("⚠️ Не удалось сохранить тик %d эпизода %s: %v", result.Info.Time, r.episodeID, err)
	}
	r.publishTick(ctx, result)

	r.mu.Lock()
	r.last = result
	r.done = result.Done
	for _, ch := range r.watchers {
		select {
		case ch <- result:
		default:
			// Медленный наблюдатель пропускает тик
		}
	}
	r.mu.Unlock()

	r.logger.Trace("⏱️ Тик %d: ходов %d, отклонено %d, обнаружений %d",
		result.Info.Time, result.Info.Committed, result.Info.Rejected, len(result.Info.Detections))
	return result, nil
}

func (r *Runner) persist(ctx context.Context, result engine.StepResult) error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(ctx, storage.Record{
		EpisodeID:  r.episodeID,
		Tick:       result.Info.Time,
		Snapshot:   result.Snapshot,
		Info:       result.Info,
		RecordedAt: time.Now().UTC(),
	})
}

func (r *Runner) publishTick(ctx context.Context, result engine.StepResult) {
	if r.bus == nil {
		return
	}
	info := result.Info
	r.publish(ctx, eventbus.EventTickCompleted, 3, eventbus.TickEvent{
		EpisodeID:  r.episodeID,
		Tick:       info.Time,
		Committed:  info.Committed,
		Rejected:   info.Rejected,
		Detections: len(info.Detections),
		Messages:   info.Messages,
		Done:       result.Done,
	})
	for _, d := range info.Detections {
		r.publish(ctx, eventbus.EventPatientDetected, 5, eventbus.DetectionEvent{
			EpisodeID: r.episodeID,
			Detection: d,
		})
	}
	for _, mv := range info.Moves {
		if mv.Committed {
			continue
		}
		r.publish(ctx, eventbus.EventMoveRejected, 1, eventbus.MoveRejectedEvent{
			EpisodeID: r.episodeID,
			Tick:      info.Time,
			AgentID:   mv.AgentID,
			Kind:      mv.Kind.String(),
			From:      mv.From,
			To:        mv.To,
		})
	}
}

func (r *Runner) publish(ctx context.Context, eventType string, priority int, payload interface{}) {
	ev, err := eventbus.NewEnvelope(eventSource, eventType, r.episodeID, priority, payload)
	if err == nil {
		err = r.bus.Publish(ctx, ev)
	}
	if err != nil {
		r.logger.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}

// Run крутит тики до завершения эпизода, лимита тиков или отмены контекста
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.Info("🚁 Эпизод %s запущен: агентов %d, лимит тиков %d", r.episodeID, len(r.policies), r.maxTicks)

	var ticker *time.Ticker
	if r.interval > 0 {
		ticker = time.NewTicker(r.interval)
		defer ticker.Stop()
	}

	reason := ReasonCancelled
	for {
		if err := r.waitResumed(ctx); err != nil {
			break
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		result, err := r.stepIfRunning(ctx)
		if errors.Is(err, errPaused) {
			continue
		}
		if err != nil {
			return r.finish(ctx, ReasonCancelled), err
		}
		if result.Done {
			reason = ReasonDone
			break
		}
		if r.maxTicks > 0 && result.Info.Time >= r.maxTicks {
			reason = ReasonMaxTicks
			break
		}
	}
	return r.finish(ctx, reason), nil
}

// stepIfRunning делает тик, если цикл не поставили на паузу, пока ждали тикера
func (r *Runner) stepIfRunning(ctx context.Context) (engine.StepResult, error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	if r.Paused() {
		return engine.StepResult{}, errPaused
	}
	return r.tick(ctx)
}

func (r *Runner) finish(ctx context.Context, reason string) Summary {
	summary := Summary{EpisodeID: r.episodeID, Ticks: r.engine.World().Time(), Reason: reason}
	if r.metrics != nil {
		r.metrics.EpisodeFinished(reason)
	}
	if r.bus != nil {
		// Контекст цикла мог быть уже отменён
		r.publish(context.WithoutCancel(ctx), eventbus.EventEpisodeFinished, 9, eventbus.EpisodeEvent{
			EpisodeID: r.episodeID,
			Ticks:     summary.Ticks,
			Reason:    reason,
		})
	}
	r.logger.Info("🏁 Эпизод %s завершён за %d тиков (%s)", r.episodeID, summary.Ticks, reason)
	return summary
}

func (r *Runner) waitResumed(ctx context.Context) error {
	for {
		r.mu.RLock()
		paused, resume := r.paused, r.resumeCh
		r.mu.RUnlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

// Pause приостанавливает цикл после текущего тика
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		r.paused = true
		r.logger.Info("⏸️ Эпизод %s на паузе", r.episodeID)
	}
}

// Resume продолжает цикл
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		r.paused = false
		close(r.resumeCh)
		r.resumeCh = make(chan struct{})
		r.logger.Info("▶️ Эпизод %s продолжен", r.episodeID)
	}
}

// Paused сообщает, стоит ли цикл на паузе
func (r *Runner) Paused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// StepOnce выполняет один тик на паузе
func (r *Runner) StepOnce(ctx context.Context) (engine.StepResult, error) {
	if !r.Paused() {
		return engine.StepResult{}, ErrNotPaused
	}
	return r.Tick(ctx)
}

// Last возвращает результат последнего тика
func (r *Runner) Last() engine.StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Status возвращает состояние цикла
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		EpisodeID: r.episodeID,
		Tick:      r.last.Snapshot.Time,
		Running:   r.running,
		Paused:    r.paused,
		Done:      r.done,
	}
}

// Watch подписывает на результаты тиков. Медленный получатель пропускает тики.
// Возвращённая функция отменяет подписку и закрывает канал.
func (r *Runner) Watch(buffer int) (<-chan engine.StepResult, func()) {
	ch := make(chan engine.StepResult, buffer)
	r.mu.Lock()
	id := r.nextW
	r.nextW++
	r.watchers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}
