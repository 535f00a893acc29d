package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/eventbus"
	"github.com/annel0/rescue-sim/internal/metrics"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/registry"
	"github.com/annel0/rescue-sim/internal/storage"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// recorder - обучаемая политика, которая запоминает полученный опыт
type recorder struct {
	step vec.Vec2
	exps []policy.Experience
}

func (r *recorder) SelectAction(world.Observation) vec.Vec2 { return r.step }
func (r *recorder) Update(exp policy.Experience)            { r.exps = append(r.exps, exp) }

func newScenario(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	w, err := world.New(800, 600)
	require.NoError(t, err)
	require.NoError(t, w.AddPatient(vec.Vec2{X: 110, Y: 100}))
	require.NoError(t, w.AddAgent(agent.New(0, agent.KindAerial, vec.Vec2{X: 100, Y: 100})))
	return engine.New(w, NewObserverFromConfig(config.Default().Observer), opts...)
}

func TestNewRunner_PolicyCountMismatch(t *testing.T) {
	_, err := NewRunner(newScenario(t), nil)
	assert.ErrorIs(t, err, errs.ErrArgument)
}

func TestRunner_TickFansOut(t *testing.T) {
	store := storage.NewMemoryStore()
	bus := eventbus.NewMemoryBus(64)
	simMetrics, err := metrics.NewSimMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		types []string
	)
	_, err = bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		types = append(types, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	rec := &recorder{step: vec.Vec2{X: 1}}
	r, err := NewRunner(newScenario(t), []policy.Policy{rec},
		WithStore(store), WithBus(bus), WithMetrics(simMetrics), WithEpisodeID("ep-1"))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Tick(ctx)
		require.NoError(t, err)
	}

	records, err := store.Range(ctx, "ep-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].Tick)
	assert.Equal(t, vec.Vec2{X: 103, Y: 100}, records[2].Snapshot.Agents[0].Position)

	require.Len(t, rec.exps, 3)
	assert.Equal(t, vec.Vec2{X: 100, Y: 100}, rec.exps[0].Observation.Position)
	assert.Equal(t, vec.Vec2{X: 101, Y: 100}, rec.exps[0].Next.Position)
	assert.Equal(t, rec.exps[0].Next, rec.exps[1].Observation, "следующее наблюдение становится текущим")

	require.NoError(t, bus.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, countOf(types, eventbus.EventTickCompleted))

	assert.Equal(t, 3, r.Status().Tick)
	assert.Equal(t, 3, r.Last().Info.Time)
}

func TestRunner_RunUntilDone(t *testing.T) {
	seek, err := policy.NewSeek(policy.Params{AgentID: 0, Kind: agent.KindAerial})
	require.NoError(t, err)

	r, err := NewRunner(newScenario(t, engine.WithTermination(engine.PatientsReached(5))), []policy.Policy{seek},
		WithMaxTicks(100))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonDone, summary.Reason)
	assert.Equal(t, 3, summary.Ticks, "дрон проходит 2 клетки за тик и останавливается в радиусе 5")
	assert.True(t, r.Status().Done)
	assert.False(t, r.Status().Running)
}

func TestRunner_RunMaxTicks(t *testing.T) {
	r, err := NewRunner(newScenario(t), []policy.Policy{policy.Idle{}}, WithMaxTicks(5))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonMaxTicks, summary.Reason)
	assert.Equal(t, 5, summary.Ticks)
}

func TestRunner_RunCancelled(t *testing.T) {
	r, err := NewRunner(newScenario(t), []policy.Policy{policy.Idle{}}, WithInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, summary.Reason)
}

func TestRunner_PauseStepResume(t *testing.T) {
	r, err := NewRunner(newScenario(t), []policy.Policy{&recorder{step: vec.Vec2{X: 1}}},
		WithPaused(), WithMaxTicks(4))
	require.NoError(t, err)

	_, err = r.StepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Status().Tick)

	done := make(chan Summary, 1)
	go func() {
		summary, _ := r.Run(context.Background())
		done <- summary
	}()

	select {
	case <-done:
		t.Fatal("цикл на паузе не должен завершаться")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, r.Status().Tick, "на паузе тики не идут")

	r.Resume()
	select {
	case summary := <-done:
		assert.Equal(t, ReasonMaxTicks, summary.Reason)
		assert.Equal(t, 4, summary.Ticks)
	case <-time.After(time.Second):
		t.Fatal("цикл не продолжился после Resume")
	}

	_, err = r.StepOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestRunner_Watch(t *testing.T) {
	r, err := NewRunner(newScenario(t), []policy.Policy{policy.Idle{}})
	require.NoError(t, err)

	ch, cancel := r.Watch(4)
	_, err = r.Tick(context.Background())
	require.NoError(t, err)

	select {
	case res := <-ch:
		assert.Equal(t, 1, res.Info.Time)
	case <-time.After(time.Second):
		t.Fatal("наблюдатель не получил тик")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestBuild_DefaultConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Run.EpisodeID = "classic"
	r, err := Build(cfg, registry.Default())
	require.NoError(t, err)

	w := r.Engine().World()
	assert.Equal(t, 3, w.AgentCount())
	assert.Len(t, w.Obstacles(), 34)
	assert.Len(t, w.Patients(), 5)
	assert.Equal(t, "classic", r.EpisodeID())

	_, err = r.Tick(context.Background())
	require.NoError(t, err)
}

func TestBuild_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Layout.Name = "maze"
	_, err := Build(cfg, registry.Default())
	assert.ErrorIs(t, err, errs.ErrLookup)

	cfg = config.Default()
	cfg.Agents[0].Policy = "telepathy"
	_, err = Build(cfg, registry.Default())
	assert.ErrorIs(t, err, errs.ErrLookup)

	cfg = config.Default()
	cfg.Agents[1].ID = cfg.Agents[0].ID
	_, err = Build(cfg, registry.Default())
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func countOf(items []string, want string) int {
	n := 0
	for _, it := range items {
		if it == want {
			n++
		}
	}
	return n
}
