package eventbus

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/logging"
)

func TestNewEnvelope(t *testing.T) {
	ev, err := NewEnvelope("runner", EventTickCompleted, "ep-1", 1, TickEvent{EpisodeID: "ep-1", Tick: 3, Rejected: 2})
	require.NoError(t, err)
	assert.Len(t, ev.ID, 36, "ID - UUID")
	assert.Equal(t, EventTickCompleted, ev.EventType)
	assert.Equal(t, "ep-1", ev.CorrelationID)

	var payload TickEvent
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, 3, payload.Tick)
	assert.Equal(t, 2, payload.Rejected)

	other, err := NewEnvelope("runner", EventTickCompleted, "ep-1", 1, nil)
	require.NoError(t, err)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestMemoryBus_FilterAndOrder(t *testing.T) {
	bus := NewMemoryBus(16)

	var (
		mu    sync.Mutex
		ticks []int
	)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventTickCompleted}}, func(ctx context.Context, ev *Envelope) {
		var p TickEvent
		if ev.Decode(&p) == nil {
			mu.Lock()
			ticks = append(ticks, p.Tick)
			mu.Unlock()
		}
	})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		ev, err := NewEnvelope("runner", EventTickCompleted, "ep", 5, TickEvent{Tick: i})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	ev, err := NewEnvelope("runner", EventMoveRejected, "ep", 5, MoveRejectedEvent{AgentID: 1})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))

	require.NoError(t, bus.Close(), "Close дожидается доставки")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ticks)

	stats := bus.Metrics()
	assert.Equal(t, uint64(6), stats.Published)
	assert.Equal(t, uint64(5), stats.Consumed)

	assert.Error(t, bus.Publish(context.Background(), ev), "после закрытия публикация запрещена")
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	calls := 0
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) { calls++ })
	require.NoError(t, err)
	sub.Unsubscribe()

	ev, err := NewEnvelope("runner", EventTickCompleted, "ep", 0, nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, calls)
}

func TestLoggingListener(t *testing.T) {
	var buf syncBuffer
	bus := NewMemoryBus(4)
	_, err := StartLoggingListener(bus, logging.NewWriterLogger("eventbus", &buf, logging.DEBUG))
	require.NoError(t, err)

	ev, err := NewEnvelope("runner", EventEpisodeFinished, "ep-9", 9, EpisodeEvent{EpisodeID: "ep-9"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	assert.Contains(t, buf.String(), "EpisodeFinished")
	assert.Contains(t, buf.String(), "episode=ep-9")
}

func TestMetricsExporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := NewMemoryBus(8)
	exporter, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ev, err := NewEnvelope("runner", EventTickCompleted, "ep", 1, nil)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	require.NoError(t, bus.Close())

	exporter.Collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.published))
	exporter.Collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.published), "повторный опрос не удваивает счётчик")

	exporter.Start(time.Hour)
	exporter.Stop()

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация отклоняется")
}

// syncBuffer - bytes.Buffer с мьютексом для записи из горутины доставки
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
