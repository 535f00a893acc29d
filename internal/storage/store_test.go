package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

func testRecord(episodeID string, tick int) Record {
	return Record{
		EpisodeID: episodeID,
		Tick:      tick,
		Snapshot: world.Snapshot{
			Time:      tick,
			Patients:  []vec.Vec2{{X: 200, Y: 300}},
			Obstacles: []world.ObstacleView{{Position: vec.Vec2{X: 400, Y: 300}, Kind: "NORMAL"}},
			Agents:    []world.AgentView{{ID: 0, Position: vec.Vec2{X: tick, Y: 100}, Kind: "AERIAL"}},
		},
		Info: engine.Info{
			Time: tick,
			Detections: []sensor.Detection{
				{Category: sensor.CategoryPatient, Position: vec.Vec2{X: 200, Y: 300}, Distance: 100, DetectionTime: tick - 1},
			},
			Moves: []engine.Move{
				{AgentID: 0, Kind: agent.KindAerial, From: vec.Vec2{X: tick - 1, Y: 100}, To: vec.Vec2{X: tick, Y: 100}, Committed: true},
			},
			Committed: 1,
			Messages:  2,
		},
		RecordedAt: time.Date(2024, 5, 1, 12, 0, tick, 0, time.UTC),
	}
}

func assertSameRecord(t *testing.T, want, got Record) {
	t.Helper()
	assert.Equal(t, want.EpisodeID, got.EpisodeID)
	assert.Equal(t, want.Tick, got.Tick)
	assert.Equal(t, want.Snapshot, got.Snapshot)
	assert.Equal(t, want.Info, got.Info)
	assert.True(t, want.RecordedAt.Equal(got.RecordedAt))
}

// runStoreSuite проверяет общий контракт SnapshotStore
func runStoreSuite(t *testing.T, store SnapshotStore) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		rec := testRecord("ep-a", 1)
		require.NoError(t, store.Save(ctx, rec))

		got, found, err := store.Load(ctx, "ep-a", 1)
		require.NoError(t, err)
		require.True(t, found)
		assertSameRecord(t, rec, got)
	})

	t.Run("Load missing tick", func(t *testing.T) {
		_, found, err := store.Load(ctx, "ep-a", 999)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Overwrite tick", func(t *testing.T) {
		rec := testRecord("ep-a", 2)
		require.NoError(t, store.Save(ctx, rec))
		rec.Info.Rejected = 5
		require.NoError(t, store.Save(ctx, rec))

		got, found, err := store.Load(ctx, "ep-a", 2)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 5, got.Info.Rejected)
	})

	t.Run("Range is ordered and inclusive", func(t *testing.T) {
		for _, tick := range []int{12, 10, 11, 3} {
			require.NoError(t, store.Save(ctx, testRecord("ep-b", tick)))
		}

		recs, err := store.Range(ctx, "ep-b", 3, 11)
		require.NoError(t, err)
		ticks := make([]int, len(recs))
		for i, r := range recs {
			ticks[i] = r.Tick
		}
		assert.Equal(t, []int{3, 10, 11}, ticks)

		empty, err := store.Range(ctx, "ep-missing", 0, 100)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Episodes", func(t *testing.T) {
		ids, err := store.Episodes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ep-a", "ep-b"}, ids)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runStoreSuite(t, store)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Save(context.Background(), testRecord("x", 1)), ErrNotReady)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, testRecord("x", 1)), context.Canceled)
}

func TestBadgerStore(t *testing.T) {
	codec, err := NewCodec(true)
	require.NoError(t, err)
	defer codec.Close()

	store, err := NewBadgerStore(t.TempDir(), codec)
	require.NoError(t, err)
	runStoreSuite(t, store)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "повторное закрытие безопасно")
	_, _, err = store.Load(context.Background(), "ep-a", 1)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSQLiteStore(t *testing.T) {
	codec, err := NewCodec(false)
	require.NoError(t, err)
	defer codec.Close()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "replay.db"), codec)
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("RESCUE_TEST_REDIS")
	if addr == "" {
		t.Skip("RESCUE_TEST_REDIS не задан")
	}
	codec, err := NewCodec(true)
	require.NoError(t, err)

	store, err := NewRedisStore(context.Background(), &RedisConfig{
		Addr:      addr,
		KeyPrefix: "rescue-test:" + time.Now().Format("150405.000") + ":",
	}, codec)
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("RESCUE_TEST_MONGO")
	if uri == "" {
		t.Skip("RESCUE_TEST_MONGO не задан")
	}
	codec, err := NewCodec(true)
	require.NoError(t, err)

	store, err := NewMongoStore(context.Background(), MongoConfig{
		URI:        uri,
		Database:   "rescue_test",
		Collection: "ticks_" + time.Now().Format("150405000"),
	}, codec)
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, config.StorageConfig{Backend: "sqlite", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StorageConfig{Backend: "tape"})
	assert.Error(t, err)
}
