package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/vec"
)

func TestDefaultLayout(t *testing.T) {
	w := NewDefault()
	require.NoError(t, DefaultLayout(w))

	assert.Equal(t, []vec.Vec2{
		{X: 200, Y: 300}, {X: 600, Y: 400}, {X: 500, Y: 150}, {X: 650, Y: 250}, {X: 350, Y: 450},
	}, w.Patients())

	// Стена 11 + два воздушных кольца по 8 + открытое снизу кольцо 7
	assert.Len(t, w.Obstacles(), 34)

	kind, ok := w.ObstacleAt(vec.Vec2{X: 400, Y: 300})
	require.True(t, ok)
	assert.Equal(t, ObstacleNormal, kind)

	kind, ok = w.ObstacleAt(vec.Vec2{X: 460, Y: 150})
	require.True(t, ok)
	assert.Equal(t, ObstacleAerial, kind)

	kind, ok = w.ObstacleAt(vec.Vec2{X: 690, Y: 290})
	require.True(t, ok)
	assert.Equal(t, ObstacleAerial, kind)

	_, ok = w.ObstacleAt(vec.Vec2{X: 350, Y: 490})
	assert.False(t, ok, "нижнее кольцо открыто снизу")
	_, ok = w.ObstacleAt(vec.Vec2{X: 390, Y: 490})
	assert.True(t, ok)
}

func TestPerlinLayout_Deterministic(t *testing.T) {
	build := func(seed int64) *World {
		w := NewDefault()
		require.NoError(t, PerlinLayout(DefaultPerlinOptions(seed))(w))
		return w
	}

	a, b := build(42), build(42)
	assert.Equal(t, a.Snapshot(), b.Snapshot(), "один сид - один мир")
	assert.Len(t, a.Patients(), 5)

	for _, p := range a.Patients() {
		_, blocked := a.ObstacleAt(p)
		assert.False(t, blocked, "пациент не должен стоять на препятствии")
	}
}
