package vec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec2Arithmetic(t *testing.T) {
	a := Vec2{X: 390, Y: 300}
	assert.Equal(t, Vec2{X: 400, Y: 300}, a.Add(Vec2{X: 10, Y: 0}))
	assert.Equal(t, Vec2{X: 380, Y: 302}, a.Sub(Vec2{X: 10, Y: -2}))
	assert.Equal(t, 5.0, Vec2{}.DistanceTo(Vec2{X: 3, Y: 4}))
	assert.Equal(t, "(390,300)", a.String())
}

func TestVec2Bounds(t *testing.T) {
	assert.Equal(t, Vec2{X: 0, Y: 600}, Vec2{X: -3, Y: 601}.Clamp(800, 600))
	assert.Equal(t, Vec2{X: 800, Y: 0}, Vec2{X: 800, Y: 0}.Clamp(800, 600))

	assert.True(t, Vec2{X: 800, Y: 600}.InBounds(800, 600))
	assert.False(t, Vec2{X: -1, Y: 0}.InBounds(800, 600))
	assert.False(t, Vec2{X: 0, Y: 601}.InBounds(800, 600))
}

func TestVec2MoveClamped(t *testing.T) {
	p := Vec2{X: 390, Y: 100}
	assert.Equal(t, Vec2{X: 400, Y: 98}, p.MoveClamped(Vec2{X: 10, Y: -2}, 800, 600))
	assert.Equal(t, Vec2{X: 800, Y: 100}, p.MoveClamped(Vec2{X: math.MaxInt}, 800, 600))
	assert.Equal(t, Vec2{X: 0, Y: 600}, p.MoveClamped(Vec2{X: math.MinInt, Y: math.MaxInt}, 800, 600))
	assert.Equal(t, Vec2{X: 800, Y: 600}, Vec2{X: math.MaxInt, Y: math.MaxInt}.MoveClamped(Vec2{X: 1, Y: math.MaxInt}, 800, 600))
}

func TestVec2ChebyshevLen(t *testing.T) {
	assert.Equal(t, math.MaxInt, Vec2{X: math.MinInt}.ChebyshevLen())
	assert.Equal(t, math.MaxInt, Vec2{X: 3, Y: math.MaxInt}.ChebyshevLen())
	assert.Equal(t, 2, Vec2{X: -2, Y: 1}.ChebyshevLen())
	assert.Equal(t, 3, Vec2{X: 1, Y: -3}.ChebyshevLen())
	assert.Equal(t, 0, Vec2{}.ChebyshevLen())
}

func TestVec2JSON(t *testing.T) {
	data, err := json.Marshal(Vec2{X: 12, Y: -4})
	require.NoError(t, err)
	assert.JSONEq(t, `[12,-4]`, string(data))

	var v Vec2
	require.NoError(t, json.Unmarshal([]byte(`[7, 9]`), &v))
	assert.Equal(t, Vec2{X: 7, Y: 9}, v)

	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &v))
}
