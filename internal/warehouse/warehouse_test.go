package warehouse

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/vec"
)

func newTestEnv(t *testing.T, agents ...*agent.Agent) *Env {
	t.Helper()
	e := NewDefault(WithLogger(logging.NewWriterLogger("warehouse-test", io.Discard, logging.ERROR)))
	for _, a := range agents {
		require.NoError(t, e.AddAgent(a))
	}
	return e
}

func moveBy(dx, dy int) Action {
	return Action{Kind: ActionMove, Movement: vec.Vec2{X: dx, Y: dy}}
}

func TestShelfBlocksEveryKind(t *testing.T) {
	for _, kind := range []agent.Kind{agent.KindAerial, agent.KindGround} {
		t.Run(kind.String(), func(t *testing.T) {
			a := agent.New(0, kind, vec.Vec2{X: 350, Y: 300})
			e := newTestEnv(t, a)
			require.NoError(t, e.AddShelf(vec.Vec2{X: 400, Y: 300}))

			res, err := e.Step([]Action{moveBy(20, 0)})
			require.NoError(t, err)
			assert.Equal(t, vec.Vec2{X: 350, Y: 300}, a.Position, "|Δx| = 30 меньше порога 40")
			assert.False(t, res.Outcomes[0].Success)

			// |Δx| = 40 - ровно на пороге, проход свободен
			res, err = e.Step([]Action{moveBy(10, 0)})
			require.NoError(t, err)
			assert.Equal(t, vec.Vec2{X: 360, Y: 300}, a.Position)
			assert.True(t, res.Outcomes[0].Success)
			assert.Equal(t, 2, res.State.Time)
		})
	}
}

func TestMoveClampsAndDrainsBattery(t *testing.T) {
	a := agent.New(0, agent.KindGround, vec.Vec2{X: 500, Y: 100})
	e := newTestEnv(t, a)

	_, err := e.Step([]Action{moveBy(math.MaxInt, math.MinInt)})
	require.NoError(t, err)
	assert.Equal(t, vec.Vec2{X: 1000, Y: 0}, a.Position)

	st, ok := e.AgentState(0)
	require.True(t, ok)
	assert.Equal(t, FullBattery-1, st.Battery)

	// Нулевой сдвиг заряд не тратит
	_, err = e.Step([]Action{moveBy(0, 0)})
	require.NoError(t, err)
	st, _ = e.AgentState(0)
	assert.Equal(t, FullBattery-1, st.Battery)

	e.state[0].Battery = 0
	res, err := e.Step([]Action{moveBy(-5, 0)})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Success, "без заряда агент стоит")
	assert.Equal(t, vec.Vec2{X: 1000, Y: 0}, a.Position)
}

func TestPickupAndDrop(t *testing.T) {
	a := agent.New(0, agent.KindGround, vec.Vec2{X: 110, Y: 100})
	e := newTestEnv(t, a)
	require.NoError(t, e.AddItem(vec.Vec2{X: 100, Y: 100}, map[string]interface{}{"sku": "A"}))
	require.NoError(t, e.AddItem(vec.Vec2{X: 120, Y: 100}, map[string]interface{}{"sku": "B"}))

	res, err := e.Step([]Action{{Kind: ActionPickup}})
	require.NoError(t, err)
	require.True(t, res.Outcomes[0].Success)
	st, _ := e.AgentState(0)
	require.NotNil(t, st.Carrying)
	assert.Equal(t, "A", st.Carrying.Info["sku"], "равные расстояния - берётся более ранний товар")
	require.Len(t, res.State.Items, 1)
	assert.True(t, res.State.Agents[0].Carrying)

	res, err = e.Step([]Action{{Kind: ActionPickup}})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Success, "руки заняты")

	_, err = e.Step([]Action{moveBy(10, 0)})
	require.NoError(t, err)
	res, err = e.Step([]Action{{Kind: ActionDrop}})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Success, "позиция занята товаром B")

	_, err = e.Step([]Action{moveBy(0, 50)})
	require.NoError(t, err)
	res, err = e.Step([]Action{{Kind: ActionDrop}})
	require.NoError(t, err)
	require.True(t, res.Outcomes[0].Success)
	require.Len(t, res.State.Items, 2)
	assert.Equal(t, vec.Vec2{X: 120, Y: 150}, res.State.Items[1].Position)
	assert.Equal(t, "A", res.State.Items[1].Info["sku"])

	res, err = e.Step([]Action{{Kind: ActionDrop}})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Success, "нечего класть")
}

func TestCharge(t *testing.T) {
	a := agent.New(0, agent.KindAerial, vec.Vec2{X: 100, Y: 700})
	e := newTestEnv(t, a)
	require.NoError(t, e.AddChargingStation(vec.Vec2{X: 100, Y: 750}))
	e.state[0].Battery = 3

	res, err := e.Step([]Action{{Kind: ActionCharge}})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Success, "вне площадки")

	a.Position = vec.Vec2{X: 110, Y: 740}
	res, err = e.Step([]Action{{Kind: ActionCharge}})
	require.NoError(t, err)
	assert.True(t, res.Outcomes[0].Success)
	assert.Equal(t, FullBattery, res.State.Agents[0].Battery)
}

func TestStepRejectsBadActionsAtomically(t *testing.T) {
	a := agent.New(0, agent.KindAerial, vec.Vec2{X: 10, Y: 10})
	b := agent.New(1, agent.KindGround, vec.Vec2{X: 20, Y: 20})
	e := newTestEnv(t, a, b)

	_, err := e.Step([]Action{moveBy(1, 1)})
	assert.ErrorIs(t, err, errs.ErrArgument)

	_, err = e.Step([]Action{moveBy(1, 1), {Kind: ActionKind(42)}})
	assert.ErrorIs(t, err, errs.ErrArgument)

	assert.Equal(t, vec.Vec2{X: 10, Y: 10}, a.Position)
	assert.Equal(t, 0, e.Time())
}

func TestSetupErrors(t *testing.T) {
	e := newTestEnv(t)
	assert.ErrorIs(t, e.AddShelf(vec.Vec2{X: 1001, Y: 0}), errs.ErrConfiguration)
	assert.ErrorIs(t, e.AddItem(vec.Vec2{X: -1, Y: 0}, nil), errs.ErrConfiguration)
	require.NoError(t, e.AddAgent(agent.New(3, agent.KindGround, vec.Vec2{})))
	assert.ErrorIs(t, e.AddAgent(agent.New(3, agent.KindAerial, vec.Vec2{})), errs.ErrConfiguration)

	_, err := New(0, 10)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestObservationsWithinViewRange(t *testing.T) {
	a := agent.New(0, agent.KindGround, vec.Vec2{X: 500, Y: 500})
	e := newTestEnv(t, a)
	require.NoError(t, e.AddShelf(vec.Vec2{X: 560, Y: 500}))
	require.NoError(t, e.AddShelf(vec.Vec2{X: 700, Y: 500}))
	require.NoError(t, e.AddItem(vec.Vec2{X: 500, Y: 600}, nil))

	res, err := e.Step([]Action{{Kind: ActionPickup}})
	require.NoError(t, err)
	require.Len(t, res.Observations, 1)
	obs := res.Observations[0]
	assert.Equal(t, []vec.Vec2{{X: 560, Y: 500}}, obs.Shelves)
	assert.Equal(t, []vec.Vec2{{X: 500, Y: 600}}, obs.Items, "дальность 100 включительно")
	assert.Empty(t, obs.Stations)
}

func TestResetAndSpaces(t *testing.T) {
	a := agent.New(0, agent.KindGround, vec.Vec2{X: 50, Y: 50})
	e := newTestEnv(t, a)
	require.NoError(t, DefaultLayout(e))

	s := e.State()
	assert.Len(t, s.Shelves, 48)
	assert.Len(t, s.Items, 4)
	assert.Len(t, s.ChargingStations, 2)

	_, err := e.Step([]Action{moveBy(1, 0)})
	require.NoError(t, err)

	s = e.Reset()
	assert.Equal(t, 0, s.Time)
	assert.Empty(t, s.Shelves)
	assert.Empty(t, s.Items)
	assert.Equal(t, FullBattery, s.Agents[0].Battery)
	assert.Equal(t, vec.Vec2{X: 51, Y: 50}, s.Agents[0].Position)

	assert.Equal(t, []string{"items", "shelves", "charging_stations", "agents"}, e.ObservationSpace().Features)
	as := e.ActionSpace()
	assert.Equal(t, "discrete", as.Type)
	assert.Equal(t, []string{"move", "pickup", "drop", "charge"}, as.Actions)

	kind, err := ParseAction("charge")
	require.NoError(t, err)
	assert.Equal(t, ActionCharge, kind)
	_, err = ParseAction("fly")
	assert.ErrorIs(t, err, errs.ErrLookup)
}
