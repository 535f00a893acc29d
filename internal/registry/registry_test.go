package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/world"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"idle", "random", "scripted", "seek"}, r.PolicyNames())
	assert.Equal(t, []string{"default", "empty", "perlin"}, r.LayoutNames())

	factory, err := r.Policy("seek")
	require.NoError(t, err)
	p, err := factory(policy.Params{Kind: agent.KindGround})
	require.NoError(t, err)
	assert.IsType(t, &policy.Seek{}, p)

	layout, err := r.Layout("default")
	require.NoError(t, err)
	w := world.NewDefault()
	require.NoError(t, layout(1)(w))
	assert.Len(t, w.Patients(), 5)
}

func TestRegistry_UnknownNames(t *testing.T) {
	r := Default()

	_, err := r.Policy("teleport")
	var lookupErr *errs.LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "policy", lookupErr.Kind)
	assert.Equal(t, "teleport", lookupErr.Name)

	_, err = r.Layout("maze")
	assert.ErrorIs(t, err, errs.ErrLookup)

	_, err = r.Kind("submarine")
	assert.ErrorIs(t, err, errs.ErrLookup)

	kind, err := r.Kind("drone")
	require.NoError(t, err)
	assert.Equal(t, agent.KindAerial, kind)
}

func TestRegistry_DuplicateAndIsolation(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterPolicy("idle", policy.NewIdle))
	assert.ErrorIs(t, r.RegisterPolicy("idle", policy.NewIdle), errs.ErrConfiguration)
	assert.ErrorIs(t, r.RegisterPolicy("", policy.NewIdle), errs.ErrConfiguration)

	other := New()
	_, err := other.Policy("idle")
	assert.ErrorIs(t, err, errs.ErrLookup, "таблицы независимы")
}

func TestRegistry_Environments(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"rescue", "warehouse"}, r.EnvironmentNames())

	factory, err := r.Environment("warehouse")
	require.NoError(t, err)
	env, err := factory(0)
	require.NoError(t, err)
	assert.Equal(t, 0, env.Time())
	assert.Equal(t, 1000, env.ObservationSpace().Width)
	assert.Equal(t, []string{"move", "pickup", "drop", "charge"}, env.ActionSpace().Actions)

	factory, err = r.Environment("rescue")
	require.NoError(t, err)
	env, err = factory(0)
	require.NoError(t, err)
	assert.Equal(t, 800, env.ObservationSpace().Width)
	assert.Equal(t, 2, env.ActionSpace().Max)

	_, err = r.Environment("kitchen")
	assert.ErrorIs(t, err, errs.ErrLookup)
	assert.ErrorIs(t, r.RegisterEnvironment("warehouse", factory), errs.ErrConfiguration)
}
