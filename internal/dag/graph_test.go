package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/crosspipe/internal/config"
)

func job(name string, requires ...string) *config.Job {
	return &config.Job{Name: name, Requires: requires}
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Zero(t, g.Len())
}

func TestAddJob(t *testing.T) {
	g := New()

	g.AddJob(job("a"))
	assert.Equal(t, 1, g.Len())

	// Re-adding replaces rather than duplicating.
	g.AddJob(job("a", "b"))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []string{"b"}, g.Requires("a"))

	g.AddJob(job("b"))
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"a", "b"}, g.Names())
}

func TestValidate(t *testing.T) {
	t.Run("valid graph", func(t *testing.T) {
		g := New()
		g.AddJob(job("init"))
		g.AddJob(job("build", "init"))
		g.AddJob(job("test", "init"))
		g.AddJob(job("publish", "build", "test"))

		require.NoError(t, g.Validate())
		assert.Equal(t, []string{"build", "test"}, g.Dependents("init"))
	})

	t.Run("unknown dependency", func(t *testing.T) {
		g := New()
		g.AddJob(job("build", "missing"))

		err := g.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownDependency)

		var unknownErr *UnknownDependencyError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "build", unknownErr.Job)
		assert.Equal(t, "missing", unknownErr.Requires)
	})

	t.Run("cycle", func(t *testing.T) {
		g := New()
		g.AddJob(job("a", "c"))
		g.AddJob(job("b", "a"))
		g.AddJob(job("c", "b"))

		err := g.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycle)

		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.NotEmpty(t, cycleErr.Members)
	})

	t.Run("self reference", func(t *testing.T) {
		g := New()
		g.AddJob(job("a", "a"))
		assert.ErrorIs(t, g.Validate(), ErrCycle)
	})
}

func TestLayers(t *testing.T) {
	t.Run("diamond", func(t *testing.T) {
		g := New()
		g.AddJob(job("init"))
		g.AddJob(job("build", "init"))
		g.AddJob(job("test", "init"))
		g.AddJob(job("publish", "build", "test"))
		require.NoError(t, g.Validate())

		layers, err := g.Layers()
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"init"},
			{"build", "test"},
			{"publish"},
		}, layers)
	})

	t.Run("independent tracks share layers", func(t *testing.T) {
		g := New()
		g.AddJob(job("a1"))
		g.AddJob(job("a2", "a1"))
		g.AddJob(job("b1"))
		g.AddJob(job("b2", "b1"))
		require.NoError(t, g.Validate())

		layers, err := g.Layers()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a1", "b1"}, {"a2", "b2"}}, layers)
	})

	t.Run("every requires set is satisfied by earlier layers", func(t *testing.T) {
		g := New()
		g.AddJob(job("init"))
		g.AddJob(job("deps", "init"))
		g.AddJob(job("build", "deps"))
		g.AddJob(job("unit", "deps"))
		g.AddJob(job("lint", "deps"))
		g.AddJob(job("e2e", "build", "unit"))
		g.AddJob(job("publish", "e2e", "lint"))
		require.NoError(t, g.Validate())

		layers, err := g.Layers()
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, layer := range layers {
			for _, name := range layer {
				for _, req := range g.Requires(name) {
					assert.True(t, seen[req], "job %s scheduled before requirement %s", name, req)
				}
			}
			for _, name := range layer {
				seen[name] = true
			}
		}
	})

	t.Run("ordering holds without a prior validate call", func(t *testing.T) {
		g := New()
		g.AddJob(job("init"))
		g.AddJob(job("build", "init"))
		g.AddJob(job("publish", "build"))

		layers, err := g.Layers()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"init"}, {"build"}, {"publish"}}, layers)
	})

	t.Run("cycle yields error, never a partial ordering", func(t *testing.T) {
		g := New()
		g.AddJob(job("a", "b"))
		g.AddJob(job("b", "a"))

		layers, err := g.Layers()
		assert.Nil(t, layers)
		assert.ErrorIs(t, err, ErrCycle)
	})
}
