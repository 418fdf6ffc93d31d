package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("minimal valid invocation", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"--branch", "develop", "pipeline.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		require.NotNil(t, cfg)
		assert.Equal(t, "pipeline.hcl", cfg.PipelinePath)
		assert.Equal(t, "develop", cfg.Branch)
		assert.Equal(t, "hcl", cfg.Format)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 4, cfg.Workers)
	})

	t.Run("format inferred from yaml extension", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"--branch", "develop", "ci/pipeline.yml"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "yaml", cfg.Format)
	})

	t.Run("explicit format wins over extension", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"--branch", "develop", "--format", "yaml", "pipeline.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "yaml", cfg.Format)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"--branch", "develop"}, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("missing branch is a usage error", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"pipeline.hcl"}, &out)
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, ExitUsage, exitErr.Code)
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"--branch", "develop", "--log-format", "xml", "pipeline.hcl"}, &out)
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, ExitUsage, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"--branch", "develop", "--log-level", "loud", "pipeline.hcl"}, &out)
		require.Error(t, err)
	})
}
