package yamlcfg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestLoad(t *testing.T) {
	pipelineYAML := `
pipeline:
  name: gateway
  default_branch: develop
  companions:
    libcommon: git@example.com:org/libcommon.git

jobs:
  init:
    steps:
      - checkout:
          repo: libcommon
      - restore_cache:
          namespace: deps
          checksum_files: [requirements.txt]
          path: venv
      - run:
          name: install
          command: pip install -r requirements.txt
      - save_cache:
          namespace: deps
          checksum_files: [requirements.txt]
          path: venv

  lint:
    requires: [init]
    informational: true
    steps:
      - run: flake8 src

  publish:
    requires: [init]
    filters:
      branches:
        only: [develop]
    steps:
      - attach_workspace: {}
      - push_image:
          image_ref: registry/gateway:latest
          source: dist/gateway.tar
`
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))

	model, err := NewLoader().Load(testCtx(t), path)
	require.NoError(t, err)

	assert.Equal(t, "gateway", model.Project)
	assert.Equal(t, "develop", model.DefaultBranch)
	require.Contains(t, model.Companions, "libcommon")

	require.Len(t, model.Jobs, 3)

	init := model.Job("init")
	require.NotNil(t, init)
	require.Len(t, init.Steps, 4)
	assert.Equal(t, config.StepCheckout, init.Steps[0].Kind)
	assert.Equal(t, config.StepRestoreCache, init.Steps[1].Kind)
	assert.Equal(t, "install", init.Steps[2].Name)

	lint := model.Job("lint")
	require.NotNil(t, lint)
	assert.True(t, lint.Informational)
	// Bare-string run shorthand.
	require.Len(t, lint.Steps, 1)
	assert.Equal(t, config.StepRun, lint.Steps[0].Kind)
	assert.Equal(t, "flake8 src", lint.Steps[0].Command)

	publish := model.Job("publish")
	require.NotNil(t, publish)
	assert.Equal(t, []string{"develop"}, publish.Filter.Only)
}

func TestLoad_ModelMatchesHCLLoader(t *testing.T) {
	// Both loaders feed the same engine; the YAML loader must produce the
	// same model shape for an equivalent definition.
	pipelineYAML := `
jobs:
  build:
    steps:
      - run: make build
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))

	model, err := NewLoader().Load(testCtx(t), path)
	require.NoError(t, err)

	// Loader defaults apply even without a pipeline header.
	assert.Equal(t, "develop", model.DefaultBranch)
	require.Len(t, model.Jobs, 1)
	assert.Empty(t, model.Jobs[0].Filter.Only)
}

func TestLoad_InvalidStep(t *testing.T) {
	pipelineYAML := `
jobs:
  build:
    steps:
      - push_image:
          image_ref: registry/app
`
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))

	_, err := NewLoader().Load(testCtx(t), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push_image requires image_ref and source")
}
