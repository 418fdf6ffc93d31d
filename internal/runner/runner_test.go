package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/crosspipe/internal/artifact"
	"github.com/vk/crosspipe/internal/cachestore"
	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/resolver"
)

// fakeExec records commands and fails the ones listed in fail.
type fakeExec struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeExec) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()
	if f.fail[command] {
		return "boom", errors.New("exit status 1")
	}
	return "ok: " + command, nil
}

// fakeFetcher materializes an empty checkout, failing for branches in fail.
type fakeFetcher struct {
	fail map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, remote, branch, dest string) error {
	if f.fail[branch] {
		return errors.New("remote branch not found")
	}
	return os.MkdirAll(dest, 0o755)
}

type allBranchesLister struct{}

func (allBranchesLister) HasBranch(ctx context.Context, repo, branch string) (bool, error) {
	return true, nil
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func testRunner(t *testing.T, exec CommandRunner) *Runner {
	t.Helper()
	cache, err := cachestore.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return &Runner{
		Cache:    cache,
		Registry: artifact.NopRegistry{},
		Resolver: resolver.New(allBranchesLister{}, "develop"),
		Fetcher:  &fakeFetcher{},
		Exec:     exec,
		Companions: map[string]*config.Companion{
			"libcommon": {Name: "libcommon", Remote: "git@example.com:org/libcommon.git"},
		},
	}
}

func testEnv(t *testing.T, branch string) Env {
	t.Helper()
	base := t.TempDir()
	work := filepath.Join(base, "work")
	workspace := filepath.Join(base, "workspace")
	require.NoError(t, os.MkdirAll(work, 0o755))
	require.NoError(t, os.MkdirAll(workspace, 0o755))
	return Env{WorkDir: work, WorkspaceDir: workspace, Branch: branch, Commit: "abc123"}
}

func TestRun_BranchFilter(t *testing.T) {
	exec := &fakeExec{}
	r := testRunner(t, exec)
	env := testEnv(t, "feature-x")

	job := &config.Job{
		Name:   "publish",
		Filter: config.BranchFilter{Only: []string{"develop"}},
		Steps: []*config.Step{
			{Kind: config.StepRun, Name: "deploy", Command: "make deploy"},
			{Kind: config.StepPersistWorkspace, Name: "persist", Paths: []string{"dist"}},
		},
	}

	res := r.Run(testCtx(t), job, env)

	assert.Equal(t, StatusSkipped, res.Status)
	// Zero steps executed, zero side effects.
	assert.Empty(t, exec.calls)
	assert.Empty(t, res.Logs)
	assert.Empty(t, res.Artifacts)
	entries, err := os.ReadDir(env.WorkspaceDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_StepsSequentialAndFirstFailureAborts(t *testing.T) {
	exec := &fakeExec{fail: map[string]bool{"make build": true}}
	r := testRunner(t, exec)

	job := &config.Job{
		Name: "build",
		Steps: []*config.Step{
			{Kind: config.StepRun, Name: "deps", Command: "pip install"},
			{Kind: config.StepRun, Name: "build", Command: "make build"},
			{Kind: config.StepRun, Name: "never", Command: "make package"},
		},
	}

	res := r.Run(testCtx(t), job, testEnv(t, "develop"))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"pip install", "make build"}, exec.calls)

	var stepErr *StepExecutionError
	require.ErrorAs(t, res.Err, &stepErr)
	assert.Equal(t, "build", stepErr.Job)
	assert.Equal(t, "build", stepErr.Step)
	assert.Equal(t, "boom", stepErr.Output)
	assert.ErrorIs(t, res.Err, ErrStepExecution)
}

func TestRun_SucceededJobCapturesLogs(t *testing.T) {
	exec := &fakeExec{}
	r := testRunner(t, exec)

	job := &config.Job{
		Name: "test",
		Steps: []*config.Step{
			{Kind: config.StepRun, Name: "unit", Command: "python -m unittest"},
		},
	}

	res := r.Run(testCtx(t), job, testEnv(t, "develop"))

	assert.Equal(t, StatusSucceeded, res.Status)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "unit", res.Logs[0].Step)
	assert.Contains(t, res.Logs[0].Output, "python -m unittest")
}

func TestRun_CacheRoundTrip(t *testing.T) {
	exec := &fakeExec{}
	r := testRunner(t, exec)
	ctx := testCtx(t)

	// First job builds the environment and saves it.
	saveEnv := testEnv(t, "develop")
	require.NoError(t, os.WriteFile(filepath.Join(saveEnv.WorkDir, "requirements.txt"), []byte("requests\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(saveEnv.WorkDir, "venv"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(saveEnv.WorkDir, "venv", "lib.py"), []byte("cached"), 0o600))

	saveJob := &config.Job{
		Name: "deps",
		Steps: []*config.Step{
			{Kind: config.StepSaveCache, Name: "save", Namespace: "deps", ChecksumFiles: []string{"requirements.txt"}, Path: "venv"},
		},
	}
	res := r.Run(ctx, saveJob, saveEnv)
	require.Equal(t, StatusSucceeded, res.Status)

	// Second job with the same checksum inputs restores it.
	restoreEnv := testEnv(t, "develop")
	require.NoError(t, os.WriteFile(filepath.Join(restoreEnv.WorkDir, "requirements.txt"), []byte("requests\n"), 0o600))

	restoreJob := &config.Job{
		Name: "build",
		Steps: []*config.Step{
			{Kind: config.StepRestoreCache, Name: "restore", Namespace: "deps", ChecksumFiles: []string{"requirements.txt"}, Path: "venv"},
		},
	}
	res = r.Run(ctx, restoreJob, restoreEnv)
	require.Equal(t, StatusSucceeded, res.Status)

	restored, err := os.ReadFile(filepath.Join(restoreEnv.WorkDir, "venv", "lib.py"))
	require.NoError(t, err)
	assert.Equal(t, "cached", string(restored))
	require.Len(t, res.Logs, 1)
	assert.Contains(t, res.Logs[0].Output, "cache hit")
}

func TestRun_ColdCacheIsNotAFailure(t *testing.T) {
	r := testRunner(t, &fakeExec{})
	env := testEnv(t, "develop")
	require.NoError(t, os.WriteFile(filepath.Join(env.WorkDir, "requirements.txt"), []byte("requests\n"), 0o600))

	job := &config.Job{
		Name: "build",
		Steps: []*config.Step{
			{Kind: config.StepRestoreCache, Name: "restore", Namespace: "deps", ChecksumFiles: []string{"requirements.txt"}, Path: "venv"},
			{Kind: config.StepRun, Name: "rebuild", Command: "pip install"},
		},
	}

	res := r.Run(testCtx(t), job, env)

	assert.Equal(t, StatusSucceeded, res.Status)
	require.Len(t, res.Logs, 2)
	assert.Contains(t, res.Logs[0].Output, "cache miss")
}

func TestRun_WorkspacePersistAndAttach(t *testing.T) {
	r := testRunner(t, &fakeExec{})
	ctx := testCtx(t)

	persistEnv := testEnv(t, "develop")
	require.NoError(t, os.MkdirAll(filepath.Join(persistEnv.WorkDir, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(persistEnv.WorkDir, "dist", "app.tar"), []byte("image"), 0o600))

	persistJob := &config.Job{
		Name: "build",
		Steps: []*config.Step{
			{Kind: config.StepPersistWorkspace, Name: "persist", Paths: []string{"dist"}},
		},
	}
	res := r.Run(ctx, persistJob, persistEnv)
	require.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, []string{"dist"}, res.Artifacts)

	// A downstream job sharing the workspace attaches the artifact.
	attachEnv := testEnv(t, "develop")
	attachEnv.WorkspaceDir = persistEnv.WorkspaceDir

	attachJob := &config.Job{
		Name: "publish",
		Steps: []*config.Step{
			{Kind: config.StepAttachWorkspace, Name: "attach"},
		},
	}
	res = r.Run(ctx, attachJob, attachEnv)
	require.Equal(t, StatusSucceeded, res.Status)

	attached, err := os.ReadFile(filepath.Join(attachEnv.WorkDir, "dist", "app.tar"))
	require.NoError(t, err)
	assert.Equal(t, "image", string(attached))
}

func TestRun_PushImageRequiresCredentials(t *testing.T) {
	r := testRunner(t, &fakeExec{})
	env := testEnv(t, "develop")
	require.NoError(t, os.WriteFile(filepath.Join(env.WorkDir, "app.tar"), []byte("image"), 0o600))

	job := &config.Job{
		Name: "publish",
		Steps: []*config.Step{
			{Kind: config.StepPushImage, Name: "push", ImageRef: "registry/app:latest", Source: "app.tar"},
		},
	}

	res := r.Run(testCtx(t), job, env)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, artifact.ErrMissingCredential)

	// With credentials present the push goes through the registry.
	r.Creds = artifact.Credentials{AccessKey: "ak", SecretKey: "sk"}
	res = r.Run(testCtx(t), job, env)
	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestRun_CheckoutFallbackFailureIsDependencyResolution(t *testing.T) {
	r := testRunner(t, &fakeExec{})
	r.Fetcher = &fakeFetcher{fail: map[string]bool{"feature-y": true, "develop": true}}

	job := &config.Job{
		Name: "init",
		Steps: []*config.Step{
			{Kind: config.StepCheckout, Name: "checkout", Repo: "libcommon"},
		},
	}

	res := r.Run(testCtx(t), job, testEnv(t, "feature-y"))

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, resolver.ErrDependencyResolution)
}

func TestRun_CheckoutResolvedBranch(t *testing.T) {
	r := testRunner(t, &fakeExec{})
	env := testEnv(t, "feature-x")

	job := &config.Job{
		Name: "init",
		Steps: []*config.Step{
			{Kind: config.StepCheckout, Name: "checkout", Repo: "libcommon"},
		},
	}

	res := r.Run(testCtx(t), job, env)
	require.Equal(t, StatusSucceeded, res.Status)
	assert.DirExists(t, filepath.Join(env.WorkDir, "libcommon"))
}
