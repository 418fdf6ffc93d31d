// Package runner executes a single job of a workflow run: evaluating the
// branch filter, then driving the job's ordered step list against a
// provisioned environment. Steps are strictly sequential; the first failing
// step aborts the rest of the job. Control steps (cache restore/save,
// workspace moves) are idempotent and safe to retry; execution steps are
// never retried automatically.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/crosspipe/internal/artifact"
	"github.com/vk/crosspipe/internal/cachestore"
	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/resolver"
)

// Env is the provisioned execution environment for one job instance.
type Env struct {
	// WorkDir is the job's private working directory.
	WorkDir string
	// WorkspaceDir is the run-wide directory persisted artifacts move
	// through between jobs.
	WorkspaceDir string
	// Branch and Commit identify the triggering event.
	Branch string
	Commit string
	// Vars is the subprocess environment for execution steps.
	Vars []string
}

// Runner executes jobs. One Runner is shared by all workers of a run; all
// of its collaborators are safe for concurrent use.
type Runner struct {
	Cache      cachestore.Store
	Registry   artifact.Registry
	Resolver   *resolver.Resolver
	Fetcher    SourceFetcher
	Exec       CommandRunner
	Companions map[string]*config.Companion
	Creds      artifact.Credentials
}

// Run executes one job against env. The branch filter is evaluated before
// any step: a non-matching filter yields StatusSkipped with zero steps
// executed and zero side effects.
func (r *Runner) Run(ctx context.Context, job *config.Job, env Env) Result {
	logger := ctxlog.FromContext(ctx).With("job", job.Name)

	if !job.Filter.Matches(env.Branch) {
		logger.Info("Job filtered out by branch, skipping.", "branch", env.Branch)
		return Result{Status: StatusSkipped}
	}

	res := Result{Status: StatusRunning}
	for _, step := range job.Steps {
		stepCtx := ctxlog.With(ctx, "step", step.Name)
		output, err := r.runStep(stepCtx, job, step, env, &res)
		res.Logs = append(res.Logs, StepLog{Step: step.Name, Output: output})
		if err != nil {
			logger.Error("Step failed, aborting job.", "step", step.Name, "error", err)
			res.Status = StatusFailed
			res.Err = err
			return res
		}
	}

	res.Status = StatusSucceeded
	return res
}

// runStep dispatches on the step kind and returns the step's captured
// output. Errors from execution steps are wrapped in *StepExecutionError so
// the engine can report the first failing step's detail per job.
func (r *Runner) runStep(ctx context.Context, job *config.Job, step *config.Step, env Env, res *Result) (string, error) {
	logger := ctxlog.FromContext(ctx)

	switch step.Kind {
	case config.StepRun:
		logger.Info("Running command.", "command", step.Command)
		output, err := r.Exec.Run(ctx, env.WorkDir, env.Vars, step.Command)
		if err != nil {
			return output, &StepExecutionError{Job: job.Name, Step: step.Name, Output: output, Err: err}
		}
		return output, nil

	case config.StepCheckout:
		return "", r.checkout(ctx, job, step, env)

	case config.StepRestoreCache:
		return r.restoreCache(ctx, step, env)

	case config.StepSaveCache:
		return "", r.saveCache(ctx, step, env)

	case config.StepAttachWorkspace:
		logger.Debug("Attaching workspace.", "from", env.WorkspaceDir)
		if err := copyPath(env.WorkspaceDir, env.WorkDir); err != nil {
			return "", fmt.Errorf("attach workspace: %w", err)
		}
		return "", nil

	case config.StepPersistWorkspace:
		for _, p := range step.Paths {
			src := filepath.Join(env.WorkDir, p)
			dst := filepath.Join(env.WorkspaceDir, p)
			logger.Debug("Persisting path to workspace.", "path", p)
			if err := copyPath(src, dst); err != nil {
				return "", fmt.Errorf("persist workspace %s: %w", p, err)
			}
			res.Artifacts = append(res.Artifacts, p)
		}
		return "", nil

	case config.StepPushImage:
		return "", r.pushImage(ctx, step, env)

	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// checkout resolves the companion branch and fetches it into the work
// directory. A fetch failure after fallback resolution means neither the
// triggering branch nor the default exists, which is the
// DependencyResolutionError case.
func (r *Runner) checkout(ctx context.Context, job *config.Job, step *config.Step, env Env) error {
	logger := ctxlog.FromContext(ctx)

	companion, ok := r.Companions[step.Repo]
	if !ok {
		return fmt.Errorf("checkout: unknown companion repository %q", step.Repo)
	}

	branch := r.Resolver.Resolve(ctx, step.Repo, env.Branch)
	dest := filepath.Join(env.WorkDir, step.Repo)
	logger.Info("Checking out companion repository.", "repo", step.Repo, "resolved_branch", branch)

	if err := r.Fetcher.Fetch(ctx, companion.Remote, branch, dest); err != nil {
		logger.Error("Companion checkout failed.", "repo", step.Repo, "error", err)
		return &resolver.DependencyResolutionError{
			Repo:     step.Repo,
			Branch:   env.Branch,
			Fallback: r.Resolver.DefaultBranch(),
		}
	}
	return nil
}

// restoreCache derives the key from the step's checksum files and restores
// the blob into the step path. A missing key is a cold cache, not an error.
func (r *Runner) restoreCache(ctx context.Context, step *config.Step, env Env) (string, error) {
	logger := ctxlog.FromContext(ctx)

	key, err := r.cacheKey(step, env)
	if err != nil {
		return "", err
	}

	blob, ok, err := r.Cache.Restore(ctx, key)
	if err != nil {
		return "", fmt.Errorf("restore cache: %w", err)
	}
	if !ok {
		logger.Info("Cache miss, proceeding with cold cache.", "key", key)
		return fmt.Sprintf("cache miss for %s", key), nil
	}

	target := filepath.Join(env.WorkDir, step.Path)
	if err := unpackDir(blob, target); err != nil {
		return "", fmt.Errorf("restore cache: %w", err)
	}
	logger.Info("Cache restored.", "key", key, "path", step.Path)
	return fmt.Sprintf("cache hit for %s", key), nil
}

// saveCache archives the step path and saves it under the derived key,
// overwriting any previous entry for the same key.
func (r *Runner) saveCache(ctx context.Context, step *config.Step, env Env) error {
	logger := ctxlog.FromContext(ctx)

	key, err := r.cacheKey(step, env)
	if err != nil {
		return err
	}

	blob, err := packDir(filepath.Join(env.WorkDir, step.Path))
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	if err := r.Cache.Save(ctx, key, blob); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	logger.Info("Cache saved.", "key", key, "bytes", len(blob))
	return nil
}

func (r *Runner) cacheKey(step *config.Step, env Env) (string, error) {
	checksums := make([]string, 0, len(step.ChecksumFiles))
	for _, f := range step.ChecksumFiles {
		sum, err := cachestore.ChecksumFile(filepath.Join(env.WorkDir, f))
		if err != nil {
			return "", fmt.Errorf("cache key: %w", err)
		}
		checksums = append(checksums, sum)
	}
	return cachestore.DeriveKey(step.Namespace, env.Branch, checksums...), nil
}

// pushImage validates credentials and publishes the step source under its
// image reference. Credential absence fails this job only.
func (r *Runner) pushImage(ctx context.Context, step *config.Step, env Env) error {
	logger := ctxlog.FromContext(ctx)

	if err := r.Creds.Validate(); err != nil {
		return err
	}

	src := filepath.Join(env.WorkDir, step.Source)
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("push image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("push image: %w", err)
	}

	logger.Info("Pushing artifact to registry.", "ref", step.ImageRef, "bytes", stat.Size())
	if err := r.Registry.Push(ctx, step.ImageRef, f, stat.Size()); err != nil {
		return err
	}
	return nil
}
