// Package engine drives a whole workflow run from trigger to completion:
// graph validation, Kahn layering, concurrent per-layer execution on a
// bounded worker pool, and downstream status propagation.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/dag"
	"github.com/vk/crosspipe/internal/runner"
)

const defaultWorkers = 4

// Engine composes the job graph, the job runner and the run scratch space.
type Engine struct {
	graph   *dag.Graph
	runner  *runner.Runner
	workers int
	baseDir string
	baseEnv []string
	notify  func(Event)

	board *statusBoard
}

// Options configure a run.
type Options struct {
	// Workers bounds how many jobs of one layer run concurrently.
	Workers int
	// BaseDir is the scratch root for per-job work directories and the
	// shared workspace. Empty means a fresh temp directory.
	BaseDir string
	// BaseEnv is the subprocess environment for execution steps; the engine
	// appends the trigger identifiers to it.
	BaseEnv []string
	// Notify, when set, receives an Event for every job state change.
	Notify func(Event)
}

// New builds an engine over a validated-or-not graph; Run validates.
func New(graph *dag.Graph, r *runner.Runner, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		graph:   graph,
		runner:  r,
		workers: workers,
		baseDir: opts.BaseDir,
		baseEnv: opts.BaseEnv,
		notify:  opts.Notify,
	}
}

// Snapshot returns the current per-job statuses, sorted by job name. Before
// Run starts it returns nil.
func (e *Engine) Snapshot() []*JobStatus {
	if e.board == nil {
		return nil
	}
	return e.board.snapshot()
}

// Run executes the workflow for the given trigger.
//
// Graph validation errors (cycle, unknown dependency) abort the run before
// any job is scheduled and are returned as the error. A single job's failure
// is contained to that job and its dependents; the returned WorkflowResult
// carries per-job detail and the aggregate status.
func (e *Engine) Run(ctx context.Context, trigger Trigger) (*WorkflowResult, error) {
	logger := ctxlog.FromContext(ctx).With("branch", trigger.Branch, "commit", trigger.Commit)

	if err := e.graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job graph: %w", err)
	}
	layers, err := e.graph.Layers()
	if err != nil {
		return nil, fmt.Errorf("invalid job graph: %w", err)
	}
	logger.Debug("Job graph validated.", "jobs", e.graph.Len(), "layers", len(layers))

	baseDir := e.baseDir
	if baseDir == "" {
		baseDir, err = os.MkdirTemp("", "crosspipe-run-")
		if err != nil {
			return nil, fmt.Errorf("create run scratch dir: %w", err)
		}
	}
	workspaceDir := filepath.Join(baseDir, "workspace")
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run workspace: %w", err)
	}

	e.board = newStatusBoard(e.graph.Names(), e.notify)

	logger.Info("🚀 Starting workflow run.", "jobs", e.graph.Len(), "layers", len(layers), "workers", e.workers)

	for i, layer := range layers {
		logger.Debug("Starting layer.", "layer", i, "jobs", layer)
		e.runLayer(ctx, trigger, layer, baseDir, workspaceDir)
	}

	result := e.aggregate()
	if result.Status == runner.StatusSucceeded {
		logger.Info("🏁 Workflow succeeded.")
	} else {
		logger.Error("Workflow failed.", "error", result.Err)
	}
	return result, nil
}

// runLayer dispatches every runnable job of one layer to the worker pool and
// blocks until the layer drains. Jobs whose requirements were not satisfied
// are marked skipped without dispatch, so a worker never observes a
// dependency in any state other than a terminal one.
func (e *Engine) runLayer(ctx context.Context, trigger Trigger, layer []string, baseDir, workspaceDir string) {
	jobs := make(chan *config.Job, len(layer))
	var wg sync.WaitGroup

	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go e.worker(ctx, trigger, jobs, &wg, baseDir, workspaceDir, w)
	}

	for _, name := range layer {
		job, ok := e.graph.Job(name)
		if !ok {
			continue
		}
		if blocked, cause := e.unmetRequirement(job); blocked {
			ctxlog.FromContext(ctx).Info("Skipping job, requirement not satisfied.",
				"job", name, "requirement", cause)
			e.board.set(name, runner.StatusSkipped, nil)
			continue
		}
		jobs <- job
	}
	close(jobs)
	wg.Wait()
}

// worker is the processing loop for one concurrent worker within a layer.
func (e *Engine) worker(ctx context.Context, trigger Trigger, jobs <-chan *config.Job, wg *sync.WaitGroup, baseDir, workspaceDir string, workerID int) {
	defer wg.Done()
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)

	for job := range jobs {
		if ctx.Err() != nil {
			e.board.set(job.Name, runner.StatusSkipped, ctx.Err())
			continue
		}

		logger.Debug("Worker picked up job.", "job", job.Name)
		e.board.set(job.Name, runner.StatusRunning, nil)

		workDir := filepath.Join(baseDir, "jobs", job.Name)
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			e.board.set(job.Name, runner.StatusFailed, err)
			continue
		}

		env := runner.Env{
			WorkDir:      workDir,
			WorkspaceDir: workspaceDir,
			Branch:       trigger.Branch,
			Commit:       trigger.Commit,
			Vars: append(append([]string{}, e.baseEnv...),
				"CI_BRANCH="+trigger.Branch,
				"CI_COMMIT="+trigger.Commit,
			),
		}

		res := e.runner.Run(ctxlog.With(ctx, "job", job.Name), job, env)
		e.board.finish(job.Name, res)
	}
}

// unmetRequirement reports whether any required job blocks this one, and
// which. A requirement is satisfied when it succeeded, or when it is
// informational and reached any terminal state: informational jobs never
// gate their dependents.
func (e *Engine) unmetRequirement(job *config.Job) (bool, string) {
	for _, req := range job.Requires {
		required, ok := e.graph.Job(req)
		if !ok {
			return true, req
		}
		status := e.board.status(req)
		if status == runner.StatusSucceeded {
			continue
		}
		if required.Informational && (status == runner.StatusFailed || status == runner.StatusSkipped) {
			continue
		}
		return true, req
	}
	return false, ""
}

// aggregate computes the run's terminal state: succeeded iff every
// non-skipped blocking job succeeded. Failed informational jobs are
// reported but do not fail the run.
func (e *Engine) aggregate() *WorkflowResult {
	result := &WorkflowResult{Status: runner.StatusSucceeded, Jobs: e.board.snapshot()}
	for _, j := range result.Jobs {
		if j.Status != runner.StatusFailed {
			continue
		}
		if job, ok := e.graph.Job(j.Name); ok && job.Informational {
			continue
		}
		result.Status = runner.StatusFailed
		if result.Err == nil {
			if j.err != nil {
				result.Err = j.err
			} else {
				result.Err = fmt.Errorf("job %q failed", j.Name)
			}
		}
	}
	return result
}
