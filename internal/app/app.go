package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vk/crosspipe/internal/artifact"
	"github.com/vk/crosspipe/internal/cachestore"
	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/ctxlog"
	"github.com/vk/crosspipe/internal/dag"
	"github.com/vk/crosspipe/internal/engine"
	"github.com/vk/crosspipe/internal/resolver"
	"github.com/vk/crosspipe/internal/runner"
)

// hotCacheEntries bounds the in-process LRU layered over the cache backend.
const hotCacheEntries = 32

// App encapsulates the orchestrator's dependencies, configuration and
// lifecycle for one workflow run.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model

	engine     *engine.Engine
	hub        *eventHub
	httpServer *http.Server

	// Overridable collaborators, replaced by tests.
	exec    runner.CommandRunner
	fetcher runner.SourceFetcher
	cache   cachestore.Store
	reg     artifact.Registry
}

// Option overrides one of the App's collaborators, primarily for tests.
type Option func(*App)

// WithCommandRunner replaces the shell-based step executor.
func WithCommandRunner(exec runner.CommandRunner) Option {
	return func(a *App) { a.exec = exec }
}

// WithSourceFetcher replaces the git-based companion fetcher.
func WithSourceFetcher(f runner.SourceFetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithCacheStore replaces the filesystem cache backend.
func WithCacheStore(s cachestore.Store) Option {
	return func(a *App) { a.cache = s }
}

// WithRegistry replaces the artifact registry.
func WithRegistry(r artifact.Registry) Option {
	return func(a *App) { a.reg = r }
}

// NewApp loads the pipeline definition and returns a fully initialized App
// with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", cfg.EnvFile, err)
		}
		logger.Debug("Environment file loaded.", "file", cfg.EnvFile)
	}

	model, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline definition: %w", err)
	}
	logger.Debug("Pipeline definition loaded into unified model.",
		"project", model.Project, "jobs", len(model.Jobs), "companions", len(model.Companions))

	a := &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		model:  model,
		hub:    newEventHub(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Model returns the loaded pipeline model. Primarily for tests.
func (a *App) Model() *config.Model {
	return a.model
}

// Run drives one workflow run from trigger to completion and returns the
// aggregate result. Graph validation errors are returned as the error with
// a nil result.
func (a *App) Run(ctx context.Context) (*engine.WorkflowResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.wire(ctx); err != nil {
		return nil, err
	}

	if a.config.StatusPort > 0 {
		a.startStatusServer(ctx, a.config.StatusPort)
		defer a.closeStatusServer(ctx)
	}

	trigger := engine.Trigger{Branch: a.config.Branch, Commit: a.config.Commit}
	result, err := a.engine.Run(ctx, trigger)
	if err != nil {
		return nil, err
	}

	for _, j := range result.Jobs {
		a.logger.Info("Job finished.", "job", j.Name, "status", j.Status, "error", j.Error)
	}
	return result, nil
}

// wire assembles the resolver, cache store, registry, runner and engine
// around the loaded model, honoring any test overrides.
func (a *App) wire(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if a.exec == nil {
		a.exec = &runner.ShellRunner{Timeout: 30 * time.Minute}
	}
	if a.fetcher == nil {
		a.fetcher = runner.GitFetcher{}
	}

	if a.cache == nil {
		fsStore, err := cachestore.NewFSStore(a.config.CacheDir)
		if err != nil {
			return err
		}
		cached, err := cachestore.NewCachedStore(fsStore, hotCacheEntries)
		if err != nil {
			return err
		}
		a.cache = cached
		logger.Debug("Filesystem cache store ready.", "dir", a.config.CacheDir)
	}

	creds := artifact.Credentials{
		AccessKey: os.Getenv("REGISTRY_ACCESS_KEY"),
		SecretKey: os.Getenv("REGISTRY_SECRET_KEY"),
	}
	if a.reg == nil {
		if endpoint := os.Getenv("REGISTRY_ENDPOINT"); endpoint != "" {
			reg, err := artifact.NewS3Registry(ctx, artifact.S3Options{
				Endpoint: endpoint,
				Bucket:   os.Getenv("REGISTRY_BUCKET"),
			}, creds)
			if err != nil {
				return err
			}
			a.reg = reg
			logger.Debug("S3 artifact registry ready.", "endpoint", endpoint)
		} else {
			a.reg = artifact.NopRegistry{}
		}
	}

	var lister resolver.BranchLister
	if a.config.GitHubAPI != "" {
		lister = resolver.NewHTTPLister(a.config.GitHubAPI, a.config.GitHubOwner, os.Getenv("GITHUB_TOKEN"))
		logger.Debug("Using HTTP branch lister.", "api", a.config.GitHubAPI)
	} else {
		remotes := make(map[string]string, len(a.model.Companions))
		for name, c := range a.model.Companions {
			remotes[name] = c.Remote
		}
		lister = &resolver.GitLister{Remotes: remotes}
	}

	jobRunner := &runner.Runner{
		Cache:      a.cache,
		Registry:   a.reg,
		Resolver:   resolver.New(lister, a.model.DefaultBranch),
		Fetcher:    a.fetcher,
		Exec:       a.exec,
		Companions: a.model.Companions,
		Creds:      creds,
	}

	a.engine = engine.New(dag.FromModel(a.model), jobRunner, engine.Options{
		Workers: a.config.Workers,
		BaseEnv: os.Environ(),
		Notify:  a.hub.Publish,
	})
	return nil
}
