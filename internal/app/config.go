package app

import "errors"

// Config holds everything an App instance needs to run one workflow.
type Config struct {
	// PipelinePath points at a definition file or a directory of them.
	PipelinePath string
	// Format selects the definition loader: "hcl" or "yaml".
	Format string

	// Branch and Commit identify the triggering event.
	Branch string
	Commit string

	LogFormat  string
	LogLevel   string
	Workers    int
	StatusPort int

	// CacheDir is the root of the filesystem cache backend.
	CacheDir string
	// EnvFile, when set, is loaded into the process environment before
	// credentials are read.
	EnvFile string

	// GitHubAPI and GitHubOwner switch companion branch resolution from
	// `git ls-remote` to a REST API lookup.
	GitHubAPI   string
	GitHubOwner string
}

// NewConfig validates the required fields and returns the config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("a pipeline definition path is required")
	}
	if cfg.Branch == "" {
		return nil, errors.New("a trigger branch is required")
	}
	if cfg.Format != "hcl" && cfg.Format != "yaml" {
		return nil, errors.New("format must be 'hcl' or 'yaml'")
	}
	return &cfg, nil
}
