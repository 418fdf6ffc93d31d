package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vk/crosspipe/internal/app"
)

// Process exit codes. Zero is reserved for a fully succeeded workflow; the
// non-zero values distinguish failure classes for observability.
const (
	ExitJobFailed         = 1
	ExitUsage             = 2
	ExitGraphInvalid      = 3
	ExitMissingCredential = 4
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("crosspipe", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
crosspipe - a multi-repository CI/CD pipeline orchestrator.

Usage:
  crosspipe [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a pipeline definition file (.hcl, .yml, .yaml) or a directory
    containing definition files.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline definition file or directory.")
	branchFlag := flagSet.String("branch", "", "Branch of the triggering event (required).")
	commitFlag := flagSet.String("commit", "", "Commit identifier of the triggering event.")
	formatFlag := flagSet.String("format", "", "Definition format: 'hcl' or 'yaml'. Default: inferred from the path.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers per execution layer.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	cacheDirFlag := flagSet.String("cache-dir", ".crosspipe/cache", "Directory for the filesystem cache backend.")
	envFileFlag := flagSet.String("env-file", "", "Optional .env file with registry credentials.")
	githubAPIFlag := flagSet.String("github-api", "", "Base URL of a GitHub-style API for branch resolution. Empty uses git ls-remote.")
	githubOwnerFlag := flagSet.String("github-owner", "", "Repository owner for API branch resolution.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	path := *pipelineFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	format := strings.ToLower(*formatFlag)
	if format == "" {
		format = inferFormat(path)
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Format:       format,
		Branch:       *branchFlag,
		Commit:       *commitFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		Workers:      *workersFlag,
		StatusPort:   *statusPortFlag,
		CacheDir:     *cacheDirFlag,
		EnvFile:      *envFileFlag,
		GitHubAPI:    *githubAPIFlag,
		GitHubOwner:  *githubOwnerFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	return config, false, nil
}

// inferFormat picks the loader from the path's extension, defaulting to HCL
// for directories and unknown extensions.
func inferFormat(path string) string {
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return "yaml"
	default:
		return "hcl"
	}
}
