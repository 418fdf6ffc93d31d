package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/crosspipe/internal/app"
	"github.com/vk/crosspipe/internal/artifact"
	"github.com/vk/crosspipe/internal/cli"
	"github.com/vk/crosspipe/internal/config"
	"github.com/vk/crosspipe/internal/dag"
	"github.com/vk/crosspipe/internal/hcl"
	"github.com/vk/crosspipe/internal/runner"
	"github.com/vk/crosspipe/internal/yamlcfg"
)

// main is the entrypoint for the crosspipe orchestrator.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic so exit-code mapping stays in
// one place and the body is testable.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	var loader config.Loader
	if appConfig.Format == "yaml" {
		loader = yamlcfg.NewLoader()
	} else {
		loader = hcl.NewLoader()
	}

	orchestrator, err := app.NewApp(outW, appConfig, loader)
	if err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: err.Error()}
	}

	result, err := orchestrator.Run(context.Background())
	if err != nil {
		if errors.Is(err, dag.ErrCycle) || errors.Is(err, dag.ErrUnknownDependency) {
			return &cli.ExitError{Code: cli.ExitGraphInvalid, Message: err.Error()}
		}
		return err
	}

	if result.Status == runner.StatusSucceeded {
		return nil
	}

	code := cli.ExitJobFailed
	if errors.Is(result.Err, artifact.ErrMissingCredential) {
		code = cli.ExitMissingCredential
	}
	return &cli.ExitError{Code: code, Message: fmt.Sprintf("workflow failed: %v", result.Err)}
}
