package runner

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// CommandRunner executes one shell-level command and returns its combined
// output. The orchestrator treats build tools, test frameworks and linters
// as opaque subprocesses with exit codes; this is the seam tests fake.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, command string) (string, error)
}

// ShellRunner runs commands through `sh -c` with a per-step timeout.
type ShellRunner struct {
	// Timeout bounds a single step. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Run implements CommandRunner.
func (r *ShellRunner) Run(ctx context.Context, dir string, env []string, command string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}
