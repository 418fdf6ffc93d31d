package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SourceFetcher materializes a repository branch into a local directory.
type SourceFetcher interface {
	Fetch(ctx context.Context, remote, branch, dest string) error
}

// GitFetcher fetches with a shallow `git clone`. The orchestrator never
// inspects history, so depth 1 keeps multi-repository runs cheap.
type GitFetcher struct{}

// Fetch implements SourceFetcher.
func (GitFetcher) Fetch(ctx context.Context, remote, branch, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--branch", branch, remote, dest)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone %s@%s: %w: %s", remote, branch, err, strings.TrimSpace(out.String()))
	}
	return nil
}
