package resolver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitLister answers branch queries by asking the remote directly with
// `git ls-remote --heads`. It needs no local clone and no API token beyond
// whatever git's own credential helpers provide.
type GitLister struct {
	// Remotes maps companion repository names to their clone URLs.
	Remotes map[string]string
}

// HasBranch implements BranchLister.
func (l *GitLister) HasBranch(ctx context.Context, repo, branch string) (bool, error) {
	remote, ok := l.Remotes[repo]
	if !ok {
		return false, fmt.Errorf("no remote configured for repository %q", repo)
	}

	cmd := exec.CommandContext(ctx, "git", "ls-remote", "--heads", remote, "refs/heads/"+branch)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("git ls-remote %s: %w: %s", remote, err, strings.TrimSpace(out.String()))
	}
	// ls-remote prints one "<sha>\trefs/heads/<branch>" line per match and
	// nothing when the ref does not exist.
	return strings.TrimSpace(out.String()) != "", nil
}
