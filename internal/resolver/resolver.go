// Package resolver decides which branch of a companion repository a workflow
// run checks out: the triggering branch when the companion has it, otherwise
// the pipeline's default branch.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/crosspipe/internal/ctxlog"
)

// ErrDependencyResolution indicates a companion repository could not be
// checked out at either the triggering branch or the default branch.
var ErrDependencyResolution = errors.New("dependency resolution failed")

// DependencyResolutionError reports that a companion has neither the
// requested branch nor the fallback.
type DependencyResolutionError struct {
	Repo     string
	Branch   string
	Fallback string
}

func (e *DependencyResolutionError) Error() string {
	return fmt.Sprintf("%s: repository %q has neither branch %q nor fallback %q",
		ErrDependencyResolution.Error(), e.Repo, e.Branch, e.Fallback)
}

func (e *DependencyResolutionError) Unwrap() error { return ErrDependencyResolution }

// BranchLister reports whether a repository has a branch. Implementations
// query a remote (git, HTTP API) or a local fixture in tests.
type BranchLister interface {
	HasBranch(ctx context.Context, repo, branch string) (bool, error)
}

// Resolver applies the same-name-else-default policy. Each companion is
// resolved independently, so different companions may end up pinned to
// different branches in the same run; that inconsistency is accepted and
// logged rather than treated as an error.
type Resolver struct {
	lister        BranchLister
	defaultBranch string
}

// New returns a Resolver falling back to defaultBranch.
func New(lister BranchLister, defaultBranch string) *Resolver {
	return &Resolver{lister: lister, defaultBranch: defaultBranch}
}

// Resolve returns the branch of repo to check out for a run triggered on
// branch. It never fails outright: an absent branch, or a lister error,
// degrades to the default branch. If the fallback is itself absent the
// subsequent checkout fails and is surfaced there as a
// DependencyResolutionError.
func (r *Resolver) Resolve(ctx context.Context, repo, branch string) string {
	logger := ctxlog.FromContext(ctx).With("repo", repo, "branch", branch)

	if branch == r.defaultBranch {
		return r.defaultBranch
	}

	ok, err := r.lister.HasBranch(ctx, repo, branch)
	if err != nil {
		logger.Warn("Branch lookup failed, falling back to default branch.",
			"fallback", r.defaultBranch, "error", err)
		return r.defaultBranch
	}
	if !ok {
		logger.Info("Companion repository lacks triggering branch, using default.",
			"fallback", r.defaultBranch)
		return r.defaultBranch
	}
	return branch
}

// DefaultBranch returns the configured fallback branch.
func (r *Resolver) DefaultBranch() string {
	return r.defaultBranch
}
