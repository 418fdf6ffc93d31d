package config

import "path"

// StepKind discriminates the step variants a job may contain.
type StepKind string

const (
	// StepRun executes a shell-level command against the job environment.
	StepRun StepKind = "run"
	// StepCheckout fetches a companion repository at a resolved branch.
	StepCheckout StepKind = "checkout"
	// StepRestoreCache restores a blob from the cache store. A miss is a
	// cold-cache condition, not a failure.
	StepRestoreCache StepKind = "restore_cache"
	// StepSaveCache archives a path and saves it under a derived cache key.
	StepSaveCache StepKind = "save_cache"
	// StepAttachWorkspace copies previously persisted paths into the job.
	StepAttachWorkspace StepKind = "attach_workspace"
	// StepPersistWorkspace copies paths out of the job for downstream jobs.
	StepPersistWorkspace StepKind = "persist_workspace"
	// StepPushImage publishes an artifact reference to the registry.
	StepPushImage StepKind = "push_image"
)

// Step is the format-agnostic representation of a single unit of work inside
// a job. Which fields are meaningful depends on Kind; loaders validate that.
type Step struct {
	Kind StepKind
	Name string

	// Command is the shell command for StepRun.
	Command string

	// Repo names the companion repository for StepCheckout.
	Repo string

	// Namespace and ChecksumFiles feed cache key derivation for
	// StepRestoreCache and StepSaveCache. Path is the directory that is
	// archived on save and unpacked on restore.
	Namespace     string
	ChecksumFiles []string
	Path          string

	// Paths lists the files or directories moved by StepPersistWorkspace
	// and StepAttachWorkspace.
	Paths []string

	// ImageRef and Source identify the artifact pushed by StepPushImage.
	ImageRef string
	Source   string
}

// BranchFilter restricts a job to specific trigger branches. An empty Only
// list means the job runs on every branch.
type BranchFilter struct {
	Only []string
}

// Matches reports whether the given trigger branch passes the filter.
// Entries are shell-style patterns, so "release/*" works as expected.
func (f BranchFilter) Matches(branch string) bool {
	if len(f.Only) == 0 {
		return true
	}
	for _, pattern := range f.Only {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// Job is the format-agnostic representation of a `job` block.
type Job struct {
	Name     string
	Requires []string
	Filter   BranchFilter
	Steps    []*Step

	// Informational marks a job whose failure neither blocks dependents nor
	// fails the workflow. Lint-style jobs use this.
	Informational bool
}

// Companion is an external repository whose branch must be resolved against
// the triggering branch before checkout.
type Companion struct {
	Name   string
	Remote string
}

// Model is the unified representation of one pipeline definition: the
// project header plus every job, regardless of the source format.
type Model struct {
	Project       string
	DefaultBranch string
	Companions    map[string]*Companion
	Jobs          []*Job
}

// Job returns the named job, or nil if the model does not define it.
func (m *Model) Job(name string) *Job {
	for _, j := range m.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}
