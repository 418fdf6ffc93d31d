package dag

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic checks via errors.Is().
var (
	// ErrCycle indicates the requires edges form a cycle.
	ErrCycle = errors.New("dependency cycle")

	// ErrUnknownDependency indicates a job requires a name not present in
	// the graph.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// CycleError reports a cycle in the requires edges. Members holds the jobs
// involved in the detected cycle, in the order they were visited.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s involving: %s", ErrCycle.Error(), strings.Join(e.Members, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// UnknownDependencyError reports a requires entry that names a job absent
// from the graph.
type UnknownDependencyError struct {
	Job      string
	Requires string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s: job %q requires %q which is not defined", ErrUnknownDependency.Error(), e.Job, e.Requires)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }
