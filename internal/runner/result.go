package runner

import (
	"errors"
	"fmt"
)

// Status is the terminal (or in-flight) state of one job instance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// ErrStepExecution indicates a step's external process exited non-zero.
// It is terminal for that job only; sibling jobs keep running.
var ErrStepExecution = errors.New("step execution failed")

// StepExecutionError carries the first failing step's detail for reporting.
type StepExecutionError struct {
	Job    string
	Step   string
	Output string
	Err    error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("%s: job %q step %q: %v", ErrStepExecution.Error(), e.Job, e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return ErrStepExecution }

// StepLog is the captured output of one executed step.
type StepLog struct {
	Step   string `json:"step"`
	Output string `json:"output,omitempty"`
}

// Result is the outcome of running one job.
type Result struct {
	Status Status
	// Artifacts lists the workspace paths the job persisted.
	Artifacts []string
	// Logs holds per-step output in execution order. A skipped job has none.
	Logs []StepLog
	// Err is the first failing step's error, nil unless Status is failed.
	Err error
}
