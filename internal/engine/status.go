package engine

import (
	"sort"
	"sync"

	"github.com/vk/crosspipe/internal/runner"
)

// Trigger is the event that started a workflow run.
type Trigger struct {
	Branch string
	Commit string
}

// JobStatus is the externally visible state of one job in a run.
type JobStatus struct {
	Name          string           `json:"name"`
	Status        runner.Status    `json:"status"`
	Informational bool             `json:"informational,omitempty"`
	Error         string           `json:"error,omitempty"`
	Artifacts     []string         `json:"artifacts,omitempty"`
	Logs          []runner.StepLog `json:"logs,omitempty"`

	// err keeps the typed error for classification; Error above is the
	// string form for the JSON surface.
	err error
}

// Event is emitted whenever a job changes state, for observers like the
// status server's log stream.
type Event struct {
	Job    string        `json:"job"`
	Status runner.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// WorkflowResult is the aggregate outcome of a run. Status is succeeded iff
// every non-skipped blocking job succeeded; informational jobs may fail
// without affecting it.
type WorkflowResult struct {
	Status runner.Status
	Jobs   []*JobStatus
	// Err is the first blocking job failure, nil when Status is succeeded.
	Err error
}

// Job returns the status entry for the named job, or nil.
func (r *WorkflowResult) Job(name string) *JobStatus {
	for _, j := range r.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// statusBoard tracks per-job state during a run, safe for concurrent
// workers. It also fans events out to an optional observer.
type statusBoard struct {
	mutex  sync.RWMutex
	jobs   map[string]*JobStatus
	notify func(Event)
}

func newStatusBoard(names []string, notify func(Event)) *statusBoard {
	b := &statusBoard{jobs: make(map[string]*JobStatus, len(names)), notify: notify}
	for _, name := range names {
		b.jobs[name] = &JobStatus{Name: name, Status: runner.StatusPending}
	}
	return b
}

func (b *statusBoard) set(name string, status runner.Status, err error) {
	b.mutex.Lock()
	j := b.jobs[name]
	j.Status = status
	j.err = err
	if err != nil {
		j.Error = err.Error()
	}
	b.mutex.Unlock()

	if b.notify != nil {
		ev := Event{Job: name, Status: status}
		if err != nil {
			ev.Error = err.Error()
		}
		b.notify(ev)
	}
}

func (b *statusBoard) finish(name string, res runner.Result) {
	b.mutex.Lock()
	j := b.jobs[name]
	j.Status = res.Status
	j.Artifacts = res.Artifacts
	j.Logs = res.Logs
	j.err = res.Err
	if res.Err != nil {
		j.Error = res.Err.Error()
	}
	b.mutex.Unlock()

	if b.notify != nil {
		ev := Event{Job: name, Status: res.Status}
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
		b.notify(ev)
	}
}

func (b *statusBoard) status(name string) runner.Status {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.jobs[name].Status
}

// snapshot returns the jobs sorted by name, with copies shallow enough for
// JSON encoding outside the lock.
func (b *statusBoard) snapshot() []*JobStatus {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	jobs := make([]*JobStatus, 0, len(b.jobs))
	for _, j := range b.jobs {
		c := *j
		jobs = append(jobs, &c)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs
}
