// Package batch fans a set of analysis requests out over a bounded worker
// pool with per-request failure isolation, cache consultation, and retry of
// transient inference failures.
package batch

import (
	"sync"

	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/models"
)

// Status is the lifecycle of one request within a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the terminal record for one request. A batch always yields one
// Outcome per submitted request; partial success is first-class.
type Outcome struct {
	Request     models.AnalysisRequest `json:"request"`
	Status      Status                 `json:"status"`
	Result      *models.AnalysisResult `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	FailureKind llm.FailureKind        `json:"failure_kind,omitempty"`
	CacheHit    bool                   `json:"cache_hit"`
	Attempts    int                    `json:"attempts"`

	err error
}

// Err returns the underlying error for failed outcomes.
func (o Outcome) Err() error { return o.err }

// Job tracks one submitted batch. Outcomes are indexed in submission order.
type Job struct {
	ID string

	mu        sync.Mutex
	outcomes  []Outcome
	cancelled bool
	done      chan struct{}
}

func newJob(id string, reqs []models.AnalysisRequest) *Job {
	outcomes := make([]Outcome, len(reqs))
	for i, req := range reqs {
		outcomes[i] = Outcome{Request: req, Status: StatusPending}
	}
	return &Job{ID: id, outcomes: outcomes, done: make(chan struct{})}
}

func (j *Job) setStatus(i int, s Status) {
	j.mu.Lock()
	j.outcomes[i].Status = s
	j.mu.Unlock()
}

func (j *Job) setOutcome(i int, o Outcome) {
	j.mu.Lock()
	o.Request = j.outcomes[i].Request
	j.outcomes[i] = o
	j.mu.Unlock()
}

// markCancelled flips the job so no further requests dispatch. Work already
// running is left to finish.
func (j *Job) markCancelled() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Snapshot copies the current outcome slice. Safe to call while workers run.
func (j *Job) Snapshot() []Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Outcome, len(j.outcomes))
	copy(out, j.outcomes)
	return out
}

// Done closes when every request has reached a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Finished reports whether the whole batch has settled.
func (j *Job) Finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}
