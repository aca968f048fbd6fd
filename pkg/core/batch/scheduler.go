package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/cache"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/models"
)

// DefaultConcurrency bounds the worker pool when the caller passes 0.
const DefaultConcurrency = 4

// Scheduler fans analysis requests out over the engine with a channel
// semaphore. Cache hits complete without dispatching a worker; misses go
// through the cache's single-flight path so duplicate fingerprints within or
// across batches still cost one inference call.
type Scheduler struct {
	engine *analysis.Engine
	cache  *cache.AnalysisCache
	ttl    time.Duration

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewScheduler wires a scheduler. ttl is the cache lifetime for fresh results.
func NewScheduler(engine *analysis.Engine, c *cache.AnalysisCache, ttl time.Duration) *Scheduler {
	return &Scheduler{
		engine: engine,
		cache:  c,
		ttl:    ttl,
		jobs:   make(map[string]*Job),
	}
}

// Submit starts a batch and returns immediately. Every submitted request ends
// in exactly one terminal outcome; one request's failure never aborts its
// siblings.
func (s *Scheduler) Submit(ctx context.Context, reqs []models.AnalysisRequest, maxConcurrency int) (*Job, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}

	job := newJob(uuid.New().String(), reqs)
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.run(ctx, job, reqs, maxConcurrency)
	return job, nil
}

func (s *Scheduler) run(ctx context.Context, job *Job, reqs []models.AnalysisRequest, maxConcurrency int) {
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			// Cancellation suppresses dispatch; a request that has not
			// started simply never does.
			if job.isCancelled() || ctx.Err() != nil {
				job.setOutcome(i, Outcome{Status: StatusCancelled})
				return
			}

			job.setStatus(i, StatusRunning)
			s.execute(ctx, job, i, reqs[i])
		}(i)
	}

	wg.Wait()
	close(job.done)
}

func (s *Scheduler) execute(ctx context.Context, job *Job, i int, req models.AnalysisRequest) {
	// Resolve the snapshot before fingerprinting so a version-less request
	// keys on the version it will actually be analyzed against.
	req, err := s.engine.ResolveRequest(ctx, req)
	if err != nil {
		job.setOutcome(i, Outcome{
			Status:      StatusFailed,
			Error:       err.Error(),
			FailureKind: llm.KindOf(err),
			Attempts:    0,
			err:         err,
		})
		return
	}

	fingerprint, err := s.engine.Fingerprint(req)
	if err != nil {
		job.setOutcome(i, Outcome{
			Status:      StatusFailed,
			Error:       err.Error(),
			FailureKind: llm.KindOf(err),
			Attempts:    0,
			err:         err,
		})
		return
	}

	if result, ok := s.cache.Get(ctx, fingerprint); ok {
		job.setOutcome(i, Outcome{Status: StatusDone, Result: &result, CacheHit: true})
		return
	}

	attempts := 0
	result, err := s.cache.Do(ctx, fingerprint, s.ttl, func(ctx context.Context) (models.AnalysisResult, error) {
		var res models.AnalysisResult
		res, attempts, err = withRetry(ctx, func(ctx context.Context) (models.AnalysisResult, error) {
			return s.engine.Analyze(ctx, req)
		})
		return res, err
	})
	if err != nil {
		job.setOutcome(i, Outcome{
			Status:      StatusFailed,
			Error:       err.Error(),
			FailureKind: llm.KindOf(err),
			Attempts:    attempts,
			err:         err,
		})
		return
	}

	job.setOutcome(i, Outcome{Status: StatusDone, Result: &result, Attempts: attempts})
}

// Await blocks until the batch settles or ctx expires, then returns the
// complete request→outcome mapping.
func (s *Scheduler) Await(ctx context.Context, job *Job) ([]Outcome, error) {
	select {
	case <-job.Done():
		return job.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll returns the current outcome snapshot without blocking.
func (s *Scheduler) Poll(job *Job) []Outcome {
	return job.Snapshot()
}

// Cancel stops dispatching new requests for the job. In-flight analyses run
// to completion and keep their results; unstarted requests end cancelled.
func (s *Scheduler) Cancel(job *Job) {
	job.markCancelled()
}

// JobByID resolves a previously submitted job.
func (s *Scheduler) JobByID(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}
