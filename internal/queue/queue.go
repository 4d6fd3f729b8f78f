// Package queue provides in-memory job queues with bounded retries,
// exponential backoff and capped retention of finished jobs. Every
// queue is an explicit handle injected into its consumers; there are
// no process-wide queue singletons.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/logger"
)

// Default queue behaviour.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 5 * time.Second
	DefaultRetentionCount = 100
	DefaultRetentionAge   = time.Hour
)

// Handler executes one job. The report callback publishes live
// progress so status queries reflect real work.
type Handler[T any] func(ctx context.Context, job T, report func(domain.JobProgress)) error

// Options configures a queue.
type Options struct {
	// MaxAttempts is the total attempt budget per job.
	MaxAttempts int

	// BackoffBase is the first retry delay; each further retry doubles it.
	BackoffBase time.Duration

	// RetentionCount caps how many finished jobs are kept.
	RetentionCount int

	// RetentionAge caps how long finished jobs are kept.
	RetentionAge time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.RetentionCount <= 0 {
		o.RetentionCount = DefaultRetentionCount
	}
	if o.RetentionAge <= 0 {
		o.RetentionAge = DefaultRetentionAge
	}
	return o
}

// Job is the queue's bookkeeping for one unit of work.
type Job[T any] struct {
	ID         string
	Payload    T
	State      domain.JobState
	Attempts   int
	Progress   domain.JobProgress
	Error      string
	EnqueuedAt time.Time
	FinishedAt *time.Time

	// nextRunAt delays retried jobs.
	nextRunAt time.Time
}

// Queue is a single-consumer in-memory job queue.
type Queue[T any] struct {
	name        string
	handler     Handler[T]
	workspaceOf func(T) string
	opts        Options

	mu       sync.Mutex
	waiting  []*Job[T]
	active   *Job[T]
	finished []*Job[T]
	closed   bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a queue. workspaceOf extracts the workspace a payload
// belongs to, for scoped inspection and cancellation.
func New[T any](name string, handler Handler[T], workspaceOf func(T) string, opts Options) *Queue[T] {
	return &Queue[T]{
		name:        name,
		handler:     handler,
		workspaceOf: workspaceOf,
		opts:        opts.withDefaults(),
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (q *Queue[T]) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.loop(ctx)
	}()
}

// Stop shuts the queue down and waits for the running job to finish.
// Waiting jobs are discarded.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
}

// Enqueue adds a job under the given ID.
func (q *Queue[T]) Enqueue(_ context.Context, id string, payload T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return domain.ErrQueueClosed
	}

	now := time.Now()
	q.waiting = append(q.waiting, &Job[T]{
		ID:         id,
		Payload:    payload,
		State:      domain.JobWaiting,
		EnqueuedAt: now,
		nextRunAt:  now,
	})

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Snapshot is a copy of a job's observable state.
type Snapshot[T any] struct {
	ID         string
	Payload    T
	State      domain.JobState
	Attempts   int
	Progress   domain.JobProgress
	Error      string
	EnqueuedAt time.Time
	FinishedAt *time.Time
}

// Active returns the running job for a workspace, if any.
func (q *Queue[T]) Active(workspaceID string) (Snapshot[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active != nil && q.workspaceOf(q.active.Payload) == workspaceID {
		return snapshot(q.active), true
	}
	return Snapshot[T]{}, false
}

// Waiting returns jobs for a workspace that have not started.
func (q *Queue[T]) Waiting(workspaceID string) []Snapshot[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Snapshot[T]
	for _, j := range q.waiting {
		if q.workspaceOf(j.Payload) == workspaceID {
			out = append(out, snapshot(j))
		}
	}
	return out
}

// MostRecentFinished returns the latest finished job for a workspace
// within the lookback window.
func (q *Queue[T]) MostRecentFinished(workspaceID string, lookback time.Duration) (Snapshot[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-lookback)
	for i := len(q.finished) - 1; i >= 0; i-- {
		j := q.finished[i]
		if q.workspaceOf(j.Payload) != workspaceID {
			continue
		}
		if j.FinishedAt == nil || j.FinishedAt.Before(cutoff) {
			continue
		}
		return snapshot(j), true
	}
	return Snapshot[T]{}, false
}

// CancelWaiting removes waiting jobs for a workspace. Active jobs run
// to completion; there is no mid-flight preemption.
func (q *Queue[T]) CancelWaiting(workspaceID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.waiting[:0]
	removed := 0
	for _, j := range q.waiting {
		if q.workspaceOf(j.Payload) == workspaceID {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	q.waiting = kept
	return removed
}

// loop consumes jobs one at a time until stopped.
func (q *Queue[T]) loop(ctx context.Context) {
	for {
		job, wait := q.takeDue()
		if job == nil {
			timer := neverTimer
			if wait > 0 {
				timer = time.After(wait)
			}
			select {
			case <-ctx.Done():
				return
			case <-q.stopCh:
				return
			case <-q.wake:
			case <-timer:
			}
			continue
		}

		q.run(ctx, job)

		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		default:
		}
	}
}

// neverTimer is a nil channel: selecting on it blocks forever.
var neverTimer <-chan time.Time

// takeDue pops the earliest due waiting job and marks it active.
// When nothing is due it returns the wait until the next job, or 0
// when the queue is empty.
func (q *Queue[T]) takeDue() (*Job[T], time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	best := -1
	var soonest time.Duration
	for i, j := range q.waiting {
		if !j.nextRunAt.After(now) {
			if best == -1 || j.nextRunAt.Before(q.waiting[best].nextRunAt) {
				best = i
			}
			continue
		}
		d := j.nextRunAt.Sub(now)
		if soonest == 0 || d < soonest {
			soonest = d
		}
	}
	if best == -1 {
		return nil, soonest
	}

	job := q.waiting[best]
	q.waiting = append(q.waiting[:best], q.waiting[best+1:]...)
	job.State = domain.JobActive
	q.active = job
	return job, 0
}

// run executes one attempt and finalises or reschedules the job.
func (q *Queue[T]) run(ctx context.Context, job *Job[T]) {
	report := func(p domain.JobProgress) {
		q.mu.Lock()
		job.Progress = p
		q.mu.Unlock()
	}

	err := q.handler(ctx, job.Payload, report)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = nil
	job.Attempts++

	if err == nil {
		job.State = domain.JobCompleted
		q.finishLocked(job)
		return
	}

	job.Error = err.Error()
	if job.Attempts >= q.opts.MaxAttempts {
		logger.Warn("queue %s: job %s failed after %d attempts: %v", q.name, job.ID, job.Attempts, err)
		job.State = domain.JobFailed
		q.finishLocked(job)
		return
	}

	backoff := q.opts.BackoffBase << (job.Attempts - 1)
	logger.Debug("queue %s: job %s attempt %d failed, retrying in %s: %v", q.name, job.ID, job.Attempts, backoff, err)
	job.State = domain.JobWaiting
	job.nextRunAt = time.Now().Add(backoff)
	q.waiting = append(q.waiting, job)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// finishLocked records a terminal job and prunes retention.
func (q *Queue[T]) finishLocked(job *Job[T]) {
	now := time.Now()
	job.FinishedAt = &now
	q.finished = append(q.finished, job)

	cutoff := now.Add(-q.opts.RetentionAge)
	kept := q.finished[:0]
	for _, j := range q.finished {
		if j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, j)
	}
	q.finished = kept

	if n := len(q.finished) - q.opts.RetentionCount; n > 0 {
		q.finished = append(q.finished[:0], q.finished[n:]...)
	}
}

func snapshot[T any](j *Job[T]) Snapshot[T] {
	s := Snapshot[T]{
		ID:         j.ID,
		Payload:    j.Payload,
		State:      j.State,
		Attempts:   j.Attempts,
		Progress:   j.Progress,
		Error:      j.Error,
		EnqueuedAt: j.EnqueuedAt,
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		s.FinishedAt = &t
	}
	return s
}
