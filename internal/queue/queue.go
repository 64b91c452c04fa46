// Package queue implements the bounded FIFO and worker pool that the
// pipeline coordinator drives: a fixed number of workers pull jobs off a
// channel-backed queue and run them, with cooperative stop/drain
// semantics. Grounded on the original WorkQueue (bounded Queue.Queue,
// itertools.count job counter, no_more_jobs drain flag, indefinite-retry
// enqueue) and on the teacher's internal/sync/worker.go start/stop/running
// shape.
package queue

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is the terminal outcome of a job run.
type State int

const (
	OK State = iota
	FAILED
	TERMINATED
)

func (s State) String() string {
	switch s {
	case OK:
		return "OK"
	case FAILED:
		return "FAILED"
	case TERMINATED:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Job is a unit of work submitted to the queue.
type Job interface {
	// Run executes the job and returns its terminal state. TERMINATED
	// signals a fatal, unrecoverable condition (e.g. the external tool
	// binary is missing); the worker that observes it exits, but other
	// workers keep going until the queue drains or Stop is called.
	Run(ctx context.Context) State
}

const (
	putTimeout  = 3600 * time.Second
	pollTimeout = time.Second
)

// Queue is a bounded FIFO feeding a fixed-size worker pool.
type Queue struct {
	jobs chan Job

	mu      sync.Mutex
	running bool
	drained bool
	stopped bool

	completed int64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New creates a queue with capacity 10*workers (or the given maxSize if
// positive). workers == 0 means the host's logical core count.
func New(workers, maxSize int) *Queue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if maxSize <= 0 {
		maxSize = workers * 10
	}
	return &Queue{
		jobs: make(chan Job, maxSize),
	}
}

// Start launches the worker pool against ctx. Each worker polls the
// channel with a short timeout, checking the drain/stop flags between
// jobs.
func (q *Queue) Start(ctx context.Context, workers int) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	q.group = g

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			q.runWorker(gctx)
			return nil
		})
	}
}

func (q *Queue) runWorker(ctx context.Context) {
	for {
		if q.isStopped() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			state := job.Run(ctx)
			q.mu.Lock()
			q.completed++
			q.mu.Unlock()
			if state == TERMINATED {
				return
			}
		case <-time.After(pollTimeout):
			if q.isDrained() && len(q.jobs) == 0 {
				return
			}
		}
	}
}

func (q *Queue) isDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drained
}

func (q *Queue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Submit enqueues a job, blocking up to a long timeout if the queue is
// full, retrying until it succeeds or ctx is cancelled.
func (q *Queue) Submit(ctx context.Context, j Job) error {
	for {
		deadline := time.NewTimer(putTimeout)
		select {
		case q.jobs <- j:
			deadline.Stop()
			return nil
		case <-ctx.Done():
			deadline.Stop()
			return ctx.Err()
		case <-deadline.C:
			// Timed out while full; try again.
		}
	}
}

// Drain marks that no more jobs will be submitted; workers exit once the
// queue empties.
func (q *Queue) Drain() {
	q.mu.Lock()
	q.drained = true
	q.mu.Unlock()
}

// Stop sets a hard stop flag; workers exit after their current job.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
	}
}

// Wait blocks until every worker has exited (queue drained, stopped, or
// terminated), returning the first worker error (workers never return an
// error themselves, so this is effectively nil unless ctx-derived
// cancellation surfaces one).
func (q *Queue) Wait() error {
	if q.group == nil {
		return nil
	}
	return q.group.Wait()
}

// Size returns the approximate current queue depth.
func (q *Queue) Size() int {
	return len(q.jobs)
}

// Completed returns the monotonic count of jobs that have finished
// running (any terminal state).
func (q *Queue) Completed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// NewJobID mints a short random job identifier for logging, e.g.
// "job-3fa85f64".
func NewJobID() string {
	return "job-" + uuid.New().String()[:8]
}
