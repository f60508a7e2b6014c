package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/finagent/internal/types"
)

const laneBuffer = 100

// Queue manages per-thread lanes with a global concurrency semaphore. Each
// thread gets its own FIFO channel so jobs on one thread run strictly in
// order, while the semaphore limits total parallelism across threads. The
// engine's one-turn-per-thread guarantee rests on this ordering.
type Queue struct {
	lanes     map[types.ThreadKey]chan *Job
	semaphore *semaphore.Weighted
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue allowing up to maxConcurrent jobs across all
// lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Queue{
		lanes:     make(map[types.ThreadKey]chan *Job),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// jobs to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.ThreadKey]chan *Job)
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a job to its thread's lane, creating the lane (and its
// goroutine) on first use. Returns an error when the lane's buffer is full.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[job.Key]
	if !exists {
		lane = make(chan *Job, laneBuffer)
		q.lanes[job.Key] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- job:
		return nil
	default:
		return fmt.Errorf("queue full for thread %s", job.Key)
	}
}

// processLane drains one thread lane, acquiring a semaphore slot before
// running each job synchronously. On shutdown every job still buffered in
// the lane is failed so no caller is left blocking on its reply.
func (q *Queue) processLane(lane chan *Job) {
	defer q.wg.Done()
	for {
		select {
		case job, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				job.fail(err)
				q.failRemaining(lane, err)
				return
			}
			q.active.Add(1)
			job.execute(q.ctx)
			q.active.Add(-1)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			q.failRemaining(lane, q.ctx.Err())
			return
		}
	}
}

func (q *Queue) failRemaining(lane chan *Job, err error) {
	for {
		select {
		case job, ok := <-lane:
			if !ok {
				return
			}
			job.fail(err)
		default:
			return
		}
	}
}

// WaitIdle blocks until no jobs are actively running, or the timeout
// expires. Returns true if idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Job is one unit of thread work: a turn or an approval resolution. The
// result is delivered on the reply channel exactly once.
type Job struct {
	Key   types.ThreadKey
	run   func(ctx context.Context) (*types.TurnResult, error)
	reply chan jobResult
}

type jobResult struct {
	result *types.TurnResult
	err    error
}

// NewJob wraps a unit of work for the given thread.
func NewJob(key types.ThreadKey, run func(ctx context.Context) (*types.TurnResult, error)) *Job {
	return &Job{Key: key, run: run, reply: make(chan jobResult, 1)}
}

func (j *Job) execute(ctx context.Context) {
	result, err := j.run(ctx)
	j.reply <- jobResult{result: result, err: err}
}

func (j *Job) fail(err error) {
	j.reply <- jobResult{err: err}
}

// Wait blocks until the job completes or the caller's context ends.
func (j *Job) Wait(ctx context.Context) (*types.TurnResult, error) {
	select {
	case res := <-j.reply:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
