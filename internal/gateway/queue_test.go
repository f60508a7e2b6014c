package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/finagent/internal/types"
)

func TestJobsOnOneLaneRunInOrder(t *testing.T) {
	q := NewQueue(4)
	q.Start(context.Background())
	defer q.Stop()

	key := types.NewThreadKey("user1", "main")
	var mu sync.Mutex
	var order []int

	jobs := make([]*Job, 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		job := NewJob(key, func(context.Context) (*types.TurnResult, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return &types.TurnResult{}, nil
		})
		require.NoError(t, q.Enqueue(job))
		jobs = append(jobs, job)
	}

	for _, job := range jobs {
		_, err := job.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLanesRunConcurrently(t *testing.T) {
	q := NewQueue(2)
	q.Start(context.Background())
	defer q.Stop()

	release := make(chan struct{})
	blocking := NewJob(types.NewThreadKey("user1", "main"), func(context.Context) (*types.TurnResult, error) {
		<-release
		return &types.TurnResult{}, nil
	})
	require.NoError(t, q.Enqueue(blocking))

	quick := NewJob(types.NewThreadKey("user2", "main"), func(context.Context) (*types.TurnResult, error) {
		return &types.TurnResult{}, nil
	})
	require.NoError(t, q.Enqueue(quick))

	// The second lane completes while the first is still blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := quick.Wait(ctx)
	require.NoError(t, err)

	close(release)
	_, err = blocking.Wait(context.Background())
	require.NoError(t, err)
}

func TestJobError(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	job := NewJob(types.NewThreadKey("user1", "main"), func(context.Context) (*types.TurnResult, error) {
		return nil, assert.AnError
	})
	require.NoError(t, q.Enqueue(job))

	_, err := job.Wait(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWaitRespectsCallerContext(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	release := make(chan struct{})
	defer close(release)
	job := NewJob(types.NewThreadKey("user1", "main"), func(context.Context) (*types.TurnResult, error) {
		<-release
		return &types.TurnResult{}, nil
	})
	require.NoError(t, q.Enqueue(job))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := job.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdownFailsBufferedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewQueue(1)
	q.Start(ctx)

	// Hold the only semaphore slot on one lane so another lane's jobs pile
	// up behind Acquire.
	release := make(chan struct{})
	blocking := NewJob(types.NewThreadKey("user1", "main"), func(context.Context) (*types.TurnResult, error) {
		<-release
		return &types.TurnResult{}, nil
	})
	require.NoError(t, q.Enqueue(blocking))

	key := types.NewThreadKey("user2", "main")
	waiting := make([]*Job, 0, 3)
	for i := 0; i < 3; i++ {
		job := NewJob(key, func(context.Context) (*types.TurnResult, error) {
			return &types.TurnResult{}, nil
		})
		require.NoError(t, q.Enqueue(job))
		waiting = append(waiting, job)
	}

	cancel()

	// Every queued job gets an answer instead of leaving its caller blocked.
	for _, job := range waiting {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := job.Wait(waitCtx)
		waitCancel()
		assert.ErrorIs(t, err, context.Canceled)
	}

	close(release)
	_, err := blocking.Wait(context.Background())
	require.NoError(t, err)
	q.Stop()
}

func TestWaitIdle(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	job := NewJob(types.NewThreadKey("user1", "main"), func(context.Context) (*types.TurnResult, error) {
		return &types.TurnResult{}, nil
	})
	require.NoError(t, q.Enqueue(job))
	_, err := job.Wait(context.Background())
	require.NoError(t, err)

	assert.True(t, q.WaitIdle(time.Second))
}
