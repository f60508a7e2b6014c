package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/engine"
	"github.com/user/finagent/internal/types"
)

// Service is the serialized front door to the engine. Every turn and
// approval decision goes through the queue, so two requests for the same
// thread can never interleave.
type Service struct {
	engine *engine.Engine
	queue  *Queue
	logger *zap.Logger
}

func NewService(eng *engine.Engine, maxConcurrent int64, logger *zap.Logger) *Service {
	return &Service{
		engine: eng,
		queue:  NewQueue(maxConcurrent),
		logger: logger,
	}
}

// Start initialises the internal queue. Must be called before submitting
// work.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue and waits for in-flight turns.
func (s *Service) Stop() {
	s.queue.Stop()
}

// SubmitTurn queues a user message for its thread and blocks until the turn
// completes or the caller's context ends.
func (s *Service) SubmitTurn(ctx context.Context, key types.ThreadKey, userID, text string) (*types.TurnResult, error) {
	job := NewJob(key, func(jobCtx context.Context) (*types.TurnResult, error) {
		return s.engine.SubmitTurn(jobCtx, key, userID, text)
	})
	if err := s.queue.Enqueue(job); err != nil {
		return nil, err
	}
	s.logger.Debug("turn enqueued", zap.String("thread", string(key)), zap.String("user_id", userID))
	return job.Wait(ctx)
}

// ResolveApproval queues an approval decision for its thread and blocks
// until the resumed turn completes.
func (s *Service) ResolveApproval(ctx context.Context, key types.ThreadKey, approve bool) (*types.TurnResult, error) {
	job := NewJob(key, func(jobCtx context.Context) (*types.TurnResult, error) {
		return s.engine.ResolveApproval(jobCtx, key, approve)
	})
	if err := s.queue.Enqueue(job); err != nil {
		return nil, err
	}
	s.logger.Debug("approval enqueued", zap.String("thread", string(key)), zap.Bool("approve", approve))
	return job.Wait(ctx)
}

// WaitIdle blocks until no turns are in flight, or the timeout expires.
func (s *Service) WaitIdle(timeout time.Duration) bool {
	return s.queue.WaitIdle(timeout)
}
