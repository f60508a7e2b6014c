package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/orchestrator"
	"github.com/user/finagent/internal/types"
)

// Turn-loop states. A turn starts in StateOrchestrate and ends in StateDone
// or parked at StateAwaitApproval.
const (
	StateOrchestrate   = "ORCHESTRATE"
	StateExecuteTools  = "EXECUTE_TOOLS"
	StateAwaitApproval = "AWAIT_APPROVAL"
	StateDone          = "DONE"
)

// DefaultMaxIterations bounds orchestrate/execute cycles per turn.
const DefaultMaxIterations = 10

// DefaultInterruptTools are the tools whose execution requires operator
// approval.
var DefaultInterruptTools = []string{"send_whatsapp_alert", "gst_draft_generator"}

var (
	// ErrApprovalPending means the thread has a suspended tool batch; new
	// turns are rejected until it is resolved.
	ErrApprovalPending = errors.New("thread is awaiting approval")
	// ErrNoApprovalPending means an approval decision arrived for a thread
	// with nothing suspended.
	ErrNoApprovalPending = errors.New("thread has no pending approval")
)

// IterationLimitNotice is the visible reply when a turn exhausts its
// iteration budget.
const IterationLimitNotice = "I reached the iteration limit for this request before finishing. " +
	"The work done so far is recorded above. Please narrow the request and try again."

// Engine drives the turn state machine over one thread at a time: reason,
// execute tools, repeat, until the model produces a plain reply or a gated
// tool suspends the turn. State is committed once per turn, so a failed turn
// leaves the thread exactly as it was.
type Engine struct {
	orchestrator *orchestrator.Node
	executor     *Executor
	checkpoints  types.Checkpointer
	interrupts   map[string]struct{}
	maxIters     int
	notify       func(types.ThreadKey, *types.Approval)
	logger       *zap.Logger
}

func New(
	node *orchestrator.Node,
	executor *Executor,
	checkpoints types.Checkpointer,
	interruptTools []string,
	maxIters int,
	logger *zap.Logger,
) *Engine {
	if maxIters <= 0 {
		maxIters = DefaultMaxIterations
	}
	if interruptTools == nil {
		interruptTools = DefaultInterruptTools
	}
	interrupts := make(map[string]struct{}, len(interruptTools))
	for _, name := range interruptTools {
		interrupts[name] = struct{}{}
	}
	return &Engine{
		orchestrator: node,
		executor:     executor,
		checkpoints:  checkpoints,
		interrupts:   interrupts,
		maxIters:     maxIters,
		logger:       logger,
	}
}

// SetApprovalNotifier registers a callback fired after a turn suspends for
// approval and its state is committed. Used by the operator channel.
func (e *Engine) SetApprovalNotifier(fn func(types.ThreadKey, *types.Approval)) {
	e.notify = fn
}

// SubmitTurn appends the user message to the thread and runs the turn loop.
// It returns either the final assistant message or the tool batch suspended
// for approval. On error the thread state is unchanged.
func (e *Engine) SubmitTurn(ctx context.Context, key types.ThreadKey, userID, text string) (*types.TurnResult, error) {
	stored, err := e.checkpoints.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	if stored.Pending != nil {
		return nil, ErrApprovalPending
	}

	state := stored.Clone()
	state.Append(types.Message{Role: types.RoleUser, Content: text})

	result, err := e.runLoop(ctx, key, userID, state)
	if err != nil {
		return nil, err
	}
	if err := e.checkpoints.Save(ctx, key, state); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}
	e.notifyPending(key, state)
	return result, nil
}

// ResolveApproval resumes a suspended thread. Approving executes the held
// batch in request order; declining answers each held call with a rejection
// result. Either way the loop then continues with a fresh iteration budget
// so the model can react.
func (e *Engine) ResolveApproval(ctx context.Context, key types.ThreadKey, approve bool) (*types.TurnResult, error) {
	stored, err := e.checkpoints.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	if stored.Pending == nil {
		return nil, ErrNoApprovalPending
	}

	state := stored.Clone()
	pending := *state.Pending
	state.Pending = nil

	if approve {
		e.logger.Info("approval granted",
			zap.String("thread", string(key)),
			zap.Strings("gated", pending.Gated),
		)
		results := e.executor.ExecuteAll(ctx, pending.UserID, pending.Calls)
		state.Append(results...)
	} else {
		e.logger.Info("approval declined",
			zap.String("thread", string(key)),
			zap.Strings("gated", pending.Gated),
		)
		for _, call := range pending.Calls {
			state.Append(types.Message{
				Role:       types.RoleToolResult,
				Content:    `{"error":"declined","message":"The user declined this action. Do not retry it."}`,
				ToolCallID: call.ID,
			})
		}
	}

	result, err := e.runLoop(ctx, key, pending.UserID, state)
	if err != nil {
		return nil, err
	}
	if err := e.checkpoints.Save(ctx, key, state); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}
	e.notifyPending(key, state)
	return result, nil
}

func (e *Engine) notifyPending(key types.ThreadKey, state *types.ThreadState) {
	if e.notify != nil && state.Pending != nil {
		e.notify(key, state.Pending)
	}
}

// runLoop is the ORCHESTRATE / EXECUTE_TOOLS cycle shared by fresh turns and
// approval resumes. It mutates state in place and never saves.
func (e *Engine) runLoop(ctx context.Context, key types.ThreadKey, userID string, state *types.ThreadState) (*types.TurnResult, error) {
	for iter := 0; iter < e.maxIters; iter++ {
		decision, err := e.orchestrator.Orchestrate(ctx, userID, state)
		if err != nil {
			return nil, fmt.Errorf("orchestrate: %w", err)
		}
		state.Append(decision.Message)

		if len(decision.Message.ToolCalls) == 0 {
			final := state.Messages[len(state.Messages)-1]
			return &types.TurnResult{Final: &final}, nil
		}

		if gated := e.gatedCalls(decision.Message.ToolCalls); len(gated) > 0 {
			state.Pending = &types.Approval{
				TurnID:    types.NewTurnID(),
				UserID:    userID,
				Calls:     decision.Message.ToolCalls,
				Gated:     gated,
				CreatedAt: time.Now(),
			}
			e.logger.Info("turn suspended for approval",
				zap.String("thread", string(key)),
				zap.Strings("gated", gated),
			)
			return &types.TurnResult{PendingApproval: decision.Message.ToolCalls}, nil
		}

		results := e.executor.ExecuteAll(ctx, userID, decision.Message.ToolCalls)
		state.Append(results...)
	}

	e.logger.Warn("iteration limit reached",
		zap.String("thread", string(key)),
		zap.Int("max_iterations", e.maxIters),
	)
	state.Append(types.Message{Role: types.RoleAssistant, Content: IterationLimitNotice})
	final := state.Messages[len(state.Messages)-1]
	return &types.TurnResult{Final: &final}, nil
}

// Status reports where a stored thread sits in the state machine. A thread
// at rest is DONE unless a suspended batch is waiting on an operator.
func Status(state *types.ThreadState) string {
	if state.Pending != nil {
		return StateAwaitApproval
	}
	return StateDone
}

// gatedCalls returns the names in the batch that are in the interrupt set.
// The whole batch is suspended together so every call keeps its result
// pairing when the thread resumes.
func (e *Engine) gatedCalls(calls []types.ToolCall) []string {
	var gated []string
	for _, call := range calls {
		if _, ok := e.interrupts[call.Name]; ok {
			gated = append(gated, call.Name)
		}
	}
	return gated
}
