package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/registry"
	"github.com/user/finagent/internal/types"
)

// Executor is the tool execution node. It runs a batch of tool calls in
// request order and turns every outcome, including validation and execution
// failures, into a tool_result message. A tool failing is a conversational
// fact the model reacts to, not a turn failure.
type Executor struct {
	registry *registry.Registry
	ledger   types.Ledger
	timeout  time.Duration
	logger   *zap.Logger
}

func NewExecutor(reg *registry.Registry, ledger types.Ledger, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{registry: reg, ledger: ledger, timeout: timeout, logger: logger}
}

// ExecuteAll runs the batch, producing exactly one tool_result per call,
// in order.
func (e *Executor) ExecuteAll(ctx context.Context, userID string, calls []types.ToolCall) []types.Message {
	out := make([]types.Message, 0, len(calls))
	for _, call := range calls {
		out = append(out, e.executeOne(ctx, userID, call))
	}
	return out
}

func (e *Executor) executeOne(ctx context.Context, userID string, call types.ToolCall) types.Message {
	result, execErr := e.run(ctx, call)

	content := result
	if execErr != nil {
		content = errorResult(execErr)
		e.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Error(execErr),
		)
	}

	e.audit(ctx, userID, call, content)

	return types.Message{
		Role:       types.RoleToolResult,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func (e *Executor) run(ctx context.Context, call types.ToolCall) (string, error) {
	if err := e.registry.Validate(call.Name, call.Arguments); err != nil {
		return "", err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.registry.Execute(execCtx, call.Name, call.Arguments)
}

// errorResult renders a failure as the JSON payload the model sees.
func errorResult(err error) string {
	kind := "execution_error"
	var schemaErr *registry.SchemaError
	if errors.As(err, &schemaErr) {
		kind = "invalid_arguments"
	}
	payload, marshalErr := json.Marshal(map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
	if marshalErr != nil {
		return `{"error":"tool failed"}`
	}
	return string(payload)
}

func (e *Executor) audit(ctx context.Context, userID string, call types.ToolCall, content string) {
	output, err := json.Marshal(content)
	if err != nil {
		output = json.RawMessage(`""`)
	}
	// The model can emit malformed argument bytes; storing them raw would
	// make the entry itself unmarshalable, so wrap them in a JSON string.
	input := call.Arguments
	if !json.Valid(input) {
		input, _ = json.Marshal(string(call.Arguments))
	}
	entry := &types.AuditEntry{
		UserID:     userID,
		Step:       "execute_tool",
		Tool:       call.Name,
		Input:      input,
		Output:     output,
		Confidence: "100%",
	}
	if err := e.ledger.Record(ctx, entry); err != nil {
		e.logger.Warn("ledger record failed",
			zap.String("tool", call.Name),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
