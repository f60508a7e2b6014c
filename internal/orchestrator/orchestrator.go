package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/types"
	"github.com/user/finagent/pkg/llm"
)

// Prompter assembles the provider messages for one reasoning step.
// *PromptBuilder is the production implementation.
type Prompter interface {
	Build(systemPrompt string, history []types.Message) []llm.Message
}

// Node is the reasoning step of a turn. It folds user memory into the
// system prompt, calls the model with the tool catalog, and records the
// decision in memory and the audit ledger.
type Node struct {
	provider llm.Provider
	memory   types.MemoryStore
	ledger   types.Ledger
	prompt   Prompter
	tools    []llm.Tool
	model    string
	logger   *zap.Logger
}

func NewNode(
	provider llm.Provider,
	memory types.MemoryStore,
	ledger types.Ledger,
	prompt Prompter,
	tools []llm.Tool,
	model string,
	logger *zap.Logger,
) *Node {
	return &Node{
		provider: provider,
		memory:   memory,
		ledger:   ledger,
		prompt:   prompt,
		tools:    tools,
		model:    model,
		logger:   logger,
	}
}

// Decision is the outcome of one orchestration step.
type Decision struct {
	Message types.Message
	Report  Report
}

// Orchestrate runs one reasoning step over the thread history. The returned
// message is either a final reply or an assistant message carrying tool-call
// requests for the execution node.
func (n *Node) Orchestrate(ctx context.Context, userID string, state *types.ThreadState) (*Decision, error) {
	mem, err := n.memory.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}

	system := SystemPrompt(userID, mem, time.Now())
	messages := n.prompt.Build(system, state.Messages)

	resp, err := n.provider.Complete(ctx, messages, n.tools)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	report, ok := ParseReport(resp.Content)
	if !ok && len(resp.ToolCalls) == 0 {
		n.logger.Warn("reply missing self-assessment header", zap.String("user_id", userID))
	}

	msg := types.Message{
		Role:    types.RoleAssistant,
		Content: resp.Content,
	}
	for _, tc := range resp.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	n.remember(ctx, userID, msg)
	n.audit(ctx, userID, state, msg, report)

	n.logger.Debug("orchestration step",
		zap.String("user_id", userID),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int("confidence", report.Confidence),
	)
	return &Decision{Message: msg, Report: report}, nil
}

// remember appends an action summary to the user's long-term memory.
// Best effort: a memory write failure is logged, never fatal to the turn.
func (n *Node) remember(ctx context.Context, userID string, msg types.Message) {
	summary := summarize(msg)
	if err := n.memory.AppendAction(ctx, userID, summary); err != nil {
		n.logger.Warn("memory append failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func summarize(msg types.Message) string {
	if len(msg.ToolCalls) > 0 {
		names := make([]string, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			names = append(names, tc.Name)
		}
		return "Requested tools: " + strings.Join(names, ", ")
	}
	text := StripHeader(msg.Content)
	if len(text) > 120 {
		text = text[:120] + "..."
	}
	return "Replied: " + text
}

// audit records the orchestration step. The model name fills the tool column
// so reasoning steps and tool executions share one ledger.
func (n *Node) audit(ctx context.Context, userID string, state *types.ThreadState, msg types.Message, report Report) {
	input := json.RawMessage(`""`)
	if last := lastUserMessage(state.Messages); last != "" {
		if data, err := json.Marshal(last); err == nil {
			input = data
		}
	}
	output, err := json.Marshal(msg)
	if err != nil {
		output = json.RawMessage(`""`)
	}

	entry := &types.AuditEntry{
		UserID:     userID,
		Step:       "orchestrate",
		Tool:       n.model,
		Input:      input,
		Output:     output,
		Confidence: fmt.Sprintf("%d%%", report.Confidence),
	}
	if err := n.ledger.Record(ctx, entry); err != nil {
		n.logger.Warn("ledger record failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func lastUserMessage(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
