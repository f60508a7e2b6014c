package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/finagent/internal/types"
	"github.com/user/finagent/pkg/llm"
)

// PromptBuilder assembles token-budgeted prompts for the orchestrator. When
// a thread outgrows the input budget the oldest messages are dropped first;
// the system prompt and the newest exchange always survive.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a builder for the given model's tokenizer.
// maxTokens is the context window; reserve is held back for the reply.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{tokenizer: enc, maxTokens: maxTokens, reserve: reserve}, nil
}

func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Build converts thread history into provider messages under the input
// budget. Messages are dropped oldest-first when over budget.
func (b *PromptBuilder) Build(systemPrompt string, history []types.Message) []llm.Message {
	budget := b.maxTokens - b.reserve - b.countTokens(systemPrompt)

	var kept []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := toLLMMessage(history[i])
		cost := b.countTokens(msg.Content)
		for _, tc := range msg.Tools {
			cost += b.countTokens(tc.Function.Name)
			cost += b.countTokens(string(tc.Function.Arguments))
		}
		if used+cost > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, msg)
		used += cost
	}

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, kept[i])
	}
	return messages
}

func toLLMMessage(msg types.Message) llm.Message {
	switch msg.Role {
	case types.RoleToolResult:
		return llm.Message{
			Role:    "tool",
			Content: msg.Content,
			Tools:   []llm.ToolCall{{ID: msg.ToolCallID}},
		}
	case types.RoleAssistant:
		out := llm.Message{Role: "assistant", Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			out.Tools = append(out.Tools, llm.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return out
	default:
		return llm.Message{Role: msg.Role, Content: msg.Content}
	}
}

// SystemPrompt renders the orchestrator's standing instructions together
// with the user's memory context.
func SystemPrompt(userID string, mem types.UserMemory, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("You are an autonomous financial operations assistant for small exporters and e-commerce sellers. ")
	sb.WriteString("You handle GST compliance, unit economics, tariff exposure, dead stock risk, financial reports and proactive alerts.\n\n")
	sb.WriteString("Use the available tools to gather data before answering. ")
	sb.WriteString("Alerts and GST filings require human approval before they take effect; request them anyway when warranted and the review happens downstream.\n\n")
	sb.WriteString("Begin EVERY reply with a self-assessment header in exactly this format:\n")
	sb.WriteString("[CONFIDENCE: <int>% | COMPLETENESS: <int>% | ISSUES: <comma separated list or \"None\">]\n\n")
	fmt.Fprintf(&sb, "Current time: %s. User: %s.\n\n", now.Format(time.RFC3339), userID)
	sb.WriteString(MemoryContext(mem))
	return sb.String()
}

// MemoryContext renders the user's recent history for the system prompt.
// A user with no recorded actions or risks gets an explicit marker so the
// model does not invent history.
func MemoryContext(mem types.UserMemory) string {
	recent := mem.RecentActions(3)
	if len(recent) == 0 && len(mem.KnownRisks) == 0 {
		return "User context: no prior history."
	}

	var sb strings.Builder
	sb.WriteString("User context:\n")
	if len(recent) > 0 {
		sb.WriteString("Recent actions: " + strings.Join(recent, "; ") + "\n")
	}
	if len(mem.KnownRisks) > 0 {
		sb.WriteString("Known risks: " + strings.Join(mem.KnownRisks, "; ") + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
