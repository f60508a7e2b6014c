// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Message roles. A conversation is an append-only sequence of messages;
// tool_result messages answer exactly one earlier tool-call request.
const (
	RoleSystem     = "system"
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "tool_result"
)

// ToolCall is a structured request from the model naming a tool and its
// arguments. The ID ties the eventual tool_result back to this request.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one conversational turn. Immutable once appended.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Approval holds a batch of tool-call requests suspended for operator review.
// Gated lists the tool names that triggered the interrupt; Calls is the full
// batch from the response so every call keeps its result pairing on resume.
type Approval struct {
	TurnID    TurnID     `json:"turn_id"`
	UserID    string     `json:"user_id"`
	Calls     []ToolCall `json:"calls"`
	Gated     []string   `json:"gated"`
	CreatedAt time.Time  `json:"created_at"`
}

// ThreadState is the durable state of one conversation thread.
type ThreadState struct {
	Key       ThreadKey `json:"key"`
	Messages  []Message `json:"messages"`
	Pending   *Approval `json:"pending,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. Turn processing mutates the copy and commits it
// in a single checkpoint save, so a failed turn never leaves partial state.
func (s *ThreadState) Clone() *ThreadState {
	out := &ThreadState{
		Key:       s.Key,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Pending != nil {
		p := *s.Pending
		p.Calls = make([]ToolCall, len(s.Pending.Calls))
		copy(p.Calls, s.Pending.Calls)
		p.Gated = append([]string(nil), s.Pending.Gated...)
		out.Pending = &p
	}
	return out
}

// Append adds messages to the history, stamping At when unset.
func (s *ThreadState) Append(msgs ...Message) {
	now := time.Now()
	for _, m := range msgs {
		if m.At.IsZero() {
			m.At = now
		}
		s.Messages = append(s.Messages, m)
	}
	s.UpdatedAt = now
}

// UserMemory is the per-user long-term record shared across threads.
type UserMemory struct {
	LastActions []string          `json:"last_actions"`
	KnownRisks  []string          `json:"known_risks"`
	Preferences map[string]string `json:"preferences"`
}

// DefaultMemory returns the record created lazily on a user's first access.
func DefaultMemory() UserMemory {
	return UserMemory{
		LastActions: []string{},
		KnownRisks:  []string{},
		Preferences: map[string]string{
			"alert_frequency": "weekly",
			"format":          "WhatsApp+PDF",
		},
	}
}

// RecentActions returns the most recent n action summaries, oldest first.
func (m UserMemory) RecentActions(n int) []string {
	if len(m.LastActions) <= n {
		return m.LastActions
	}
	return m.LastActions[len(m.LastActions)-n:]
}

// AuditStatus classifies a ledger entry. Frozen is a policy marker for tool
// categories whose real-world effect is held pending manual release; it is
// independent of whether the execution itself succeeded.
type AuditStatus string

const (
	StatusSuccess AuditStatus = "success"
	StatusFrozen  AuditStatus = "frozen"
)

// AuditEntry is one immutable record of an orchestrator or tool step.
type AuditEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Step       string          `json:"step"`
	Tool       string          `json:"tool"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output"`
	Confidence string          `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     AuditStatus     `json:"status"`
}

// TurnResult is the outcome of one submitted turn: either a final assistant
// message, or the gated tool-call requests awaiting operator approval.
type TurnResult struct {
	Final           *Message   `json:"message,omitempty"`
	PendingApproval []ToolCall `json:"pending_approval,omitempty"`
}
