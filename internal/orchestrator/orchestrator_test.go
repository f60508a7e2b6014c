package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/finagent/internal/types"
	"github.com/user/finagent/pkg/llm"
)

// mockProvider returns pre-configured responses in order.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	callCount int
}

func (m *mockProvider) Complete(_ context.Context, _ []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.callCount
	m.callCount++
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return &llm.Response{Content: "[CONFIDENCE: 85% | COMPLETENESS: 85% | ISSUES: None] fallback"}, nil
}

type memMemory struct {
	mu      sync.Mutex
	records map[string]types.UserMemory
}

func newMemMemory() *memMemory {
	return &memMemory{records: make(map[string]types.UserMemory)}
}

func (m *memMemory) Load(_ context.Context, userID string) (types.UserMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem, ok := m.records[userID]; ok {
		return mem, nil
	}
	mem := types.DefaultMemory()
	m.records[userID] = mem
	return mem, nil
}

func (m *memMemory) AppendAction(_ context.Context, userID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.records[userID]
	if !ok {
		mem = types.DefaultMemory()
	}
	mem.LastActions = append(mem.LastActions, summary)
	m.records[userID] = mem
	return nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []*types.AuditEntry
}

func (l *memLedger) Record(_ context.Context, entry *types.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// plainPrompter avoids the tokenizer; history passes through untrimmed.
type plainPrompter struct{}

func (plainPrompter) Build(systemPrompt string, history []types.Message) []llm.Message {
	out := []llm.Message{{Role: "system", Content: systemPrompt}}
	for _, msg := range history {
		out = append(out, toLLMMessage(msg))
	}
	return out
}

func newTestNode(provider llm.Provider, mem types.MemoryStore, led types.Ledger) *Node {
	return NewNode(provider, mem, led, plainPrompter{}, nil, "gpt-4o", zap.NewNop())
}

func TestOrchestrateFinalReply(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		{Content: "[CONFIDENCE: 92% | COMPLETENESS: 95% | ISSUES: None]\nYour margin is healthy."},
	}}
	mem := newMemMemory()
	led := &memLedger{}
	node := newTestNode(provider, mem, led)

	state := &types.ThreadState{Key: types.NewThreadKey("user1", "main")}
	state.Append(types.Message{Role: types.RoleUser, Content: "How is my margin?"})

	decision, err := node.Orchestrate(context.Background(), "user1", state)
	require.NoError(t, err)

	assert.Equal(t, types.RoleAssistant, decision.Message.Role)
	assert.Empty(t, decision.Message.ToolCalls)
	assert.Equal(t, 92, decision.Report.Confidence)

	stored, _ := mem.Load(context.Background(), "user1")
	require.Len(t, stored.LastActions, 1)
	assert.Contains(t, stored.LastActions[0], "Replied: Your margin is healthy.")

	require.Len(t, led.entries, 1)
	assert.Equal(t, "orchestrate", led.entries[0].Step)
	assert.Equal(t, "gpt-4o", led.entries[0].Tool)
	assert.Equal(t, "92%", led.entries[0].Confidence)
}

func TestOrchestrateToolCalls(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "unit_economics_calculator",
				Arguments: json.RawMessage(`{"price":500}`),
			},
		}}},
	}}
	mem := newMemMemory()
	node := newTestNode(provider, mem, &memLedger{})

	state := &types.ThreadState{Key: types.NewThreadKey("user1", "main")}
	state.Append(types.Message{Role: types.RoleUser, Content: "Run the numbers"})

	decision, err := node.Orchestrate(context.Background(), "user1", state)
	require.NoError(t, err)

	require.Len(t, decision.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", decision.Message.ToolCalls[0].ID)
	assert.Equal(t, "unit_economics_calculator", decision.Message.ToolCalls[0].Name)

	stored, _ := mem.Load(context.Background(), "user1")
	require.Len(t, stored.LastActions, 1)
	assert.Equal(t, "Requested tools: unit_economics_calculator", stored.LastActions[0])
}

func TestMemoryContext(t *testing.T) {
	assert.Equal(t, "User context: no prior history.", MemoryContext(types.DefaultMemory()))

	mem := types.UserMemory{
		LastActions: []string{"one", "two", "three", "four"},
		KnownRisks:  []string{"dead stock in SKU-9"},
	}
	context := MemoryContext(mem)
	assert.Contains(t, context, "two; three; four")
	assert.NotContains(t, context, "one;")
	assert.Contains(t, context, "dead stock in SKU-9")
}

func TestSystemPromptMandatesHeader(t *testing.T) {
	prompt := SystemPrompt("user1", types.DefaultMemory(), time.Now())

	assert.Contains(t, prompt, "[CONFIDENCE: <int>% | COMPLETENESS: <int>% | ISSUES:")
	assert.Contains(t, prompt, "user1")
	assert.Contains(t, prompt, "no prior history")
}
