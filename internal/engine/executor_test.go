package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/finagent/internal/registry"
	"github.com/user/finagent/internal/types"
)

type stubTool struct {
	name   string
	schema registry.Schema
	exec   func(ctx context.Context, args []byte) (string, error)
}

func (s *stubTool) Name() string            { return s.name }
func (s *stubTool) Description() string     { return "stub" }
func (s *stubTool) Schema() registry.Schema { return s.schema }
func (s *stubTool) Execute(ctx context.Context, args []byte) (string, error) {
	if s.exec != nil {
		return s.exec(ctx, args)
	}
	return `{"ok":true}`, nil
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

func (l *memLedger) byStep(step string) []*types.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.AuditEntry
	for _, entry := range l.entries {
		if entry.Step == step {
			out = append(out, entry)
		}
	}
	return out
}

func newTestExecutor(t *testing.T, tools ...registry.Tool) (*Executor, *memLedger) {
	t.Helper()
	reg := registry.New()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	led := &memLedger{}
	return NewExecutor(reg, led, time.Second, zap.NewNop()), led
}

func TestExecuteAllProducesOneResultPerCall(t *testing.T) {
	exec, led := newTestExecutor(t,
		&stubTool{name: "first"},
		&stubTool{name: "second"},
	)

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "first", Arguments: json.RawMessage(`{}`)},
		{ID: "call_2", Name: "second", Arguments: json.RawMessage(`{}`)},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "call_1", results[0].ToolCallID)
	assert.Equal(t, "call_2", results[1].ToolCallID)
	for _, msg := range results {
		assert.Equal(t, types.RoleToolResult, msg.Role)
		assert.JSONEq(t, `{"ok":true}`, msg.Content)
	}
	assert.Len(t, led.byStep("execute_tool"), 2)
}

func TestInvalidArgumentsBecomeResult(t *testing.T) {
	exec, _ := newTestExecutor(t, &stubTool{
		name:   "calc",
		schema: registry.Schema{{Name: "price", Type: registry.TypeNumber, Required: true}},
	})

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "calc", Arguments: json.RawMessage(`{"price":"lots"}`)},
	})

	require.Len(t, results, 1)
	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(results[0].Content), &payload))
	assert.Equal(t, "invalid_arguments", payload.Kind)
	assert.Contains(t, payload.Error, "price")
}

func TestMalformedArgumentsStillAuditable(t *testing.T) {
	exec, led := newTestExecutor(t, &stubTool{
		name:   "calc",
		schema: registry.Schema{{Name: "price", Type: registry.TypeNumber, Required: true}},
	})

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "calc", Arguments: json.RawMessage(`{"price": not json`)},
	})

	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "invalid_arguments")

	entries := led.byStep("execute_tool")
	require.Len(t, entries, 1)
	assert.True(t, json.Valid(entries[0].Input))
	_, err := json.Marshal(entries[0])
	assert.NoError(t, err)
}

func TestToolFailureBecomesResult(t *testing.T) {
	exec, led := newTestExecutor(t, &stubTool{
		name: "flaky",
		exec: func(context.Context, []byte) (string, error) {
			return "", errors.New("backend down")
		},
	})

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "flaky", Arguments: json.RawMessage(`{}`)},
	})

	require.Len(t, results, 1)
	var payload struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(results[0].Content), &payload))
	assert.Equal(t, "execution_error", payload.Kind)

	// The failure is still audited.
	assert.Len(t, led.byStep("execute_tool"), 1)
}

func TestUnknownToolBecomesResult(t *testing.T) {
	exec, _ := newTestExecutor(t)

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "nope", Arguments: json.RawMessage(`{}`)},
	})

	require.Len(t, results, 1)
	assert.Equal(t, types.RoleToolResult, results[0].Role)
	assert.Contains(t, results[0].Content, "tool not found")
}

func TestToolTimeout(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(&stubTool{
		name: "slow",
		exec: func(ctx context.Context, _ []byte) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}))
	exec := NewExecutor(reg, &memLedger{}, 10*time.Millisecond, zap.NewNop())

	results := exec.ExecuteAll(context.Background(), "user1", []types.ToolCall{
		{ID: "call_1", Name: "slow", Arguments: json.RawMessage(`{}`)},
	})

	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "context deadline exceeded")
}
