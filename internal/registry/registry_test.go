package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name   string
	schema Schema
	exec   func(ctx context.Context, args []byte) (string, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool" }
func (f *fakeTool) Schema() Schema      { return f.schema }
func (f *fakeTool) Execute(ctx context.Context, args []byte) (string, error) {
	if f.exec != nil {
		return f.exec(ctx, args)
	}
	return `{"ok":true}`, nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{name: "a"}))

	err := r.Register(&fakeTool{name: "a"})
	assert.ErrorIs(t, err, ErrToolExists)
}

func TestResolveUnknown(t *testing.T) {
	r := New()
	_, err := r.Resolve("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestNamesPreserveRegistrationOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.Register(&fakeTool{name: name}))
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, r.Names())
}

func TestValidateReportsSchemaError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{
		name: "calc",
		schema: Schema{
			{Name: "price", Type: TypeNumber, Required: true},
			{Name: "label", Type: TypeString},
		},
	}))

	err := r.Validate("calc", json.RawMessage(`{"label": 42}`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "calc", schemaErr.Tool)
	assert.Len(t, schemaErr.Problems, 2)
}

func TestExecuteWrapsToolFailure(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{
		name: "boom",
		exec: func(context.Context, []byte) (string, error) {
			return "", errors.New("backend down")
		},
	}))

	_, err := r.Execute(context.Background(), "boom", nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "boom", toolErr.Tool)
	assert.Contains(t, toolErr.Error(), "backend down")
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{
		name: "panics",
		exec: func(context.Context, []byte) (string, error) {
			panic("unexpected")
		},
	}))

	_, err := r.Execute(context.Background(), "panics", nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Error(), "panic")
}

func TestAsLLMTools(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{
		name:   "calc",
		schema: Schema{{Name: "price", Type: TypeNumber, Required: true}},
	}))

	llmTools := r.AsLLMTools()
	require.Len(t, llmTools, 1)
	assert.Equal(t, "function", llmTools[0].Type)
	assert.Equal(t, "calc", llmTools[0].Function.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(llmTools[0].Function.Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
}
