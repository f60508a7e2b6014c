// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/finagent/pkg/llm"
)

var (
	// ErrToolExists is returned when registering a duplicate tool name.
	ErrToolExists = errors.New("tool already registered")
	// ErrToolNotFound is returned when a name resolves to no descriptor.
	ErrToolNotFound = errors.New("tool not found")
)

// SchemaError reports arguments that fail schema validation. It is converted
// into a tool_result message by the execution node, not surfaced as a turn
// failure.
type SchemaError struct {
	Tool     string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ToolError reports a failure inside a tool's execution function. Tools never
// propagate raw panics or errors past the registry boundary.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Tool defines the interface for an executable tool.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args []byte) (string, error)
}

// Registry holds registered tools and provides lookup, validation, and
// guarded execution. It is immutable after startup and safe to share across
// concurrent turns.
type Registry struct {
	tools map[string]Tool
	order []string
}

// New creates an empty tool registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, failing if the name is already taken.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Resolve returns the descriptor for a name.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Validate checks arguments against the named tool's schema without invoking
// it. Returns a *SchemaError on mismatch.
func (r *Registry) Validate(name string, args []byte) error {
	t, err := r.Resolve(name)
	if err != nil {
		return err
	}
	return t.Schema().Validate(name, args)
}

// Execute runs the named tool. Any failure inside the tool, including a
// panic, is reported as a *ToolError carrying the tool name and cause.
func (r *Registry) Execute(ctx context.Context, name string, args []byte) (result string, err error) {
	t, resolveErr := r.Resolve(name)
	if resolveErr != nil {
		return "", resolveErr
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolError{Tool: name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, execErr := t.Execute(ctx, args)
	if execErr != nil {
		return "", &ToolError{Tool: name, Err: execErr}
	}
	return result, nil
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// AsLLMTools converts registered tools to the LLM provider format.
func (r *Registry) AsLLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema().JSON(),
			},
		})
	}
	return out
}
