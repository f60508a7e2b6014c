// Package openai implements llm.Provider on top of the OpenAI-compatible
// chat completions API via the go-openai client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/user/finagent/pkg/llm"
)

const defaultTimeout = 60 * time.Second

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config *llm.Config
	api    *goopenai.Client
}

// New creates a new client with the given configuration.
func New(config *llm.Config) *Client {
	apiConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}
	return &Client{
		config: config,
		api:    goopenai.NewClientWithConfig(apiConfig),
	}
}

// Complete sends a chat completion request and returns the full response.
// A call exceeding the configured per-call timeout fails with llm.ErrTimeout;
// any other backend failure is reported as llm.ErrUnavailable.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	timeout := defaultTimeout
	if c.config.Timeout > 0 {
		timeout = time.Duration(c.config.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := goopenai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toAPIMessages(messages),
		Tools:    toAPITools(tools),
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if c.config.Temperature != 0 {
		req.Temperature = c.config.Temperature
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", llm.ErrUnavailable)
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Content:   choice.Message.Content,
		ToolCalls: fromAPIToolCalls(choice.Message.ToolCalls),
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// wrapError maps client failures onto the llm sentinel errors.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llm.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
}

func toAPIMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		m := goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		// The wire role for tool results is "tool" with the originating
		// call ID carried in ToolCallID.
		if msg.Role == goopenai.ChatMessageRoleTool && len(msg.Tools) > 0 {
			m.ToolCallID = msg.Tools[0].ID
		} else if len(msg.Tools) > 0 {
			m.ToolCalls = toAPIToolCalls(msg.Tools)
		}
		out[i] = m
	}
	return out
}

func toAPIToolCalls(calls []llm.ToolCall) []goopenai.ToolCall {
	out := make([]goopenai.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = goopenai.ToolCall{
			ID:   tc.ID,
			Type: goopenai.ToolTypeFunction,
			Function: goopenai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: string(tc.Function.Arguments),
			},
		}
	}
	return out
}

func toAPITools(tools []llm.Tool) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, len(tools))
	for i, t := range tools {
		fn := goopenai.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		}
		out[i] = goopenai.Tool{
			Type:     goopenai.ToolTypeFunction,
			Function: &fn,
		}
	}
	return out
}

func fromAPIToolCalls(calls []goopenai.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			},
		}
	}
	return out
}
