// Package llm is the single gateway to the OpenAI-compatible chat API. All
// agent roles go through Invoke, which injects the role prompt and maps
// message roles to the wire format.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stoa-edu/stoa/internal/llm/prompts"
	"github.com/stoa-edu/stoa/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Options tune a single completion request.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Invoker is the surface the rest of the application depends on; tests
// substitute a scripted implementation.
type Invoker interface {
	Invoke(ctx context.Context, agent model.AgentType, lang string, level model.BloomLevel, messages []model.Message, opts Options) (string, error)
}

// GatewayError reports an upstream API failure with whatever status and body
// the provider returned.
type GatewayError struct {
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm gateway: upstream status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("llm gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client. baseURL may point at any OpenAI-compatible
// endpoint; empty means the default OpenAI URL.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Invoke runs one chat completion as the given agent. The agent's role prompt
// (selected by language and, for examiner/feedback, Bloom level) is prepended
// as the system message. History roles map onto the wire format: user stays
// user, everything else becomes assistant.
func (c *Client) Invoke(ctx context.Context, agent model.AgentType, lang string, level model.BloomLevel, messages []model.Message, opts Options) (string, error) {
	system := prompts.RolePrompt(agent, lang, level)
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleAssistant
		if m.Role == model.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return c.complete(ctx, chatMsgs, opts)
}

// Complete runs one chat completion with a caller-provided system prompt,
// bypassing the role catalog. The evaluator pipeline uses this because its
// prompts are built per evaluator lens.
func (c *Client) Complete(ctx context.Context, system string, messages []model.Message, opts Options) (string, error) {
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleAssistant
		if m.Role == model.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return c.complete(ctx, chatMsgs, opts)
}

func (c *Client) complete(ctx context.Context, chatMsgs []openai.ChatCompletionMessage, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMsgs,
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens != 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &GatewayError{Err: errors.New("no choices in response")}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "raw", raw)
	return raw, nil
}

// Ping verifies the upstream endpoint is reachable with a minimal request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "ping"},
	}, Options{MaxTokens: 1})
	return err
}

func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &GatewayError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &GatewayError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &GatewayError{Err: err}
}
