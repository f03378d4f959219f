// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"

	"exam-parser/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyResponse is returned when the endpoint answers without choices.
var ErrEmptyResponse = errors.New("no response choices returned from LLM")

// Client implements domain.Completer.
type Client struct {
	client *openai.Client
	model  string
	logger domain.Logger
}

// NewClient creates a client for the endpoint at baseURL. An empty baseURL uses
// the SDK default.
func NewClient(apiKey, baseURL, model string, logger domain.Logger) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("LLM model name is not configured")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(apiKey))
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	// Qwen-style servers reason before answering unless told otherwise.
	opts = append(opts, option.WithJSONSet("chat_template_kwargs", map[string]any{"enable_thinking": false}))

	client := openai.NewClient(opts...)
	return &Client{client: &client, model: model, logger: logger}, nil
}

// Complete sends one system and one user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	if usage := response.Usage; usage.TotalTokens > 0 {
		c.logger.Debug("Chat completion usage",
			"request_id", domain.RequestIDFrom(ctx),
			"model", c.model,
			"prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens)
	}
	return response.Choices[0].Message.Content, nil
}
