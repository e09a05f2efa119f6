// Package llm holds the external model client. Any OpenAI-compatible
// endpoint works, local runtimes included; the verification core treats
// the output as untrusted either way.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexipro/internal/config"

	"github.com/sashabaranov/go-openai"
)

// Temperature applies to every model call, generation and
// corroboration alike.
const Temperature float32 = 0.1

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg config.Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.ModelAPIKey)
	if cfg.ModelBaseURL != "" {
		clientConfig.BaseURL = cfg.ModelBaseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.ModelName,
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		// Deterministic-leaning output; the strict parser rejects any
		// drift from the required JSON shape regardless.
		Temperature: Temperature,
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
