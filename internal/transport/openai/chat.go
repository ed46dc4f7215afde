package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const chatSystemPrompt = "You are a scam-detection assistant. " +
	"Answer with strict JSON only, no prose and no markdown fences."

// ChatBackend is a model backend using the OpenAI-compatible chat API. It
// serves as the remote fallback behind the local pool.
type ChatBackend struct {
	name   string
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ChatConfig holds the settings for one chat backend.
type ChatConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewChatBackend creates an OpenAI-compatible chat backend.
func NewChatBackend(cfg *ChatConfig) *ChatBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatBackend{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Name returns the configured backend name.
func (b *ChatBackend) Name() string { return b.name }

// Generate sends the prompt as a single-turn chat completion.
func (b *ChatBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", chatAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (b *ChatBackend) HealthCheck(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func chatAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	return fmt.Errorf("chat request failed: %w", err)
}
