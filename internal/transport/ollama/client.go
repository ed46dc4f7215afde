// Package ollama is a model backend speaking the Ollama REST API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// systemPrompt steers every chat toward the structured verdict format. The
// per-request instructions ride in the user message.
const systemPrompt = "You are a scam-detection assistant. " +
	"Answer with strict JSON only, no prose and no markdown fences."

// Backend is a single Ollama endpoint serving one model.
type Backend struct {
	name       string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the settings for one Ollama backend.
type Config struct {
	Name    string // backend name for logs and metrics
	BaseURL string // e.g. http://localhost:11434
	Model   string // e.g. qwen2.5:7b
	Logger  *zap.Logger
}

// New creates an Ollama chat backend.
func New(cfg *Config) *Backend {
	return &Backend{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{},
		logger:     cfg.Logger,
	}
}

// Name returns the configured backend name.
func (b *Backend) Name() string { return b.name }

// Generate sends the prompt via /api/chat and returns the completion text.
func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": b.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
		},
	}

	body, err := b.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w", err)
	}
	if resp.Message.Content == "" {
		return "", fmt.Errorf("ollama chat: empty completion")
	}

	return resp.Message.Content, nil
}

// HealthCheck verifies the endpoint responds and the model is known.
func (b *Backend) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload := map[string]any{"model": b.model}
	if _, err := b.post(ctx, "/api/show", payload); err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	return nil
}

func (b *Backend) post(ctx context.Context, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(snippet))
	}

	return io.ReadAll(resp.Body)
}
