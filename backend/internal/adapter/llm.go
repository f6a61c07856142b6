package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"helix-navigator/backend/pkg/logger"
)

// ModelHint selects which configured model handles a completion
type ModelHint string

const (
	// ModelFast is for cheap, low-latency calls (classification, extraction, formatting)
	ModelFast ModelHint = "fast"
	// ModelDeep is for calls that benefit from a stronger model (result formatting)
	ModelDeep ModelHint = "deep"
)

// LLMAdapter handles communication with the completion service through an
// OpenAI-compatible gateway
type LLMAdapter struct {
	client    *openai.Client
	fastModel string
	deepModel string
	mu        sync.RWMutex // Protects model fields for concurrent access
	logger    *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(baseURL, apiKey, fastModel, deepModel string) *LLMAdapter {
	// Local gateways accept a dummy API key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	return &LLMAdapter{
		client:    openai.NewClientWithConfig(config),
		fastModel: fastModel,
		deepModel: deepModel,
		logger:    logger.Get(),
	}
}

// SetModels updates the configured model IDs
func (a *LLMAdapter) SetModels(fastModel, deepModel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fastModel != "" {
		a.fastModel = fastModel
	}
	if deepModel != "" {
		a.deepModel = deepModel
	}
}

// Model returns the model ID for a hint
func (a *LLMAdapter) Model(hint ModelHint) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if hint == ModelDeep {
		return a.deepModel
	}
	return a.fastModel
}

// Complete sends a single-prompt request and returns the generated text
func (a *LLMAdapter) Complete(ctx context.Context, prompt string, hint ModelHint) (string, error) {
	model := a.Model(hint)

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
	}

	// Retry with linear backoff; transient gateway failures are common
	var resp openai.ChatCompletionResponse
	var err error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying completion request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("Completion request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", model),
		)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to generate completion after %d attempts: %w", maxRetries, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	a.logger.Debug("Completion generated",
		zap.String("model", model),
		zap.Int("length", len(content)),
	)

	return content, nil
}
