// Package llm provides the text-generation collaborator used for content
// shaping. A single Client interface fronts the supported providers; the
// resilient wrapper adds rate limiting, a circuit breaker, and retries.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/config"
	"github.com/anilreddyavula/FormPilot/internal/resilience/retry"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// New builds the provider client for cfg and wraps it with the resilience
// stack. The provider name must already have passed config validation.
func New(cfg *config.Config, logger *zap.Logger) (Client, error) {
	var (
		inner Client
		err   error
	)
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai", "azure":
		inner, err = NewOpenAIClient(cfg.LLM, logger)
	case "anthropic":
		inner, err = NewAnthropicClient(cfg.LLM, cfg.LLMTimeout(), logger)
	case "gemini":
		inner, err = NewGeminiClient(cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewResilient(inner, ResilientOptions{
		FastMode: cfg.Run.FastMode,
		Timeout:  cfg.LLMTimeout(),
	}, logger), nil
}

// apiError converts a provider status code into the shared HTTP error type so
// the retry policy can classify it.
func apiError(statusCode int, message string) error {
	return &retry.HTTPError{StatusCode: statusCode, Message: message}
}
