package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/config"
)

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewAnthropicClient creates a client for the "anthropic" provider.
func NewAnthropicClient(cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *AnthropicClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	requestID := uuid.New().String()
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: completionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
			return "", apiError(apiErr.StatusCode, err.Error())
		}
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic completion: empty response")
	}

	var result strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(text.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("anthropic completion: no text content in response")
	}

	c.logger.Debug("completion finished",
		zap.String("request_id", requestID),
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)))

	return strings.TrimSpace(result.String()), nil
}
