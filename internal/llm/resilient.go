package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/anilreddyavula/FormPilot/internal/resilience/circuitbreaker"
	"github.com/anilreddyavula/FormPilot/internal/resilience/retry"
)

// Request spacing between completions. Rate limit responses widen the
// spacing for the rest of the run; it never tightens back.
const (
	defaultRequestInterval = 600 * time.Millisecond
	fastRequestInterval    = 200 * time.Millisecond
	maxRequestInterval     = 10 * time.Second
)

// ResilientOptions tunes the resilience stack around a provider client.
type ResilientOptions struct {
	FastMode bool
	Timeout  time.Duration
}

// Resilient wraps a provider Client with request spacing, a circuit breaker,
// and retry with backoff. All calls happen on the single control goroutine,
// so the adaptive interval needs no locking.
type Resilient struct {
	inner    Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewResilient wraps inner with the resilience stack.
func NewResilient(inner Client, opts ResilientOptions, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := defaultRequestInterval
	retryCfg := retry.LLMConfig()
	if opts.FastMode {
		interval = fastRequestInterval
		retryCfg.MaxAttempts = 2
		retryCfg.InitialDelay = 500 * time.Millisecond
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Resilient{
		inner:    inner,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		breaker:  circuitbreaker.New(circuitbreaker.LLMAPIConfig(), logger),
		retryCfg: retryCfg,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Complete sends a prompt and returns the completion.
func (r *Resilient) Complete(ctx context.Context, prompt string) (string, error) {
	return r.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message through the full
// resilience stack.
func (r *Resilient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var result string

	err := retry.WithBackoff(ctx, r.retryCfg, r.logger, func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.inner.CompleteWithSystem(callCtx, systemPrompt, userPrompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				r.logger.Warn("llm circuit breaker open, request rejected",
					zap.String("state", r.breaker.State().String()))
				return fmt.Errorf("llm unavailable: circuit breaker open")
			}
			if isRateLimited(err) {
				r.widenInterval()
				// Surface 429s as retryable so the backoff loop keeps going.
			}
			return err
		}
		result = out.(string)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	return result, nil
}

func (r *Resilient) widenInterval() {
	next := r.interval * 2
	if next > maxRequestInterval {
		next = maxRequestInterval
	}
	if next == r.interval {
		return
	}
	r.interval = next
	r.limiter.SetLimit(rate.Every(next))
	r.logger.Warn("rate limited, widening request spacing",
		zap.Duration("interval", next))
}

func isRateLimited(err error) bool {
	var httpErr *retry.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}
