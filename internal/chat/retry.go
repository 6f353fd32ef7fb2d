package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for local model servers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category,
// matched case-insensitively. String matching is unavoidable here:
// genkit and the provider plugins do not expose typed errors for
// transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "connection refused", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry calls the model with exponential backoff on
// transient failures. Each attempt passes through the rate limiter.
func (a *Agent) generateWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := a.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= a.retryConfig.MaxRetries; attempt++ {
		if a.rateLimiter != nil {
			if err := a.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, a.g, opts...)
		if err == nil {
			a.logger.Debug("generation succeeded",
				"attempts", attempt+1, "elapsed", time.Since(start))
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generating response: %w", err)
		}
		if attempt == a.retryConfig.MaxRetries {
			break
		}

		a.logger.Debug("retrying after transient error",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, a.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generating response after %d retries (elapsed %v): %w",
		a.retryConfig.MaxRetries, time.Since(start), lastErr)
}
