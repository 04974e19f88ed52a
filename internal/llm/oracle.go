package llm

import (
	"context"
	"fmt"
	"time"
)

// Completion is a raw reply from a topic oracle.
type Completion struct {
	// Text is the reply content exactly as returned by the model.
	Text string
	// Model is the model that produced the reply.
	Model string
	// InputTokens is the number of input tokens used.
	InputTokens int
	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// Oracle sends one system instruction plus one user text to a language model
// and returns its raw reply. The reply carries no format guarantee.
//
// Implementations must be safe for concurrent use; a single instance is built
// at startup and shared by every request.
type Oracle interface {
	// Complete performs a single chat completion.
	Complete(ctx context.Context, systemPrompt, text string) (*Completion, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// retry runs call until it succeeds, returns a non-transient error, or
// maxRetries retries have been spent. backoff returns the wait before the given attempt.
func retry(ctx context.Context, provider string, maxRetries int, backoff func(attempt int) time.Duration, call func() (*Completion, error)) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%s: context cancelled during retry wait: %w", provider, ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}

		// Only retry on transient errors (5xx, 429, network).
		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s: exhausted %d retries: %w", provider, maxRetries, lastErr)
}
