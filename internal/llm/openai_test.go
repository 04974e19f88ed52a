package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that OpenAIProvider implements Oracle.
var _ Oracle = (*OpenAIProvider)(nil)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newOpenAITestProvider(t *testing.T, serverURL string, maxRetries int) *OpenAIProvider {
	t.Helper()
	provider := NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-3.5-turbo",
		BaseURL: serverURL,
	}, 0.3, 10*time.Second, maxRetries)
	provider.retryDelay = time.Millisecond
	return provider
}

func writeChatCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-3.5-turbo-0125",
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": errType},
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Run("sends system and user messages and returns the reply", func(t *testing.T) {
		var received openai.ChatCompletionRequest
		var authHeader, path string

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			authHeader = r.Header.Get("Authorization")
			path = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeChatCompletion(w, `[{"topic":"graphs","importance":5,"subtopics":[]}]`)
		})

		provider := newOpenAITestProvider(t, server.URL, 0)
		completion, err := provider.Complete(context.Background(), "system prompt", "paper text")
		require.NoError(t, err)

		assert.Equal(t, "Bearer test-api-key", authHeader)
		assert.Equal(t, "/chat/completions", path)
		assert.Equal(t, "gpt-3.5-turbo", received.Model)
		assert.InDelta(t, 0.3, received.Temperature, 0.001)
		require.Len(t, received.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, received.Messages[0].Role)
		assert.Equal(t, "system prompt", received.Messages[0].Content)
		assert.Equal(t, openai.ChatMessageRoleUser, received.Messages[1].Role)
		assert.Equal(t, "paper text", received.Messages[1].Content)

		assert.Equal(t, `[{"topic":"graphs","importance":5,"subtopics":[]}]`, completion.Text)
		assert.Equal(t, "gpt-3.5-turbo-0125", completion.Model)
		assert.Equal(t, 120, completion.InputTokens)
		assert.Equal(t, 40, completion.OutputTokens)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int32
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeOpenAIError(w, http.StatusUnauthorized, "invalid_request_error", "bad key")
		})

		provider := newOpenAITestProvider(t, server.URL, 3)
		_, err := provider.Complete(context.Background(), "s", "t")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "bad key", apiErr.Message)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("transient errors are retried until success", func(t *testing.T) {
		var calls int32
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				writeOpenAIError(w, http.StatusServiceUnavailable, "server_error", "overloaded")
				return
			}
			writeChatCompletion(w, "[]")
		})

		provider := newOpenAITestProvider(t, server.URL, 3)
		completion, err := provider.Complete(context.Background(), "s", "t")
		require.NoError(t, err)
		assert.Equal(t, "[]", completion.Text)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("exhausted retries wrap the last error", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeOpenAIError(w, http.StatusTooManyRequests, "rate_limit_error", "slow down")
		})

		provider := newOpenAITestProvider(t, server.URL, 1)
		_, err := provider.Complete(context.Background(), "s", "t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exhausted 1 retries")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})

		provider := newOpenAITestProvider(t, server.URL, 0)
		_, err := provider.Complete(context.Background(), "s", "t")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty choices")
	})

	t.Run("cancelled context is not retried", func(t *testing.T) {
		var calls int32
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			writeChatCompletion(w, "[]")
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := newOpenAITestProvider(t, server.URL, 3)
		_, err := provider.Complete(ctx, "s", "t")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})
}

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, 0.3, 0, -1)

	assert.Equal(t, "openai", provider.Provider())
	assert.Equal(t, defaultOpenAIModel, provider.Model())
	assert.Equal(t, 0, provider.maxRetries)
}
