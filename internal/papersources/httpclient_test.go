package papersources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-graph-service/internal/domain"
)

func TestNewHTTPClient(t *testing.T) {
	t.Run("creates client with custom config", func(t *testing.T) {
		cfg := HTTPClientConfig{
			Source:     "arxiv",
			Timeout:    15 * time.Second,
			RateLimit:  5,
			BurstSize:  3,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
			UserAgent:  "TestAgent/1.0",
		}

		client := NewHTTPClient(cfg)

		require.NotNil(t, client)
		require.NotNil(t, client.rateLimiter)
		assert.Equal(t, 15*time.Second, client.client.Timeout)
		assert.Equal(t, "TestAgent/1.0", client.config.UserAgent)
		assert.Equal(t, 2, client.config.MaxRetries)
		assert.False(t, client.rateLimiter.Unlimited())
	})

	t.Run("applies default values", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{})

		assert.Equal(t, 30*time.Second, client.client.Timeout)
		assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
		assert.Equal(t, 0, client.config.MaxRetries)
		assert.Equal(t, time.Second, client.config.RetryDelay)
		assert.True(t, client.rateLimiter.Unlimited())
	})

	t.Run("clamps negative retries to zero", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{MaxRetries: -1})
		assert.Equal(t, 0, client.config.MaxRetries)
	})
}

func TestHTTPClient_Do(t *testing.T) {
	t.Run("sets default User-Agent", func(t *testing.T) {
		var received string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Get("User-Agent")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{UserAgent: "TestAgent/2.0"})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "TestAgent/2.0", received)
	})

	t.Run("preserves existing User-Agent header", func(t *testing.T) {
		var received string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "Custom/1.0")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Custom/1.0", received)
	})

	t.Run("returns 4xx responses without retrying", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestHTTPClient_Retries(t *testing.T) {
	t.Run("zero retries makes a single attempt on 5xx", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("down"))
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "down", string(body))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries on 500 and succeeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("persistent 429 becomes a rate limit error", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{Source: "arxiv", MaxRetries: 1, RetryDelay: time.Millisecond})
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		assert.Nil(t, resp)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrRateLimited))

		var rlErr *domain.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, "arxiv", rlErr.Source)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("honours Retry-After seconds", func(t *testing.T) {
		client := NewHTTPClient(HTTPClientConfig{RetryDelay: time.Millisecond})
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Set("Retry-After", "2")
		assert.Equal(t, 2*time.Second, client.retryDelay(resp))

		resp.Header.Set("Retry-After", "garbage")
		assert.Equal(t, time.Millisecond, client.retryDelay(resp))
	})

	t.Run("does not retry after context cancellation", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			<-r.Context().Done()
		}))
		defer server.Close()

		client := NewHTTPClient(HTTPClientConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), calls.Load())
	})
}
