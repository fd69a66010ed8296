package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func embeddingServer(t *testing.T, dim int, calls *int32, status func(call int32) int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if status != nil {
			if code := status(n); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
				return
			}
		}

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Len(t, body.Input, 1)

		vec := make([]float32, dim)
		vec[0] = 1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": body.Model,
			"data":  []map[string]interface{}{{"index": 0, "embedding": vec}},
		})
	}))
}

func TestAPIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful embedding", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, OpenAIDimension, &calls, nil)
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", "", server.URL, nil)
		require.NoError(t, err)

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, OpenAIDimension)
		assert.Equal(t, ProviderOpenAI, emb.Provider)
		assert.Equal(t, DefaultOpenAIModel, emb.Model)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries transient errors", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, JinaDimension, &calls, func(n int32) int {
			if n < 3 {
				return http.StatusServiceUnavailable
			}
			return http.StatusOK
		})
		defer server.Close()

		p, err := NewJinaProvider("test-key", "", server.URL, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, JinaDimension)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, OpenAIDimension, &calls, func(int32) int { return http.StatusBadRequest })
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", "", server.URL, nil)
		require.NoError(t, err)
		p.retry = fastRetry()

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, 8, &calls, nil)
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", "", server.URL, nil)
		require.NoError(t, err)

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		p.WithDimension(8)
		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		assert.NoError(t, err)
	})

	t.Run("cache avoids second call", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, OpenAIDimension, &calls, nil)
		defer server.Close()

		p, err := NewOpenAIProvider("test-key", "", server.URL, NewCache(10))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same query"})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewOpenAIProvider("", "", "", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient error", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(context.Background(), fastRetry(), func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount)
	})

	t.Run("returns last error after max retries", func(t *testing.T) {
		callCount := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (bool, error) {
			callCount++
			return false, fmt.Errorf("error %d", callCount)
		})
		assert.Error(t, err)
		assert.Equal(t, 3, callCount)
		assert.Contains(t, err.Error(), "error 3")
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			callCount++
			cancel()
			return 0, fmt.Errorf("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, callCount)
	})

	t.Run("stops on permanent api error", func(t *testing.T) {
		callCount := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			callCount++
			return 0, &APIError{StatusCode: http.StatusUnauthorized}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, callCount)
	})
}
