package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/ports"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(NewClient(server.URL, "test-key", "test-model")), server
}

func TestService_Complete(t *testing.T) {
	var gotReq ChatCompletionRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "hello back"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		json.NewEncoder(w).Encode(resp)
	})

	result, err := svc.Complete(context.Background(), ports.CompletionRequest{
		SystemPrompt: "be terse",
		Prompt:       "hello",
		Temperature:  0.3,
		MaxTokens:    256,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", result.Text)
	assert.Equal(t, 15, result.TokensUsed)
	assert.GreaterOrEqual(t, result.LatencyMs, int64(0))

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "be terse", gotReq.Messages[0].Content)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, 256, gotReq.MaxTokens)
}

func TestService_Complete_DefaultMaxTokens(t *testing.T) {
	var gotReq ChatCompletionRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	})

	_, err := svc.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi", Temperature: 0.7})
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxTokens, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 1, "no system message when none configured")
}

func TestService_Complete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected domain.CompletionErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.CompletionErrorAuth},
		{"forbidden", http.StatusForbidden, domain.CompletionErrorAuth},
		{"rate limited", http.StatusTooManyRequests, domain.CompletionErrorRateLimit},
		{"server error", http.StatusInternalServerError, domain.CompletionErrorNetwork},
		{"bad gateway", http.StatusBadGateway, domain.CompletionErrorNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "failure", tt.status)
			})

			_, err := svc.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})
			require.Error(t, err)

			var compErr *domain.CompletionError
			require.True(t, errors.As(err, &compErr))
			assert.Equal(t, tt.expected, compErr.Kind)
		})
	}
}

func TestService_Complete_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc := NewService(NewClient(url, "", "test-model"))

	_, err := svc.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	var compErr *domain.CompletionError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, domain.CompletionErrorNetwork, compErr.Kind)
	assert.True(t, compErr.Retryable())
}

func TestService_Complete_CountsRequestsPerOutcome(t *testing.T) {
	success := metrics.CompletionRequestsTotal.WithLabelValues("test-model", "success")
	failure := metrics.CompletionRequestsTotal.WithLabelValues("test-model", "error")
	successBefore := testutil.ToFloat64(success)
	failureBefore := testutil.ToFloat64(failure)

	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	})
	_, err := svc.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)

	failing, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "failure", http.StatusInternalServerError)
	})
	_, err = failing.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(success))
	assert.Equal(t, failureBefore+1, testutil.ToFloat64(failure))
}

func TestService_Complete_EmptyChoices(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := svc.Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	var compErr *domain.CompletionError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, domain.CompletionErrorNetwork, compErr.Kind)
}
