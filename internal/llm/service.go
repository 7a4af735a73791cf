package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/ports"
)

const (
	// CompletionTimeout is the maximum time to wait for a completion
	CompletionTimeout = 2 * time.Minute

	DefaultMaxTokens = 2048
)

// Service implements ports.CompletionService using the OpenAI-compatible
// client. Every failure is classified as a domain.CompletionError so the
// batch layer can decide which calls to retry; the service itself never
// retries.
type Service struct {
	client *Client
}

// NewService creates a new completion service
func NewService(client *Client) *Service {
	return &Service{client: client}
}

func (s *Service) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var messages []ChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	start := time.Now()
	response, err := s.client.Chat(ctx, messages, req.Temperature, maxTokens)
	elapsed := time.Since(start)
	latency := elapsed.Milliseconds()
	metrics.CompletionRequestDuration.WithLabelValues(s.client.model).Observe(elapsed.Seconds())

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(s.client.model, "error").Inc()
		return nil, classifyError(err)
	}

	if len(response.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(s.client.model, "error").Inc()
		return nil, domain.NewCompletionError(domain.CompletionErrorNetwork, fmt.Errorf("no choices in response"))
	}
	metrics.CompletionRequestsTotal.WithLabelValues(s.client.model, "success").Inc()

	return &ports.CompletionResult{
		Text:       response.Choices[0].Message.Content,
		TokensUsed: response.Usage.TotalTokens,
		LatencyMs:  latency,
	}, nil
}

// classifyError maps transport and API failures onto completion error
// kinds: 401/403 are auth, 429 is rate limit, everything else (5xx,
// timeouts, connection failures) is network.
func classifyError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.NewCompletionError(domain.CompletionErrorAuth, err)
		case http.StatusTooManyRequests:
			return domain.NewCompletionError(domain.CompletionErrorRateLimit, err)
		default:
			return domain.NewCompletionError(domain.CompletionErrorNetwork, err)
		}
	}
	return domain.NewCompletionError(domain.CompletionErrorNetwork, err)
}
