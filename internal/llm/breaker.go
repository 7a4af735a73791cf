package llm

import (
	"context"
	"errors"
	"time"

	"github.com/faisalx96/saqal/internal/adapters/circuitbreaker"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/ports"
)

const (
	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

// BreakerService wraps a completion service with a circuit breaker so a
// hard-down provider sheds calls instead of burning a whole batch through
// timeouts. Only retryable provider errors trip the breaker; auth and
// request errors say nothing about provider health. An open circuit is
// reported as a network-kind error so the batch layer records a failed
// result rather than aborting.
type BreakerService struct {
	inner   ports.CompletionService
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerService(inner ports.CompletionService) *BreakerService {
	return &BreakerService{
		inner:   inner,
		breaker: circuitbreaker.New(breakerMaxFailures, breakerTimeout),
	}
}

func (s *BreakerService) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	var result *ports.CompletionResult

	err := s.breaker.Execute(func() error {
		var err error
		result, err = s.inner.Complete(ctx, req)
		return err
	}, func(err error) bool {
		var completionErr *domain.CompletionError
		return errors.As(err, &completionErr) && completionErr.Retryable()
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, domain.NewCompletionError(domain.CompletionErrorNetwork, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
