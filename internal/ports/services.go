package ports

import "context"

// CompletionRequest is a single prompt execution against the configured model
type CompletionRequest struct {
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// CompletionResult is the model reply plus usage accounting
type CompletionResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMs  int64  `json:"latency_ms"`
}

// CompletionService defines the interface for model completions.
// Implementations must classify failures as domain.CompletionError so
// callers can decide retry behavior; the service itself never retries.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
