package models

import "time"

// Human feedback verdicts
const (
	FeedbackGood = "good"
	FeedbackBad  = "bad"
)

// Comparison outcomes
const (
	ComparisonBetter = "better"
	ComparisonWorse  = "worse"
	ComparisonSame   = "same"
)

// RunResult records the execution of one PromptVersion against one Input.
// A result is created once per (input, version) execution; the feedback and
// comparison fields are the only fields mutated after creation, at most
// once each, by the review and compare stages. Failed marks inputs whose
// completion call did not produce an output; they stay visible so a partial
// batch is a recognized state rather than a silent gap.
type RunResult struct {
	ID               string    `json:"id"`
	InputID          string    `json:"input_id"`
	PromptVersionID  string    `json:"prompt_version_id"`
	Output           string    `json:"output"`
	LatencyMs        int64     `json:"latency_ms"`
	TokensUsed       int       `json:"tokens_used"`
	HumanFeedback    string    `json:"human_feedback,omitempty"`
	FeedbackReason   string    `json:"feedback_reason,omitempty"`
	HumanCorrection  string    `json:"human_correction,omitempty"`
	ComparisonResult string    `json:"comparison_result,omitempty"`
	Failed           bool      `json:"failed,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewRunResult(id, inputID, versionID, output string, latencyMs int64, tokensUsed int) *RunResult {
	return &RunResult{
		ID:              id,
		InputID:         inputID,
		PromptVersionID: versionID,
		Output:          output,
		LatencyMs:       latencyMs,
		TokensUsed:      tokensUsed,
		CreatedAt:       time.Now().UTC(),
	}
}

func NewFailedRunResult(id, inputID, versionID string, latencyMs int64) *RunResult {
	r := NewRunResult(id, inputID, versionID, "", latencyMs, 0)
	r.Failed = true
	return r
}

// Judged reports whether a human verdict has been recorded.
func (r *RunResult) Judged() bool {
	return r.HumanFeedback == FeedbackGood || r.HumanFeedback == FeedbackBad
}

func ValidFeedback(verdict string) bool {
	return verdict == FeedbackGood || verdict == FeedbackBad
}

func ValidComparison(outcome string) bool {
	return outcome == ComparisonBetter || outcome == ComparisonWorse || outcome == ComparisonSame
}
