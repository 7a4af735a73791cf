package refine

import (
	"fmt"
	"strings"

	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
)

// FeedbackItem is one judged run result paired with its input content.
type FeedbackItem struct {
	InputContent string
	Output       string
	IsGood       bool
	Reason       string
	Correction   string
}

// FeedbackItemFromResult builds a FeedbackItem from a judged run result.
// Returns ok=false when the result carries no verdict.
func FeedbackItemFromResult(result *models.RunResult, inputContent string) (FeedbackItem, bool) {
	if !result.Judged() {
		return FeedbackItem{}, false
	}
	return FeedbackItem{
		InputContent: inputContent,
		Output:       result.Output,
		IsGood:       result.HumanFeedback == models.FeedbackGood,
		Reason:       result.FeedbackReason,
		Correction:   result.HumanCorrection,
	}, true
}

// AggregateFeedback renders a batch of judged results into the text corpus
// consumed by the reflection step. The output is deterministic: entries
// appear within their section in the order the items were given, never
// reordered by verdict. Items without a verdict must already be filtered
// out by the caller via FeedbackItemFromResult.
//
// The exact layout is a stable contract. Good and bad sections render only
// when non-empty, joined by a horizontal rule; each bad entry appends the
// reason and correction lines only when present.
func AggregateFeedback(items []FeedbackItem) (string, error) {
	if len(items) == 0 {
		return "", domain.ErrEmptyFeedback
	}

	var good, bad []string
	for _, item := range items {
		entry := fmt.Sprintf("Input: \"%s\"\nOutput: \"%s\"", item.InputContent, item.Output)
		if item.IsGood {
			good = append(good, entry)
			continue
		}
		if item.Reason != "" {
			entry += fmt.Sprintf("\nWhy wrong: \"%s\"", item.Reason)
		}
		if item.Correction != "" {
			entry += fmt.Sprintf("\nShould be: \"%s\"", item.Correction)
		}
		bad = append(bad, entry)
	}

	var sections []string
	if len(good) > 0 {
		sections = append(sections, "GOOD OUTPUTS (keep doing this):\n\n"+strings.Join(good, "\n\n"))
	}
	if len(bad) > 0 {
		sections = append(sections, "BAD OUTPUTS (fix these):\n\n"+strings.Join(bad, "\n\n"))
	}

	return strings.Join(sections, "\n\n---\n\n"), nil
}

// FeedbackSummary counts verdicts and collects the stated reasons for
// bad outputs, for display before a mutation is requested.
type FeedbackSummary struct {
	Good   int      `json:"good"`
	Bad    int      `json:"bad"`
	Issues []string `json:"issues"`
}

func SummarizeFeedback(items []FeedbackItem) FeedbackSummary {
	var s FeedbackSummary
	for _, item := range items {
		if item.IsGood {
			s.Good++
			continue
		}
		s.Bad++
		if item.Reason != "" {
			s.Issues = append(s.Issues, item.Reason)
		}
	}
	return s
}
