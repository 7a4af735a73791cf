package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
)

const reflectionTemplate = `You are an expert prompt engineer analyzing a prompt that needs improvement.

TASK DESCRIPTION:
%s

CURRENT PROMPT:
"""
%s
"""

HUMAN FEEDBACK ON RECENT OUTPUTS:

%s

INSTRUCTIONS:
1. Analyze the patterns in the bad outputs
2. Identify what the prompt is missing or doing wrong
3. Propose specific changes to fix the issues
4. Write the complete improved prompt

Respond in this exact format:

ANALYSIS:
[Your analysis of the failure patterns]

CHANGES:
- [Change 1]
- [Change 2]
- [Change 3]

NEW PROMPT:
"""
[The complete improved prompt]
"""
`

const (
	headerAnalysis  = "ANALYSIS:"
	headerChanges   = "CHANGES:"
	headerNewPrompt = "NEW PROMPT:"
)

// Mutator drives a single reflection step: render the reflection request,
// call the completion service once, and parse the reply into a proposal.
// The completion call is never retried here; transient provider errors
// propagate to the caller with their kind intact.
type Mutator struct {
	completions ports.CompletionService
	temperature float64
	maxTokens   int
}

func NewMutator(completions ports.CompletionService, temperature float64, maxTokens int) *Mutator {
	return &Mutator{
		completions: completions,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// BuildReflectionPrompt renders the fixed reflection request. Exported so
// the export surface can show the exact request that produced a version.
func BuildReflectionPrompt(taskDescription, currentPrompt, feedbackCorpus string) string {
	return fmt.Sprintf(reflectionTemplate, taskDescription, currentPrompt, feedbackCorpus)
}

// Propose requests one mutation of currentPrompt given the feedback corpus.
// Malformed model output never fails the call: the proposal degrades to the
// unchanged current prompt with ParseFailed set and the raw reply attached.
func (m *Mutator) Propose(ctx context.Context, taskDescription, currentPrompt, feedbackCorpus string) (*models.MutationProposal, error) {
	if strings.TrimSpace(taskDescription) == "" {
		return nil, fmt.Errorf("propose mutation: %w: task description", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(feedbackCorpus) == "" {
		return nil, domain.ErrEmptyFeedback
	}

	req := ports.CompletionRequest{
		Prompt:      BuildReflectionPrompt(taskDescription, currentPrompt, feedbackCorpus),
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	result, err := m.completions.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reflection call: %w", err)
	}

	return ParseReflection(result.Text, currentPrompt), nil
}

// ParseReflection parses a reflection reply with a strict section grammar:
// headers in the fixed order ANALYSIS, CHANGES, NEW PROMPT, each section's
// body running to the next header or end of text. The new prompt payload is
// the text between the first pair of delimiters after the NEW PROMPT header,
// accepting triple quotes or a fenced code block. A reply without a usable
// new prompt yields a ParseFailed proposal carrying currentPrompt unchanged.
func ParseReflection(reply, currentPrompt string) *models.MutationProposal {
	analysis := sectionBody(reply, headerAnalysis, headerChanges)
	changesText := sectionBody(reply, headerChanges, headerNewPrompt)

	var changes []string
	for _, line := range strings.Split(changesText, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			entry := strings.TrimSpace(strings.TrimLeft(line, "-* "))
			if entry != "" {
				changes = append(changes, entry)
			}
		}
	}

	newPrompt := extractNewPrompt(reply)

	proposal := &models.MutationProposal{
		Analysis: analysis,
		Changes:  changes,
	}

	if newPrompt == "" {
		proposal.NewPrompt = currentPrompt
		proposal.ParseFailed = true
		proposal.RawReply = reply
		proposal.Explanation = "Reflection reply could not be parsed; prompt left unchanged."
		return proposal
	}

	proposal.NewPrompt = newPrompt
	proposal.Explanation = explanationFromChanges(changes)
	return proposal
}

// sectionBody returns the trimmed text between a header and the next
// header, or empty when the header is absent or out of order.
func sectionBody(reply, header, nextHeader string) string {
	start := strings.Index(reply, header)
	if start < 0 {
		return ""
	}
	body := reply[start+len(header):]
	if end := strings.Index(body, nextHeader); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func extractNewPrompt(reply string) string {
	idx := strings.Index(reply, headerNewPrompt)
	if idx < 0 {
		return ""
	}
	section := strings.TrimSpace(reply[idx+len(headerNewPrompt):])

	for _, delim := range []string{`"""`, "'''"} {
		if strings.Contains(section, delim) {
			parts := strings.Split(section, delim)
			if len(parts) >= 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	if strings.Contains(section, "```") {
		parts := strings.Split(section, "```")
		if len(parts) >= 2 {
			return strings.TrimSpace(stripFenceLanguage(parts[1]))
		}
	}

	return ""
}

// stripFenceLanguage drops a language identifier on the opening line of a
// fenced block, if one is present.
func stripFenceLanguage(content string) string {
	if strings.HasPrefix(content, "\n") {
		return content[1:]
	}
	nl := strings.Index(content, "\n")
	if nl < 0 {
		return content
	}
	first := strings.TrimSpace(content[:nl])
	if first == "" || isAlpha(first) {
		return content[nl+1:]
	}
	return content
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// explanationFromChanges joins up to the first three change bullets, noting
// how many were left out. No further model call is made to summarize.
func explanationFromChanges(changes []string) string {
	if len(changes) == 0 {
		return "Made 0 changes to address feedback issues."
	}
	shown := changes
	if len(shown) > 3 {
		shown = shown[:3]
	}
	explanation := strings.Join(shown, "; ")
	if len(changes) > 3 {
		explanation += fmt.Sprintf("; and %d more changes", len(changes)-3)
	}
	return explanation
}

// RenderPrompt substitutes the input content into a prompt template. A
// template without the placeholder runs as-is.
func RenderPrompt(promptText, inputContent string) string {
	return strings.ReplaceAll(promptText, "{input}", inputContent)
}
