//go:build integration

package integration

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/faisalx96/saqal/internal/adapters/id"
	"github.com/faisalx96/saqal/internal/adapters/postgres"
	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/ports"
	"github.com/faisalx96/saqal/internal/refine"
)

// stubCompletionService answers every completion deterministically so flow
// tests exercise the real services and database without a model endpoint.
// Replies to reflection requests carry the section grammar the mutation
// parser expects; everything else is echoed back.
type stubCompletionService struct {
	calls     atomic.Int64
	newPrompt string
}

func (s *stubCompletionService) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	n := s.calls.Add(1)

	if s.newPrompt != "" && strings.Contains(req.Prompt, "expert prompt engineer") {
		reply := fmt.Sprintf("ANALYSIS:\nThe prompt is too vague.\n\nCHANGES:\n- Be specific about the output format\n\nNEW PROMPT:\n\"\"\"\n%s\n\"\"\"\n", s.newPrompt)
		return &ports.CompletionResult{Text: reply, TokensUsed: 40, LatencyMs: 5}, nil
	}

	return &ports.CompletionResult{
		Text:       fmt.Sprintf("output %d for: %s", n, req.Prompt),
		TokensUsed: 10,
		LatencyMs:  5,
	}, nil
}

// Services bundles the full application service graph wired against the
// test database and a stub model.
type Services struct {
	Completions *stubCompletionService
	Sessions    *services.SessionService
	Lineage     *services.LineageService
	Runs        *services.RunService
	Workflow    *services.WorkflowService
	Export      *services.ExportService
}

// NewServices wires repositories and services the same way serve does,
// with the stub completion service in place of the model endpoint.
func NewServices(db *TestDB) *Services {
	sessionRepo := postgres.NewSessionRepository(db.Pool)
	inputRepo := postgres.NewInputRepository(db.Pool)
	versionRepo := postgres.NewPromptVersionRepository(db.Pool)
	resultRepo := postgres.NewRunResultRepository(db.Pool)
	frontierRepo := postgres.NewFrontierRepository(db.Pool)
	idGen := id.New()
	txManager := postgres.NewTransactionManager(db.Pool)

	completions := &stubCompletionService{newPrompt: "Summarize the text in exactly three bullet points."}
	mutator := refine.NewMutator(completions, 0.8, 4096)

	lineage := services.NewLineageService(versionRepo, frontierRepo, idGen, txManager)
	sessions := services.NewSessionService(sessionRepo, inputRepo, versionRepo, resultRepo, frontierRepo, lineage, idGen, txManager)
	runs := services.NewRunService(sessionRepo, inputRepo, versionRepo, resultRepo, completions, idGen, nil)
	workflow := services.NewWorkflowService(sessionRepo, inputRepo, resultRepo, lineage, runs, mutator, nil)
	export := services.NewExportService(sessionRepo, inputRepo, versionRepo, resultRepo, lineage)

	return &Services{
		Completions: completions,
		Sessions:    sessions,
		Lineage:     lineage,
		Runs:        runs,
		Workflow:    workflow,
		Export:      export,
	}
}
