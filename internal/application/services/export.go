package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
)

// ExportService renders a session for consumption outside the system:
// a single prompt version as Markdown, or the whole session graph as
// JSON. Both renderings are projections; nothing derived is added.
type ExportService struct {
	sessions ports.SessionRepository
	inputs   ports.InputRepository
	versions ports.PromptVersionRepository
	results  ports.RunResultRepository
	lineage  *LineageService
}

func NewExportService(
	sessions ports.SessionRepository,
	inputs ports.InputRepository,
	versions ports.PromptVersionRepository,
	results ports.RunResultRepository,
	lineage *LineageService,
) *ExportService {
	return &ExportService{
		sessions: sessions,
		inputs:   inputs,
		versions: versions,
		results:  results,
		lineage:  lineage,
	}
}

// ExportMarkdown renders one prompt version with its session metadata.
// An empty versionID exports the session's current version.
func (s *ExportService) ExportMarkdown(ctx context.Context, sessionID, versionID string) (string, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return "", err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return "", domain.NewDomainError(domain.ErrSessionNotFound, "session "+sessionID)
	}

	var version *models.PromptVersion
	if versionID == "" {
		version, err = s.lineage.Current(ctx, sessionID)
	} else {
		version, err = s.lineage.GetVersion(ctx, versionID)
	}
	if err != nil {
		return "", err
	}
	if version.SessionID != sessionID {
		return "", domain.NewDomainError(domain.ErrCrossSessionLineage,
			fmt.Sprintf("version %s belongs to session %s", version.ID, version.SessionID))
	}

	return renderVersionMarkdown(session, version), nil
}

func renderVersionMarkdown(session *models.Session, version *models.PromptVersion) string {
	return fmt.Sprintf(`# %s - v%d

## Prompt

`+"```"+`
%s
`+"```"+`

## Metadata
- Task: %s
- Version: %d
- Created: %s
- Model: %s
- Provider: %s
- Temperature: %g
`,
		session.Name,
		version.VersionNumber,
		version.PromptText,
		session.TaskDescription,
		version.VersionNumber,
		version.CreatedAt.Format("2006-01-02"),
		session.ModelName,
		session.ModelProvider,
		session.ModelTemperature,
	)
}

type sessionExport struct {
	Session  exportedSession   `json:"session"`
	Versions []exportedVersion `json:"versions"`
	Inputs   []exportedInput   `json:"inputs"`
	Results  []exportedResult  `json:"results"`
}

type exportedSession struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	TaskDescription   string  `json:"task_description"`
	OutputDescription string  `json:"output_description"`
	ModelProvider     string  `json:"model_provider"`
	ModelName         string  `json:"model_name"`
	ModelTemperature  float64 `json:"model_temperature"`
	BatchSize         int     `json:"batch_size"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type exportedVersion struct {
	ID                  string  `json:"id"`
	VersionNumber       int     `json:"version_number"`
	PromptText          string  `json:"prompt_text"`
	ParentVersionID     *string `json:"parent_version_id"`
	MutationExplanation string  `json:"mutation_explanation"`
	Status              string  `json:"status"`
	ParetoRank          *int    `json:"pareto_rank"`
	CreatedAt           string  `json:"created_at"`
}

type exportedInput struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	GroundTruth string `json:"ground_truth"`
	Metadata    string `json:"metadata"`
	CreatedAt   string `json:"created_at"`
}

type exportedResult struct {
	ID               string `json:"id"`
	InputID          string `json:"input_id"`
	PromptVersionID  string `json:"prompt_version_id"`
	Output           string `json:"output"`
	LatencyMs        int64  `json:"latency_ms"`
	TokensUsed       int    `json:"tokens_used"`
	HumanFeedback    string `json:"human_feedback"`
	FeedbackReason   string `json:"feedback_reason"`
	HumanCorrection  string `json:"human_correction"`
	ComparisonResult string `json:"comparison_result"`
	CreatedAt        string `json:"created_at"`
}

func isoTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ExportJSON renders the full session graph: session metadata, the whole
// version lineage, all inputs, and every result grouped under its
// version.
func (s *ExportService) ExportJSON(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrSessionNotFound, "session "+sessionID)
	}
	versions, err := s.versions.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load versions")
	}
	inputs, err := s.inputs.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load inputs")
	}

	export := sessionExport{
		Session: exportedSession{
			ID:                session.ID,
			Name:              session.Name,
			TaskDescription:   session.TaskDescription,
			OutputDescription: session.OutputDescription,
			ModelProvider:     session.ModelProvider,
			ModelName:         session.ModelName,
			ModelTemperature:  session.ModelTemperature,
			BatchSize:         session.BatchSize,
			Status:            session.Status,
			CreatedAt:         isoTime(session.CreatedAt),
			UpdatedAt:         isoTime(session.UpdatedAt),
		},
		Versions: make([]exportedVersion, 0, len(versions)),
		Inputs:   make([]exportedInput, 0, len(inputs)),
		Results:  []exportedResult{},
	}

	for _, v := range versions {
		export.Versions = append(export.Versions, exportedVersion{
			ID:                  v.ID,
			VersionNumber:       v.VersionNumber,
			PromptText:          v.PromptText,
			ParentVersionID:     v.ParentVersionID,
			MutationExplanation: v.MutationExplanation,
			Status:              v.Status,
			ParetoRank:          v.ParetoRank,
			CreatedAt:           isoTime(v.CreatedAt),
		})
	}
	for _, input := range inputs {
		export.Inputs = append(export.Inputs, exportedInput{
			ID:          input.ID,
			Content:     input.Content,
			GroundTruth: input.GroundTruth,
			Metadata:    input.Metadata,
			CreatedAt:   isoTime(input.CreatedAt),
		})
	}
	for _, v := range versions {
		results, err := s.results.GetByVersion(ctx, v.ID)
		if err != nil {
			return nil, domain.NewDomainError(err, "failed to load results for version "+v.ID)
		}
		for _, r := range results {
			export.Results = append(export.Results, exportedResult{
				ID:               r.ID,
				InputID:          r.InputID,
				PromptVersionID:  r.PromptVersionID,
				Output:           r.Output,
				LatencyMs:        r.LatencyMs,
				TokensUsed:       r.TokensUsed,
				HumanFeedback:    r.HumanFeedback,
				FeedbackReason:   r.FeedbackReason,
				HumanCorrection:  r.HumanCorrection,
				ComparisonResult: r.ComparisonResult,
				CreatedAt:        isoTime(r.CreatedAt),
			})
		}
	}

	return json.MarshalIndent(export, "", "  ")
}
