package services

import (
	"context"
	"fmt"
	"time"

	"github.com/faisalx96/saqal/internal/adapters/metrics"
	"github.com/faisalx96/saqal/internal/domain"
	"github.com/faisalx96/saqal/internal/domain/models"
	"github.com/faisalx96/saqal/internal/ports"
)

// LineageService maintains a session's append-only prompt version tree.
// Versions are only ever added: rejected proposals are committed for the
// audit trail, and reverting to an older version commits a pass-through
// copy instead of rewriting history. The current version of a session is
// derived, not stored: it is the latest accepted version, or version 1
// when nothing has been accepted yet.
type LineageService struct {
	versions  ports.PromptVersionRepository
	frontier  ports.FrontierRepository
	idGen     ports.IDGenerator
	txManager ports.TransactionManager
}

func NewLineageService(
	versions ports.PromptVersionRepository,
	frontier ports.FrontierRepository,
	idGen ports.IDGenerator,
	txManager ports.TransactionManager,
) *LineageService {
	return &LineageService{
		versions:  versions,
		frontier:  frontier,
		idGen:     idGen,
		txManager: txManager,
	}
}

// Commit appends a new version to the session's lineage. The version
// number is always one past the current maximum, so a non-nil parent is
// necessarily older than its child; the parent must belong to the same
// session.
func (s *LineageService) Commit(ctx context.Context, sessionID string, parentID *string, promptText, explanation, status string) (*models.PromptVersion, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	if err := ValidateRequired(promptText, "prompt text"); err != nil {
		return nil, err
	}
	if status != models.VersionStatusAccepted && status != models.VersionStatusRejected && status != models.VersionStatusProposed {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "unknown version status: "+status)
	}

	if parentID != nil {
		parent, err := s.versions.GetByID(ctx, *parentID)
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrVersionNotFound, "parent version "+*parentID)
		}
		if parent.SessionID != sessionID {
			return nil, domain.NewDomainError(domain.ErrCrossSessionLineage,
				fmt.Sprintf("parent %s belongs to session %s", parent.ID, parent.SessionID))
		}
	}

	var version *models.PromptVersion
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		number, err := s.versions.GetNextVersionNumber(ctx, sessionID)
		if err != nil {
			return domain.NewDomainError(err, "failed to allocate version number")
		}
		version = models.NewPromptVersion(s.idGen.GenerateVersionID(), sessionID, number, promptText, parentID, explanation, status)
		if err := s.versions.Create(ctx, version); err != nil {
			return domain.NewDomainError(err, "failed to create prompt version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VersionsCommittedTotal.WithLabelValues(status).Inc()
	return version, nil
}

// Current returns the session's current version: the latest accepted one,
// or version 1 when no version has been accepted.
func (s *LineageService) Current(ctx context.Context, sessionID string) (*models.PromptVersion, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}

	history, err := s.versions.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load version history")
	}
	if len(history) == 0 {
		return nil, domain.NewDomainError(domain.ErrVersionNotFound, "session "+sessionID+" has no versions")
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == models.VersionStatusAccepted {
			return history[i], nil
		}
	}
	return history[0], nil
}

// History returns all versions of a session ordered by version number.
func (s *LineageService) History(ctx context.Context, sessionID string) ([]*models.PromptVersion, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	history, err := s.versions.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load version history")
	}
	return history, nil
}

// GetVersion returns a single version by ID.
func (s *LineageService) GetVersion(ctx context.Context, versionID string) (*models.PromptVersion, error) {
	if err := ValidateID(versionID, "version"); err != nil {
		return nil, err
	}
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrVersionNotFound, "version "+versionID)
	}
	return version, nil
}

// Children returns the versions committed with the given version as
// parent. Together with History this reconstructs the lineage tree;
// versions carry parent pointers, never child lists.
func (s *LineageService) Children(ctx context.Context, versionID string) ([]*models.PromptVersion, error) {
	if _, err := s.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}
	children, err := s.versions.GetChildren(ctx, versionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load child versions")
	}
	return children, nil
}

// SetCurrent makes an accepted version current again. Because the current
// version is always the latest accepted one, this commits a pass-through
// accepted child carrying the target's text rather than editing history.
// Returns the target itself when it is already current.
func (s *LineageService) SetCurrent(ctx context.Context, versionID string) (*models.PromptVersion, error) {
	target, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if target.Status != models.VersionStatusAccepted {
		return nil, domain.NewDomainError(domain.ErrVersionNotAccepted, "version "+versionID)
	}

	current, err := s.Current(ctx, target.SessionID)
	if err != nil {
		return nil, err
	}
	if current.ID == target.ID {
		return target, nil
	}

	explanation := fmt.Sprintf("Reverted to version %d", target.VersionNumber)
	return s.Commit(ctx, target.SessionID, &target.ID, target.PromptText, explanation, models.VersionStatusAccepted)
}

// VersionRank pairs a version with its computed Pareto rank.
type VersionRank struct {
	VersionID string `json:"version_id"`
	Rank      int    `json:"rank"`
}

// AppendFrontier records a frontier recompute as a batch of entries
// sharing one timestamp, and mirrors each rank onto its version. Earlier
// entries are never rewritten.
func (s *LineageService) AppendFrontier(ctx context.Context, sessionID string, ranks []VersionRank) error {
	if err := ValidateID(sessionID, "session"); err != nil {
		return err
	}
	if len(ranks) == 0 {
		return domain.NewDomainError(domain.ErrInvalidInput, "frontier recompute requires at least one rank")
	}

	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		entries := make([]*models.FrontierEntry, 0, len(ranks))
		recordedAt := time.Now().UTC()
		for _, r := range ranks {
			version, err := s.versions.GetByID(ctx, r.VersionID)
			if err != nil {
				return domain.NewDomainError(domain.ErrVersionNotFound, "version "+r.VersionID)
			}
			if version.SessionID != sessionID {
				return domain.NewDomainError(domain.ErrCrossSessionLineage,
					fmt.Sprintf("version %s belongs to session %s", version.ID, version.SessionID))
			}

			entry := models.NewFrontierEntry(s.idGen.GenerateFrontierEntryID(), sessionID, r.VersionID, r.Rank)
			entry.RecordedAt = recordedAt
			entries = append(entries, entry)

			rank := r.Rank
			version.ParetoRank = &rank
			if err := s.versions.Update(ctx, version); err != nil {
				return domain.NewDomainError(err, "failed to update version rank")
			}
		}
		if err := s.frontier.Append(ctx, entries); err != nil {
			return domain.NewDomainError(err, "failed to append frontier entries")
		}
		return nil
	})
}

// Frontier returns the entries of the most recent frontier recompute.
func (s *LineageService) Frontier(ctx context.Context, sessionID string) ([]*models.FrontierEntry, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	entries, err := s.frontier.GetLatestBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load frontier")
	}
	return entries, nil
}

// FrontierHistory returns recent frontier entries across recomputes,
// newest first.
func (s *LineageService) FrontierHistory(ctx context.Context, sessionID string, limit int) ([]*models.FrontierEntry, error) {
	if err := ValidateID(sessionID, "session"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.frontier.GetHistoryBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load frontier history")
	}
	return entries, nil
}
