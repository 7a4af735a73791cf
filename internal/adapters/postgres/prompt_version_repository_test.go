package postgres

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/faisalx96/saqal/internal/domain/models"
)

func TestPromptVersionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &PromptVersionRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	parent := "sv_1"
	version := models.NewPromptVersion("sv_2", "ss_1", 2, "Improved: {input}", &parent, "Added word limit", models.VersionStatusProposed)

	mock.ExpectExec("INSERT INTO saqal_prompt_versions").
		WithArgs(
			version.ID, version.SessionID, version.VersionNumber, version.PromptText,
			nullStringPtr(&parent), nullString("Added word limit"),
			models.VersionStatusProposed, nullIntPtr(nil), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Create(ctx, version); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPromptVersionRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &PromptVersionRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	rows := pgxmock.NewRows([]string{
		"id", "session_id", "version_number", "prompt_text", "parent_version_id",
		"mutation_explanation", "status", "pareto_rank", "created_at",
	}).AddRow(
		"sv_2", "ss_1", 2, "Improved: {input}", "sv_1",
		"Added word limit", models.VersionStatusAccepted, 1, time.Now(),
	)

	mock.ExpectQuery("SELECT (.+) FROM saqal_prompt_versions").
		WithArgs("sv_2").
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	version, err := repo.GetByID(ctx, "sv_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if version.ParentVersionID == nil || *version.ParentVersionID != "sv_1" {
		t.Errorf("version.ParentVersionID = %v, want sv_1", version.ParentVersionID)
	}
	if version.ParetoRank == nil || *version.ParetoRank != 1 {
		t.Errorf("version.ParetoRank = %v, want 1", version.ParetoRank)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPromptVersionRepository_GetByID_RootVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &PromptVersionRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	rows := pgxmock.NewRows([]string{
		"id", "session_id", "version_number", "prompt_text", "parent_version_id",
		"mutation_explanation", "status", "pareto_rank", "created_at",
	}).AddRow(
		"sv_1", "ss_1", 1, "Summarize: {input}", nil,
		nil, models.VersionStatusAccepted, nil, time.Now(),
	)

	mock.ExpectQuery("SELECT (.+) FROM saqal_prompt_versions").
		WithArgs("sv_1").
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	version, err := repo.GetByID(ctx, "sv_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if version.ParentVersionID != nil {
		t.Errorf("version.ParentVersionID = %v, want nil for version 1", version.ParentVersionID)
	}
	if version.ParetoRank != nil {
		t.Errorf("version.ParetoRank = %v, want nil", version.ParetoRank)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPromptVersionRepository_GetNextVersionNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &PromptVersionRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("ss_1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(4))

	ctx := setupMockContext(mock)
	next, err := repo.GetNextVersionNumber(ctx, "ss_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next != 4 {
		t.Errorf("next = %d, want 4", next)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPromptVersionRepository_GetBySession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &PromptVersionRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "session_id", "version_number", "prompt_text", "parent_version_id",
		"mutation_explanation", "status", "pareto_rank", "created_at",
	}).
		AddRow("sv_1", "ss_1", 1, "v1", nil, nil, models.VersionStatusAccepted, nil, now).
		AddRow("sv_2", "ss_1", 2, "v2", "sv_1", "tweak", models.VersionStatusRejected, nil, now).
		AddRow("sv_3", "ss_1", 3, "v3", "sv_1", "retry", models.VersionStatusAccepted, 1, now)

	mock.ExpectQuery("SELECT (.+) FROM saqal_prompt_versions").
		WithArgs("ss_1").
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	versions, err := repo.GetBySession(ctx, "ss_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(versions) != 3 {
		t.Fatalf("len(versions) = %d, want 3", len(versions))
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("versions[%d].VersionNumber = %d, want %d", i, v.VersionNumber, i+1)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
