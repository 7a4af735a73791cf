package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/faisalx96/saqal/internal/domain/models"
)

type exportFixture struct {
	sessions *MockSessionRepository
	inputs   *MockInputRepository
	versions *MockPromptVersionRepository
	results  *MockRunResultRepository
	service  *ExportService
}

func newExportFixture() *exportFixture {
	f := &exportFixture{
		sessions: new(MockSessionRepository),
		inputs:   new(MockInputRepository),
		versions: new(MockPromptVersionRepository),
		results:  new(MockRunResultRepository),
	}
	lineage := NewLineageService(f.versions, new(MockFrontierRepository), &mockIDGenerator{}, &mockTransactionManager{})
	f.service = NewExportService(f.sessions, f.inputs, f.versions, f.results, lineage)
	return f
}

func TestExportService_ExportMarkdown_RendersTemplate(t *testing.T) {
	f := newExportFixture()
	ctx := context.Background()

	session := models.NewSession("ss_1", "Email summarizer", "Summarize customer emails", "", "openai", "gpt-4o-mini", 0.7, 10)
	version := models.NewPromptVersion("sv_2", "ss_1", 2, "Summarize briefly: {input}", strPtr("sv_1"), "shortened", models.VersionStatusAccepted)
	version.CreatedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	f.sessions.On("GetByID", mock.Anything, "ss_1").Return(session, nil)
	f.versions.On("GetByID", mock.Anything, "sv_2").Return(version, nil)

	md, err := f.service.ExportMarkdown(ctx, "ss_1", "sv_2")
	require.NoError(t, err)

	expected := "# Email summarizer - v2\n" +
		"\n" +
		"## Prompt\n" +
		"\n" +
		"```\n" +
		"Summarize briefly: {input}\n" +
		"```\n" +
		"\n" +
		"## Metadata\n" +
		"- Task: Summarize customer emails\n" +
		"- Version: 2\n" +
		"- Created: 2026-03-14\n" +
		"- Model: gpt-4o-mini\n" +
		"- Provider: openai\n" +
		"- Temperature: 0.7\n"
	assert.Equal(t, expected, md)
}

func TestExportService_ExportMarkdown_DefaultsToCurrentVersion(t *testing.T) {
	f := newExportFixture()
	ctx := context.Background()

	session := models.NewSession("ss_1", "s", "task", "", "openai", "gpt-4o-mini", 0.7, 10)
	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "v1 text", nil, "", models.VersionStatusAccepted)
	v2 := models.NewPromptVersion("sv_2", "ss_1", 2, "v2 text", strPtr("sv_1"), "", models.VersionStatusAccepted)

	f.sessions.On("GetByID", mock.Anything, "ss_1").Return(session, nil)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1, v2}, nil)

	md, err := f.service.ExportMarkdown(ctx, "ss_1", "")

	require.NoError(t, err)
	assert.Contains(t, md, "# s - v2")
	assert.Contains(t, md, "v2 text")
}

func TestExportService_ExportJSON_FullSessionGraph(t *testing.T) {
	f := newExportFixture()
	ctx := context.Background()

	session := models.NewSession("ss_1", "Email summarizer", "Summarize customer emails", "Short summaries", "openai", "gpt-4o-mini", 0.7, 10)
	v1 := models.NewPromptVersion("sv_1", "ss_1", 1, "v1 text", nil, "", models.VersionStatusAccepted)
	v2 := models.NewPromptVersion("sv_2", "ss_1", 2, "v2 text", strPtr("sv_1"), "tightened wording", models.VersionStatusRejected)
	input := models.NewInput("si_1", "ss_1", "an email", "a summary", "")
	result := models.NewRunResult("sr_1", "si_1", "sv_1", "the output", 250, 30)
	result.HumanFeedback = models.FeedbackGood

	f.sessions.On("GetByID", mock.Anything, "ss_1").Return(session, nil)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{v1, v2}, nil)
	f.inputs.On("GetBySession", mock.Anything, "ss_1").Return([]*models.Input{input}, nil)
	f.results.On("GetByVersion", mock.Anything, "sv_1").Return([]*models.RunResult{result}, nil)
	f.results.On("GetByVersion", mock.Anything, "sv_2").Return([]*models.RunResult{}, nil)

	raw, err := f.service.ExportJSON(ctx, "ss_1")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	sess := decoded["session"].(map[string]any)
	assert.Equal(t, "ss_1", sess["id"])
	assert.Equal(t, "Email summarizer", sess["name"])
	assert.Equal(t, float64(10), sess["batch_size"])

	versions := decoded["versions"].([]any)
	require.Len(t, versions, 2)
	first := versions[0].(map[string]any)
	assert.Equal(t, float64(1), first["version_number"])
	assert.Nil(t, first["parent_version_id"])
	second := versions[1].(map[string]any)
	assert.Equal(t, "sv_1", second["parent_version_id"])
	assert.Equal(t, models.VersionStatusRejected, second["status"])

	inputs := decoded["inputs"].([]any)
	require.Len(t, inputs, 1)
	assert.Equal(t, "an email", inputs[0].(map[string]any)["content"])

	results := decoded["results"].([]any)
	require.Len(t, results, 1)
	res := results[0].(map[string]any)
	assert.Equal(t, "sv_1", res["prompt_version_id"])
	assert.Equal(t, "good", res["human_feedback"])
}

func TestExportService_ExportJSON_EmptyResultsIsArrayNotNull(t *testing.T) {
	f := newExportFixture()
	ctx := context.Background()

	session := models.NewSession("ss_1", "s", "task", "", "openai", "gpt-4o-mini", 0.7, 10)
	f.sessions.On("GetByID", mock.Anything, "ss_1").Return(session, nil)
	f.versions.On("GetBySession", mock.Anything, "ss_1").Return([]*models.PromptVersion{}, nil)
	f.inputs.On("GetBySession", mock.Anything, "ss_1").Return([]*models.Input{}, nil)

	raw, err := f.service.ExportJSON(ctx, "ss_1")
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"results": []`)
	assert.NotContains(t, string(raw), `"results": null`)
}
