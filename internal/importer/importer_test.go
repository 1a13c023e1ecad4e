package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/therealityreport/trr-surveys/internal/db"
	"github.com/therealityreport/trr-surveys/internal/services"
)

const weeklyYAML = `
slug: RHOSLC Season 6 Weekly
title: RHOSLC S6 Weekly Check-in
theme: rhoslc
metadata:
  autoCreateRuns: true
questions:
  - key: rating
    text: Rate the episode
    ui_variant: numeric-ranking
    required: true
    config:
      min: 1
      max: 10
      section: Episode
  - key: mvp
    text: Who won the week?
    type: single_choice
    required: true
    options:
      - {key: lisa, text: Lisa Barlow}
      - {key: heather, text: Heather Gay}
  - key: cast_verdict
    text: Keep, demote or fire?
    ui_variant: cast-decision-card
runs:
  - key: premiere
    starts_at: 2026-10-12T00:00:00Z
    ends_at: 2026-10-19T00:00:00Z
    max_submissions_per_user: 2
`

func newService(t *testing.T) *services.SurveyService {
	t.Helper()
	store, err := db.Open(context.Background(), db.DialectSQLite, ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return services.NewSurveyService(store, nil)
}

func TestParse(t *testing.T) {
	def, err := Parse([]byte(weeklyYAML))
	require.NoError(t, err)
	assert.Equal(t, "RHOSLC S6 Weekly Check-in", def.Title)
	require.Len(t, def.Questions, 3)
	assert.Equal(t, true, def.Metadata["autoCreateRuns"])

	wantOpts := []OptionDef{{Key: "lisa", Text: "Lisa Barlow"}, {Key: "heather", Text: "Heather Gay"}}
	if diff := cmp.Diff(wantOpts, def.Questions[1].Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, def.Runs, 1)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), def.Runs[0].StartsAt.UTC())

	_, err = Parse([]byte("questions: []"))
	assert.Error(t, err)
	_, err = Parse([]byte("title: [unterminated"))
	assert.Error(t, err)
}

func TestImportCreatesSurvey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	def, err := Parse([]byte(weeklyYAML))
	require.NoError(t, err)

	res, err := New(svc, zaptest.NewLogger(t)).Import(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, &Result{Slug: "rhoslc-season-6-weekly", Questions: 3, Runs: 1}, res)

	sv, err := svc.GetSurvey(ctx, "rhoslc-season-6-weekly")
	require.NoError(t, err)
	assert.True(t, sv.AutoCreateRuns())
	require.Len(t, sv.Questions, 3)

	rating := sv.Questions[0]
	cfg, ok := rating.Config.(services.NumericRankingConfig)
	require.True(t, ok, "config = %T", rating.Config)
	assert.Equal(t, 10.0, cfg.Max)
	assert.Equal(t, "Episode", rating.Section())
	assert.Equal(t, services.QuestionNumeric, rating.QuestionType)

	assert.Len(t, sv.Questions[1].Options, 2)
	verdict := sv.Questions[2]
	assert.Equal(t, services.QuestionLikert, verdict.QuestionType)
	assert.Len(t, verdict.Options, 3, "template seeds keep/demote/fire")

	runs, err := svc.ListRuns(ctx, "rhoslc-season-6-weekly")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].MaxSubmissionsPerUser)
}

func TestImportSkipsExistingSlug(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	def, err := Parse([]byte(weeklyYAML))
	require.NoError(t, err)
	im := New(svc, nil)

	_, err = im.Import(ctx, def)
	require.NoError(t, err)
	res, err := im.Import(ctx, def)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Questions)
}

func TestImportRemovesPartialSurvey(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	def, err := Parse([]byte(`
title: Broken
questions:
  - {key: notes, text: Notes, type: free_text}
  - {key: bad, text: Bad, type: likert, ui_variant: poster-rankings}
`))
	require.NoError(t, err)

	_, err = New(svc, nil).Import(ctx, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question 1 (bad)")

	_, err = svc.GetSurvey(ctx, "broken")
	se, ok := services.AsServiceError(err)
	require.True(t, ok, "err = %v", err)
	assert.Equal(t, services.ErrorNotFound, se.Code)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(weeklyYAML), 0o600))
	def, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rhoslc", def.Theme)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
