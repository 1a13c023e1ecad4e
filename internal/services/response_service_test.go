package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var fixtureNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func strp(s string) *string     { return &s }
func numPtr(n float64) *float64 { return &n }

func newFixtureStore() *stubStore {
	store := newStubStore()
	store.surveys["sv1"] = &Survey{ID: "sv1", Slug: "rhoslc-s6", Title: "RHOSLC S6", IsActive: true}
	add := func(q *Question, opts ...*Option) {
		q.SurveyID = "sv1"
		store.questions[q.ID] = q
		for i, o := range opts {
			o.QuestionID = q.ID
			o.DisplayOrder = i
			store.options[o.ID] = o
		}
	}
	add(&Question{ID: "q-rank", QuestionKey: "season_rank", QuestionType: QuestionRanking, DisplayOrder: 0,
		Config: PosterRankingsConfig{}},
		&Option{ID: "o-s1", OptionKey: "s1", OptionText: "Season 1"},
		&Option{ID: "o-s2", OptionKey: "s2", OptionText: "Season 2"},
	)
	add(&Question{ID: "q-pick", QuestionKey: "mvp", QuestionType: QuestionSingleChoice, DisplayOrder: 1, IsRequired: true,
		Config: TextMultipleChoiceConfig{}},
		&Option{ID: "o-lisa", OptionKey: "lisa", OptionText: "Lisa"},
		&Option{ID: "o-heather", OptionKey: "heather", OptionText: "Heather"},
	)
	add(&Question{ID: "q-rate", QuestionKey: "rating", QuestionType: QuestionNumeric, DisplayOrder: 2, IsRequired: true,
		Config: NumericRankingConfig{Min: 0, Max: 10}})
	add(&Question{ID: "q-matrix", QuestionKey: "agree", QuestionType: QuestionLikert, DisplayOrder: 3,
		Config: AgreeLikertScaleConfig{Rows: []MatrixRow{{ID: "r1", Label: "Drama"}, {ID: "r2", Label: "Fashion"}}}},
		&Option{ID: "o-agree", OptionKey: "strongly_agree", OptionText: "Strongly agree"},
		&Option{ID: "o-neutral", OptionKey: "neutral", OptionText: "Neither"},
	)
	add(&Question{ID: "q-note", QuestionKey: "notes", QuestionType: QuestionFreeText, DisplayOrder: 4})

	ends := fixtureNow.Add(72 * time.Hour)
	store.runs["run1"] = &SurveyRun{ID: "run1", SurveyID: "sv1", RunKey: "2026-W42",
		StartsAt: fixtureNow.Add(-96 * time.Hour), EndsAt: &ends, MaxSubmissionsPerUser: 1, IsActive: true}
	return store
}

func newFixtureResponseService(store *stubStore) *ResponseService {
	svc := NewResponseService(store)
	svc.now = func() time.Time { return fixtureNow }
	svc.idGenerator = seqIDs("id-")
	return svc
}

func validAnswers() []AnswerInput {
	return []AnswerInput{
		{QuestionID: "q-rank", JSONValue: json.RawMessage(`["s2","o-s1"]`)},
		{QuestionID: "q-pick", OptionID: strp("lisa")},
		{QuestionID: "q-rate", NumericValue: numPtr(7.5)},
		{QuestionID: "q-matrix", JSONValue: json.RawMessage(`{"r1":"strongly_agree","r2":"o-neutral"}`)},
		{QuestionID: "q-note", TextValue: strp("  iconic  ")},
	}
}

func TestActiveRunView(t *testing.T) {
	store := newFixtureStore()
	svc := newFixtureResponseService(store)

	view, err := svc.ActiveRun(context.Background(), "rhoslc-s6", "user-1")
	if err != nil {
		t.Fatalf("ActiveRun returned error: %v", err)
	}
	if view.ActiveRun == nil || view.ActiveRun.ID != "run1" {
		t.Fatalf("active run = %+v, want run1", view.ActiveRun)
	}
	if !view.CanSubmit || view.UserSubmissions != 0 {
		t.Fatalf("view = (canSubmit=%v, submissions=%d), want (true, 0)", view.CanSubmit, view.UserSubmissions)
	}
	if len(view.Survey.Questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(view.Survey.Questions))
	}

	anon, err := svc.ActiveRun(context.Background(), "rhoslc-s6", "")
	if err != nil {
		t.Fatalf("anonymous ActiveRun returned error: %v", err)
	}
	if anon.CanSubmit || anon.UserSubmissions != 0 {
		t.Fatalf("anonymous view = (canSubmit=%v, submissions=%d), want (false, 0)", anon.CanSubmit, anon.UserSubmissions)
	}
}

func TestActiveRunPicksLatestStart(t *testing.T) {
	store := newFixtureStore()
	store.runs["run2"] = &SurveyRun{ID: "run2", SurveyID: "sv1", RunKey: "bonus",
		StartsAt: fixtureNow.Add(-time.Hour), MaxSubmissionsPerUser: 3, IsActive: true}
	store.runs["run3"] = &SurveyRun{ID: "run3", SurveyID: "sv1", RunKey: "future",
		StartsAt: fixtureNow.Add(time.Hour), MaxSubmissionsPerUser: 3, IsActive: true}
	svc := newFixtureResponseService(store)

	view, err := svc.ActiveRun(context.Background(), "rhoslc-s6", "user-1")
	if err != nil {
		t.Fatalf("ActiveRun returned error: %v", err)
	}
	if view.ActiveRun.ID != "run2" {
		t.Fatalf("active run = %q, want run2", view.ActiveRun.ID)
	}
}

func TestActiveRunNotFound(t *testing.T) {
	svc := newFixtureResponseService(newFixtureStore())
	if _, err := svc.ActiveRun(context.Background(), "missing", "user-1"); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("err = %v, want ErrSurveyNotFound", err)
	}

	store := newFixtureStore()
	store.runs["run1"].IsActive = false
	svc = newFixtureResponseService(store)
	view, err := svc.ActiveRun(context.Background(), "rhoslc-s6", "user-1")
	if err != nil {
		t.Fatalf("ActiveRun returned error: %v", err)
	}
	if view.ActiveRun != nil || view.CanSubmit {
		t.Fatalf("view = %+v, want no run and canSubmit=false", view)
	}
}

func TestSubmitStoresNormalizedAnswers(t *testing.T) {
	store := newFixtureStore()
	svc := newFixtureResponseService(store)

	res, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "rhoslc-s6", Identity: "user-1", Answers: validAnswers()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.ResponseID != "id-1" || res.SubmissionNumber != 1 {
		t.Fatalf("result = %+v, want id-1 / 1", res)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses stored = %d, want 1", len(store.responses))
	}
	resp := store.responses[0]
	if resp.UserID != "user-1" || resp.SurveyRunID != "run1" || resp.CompletedAt == nil {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Answers) != 5 {
		t.Fatalf("answers = %d, want 5", len(resp.Answers))
	}

	byQ := map[string]*Answer{}
	for _, a := range resp.Answers {
		if a.ResponseID != "id-1" {
			t.Fatalf("answer response id = %q, want id-1", a.ResponseID)
		}
		byQ[a.QuestionID] = a
	}
	if got := string(byQ["q-rank"].JSONValue); got != `["o-s2","o-s1"]` {
		t.Fatalf("ranking json = %s, want option ids", got)
	}
	if got := *byQ["q-pick"].OptionID; got != "o-lisa" {
		t.Fatalf("single choice option = %q, want o-lisa", got)
	}
	if got := *byQ["q-rate"].NumericValue; got != 7.5 {
		t.Fatalf("numeric = %v, want 7.5", got)
	}
	var matrix map[string]string
	if err := json.Unmarshal(byQ["q-matrix"].JSONValue, &matrix); err != nil {
		t.Fatalf("matrix json: %v", err)
	}
	if matrix["r1"] != "strongly_agree" || matrix["r2"] != "neutral" {
		t.Fatalf("matrix = %v, want option keys", matrix)
	}
	if got := *byQ["q-note"].TextValue; got != "iconic" {
		t.Fatalf("text = %q, want trimmed", got)
	}
}

func TestSubmitEnforcesCap(t *testing.T) {
	store := newFixtureStore()
	svc := newFixtureResponseService(store)
	req := SubmitRequest{SurveySlug: "rhoslc-s6", Identity: "user-1", Answers: validAnswers()}

	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), req); !errors.Is(err, ErrMaxSubmissions) {
		t.Fatalf("second submit err = %v, want ErrMaxSubmissions", err)
	}

	view, err := svc.ActiveRun(context.Background(), "rhoslc-s6", "user-1")
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if view.CanSubmit || view.UserSubmissions != 1 {
		t.Fatalf("view = (canSubmit=%v, submissions=%d), want (false, 1)", view.CanSubmit, view.UserSubmissions)
	}
}

func TestSubmitRejectsAnonymousAndMissing(t *testing.T) {
	store := newFixtureStore()
	svc := newFixtureResponseService(store)

	if _, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "rhoslc-s6", Answers: validAnswers()}); !errors.Is(err, ErrAnonymous) {
		t.Fatalf("anonymous err = %v, want ErrAnonymous", err)
	}
	if _, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "nope", Identity: "u"}); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("missing survey err = %v, want ErrSurveyNotFound", err)
	}
	delete(store.runs, "run1")
	if _, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "rhoslc-s6", Identity: "u"}); !errors.Is(err, ErrNoActiveRun) {
		t.Fatalf("no run err = %v, want ErrNoActiveRun", err)
	}
}

func TestSubmitReportsEveryProblem(t *testing.T) {
	store := newFixtureStore()
	svc := newFixtureResponseService(store)

	answers := []AnswerInput{
		{QuestionID: "q-ghost", TextValue: strp("boo")},
		{QuestionID: "q-pick", OptionID: strp("andy")},
		{QuestionID: "q-rank", JSONValue: json.RawMessage(`["s1","s1"]`)},
		{QuestionID: "q-matrix", JSONValue: json.RawMessage(`{"r1":"strongly_agree","r9":"neutral"}`)},
		{QuestionID: "q-note", TextValue: strp("one")},
		{QuestionID: "q-note", TextValue: strp("two")},
	}
	_, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "rhoslc-s6", Identity: "user-1", Answers: answers})
	se, ok := AsSubmissionError(err)
	if !ok {
		t.Fatalf("err = %v, want *SubmissionError", err)
	}
	got := map[string]ProblemReason{}
	for _, p := range se.Problems {
		got[p.QuestionID] = p.Reason
	}
	want := map[string]ProblemReason{
		"q-ghost":  ReasonUnknownQuestion,
		"q-pick":   ReasonUnresolvedOption,
		"q-rank":   ReasonInvalidValue,
		"q-matrix": ReasonInvalidValue,
		"q-note":   ReasonDuplicateAnswer,
		"q-rate":   ReasonMissingRequired,
	}
	for q, reason := range want {
		if got[q] != reason {
			t.Fatalf("problem for %s = %q, want %q (all: %+v)", q, got[q], reason, se.Problems)
		}
	}
	if len(store.responses) != 0 {
		t.Fatalf("responses stored = %d, want 0", len(store.responses))
	}
}

func TestNormalizeAnswersNumericBounds(t *testing.T) {
	store := newFixtureStore()
	sv, _ := store.GetSurveyWithQuestions(context.Background(), "rhoslc-s6")
	_, err := NormalizeAnswers(sv, []AnswerInput{
		{QuestionID: "q-pick", OptionID: strp("o-heather")},
		{QuestionID: "q-rate", NumericValue: numPtr(11)},
	})
	se, ok := AsSubmissionError(err)
	if !ok || len(se.Problems) != 1 || se.Problems[0].Reason != ReasonInvalidValue {
		t.Fatalf("err = %v, want one invalid_value problem", err)
	}
	if se.Problems[0].QuestionKey != "rating" {
		t.Fatalf("question key = %q, want rating", se.Problems[0].QuestionKey)
	}
}

func TestNormalizeAnswersTwoAxisGrid(t *testing.T) {
	sv := &SurveyWithQuestions{Questions: []*Question{{
		ID: "q-grid", QuestionKey: "grid", QuestionType: QuestionLikert, IsRequired: true,
		Config: TwoAxisGridConfig{Extent: intp(3), Rows: []MatrixRow{{ID: "a", Label: "A"}}},
	}}}
	answers, err := NormalizeAnswers(sv, []AnswerInput{
		{QuestionID: "q-grid", JSONValue: json.RawMessage(`{"a":{"x":9,"y":-1.2}}`)},
	})
	if err != nil {
		t.Fatalf("NormalizeAnswers: %v", err)
	}
	if got := string(answers[0].JSONValue); got != `{"a":{"x":3,"y":-1}}` {
		t.Fatalf("grid json = %s", got)
	}
}

func TestNormalizeAnswersSkipsEmptyOptional(t *testing.T) {
	store := newFixtureStore()
	sv, _ := store.GetSurveyWithQuestions(context.Background(), "rhoslc-s6")
	answers, err := NormalizeAnswers(sv, []AnswerInput{
		{QuestionID: "q-pick", OptionID: strp("lisa")},
		{QuestionID: "q-rate", NumericValue: numPtr(0)},
		{QuestionID: "q-note", TextValue: strp("   ")},
		{QuestionID: "q-rank"},
	})
	if err != nil {
		t.Fatalf("NormalizeAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(answers))
	}
}

func TestSubmitRunClosedInsideTransaction(t *testing.T) {
	store := newFixtureStore()
	store.insertErr = ErrRunNotOpen
	svc := newFixtureResponseService(store)
	if _, err := svc.Submit(context.Background(), SubmitRequest{SurveySlug: "rhoslc-s6", Identity: "u", Answers: validAnswers()}); !errors.Is(err, ErrRunNotOpen) {
		t.Fatalf("err = %v, want ErrRunNotOpen", err)
	}
}

func castMultiSelectSurvey(cfg CastMultiSelectConfig) *SurveyWithQuestions {
	q := &Question{ID: "q-cast", QuestionKey: "favorites", QuestionType: QuestionMultiChoice, IsRequired: true, Config: cfg}
	for _, key := range []string{"lisa", "heather", "whitney", "meredith"} {
		q.Options = append(q.Options, &Option{ID: "o-" + key, QuestionID: q.ID, OptionKey: key, OptionText: key})
	}
	return &SurveyWithQuestions{Questions: []*Question{q}}
}

func TestNormalizeAnswersCastMultiSelectBounds(t *testing.T) {
	open := castMultiSelectSurvey(CastMultiSelectConfig{MinSelections: intp(3)})
	if err := ValidateQuestionConfig(QuestionMultiChoice, open.Questions[0].Config); err != nil {
		t.Fatalf("ValidateQuestionConfig: %v", err)
	}
	answers, err := NormalizeAnswers(open, []AnswerInput{
		{QuestionID: "q-cast", JSONValue: json.RawMessage(`["lisa","heather","whitney","meredith"]`)},
	})
	if err != nil {
		t.Fatalf("NormalizeAnswers without maxSelections: %v", err)
	}
	if got := string(answers[0].JSONValue); got != `["o-lisa","o-heather","o-whitney","o-meredith"]` {
		t.Fatalf("json = %s", got)
	}

	_, err = NormalizeAnswers(open, []AnswerInput{
		{QuestionID: "q-cast", JSONValue: json.RawMessage(`["lisa","heather"]`)},
	})
	se, ok := AsSubmissionError(err)
	if !ok || se.Problems[0].Reason != ReasonMissingRequired {
		t.Fatalf("err = %v, want missing_required below minSelections", err)
	}

	capped := castMultiSelectSurvey(CastMultiSelectConfig{MaxSelections: intp(2)})
	_, err = NormalizeAnswers(capped, []AnswerInput{
		{QuestionID: "q-cast", JSONValue: json.RawMessage(`["lisa","heather","whitney"]`)},
	})
	se, ok = AsSubmissionError(err)
	if !ok || se.Problems[0].Reason != ReasonInvalidValue {
		t.Fatalf("err = %v, want invalid_value above maxSelections", err)
	}
}

func TestNormalizeAnswersRejectsBrokenPattern(t *testing.T) {
	sv := &SurveyWithQuestions{Questions: []*Question{{
		ID: "q-handle", QuestionKey: "handle", QuestionType: QuestionFreeText,
		Config: TextEntryConfig{Validation: &TextValidation{Pattern: "^[a-z+$"}},
	}}}
	_, err := NormalizeAnswers(sv, []AnswerInput{{QuestionID: "q-handle", TextValue: strp("ANY TEXT 123")}})
	se, ok := AsSubmissionError(err)
	if !ok || len(se.Problems) != 1 || se.Problems[0].Reason != ReasonInvalidValue {
		t.Fatalf("err = %v, want one invalid_value problem", err)
	}
}
