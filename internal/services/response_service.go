package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResponseStore abstracts the row-store operations the play and submit
// workflows need. Lookups return (nil, nil) when nothing matches.
type ResponseStore interface {
	GetSurveyWithQuestions(ctx context.Context, slug string) (*SurveyWithQuestions, error)
	GetActiveRun(ctx context.Context, surveyID string, now time.Time) (*SurveyRun, error)
	CountUserSubmissions(ctx context.Context, runID, userID string) (int, error)
	// InsertResponse writes the response and its answers atomically. Inside
	// the same transaction it re-checks that the run is open at now and that
	// the user is under the run's cap, assigning SubmissionNumber = count+1.
	// It returns ErrRunNotOpen or ErrMaxSubmissions when those checks fail.
	InsertResponse(ctx context.Context, resp *Response, now time.Time) (*Response, error)
}

// SubmitRequest carries a validated-at-the-edge submission into the service.
type SubmitRequest struct {
	SurveySlug string
	// Identity is the opaque caller identity; empty means anonymous.
	Identity string
	Answers  []AnswerInput
}

type SubmitResult struct {
	ResponseID       string `json:"responseId"`
	SubmissionNumber int    `json:"submissionNumber"`
}

// ResponseService hosts the play-side workflows: the active-run view and
// response submission.
type ResponseService struct {
	store       ResponseStore
	now         func() time.Time
	idGenerator func() string
}

func NewResponseService(store ResponseStore) *ResponseService {
	return &ResponseService{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// ActiveRun resolves the survey and its current run for identity. Anonymous
// callers always get canSubmit=false. A survey without an open run yields a
// view with a nil ActiveRun.
func (s *ResponseService) ActiveRun(ctx context.Context, slug, identity string) (*ActiveRunView, error) {
	survey, err := s.store.GetSurveyWithQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	view := &ActiveRunView{Survey: survey}
	if !survey.IsActive {
		return view, nil
	}
	run, err := s.store.GetActiveRun(ctx, survey.ID, s.now())
	if err != nil {
		return nil, err
	}
	view.ActiveRun = run
	if run == nil || identity == "" {
		return view, nil
	}
	count, err := s.store.CountUserSubmissions(ctx, run.ID, identity)
	if err != nil {
		return nil, err
	}
	view.UserSubmissions = count
	view.CanSubmit = CanSubmit(count, run.MaxSubmissionsPerUser)
	return view, nil
}

// Submit validates every answer against its question and stores the
// response. Validation failures are reported together as a *SubmissionError.
func (s *ResponseService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if s.store == nil {
		return nil, errors.New("response service store is nil")
	}
	if strings.TrimSpace(req.Identity) == "" {
		return nil, ErrAnonymous
	}
	survey, err := s.store.GetSurveyWithQuestions(ctx, req.SurveySlug)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	now := s.now()
	var run *SurveyRun
	if survey.IsActive {
		if run, err = s.store.GetActiveRun(ctx, survey.ID, now); err != nil {
			return nil, err
		}
	}
	if run == nil {
		return nil, ErrNoActiveRun
	}

	answers, err := NormalizeAnswers(survey, req.Answers)
	if err != nil {
		return nil, err
	}

	responseID := s.idGenerator()
	for _, a := range answers {
		a.ID = s.idGenerator()
		a.ResponseID = responseID
		a.CreatedAt = now
	}
	completed := now
	stored, err := s.store.InsertResponse(ctx, &Response{
		ID:          responseID,
		SurveyRunID: run.ID,
		UserID:      req.Identity,
		CompletedAt: &completed,
		Metadata:    map[string]any{},
		CreatedAt:   now,
		Answers:     answers,
	}, now)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{ResponseID: stored.ID, SubmissionNumber: stored.SubmissionNumber}, nil
}

// NormalizeAnswers maps client answers onto stored answers for survey,
// resolving option tokens and checking values against each question's type
// and config. Every problem found is reported in a single *SubmissionError.
func NormalizeAnswers(survey *SurveyWithQuestions, inputs []AnswerInput) ([]*Answer, error) {
	var problems []AnswerProblem
	answered := map[string]bool{}
	out := make([]*Answer, 0, len(inputs))

	for _, in := range inputs {
		q := survey.QuestionByID(in.QuestionID)
		if q == nil {
			problems = append(problems, AnswerProblem{QuestionID: in.QuestionID, Reason: ReasonUnknownQuestion})
			continue
		}
		value, err := AnswerValue(in)
		if err != nil {
			problems = append(problems, problemFor(q, ReasonInvalidValue, "jsonValue is not valid JSON"))
			continue
		}
		if value == nil {
			continue
		}
		if answered[q.ID] {
			problems = append(problems, problemFor(q, ReasonDuplicateAnswer, ""))
			continue
		}
		answered[q.ID] = true
		if !IsQuestionComplete(q, value) {
			switch {
			case q.IsRequired:
				problems = append(problems, problemFor(q, ReasonMissingRequired, ""))
			case !isEmptyValue(value):
				problems = append(problems, problemFor(q, ReasonInvalidValue, "incomplete answer"))
			}
			continue
		}
		ans, problem := normalizeAnswer(q, in, value)
		if problem != nil {
			problems = append(problems, *problem)
			continue
		}
		out = append(out, ans)
	}

	for _, q := range survey.Questions {
		if q.IsRequired && !answered[q.ID] {
			problems = append(problems, problemFor(q, ReasonMissingRequired, ""))
		}
	}
	if len(problems) > 0 {
		return nil, &SubmissionError{Problems: problems}
	}
	return out, nil
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func problemFor(q *Question, reason ProblemReason, detail string) AnswerProblem {
	return AnswerProblem{QuestionID: q.ID, QuestionKey: q.QuestionKey, Reason: reason, Detail: detail}
}

func normalizeAnswer(q *Question, in AnswerInput, value any) (*Answer, *AnswerProblem) {
	ans := &Answer{QuestionID: q.ID}
	fail := func(reason ProblemReason, format string, args ...any) (*Answer, *AnswerProblem) {
		p := problemFor(q, reason, fmt.Sprintf(format, args...))
		return nil, &p
	}
	cfg := q.ResolvedConfig()
	idx := NewOptionIndex(q.Options)

	switch q.QuestionType {
	case QuestionSingleChoice:
		token, ok := value.(string)
		if !ok {
			return fail(ReasonInvalidValue, "expected an option key")
		}
		id, ok := idx.Resolve(token)
		if !ok {
			return fail(ReasonUnresolvedOption, "unknown option %q", token)
		}
		ans.OptionID = &id

	case QuestionMultiChoice, QuestionRanking:
		tokens, ok := stringList(value)
		if !ok {
			return fail(ReasonInvalidValue, "expected a list of option keys")
		}
		ids := make([]string, 0, len(tokens))
		seen := map[string]bool{}
		for _, tok := range tokens {
			id, ok := idx.Resolve(tok)
			if !ok {
				return fail(ReasonUnresolvedOption, "unknown option %q", tok)
			}
			if seen[id] {
				return fail(ReasonInvalidValue, "option %q listed twice", tok)
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if hi := maxSelections(cfg); hi > 0 && len(ids) > hi {
			return fail(ReasonInvalidValue, "at most %d selections allowed", hi)
		}
		raw, _ := json.Marshal(ids)
		ans.JSONValue = raw

	case QuestionNumeric:
		n, ok := value.(float64)
		if !ok {
			return fail(ReasonInvalidValue, "expected a number")
		}
		if lo, hi, bounded := numericBounds(cfg); bounded && (n < lo || n > hi) {
			return fail(ReasonInvalidValue, "value must be between %g and %g", lo, hi)
		}
		ans.NumericValue = &n

	case QuestionLikert:
		return normalizeLikert(q, cfg, idx, value, fail)

	case QuestionFreeText:
		text, ok := value.(string)
		if !ok {
			return fail(ReasonInvalidValue, "expected text")
		}
		text = strings.TrimSpace(text)
		if msg := checkText(cfg, text); msg != "" {
			return fail(ReasonInvalidValue, "%s", msg)
		}
		ans.TextValue = &text

	default:
		return fail(ReasonInvalidValue, "unsupported question type %q", q.QuestionType)
	}
	return ans, nil
}

type failFunc func(reason ProblemReason, format string, args ...any) (*Answer, *AnswerProblem)

func normalizeLikert(q *Question, cfg QuestionConfig, idx *OptionIndex, value any, fail failFunc) (*Answer, *AnswerProblem) {
	ans := &Answer{QuestionID: q.ID}
	switch v := value.(type) {
	case string:
		id, ok := idx.Resolve(v)
		if !ok {
			return fail(ReasonUnresolvedOption, "unknown option %q", v)
		}
		ans.OptionID = &id
		return ans, nil
	case float64:
		ans.NumericValue = &v
		return ans, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return fail(ReasonInvalidValue, "unsupported likert value")
	}

	var normalized any
	switch c := cfg.(type) {
	case AgreeLikertScaleConfig:
		m, problem := normalizeMatrix(c.Rows, obj, func(tok string) (string, bool) {
			o := idx.Lookup(tok)
			if o == nil {
				return "", false
			}
			return o.OptionKey, true
		})
		if problem != "" {
			return fail(ReasonUnresolvedOption, "%s", problem)
		}
		normalized = m
	case CastDecisionCardConfig:
		choices := map[string]bool{}
		for _, ch := range c.Choices {
			choices[ch.Value] = true
		}
		m, problem := normalizeMatrix(c.Rows, obj, func(tok string) (string, bool) {
			if choices[tok] {
				return tok, true
			}
			if o := idx.Lookup(tok); o != nil {
				return o.OptionKey, true
			}
			return "", false
		})
		if problem != "" {
			return fail(ReasonUnresolvedOption, "%s", problem)
		}
		normalized = m
	case TwoAxisGridConfig:
		subjects := GridSubjects(q, c)
		known := map[string]bool{}
		for _, s := range subjects {
			known[s.ID] = true
		}
		for id := range obj {
			if !known[id] {
				return fail(ReasonInvalidValue, "unknown subject %q", id)
			}
		}
		placed := CoercePlacements(obj, subjects, c.GridExtent())
		if len(placed) != len(obj) {
			return fail(ReasonInvalidValue, "placements need numeric x and y")
		}
		normalized = placed
	default:
		normalized = obj
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fail(ReasonInvalidValue, "%v", err)
	}
	ans.JSONValue = raw
	return ans, nil
}

// normalizeMatrix checks a row→value object against rows and canonicalizes
// each value through resolve.
func normalizeMatrix(rows []MatrixRow, obj map[string]any, resolve func(string) (string, bool)) (map[string]string, string) {
	known := make(map[string]bool, len(rows))
	for _, r := range rows {
		known[r.ID] = true
	}
	out := make(map[string]string, len(obj))
	for rowID, raw := range obj {
		if !known[rowID] {
			return nil, fmt.Sprintf("unknown row %q", rowID)
		}
		tok, _ := raw.(string)
		val, ok := resolve(tok)
		if !ok {
			return nil, fmt.Sprintf("row %q: unknown option %q", rowID, tok)
		}
		out[rowID] = val
	}
	return out, ""
}

func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func maxSelections(cfg QuestionConfig) int {
	switch c := cfg.(type) {
	case MultiSelectChoiceConfig:
		if c.MaxSelections != nil {
			return *c.MaxSelections
		}
	case CastMultiSelectConfig:
		if c.MaxSelections != nil {
			return *c.MaxSelections
		}
	}
	return 0
}

func numericBounds(cfg QuestionConfig) (float64, float64, bool) {
	switch c := cfg.(type) {
	case NumericRankingConfig:
		return c.Min, c.Max, c.Min < c.Max
	case NumericScaleSliderConfig:
		return c.Min, c.Max, c.Min < c.Max
	}
	return 0, 0, false
}

func checkText(cfg QuestionConfig, text string) string {
	c, ok := cfg.(TextEntryConfig)
	if !ok || c.Validation == nil {
		return ""
	}
	v := c.Validation
	n := len([]rune(text))
	if v.MinLength != nil && n < *v.MinLength {
		return textError(v, fmt.Sprintf("must be at least %d characters", *v.MinLength))
	}
	if v.MaxLength != nil && n > *v.MaxLength {
		return textError(v, fmt.Sprintf("must be at most %d characters", *v.MaxLength))
	}
	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			return "validation pattern is invalid"
		}
		if !re.MatchString(text) {
			return textError(v, "does not match the expected format")
		}
	}
	return ""
}

func textError(v *TextValidation, fallback string) string {
	if v.ErrorMessage != "" {
		return v.ErrorMessage
	}
	return fallback
}
