package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealityreport/trr-surveys/internal/utils"
)

// SurveyStore is the persistence surface for survey authoring. Getters
// return (nil, nil) when the row does not exist.
type SurveyStore interface {
	ListSurveys(ctx context.Context) ([]*Survey, error)
	GetSurveyBySlug(ctx context.Context, slug string) (*Survey, error)
	GetSurveyWithQuestions(ctx context.Context, slug string) (*SurveyWithQuestions, error)
	InsertSurvey(ctx context.Context, sv *Survey) error
	UpdateSurvey(ctx context.Context, sv *Survey) error
	DeleteSurvey(ctx context.Context, id string) error

	// InsertQuestion stores the question together with q.Options.
	InsertQuestion(ctx context.Context, q *Question) error
	UpdateQuestion(ctx context.Context, q *Question) error
	DeleteQuestion(ctx context.Context, id string) error
	InsertOption(ctx context.Context, o *Option) error
	UpdateOption(ctx context.Context, o *Option) error
	DeleteOption(ctx context.Context, id string) error

	ListRuns(ctx context.Context, surveyID string) ([]*SurveyRun, error)
	GetRun(ctx context.Context, id string) (*SurveyRun, error)
	GetRunByKey(ctx context.Context, surveyID, runKey string) (*SurveyRun, error)
	InsertRun(ctx context.Context, run *SurveyRun) error
	UpdateRun(ctx context.Context, run *SurveyRun) error
	DeleteRun(ctx context.Context, id string) error

	ListResponses(ctx context.Context, runID string) ([]*Response, error)
	CountResponses(ctx context.Context, runID string) (int, error)
}

// SurveyInvalidator drops cached survey reads after an admin write.
type SurveyInvalidator interface {
	InvalidateSurvey(ctx context.Context, slug string) error
}

type SurveyInput struct {
	Slug        *string        `json:"slug"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Theme       *string        `json:"theme"`
	IsActive    *bool          `json:"is_active"`
	Metadata    map[string]any `json:"metadata"`
}

type QuestionInput struct {
	QuestionKey  *string       `json:"question_key"`
	QuestionText *string       `json:"question_text"`
	QuestionType *QuestionType `json:"question_type"`
	DisplayOrder *int          `json:"display_order"`
	IsRequired   *bool         `json:"is_required"`
	// UIVariant picks a catalog template; its default config and seed
	// options are used when Config or Options are not supplied.
	UIVariant *UIVariant      `json:"ui_variant"`
	Config    json.RawMessage `json:"config"`
	Options   []OptionInput   `json:"options"`
}

type OptionInput struct {
	OptionKey    *string        `json:"option_key"`
	OptionText   *string        `json:"option_text"`
	DisplayOrder *int           `json:"display_order"`
	Metadata     map[string]any `json:"metadata"`
}

type RunInput struct {
	RunKey                *string        `json:"run_key"`
	Title                 *string        `json:"title"`
	StartsAt              *time.Time     `json:"starts_at"`
	EndsAt                *time.Time     `json:"ends_at"`
	ClearEndsAt           bool           `json:"clear_ends_at"`
	MaxSubmissionsPerUser *int           `json:"max_submissions_per_user"`
	IsActive              *bool          `json:"is_active"`
	Metadata              map[string]any `json:"metadata"`
}

// SurveyService implements survey authoring: surveys, questions, options
// and runs, plus read-only response access for admins.
type SurveyService struct {
	store       SurveyStore
	cache       SurveyInvalidator
	now         func() time.Time
	idGenerator func() string
}

func NewSurveyService(store SurveyStore, cache SurveyInvalidator) *SurveyService {
	return &SurveyService{
		store:       store,
		cache:       cache,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

func (s *SurveyService) invalidate(ctx context.Context, slug string) {
	if s.cache == nil || slug == "" {
		return
	}
	_ = s.cache.InvalidateSurvey(ctx, slug)
}

func (s *SurveyService) ListSurveys(ctx context.Context) ([]*Survey, error) {
	return s.store.ListSurveys(ctx)
}

// GetSurvey returns a survey with its ordered questions and options.
func (s *SurveyService) GetSurvey(ctx context.Context, slug string) (*SurveyWithQuestions, error) {
	sv, err := s.store.GetSurveyWithQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	return sv, nil
}

func (s *SurveyService) requireSurvey(ctx context.Context, slug string) (*Survey, error) {
	sv, err := s.store.GetSurveyBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, NewNotFoundError("survey not found")
	}
	return sv, nil
}

func (s *SurveyService) CreateSurvey(ctx context.Context, in SurveyInput) (*Survey, error) {
	title := strings.TrimSpace(deref(in.Title))
	if title == "" {
		return nil, NewInvalidError("title required")
	}
	slugSource := deref(in.Slug)
	if strings.TrimSpace(slugSource) == "" {
		slugSource = title
	}
	slug := utils.Slugify(slugSource)
	if slug == "" {
		return nil, NewInvalidError("slug required")
	}
	existing, err := s.store.GetSurveyBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError(fmt.Sprintf("survey %q already exists", slug))
	}
	now := s.now()
	sv := &Survey{
		ID:          s.idGenerator(),
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(deref(in.Description)),
		Theme:       strings.TrimSpace(deref(in.Theme)),
		IsActive:    true,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsActive != nil {
		sv.IsActive = *in.IsActive
	}
	if sv.Metadata == nil {
		sv.Metadata = map[string]any{}
	}
	if err := s.store.InsertSurvey(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *SurveyService) UpdateSurvey(ctx context.Context, slug string, in SurveyInput) (*Survey, error) {
	sv, err := s.requireSurvey(ctx, slug)
	if err != nil {
		return nil, err
	}
	oldSlug := sv.Slug
	if in.Slug != nil {
		next := utils.Slugify(*in.Slug)
		if next == "" {
			return nil, NewInvalidError("slug required")
		}
		if next != sv.Slug {
			clash, err := s.store.GetSurveyBySlug(ctx, next)
			if err != nil {
				return nil, err
			}
			if clash != nil {
				return nil, NewConflictError(fmt.Sprintf("survey %q already exists", next))
			}
			sv.Slug = next
		}
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, NewInvalidError("title required")
		}
		sv.Title = title
	}
	if in.Description != nil {
		sv.Description = strings.TrimSpace(*in.Description)
	}
	if in.Theme != nil {
		sv.Theme = strings.TrimSpace(*in.Theme)
	}
	if in.IsActive != nil {
		sv.IsActive = *in.IsActive
	}
	if in.Metadata != nil {
		sv.Metadata = in.Metadata
	}
	sv.UpdatedAt = s.now()
	if err := s.store.UpdateSurvey(ctx, sv); err != nil {
		return nil, err
	}
	s.invalidate(ctx, oldSlug)
	s.invalidate(ctx, sv.Slug)
	return sv, nil
}

// DeleteSurvey removes a survey with its questions and runs. Surveys whose
// runs already hold responses are kept; responses are never cascaded away.
func (s *SurveyService) DeleteSurvey(ctx context.Context, slug string) error {
	sv, err := s.requireSurvey(ctx, slug)
	if err != nil {
		return err
	}
	runs, err := s.store.ListRuns(ctx, sv.ID)
	if err != nil {
		return err
	}
	for _, run := range runs {
		n, err := s.store.CountResponses(ctx, run.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return NewConflictError(fmt.Sprintf("run %q has %d responses", run.RunKey, n))
		}
	}
	if err := s.store.DeleteSurvey(ctx, sv.ID); err != nil {
		return err
	}
	s.invalidate(ctx, sv.Slug)
	return nil
}

// CreateQuestion adds a question to the survey. The config is validated
// against the question type; when a template is picked without explicit
// options, its seed options are created with the question.
func (s *SurveyService) CreateQuestion(ctx context.Context, slug string, in QuestionInput) (*Question, error) {
	sv, err := s.GetSurvey(ctx, slug)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(deref(in.QuestionKey))
	if key == "" {
		return nil, NewInvalidError("question_key required")
	}
	for _, existing := range sv.Questions {
		if existing.QuestionKey == key {
			return nil, NewConflictError(fmt.Sprintf("question_key %q already exists", key))
		}
	}
	text := strings.TrimSpace(deref(in.QuestionText))
	if text == "" {
		return nil, NewInvalidError("question_text required")
	}

	var tpl *Template
	if in.UIVariant != nil {
		t, ok := TemplateFor(*in.UIVariant)
		if !ok {
			return nil, NewInvalidError(fmt.Sprintf("unknown ui_variant %q", *in.UIVariant))
		}
		tpl = &t
	}
	var qt QuestionType
	switch {
	case in.QuestionType != nil:
		qt = *in.QuestionType
	case tpl != nil:
		qt = tpl.QuestionType
	}
	if !qt.Valid() {
		return nil, NewInvalidError(fmt.Sprintf("unknown question_type %q", qt))
	}

	cfg, err := UnmarshalQuestionConfig(in.Config, qt)
	if err != nil {
		return nil, NewInvalidError(err.Error())
	}
	if cfg == nil && tpl != nil {
		cfg = tpl.NewConfig()
	}
	if err := ValidateQuestionConfig(qt, cfg); err != nil {
		return nil, NewInvalidError(err.Error())
	}

	order := nextQuestionOrder(sv.Questions)
	if in.DisplayOrder != nil {
		order = *in.DisplayOrder
	}
	now := s.now()
	q := &Question{
		ID:           s.idGenerator(),
		SurveyID:     sv.ID,
		QuestionKey:  key,
		QuestionText: text,
		QuestionType: qt,
		DisplayOrder: order,
		IsRequired:   in.IsRequired != nil && *in.IsRequired,
		Config:       cfg,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	inputs := in.Options
	if len(inputs) == 0 && tpl != nil && tpl.QuestionType == qt {
		inputs = seedInputs(tpl.SeedOptions)
	}
	if len(inputs) > 0 && !qt.HasOptions() {
		return nil, NewInvalidError(fmt.Sprintf("question_type %q does not take options", qt))
	}
	for _, oi := range inputs {
		opt, err := s.buildOption(q, oi, now)
		if err != nil {
			return nil, err
		}
		q.Options = append(q.Options, opt)
	}

	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sv.Slug)
	return q, nil
}

func seedInputs(seeds []SeedOption) []OptionInput {
	out := make([]OptionInput, 0, len(seeds))
	for _, seed := range seeds {
		key, text := seed.OptionKey, seed.OptionText
		out = append(out, OptionInput{OptionKey: &key, OptionText: &text})
	}
	return out
}

func nextQuestionOrder(qs []*Question) int {
	next := 0
	for _, q := range qs {
		if q.DisplayOrder+1 > next {
			next = q.DisplayOrder + 1
		}
	}
	return next
}

func nextOptionOrder(opts []*Option) int {
	next := 0
	for _, o := range opts {
		if o.DisplayOrder+1 > next {
			next = o.DisplayOrder + 1
		}
	}
	return next
}

// buildOption validates oi against q's existing options and returns the new
// option with display_order defaulted to the next free slot.
func (s *SurveyService) buildOption(q *Question, oi OptionInput, now time.Time) (*Option, error) {
	key := strings.TrimSpace(deref(oi.OptionKey))
	text := strings.TrimSpace(deref(oi.OptionText))
	if key == "" || text == "" {
		return nil, NewInvalidError(ErrConfigInvalid.Error() + ": option_key and option_text required")
	}
	for _, o := range q.Options {
		if o.OptionKey == key {
			return nil, NewConflictError(fmt.Sprintf("option_key %q already exists", key))
		}
	}
	order := nextOptionOrder(q.Options)
	if oi.DisplayOrder != nil {
		order = *oi.DisplayOrder
	}
	meta := oi.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &Option{
		ID:           s.idGenerator(),
		QuestionID:   q.ID,
		OptionKey:    key,
		OptionText:   text,
		DisplayOrder: order,
		Metadata:     meta,
		CreatedAt:    now,
	}, nil
}

func (s *SurveyService) findQuestion(ctx context.Context, slug, questionID string) (*SurveyWithQuestions, *Question, error) {
	sv, err := s.GetSurvey(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	q := sv.QuestionByID(questionID)
	if q == nil {
		return nil, nil, NewNotFoundError("question not found")
	}
	return sv, q, nil
}

func (s *SurveyService) UpdateQuestion(ctx context.Context, slug, questionID string, in QuestionInput) (*Question, error) {
	sv, q, err := s.findQuestion(ctx, slug, questionID)
	if err != nil {
		return nil, err
	}
	if in.QuestionKey != nil {
		key := strings.TrimSpace(*in.QuestionKey)
		if key == "" {
			return nil, NewInvalidError("question_key required")
		}
		for _, other := range sv.Questions {
			if other.ID != q.ID && other.QuestionKey == key {
				return nil, NewConflictError(fmt.Sprintf("question_key %q already exists", key))
			}
		}
		q.QuestionKey = key
	}
	if in.QuestionText != nil {
		text := strings.TrimSpace(*in.QuestionText)
		if text == "" {
			return nil, NewInvalidError("question_text required")
		}
		q.QuestionText = text
	}
	if in.QuestionType != nil {
		if !in.QuestionType.Valid() {
			return nil, NewInvalidError(fmt.Sprintf("unknown question_type %q", *in.QuestionType))
		}
		q.QuestionType = *in.QuestionType
	}
	if in.DisplayOrder != nil {
		q.DisplayOrder = *in.DisplayOrder
	}
	if in.IsRequired != nil {
		q.IsRequired = *in.IsRequired
	}
	switch {
	case len(in.Config) > 0:
		cfg, err := UnmarshalQuestionConfig(in.Config, q.QuestionType)
		if err != nil {
			return nil, NewInvalidError(err.Error())
		}
		q.Config = cfg
	case in.UIVariant != nil:
		tpl, ok := TemplateFor(*in.UIVariant)
		if !ok {
			return nil, NewInvalidError(fmt.Sprintf("unknown ui_variant %q", *in.UIVariant))
		}
		q.Config = tpl.NewConfig()
	}
	if err := ValidateQuestionConfig(q.QuestionType, q.Config); err != nil {
		return nil, NewInvalidError(err.Error())
	}
	q.UpdatedAt = s.now()
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sv.Slug)
	return q, nil
}

func (s *SurveyService) DeleteQuestion(ctx context.Context, slug, questionID string) error {
	sv, q, err := s.findQuestion(ctx, slug, questionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, q.ID); err != nil {
		return err
	}
	s.invalidate(ctx, sv.Slug)
	return nil
}

func (s *SurveyService) CreateOption(ctx context.Context, slug, questionID string, in OptionInput) (*Option, error) {
	sv, q, err := s.findQuestion(ctx, slug, questionID)
	if err != nil {
		return nil, err
	}
	if !q.QuestionType.HasOptions() {
		return nil, NewInvalidError(fmt.Sprintf("question_type %q does not take options", q.QuestionType))
	}
	opt, err := s.buildOption(q, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertOption(ctx, opt); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sv.Slug)
	return opt, nil
}

func (s *SurveyService) UpdateOption(ctx context.Context, slug, questionID, optionID string, in OptionInput) (*Option, error) {
	sv, q, err := s.findQuestion(ctx, slug, questionID)
	if err != nil {
		return nil, err
	}
	var opt *Option
	for _, o := range q.Options {
		if o.ID == optionID {
			opt = o
		}
	}
	if opt == nil {
		return nil, NewNotFoundError("option not found")
	}
	if in.OptionKey != nil {
		key := strings.TrimSpace(*in.OptionKey)
		if key == "" {
			return nil, NewInvalidError("option_key required")
		}
		for _, o := range q.Options {
			if o.ID != opt.ID && o.OptionKey == key {
				return nil, NewConflictError(fmt.Sprintf("option_key %q already exists", key))
			}
		}
		opt.OptionKey = key
	}
	if in.OptionText != nil {
		text := strings.TrimSpace(*in.OptionText)
		if text == "" {
			return nil, NewInvalidError("option_text required")
		}
		opt.OptionText = text
	}
	if in.DisplayOrder != nil {
		opt.DisplayOrder = *in.DisplayOrder
	}
	if in.Metadata != nil {
		opt.Metadata = in.Metadata
	}
	if err := s.store.UpdateOption(ctx, opt); err != nil {
		return nil, err
	}
	s.invalidate(ctx, sv.Slug)
	return opt, nil
}

func (s *SurveyService) DeleteOption(ctx context.Context, slug, questionID, optionID string) error {
	sv, q, err := s.findQuestion(ctx, slug, questionID)
	if err != nil {
		return err
	}
	found := false
	for _, o := range q.Options {
		found = found || o.ID == optionID
	}
	if !found {
		return NewNotFoundError("option not found")
	}
	if err := s.store.DeleteOption(ctx, optionID); err != nil {
		return err
	}
	s.invalidate(ctx, sv.Slug)
	return nil
}

// Sections returns the survey's questions grouped by config.section.
func (s *SurveyService) Sections(ctx context.Context, slug string) ([]SectionGroup[*Question], error) {
	sv, err := s.GetSurvey(ctx, slug)
	if err != nil {
		return nil, err
	}
	return GroupQuestionsBySection(sv.Questions), nil
}

func (s *SurveyService) ListRuns(ctx context.Context, slug string) ([]*SurveyRun, error) {
	sv, err := s.requireSurvey(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.store.ListRuns(ctx, sv.ID)
}

func (s *SurveyService) CreateRun(ctx context.Context, slug string, in RunInput) (*SurveyRun, error) {
	sv, err := s.requireSurvey(ctx, slug)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(deref(in.RunKey))
	if key == "" {
		return nil, NewInvalidError("run_key required")
	}
	if in.StartsAt == nil {
		return nil, NewInvalidError("starts_at required")
	}
	existing, err := s.store.GetRunByKey(ctx, sv.ID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError(fmt.Sprintf("run %q already exists", key))
	}
	now := s.now()
	run := &SurveyRun{
		ID:                    s.idGenerator(),
		SurveyID:              sv.ID,
		RunKey:                key,
		Title:                 strings.TrimSpace(deref(in.Title)),
		StartsAt:              in.StartsAt.UTC(),
		MaxSubmissionsPerUser: 1,
		IsActive:              true,
		Metadata:              in.Metadata,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if in.EndsAt != nil {
		ends := in.EndsAt.UTC()
		run.EndsAt = &ends
	}
	if in.MaxSubmissionsPerUser != nil {
		run.MaxSubmissionsPerUser = *in.MaxSubmissionsPerUser
	}
	if in.IsActive != nil {
		run.IsActive = *in.IsActive
	}
	if run.Metadata == nil {
		run.Metadata = map[string]any{}
	}
	if err := validateRun(run); err != nil {
		return nil, err
	}
	if err := s.store.InsertRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func validateRun(run *SurveyRun) error {
	if run.MaxSubmissionsPerUser < 1 {
		return NewInvalidError("max_submissions_per_user must be at least 1")
	}
	if run.EndsAt != nil && !run.EndsAt.After(run.StartsAt) {
		return NewInvalidError("ends_at must be after starts_at")
	}
	return nil
}

func (s *SurveyService) requireRun(ctx context.Context, slug, runID string) (*Survey, *SurveyRun, error) {
	sv, err := s.requireSurvey(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run == nil || run.SurveyID != sv.ID {
		return nil, nil, NewNotFoundError("run not found")
	}
	return sv, run, nil
}

func (s *SurveyService) UpdateRun(ctx context.Context, slug, runID string, in RunInput) (*SurveyRun, error) {
	sv, run, err := s.requireRun(ctx, slug, runID)
	if err != nil {
		return nil, err
	}
	if in.RunKey != nil {
		key := strings.TrimSpace(*in.RunKey)
		if key == "" {
			return nil, NewInvalidError("run_key required")
		}
		if key != run.RunKey {
			clash, err := s.store.GetRunByKey(ctx, sv.ID, key)
			if err != nil {
				return nil, err
			}
			if clash != nil {
				return nil, NewConflictError(fmt.Sprintf("run %q already exists", key))
			}
			run.RunKey = key
		}
	}
	if in.Title != nil {
		run.Title = strings.TrimSpace(*in.Title)
	}
	if in.StartsAt != nil {
		run.StartsAt = in.StartsAt.UTC()
	}
	switch {
	case in.ClearEndsAt:
		run.EndsAt = nil
	case in.EndsAt != nil:
		ends := in.EndsAt.UTC()
		run.EndsAt = &ends
	}
	if in.MaxSubmissionsPerUser != nil {
		run.MaxSubmissionsPerUser = *in.MaxSubmissionsPerUser
	}
	if in.IsActive != nil {
		run.IsActive = *in.IsActive
	}
	if in.Metadata != nil {
		run.Metadata = in.Metadata
	}
	if err := validateRun(run); err != nil {
		return nil, err
	}
	run.UpdatedAt = s.now()
	if err := s.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// DeleteRun removes a run that has not collected any responses.
func (s *SurveyService) DeleteRun(ctx context.Context, slug, runID string) error {
	_, run, err := s.requireRun(ctx, slug, runID)
	if err != nil {
		return err
	}
	n, err := s.store.CountResponses(ctx, run.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return NewConflictError(fmt.Sprintf("run %q has %d responses", run.RunKey, n))
	}
	return s.store.DeleteRun(ctx, run.ID)
}

// ListResponses returns the run's responses, newest first, with answers.
func (s *SurveyService) ListResponses(ctx context.Context, slug, runID string) ([]*Response, error) {
	if _, _, err := s.requireRun(ctx, slug, runID); err != nil {
		return nil, err
	}
	return s.store.ListResponses(ctx, runID)
}

func (s *SurveyService) CountResponses(ctx context.Context, slug, runID string) (int, error) {
	if _, _, err := s.requireRun(ctx, slug, runID); err != nil {
		return 0, err
	}
	return s.store.CountResponses(ctx, runID)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
