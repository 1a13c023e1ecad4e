package services

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuestionType is the closed set of storage-level question kinds.
type QuestionType string

const (
	QuestionNumeric      QuestionType = "numeric"
	QuestionRanking      QuestionType = "ranking"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionLikert       QuestionType = "likert"
	QuestionFreeText     QuestionType = "free_text"
)

// QuestionTypes lists every question type in catalog order.
var QuestionTypes = []QuestionType{
	QuestionNumeric,
	QuestionRanking,
	QuestionSingleChoice,
	QuestionMultiChoice,
	QuestionLikert,
	QuestionFreeText,
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether questions of this type own QuestionOptions.
func (t QuestionType) HasOptions() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionRanking, QuestionLikert:
		return true
	}
	return false
}

// ParseQuestionType validates a raw question_type value.
func ParseQuestionType(raw string) (QuestionType, error) {
	t := QuestionType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown question_type %q", ErrConfigInvalid, raw)
	}
	return t, nil
}

type Survey struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Theme       string         `json:"theme,omitempty"`
	IsActive    bool           `json:"is_active"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AutoCreateRuns reports whether the weekly scheduler manages runs for this survey.
func (s *Survey) AutoCreateRuns() bool {
	if s == nil || s.Metadata == nil {
		return false
	}
	v, _ := s.Metadata["autoCreateRuns"].(bool)
	return v
}

// SurveyWithQuestions is a survey plus its questions ordered by display_order,
// each carrying its options ordered the same way.
type SurveyWithQuestions struct {
	Survey
	Questions []*Question `json:"questions"`
}

// QuestionByID returns the question with the given id, or nil.
func (s *SurveyWithQuestions) QuestionByID(id string) *Question {
	for _, q := range s.Questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

type Question struct {
	ID           string         `json:"id"`
	SurveyID     string         `json:"survey_id"`
	QuestionKey  string         `json:"question_key"`
	QuestionText string         `json:"question_text"`
	QuestionType QuestionType   `json:"question_type"`
	DisplayOrder int            `json:"display_order"`
	IsRequired   bool           `json:"is_required"`
	Config       QuestionConfig `json:"-"`
	Options      []*Option      `json:"options,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ResolvedConfig returns the question's config, falling back to the default
// template config for its type when none was stored.
func (q *Question) ResolvedConfig() QuestionConfig {
	if q.Config != nil {
		return q.Config
	}
	if t, ok := TemplateFor(InferUIVariant(q.QuestionType)); ok {
		return t.NewConfig()
	}
	return TextEntryConfig{}
}

// Section returns the free-text section label from the question config.
func (q *Question) Section() string {
	if q == nil || q.Config == nil {
		return ""
	}
	return q.Config.Common().Section
}

type questionJSON Question

func (q Question) MarshalJSON() ([]byte, error) {
	cfg, err := MarshalQuestionConfig(q.ResolvedConfig())
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		questionJSON
		Config json.RawMessage `json:"config"`
	}{questionJSON(q), cfg})
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var wire struct {
		questionJSON
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*q = Question(wire.questionJSON)
	cfg, err := UnmarshalQuestionConfig(wire.Config, q.QuestionType)
	if err != nil {
		return err
	}
	q.Config = cfg
	return nil
}

type Option struct {
	ID           string         `json:"id"`
	QuestionID   string         `json:"question_id"`
	OptionKey    string         `json:"option_key"`
	OptionText   string         `json:"option_text"`
	DisplayOrder int            `json:"display_order"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SurveyRun is a time-boxed acceptance window for a survey.
type SurveyRun struct {
	ID                    string         `json:"id"`
	SurveyID              string         `json:"survey_id"`
	RunKey                string         `json:"run_key"`
	Title                 string         `json:"title,omitempty"`
	StartsAt              time.Time      `json:"starts_at"`
	EndsAt                *time.Time     `json:"ends_at"`
	MaxSubmissionsPerUser int            `json:"max_submissions_per_user"`
	IsActive              bool           `json:"is_active"`
	Metadata              map[string]any `json:"metadata"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// OpenAt reports whether the run accepts responses at t.
func (r *SurveyRun) OpenAt(t time.Time) bool {
	if r == nil || !r.IsActive {
		return false
	}
	if t.Before(r.StartsAt) {
		return false
	}
	return r.EndsAt == nil || t.Before(*r.EndsAt)
}

type Response struct {
	ID               string         `json:"id"`
	SurveyRunID      string         `json:"survey_run_id"`
	UserID           string         `json:"user_id"`
	SubmissionNumber int            `json:"submission_number"`
	CompletedAt      *time.Time     `json:"completed_at"`
	Metadata         map[string]any `json:"metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	Answers          []*Answer      `json:"answers,omitempty"`
}

// Answer is one stored value for one question. Exactly one of the value
// fields is set, depending on the question type.
type Answer struct {
	ID           string          `json:"id"`
	ResponseID   string          `json:"response_id"`
	QuestionID   string          `json:"question_id"`
	OptionID     *string         `json:"option_id"`
	TextValue    *string         `json:"text_value"`
	NumericValue *float64        `json:"numeric_value"`
	JSONValue    json.RawMessage `json:"json_value"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AnswerInput mirrors the client payload for a single answer. OptionID may
// carry an option_key or a raw option id.
type AnswerInput struct {
	QuestionID   string          `json:"questionId"`
	OptionID     *string         `json:"optionId,omitempty"`
	TextValue    *string         `json:"textValue,omitempty"`
	NumericValue *float64        `json:"numericValue,omitempty"`
	JSONValue    json.RawMessage `json:"jsonValue,omitempty"`
}

// ActiveRunView is what the play UI needs to render a survey.
type ActiveRunView struct {
	ActiveRun       *SurveyRun           `json:"activeRun"`
	Survey          *SurveyWithQuestions `json:"survey"`
	UserSubmissions int                  `json:"userSubmissions"`
	CanSubmit       bool                 `json:"canSubmit"`
}
