package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrCatalogInvalid wraps structural problems in the template catalog.
	ErrCatalogInvalid = errors.New("template catalog invalid")
	// ErrConfigInvalid wraps authoring errors: a uiVariant not registered for
	// the question type, a malformed config, or blank/duplicate option keys.
	ErrConfigInvalid = errors.New("question config invalid")

	ErrSurveyNotFound = errors.New("survey not found")
	ErrNoActiveRun    = errors.New("no active run")
	ErrRunNotOpen     = errors.New("survey run is not accepting responses")
	ErrMaxSubmissions = errors.New("maximum submissions reached")
	ErrAnonymous      = errors.New("sign in required")
)

// ProblemReason identifies why a single answer was rejected.
type ProblemReason string

const (
	ReasonUnknownQuestion  ProblemReason = "unknown_question"
	ReasonUnresolvedOption ProblemReason = "unresolved_option"
	ReasonMissingRequired  ProblemReason = "missing_required"
	ReasonInvalidValue     ProblemReason = "invalid_value"
	ReasonDuplicateAnswer  ProblemReason = "duplicate_answer"
)

type AnswerProblem struct {
	QuestionID  string        `json:"questionId"`
	QuestionKey string        `json:"questionKey,omitempty"`
	Reason      ProblemReason `json:"reason"`
	Detail      string        `json:"detail,omitempty"`
}

// SubmissionError rejects a whole submission, listing every offending answer.
type SubmissionError struct {
	Problems []AnswerProblem
}

func (e *SubmissionError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		label := p.QuestionKey
		if label == "" {
			label = p.QuestionID
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, p.Reason))
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// AsSubmissionError unwraps err into a *SubmissionError.
func AsSubmissionError(err error) (*SubmissionError, bool) {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
