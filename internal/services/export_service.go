package services

import (
	"context"
	"time"
)

type ExportStore interface {
	GetSurveyWithQuestions(ctx context.Context, slug string) (*SurveyWithQuestions, error)
	GetRun(ctx context.Context, id string) (*SurveyRun, error)
	ListResponses(ctx context.Context, runID string) ([]*Response, error)
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
	now   func() time.Time
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ExportRun renders every response of a run as CSV.
func (s *ExportService) ExportRun(ctx context.Context, slug, runID string) (*ExportResult, error) {
	if runID == "" {
		return nil, NewInvalidError("run id required")
	}
	survey, err := s.store.GetSurveyWithQuestions(ctx, slug)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, NewNotFoundError("survey not found")
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.SurveyID != survey.ID {
		return nil, NewNotFoundError("run not found")
	}
	responses, err := s.store.ListResponses(ctx, runID)
	if err != nil {
		return nil, err
	}
	data, err := ExportRunCSV(survey, responses)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    ExportFilename(survey.Slug, run.RunKey, s.now()),
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}
