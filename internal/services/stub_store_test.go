package services

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// stubStore is an in-memory SurveyStore/ResponseStore for service tests.
type stubStore struct {
	surveys   map[string]*Survey
	questions map[string]*Question
	options   map[string]*Option
	runs      map[string]*SurveyRun
	responses []*Response

	insertErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		surveys:   map[string]*Survey{},
		questions: map[string]*Question{},
		options:   map[string]*Option{},
		runs:      map[string]*SurveyRun{},
	}
}

func (s *stubStore) ListSurveys(_ context.Context) ([]*Survey, error) {
	out := make([]*Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		cp := *sv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *stubStore) GetSurveyBySlug(_ context.Context, slug string) (*Survey, error) {
	for _, sv := range s.surveys {
		if sv.Slug == slug {
			cp := *sv
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) GetSurveyWithQuestions(ctx context.Context, slug string) (*SurveyWithQuestions, error) {
	sv, _ := s.GetSurveyBySlug(ctx, slug)
	if sv == nil {
		return nil, nil
	}
	out := &SurveyWithQuestions{Survey: *sv}
	for _, q := range s.questions {
		if q.SurveyID != sv.ID {
			continue
		}
		cp := *q
		cp.Options = nil
		for _, o := range s.options {
			if o.QuestionID == q.ID {
				oc := *o
				cp.Options = append(cp.Options, &oc)
			}
		}
		sort.Slice(cp.Options, func(i, j int) bool { return cp.Options[i].DisplayOrder < cp.Options[j].DisplayOrder })
		out.Questions = append(out.Questions, &cp)
	}
	sort.Slice(out.Questions, func(i, j int) bool { return out.Questions[i].DisplayOrder < out.Questions[j].DisplayOrder })
	return out, nil
}

func (s *stubStore) InsertSurvey(_ context.Context, sv *Survey) error {
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *stubStore) UpdateSurvey(_ context.Context, sv *Survey) error {
	if _, ok := s.surveys[sv.ID]; !ok {
		return NewNotFoundError("survey not found")
	}
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

func (s *stubStore) DeleteSurvey(_ context.Context, id string) error {
	delete(s.surveys, id)
	return nil
}

func (s *stubStore) InsertQuestion(_ context.Context, q *Question) error {
	cp := *q
	cp.Options = nil
	s.questions[q.ID] = &cp
	for _, o := range q.Options {
		oc := *o
		s.options[o.ID] = &oc
	}
	return nil
}

func (s *stubStore) UpdateQuestion(_ context.Context, q *Question) error {
	cp := *q
	cp.Options = nil
	s.questions[q.ID] = &cp
	return nil
}

func (s *stubStore) DeleteQuestion(_ context.Context, id string) error {
	delete(s.questions, id)
	return nil
}

func (s *stubStore) InsertOption(_ context.Context, o *Option) error {
	cp := *o
	s.options[o.ID] = &cp
	return nil
}

func (s *stubStore) UpdateOption(ctx context.Context, o *Option) error {
	return s.InsertOption(ctx, o)
}

func (s *stubStore) DeleteOption(_ context.Context, id string) error {
	delete(s.options, id)
	return nil
}

func (s *stubStore) ListRuns(_ context.Context, surveyID string) ([]*SurveyRun, error) {
	var out []*SurveyRun
	for _, r := range s.runs {
		if r.SurveyID == surveyID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

func (s *stubStore) GetRun(_ context.Context, id string) (*SurveyRun, error) {
	if r, ok := s.runs[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) GetRunByKey(_ context.Context, surveyID, runKey string) (*SurveyRun, error) {
	for _, r := range s.runs {
		if r.SurveyID == surveyID && r.RunKey == runKey {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) InsertRun(_ context.Context, run *SurveyRun) error {
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *stubStore) UpdateRun(ctx context.Context, run *SurveyRun) error {
	return s.InsertRun(ctx, run)
}

func (s *stubStore) DeleteRun(_ context.Context, id string) error {
	delete(s.runs, id)
	return nil
}

func (s *stubStore) ListResponses(_ context.Context, runID string) ([]*Response, error) {
	var out []*Response
	for _, r := range s.responses {
		if r.SurveyRunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) CountResponses(ctx context.Context, runID string) (int, error) {
	rs, _ := s.ListResponses(ctx, runID)
	return len(rs), nil
}

func (s *stubStore) GetActiveRun(_ context.Context, surveyID string, now time.Time) (*SurveyRun, error) {
	var best *SurveyRun
	for _, r := range s.runs {
		if r.SurveyID != surveyID || !r.OpenAt(now) {
			continue
		}
		if best == nil || r.StartsAt.After(best.StartsAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *stubStore) CountUserSubmissions(_ context.Context, runID, userID string) (int, error) {
	n := 0
	for _, r := range s.responses {
		if r.SurveyRunID == runID && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *stubStore) InsertResponse(ctx context.Context, resp *Response, now time.Time) (*Response, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	run := s.runs[resp.SurveyRunID]
	if !run.OpenAt(now) {
		return nil, ErrRunNotOpen
	}
	n, _ := s.CountUserSubmissions(ctx, resp.SurveyRunID, resp.UserID)
	if !CanSubmit(n, run.MaxSubmissionsPerUser) {
		return nil, ErrMaxSubmissions
	}
	cp := *resp
	cp.SubmissionNumber = n + 1
	s.responses = append(s.responses, &cp)
	return &cp, nil
}

type recordingInvalidator struct {
	slugs []string
}

func (r *recordingInvalidator) InvalidateSurvey(_ context.Context, slug string) error {
	r.slugs = append(r.slugs, slug)
	return nil
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}
