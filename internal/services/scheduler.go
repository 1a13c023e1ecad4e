package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunSchedulerStore is the subset of SurveyStore the weekly scheduler uses.
type RunSchedulerStore interface {
	ListSurveys(ctx context.Context) ([]*Survey, error)
	GetRunByKey(ctx context.Context, surveyID, runKey string) (*SurveyRun, error)
	InsertRun(ctx context.Context, run *SurveyRun) error
}

// ScheduledRun reports what the scheduler did for one survey.
type ScheduledRun struct {
	SurveySlug string `json:"surveySlug"`
	RunKey     string `json:"runKey"`
	Created    bool   `json:"created"`
	Error      string `json:"error,omitempty"`
}

// RunScheduler opens one run per ISO week for surveys that opt in through
// metadata.autoCreateRuns.
type RunScheduler struct {
	store       RunSchedulerStore
	now         func() time.Time
	idGenerator func() string
}

func NewRunScheduler(store RunSchedulerStore) *RunScheduler {
	return &RunScheduler{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// WeeklyRunKey formats the ISO week containing t as "YYYY-Www".
func WeeklyRunKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeeklyWindow returns Monday 00:00 UTC through Sunday 23:59:59.999 UTC of
// the week containing t.
func WeeklyWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	end := monday.AddDate(0, 0, 7).Add(-time.Millisecond)
	return monday, end
}

// EnsureWeeklyRuns creates the current week's run for every opted-in active
// survey that lacks one. It is idempotent; a failure for one survey is
// recorded in its result and does not stop the others.
func (s *RunScheduler) EnsureWeeklyRuns(ctx context.Context) ([]ScheduledRun, error) {
	now := s.now()
	key := WeeklyRunKey(now)
	start, end := WeeklyWindow(now)

	surveys, err := s.store.ListSurveys(ctx)
	if err != nil {
		return nil, err
	}
	var results []ScheduledRun
	for _, sv := range surveys {
		if !sv.IsActive || !sv.AutoCreateRuns() {
			continue
		}
		res := ScheduledRun{SurveySlug: sv.Slug, RunKey: key}
		existing, err := s.store.GetRunByKey(ctx, sv.ID, key)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if existing == nil {
			ends := end
			run := &SurveyRun{
				ID:                    s.idGenerator(),
				SurveyID:              sv.ID,
				RunKey:                key,
				Title:                 "Week " + key,
				StartsAt:              start,
				EndsAt:                &ends,
				MaxSubmissionsPerUser: 1,
				IsActive:              true,
				Metadata:              map[string]any{"scheduled": true},
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := s.store.InsertRun(ctx, run); err != nil {
				res.Error = err.Error()
			} else {
				res.Created = true
			}
		}
		results = append(results, res)
	}
	return results, nil
}
