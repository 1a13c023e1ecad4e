package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/therealityreport/trr-surveys/internal/services"
)

const runColumns = `id, survey_id, run_key, title, starts_at, ends_at, max_submissions_per_user, is_active, metadata, created_at, updated_at`

func scanRun(row rowScanner) (*services.SurveyRun, error) {
	var (
		r    services.SurveyRun
		ends sql.NullTime
		meta []byte
	)
	if err := row.Scan(&r.ID, &r.SurveyID, &r.RunKey, &r.Title, &r.StartsAt, &ends, &r.MaxSubmissionsPerUser, &r.IsActive, &meta, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	m, err := decodeMap(meta)
	if err != nil {
		return nil, err
	}
	r.Metadata = m
	r.EndsAt = fromNullTime(ends)
	r.StartsAt = r.StartsAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func (s *Store) scanRuns(rows *sql.Rows) ([]*services.SurveyRun, error) {
	defer rows.Close()
	var out []*services.SurveyRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns the survey's runs, latest start first.
func (s *Store) ListRuns(ctx context.Context, surveyID string) ([]*services.SurveyRun, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+runColumns+` FROM survey_runs WHERE survey_id = ? ORDER BY starts_at DESC, id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return s.scanRuns(rows)
}

func (s *Store) GetRun(ctx context.Context, id string) (*services.SurveyRun, error) {
	return s.getRun(ctx, s.db, id)
}

func (s *Store) getRun(ctx context.Context, q execer, id string) (*services.SurveyRun, error) {
	r, err := scanRun(s.queryRow(ctx, q, `SELECT `+runColumns+` FROM survey_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) GetRunByKey(ctx context.Context, surveyID, runKey string) (*services.SurveyRun, error) {
	r, err := scanRun(s.queryRow(ctx, s.db, `SELECT `+runColumns+` FROM survey_runs WHERE survey_id = ? AND run_key = ?`, surveyID, runKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run by key: %w", err)
	}
	return r, nil
}

// GetActiveRun returns the open run with the latest starts_at at now, or nil.
// The window is checked with SurveyRun.OpenAt so both dialects share one
// definition of "open".
func (s *Store) GetActiveRun(ctx context.Context, surveyID string, now time.Time) (*services.SurveyRun, error) {
	runs, err := s.ListRuns(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.OpenAt(now) {
			return r, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertRun(ctx context.Context, r *services.SurveyRun) error {
	meta, err := encodeJSON(r.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `INSERT INTO survey_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SurveyID, r.RunKey, r.Title, r.StartsAt.UTC(), toNullTime(r.EndsAt), r.MaxSubmissionsPerUser, r.IsActive, meta, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, r *services.SurveyRun) error {
	meta, err := encodeJSON(r.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `UPDATE survey_runs SET run_key = ?, title = ?, starts_at = ?, ends_at = ?, max_submissions_per_user = ?, is_active = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		r.RunKey, r.Title, r.StartsAt.UTC(), toNullTime(r.EndsAt), r.MaxSubmissionsPerUser, r.IsActive, meta, r.UpdatedAt.UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if err := s.exec(ctx, s.db, `DELETE FROM survey_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
