package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/therealityreport/trr-surveys/internal/services"
)

// InsertResponse stores resp and its answers in one transaction. The run
// window and the per-user cap are re-checked inside the transaction, after
// taking a lock scoped to (user, run), so concurrent submissions cannot
// exceed max_submissions_per_user. The returned copy carries the assigned
// submission_number.
func (s *Store) InsertResponse(ctx context.Context, resp *services.Response, now time.Time) (*services.Response, error) {
	out := *resp
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if s.dialect == DialectPostgres {
			if err := s.exec(ctx, tx, `SELECT pg_advisory_xact_lock(hashtext(?::text || ':' || ?::text))`, resp.UserID, resp.SurveyRunID); err != nil {
				return fmt.Errorf("lock submission: %w", err)
			}
		}
		run, err := s.getRun(ctx, tx, resp.SurveyRunID)
		if err != nil {
			return err
		}
		if !run.OpenAt(now) {
			return services.ErrRunNotOpen
		}
		prior, err := s.countUserSubmissions(ctx, tx, resp.SurveyRunID, resp.UserID)
		if err != nil {
			return err
		}
		if !services.CanSubmit(prior, run.MaxSubmissionsPerUser) {
			return services.ErrMaxSubmissions
		}
		out.SubmissionNumber = prior + 1

		meta, err := encodeJSON(out.Metadata)
		if err != nil {
			return err
		}
		err = s.exec(ctx, tx, `INSERT INTO survey_responses (id, survey_run_id, user_id, submission_number, completed_at, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			out.ID, out.SurveyRunID, out.UserID, out.SubmissionNumber, toNullTime(out.CompletedAt), meta, out.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
		for i, a := range out.Answers {
			var jsonValue sql.NullString
			if len(a.JSONValue) > 0 {
				jsonValue = sql.NullString{String: string(a.JSONValue), Valid: true}
			}
			err := s.exec(ctx, tx, `INSERT INTO response_answers (id, response_id, question_id, position, option_id, text_value, numeric_value, json_value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, out.ID, a.QuestionID, i, toNullString(a.OptionID), toNullString(a.TextValue), toNullFloat(a.NumericValue), jsonValue, a.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert answer for question %s: %w", a.QuestionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CountUserSubmissions(ctx context.Context, runID, userID string) (int, error) {
	return s.countUserSubmissions(ctx, s.db, runID, userID)
}

func (s *Store) countUserSubmissions(ctx context.Context, q execer, runID, userID string) (int, error) {
	var n int
	err := s.queryRow(ctx, q, `SELECT COUNT(1) FROM survey_responses WHERE survey_run_id = ? AND user_id = ?`, runID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

func (s *Store) CountResponses(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(1) FROM survey_responses WHERE survey_run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}

// ListResponses returns a run's responses newest first, each with its answers.
func (s *Store) ListResponses(ctx context.Context, runID string) ([]*services.Response, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, survey_run_id, user_id, submission_number, completed_at, metadata, created_at
		FROM survey_responses WHERE survey_run_id = ? ORDER BY created_at DESC, id DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := []*services.Response{}
	byID := map[string]*services.Response{}
	for rows.Next() {
		var (
			r         services.Response
			completed sql.NullTime
			meta      []byte
		)
		if err := rows.Scan(&r.ID, &r.SurveyRunID, &r.UserID, &r.SubmissionNumber, &completed, &meta, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan response: %w", err)
		}
		m, err := decodeMap(meta)
		if err != nil {
			rows.Close()
			return nil, err
		}
		r.Metadata = m
		r.CompletedAt = fromNullTime(completed)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.query(ctx, s.db, `SELECT a.id, a.response_id, a.question_id, a.option_id, a.text_value, a.numeric_value, a.json_value, a.created_at
		FROM response_answers a JOIN survey_responses r ON r.id = a.response_id
		WHERE r.survey_run_id = ? ORDER BY a.response_id, a.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a         services.Answer
			optionID  sql.NullString
			text      sql.NullString
			numeric   sql.NullFloat64
			jsonValue sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &optionID, &text, &numeric, &jsonValue, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.OptionID = fromNullString(optionID)
		a.TextValue = fromNullString(text)
		a.NumericValue = fromNullFloat(numeric)
		if jsonValue.Valid {
			a.JSONValue = []byte(jsonValue.String)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		if r := byID[a.ResponseID]; r != nil {
			r.Answers = append(r.Answers, &a)
		}
	}
	return out, rows.Err()
}
