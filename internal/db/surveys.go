package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/therealityreport/trr-surveys/internal/services"
)

const surveyColumns = `id, slug, title, description, theme, is_active, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*services.Survey, error) {
	var (
		sv   services.Survey
		meta []byte
	)
	if err := row.Scan(&sv.ID, &sv.Slug, &sv.Title, &sv.Description, &sv.Theme, &sv.IsActive, &meta, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
		return nil, err
	}
	m, err := decodeMap(meta)
	if err != nil {
		return nil, err
	}
	sv.Metadata = m
	sv.CreatedAt = sv.CreatedAt.UTC()
	sv.UpdatedAt = sv.UpdatedAt.UTC()
	return &sv, nil
}

func (s *Store) ListSurveys(ctx context.Context) ([]*services.Survey, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+surveyColumns+` FROM surveys ORDER BY created_at DESC, slug`)
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	defer rows.Close()
	var out []*services.Survey
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Store) GetSurveyBySlug(ctx context.Context, slug string) (*services.Survey, error) {
	sv, err := scanSurvey(s.queryRow(ctx, s.db, `SELECT `+surveyColumns+` FROM surveys WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey %q: %w", slug, err)
	}
	return sv, nil
}

// GetSurveyWithQuestions loads a survey with questions and options, both
// ordered by display_order.
func (s *Store) GetSurveyWithQuestions(ctx context.Context, slug string) (*services.SurveyWithQuestions, error) {
	sv, err := s.GetSurveyBySlug(ctx, slug)
	if err != nil || sv == nil {
		return nil, err
	}
	out := &services.SurveyWithQuestions{Survey: *sv, Questions: []*services.Question{}}

	rows, err := s.query(ctx, s.db, `SELECT id, survey_id, question_key, question_text, question_type, display_order, is_required, config, created_at, updated_at
		FROM survey_questions WHERE survey_id = ? ORDER BY display_order, created_at, id`, sv.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byID := map[string]*services.Question{}
	for rows.Next() {
		var (
			q   services.Question
			cfg []byte
		)
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.QuestionKey, &q.QuestionText, &q.QuestionType, &q.DisplayOrder, &q.IsRequired, &cfg, &q.CreatedAt, &q.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.CreatedAt = q.CreatedAt.UTC()
		q.UpdatedAt = q.UpdatedAt.UTC()
		if strings.TrimSpace(string(cfg)) != "{}" {
			c, err := services.UnmarshalQuestionConfig(cfg, q.QuestionType)
			if err != nil {
				// keep serving the survey; the question falls back to its type's default
				s.log.Sugar().Warnw("stored question config is invalid", "question", q.ID, "error", err)
			} else {
				q.Config = c
			}
		}
		out.Questions = append(out.Questions, &q)
		byID[q.ID] = &q
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.query(ctx, s.db, `SELECT o.id, o.question_id, o.option_key, o.option_text, o.display_order, o.metadata, o.created_at
		FROM question_options o JOIN survey_questions q ON q.id = o.question_id
		WHERE q.survey_id = ? ORDER BY o.display_order, o.created_at, o.id`, sv.ID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if q := byID[o.QuestionID]; q != nil {
			q.Options = append(q.Options, o)
		}
	}
	return out, rows.Err()
}

func scanOption(row rowScanner) (*services.Option, error) {
	var (
		o    services.Option
		meta []byte
	)
	if err := row.Scan(&o.ID, &o.QuestionID, &o.OptionKey, &o.OptionText, &o.DisplayOrder, &meta, &o.CreatedAt); err != nil {
		return nil, err
	}
	m, err := decodeMap(meta)
	if err != nil {
		return nil, err
	}
	o.Metadata = m
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *Store) InsertSurvey(ctx context.Context, sv *services.Survey) error {
	meta, err := encodeJSON(sv.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `INSERT INTO surveys (`+surveyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Slug, sv.Title, sv.Description, sv.Theme, sv.IsActive, meta, sv.CreatedAt.UTC(), sv.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (s *Store) UpdateSurvey(ctx context.Context, sv *services.Survey) error {
	meta, err := encodeJSON(sv.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `UPDATE surveys SET slug = ?, title = ?, description = ?, theme = ?, is_active = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		sv.Slug, sv.Title, sv.Description, sv.Theme, sv.IsActive, meta, sv.UpdatedAt.UTC(), sv.ID)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	return nil
}

// DeleteSurvey removes the survey; questions, options and runs cascade.
func (s *Store) DeleteSurvey(ctx context.Context, id string) error {
	if err := s.exec(ctx, s.db, `DELETE FROM surveys WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	return nil
}

func (s *Store) InsertQuestion(ctx context.Context, q *services.Question) error {
	cfg, err := services.MarshalQuestionConfig(q.Config)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := s.exec(ctx, tx, `INSERT INTO survey_questions (id, survey_id, question_key, question_text, question_type, display_order, is_required, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.SurveyID, q.QuestionKey, q.QuestionText, string(q.QuestionType), q.DisplayOrder, q.IsRequired, string(cfg), q.CreatedAt.UTC(), q.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for _, o := range q.Options {
			if err := s.insertOption(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpdateQuestion(ctx context.Context, q *services.Question) error {
	cfg, err := services.MarshalQuestionConfig(q.Config)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `UPDATE survey_questions SET question_key = ?, question_text = ?, question_type = ?, display_order = ?, is_required = ?, config = ?, updated_at = ? WHERE id = ?`,
		q.QuestionKey, q.QuestionText, string(q.QuestionType), q.DisplayOrder, q.IsRequired, string(cfg), q.UpdatedAt.UTC(), q.ID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.exec(ctx, s.db, `DELETE FROM survey_questions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (s *Store) insertOption(ctx context.Context, q execer, o *services.Option) error {
	meta, err := encodeJSON(o.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, q, `INSERT INTO question_options (id, question_id, option_key, option_text, display_order, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.QuestionID, o.OptionKey, o.OptionText, o.DisplayOrder, meta, o.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert option %q: %w", o.OptionKey, err)
	}
	return nil
}

func (s *Store) InsertOption(ctx context.Context, o *services.Option) error {
	return s.insertOption(ctx, s.db, o)
}

func (s *Store) UpdateOption(ctx context.Context, o *services.Option) error {
	meta, err := encodeJSON(o.Metadata)
	if err != nil {
		return err
	}
	err = s.exec(ctx, s.db, `UPDATE question_options SET option_key = ?, option_text = ?, display_order = ?, metadata = ? WHERE id = ?`,
		o.OptionKey, o.OptionText, o.DisplayOrder, meta, o.ID)
	if err != nil {
		return fmt.Errorf("update option: %w", err)
	}
	return nil
}

func (s *Store) DeleteOption(ctx context.Context, id string) error {
	if err := s.exec(ctx, s.db, `DELETE FROM question_options WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete option: %w", err)
	}
	return nil
}
