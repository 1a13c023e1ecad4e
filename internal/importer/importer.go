// Package importer loads survey definitions from YAML files and creates them
// through the admin survey service.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/therealityreport/trr-surveys/internal/services"
	"github.com/therealityreport/trr-surveys/internal/utils"
)

// Definition is the on-disk shape of one survey.
type Definition struct {
	Slug        string         `yaml:"slug"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description,omitempty"`
	Theme       string         `yaml:"theme,omitempty"`
	IsActive    *bool          `yaml:"is_active,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
	Questions   []QuestionDef  `yaml:"questions"`
	Runs        []RunDef       `yaml:"runs,omitempty"`
}

type QuestionDef struct {
	Key          string         `yaml:"key"`
	Text         string         `yaml:"text"`
	Type         string         `yaml:"type,omitempty"`
	UIVariant    string         `yaml:"ui_variant,omitempty"`
	Required     bool           `yaml:"required,omitempty"`
	DisplayOrder *int           `yaml:"display_order,omitempty"`
	Config       map[string]any `yaml:"config,omitempty"`
	Options      []OptionDef    `yaml:"options,omitempty"`
}

type OptionDef struct {
	Key      string         `yaml:"key"`
	Text     string         `yaml:"text"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type RunDef struct {
	Key                   string     `yaml:"key"`
	Title                 string     `yaml:"title,omitempty"`
	StartsAt              time.Time  `yaml:"starts_at"`
	EndsAt                *time.Time `yaml:"ends_at,omitempty"`
	MaxSubmissionsPerUser *int       `yaml:"max_submissions_per_user,omitempty"`
}

// Parse decodes a single survey definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse survey definition: %w", err)
	}
	if strings.TrimSpace(def.Title) == "" {
		return nil, fmt.Errorf("parse survey definition: title required")
	}
	return &def, nil
}

func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Result reports what an import did.
type Result struct {
	Slug      string
	Skipped   bool
	Questions int
	Runs      int
}

type Importer struct {
	surveys *services.SurveyService
	log     *zap.Logger
}

func New(surveys *services.SurveyService, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{surveys: surveys, log: log}
}

// Import creates the survey, its questions and its runs. A survey whose slug
// already exists is left untouched. When any question or run is rejected the
// partially created survey is removed again.
func (im *Importer) Import(ctx context.Context, def *Definition) (*Result, error) {
	slugSource := def.Slug
	if strings.TrimSpace(slugSource) == "" {
		slugSource = def.Title
	}
	slug := utils.Slugify(slugSource)
	res := &Result{Slug: slug}

	_, err := im.surveys.GetSurvey(ctx, slug)
	if err == nil {
		im.log.Info("survey already exists, skipping import", zap.String("slug", slug))
		res.Skipped = true
		return res, nil
	}
	if se, ok := services.AsServiceError(err); !ok || se.Code != services.ErrorNotFound {
		return nil, err
	}

	sv, err := im.surveys.CreateSurvey(ctx, services.SurveyInput{
		Slug:        &slug,
		Title:       &def.Title,
		Description: &def.Description,
		Theme:       &def.Theme,
		IsActive:    def.IsActive,
		Metadata:    def.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := im.populate(ctx, sv.Slug, def, res); err != nil {
		if derr := im.surveys.DeleteSurvey(ctx, sv.Slug); derr != nil {
			im.log.Warn("rollback of partial import failed", zap.String("slug", sv.Slug), zap.Error(derr))
		}
		return nil, err
	}
	im.log.Info("survey imported", zap.String("slug", sv.Slug), zap.Int("questions", res.Questions), zap.Int("runs", res.Runs))
	return res, nil
}

func (im *Importer) populate(ctx context.Context, slug string, def *Definition, res *Result) error {
	for i, qd := range def.Questions {
		in, err := questionInput(qd)
		if err != nil {
			return fmt.Errorf("question %d (%s): %w", i, qd.Key, err)
		}
		if _, err := im.surveys.CreateQuestion(ctx, slug, in); err != nil {
			return fmt.Errorf("question %d (%s): %w", i, qd.Key, err)
		}
		res.Questions++
	}
	for _, rd := range def.Runs {
		in := services.RunInput{
			RunKey:                &rd.Key,
			Title:                 &rd.Title,
			StartsAt:              &rd.StartsAt,
			EndsAt:                rd.EndsAt,
			MaxSubmissionsPerUser: rd.MaxSubmissionsPerUser,
		}
		if _, err := im.surveys.CreateRun(ctx, slug, in); err != nil {
			return fmt.Errorf("run %s: %w", rd.Key, err)
		}
		res.Runs++
	}
	return nil
}

func questionInput(qd QuestionDef) (services.QuestionInput, error) {
	in := services.QuestionInput{
		QuestionKey:  &qd.Key,
		QuestionText: &qd.Text,
		IsRequired:   &qd.Required,
		DisplayOrder: qd.DisplayOrder,
	}
	if qd.Type != "" {
		t, err := services.ParseQuestionType(qd.Type)
		if err != nil {
			return in, err
		}
		in.QuestionType = &t
	}
	if qd.UIVariant != "" {
		v := services.UIVariant(qd.UIVariant)
		in.UIVariant = &v
	}
	if len(qd.Config) > 0 {
		cfg := qd.Config
		if _, ok := cfg["uiVariant"]; !ok && qd.UIVariant != "" {
			cfg["uiVariant"] = qd.UIVariant
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			return in, fmt.Errorf("encode config: %w", err)
		}
		in.Config = raw
	}
	for _, od := range qd.Options {
		in.Options = append(in.Options, services.OptionInput{
			OptionKey:  &od.Key,
			OptionText: &od.Text,
			Metadata:   od.Metadata,
		})
	}
	return in, nil
}
