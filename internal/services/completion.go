package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const castMultiSelectDefault = 2

// GridCoord is one two-axis-grid placement.
type GridCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AnswerValue collapses an answer payload into the single value the play UI
// works with: option token, text, number, or the decoded JSON value.
func AnswerValue(in AnswerInput) (any, error) {
	switch {
	case in.OptionID != nil:
		return *in.OptionID, nil
	case in.TextValue != nil:
		return *in.TextValue, nil
	case in.NumericValue != nil:
		return *in.NumericValue, nil
	case len(bytes.TrimSpace(in.JSONValue)) > 0:
		var v any
		if err := json.Unmarshal(in.JSONValue, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

// IsQuestionComplete reports whether value counts as an answer to q for
// required-question gating and progress display.
func IsQuestionComplete(q *Question, value any) bool {
	if q == nil || value == nil {
		return false
	}
	cfg := q.ResolvedConfig()
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return true
	case []string:
		return len(v) > 0 && len(v) >= minSelections(cfg)
	case []any:
		return len(v) > 0 && len(v) >= minSelections(cfg)
	case map[string]any:
		return isObjectComplete(q, cfg, v)
	}
	return false
}

func minSelections(cfg QuestionConfig) int {
	switch c := cfg.(type) {
	case MultiSelectChoiceConfig:
		if c.MinSelections != nil {
			return *c.MinSelections
		}
	case CastMultiSelectConfig:
		if c.MinSelections != nil {
			return *c.MinSelections
		}
		return castMultiSelectDefault
	}
	return 0
}

func isObjectComplete(q *Question, cfg QuestionConfig, v map[string]any) bool {
	if rows, ok := matrixRows(cfg); ok {
		if len(rows) == 0 {
			return false
		}
		for _, row := range rows {
			s, _ := v[row.ID].(string)
			if strings.TrimSpace(s) == "" {
				return false
			}
		}
		return true
	}
	if grid, ok := cfg.(TwoAxisGridConfig); ok {
		subjects := GridSubjects(q, grid)
		if len(subjects) == 0 {
			return false
		}
		placed := CoercePlacements(v, subjects, grid.GridExtent())
		for _, s := range subjects {
			if _, ok := placed[s.ID]; !ok {
				return false
			}
		}
		return true
	}
	return len(v) > 0
}

// GridSubjects returns config rows, or the question's options when no rows
// are configured.
func GridSubjects(q *Question, cfg TwoAxisGridConfig) []MatrixRow {
	if len(cfg.Rows) > 0 {
		out := make([]MatrixRow, 0, len(cfg.Rows))
		for _, r := range cfg.Rows {
			if r.ID == "" {
				continue
			}
			out = append(out, r)
		}
		return out
	}
	out := make([]MatrixRow, 0, len(q.Options))
	for _, o := range q.Options {
		out = append(out, MatrixRow{ID: o.OptionKey, Label: o.OptionText, Img: optionImage(o)})
	}
	return out
}

func optionImage(o *Option) string {
	for _, k := range []string{"imagePath", "imageUrl"} {
		if s, ok := o.Metadata[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// CoercePlacements keeps placements for known subjects with finite
// coordinates, rounded and clamped to [-extent, extent].
func CoercePlacements(value map[string]any, subjects []MatrixRow, extent int) map[string]GridCoord {
	allowed := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		allowed[s.ID] = true
	}
	out := map[string]GridCoord{}
	for id, raw := range value {
		if !allowed[id] {
			continue
		}
		coord, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		x, okX := toFinite(coord["x"])
		y, okY := toFinite(coord["y"])
		if !okX || !okY {
			continue
		}
		out[id] = GridCoord{X: clampInt(x, extent), Y: clampInt(y, extent)}
	}
	return out
}

func toFinite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampInt(v float64, extent int) int {
	r := int(math.Round(v))
	if r < -extent {
		return -extent
	}
	if r > extent {
		return extent
	}
	return r
}
