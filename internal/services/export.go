package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var exportBaseColumns = []string{"response_id", "created_at", "user_id", "submission_number", "completed_at"}

// ExportRunCSV renders one row per response and one column per question,
// in survey question order. Option ids are rendered as option text.
func ExportRunCSV(survey *SurveyWithQuestions, responses []*Response) ([]byte, error) {
	header := append([]string{}, exportBaseColumns...)
	indexes := make([]*OptionIndex, len(survey.Questions))
	for i, q := range survey.Questions {
		header = append(header, q.QuestionKey)
		indexes[i] = NewOptionIndex(q.Options)
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range responses {
		byQuestion := make(map[string]*Answer, len(r.Answers))
		for _, a := range r.Answers {
			byQuestion[a.QuestionID] = a
		}
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UserID,
			strconv.Itoa(r.SubmissionNumber),
			completed,
		}
		for i, q := range survey.Questions {
			row = append(row, answerCell(q, indexes[i], byQuestion[q.ID]))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func answerCell(q *Question, idx *OptionIndex, a *Answer) string {
	if a == nil {
		return ""
	}
	optionText := func(id string) string {
		if o := idx.ByID(id); o != nil {
			return o.OptionText
		}
		return id
	}
	switch q.QuestionType {
	case QuestionSingleChoice:
		if a.OptionID == nil {
			return ""
		}
		return optionText(*a.OptionID)
	case QuestionFreeText:
		return deref(a.TextValue)
	case QuestionNumeric:
		return formatNumber(a.NumericValue)
	case QuestionMultiChoice, QuestionRanking:
		return joinOptionList(a.JSONValue, optionText)
	}
	// likert answers carry whichever value their variant stores
	switch {
	case a.NumericValue != nil:
		return formatNumber(a.NumericValue)
	case a.OptionID != nil:
		return optionText(*a.OptionID)
	case a.TextValue != nil:
		return *a.TextValue
	case len(a.JSONValue) > 0:
		return string(a.JSONValue)
	}
	return ""
}

func formatNumber(n *float64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatFloat(*n, 'f', -1, 64)
}

func joinOptionList(raw json.RawMessage, optionText func(string) string) string {
	if len(raw) == 0 {
		return ""
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var single string
		if json.Unmarshal(raw, &single) == nil {
			return optionText(single)
		}
		return string(raw)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			parts = append(parts, optionText(s))
			continue
		}
		b, _ := json.Marshal(item)
		parts = append(parts, string(b))
	}
	return strings.Join(parts, " | ")
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedDashes      = regexp.MustCompile(`-+`)
)

func sanitizeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ExportFilename builds "<slug>-<run_key>-responses-<timestamp>.csv".
func ExportFilename(slug, runKey string, at time.Time) string {
	if strings.TrimSpace(runKey) == "" {
		runKey = "run"
	}
	stamp := at.UTC().Format("2006-01-02-15-04-05")
	return sanitizeFilenamePart(slug) + "-" + sanitizeFilenamePart(runKey) + "-responses-" + stamp + ".csv"
}
