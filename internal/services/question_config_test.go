package services

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalQuestionConfigDiscriminates(t *testing.T) {
	raw := `{"uiVariant":"cast-decision-card","section":"Cast","choices":[{"value":"keep","label":"Keep"}],"rows":[{"id":"r1","label":"Lisa"}]}`
	cfg, err := UnmarshalQuestionConfig([]byte(raw), QuestionLikert)
	require.NoError(t, err)

	want := CastDecisionCardConfig{
		BaseConfig: BaseConfig{Section: "Cast"},
		Choices:    []SliderChoice{{Value: "keep", Label: "Keep"}},
		Rows:       []MatrixRow{{ID: "r1", Label: "Lisa"}},
	}
	if diff := cmp.Diff(QuestionConfig(want), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalQuestionConfigCanonicalizesLegacy(t *testing.T) {
	cfg, err := UnmarshalQuestionConfig([]byte(`{"uiVariant":"circle-ranking","lineLabelTop":"TOP"}`), QuestionRanking)
	require.NoError(t, err)
	got, ok := cfg.(PersonRankingsConfig)
	require.True(t, ok, "got %T", cfg)
	assert.Equal(t, "TOP", got.LineLabelTop)
}

func TestUnmarshalQuestionConfigInfersVariant(t *testing.T) {
	cases := map[QuestionType]UIVariant{
		QuestionNumeric:      VariantNumericScaleSlider,
		QuestionRanking:      VariantPosterRankings,
		QuestionSingleChoice: VariantTextMultipleChoice,
		QuestionMultiChoice:  VariantMultiSelectChoice,
		QuestionLikert:       VariantAgreeLikertScale,
		QuestionFreeText:     VariantTextEntry,
	}
	for qt, want := range cases {
		cfg, err := UnmarshalQuestionConfig([]byte(`{"section":"A"}`), qt)
		require.NoError(t, err, qt)
		assert.Equal(t, want, cfg.UIVariant(), qt)
		assert.Equal(t, "A", cfg.Common().Section)
	}
}

func TestUnmarshalQuestionConfigEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		cfg, err := UnmarshalQuestionConfig([]byte(raw), QuestionNumeric)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	}
}

func TestUnmarshalQuestionConfigErrors(t *testing.T) {
	_, err := UnmarshalQuestionConfig([]byte(`{"uiVariant":"hologram"}`), QuestionNumeric)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = UnmarshalQuestionConfig([]byte(`{"uiVariant":"numeric-ranking","min":"low"}`), QuestionNumeric)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = UnmarshalQuestionConfig([]byte(`[1,2]`), QuestionNumeric)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestMarshalQuestionConfigInjectsVariant(t *testing.T) {
	raw, err := MarshalQuestionConfig(DropdownConfig{Placeholder: "Pick", BaseConfig: BaseConfig{Section: "Finale"}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]any{"uiVariant": "dropdown", "placeholder": "Pick", "section": "Finale"}, got)

	back, err := UnmarshalQuestionConfig(raw, QuestionSingleChoice)
	require.NoError(t, err)
	assert.Equal(t, DropdownConfig{Placeholder: "Pick", BaseConfig: BaseConfig{Section: "Finale"}}, back)
}

func TestValidateQuestionConfig(t *testing.T) {
	tests := []struct {
		name    string
		qt      QuestionType
		cfg     QuestionConfig
		wantErr bool
	}{
		{"registered", QuestionNumeric, NumericRankingConfig{Min: 0, Max: 10}, false},
		{"nil config", QuestionLikert, nil, false},
		{"wrong type", QuestionNumeric, DropdownConfig{}, true},
		{"unknown type", QuestionType("essay"), TextEntryConfig{}, true},
		{"inverted range", QuestionNumeric, NumericScaleSliderConfig{Min: 10, Max: 1}, true},
		{"zero step", QuestionNumeric, NumericRankingConfig{Min: 0, Max: 10, Step: f64(0)}, true},
		{"selections inverted", QuestionMultiChoice, MultiSelectChoiceConfig{MinSelections: intp(3), MaxSelections: intp(1)}, true},
		{"duplicate rows", QuestionLikert, AgreeLikertScaleConfig{Rows: []MatrixRow{{ID: "a"}, {ID: "a"}}}, true},
		{"blank row", QuestionLikert, TwoAxisGridConfig{Rows: []MatrixRow{{ID: " "}}}, true},
		{"grid negative extent", QuestionLikert, TwoAxisGridConfig{Extent: intp(-1)}, true},
		{"decision without choices", QuestionLikert, CastDecisionCardConfig{}, true},
		{"decision duplicate choice", QuestionLikert, CastDecisionCardConfig{Choices: []SliderChoice{{Value: "x"}, {Value: "x"}}}, true},
		{"text lengths inverted", QuestionFreeText, TextEntryConfig{Validation: &TextValidation{MinLength: intp(5), MaxLength: intp(2)}}, true},
		{"text pattern", QuestionFreeText, TextEntryConfig{Validation: &TextValidation{Pattern: `^[a-z]+$`}}, false},
		{"text pattern broken", QuestionFreeText, TextEntryConfig{Validation: &TextValidation{Pattern: "^[a-z+$"}}, true},
		{"cast open max", QuestionMultiChoice, CastMultiSelectConfig{MinSelections: intp(3)}, false},
		{"cast default min over max", QuestionMultiChoice, CastMultiSelectConfig{MaxSelections: intp(1)}, true},
		{"cast min over max", QuestionMultiChoice, CastMultiSelectConfig{MinSelections: intp(4), MaxSelections: intp(3)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestionConfig(tc.qt, tc.cfg)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuestionJSONRoundTripKeepsConfig(t *testing.T) {
	in := `{"id":"q1","survey_id":"s1","question_key":"k","question_text":"T","question_type":"likert","display_order":2,"is_required":true,
		"config":{"uiVariant":"three-choice-slider","choices":[{"value":"keep","label":"Keep"}],"rows":[{"id":"r1","label":"R"}]}}`
	var q Question
	require.NoError(t, json.Unmarshal([]byte(in), &q))
	require.IsType(t, CastDecisionCardConfig{}, q.Config)
	assert.Equal(t, 2, q.DisplayOrder)

	out, err := json.Marshal(&q)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	cfg := generic["config"].(map[string]any)
	assert.Equal(t, "cast-decision-card", cfg["uiVariant"])
}

func TestQuestionWithoutConfigMarshalsDefault(t *testing.T) {
	q := Question{ID: "q1", QuestionType: QuestionNumeric}
	out, err := json.Marshal(q)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	cfg := generic["config"].(map[string]any)
	assert.Equal(t, "numeric-scale-slider", cfg["uiVariant"])
	assert.Equal(t, "", q.Section())
}
