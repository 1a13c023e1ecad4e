package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// UIVariant selects the input component and config shape of a question.
type UIVariant string

const (
	VariantNumericRanking           UIVariant = "numeric-ranking"
	VariantNumericScaleSlider       UIVariant = "numeric-scale-slider"
	VariantTextEntry                UIVariant = "text-entry"
	VariantTextMultipleChoice       UIVariant = "text-multiple-choice"
	VariantRankTextFields           UIVariant = "rank-text-fields"
	VariantImageMultipleChoice      UIVariant = "image-multiple-choice"
	VariantPosterSingleSelect       UIVariant = "poster-single-select"
	VariantCastSingleSelect         UIVariant = "cast-single-select"
	VariantReunionSeatingPrediction UIVariant = "reunion-seating-prediction"
	VariantDropdown                 UIVariant = "dropdown"
	VariantMultiSelectChoice        UIVariant = "multi-select-choice"
	VariantCastMultiSelect          UIVariant = "cast-multi-select"
	VariantPosterRankings           UIVariant = "poster-rankings"
	VariantPersonRankings           UIVariant = "person-rankings"
	VariantTwoChoiceSlider          UIVariant = "two-choice-slider"
	VariantTwoAxisGrid              UIVariant = "two-axis-grid"
	VariantAgreeLikertScale         UIVariant = "agree-likert-scale"
	VariantCastDecisionCard         UIVariant = "cast-decision-card"
)

// Legacy variant names still present in stored configs.
const (
	legacyCircleRanking     UIVariant = "circle-ranking"
	legacyRectangleRanking  UIVariant = "rectangle-ranking"
	legacyThreeChoiceSlider UIVariant = "three-choice-slider"
)

// CanonicalVariant maps legacy aliases onto their current variant.
func CanonicalVariant(v UIVariant) UIVariant {
	switch v {
	case legacyCircleRanking:
		return VariantPersonRankings
	case legacyRectangleRanking:
		return VariantPosterRankings
	case legacyThreeChoiceSlider:
		return VariantCastDecisionCard
	}
	return v
}

// InferUIVariant is the variant used when a stored config has no uiVariant.
func InferUIVariant(t QuestionType) UIVariant {
	switch t {
	case QuestionNumeric:
		return VariantNumericScaleSlider
	case QuestionRanking:
		return VariantPosterRankings
	case QuestionSingleChoice:
		return VariantTextMultipleChoice
	case QuestionMultiChoice:
		return VariantMultiSelectChoice
	case QuestionLikert:
		return VariantAgreeLikertScale
	default:
		return VariantTextEntry
	}
}

// QuestionConfig is the tagged union of per-variant config shapes. The
// concrete type determines the uiVariant; there is no free-form variant field.
type QuestionConfig interface {
	UIVariant() UIVariant
	Common() BaseConfig
	isQuestionConfig()
}

// StyleOverrides are the optional presentation knobs shared by every variant.
type StyleOverrides struct {
	QuestionTextColor              string   `json:"questionTextColor,omitempty"`
	QuestionTextFontFamily         string   `json:"questionTextFontFamily,omitempty"`
	QuestionTextLineHeight         *float64 `json:"questionTextLineHeight,omitempty"`
	QuestionTextLetterSpacing      *float64 `json:"questionTextLetterSpacing,omitempty"`
	SubTextHeadingColor            string   `json:"subTextHeadingColor,omitempty"`
	OptionTextColor                string   `json:"optionTextColor,omitempty"`
	OptionTextFontFamily           string   `json:"optionTextFontFamily,omitempty"`
	SelectedOptionTextColor        string   `json:"selectedOptionTextColor,omitempty"`
	SelectedOptionBackgroundColor  string   `json:"selectedOptionBackgroundColor,omitempty"`
	SelectedOptionBorderColor      string   `json:"selectedOptionBorderColor,omitempty"`
	ComponentBackgroundColor       string   `json:"componentBackgroundColor,omitempty"`
	PlaceholderShapeColor          string   `json:"placeholderShapeColor,omitempty"`
	PlaceholderShapeBorderColor    string   `json:"placeholderShapeBorderColor,omitempty"`
	PlaceholderTextColor           string   `json:"placeholderTextColor,omitempty"`
	UnassignedContainerColor       string   `json:"unassignedContainerColor,omitempty"`
	UnassignedContainerBorderColor string   `json:"unassignedContainerBorderColor,omitempty"`
	UnassignedCircleBorderColor    string   `json:"unassignedCircleBorderColor,omitempty"`
	UnassignedCircleSize           *float64 `json:"unassignedCircleSize,omitempty"`
	ShapeScale                     *float64 `json:"shapeScale,omitempty"`
	ButtonScale                    *float64 `json:"buttonScale,omitempty"`
}

// BaseConfig holds the fields every variant accepts.
type BaseConfig struct {
	Description string `json:"description,omitempty"`
	Section     string `json:"section,omitempty"`
	StyleOverrides
}

func (b BaseConfig) Common() BaseConfig { return b }
func (BaseConfig) isQuestionConfig()    {}

type CastMemberSubject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Img  string `json:"img,omitempty"`
}

// MatrixRow is one statement or subject of a matrix-style question.
type MatrixRow struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Img   string `json:"img,omitempty"`
}

type SliderChoice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type RangeLabels struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type TextValidation struct {
	Pattern      string `json:"pattern,omitempty"`
	MinLength    *int   `json:"minLength,omitempty"`
	MaxLength    *int   `json:"maxLength,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type NumericRankingConfig struct {
	BaseConfig
	Min    float64      `json:"min"`
	Max    float64      `json:"max"`
	Step   *float64     `json:"step,omitempty"`
	Labels *RangeLabels `json:"labels,omitempty"`
}

type NumericScaleSliderConfig struct {
	BaseConfig
	Min      float64            `json:"min"`
	Max      float64            `json:"max"`
	Step     *float64           `json:"step,omitempty"`
	MinLabel string             `json:"minLabel"`
	MaxLabel string             `json:"maxLabel"`
	Subject  *CastMemberSubject `json:"subject,omitempty"`
}

type TextEntryConfig struct {
	BaseConfig
	InputType   string          `json:"inputType,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Validation  *TextValidation `json:"validation,omitempty"`
}

type TextMultipleChoiceConfig struct {
	BaseConfig
}

type RankTextFieldsConfig struct {
	BaseConfig
}

type ImageMultipleChoiceConfig struct {
	BaseConfig
	Columns int `json:"columns,omitempty"`
}

type PosterSingleSelectConfig struct {
	BaseConfig
	Columns int `json:"columns,omitempty"`
}

type CastSingleSelectConfig struct {
	BaseConfig
	Columns int `json:"columns,omitempty"`
}

type ReunionSeatingPredictionConfig struct {
	BaseConfig
	HostName      string `json:"hostName,omitempty"`
	HostImagePath string `json:"hostImagePath,omitempty"`
}

type DropdownConfig struct {
	BaseConfig
	Placeholder string `json:"placeholder,omitempty"`
}

type MultiSelectChoiceConfig struct {
	BaseConfig
	MinSelections *int `json:"minSelections,omitempty"`
	MaxSelections *int `json:"maxSelections,omitempty"`
}

type CastMultiSelectConfig struct {
	BaseConfig
	MinSelections  *int   `json:"minSelections,omitempty"`
	MaxSelections  *int   `json:"maxSelections,omitempty"`
	SubTextHeading string `json:"subTextHeading,omitempty"`
}

type PosterRankingsConfig struct {
	BaseConfig
	LineLabelTop    string `json:"lineLabelTop,omitempty"`
	LineLabelBottom string `json:"lineLabelBottom,omitempty"`
}

type PersonRankingsConfig struct {
	BaseConfig
	LineLabelTop    string `json:"lineLabelTop,omitempty"`
	LineLabelBottom string `json:"lineLabelBottom,omitempty"`
}

type TwoChoiceSliderConfig struct {
	BaseConfig
	NeutralOption string `json:"neutralOption,omitempty"`
}

// TwoAxisGridConfig places subjects on a grid centered at (0,0) with
// coordinates in [-Extent, Extent] on both axes.
type TwoAxisGridConfig struct {
	BaseConfig
	Extent       *int        `json:"extent,omitempty"`
	XLabelLeft   string      `json:"xLabelLeft"`
	XLabelRight  string      `json:"xLabelRight"`
	YLabelBottom string      `json:"yLabelBottom"`
	YLabelTop    string      `json:"yLabelTop"`
	Rows         []MatrixRow `json:"rows"`
}

const defaultGridExtent = 5

// GridExtent returns the configured extent, or the default when unset or invalid.
func (c TwoAxisGridConfig) GridExtent() int {
	if c.Extent == nil || *c.Extent <= 0 {
		return defaultGridExtent
	}
	return *c.Extent
}

type AgreeLikertScaleConfig struct {
	BaseConfig
	Rows []MatrixRow `json:"rows"`
}

type CastDecisionCardConfig struct {
	BaseConfig
	Choices []SliderChoice `json:"choices"`
	Rows    []MatrixRow    `json:"rows"`
}

func (NumericRankingConfig) UIVariant() UIVariant           { return VariantNumericRanking }
func (NumericScaleSliderConfig) UIVariant() UIVariant       { return VariantNumericScaleSlider }
func (TextEntryConfig) UIVariant() UIVariant                { return VariantTextEntry }
func (TextMultipleChoiceConfig) UIVariant() UIVariant       { return VariantTextMultipleChoice }
func (RankTextFieldsConfig) UIVariant() UIVariant           { return VariantRankTextFields }
func (ImageMultipleChoiceConfig) UIVariant() UIVariant      { return VariantImageMultipleChoice }
func (PosterSingleSelectConfig) UIVariant() UIVariant       { return VariantPosterSingleSelect }
func (CastSingleSelectConfig) UIVariant() UIVariant         { return VariantCastSingleSelect }
func (ReunionSeatingPredictionConfig) UIVariant() UIVariant { return VariantReunionSeatingPrediction }
func (DropdownConfig) UIVariant() UIVariant                 { return VariantDropdown }
func (MultiSelectChoiceConfig) UIVariant() UIVariant        { return VariantMultiSelectChoice }
func (CastMultiSelectConfig) UIVariant() UIVariant          { return VariantCastMultiSelect }
func (PosterRankingsConfig) UIVariant() UIVariant           { return VariantPosterRankings }
func (PersonRankingsConfig) UIVariant() UIVariant           { return VariantPersonRankings }
func (TwoChoiceSliderConfig) UIVariant() UIVariant          { return VariantTwoChoiceSlider }
func (TwoAxisGridConfig) UIVariant() UIVariant              { return VariantTwoAxisGrid }
func (AgreeLikertScaleConfig) UIVariant() UIVariant         { return VariantAgreeLikertScale }
func (CastDecisionCardConfig) UIVariant() UIVariant         { return VariantCastDecisionCard }

// matrixRows returns the row list of matrix-style variants.
func matrixRows(cfg QuestionConfig) ([]MatrixRow, bool) {
	switch c := cfg.(type) {
	case AgreeLikertScaleConfig:
		return c.Rows, true
	case CastDecisionCardConfig:
		return c.Rows, true
	}
	return nil, false
}

// MarshalQuestionConfig encodes cfg with its uiVariant tag.
func MarshalQuestionConfig(cfg QuestionConfig) (json.RawMessage, error) {
	if cfg == nil {
		return json.RawMessage("{}"), nil
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.UIVariant(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.UIVariant(), err)
	}
	tag, _ := json.Marshal(cfg.UIVariant())
	fields["uiVariant"] = tag
	return json.Marshal(fields)
}

// UnmarshalQuestionConfig decodes a stored config, canonicalizing legacy
// variants and inferring the variant from t when the tag is absent. An
// empty payload yields a nil config.
func UnmarshalQuestionConfig(data []byte, t QuestionType) (QuestionConfig, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var head struct {
		UIVariant string `json:"uiVariant"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("%w: config: %v", ErrConfigInvalid, err)
	}
	variant := CanonicalVariant(UIVariant(strings.TrimSpace(head.UIVariant)))
	if variant == "" {
		variant = InferUIVariant(t)
	}
	return decodeVariant(variant, trimmed)
}

func decodeVariant(variant UIVariant, data []byte) (QuestionConfig, error) {
	switch variant {
	case VariantNumericRanking:
		return decodeAs[NumericRankingConfig](data)
	case VariantNumericScaleSlider:
		return decodeAs[NumericScaleSliderConfig](data)
	case VariantTextEntry:
		return decodeAs[TextEntryConfig](data)
	case VariantTextMultipleChoice:
		return decodeAs[TextMultipleChoiceConfig](data)
	case VariantRankTextFields:
		return decodeAs[RankTextFieldsConfig](data)
	case VariantImageMultipleChoice:
		return decodeAs[ImageMultipleChoiceConfig](data)
	case VariantPosterSingleSelect:
		return decodeAs[PosterSingleSelectConfig](data)
	case VariantCastSingleSelect:
		return decodeAs[CastSingleSelectConfig](data)
	case VariantReunionSeatingPrediction:
		return decodeAs[ReunionSeatingPredictionConfig](data)
	case VariantDropdown:
		return decodeAs[DropdownConfig](data)
	case VariantMultiSelectChoice:
		return decodeAs[MultiSelectChoiceConfig](data)
	case VariantCastMultiSelect:
		return decodeAs[CastMultiSelectConfig](data)
	case VariantPosterRankings:
		return decodeAs[PosterRankingsConfig](data)
	case VariantPersonRankings:
		return decodeAs[PersonRankingsConfig](data)
	case VariantTwoChoiceSlider:
		return decodeAs[TwoChoiceSliderConfig](data)
	case VariantTwoAxisGrid:
		return decodeAs[TwoAxisGridConfig](data)
	case VariantAgreeLikertScale:
		return decodeAs[AgreeLikertScaleConfig](data)
	case VariantCastDecisionCard:
		return decodeAs[CastDecisionCardConfig](data)
	}
	return nil, fmt.Errorf("%w: unknown uiVariant %q", ErrConfigInvalid, variant)
}

func decodeAs[T QuestionConfig](data []byte) (QuestionConfig, error) {
	var cfg T
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s config: %v", ErrConfigInvalid, cfg.UIVariant(), err)
	}
	return cfg, nil
}

// ValidateQuestionConfig checks that cfg is registered for t and that its
// variant-specific fields are coherent. Failures wrap ErrConfigInvalid.
func ValidateQuestionConfig(t QuestionType, cfg QuestionConfig) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown question_type %q", ErrConfigInvalid, t)
	}
	if cfg == nil {
		return nil
	}
	variant := cfg.UIVariant()
	if !variantAllowed(t, variant) {
		return fmt.Errorf("%w: uiVariant %q is not registered for question_type %q", ErrConfigInvalid, variant, t)
	}
	switch c := cfg.(type) {
	case NumericRankingConfig:
		return checkRange(variant, c.Min, c.Max, c.Step)
	case NumericScaleSliderConfig:
		return checkRange(variant, c.Min, c.Max, c.Step)
	case MultiSelectChoiceConfig:
		return checkSelections(variant, c.MinSelections, c.MaxSelections, 0)
	case CastMultiSelectConfig:
		return checkSelections(variant, c.MinSelections, c.MaxSelections, castMultiSelectDefault)
	case TwoAxisGridConfig:
		if c.Extent != nil && *c.Extent <= 0 {
			return fmt.Errorf("%w: %s extent must be positive", ErrConfigInvalid, variant)
		}
		return checkRows(variant, c.Rows)
	case AgreeLikertScaleConfig:
		return checkRows(variant, c.Rows)
	case CastDecisionCardConfig:
		if len(c.Choices) == 0 {
			return fmt.Errorf("%w: %s requires at least one choice", ErrConfigInvalid, variant)
		}
		seen := map[string]bool{}
		for _, ch := range c.Choices {
			v := strings.TrimSpace(ch.Value)
			if v == "" || seen[v] {
				return fmt.Errorf("%w: %s choice values must be unique and non-empty", ErrConfigInvalid, variant)
			}
			seen[v] = true
		}
		return checkRows(variant, c.Rows)
	case TextEntryConfig:
		if c.Validation != nil && c.Validation.MinLength != nil && c.Validation.MaxLength != nil &&
			*c.Validation.MinLength > *c.Validation.MaxLength {
			return fmt.Errorf("%w: %s minLength exceeds maxLength", ErrConfigInvalid, variant)
		}
		if c.Validation != nil && c.Validation.Pattern != "" {
			if _, err := regexp.Compile(c.Validation.Pattern); err != nil {
				return fmt.Errorf("%w: %s validation.pattern: %v", ErrConfigInvalid, variant, err)
			}
		}
	case TextMultipleChoiceConfig, RankTextFieldsConfig, ImageMultipleChoiceConfig,
		PosterSingleSelectConfig, CastSingleSelectConfig, ReunionSeatingPredictionConfig,
		DropdownConfig, PosterRankingsConfig, PersonRankingsConfig, TwoChoiceSliderConfig:
	default:
		return fmt.Errorf("%w: unsupported config type %T", ErrConfigInvalid, cfg)
	}
	return nil
}

func checkRange(variant UIVariant, lo, hi float64, step *float64) error {
	if lo >= hi {
		return fmt.Errorf("%w: %s min must be below max", ErrConfigInvalid, variant)
	}
	if step != nil && *step <= 0 {
		return fmt.Errorf("%w: %s step must be positive", ErrConfigInvalid, variant)
	}
	return nil
}

// checkSelections validates selection bounds. defaultMin applies when lo is
// unset; a nil hi means no upper limit.
func checkSelections(variant UIVariant, lo, hi *int, defaultMin int) error {
	least := defaultMin
	if lo != nil {
		least = *lo
	}
	if least < 0 {
		return fmt.Errorf("%w: %s minSelections must not be negative", ErrConfigInvalid, variant)
	}
	if hi != nil && *hi < 0 {
		return fmt.Errorf("%w: %s maxSelections must not be negative", ErrConfigInvalid, variant)
	}
	if hi != nil && *hi > 0 && least > *hi {
		return fmt.Errorf("%w: %s minSelections exceeds maxSelections", ErrConfigInvalid, variant)
	}
	return nil
}

func checkRows(variant UIVariant, rows []MatrixRow) error {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			return fmt.Errorf("%w: %s row ids must not be blank", ErrConfigInvalid, variant)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s duplicate row id %q", ErrConfigInvalid, variant, id)
		}
		seen[id] = true
	}
	return nil
}
