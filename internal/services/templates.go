package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SeedOption pre-populates an option when an author picks a template.
type SeedOption struct {
	OptionKey  string `json:"option_key"`
	OptionText string `json:"option_text"`
}

// Template binds a uiVariant to its question type and authoring defaults.
type Template struct {
	UIVariant     UIVariant
	Label         string
	Description   string
	QuestionType  QuestionType
	DefaultConfig QuestionConfig
	SeedOptions   []SeedOption
	// UsesRows marks matrix-like variants that expect config.rows.
	UsesRows bool
}

// NewConfig returns a copy of the default config that callers may modify.
func (t Template) NewConfig() QuestionConfig {
	raw, err := MarshalQuestionConfig(t.DefaultConfig)
	if err != nil {
		return t.DefaultConfig
	}
	cfg, err := UnmarshalQuestionConfig(raw, t.QuestionType)
	if err != nil || cfg == nil {
		return t.DefaultConfig
	}
	return cfg
}

func (t Template) clone() Template {
	t.DefaultConfig = t.NewConfig()
	t.SeedOptions = append([]SeedOption(nil), t.SeedOptions...)
	return t
}

func (t Template) MarshalJSON() ([]byte, error) {
	cfg, err := MarshalQuestionConfig(t.DefaultConfig)
	if err != nil {
		return nil, err
	}
	seeds := t.SeedOptions
	if seeds == nil {
		seeds = []SeedOption{}
	}
	return json.Marshal(struct {
		UIVariant     UIVariant       `json:"uiVariant"`
		Label         string          `json:"label"`
		Description   string          `json:"description"`
		QuestionType  QuestionType    `json:"questionType"`
		DefaultConfig json.RawMessage `json:"defaultConfig"`
		SeedOptions   []SeedOption    `json:"seedOptions"`
		UsesRows      bool            `json:"usesRows"`
	}{t.UIVariant, t.Label, t.Description, t.QuestionType, cfg, seeds, t.UsesRows})
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

const (
	fontRudeSlab = `"Rude Slab Condensed", var(--font-sans), sans-serif`
	fontPlymouth = `"Plymouth Serial", var(--font-sans), sans-serif`
	fontGeoSlab  = `"Geometric Slabserif 712", var(--font-sans), serif`
)

var catalog = []Template{
	{
		UIVariant:    VariantNumericRanking,
		Label:        "Star rating (0-10)",
		Description:  "10-star rating with partial fills + slider + text entry.",
		QuestionType: QuestionNumeric,
		DefaultConfig: NumericRankingConfig{
			Min: 0, Max: 10, Step: f64(0.1),
			Labels: &RangeLabels{Min: "0", Max: "10"},
		},
	},
	{
		UIVariant:    VariantNumericScaleSlider,
		Label:        "Numeric slider",
		Description:  "Numeric scale slider with min/max labels.",
		QuestionType: QuestionNumeric,
		DefaultConfig: NumericScaleSliderConfig{
			Min: 0, Max: 10, Step: f64(1),
			MinLabel: "Low", MaxLabel: "High",
		},
	},
	{
		UIVariant:     VariantTextEntry,
		Label:         "Text entry",
		Description:   "Free text input.",
		QuestionType:  QuestionFreeText,
		DefaultConfig: TextEntryConfig{InputType: "text"},
	},
	{
		UIVariant:     VariantTextMultipleChoice,
		Label:         "Single select (text)",
		Description:   "Single-choice list of text options.",
		QuestionType:  QuestionSingleChoice,
		DefaultConfig: TextMultipleChoiceConfig{},
	},
	{
		UIVariant:    VariantRankTextFields,
		Label:        "Rank Text Fields",
		Description:  "Tagline rank template with bold text-field choices.",
		QuestionType: QuestionSingleChoice,
		DefaultConfig: RankTextFieldsConfig{BaseConfig{StyleOverrides: StyleOverrides{
			QuestionTextFontFamily:        fontRudeSlab,
			OptionTextFontFamily:          fontPlymouth,
			ComponentBackgroundColor:      "#E2C3E9",
			SelectedOptionBackgroundColor: "#5D3167",
			QuestionTextColor:             "#111111",
			OptionTextColor:               "#111111",
			SelectedOptionTextColor:       "#FFFFFF",
		}}},
		SeedOptions: []SeedOption{
			{"choice_1", "Answer Choice 1"},
			{"choice_2", "Answer Choice 2"},
			{"choice_3", "Answer Choice 3"},
			{"choice_4", "Answer Choice 4"},
		},
	},
	{
		UIVariant:     VariantImageMultipleChoice,
		Label:         "Single select (image grid)",
		Description:   "Single-choice grid of options (supports option metadata imagePath/imageUrl).",
		QuestionType:  QuestionSingleChoice,
		DefaultConfig: ImageMultipleChoiceConfig{Columns: 3},
	},
	{
		UIVariant:    VariantPosterSingleSelect,
		Label:        "PosterSingleSelect",
		Description:  "Single-choice 2x3 poster card selector for season prompts.",
		QuestionType: QuestionSingleChoice,
		DefaultConfig: PosterSingleSelectConfig{
			Columns: 3,
			BaseConfig: BaseConfig{StyleOverrides: StyleOverrides{
				ComponentBackgroundColor:    "#000000",
				PlaceholderShapeColor:       "#D9D9D9",
				PlaceholderShapeBorderColor: "#D9D9D9",
				SelectedOptionBorderColor:   "#FFFFFF",
				QuestionTextColor:           "#F3F4F6",
				QuestionTextFontFamily:      fontGeoSlab,
				QuestionTextLineHeight:      f64(0.94),
				QuestionTextLetterSpacing:   f64(0.008),
			}},
		},
	},
	{
		UIVariant:    VariantCastSingleSelect,
		Label:        "SingleSelectCast",
		Description:  "Single-choice cast-circle selector for superlatives.",
		QuestionType: QuestionSingleChoice,
		DefaultConfig: CastSingleSelectConfig{
			Columns: 4,
			BaseConfig: BaseConfig{StyleOverrides: StyleOverrides{
				ComponentBackgroundColor:    "#5D3167",
				PlaceholderShapeColor:       "#EEEEEF",
				PlaceholderShapeBorderColor: "#DCDDDF",
				SelectedOptionBorderColor:   "#FFFFFF",
				QuestionTextColor:           "#FFFFFF",
				QuestionTextFontFamily:      fontRudeSlab,
				QuestionTextLineHeight:      f64(0.95),
				QuestionTextLetterSpacing:   f64(0.01),
			}},
		},
	},
	{
		UIVariant:    VariantReunionSeatingPrediction,
		Label:        "ReunionSeatingPrediction",
		Description:  "Predict reunion couch seating around host with full-time-first flow.",
		QuestionType: QuestionLikert,
		DefaultConfig: ReunionSeatingPredictionConfig{
			HostName:      "Andy Cohen",
			HostImagePath: "https://upload.wikimedia.org/wikipedia/commons/thumb/4/4b/Andy_Cohen_2012_Shankbone_2.jpg/320px-Andy_Cohen_2012_Shankbone_2.jpg",
			BaseConfig: BaseConfig{StyleOverrides: StyleOverrides{
				QuestionTextColor:         "#111111",
				QuestionTextFontFamily:    fontRudeSlab,
				QuestionTextLineHeight:    f64(1.02),
				QuestionTextLetterSpacing: f64(0.008),
				ComponentBackgroundColor:  "#D9D9D9",
			}},
		},
	},
	{
		UIVariant:     VariantDropdown,
		Label:         "Dropdown",
		Description:   "Single-choice dropdown.",
		QuestionType:  QuestionSingleChoice,
		DefaultConfig: DropdownConfig{Placeholder: "Select an option…"},
	},
	{
		UIVariant:     VariantMultiSelectChoice,
		Label:         "Multi-select",
		Description:   "Multi-select checkboxes.",
		QuestionType:  QuestionMultiChoice,
		DefaultConfig: MultiSelectChoiceConfig{MinSelections: intp(0)},
	},
	{
		UIVariant:    VariantCastMultiSelect,
		Label:        "Cast Multi-select",
		Description:  "Cast-card multi-select grid (select two).",
		QuestionType: QuestionMultiChoice,
		DefaultConfig: CastMultiSelectConfig{
			MinSelections:  intp(castMultiSelectDefault),
			MaxSelections:  intp(castMultiSelectDefault),
			SubTextHeading: "SELECT TWO",
		},
	},
	{
		UIVariant:     VariantPosterRankings,
		Label:         "Poster Rankings",
		Description:   "Drag-and-drop season/poster rankings.",
		QuestionType:  QuestionRanking,
		DefaultConfig: PosterRankingsConfig{LineLabelTop: "BEST", LineLabelBottom: "WORST"},
	},
	{
		UIVariant:     VariantPersonRankings,
		Label:         "Person Rankings",
		Description:   "Drag-and-drop person/cast rankings.",
		QuestionType:  QuestionRanking,
		DefaultConfig: PersonRankingsConfig{LineLabelTop: "BEST", LineLabelBottom: "WORST"},
	},
	{
		UIVariant:     VariantTwoChoiceSlider,
		Label:         "Two-choice slider",
		Description:   "Two-sided choice UI (option images supported via metadata imagePath/imageUrl).",
		QuestionType:  QuestionSingleChoice,
		DefaultConfig: TwoChoiceSliderConfig{},
	},
	{
		UIVariant:    VariantTwoAxisGrid,
		Label:        "Two-axis grid",
		Description:  "Place subjects on a 2D grid. Provide config.rows or add question options.",
		QuestionType: QuestionLikert,
		DefaultConfig: TwoAxisGridConfig{
			Extent:     intp(defaultGridExtent),
			XLabelLeft: "Left", XLabelRight: "Right",
			YLabelBottom: "Bottom", YLabelTop: "Top",
			Rows: []MatrixRow{},
		},
		UsesRows: true,
	},
	{
		UIVariant:     VariantAgreeLikertScale,
		Label:         "Likert matrix (agree/disagree)",
		Description:   "Matrix: rows are statements (config.rows), columns are options.",
		QuestionType:  QuestionLikert,
		DefaultConfig: AgreeLikertScaleConfig{Rows: []MatrixRow{}},
		SeedOptions: []SeedOption{
			{"strongly_disagree", "Strongly disagree"},
			{"somewhat_disagree", "Somewhat disagree"},
			{"neutral", "Neither"},
			{"somewhat_agree", "Somewhat agree"},
			{"strongly_agree", "Strongly agree"},
		},
		UsesRows: true,
	},
	{
		UIVariant:    VariantCastDecisionCard,
		Label:        "Cast decision card",
		Description:  "Single-cast decision cards (Keep/Fire/Demote, Bring Back/Keep Gone).",
		QuestionType: QuestionLikert,
		DefaultConfig: CastDecisionCardConfig{
			Choices: []SliderChoice{
				{Value: "keep", Label: "Keep"},
				{Value: "demote", Label: "Demote"},
				{Value: "fire", Label: "Fire"},
			},
			Rows: []MatrixRow{},
		},
		SeedOptions: []SeedOption{
			{"keep", "Keep"},
			{"demote", "Demote"},
			{"fire", "Fire"},
		},
		UsesRows: true,
	},
}

var catalogByVariant = func() map[UIVariant]Template {
	m := make(map[UIVariant]Template, len(catalog))
	for _, t := range catalog {
		m[t.UIVariant] = t
	}
	return m
}()

// Templates returns the full catalog in authoring order. Each entry carries
// its own copy of the default config and seed options.
func Templates() []Template {
	out := make([]Template, 0, len(catalog))
	for _, tpl := range catalog {
		out = append(out, tpl.clone())
	}
	return out
}

// TemplatesFor returns the templates registered for t, in catalog order.
func TemplatesFor(t QuestionType) []Template {
	var out []Template
	for _, tpl := range catalog {
		if tpl.QuestionType == t {
			out = append(out, tpl.clone())
		}
	}
	return out
}

// TemplateFor looks up a template by variant, accepting legacy aliases.
func TemplateFor(v UIVariant) (Template, bool) {
	t, ok := catalogByVariant[CanonicalVariant(v)]
	if !ok {
		return Template{}, false
	}
	return t.clone(), true
}

func variantAllowed(t QuestionType, v UIVariant) bool {
	tpl, ok := TemplateFor(v)
	return ok && tpl.QuestionType == t
}

// ValidateCatalog checks the built-in catalog.
func ValidateCatalog() error {
	return ValidateTemplates(catalog)
}

// ValidateTemplates reports every structural problem in templates: duplicate
// variants, default configs tagged with a different variant, variants bound to
// an unknown question type and blank or duplicate seed options.
func ValidateTemplates(templates []Template) error {
	var errs []error
	seen := make(map[UIVariant]bool, len(templates))
	for i, t := range templates {
		name := string(t.UIVariant)
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("template %s: blank uiVariant", name))
		}
		if seen[t.UIVariant] {
			errs = append(errs, fmt.Errorf("template %s: duplicate uiVariant", name))
		}
		seen[t.UIVariant] = true
		if !t.QuestionType.Valid() {
			errs = append(errs, fmt.Errorf("template %s: unknown question type %q", name, t.QuestionType))
		}
		switch {
		case t.DefaultConfig == nil:
			errs = append(errs, fmt.Errorf("template %s: missing default config", name))
		case t.DefaultConfig.UIVariant() != t.UIVariant:
			errs = append(errs, fmt.Errorf("template %s: default config is tagged %q", name, t.DefaultConfig.UIVariant()))
		}
		if t.SeedOptions != nil && len(t.SeedOptions) == 0 {
			errs = append(errs, fmt.Errorf("template %s: seed options present but empty", name))
		}
		keys := make(map[string]bool, len(t.SeedOptions))
		for j, seed := range t.SeedOptions {
			key := strings.TrimSpace(seed.OptionKey)
			if key == "" || strings.TrimSpace(seed.OptionText) == "" {
				errs = append(errs, fmt.Errorf("template %s: seed option %d has a blank key or text", name, j))
				continue
			}
			if keys[key] {
				errs = append(errs, fmt.Errorf("template %s: duplicate seed option key %q", name, key))
			}
			keys[key] = true
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogInvalid, err)
	}
	return nil
}
