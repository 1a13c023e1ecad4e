package services

import "strings"

const (
	UngroupedSectionKey   = "~~ungrouped"
	UngroupedSectionLabel = "Ungrouped"
)

type SectionItem[T any] struct {
	Item  T   `json:"item"`
	Index int `json:"index"`
}

type SectionGroup[T any] struct {
	Key        string           `json:"key"`
	Label      string           `json:"label"`
	FirstIndex int              `json:"firstIndex"`
	Items      []SectionItem[T] `json:"items"`
}

// GroupBySection buckets items by their trimmed section label, matching
// labels case-insensitively. Groups keep first-occurrence order and items keep
// input order; the ungrouped bucket always comes last.
func GroupBySection[T any](items []T, sectionOf func(T) string) []SectionGroup[T] {
	groups := []SectionGroup[T]{}
	pos := map[string]int{}
	var ungrouped *SectionGroup[T]

	for i, item := range items {
		label := strings.TrimSpace(sectionOf(item))
		entry := SectionItem[T]{Item: item, Index: i}
		if label == "" {
			if ungrouped == nil {
				ungrouped = &SectionGroup[T]{Key: UngroupedSectionKey, Label: UngroupedSectionLabel, FirstIndex: i}
			}
			ungrouped.Items = append(ungrouped.Items, entry)
			continue
		}
		key := strings.ToLower(label)
		if at, ok := pos[key]; ok {
			groups[at].Items = append(groups[at].Items, entry)
			continue
		}
		pos[key] = len(groups)
		groups = append(groups, SectionGroup[T]{Key: key, Label: label, FirstIndex: i, Items: []SectionItem[T]{entry}})
	}
	if ungrouped != nil {
		groups = append(groups, *ungrouped)
	}
	return groups
}

// GroupQuestionsBySection groups questions by config.section.
func GroupQuestionsBySection(questions []*Question) []SectionGroup[*Question] {
	return GroupBySection(questions, (*Question).Section)
}
