package services

// ResolveOptionID maps a client answer token to an option id. An exact
// option_key match wins; otherwise a token that already is an option id is
// returned unchanged.
func ResolveOptionID(options []*Option, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for _, o := range options {
		if o != nil && o.OptionKey == token {
			return o.ID, true
		}
	}
	// Older clients send raw option ids. Remove once every client sends keys.
	for _, o := range options {
		if o != nil && o.ID == token {
			return o.ID, true
		}
	}
	return "", false
}

// OptionIndex is a map-backed ResolveOptionID for validating many answers
// against the same question.
type OptionIndex struct {
	byKey map[string]*Option
	byID  map[string]*Option
}

func NewOptionIndex(options []*Option) *OptionIndex {
	idx := &OptionIndex{
		byKey: make(map[string]*Option, len(options)),
		byID:  make(map[string]*Option, len(options)),
	}
	for _, o := range options {
		if o == nil {
			continue
		}
		if _, dup := idx.byKey[o.OptionKey]; !dup {
			idx.byKey[o.OptionKey] = o
		}
		idx.byID[o.ID] = o
	}
	return idx
}

// Resolve behaves like ResolveOptionID.
func (idx *OptionIndex) Resolve(token string) (string, bool) {
	o := idx.Lookup(token)
	if o == nil {
		return "", false
	}
	return o.ID, true
}

// Lookup returns the option a token resolves to, or nil.
func (idx *OptionIndex) Lookup(token string) *Option {
	if idx == nil || token == "" {
		return nil
	}
	if o, ok := idx.byKey[token]; ok {
		return o
	}
	return idx.byID[token]
}

// ByID returns the option with the given id, or nil.
func (idx *OptionIndex) ByID(id string) *Option {
	if idx == nil {
		return nil
	}
	return idx.byID[id]
}
