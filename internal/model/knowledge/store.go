package knowledge

// Store exposes read-only knowledge lookups to the matcher and HTTP handlers.
type Store interface {
	Categories() []Category
	Entries() []Entry
	FindByID(id string) (Entry, bool)
	SuggestedQuestions() []string
}

// MemoryStore implements Store over an immutable in-memory document.
type MemoryStore struct {
	categories []Category
	entries    []Entry
	suggested  []string
}

// NewMemoryStore copies doc so later changes by the caller are not observed.
func NewMemoryStore(doc Document) *MemoryStore {
	categories := make([]Category, 0, len(doc.Categories))
	var entries []Entry
	for _, c := range doc.Categories {
		copied := Category{Key: c.Key, Name: c.Name, Entries: make([]Entry, len(c.Entries))}
		for i, e := range c.Entries {
			e.Keywords = append([]string(nil), e.Keywords...)
			copied.Entries[i] = e
			entries = append(entries, e)
		}
		categories = append(categories, copied)
	}

	return &MemoryStore{
		categories: categories,
		entries:    entries,
		suggested:  append([]string(nil), doc.SuggestedQuestions...),
	}
}

// Categories returns categories in declaration order.
func (s *MemoryStore) Categories() []Category {
	out := make([]Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = Category{Key: c.Key, Name: c.Name, Entries: append([]Entry(nil), c.Entries...)}
	}
	return out
}

// Entries returns every entry flattened in declaration order.
func (s *MemoryStore) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// FindByID looks up an entry by identifier.
func (s *MemoryStore) FindByID(id string) (Entry, bool) {
	for _, item := range s.entries {
		if item.ID == id {
			return item, true
		}
	}
	return Entry{}, false
}

// SuggestedQuestions returns the canonical prompts shown under the chat input.
func (s *MemoryStore) SuggestedQuestions() []string {
	return append([]string(nil), s.suggested...)
}
