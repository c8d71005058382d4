package knowledge

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known entry identifiers the assistant treats specially.
const (
	PricingEntryID = "pricing-model"
	ContactEntryID = "contact-info"
)

//go:embed knowledge.yaml
var defaultDocument []byte

// Entry is a single static question/answer record with matchable keywords.
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
}

// Category groups entries for presentation only.
type Category struct {
	Key     string  `json:"key" yaml:"key"`
	Name    string  `json:"name" yaml:"name"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Document is the on-disk shape of a knowledge base.
type Document struct {
	SuggestedQuestions []string   `json:"suggestedQuestions" yaml:"suggestedQuestions"`
	Categories         []Category `json:"categories" yaml:"categories"`
}

// Parse decodes a YAML knowledge document and normalizes keywords to lowercase.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode knowledge document: %w", err)
	}

	seen := make(map[string]struct{})
	for ci := range doc.Categories {
		category := &doc.Categories[ci]
		if strings.TrimSpace(category.Key) == "" {
			return Document{}, fmt.Errorf("category %d has no key", ci)
		}
		for ei := range category.Entries {
			entry := &category.Entries[ei]
			entry.ID = strings.TrimSpace(entry.ID)
			if entry.ID == "" {
				return Document{}, fmt.Errorf("category %s: entry %d has no id", category.Key, ei)
			}
			if _, dup := seen[entry.ID]; dup {
				return Document{}, fmt.Errorf("duplicate entry id %q", entry.ID)
			}
			seen[entry.ID] = struct{}{}

			keywords := make([]string, 0, len(entry.Keywords))
			for _, kw := range entry.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" {
					keywords = append(keywords, kw)
				}
			}
			entry.Keywords = keywords
			entry.Question = strings.TrimSpace(entry.Question)
			entry.Answer = strings.TrimSpace(entry.Answer)
		}
	}

	return doc, nil
}

// Seed returns the Camwood knowledge base shipped with the binary.
func Seed() Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base is invalid: %v", err))
	}
	return doc
}
