// Package matcher resolves free-text questions against the static knowledge base.
package matcher

import (
	"strings"

	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
)

const (
	// DefaultThreshold is the score a candidate must exceed to count as a match.
	DefaultThreshold = 3
	// QuestionBonus is added when the query and canonical question contain one another.
	QuestionBonus = 10
)

// Matcher scores knowledge entries by keyword overlap.
type Matcher struct {
	entries   []knowledge.Entry
	threshold int
}

// Scored pairs an entry with its score for a given query.
type Scored struct {
	Entry knowledge.Entry `json:"entry"`
	Score int             `json:"score"`
}

// New builds a matcher over entries in their declaration order.
func New(entries []knowledge.Entry) *Matcher {
	return &Matcher{
		entries:   append([]knowledge.Entry(nil), entries...),
		threshold: DefaultThreshold,
	}
}

// NewFromStore builds a matcher over every entry in store.
func NewFromStore(store knowledge.Store) *Matcher {
	return New(store.Entries())
}

// Match returns the best scoring entry, or false when nothing clears the threshold.
// Ties keep the entry declared first.
func (m *Matcher) Match(query string) (knowledge.Entry, bool) {
	normalized := strings.ToLower(query)
	if strings.TrimSpace(normalized) == "" {
		return knowledge.Entry{}, false
	}

	var best knowledge.Entry
	bestScore := 0
	found := false
	for _, entry := range m.entries {
		score := scoreNormalized(entry, normalized)
		if score > bestScore && score > m.threshold {
			bestScore = score
			best = entry
			found = true
		}
	}

	return best, found
}

// Explain returns the score of every entry for query, in declaration order.
func (m *Matcher) Explain(query string) []Scored {
	normalized := strings.ToLower(query)
	out := make([]Scored, 0, len(m.entries))
	for _, entry := range m.entries {
		score := 0
		if strings.TrimSpace(normalized) != "" {
			score = scoreNormalized(entry, normalized)
		}
		out = append(out, Scored{Entry: entry, Score: score})
	}
	return out
}

// Score computes the raw score of entry against query.
func Score(entry knowledge.Entry, query string) int {
	normalized := strings.ToLower(query)
	if strings.TrimSpace(normalized) == "" {
		return 0
	}
	return scoreNormalized(entry, normalized)
}

func scoreNormalized(entry knowledge.Entry, query string) int {
	score := 0
	for _, keyword := range entry.Keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(query, strings.ToLower(keyword)) {
			score += len(keyword)
		}
	}

	question := strings.ToLower(entry.Question)
	if question != "" && (strings.Contains(query, question) || strings.Contains(question, query)) {
		score += QuestionBonus
	}

	return score
}
