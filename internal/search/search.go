// Package search ranks entries for the quick-search prompt.
package search

import (
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/sahilm/fuzzy"
)

// Result represents a fuzzy search match.
type Result struct {
	Entry          model.Entry
	MatchedIndexes []int
	Score          int
}

// entryNames implements fuzzy.Source for an entry slice.
type entryNames []model.Entry

func (en entryNames) String(i int) string {
	return en[i].Name
}

func (en entryNames) Len() int {
	return len(en)
}

// Fuzzy searches entries by name using fuzzy matching.
// Returns results sorted by match score (best first).
func Fuzzy(entries []model.Entry, query string) []Result {
	if query == "" {
		return nil
	}

	// Run fuzzy matching
	matches := fuzzy.FindFrom(query, entryNames(entries))

	// Convert to Result
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Entry:          entries[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}

	return results
}
