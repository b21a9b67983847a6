package search

import (
	"testing"

	"github.com/nikbrunner/favmark/internal/model"
)

// entries builds a flat entry list from name/url pairs.
func entries(pairs ...string) []model.Entry {
	var out []model.Entry
	for i := 0; i+1 < len(pairs); i += 2 {
		e, err := model.NewEntry(model.NewEntryParams{Name: pairs[i], URL: pairs[i+1]})
		if err != nil {
			panic(err)
		}
		out = append(out, e)
	}
	return out
}

func TestFuzzy_EmptyQuery(t *testing.T) {
	list := entries("GitHub", "https://github.com")

	results := Fuzzy(list, "")

	if len(results) != 0 {
		t.Errorf("expected 0 results for empty query, got %d", len(results))
	}
}

func TestFuzzy_ExactMatch(t *testing.T) {
	list := entries("GitHub", "https://github.com", "GitLab", "https://gitlab.com")

	results := Fuzzy(list, "GitHub")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Entry.Name != "GitHub" {
		t.Errorf("expected GitHub, got %s", results[0].Entry.Name)
	}
}

func TestFuzzy_FuzzyMatch(t *testing.T) {
	list := entries("TanStack Router", "https://tanstack.com/router", "React Router", "https://reactrouter.com")

	// "tanrou" should fuzzy match "TanStack Router"
	results := Fuzzy(list, "tanrou")

	if len(results) < 1 {
		t.Fatalf("expected at least 1 result for 'tanrou', got %d", len(results))
	}
	// TanStack Router should be first (better match)
	if results[0].Entry.Name != "TanStack Router" {
		t.Errorf("expected TanStack Router as first result, got %s", results[0].Entry.Name)
	}
}

func TestFuzzy_MultipleMatches(t *testing.T) {
	list := entries("GitHub", "https://github.com", "GitLab", "https://gitlab.com", "Gitea", "https://gitea.io")

	results := Fuzzy(list, "git")

	if len(results) != 3 {
		t.Errorf("expected 3 results for 'git', got %d", len(results))
	}
}

func TestFuzzy_NoMatch(t *testing.T) {
	list := entries("GitHub", "https://github.com")

	results := Fuzzy(list, "xyz123")

	if len(results) != 0 {
		t.Errorf("expected 0 results for 'xyz123', got %d", len(results))
	}
}

func TestFuzzy_CaseInsensitive(t *testing.T) {
	list := entries("GitHub", "https://github.com")

	results := Fuzzy(list, "github")

	if len(results) != 1 {
		t.Fatalf("expected 1 result for case-insensitive match, got %d", len(results))
	}
}

func TestFuzzy_SortedByScore(t *testing.T) {
	list := entries("React Router Documentation", "https://reactrouter.com", "Router", "https://router.example.com")

	results := Fuzzy(list, "router")

	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	// "Router" should rank higher (exact match) than "React Router Documentation"
	if results[0].Entry.Name != "Router" {
		t.Errorf("expected 'Router' as first result (exact match), got %s", results[0].Entry.Name)
	}
}
