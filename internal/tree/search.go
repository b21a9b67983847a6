package tree

import (
	"fmt"
	"iter"
	"strings"

	"github.com/nikbrunner/favmark/internal/model"
)

// Match is a single search hit. Folder or Entry is a private copy.
type Match struct {
	Node model.Node
	Path []string // display names from the root down to the match
}

// Search returns every node below scope whose name or URL contains query,
// ignoring case. Matches come in traversal order, not ranked.
//
// The sequence is lazy and restartable: it walks a snapshot captured when
// Search is called, so ranging over it again yields the same matches even if
// the store has been mutated in between.
func (s *Store) Search(query, scope string) (iter.Seq[Match], error) {
	snap := s.Snapshot()
	if snap.Folder(scope) == nil {
		return nil, fmt.Errorf("search scope %q: %w", scope, model.ErrInvalidScope)
	}

	needle := strings.ToLower(query)
	return func(yield func(Match) bool) {
		snap.Walk(scope, func(n model.Node) bool {
			if !matches(n, needle) {
				return true
			}
			return yield(Match{Node: copyNode(n), Path: snap.Path(n.ID())})
		})
	}, nil
}

func matches(n model.Node, needle string) bool {
	if strings.Contains(strings.ToLower(n.Name()), needle) {
		return true
	}
	return n.Kind == model.KindEntry && strings.Contains(strings.ToLower(n.Entry.URL), needle)
}

func copyNode(n model.Node) model.Node {
	c := model.Node{Kind: n.Kind, Depth: n.Depth}
	if n.Folder != nil {
		c.Folder = model.CloneFolder(n.Folder)
	}
	if n.Entry != nil {
		c.Entry = model.CloneEntry(n.Entry)
	}
	return c
}
