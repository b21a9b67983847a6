// Package tree owns the live bookmark tree. All mutations are serialized
// through Store, each one pushing exactly one undo frame, while reads observe
// consistent snapshots.
package tree

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nikbrunner/favmark/internal/model"
)

// DefaultUndoDepth is the number of undo frames kept when none is configured.
const DefaultUndoDepth = 20

// EventKind names the kind of mutation an Event reports.
type EventKind string

const (
	EventAdded     EventKind = "added"
	EventMoved     EventKind = "moved"
	EventRemoved   EventKind = "removed"
	EventRenamed   EventKind = "renamed"
	EventReordered EventKind = "reordered"
	EventUpdated   EventKind = "updated"
	EventReplaced  EventKind = "replaced"
)

// Event is a mutation notification for the presentation layer.
type Event struct {
	Kind EventKind
	IDs  []string
	Undo bool // produced by undo
}

// Options configures a Store.
type Options struct {
	UndoDepth int
	OnChange  func(Event) // called after a mutation commits, outside the lock
	Logger    *slog.Logger
	Now       func() time.Time
}

// Store is the single-writer bookmark tree.
type Store struct {
	mu    sync.RWMutex
	tree  *model.Tree
	undo  []frame
	depth int

	onChange func(Event)
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore wraps a tree. Passing nil starts with an empty tree.
// The store takes ownership of t.
func NewStore(t *model.Tree, opts Options) *Store {
	if t == nil {
		t = model.NewTree()
	}
	if opts.UndoDepth <= 0 {
		opts.UndoDepth = DefaultUndoDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{
		tree:     t,
		depth:    opts.UndoDepth,
		onChange: opts.OnChange,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// RootID returns the id of the root folder.
func (s *Store) RootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.RootID
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() *model.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Clone()
}

// Folder returns a copy of the folder with the given id.
func (s *Store) Folder(id string) (model.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.tree.Folder(id)
	if f == nil {
		return model.Folder{}, fmt.Errorf("folder %q: %w", id, model.ErrNotFound)
	}
	return *model.CloneFolder(f), nil
}

// Entry returns a copy of the entry with the given id.
func (s *Store) Entry(id string) (model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.tree.Entry(id)
	if e == nil {
		return model.Entry{}, fmt.Errorf("entry %q: %w", id, model.ErrNotFound)
	}
	return *model.CloneEntry(e), nil
}

// Position returns a node's parent id and index within that parent.
func (s *Store) Position(id string) (string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, ok := s.tree.ParentOf(id)
	if !ok {
		if _, exists := s.tree.Node(id); exists {
			return "", 0, nil // root
		}
		return "", 0, fmt.Errorf("node %q: %w", id, model.ErrNotFound)
	}
	return parent, s.tree.Folder(parent).IndexOf(id), nil
}

// Path returns the display names from the root down to id.
func (s *Store) Path(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Path(id)
}

// Entries returns copies of all entries below scope, in traversal order.
func (s *Store) Entries(scope string) ([]model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tree.Folder(scope) == nil {
		return nil, fmt.Errorf("scope %q: %w", scope, model.ErrInvalidScope)
	}
	return s.tree.EntriesIn(scope), nil
}

// FindFolder returns the id of the first child folder of parentID named name.
func (s *Store) FindFolder(parentID, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent := s.tree.Folder(parentID)
	if parent == nil {
		return "", false
	}
	for _, id := range parent.Children {
		if f := s.tree.Folder(id); f != nil && f.Name == name {
			return id, true
		}
	}
	return "", false
}

// HasURL reports whether any entry already points at rawURL.
func (s *Store) HasURL(rawURL string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.tree.Entries {
		if e.URL == rawURL {
			return true
		}
	}
	return false
}

// UndoLen returns the number of frames on the undo stack.
func (s *Store) UndoLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo)
}

// commit pushes a frame, trimming the oldest ones beyond the configured depth.
// Must be called with the write lock held.
func (s *Store) commit(f frame) {
	s.undo = append(s.undo, f)
	if over := len(s.undo) - s.depth; over > 0 {
		s.undo = slices.Delete(s.undo, 0, over)
	}
}

// notify delivers an event. Must be called without holding the lock.
func (s *Store) notify(ev Event) {
	s.logger.Debug("tree mutation", "kind", ev.Kind, "ids", ev.IDs, "undo", ev.Undo)
	if s.onChange != nil {
		s.onChange(ev)
	}
}
