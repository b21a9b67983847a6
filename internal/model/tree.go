package model

import "fmt"

// NodeKind distinguishes folders from entries.
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindEntry  NodeKind = "entry"
)

// Node is either a folder or an entry, as produced by tree traversal.
type Node struct {
	Kind   NodeKind
	Folder *Folder
	Entry  *Entry
	Depth  int // 1 for direct children of the traversal scope
}

// ID returns the node's id regardless of kind.
func (n Node) ID() string {
	if n.Kind == KindFolder {
		return n.Folder.ID
	}
	return n.Entry.ID
}

// Name returns the node's display name.
func (n Node) Name() string {
	if n.Kind == KindFolder {
		return n.Folder.Name
	}
	return n.Entry.Name
}

// Tree is the full forest under one implicit root folder.
type Tree struct {
	RootID  string
	Folders map[string]*Folder
	Entries map[string]*Entry
}

// NewTree creates a tree holding only an empty root folder.
func NewTree() *Tree {
	root := NewFolder(NewFolderParams{Name: "Bookmarks"})
	return &Tree{
		RootID:  root.ID,
		Folders: map[string]*Folder{root.ID: &root},
		Entries: map[string]*Entry{},
	}
}

// Root returns the root folder.
func (t *Tree) Root() *Folder {
	return t.Folders[t.RootID]
}

// Folder finds a folder by id, returns nil if not found.
func (t *Tree) Folder(id string) *Folder {
	return t.Folders[id]
}

// Entry finds an entry by id, returns nil if not found.
func (t *Tree) Entry(id string) *Entry {
	return t.Entries[id]
}

// Node finds a node of either kind by id.
func (t *Tree) Node(id string) (Node, bool) {
	if f, ok := t.Folders[id]; ok {
		return Node{Kind: KindFolder, Folder: f}, true
	}
	if e, ok := t.Entries[id]; ok {
		return Node{Kind: KindEntry, Entry: e}, true
	}
	return Node{}, false
}

// ParentOf returns the parent folder id of a node. The root has none.
func (t *Tree) ParentOf(id string) (string, bool) {
	if f, ok := t.Folders[id]; ok {
		if f.ParentID == nil {
			return "", false
		}
		return *f.ParentID, true
	}
	if e, ok := t.Entries[id]; ok {
		return e.ParentID, true
	}
	return "", false
}

// IsAncestor reports whether ancestor is id itself or lies on id's parent chain.
func (t *Tree) IsAncestor(ancestor, id string) bool {
	for steps := 0; steps <= len(t.Folders); steps++ {
		if id == ancestor {
			return true
		}
		parent, ok := t.ParentOf(id)
		if !ok {
			return false
		}
		id = parent
	}
	return false
}

// Path returns the folder names from the root (exclusive) down to id (inclusive).
func (t *Tree) Path(id string) []string {
	var names []string
	for id != t.RootID {
		n, ok := t.Node(id)
		if !ok {
			return nil
		}
		names = append([]string{n.Name()}, names...)
		parent, ok := t.ParentOf(id)
		if !ok {
			break
		}
		id = parent
	}
	return names
}

// Walk visits every node below scope in traversal order: a folder comes
// before its children and children come in stored order. Walk stops early
// when fn returns false and reports whether it ran to completion.
func (t *Tree) Walk(scope string, fn func(Node) bool) bool {
	folder := t.Folders[scope]
	if folder == nil {
		return true
	}
	return t.walk(folder, 1, fn)
}

func (t *Tree) walk(folder *Folder, depth int, fn func(Node) bool) bool {
	for _, id := range folder.Children {
		if f, ok := t.Folders[id]; ok {
			if !fn(Node{Kind: KindFolder, Folder: f, Depth: depth}) {
				return false
			}
			if !t.walk(f, depth+1, fn) {
				return false
			}
			continue
		}
		if e, ok := t.Entries[id]; ok {
			if !fn(Node{Kind: KindEntry, Entry: e, Depth: depth}) {
				return false
			}
		}
	}
	return true
}

// Subtree returns id followed by every descendant id, in traversal order.
func (t *Tree) Subtree(id string) []string {
	ids := []string{id}
	t.Walk(id, func(n Node) bool {
		ids = append(ids, n.ID())
		return true
	})
	return ids
}

// Extract returns a deep copy of the subtree under folderID as a tree of
// its own, rooted at that folder.
func (t *Tree) Extract(folderID string) (*Tree, error) {
	if t.Folders[folderID] == nil {
		return nil, fmt.Errorf("folder %q: %w", folderID, ErrNotFound)
	}

	c := &Tree{
		RootID:  folderID,
		Folders: make(map[string]*Folder),
		Entries: make(map[string]*Entry),
	}
	for _, id := range t.Subtree(folderID) {
		if f, ok := t.Folders[id]; ok {
			c.Folders[id] = f.clone()
		} else if e, ok := t.Entries[id]; ok {
			c.Entries[id] = e.clone()
		}
	}
	c.Folders[folderID].ParentID = nil
	return c, nil
}

// EntriesIn returns copies of all entries below scope in traversal order.
func (t *Tree) EntriesIn(scope string) []Entry {
	var entries []Entry
	t.Walk(scope, func(n Node) bool {
		if n.Kind == KindEntry {
			entries = append(entries, *n.Entry.clone())
		}
		return true
	})
	return entries
}

// Clone returns a deep copy sharing no mutable state with t.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		RootID:  t.RootID,
		Folders: make(map[string]*Folder, len(t.Folders)),
		Entries: make(map[string]*Entry, len(t.Entries)),
	}
	for id, f := range t.Folders {
		c.Folders[id] = f.clone()
	}
	for id, e := range t.Entries {
		c.Entries[id] = e.clone()
	}
	return c
}

// CloneEntry returns a deep copy of an entry.
func CloneEntry(e *Entry) *Entry {
	return e.clone()
}

// CloneFolder returns a deep copy of a folder.
func CloneFolder(f *Folder) *Folder {
	return f.clone()
}

// Validate checks the structural invariants: exactly one root, every other
// node has exactly one parent that lists it once, no cycles, and every node
// is reachable from the root.
func (t *Tree) Validate() error {
	root := t.Folders[t.RootID]
	if root == nil {
		return fmt.Errorf("%w: missing root folder %q", ErrCorruptData, t.RootID)
	}
	if root.ParentID != nil {
		return fmt.Errorf("%w: root folder has a parent", ErrCorruptData)
	}
	if _, clash := t.Entries[t.RootID]; clash {
		return fmt.Errorf("%w: root id used by an entry", ErrCorruptData)
	}

	seen := map[string]bool{t.RootID: true}
	var visit func(f *Folder) error
	visit = func(f *Folder) error {
		for _, id := range f.Children {
			if seen[id] {
				return fmt.Errorf("%w: node %q listed twice", ErrCorruptData, id)
			}
			seen[id] = true

			if child, ok := t.Folders[id]; ok {
				if child.ParentID == nil || *child.ParentID != f.ID {
					return fmt.Errorf("%w: folder %q parent mismatch", ErrCorruptData, id)
				}
				if err := visit(child); err != nil {
					return err
				}
				continue
			}
			entry, ok := t.Entries[id]
			if !ok {
				return fmt.Errorf("%w: folder %q lists unknown child %q", ErrCorruptData, f.ID, id)
			}
			if entry.ParentID != f.ID {
				return fmt.Errorf("%w: entry %q parent mismatch", ErrCorruptData, id)
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return err
	}

	if len(seen) != len(t.Folders)+len(t.Entries) {
		return fmt.Errorf("%w: %d nodes unreachable from root",
			ErrCorruptData, len(t.Folders)+len(t.Entries)-len(seen))
	}
	return nil
}
