package tree

import (
	"fmt"
	"slices"

	"github.com/nikbrunner/favmark/internal/model"
)

// frame is one captured inverse. invert runs with the write lock held and
// returns the event describing what it changed.
type frame struct {
	kind   EventKind
	invert func(t *model.Tree) Event
}

// Add appends a new folder or entry to parentID and returns its fresh id.
// The id, parent and (for folders) children of node are ignored.
func (s *Store) Add(parentID string, node model.Node) (string, error) {
	s.mu.Lock()

	parent := s.tree.Folder(parentID)
	if parent == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("add to %q: %w", parentID, model.ErrInvalidParent)
	}

	id := model.NewID()
	switch {
	case node.Kind == model.KindEntry && node.Entry != nil:
		if err := model.ValidateURL(node.Entry.URL); err != nil {
			s.mu.Unlock()
			return "", err
		}
		e := model.CloneEntry(node.Entry)
		e.ID = id
		e.ParentID = parentID
		if e.Name == "" {
			e.Name = e.URL
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now()
		}
		s.tree.Entries[id] = e

	case node.Kind == model.KindFolder && node.Folder != nil:
		if node.Folder.Name == "" {
			s.mu.Unlock()
			return "", fmt.Errorf("%w: folder name is empty", model.ErrInvalidInput)
		}
		pid := parentID
		created := node.Folder.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		s.tree.Folders[id] = &model.Folder{
			ID:        id,
			Name:      node.Folder.Name,
			ParentID:  &pid,
			Children:  []string{},
			Locked:    node.Folder.Locked,
			CreatedAt: created,
		}

	default:
		s.mu.Unlock()
		return "", fmt.Errorf("%w: node must be a folder or an entry", model.ErrInvalidInput)
	}

	parent.Children = append(parent.Children, id)
	s.commit(frame{
		kind: EventAdded,
		invert: func(t *model.Tree) Event {
			return Event{Kind: EventRemoved, IDs: deleteSubtree(t, id)}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventAdded, IDs: []string{id}})
	return id, nil
}

// AddEntry is a convenience wrapper around Add for entries.
func (s *Store) AddEntry(parentID string, params model.NewEntryParams) (string, error) {
	return s.Add(parentID, model.Node{
		Kind:  model.KindEntry,
		Entry: &model.Entry{Name: params.Name, URL: params.URL},
	})
}

// AddFolder is a convenience wrapper around Add for folders.
func (s *Store) AddFolder(parentID string, params model.NewFolderParams) (string, error) {
	return s.Add(parentID, model.Node{
		Kind:   model.KindFolder,
		Folder: &model.Folder{Name: params.Name},
	})
}

// Move detaches nodeID and inserts it into newParentID at position.
// A negative or out-of-range position appends at the end.
func (s *Store) Move(nodeID, newParentID string, position int) error {
	s.mu.Lock()

	if _, ok := s.tree.Node(nodeID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("move %q: %w", nodeID, model.ErrNotFound)
	}
	if nodeID == s.tree.RootID {
		s.mu.Unlock()
		return fmt.Errorf("%w: the root folder cannot be moved", model.ErrInvalidInput)
	}
	if _, ok := s.tree.Node(newParentID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("move %q into %q: %w", nodeID, newParentID, model.ErrNotFound)
	}
	if s.tree.Folder(newParentID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("move %q into %q: %w", nodeID, newParentID, model.ErrInvalidParent)
	}
	if s.tree.IsAncestor(nodeID, newParentID) {
		s.mu.Unlock()
		return fmt.Errorf("move %q into %q: %w", nodeID, newParentID, model.ErrCycleDetected)
	}

	oldParent, oldIndex := detach(s.tree, nodeID)
	attach(s.tree, nodeID, newParentID, position)

	s.commit(frame{
		kind: EventMoved,
		invert: func(t *model.Tree) Event {
			detach(t, nodeID)
			attach(t, nodeID, oldParent, oldIndex)
			return Event{Kind: EventMoved, IDs: []string{nodeID}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventMoved, IDs: []string{nodeID}})
	return nil
}

// Rename changes the display name of a folder or entry.
func (s *Store) Rename(id, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", model.ErrInvalidInput)
	}

	s.mu.Lock()

	var old string
	switch n, ok := s.tree.Node(id); {
	case !ok:
		s.mu.Unlock()
		return fmt.Errorf("rename %q: %w", id, model.ErrNotFound)
	case n.Kind == model.KindFolder:
		old, n.Folder.Name = n.Folder.Name, name
	default:
		old, n.Entry.Name = n.Entry.Name, name
	}

	s.commit(frame{
		kind: EventRenamed,
		invert: func(t *model.Tree) Event {
			if n, ok := t.Node(id); ok {
				if n.Kind == model.KindFolder {
					n.Folder.Name = old
				} else {
					n.Entry.Name = old
				}
			}
			return Event{Kind: EventRenamed, IDs: []string{id}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventRenamed, IDs: []string{id}})
	return nil
}

// SetURL changes an entry's URL. The icon reference is cleared because it
// may belong to a different site.
func (s *Store) SetURL(id, rawURL string) error {
	if err := model.ValidateURL(rawURL); err != nil {
		return err
	}

	s.mu.Lock()

	e := s.tree.Entry(id)
	if e == nil {
		s.mu.Unlock()
		return fmt.Errorf("set url %q: %w", id, model.ErrNotFound)
	}
	oldURL, oldIcon := e.URL, e.Icon
	e.URL, e.Icon = rawURL, nil

	s.commit(frame{
		kind: EventUpdated,
		invert: func(t *model.Tree) Event {
			if e := t.Entry(id); e != nil {
				e.URL, e.Icon = oldURL, oldIcon
			}
			return Event{Kind: EventUpdated, IDs: []string{id}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, IDs: []string{id}})
	return nil
}

// SetLocked sets a folder's display lock flag.
func (s *Store) SetLocked(id string, locked bool) error {
	s.mu.Lock()

	f := s.tree.Folder(id)
	if f == nil {
		s.mu.Unlock()
		return fmt.Errorf("lock %q: %w", id, model.ErrNotFound)
	}
	old := f.Locked
	f.Locked = locked

	s.commit(frame{
		kind: EventUpdated,
		invert: func(t *model.Tree) Event {
			if f := t.Folder(id); f != nil {
				f.Locked = old
			}
			return Event{Kind: EventUpdated, IDs: []string{id}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, IDs: []string{id}})
	return nil
}

// Delete removes a node. Folders are removed with their whole subtree.
func (s *Store) Delete(id string) error {
	s.mu.Lock()

	node, ok := s.tree.Node(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %q: %w", id, model.ErrNotFound)
	}
	if id == s.tree.RootID {
		s.mu.Unlock()
		return fmt.Errorf("%w: the root folder cannot be deleted", model.ErrInvalidInput)
	}

	captured := captureSubtree(s.tree, node)
	parentID, _ := s.tree.ParentOf(id)
	index := s.tree.Folder(parentID).IndexOf(id)
	removed := deleteSubtree(s.tree, id)

	s.commit(frame{
		kind: EventRemoved,
		invert: func(t *model.Tree) Event {
			for _, f := range captured.folders {
				t.Folders[f.ID] = model.CloneFolder(f)
			}
			for _, e := range captured.entries {
				t.Entries[e.ID] = model.CloneEntry(e)
			}
			attach(t, id, parentID, index)
			return Event{Kind: EventAdded, IDs: []string{id}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventRemoved, IDs: removed})
	return nil
}

// Reorder replaces the child order of parentID. newOrder must be a
// permutation of the current children.
func (s *Store) Reorder(parentID string, newOrder []string) error {
	s.mu.Lock()

	parent := s.tree.Folder(parentID)
	if parent == nil {
		s.mu.Unlock()
		return fmt.Errorf("reorder %q: %w", parentID, model.ErrNotFound)
	}
	if !isPermutation(parent.Children, newOrder) {
		s.mu.Unlock()
		return fmt.Errorf("%w: new order is not a permutation of the children of %q",
			model.ErrInvalidInput, parentID)
	}

	old := parent.Children
	parent.Children = slices.Clone(newOrder)

	s.commit(frame{
		kind: EventReordered,
		invert: func(t *model.Tree) Event {
			if f := t.Folder(parentID); f != nil {
				f.Children = old
			}
			return Event{Kind: EventReordered, IDs: []string{parentID}}
		},
	})
	s.mu.Unlock()

	s.notify(Event{Kind: EventReordered, IDs: []string{parentID}})
	return nil
}

// Adopt replaces the whole live tree, e.g. with one produced by a backup
// restore. The previous tree is kept on the undo stack.
func (s *Store) Adopt(t *model.Tree) error {
	if t == nil {
		return fmt.Errorf("%w: nil tree", model.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	s.mu.Lock()
	old := s.tree
	s.tree = t.Clone()
	s.commit(frame{
		kind: EventReplaced,
		invert: func(*model.Tree) Event {
			s.tree = old
			return Event{Kind: EventReplaced, IDs: []string{old.RootID}}
		},
	})
	root := s.tree.RootID
	s.mu.Unlock()

	s.notify(Event{Kind: EventReplaced, IDs: []string{root}})
	return nil
}

// Undo pops the most recent frame and applies its inverse.
// It returns false when there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()

	if len(s.undo) == 0 {
		s.mu.Unlock()
		return false
	}
	f := s.undo[len(s.undo)-1]
	s.undo[len(s.undo)-1] = frame{}
	s.undo = s.undo[:len(s.undo)-1]
	ev := f.invert(s.tree)
	s.mu.Unlock()

	s.logger.Debug("undo", "frame", f.kind)
	ev.Undo = true
	s.notify(ev)
	return true
}

// Visit records that an entry was opened. Visits are metadata and are not undoable.
func (s *Store) Visit(id string) error {
	s.mu.Lock()

	e := s.tree.Entry(id)
	if e == nil {
		s.mu.Unlock()
		return fmt.Errorf("visit %q: %w", id, model.ErrNotFound)
	}
	now := s.now()
	e.VisitedAt = &now
	s.mu.Unlock()

	s.notify(Event{Kind: EventUpdated, IDs: []string{id}})
	return nil
}

// BindIcon sets the icon reference of every listed entry that still exists.
// Ids removed since the caller took its snapshot are skipped. Icon bindings
// are cache metadata and are not undoable. It returns the number bound.
func (s *Store) BindIcon(ids []string, ref model.IconRef) int {
	s.mu.Lock()

	var bound []string
	for _, id := range ids {
		if e := s.tree.Entry(id); e != nil {
			r := ref
			e.Icon = &r
			bound = append(bound, id)
		}
	}
	s.mu.Unlock()

	if len(bound) > 0 {
		s.notify(Event{Kind: EventUpdated, IDs: bound})
	}
	return len(bound)
}

type subtree struct {
	folders []*model.Folder
	entries []*model.Entry
}

func captureSubtree(t *model.Tree, n model.Node) subtree {
	var st subtree
	for _, id := range t.Subtree(n.ID()) {
		if f := t.Folder(id); f != nil {
			st.folders = append(st.folders, model.CloneFolder(f))
		} else if e := t.Entry(id); e != nil {
			st.entries = append(st.entries, model.CloneEntry(e))
		}
	}
	return st
}

// deleteSubtree detaches id and drops it and all descendants from the maps.
func deleteSubtree(t *model.Tree, id string) []string {
	ids := t.Subtree(id)
	detach(t, id)
	for _, did := range ids {
		delete(t.Folders, did)
		delete(t.Entries, did)
	}
	return ids
}

// detach removes id from its parent's children and returns where it was.
func detach(t *model.Tree, id string) (string, int) {
	parentID, ok := t.ParentOf(id)
	if !ok {
		return "", -1
	}
	parent := t.Folder(parentID)
	index := parent.IndexOf(id)
	if index >= 0 {
		parent.Children = slices.Delete(slices.Clone(parent.Children), index, index+1)
	}
	return parentID, index
}

// attach inserts id into parentID at index and points the node at its new parent.
func attach(t *model.Tree, id, parentID string, index int) {
	parent := t.Folder(parentID)
	if index < 0 || index > len(parent.Children) {
		index = len(parent.Children)
	}
	parent.Children = slices.Insert(slices.Clone(parent.Children), index, id)

	if f := t.Folder(id); f != nil {
		pid := parentID
		f.ParentID = &pid
	} else if e := t.Entry(id); e != nil {
		e.ParentID = parentID
	}
}

func isPermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, id := range current {
		counts[id]++
	}
	for _, id := range proposed {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}
