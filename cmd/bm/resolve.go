package main

import (
	"fmt"
	"strings"

	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/tree"
)

// resolveNode turns a command-line reference into a node id. A reference is
// either an id or a slash-separated path of names from the root; "" and "/"
// name the root. Path components match folders first, then entries.
func resolveNode(s *tree.Store, ref string) (string, error) {
	if ref == "" || ref == "/" {
		return s.RootID(), nil
	}
	if _, err := s.Folder(ref); err == nil {
		return ref, nil
	}
	if _, err := s.Entry(ref); err == nil {
		return ref, nil
	}

	id := s.RootID()
	parts := splitPath(ref)
	for i, name := range parts {
		if folder, ok := s.FindFolder(id, name); ok {
			id = folder
			continue
		}
		// only the last component may be an entry
		if i == len(parts)-1 {
			if entry, ok := findEntry(s, id, name); ok {
				return entry, nil
			}
		}
		return "", fmt.Errorf("%q: %w", ref, model.ErrNotFound)
	}
	return id, nil
}

// resolveFolder is resolveNode restricted to folders.
func resolveFolder(s *tree.Store, ref string) (string, error) {
	id, err := resolveNode(s, ref)
	if err != nil {
		return "", err
	}
	if _, err := s.Folder(id); err != nil {
		return "", fmt.Errorf("%q is not a folder: %w", ref, model.ErrInvalidParent)
	}
	return id, nil
}

// ensureFolder resolves a folder path, creating missing components.
func ensureFolder(s *tree.Store, ref string) (string, error) {
	id := s.RootID()
	if _, err := s.Folder(ref); err == nil {
		return ref, nil
	}
	for _, name := range splitPath(ref) {
		if folder, ok := s.FindFolder(id, name); ok {
			id = folder
			continue
		}
		created, err := s.AddFolder(id, model.NewFolderParams{Name: name})
		if err != nil {
			return "", err
		}
		id = created
	}
	return id, nil
}

func findEntry(s *tree.Store, parentID, name string) (string, bool) {
	parent, err := s.Folder(parentID)
	if err != nil {
		return "", false
	}
	for _, id := range parent.Children {
		if e, err := s.Entry(id); err == nil && e.Name == name {
			return id, true
		}
	}
	return "", false
}

func splitPath(ref string) []string {
	var parts []string
	for _, p := range strings.Split(strings.Trim(ref, "/"), "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
