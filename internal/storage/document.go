package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikbrunner/favmark/internal/model"
)

// DocumentVersion is the current persisted tree format.
const DocumentVersion = 1

// Document is the persisted form of a tree: a flat node list in traversal
// order, root first.
type Document struct {
	Version int    `json:"version"`
	RootID  string `json:"rootId"`
	Nodes   []Node `json:"nodes"`
}

// Node is one persisted folder or entry. The root carries no parent.
type Node struct {
	ID        string         `json:"id"`
	Type      model.NodeKind `json:"type"`
	Name      string         `json:"name"`
	URL       string         `json:"url,omitempty"`
	Parent    string         `json:"parent,omitempty"`
	Children  []string       `json:"children,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Locked    bool           `json:"locked,omitempty"`
	Icon      *model.IconRef `json:"icon,omitempty"`
	VisitedAt *time.Time     `json:"visitedAt,omitempty"`
}

// Encode flattens t into a Document.
func Encode(t *model.Tree) Document {
	root := t.Root()
	doc := Document{
		Version: DocumentVersion,
		RootID:  t.RootID,
		Nodes:   []Node{folderNode(root)},
	}
	t.Walk(t.RootID, func(n model.Node) bool {
		if n.Kind == model.KindFolder {
			doc.Nodes = append(doc.Nodes, folderNode(n.Folder))
		} else {
			doc.Nodes = append(doc.Nodes, entryNode(n.Entry))
		}
		return true
	})
	return doc
}

func folderNode(f *model.Folder) Node {
	n := Node{
		ID:        f.ID,
		Type:      model.KindFolder,
		Name:      f.Name,
		Children:  append([]string(nil), f.Children...),
		CreatedAt: f.CreatedAt,
		Locked:    f.Locked,
	}
	if f.ParentID != nil {
		n.Parent = *f.ParentID
	}
	return n
}

func entryNode(e *model.Entry) Node {
	return Node{
		ID:        e.ID,
		Type:      model.KindEntry,
		Name:      e.Name,
		URL:       e.URL,
		Parent:    e.ParentID,
		CreatedAt: e.CreatedAt,
		Icon:      e.Icon,
		VisitedAt: e.VisitedAt,
	}
}

// Decode rebuilds a tree from doc and checks its structure.
// Any inconsistency is reported as model.ErrCorruptData.
func Decode(doc Document) (*model.Tree, error) {
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported document version %d", model.ErrCorruptData, doc.Version)
	}

	t := &model.Tree{
		RootID:  doc.RootID,
		Folders: make(map[string]*model.Folder),
		Entries: make(map[string]*model.Entry),
	}

	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", model.ErrCorruptData)
		}
		if t.Folders[n.ID] != nil || t.Entries[n.ID] != nil {
			return nil, fmt.Errorf("%w: duplicate id %q", model.ErrCorruptData, n.ID)
		}

		switch n.Type {
		case model.KindFolder:
			f := &model.Folder{
				ID:        n.ID,
				Name:      n.Name,
				Children:  append([]string{}, n.Children...),
				Locked:    n.Locked,
				CreatedAt: n.CreatedAt,
			}
			if n.Parent != "" {
				parent := n.Parent
				f.ParentID = &parent
			}
			t.Folders[n.ID] = f
		case model.KindEntry:
			if err := model.ValidateURL(n.URL); err != nil {
				return nil, fmt.Errorf("%w: entry %q: %w", model.ErrCorruptData, n.ID, err)
			}
			if len(n.Children) > 0 {
				return nil, fmt.Errorf("%w: entry %q has children", model.ErrCorruptData, n.ID)
			}
			t.Entries[n.ID] = &model.Entry{
				ID:        n.ID,
				Name:      n.Name,
				URL:       n.URL,
				ParentID:  n.Parent,
				Icon:      n.Icon,
				CreatedAt: n.CreatedAt,
				VisitedAt: n.VisitedAt,
			}
		default:
			return nil, fmt.Errorf("%w: node %q has unknown type %q", model.ErrCorruptData, n.ID, n.Type)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal encodes t as indented JSON.
func Marshal(t *model.Tree) ([]byte, error) {
	return json.MarshalIndent(Encode(t), "", "  ")
}

// Unmarshal parses and validates a JSON tree document.
func Unmarshal(data []byte) (*model.Tree, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCorruptData, err)
	}
	return Decode(doc)
}
