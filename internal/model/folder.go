package model

import "time"

// Folder is a branch node. Children holds folder and entry ids intermixed,
// in display order.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent,omitempty"` // nil = root
	Children  []string  `json:"children"`
	Locked    bool      `json:"locked,omitempty"` // display only
	CreatedAt time.Time `json:"createdAt"`
}

// NewFolderParams holds parameters for creating a new Folder.
type NewFolderParams struct {
	Name string
}

// NewFolder creates a detached Folder with a generated id.
func NewFolder(params NewFolderParams) Folder {
	return Folder{
		ID:        NewID(),
		Name:      params.Name,
		Children:  []string{},
		CreatedAt: time.Now(),
	}
}

// IsRoot reports whether the folder has no parent.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// IndexOf returns the position of id among the children, or -1.
func (f *Folder) IndexOf(id string) int {
	for i, c := range f.Children {
		if c == id {
			return i
		}
	}
	return -1
}

// clone returns a deep copy of the folder.
func (f *Folder) clone() *Folder {
	c := *f
	if f.ParentID != nil {
		p := *f.ParentID
		c.ParentID = &p
	}
	c.Children = append([]string{}, f.Children...)
	return &c
}
