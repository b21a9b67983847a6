package model_test

import (
	"errors"
	"testing"

	"github.com/nikbrunner/favmark/internal/model"
	"gotest.tools/v3/assert"
)

func stringPtr(s string) *string { return &s }

// sampleTree builds root -> [Work -> [a, Nested -> [b]], c].
func sampleTree() *model.Tree {
	return &model.Tree{
		RootID: "root",
		Folders: map[string]*model.Folder{
			"root":   {ID: "root", Name: "Bookmarks", Children: []string{"work", "c"}},
			"work":   {ID: "work", Name: "Work", ParentID: stringPtr("root"), Children: []string{"a", "nested"}},
			"nested": {ID: "nested", Name: "Nested", ParentID: stringPtr("work"), Children: []string{"b"}},
		},
		Entries: map[string]*model.Entry{
			"a": {ID: "a", Name: "Site A", URL: "https://a.example/x", ParentID: "work"},
			"b": {ID: "b", Name: "Site B", URL: "https://b.example", ParentID: "nested"},
			"c": {ID: "c", Name: "Site C", URL: "https://c.example", ParentID: "root"},
		},
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https url", "https://example.com/path?q=1", false},
		{"http with port", "http://localhost:8080", false},
		{"file url", "file:///home/user/notes.txt", false},
		{"mailto", "mailto:someone@example.com", false},
		{"relative path", "/just/a/path", true},
		{"no scheme", "example.com", true},
		{"empty", "", true},
		{"http without host", "http://", true},
		{"surrounding spaces", " https://example.com ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := model.ValidateURL(tt.url)
			if tt.wantErr {
				assert.Assert(t, errors.Is(err, model.ErrInvalidURL), "got %v", err)
				assert.Assert(t, errors.Is(err, model.ErrInvalidInput))
				return
			}
			assert.NilError(t, err)
		})
	}
}

func TestNewEntry_FallsBackToURLAsName(t *testing.T) {
	e, err := model.NewEntry(model.NewEntryParams{URL: "https://go.dev"})
	assert.NilError(t, err)
	assert.Equal(t, e.Name, "https://go.dev")
	assert.Assert(t, e.ID != "")
	assert.Assert(t, !e.CreatedAt.IsZero())
}

func TestTree_WalkOrder(t *testing.T) {
	tree := sampleTree()

	var ids []string
	var depths []int
	tree.Walk(tree.RootID, func(n model.Node) bool {
		ids = append(ids, n.ID())
		depths = append(depths, n.Depth)
		return true
	})

	assert.DeepEqual(t, ids, []string{"work", "a", "nested", "b", "c"})
	assert.DeepEqual(t, depths, []int{1, 2, 2, 3, 1})
}

func TestTree_WalkStopsEarly(t *testing.T) {
	tree := sampleTree()

	count := 0
	completed := tree.Walk(tree.RootID, func(n model.Node) bool {
		count++
		return count < 2
	})

	assert.Equal(t, count, 2)
	assert.Assert(t, !completed)
}

func TestTree_IsAncestor(t *testing.T) {
	tree := sampleTree()

	assert.Assert(t, tree.IsAncestor("work", "b"))
	assert.Assert(t, tree.IsAncestor("work", "work"))
	assert.Assert(t, tree.IsAncestor("root", "c"))
	assert.Assert(t, !tree.IsAncestor("nested", "work"))
	assert.Assert(t, !tree.IsAncestor("work", "c"))
}

func TestTree_Path(t *testing.T) {
	tree := sampleTree()

	assert.DeepEqual(t, tree.Path("b"), []string{"Work", "Nested", "Site B"})
	assert.Equal(t, len(tree.Path("root")), 0)
}

func TestTree_Extract(t *testing.T) {
	tree := sampleTree()

	sub, err := tree.Extract("work")
	assert.NilError(t, err)
	assert.NilError(t, sub.Validate())
	assert.Equal(t, sub.RootID, "work")
	assert.Assert(t, sub.Root().ParentID == nil)
	assert.Equal(t, len(sub.Folders), 2)
	assert.Equal(t, len(sub.Entries), 2)
	assert.Assert(t, sub.Entry("c") == nil)
	assert.DeepEqual(t, sub.Path("b"), []string{"Nested", "Site B"})

	// the source keeps its parent link
	assert.Equal(t, *tree.Folders["work"].ParentID, "root")

	_, err = tree.Extract("a")
	assert.Assert(t, errors.Is(err, model.ErrNotFound), "got %v", err)
}

func TestTree_CloneIsIndependent(t *testing.T) {
	tree := sampleTree()
	clone := tree.Clone()

	clone.Folders["work"].Children[0] = "changed"
	clone.Entries["a"].Name = "changed"
	*clone.Folders["work"].ParentID = "changed"

	assert.Equal(t, tree.Folders["work"].Children[0], "a")
	assert.Equal(t, tree.Entries["a"].Name, "Site A")
	assert.Equal(t, *tree.Folders["work"].ParentID, "root")
}

func TestTree_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Tree)
	}{
		{"missing root", func(tr *model.Tree) { tr.RootID = "nope" }},
		{"root with parent", func(tr *model.Tree) { tr.Folders["root"].ParentID = stringPtr("work") }},
		{"duplicate child", func(tr *model.Tree) {
			tr.Folders["root"].Children = append(tr.Folders["root"].Children, "c")
		}},
		{"unknown child", func(tr *model.Tree) {
			tr.Folders["nested"].Children = append(tr.Folders["nested"].Children, "ghost")
		}},
		{"entry parent mismatch", func(tr *model.Tree) { tr.Entries["b"].ParentID = "work" }},
		{"unreachable node", func(tr *model.Tree) {
			tr.Entries["orphan"] = &model.Entry{ID: "orphan", URL: "https://o.example", ParentID: "root"}
		}},
		{"cycle", func(tr *model.Tree) {
			// detach work from root and hang it under its own child
			tr.Folders["root"].Children = []string{"c"}
			tr.Folders["work"].ParentID = stringPtr("nested")
			tr.Folders["nested"].Children = append(tr.Folders["nested"].Children, "work")
		}},
	}

	assert.NilError(t, sampleTree().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := sampleTree()
			tt.mutate(tree)
			err := tree.Validate()
			assert.Assert(t, errors.Is(err, model.ErrCorruptData), "got %v", err)
		})
	}
}

func TestErrorCategories(t *testing.T) {
	assert.Assert(t, errors.Is(model.ErrInvalidParent, model.ErrInvalidInput))
	assert.Assert(t, errors.Is(model.ErrInvalidScope, model.ErrInvalidInput))
	assert.Assert(t, errors.Is(model.ErrCorruptBackup, model.ErrCorruptData))
	assert.Assert(t, !errors.Is(model.ErrCycleDetected, model.ErrInvalidInput))
}
