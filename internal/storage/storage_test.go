package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/storage"
	"github.com/nikbrunner/favmark/internal/tree"
)

// sampleTree builds Bookmarks/{Development/{Go, Nested/{Deep}}, Misc, Read Later/}.
func sampleTree(t *testing.T) *model.Tree {
	t.Helper()
	s := tree.NewStore(nil, tree.Options{})
	root := s.RootID()

	dev, err := s.AddFolder(root, model.NewFolderParams{Name: "Development"})
	if err != nil {
		t.Fatalf("add folder: %v", err)
	}
	goID, err := s.AddEntry(dev, model.NewEntryParams{Name: "Go", URL: "https://go.dev/"})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	nested, _ := s.AddFolder(dev, model.NewFolderParams{Name: "Nested"})
	if _, err := s.AddEntry(nested, model.NewEntryParams{Name: "Deep", URL: "https://deep.example.com/a?b=c"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	if _, err := s.AddEntry(root, model.NewEntryParams{Name: "Misc", URL: "https://misc.example.org"}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	later, _ := s.AddFolder(root, model.NewFolderParams{Name: "Read Later"})
	if err := s.SetLocked(later, true); err != nil {
		t.Fatalf("lock: %v", err)
	}

	fetched := time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)
	s.BindIcon([]string{goID}, model.IconRef{SiteKey: "go.dev", FetchedAt: fetched})
	if err := s.Visit(goID); err != nil {
		t.Fatalf("visit: %v", err)
	}

	return s.Snapshot()
}

func assertSameTree(t *testing.T, want, got *model.Tree) {
	t.Helper()
	if diff := cmp.Diff(storage.Encode(want), storage.Encode(got)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONStorage_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bookmarks.json")
	original := sampleTree(t)

	s := storage.NewJSONStorage(path)
	if err := s.Save(original); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("bookmarks file was not created")
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	assertSameTree(t, original, loaded)
	if len(loaded.Entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(loaded.Entries))
	}
}

func TestJSONStorage_LoadNonexistent(t *testing.T) {
	tmpDir := t.TempDir()
	s := storage.NewJSONStorage(filepath.Join(tmpDir, "nonexistent.json"))

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}

	if loaded.Root() == nil || len(loaded.Root().Children) != 0 || len(loaded.Entries) != 0 {
		t.Error("expected empty tree for missing file")
	}
}

func TestJSONStorage_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "bookmarks.json")

	s := storage.NewJSONStorage(path)
	if err := s.Save(model.NewTree()); err != nil {
		t.Fatalf("failed to save with nested dir: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("bookmarks file was not created in nested directory")
	}
}

func TestJSONStorage_PreservesOrder(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bookmarks.json")

	st := tree.NewStore(nil, tree.Options{})
	for _, name := range []string{"Third", "First", "Second"} {
		if _, err := st.AddFolder(st.RootID(), model.NewFolderParams{Name: name}); err != nil {
			t.Fatalf("add folder: %v", err)
		}
	}

	s := storage.NewJSONStorage(path)
	if err := s.Save(st.Snapshot()); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	expectedNames := []string{"Third", "First", "Second"}
	for i, name := range expectedNames {
		got := loaded.Folder(loaded.Root().Children[i]).Name
		if got != name {
			t.Errorf("order not preserved: expected %q at position %d, got %q", name, i, got)
		}
	}
}

func TestJSONStorage_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bookmarks.json")
	if err := os.WriteFile(path, []byte(`{"version": 1, "rootId": "r", "nodes": [`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := storage.NewJSONStorage(path).Load()
	if !errors.Is(err, model.ErrCorruptData) {
		t.Errorf("expected ErrCorruptData, got %v", err)
	}
}

func TestUnmarshal_RejectsInconsistentDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing root",
			doc:  `{"version":1,"rootId":"r","nodes":[]}`,
		},
		{
			name: "unknown child",
			doc: `{"version":1,"rootId":"r","nodes":[
				{"id":"r","type":"folder","name":"Bookmarks","children":["x"]}]}`,
		},
		{
			name: "cycle",
			doc: `{"version":1,"rootId":"r","nodes":[
				{"id":"r","type":"folder","name":"Bookmarks"},
				{"id":"a","type":"folder","name":"A","parent":"b","children":["b"]},
				{"id":"b","type":"folder","name":"B","parent":"a","children":["a"]}]}`,
		},
		{
			name: "invalid url",
			doc: `{"version":1,"rootId":"r","nodes":[
				{"id":"r","type":"folder","name":"Bookmarks","children":["e"]},
				{"id":"e","type":"entry","name":"E","url":"not a url","parent":"r"}]}`,
		},
		{
			name: "unknown type",
			doc: `{"version":1,"rootId":"r","nodes":[
				{"id":"r","type":"folder","name":"Bookmarks","children":["s"]},
				{"id":"s","type":"separator","name":"-","parent":"r"}]}`,
		},
		{
			name: "duplicate id",
			doc: `{"version":1,"rootId":"r","nodes":[
				{"id":"r","type":"folder","name":"Bookmarks"},
				{"id":"r","type":"folder","name":"Again"}]}`,
		},
		{
			name: "newer version",
			doc:  `{"version":99,"rootId":"r","nodes":[{"id":"r","type":"folder","name":"Bookmarks"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.Unmarshal([]byte(tt.doc))
			if !errors.Is(err, model.ErrCorruptData) {
				t.Errorf("expected ErrCorruptData, got %v", err)
			}
		})
	}
}

func TestEncode_RootFirstInTraversalOrder(t *testing.T) {
	doc := storage.Encode(sampleTree(t))

	var got []string
	for _, n := range doc.Nodes {
		got = append(got, n.Name)
	}
	want := []string{"Bookmarks", "Development", "Go", "Nested", "Deep", "Misc", "Read Later"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("node order (-want +got):\n%s", diff)
	}
	if doc.Nodes[0].Parent != "" {
		t.Error("root must not carry a parent")
	}
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := storage.Open("", tmpDir)
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := s.(*storage.JSONStorage); !ok {
		t.Errorf("expected JSON storage without a database, got %T", s)
	}

	db, err := storage.Open(storage.BackendSQLite, tmpDir)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Close()

	s, err = storage.Open("", tmpDir)
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.SQLiteStorage); !ok {
		t.Errorf("expected existing database to be preferred, got %T", s)
	}

	if _, err := storage.Open("yaml", tmpDir); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown backend, got %v", err)
	}
}
