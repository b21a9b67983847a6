package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/nikbrunner/favmark/internal/model"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Storage defines the interface for persisting the bookmark tree.
type Storage interface {
	Load() (*model.Tree, error)
	Save(t *model.Tree) error
	Path() string
	Close() error
}

// JSONStorage implements Storage using a JSON file.
type JSONStorage struct {
	path string
}

// NewJSONStorage creates a new JSONStorage with the given file path.
func NewJSONStorage(path string) *JSONStorage {
	return &JSONStorage{path: path}
}

// Path returns the storage file path.
func (s *JSONStorage) Path() string {
	return s.path
}

// Close is a no-op; the file is not held open.
func (s *JSONStorage) Close() error {
	return nil
}

// Load reads the tree from the JSON file.
// Returns an empty tree if the file doesn't exist.
func (s *JSONStorage) Load() (*model.Tree, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewTree(), nil
		}
		return nil, err
	}

	t, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return t, nil
}

// Save writes the tree to the JSON file, replacing it atomically.
// Creates the directory if it doesn't exist.
func (s *JSONStorage) Save(t *model.Tree) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	data, err := Marshal(t)
	if err != nil {
		return err
	}

	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

// Open opens the storage backend in dataDir. An empty backend prefers an
// existing SQLite database and otherwise falls back to JSON.
func Open(backend, dataDir string) (Storage, error) {
	sqlitePath := filepath.Join(dataDir, "bookmarks.db")
	jsonPath := filepath.Join(dataDir, "bookmarks.json")

	switch backend {
	case BackendSQLite:
		return NewSQLiteStorage(sqlitePath)
	case BackendJSON:
		return NewJSONStorage(jsonPath), nil
	case "":
		if _, err := os.Stat(sqlitePath); err == nil {
			return NewSQLiteStorage(sqlitePath)
		}
		return NewJSONStorage(jsonPath), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", model.ErrInvalidInput, backend)
	}
}
