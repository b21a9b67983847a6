package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/tree"
)

// Result summarizes one Apply call.
type Result struct {
	Added   int // entries created
	Folders int // folders created
	Skipped int // entries whose URL already existed
	Invalid int // entries rejected for a malformed URL
}

// Apply merges records into store below parentID. Folders are reused when a
// folder with the same name already exists under the same parent. Entries
// whose URL is already present anywhere in the tree are skipped.
func Apply(store *tree.Store, parentID string, records []Record) (Result, error) {
	var res Result
	if _, err := store.Folder(parentID); err != nil {
		return res, fmt.Errorf("import into %q: %w", parentID, model.ErrInvalidParent)
	}

	// folder path -> id, keyed by the joined path
	folders := map[string]string{"": parentID}
	seen := make(map[string]bool)

	resolve := func(path []string) (string, error) {
		key := ""
		id := parentID
		for _, name := range path {
			key += "\x00" + name
			if cached, ok := folders[key]; ok {
				id = cached
				continue
			}
			if existing, ok := store.FindFolder(id, name); ok {
				id = existing
			} else {
				created, err := store.AddFolder(id, model.NewFolderParams{Name: name})
				if err != nil {
					return "", err
				}
				res.Folders++
				id = created
			}
			folders[key] = id
		}
		return id, nil
	}

	for _, rec := range records {
		folderID, err := resolve(rec.FolderPath)
		if err != nil {
			return res, err
		}
		if rec.IsFolder() {
			continue
		}

		if seen[rec.URL] || store.HasURL(rec.URL) {
			res.Skipped++
			continue
		}

		_, err = store.Add(folderID, model.Node{
			Kind:  model.KindEntry,
			Entry: &model.Entry{Name: rec.Name, URL: rec.URL, CreatedAt: rec.AddedAt},
		})
		if errors.Is(err, model.ErrInvalidURL) {
			res.Invalid++
			continue
		}
		if err != nil {
			return res, err
		}
		seen[rec.URL] = true
		res.Added++
	}

	return res, nil
}

// Format identifies an import file format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatChromium Format = "chromium"
	FormatDocument Format = "document" // our own JSON tree export
)

// DetectFormat guesses the format of data. JSON objects carrying rootId and
// nodes are tree documents; any other JSON is taken as Chromium bookmarks.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return FormatHTML
	}

	var head struct {
		RootID string          `json:"rootId"`
		Nodes  json.RawMessage `json:"nodes"`
	}
	if json.Unmarshal(trimmed, &head) == nil && head.RootID != "" && len(head.Nodes) > 0 {
		return FormatDocument
	}
	return FormatChromium
}

// ParseFile reads and parses a bookmark export, detecting its format.
func ParseFile(path string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	switch DetectFormat(data) {
	case FormatDocument:
		return ParseDocument(r)
	case FormatChromium:
		return ParseChromium(r)
	default:
		return ParseHTML(r)
	}
}
