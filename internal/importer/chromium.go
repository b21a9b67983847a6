package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nikbrunner/favmark/internal/model"
)

// chromiumNode is one node of a Chromium "Bookmarks" file.
type chromiumNode struct {
	Type      string         `json:"type"` // "url" or "folder"
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	DateAdded string         `json:"date_added"` // microseconds since 1601-01-01 UTC
	Children  []chromiumNode `json:"children"`
}

type chromiumFile struct {
	Roots map[string]chromiumNode `json:"roots"`
}

// chromiumRoots are the well-known root folders, in browser display order.
var chromiumRoots = []string{"bookmark_bar", "other", "synced"}

// windows epoch (1601) to unix epoch, in microseconds
const chromiumEpochOffset = 11644473600 * 1_000_000

// ParseChromium parses the JSON "Bookmarks" file of Chrome, Chromium, Edge
// and Brave. Each root (bookmarks bar, other, mobile) becomes a top-level
// folder named as in the browser.
func ParseChromium(r io.Reader) ([]Record, error) {
	var file chromiumFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: chromium bookmarks: %w", model.ErrInvalidInput, err)
	}
	if file.Roots == nil {
		return nil, fmt.Errorf("%w: chromium bookmarks: no roots", model.ErrInvalidInput)
	}

	var records []Record
	var walk func(n chromiumNode, path []string)
	walk = func(n chromiumNode, path []string) {
		switch n.Type {
		case "url":
			if n.URL == "" {
				return
			}
			name := n.Name
			if name == "" {
				name = n.URL
			}
			records = append(records, Record{
				FolderPath: slices.Clone(path),
				Name:       name,
				URL:        n.URL,
				AddedAt:    parseChromiumTime(n.DateAdded),
			})
		case "folder":
			sub := append(slices.Clone(path), n.Name)
			records = append(records, Record{FolderPath: sub, Name: n.Name, AddedAt: parseChromiumTime(n.DateAdded)})
			for _, c := range n.Children {
				walk(c, sub)
			}
		}
	}

	for _, key := range chromiumRoots {
		root, ok := file.Roots[key]
		if !ok || len(root.Children) == 0 {
			continue
		}
		if root.Name == "" {
			root.Name = key
		}
		root.Type = "folder"
		walk(root, nil)
	}
	return records, nil
}

func parseChromiumTime(s string) time.Time {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil || us <= chromiumEpochOffset {
		return time.Time{}
	}
	return time.UnixMicro(us - chromiumEpochOffset)
}
