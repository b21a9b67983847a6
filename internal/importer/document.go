package importer

import (
	"fmt"
	"io"

	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/storage"
)

// ParseDocument reads a tree document as written by the JSON export or the
// json storage backend. Children of the document root land directly in the
// import root.
func ParseDocument(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	t, err := storage.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tree document: %w", model.ErrInvalidInput, err)
	}

	var records []Record
	t.Walk(t.RootID, func(n model.Node) bool {
		if n.Kind == model.KindFolder {
			records = append(records, Record{
				FolderPath: t.Path(n.Folder.ID),
				Name:       n.Folder.Name,
				AddedAt:    n.Folder.CreatedAt,
			})
			return true
		}
		records = append(records, Record{
			FolderPath: t.Path(n.Entry.ParentID),
			Name:       n.Entry.Name,
			URL:        n.Entry.URL,
			AddedAt:    n.Entry.CreatedAt,
		})
		return true
	})
	return records, nil
}
