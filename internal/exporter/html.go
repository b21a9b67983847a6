package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/favmark/internal/model"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/bookmarks-export-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("bookmarks-export-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML exports the whole tree to Netscape bookmark HTML format.
func ExportHTML(t *model.Tree) string {
	out, _ := ExportFolderHTML(t, t.RootID)
	return out
}

// ExportFolderHTML exports the subtree under folderID. The folder's own name
// becomes the document title; its children form the top level.
func ExportFolderHTML(t *model.Tree, folderID string) (string, error) {
	folder := t.Folder(folderID)
	if folder == nil {
		return "", fmt.Errorf("folder %q: %w", folderID, model.ErrNotFound)
	}

	var b strings.Builder
	title := html.EscapeString(folder.Name)

	// Header
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	fmt.Fprintf(&b, "<TITLE>%s</TITLE>\n", title)
	fmt.Fprintf(&b, "<H1>%s</H1>\n", title)
	b.WriteString("<DL><p>\n")

	writeItems(&b, t, folder, 1)

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String(), nil
}

// writeItems recursively writes the children of folder in stored order.
func writeItems(b *strings.Builder, t *model.Tree, folder *model.Folder, indent int) {
	prefix := strings.Repeat("    ", indent)

	for _, id := range folder.Children {
		if sub := t.Folder(id); sub != nil {
			fmt.Fprintf(b, "%s<DT><H3 ADD_DATE=\"%d\">%s</H3>\n",
				prefix, sub.CreatedAt.Unix(), html.EscapeString(sub.Name))
			fmt.Fprintf(b, "%s<DL><p>\n", prefix)

			writeItems(b, t, sub, indent+1)

			fmt.Fprintf(b, "%s</DL><p>\n", prefix)
			continue
		}

		e := t.Entry(id)
		if e == nil {
			continue
		}
		var lastVisit string
		if e.VisitedAt != nil {
			lastVisit = fmt.Sprintf(" LAST_VISIT=\"%d\"", e.VisitedAt.Unix())
		}
		fmt.Fprintf(b,
			"%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\"%s>%s</A>\n",
			prefix,
			html.EscapeString(e.URL),
			e.CreatedAt.Unix(),
			lastVisit,
			html.EscapeString(e.Name),
		)
	}
}
