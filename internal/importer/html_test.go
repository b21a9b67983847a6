package importer_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nikbrunner/favmark/internal/importer"
)

func TestParseHTML_SingleBookmark(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><A HREF="https://example.com" ADD_DATE="1234567890">Example Site</A>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.Name != "Example Site" {
		t.Errorf("expected name 'Example Site', got %q", r.Name)
	}
	if r.URL != "https://example.com" {
		t.Errorf("expected URL 'https://example.com', got %q", r.URL)
	}
	if len(r.FolderPath) != 0 {
		t.Errorf("expected empty folder path (root), got %v", r.FolderPath)
	}
	if r.IsFolder() {
		t.Error("bookmark record reported as folder")
	}
}

func TestParseHTML_NestedFolders(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3 ADD_DATE="1234567890">Development</H3>
    <DL><p>
        <DT><H3 ADD_DATE="1234567890">React</H3>
        <DL><p>
            <DT><A HREF="https://react.dev" ADD_DATE="1234567890">React Docs</A>
        </DL><p>
        <DT><A HREF="https://github.com" ADD_DATE="1234567890">GitHub</A>
    </DL><p>
    <DT><A HREF="https://google.com" ADD_DATE="1234567890">Google</A>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		path string
		name string
		url  string
	}{
		{"Development", "Development", ""},
		{"Development/React", "React", ""},
		{"Development/React", "React Docs", "https://react.dev"},
		{"Development", "GitHub", "https://github.com"},
		{"", "Google", "https://google.com"},
	}

	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		got := records[i]
		if p := strings.Join(got.FolderPath, "/"); p != w.path {
			t.Errorf("record %d: expected path %q, got %q", i, w.path, p)
		}
		if got.Name != w.name || got.URL != w.url {
			t.Errorf("record %d: expected %q <%s>, got %q <%s>", i, w.name, w.url, got.Name, got.URL)
		}
	}
}

func TestParseHTML_EmptyFolderSurvives(t *testing.T) {
	html := `<DL><p>
    <DT><H3>Empty</H3>
    <DL><p>
    </DL><p>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || !records[0].IsFolder() {
		t.Fatalf("expected one folder record, got %+v", records)
	}
	if !slices.Equal(records[0].FolderPath, []string{"Empty"}) {
		t.Errorf("unexpected folder path %v", records[0].FolderPath)
	}
}

func TestParseHTML_EmptyFile(t *testing.T) {
	html := `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}
}

func TestParseHTML_Timestamps(t *testing.T) {
	html := `<DL><p>
    <DT><A HREF="https://example.com" ADD_DATE="1700000000">Example</A>
    <DT><A HREF="https://undated.example">Undated</A>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	expected := time.Unix(1700000000, 0)
	if !records[0].AddedAt.Equal(expected) {
		t.Errorf("expected AddedAt %v, got %v", expected, records[0].AddedAt)
	}
	if !records[1].AddedAt.IsZero() {
		t.Errorf("expected zero AddedAt for undated bookmark, got %v", records[1].AddedAt)
	}
}

func TestParseHTML_MissingHref(t *testing.T) {
	html := `<DL><p>
    <DT><A>No Href</A>
    <DT><A HREF="">Empty Href</A>
    <DT><A HREF="https://valid.com">Valid</A>
    <DT><A HREF="https://untitled.example"></A>
</DL><p>`

	records, err := importer.ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should only include bookmarks with valid href
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Name != "Valid" {
		t.Errorf("expected 'Valid', got %q", records[0].Name)
	}
	if records[1].Name != "https://untitled.example" {
		t.Errorf("expected URL as fallback name, got %q", records[1].Name)
	}
}
