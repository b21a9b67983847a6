package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nikbrunner/favmark/internal/storage"
)

// bm runs one command line against the config in dir.
func bm(t *testing.T, dir string, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	argv := append([]string{"--config", filepath.Join(dir, "config.json")}, args...)
	code := run(context.Background(), argv, &out, &errOut)
	return out.String(), errOut.String(), code
}

func mustBM(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, errOut, code := bm(t, dir, args...)
	if code != 0 {
		t.Fatalf("bm %s: exit %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, out, errOut)
	}
	return out
}

func TestRun_EditAndList(t *testing.T) {
	dir := t.TempDir()

	mustBM(t, dir, "mkdir", "Work/Tools")
	mustBM(t, dir, "add", "--no-icon", "-f", "Work", "-n", "Site A", "https://a.example/x")
	mustBM(t, dir, "add", "--no-icon", "-f", "Work/Tools", "-n", "tmp", "https://a.example/y")
	mustBM(t, dir, "rename", "Work/Tools/tmp", "Site B")

	out := mustBM(t, dir, "ls", "-r")
	want := "Work/\n  Tools/\n    Site B  https://a.example/y\n  Site A  https://a.example/x\n"
	if out != want {
		t.Errorf("unexpected listing:\n%s\nwant:\n%s", out, want)
	}

	mustBM(t, dir, "mv", "Work/Tools/Site B", "/")
	out = mustBM(t, dir, "find", "site")
	if !strings.Contains(out, "/Work/Site A  https://a.example/x") || !strings.Contains(out, "/Site B  https://a.example/y") {
		t.Errorf("unexpected find output:\n%s", out)
	}

	// the tree file is the one the config points at
	tr, err := storage.NewJSONStorage(filepath.Join(dir, "bookmarks.json")).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tr.Entries) != 2 || len(tr.Folders) != 3 {
		t.Errorf("expected 2 entries and 3 folders, got %d and %d", len(tr.Entries), len(tr.Folders))
	}
}

func TestRun_CycleRejected(t *testing.T) {
	dir := t.TempDir()
	mustBM(t, dir, "mkdir", "A/B")

	_, errOut, code := bm(t, dir, "mv", "A", "A/B")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, "cycle") {
		t.Errorf("expected cycle error, got %q", errOut)
	}
}

func TestRun_QuickAdd(t *testing.T) {
	dir := t.TempDir()
	mustBM(t, dir, "add", "--no-icon", "-q", "https://later.example")

	out := mustBM(t, dir, "ls", "Read Later")
	if !strings.Contains(out, "https://later.example") {
		t.Errorf("expected entry in quick-add folder, got %q", out)
	}
}

func TestRun_ImportExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.html")
	html := `<DL><p>
    <DT><H3>Dev</H3>
    <DL><p>
        <DT><A HREF="https://go.dev" ADD_DATE="1700000000">Go</A>
    </DL><p>
</DL><p>`
	if err := os.WriteFile(src, []byte(html), 0644); err != nil {
		t.Fatal(err)
	}

	out := mustBM(t, dir, "import", src)
	if !strings.Contains(out, "Imported 1 bookmarks, 1 folders") {
		t.Errorf("unexpected import output %q", out)
	}
	out = mustBM(t, dir, "import", src)
	if !strings.Contains(out, "(1 duplicates skipped)") {
		t.Errorf("expected duplicate skip on reimport, got %q", out)
	}

	dst := filepath.Join(dir, "out", "export.html")
	mustBM(t, dir, "export", "-f", "Dev", dst)
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "<TITLE>Dev</TITLE>") || !strings.Contains(string(data), `ADD_DATE="1700000000"`) {
		t.Errorf("unexpected export:\n%s", data)
	}

	jsonDst := filepath.Join(dir, "out", "export.json")
	mustBM(t, dir, "export", "--format", "json", jsonDst)
	data, err = os.ReadFile(jsonDst)
	if err != nil {
		t.Fatalf("read json export: %v", err)
	}
	if _, err := storage.Unmarshal(data); err != nil {
		t.Errorf("json export does not load back: %v", err)
	}
}

func TestRun_JSONExportImportsIntoFreshTree(t *testing.T) {
	src := t.TempDir()
	mustBM(t, src, "add", "--no-icon", "-f", "Dev/Tools", "-n", "Vim", "https://vim.org")
	mustBM(t, src, "add", "--no-icon", "-f", "Dev", "-n", "Go", "https://go.dev")
	mustBM(t, src, "add", "--no-icon", "-n", "Misc", "https://misc.example")

	exported := filepath.Join(src, "dev.json")
	out := mustBM(t, src, "export", "--format", "json", "-f", "Dev", exported)
	if !strings.Contains(out, "Exported 2 bookmarks, 1 folders") {
		t.Errorf("unexpected export output %q", out)
	}

	dst := t.TempDir()
	out = mustBM(t, dst, "import", "--into", "Dev", exported)
	if !strings.Contains(out, "Imported 2 bookmarks, 1 folders") {
		t.Errorf("unexpected import output %q", out)
	}

	out = mustBM(t, dst, "ls", "-r")
	want := "Dev/\n  Tools/\n    Vim  https://vim.org\n  Go  https://go.dev\n"
	if out != want {
		t.Errorf("unexpected listing:\n%s\nwant:\n%s", out, want)
	}
}

func TestRun_BackupAndRestore(t *testing.T) {
	dir := t.TempDir()

	// the first mutating command snapshots the empty tree
	mustBM(t, dir, "add", "--no-icon", "https://one.example")
	mustBM(t, dir, "backup")
	mustBM(t, dir, "add", "--no-icon", "https://two.example")

	out := mustBM(t, dir, "backups")
	names := strings.Fields(out)
	if len(strings.Split(strings.TrimSpace(out), "\n")) < 2 {
		t.Fatalf("expected at least two backups, got:\n%s", out)
	}

	// restoring the newest snapshot brings back one.example only
	mustBM(t, dir, "restore", names[0])
	out = mustBM(t, dir, "ls")
	if !strings.Contains(out, "https://one.example") || strings.Contains(out, "https://two.example") {
		t.Errorf("unexpected tree after restore:\n%s", out)
	}

	_, errOut, code := bm(t, dir, "restore", "20000101_000000.000_bookmarks")
	if code != 1 || !strings.Contains(errOut, "not found") {
		t.Errorf("expected not found for unknown backup, got %d %q", code, errOut)
	}
}

func TestRun_ReadOnlyCommandsWriteNoBackup(t *testing.T) {
	dir := t.TempDir()

	mustBM(t, dir, "ls")
	mustBM(t, dir, "find", "anything")
	if out := mustBM(t, dir, "backups"); !strings.Contains(out, "No backups in") {
		t.Fatalf("expected no backups after read-only commands, got:\n%s", out)
	}

	mustBM(t, dir, "mkdir", "Work")
	out := mustBM(t, dir, "backups")
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 1 || strings.Contains(out, "No backups") {
		t.Errorf("expected one backup after the first mutation, got:\n%s", out)
	}
}

func TestRun_UnknownWordIsQuickSearch(t *testing.T) {
	dir := t.TempDir()

	out := mustBM(t, dir, "nothing-matches-this")
	if !strings.Contains(out, "No bookmarks found for 'nothing-matches-this'") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), []string{"help"}, &out, &out); code != 0 {
		t.Fatalf("unexpected exit %d", code)
	}
	for _, name := range []string{"ls", "add", "icons", "restore"} {
		if !strings.Contains(out.String(), "  "+name) {
			t.Errorf("help is missing %q", name)
		}
	}
}

func TestShell_UndoAcrossCommands(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	a, err := openApp(appParams{ConfigPath: filepath.Join(dir, "config.json"), Out: &out, ErrOut: &errOut})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := &shell{app: a}
	ctx := context.Background()

	s.exec(ctx, []string{"mkdir", "Work"})
	s.exec(ctx, []string{"add", "--no-icon", "-f", "Work", "https://a.example"})
	s.exec(ctx, []string{"undo"})

	if _, ok := findEntry(a.store, mustResolve(t, a, "Work"), "https://a.example"); ok {
		t.Error("expected undo to remove the added entry")
	}
	if quit := s.exec(ctx, []string{"exit"}); !quit {
		t.Error("expected exit to end the shell")
	}
	if err := a.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if strings.Contains(errOut.String(), "Error") {
		t.Errorf("unexpected errors: %s", errOut.String())
	}

	// every shell command is saved as it runs
	tr, err := storage.NewJSONStorage(filepath.Join(dir, "bookmarks.json")).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tr.Entries) != 0 || len(tr.Folders) != 2 {
		t.Errorf("expected only the Work folder, got %d entries and %d folders", len(tr.Entries), len(tr.Folders))
	}
}

func mustResolve(t *testing.T, a *app, ref string) string {
	t.Helper()
	id, err := resolveNode(a.store, ref)
	if err != nil {
		t.Fatalf("resolve %q: %v", ref, err)
	}
	return id
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`ls`, []string{"ls"}},
		{`mv  "Read Later/Some Site"   Work`, []string{"mv", "Read Later/Some Site", "Work"}},
		{`rename x 'It''s'`, []string{"rename", "x", "Its"}},
		{`add ""`, []string{"add", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Errorf("%s: %v", tt.line, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: got %q, want %q", tt.line, got, tt.want)
		}
	}

	if _, err := splitArgs(`ls "open`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}
