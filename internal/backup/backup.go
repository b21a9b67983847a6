// Package backup writes timestamped snapshots of the bookmark tree and
// restores them. Every snapshot has a structured JSON form, which is the
// one restored, and a Netscape HTML form for use in any browser.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/nikbrunner/favmark/internal/exporter"
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/storage"
)

// DefaultRetain is the number of snapshots kept when none is configured.
const DefaultRetain = 10

// timeLayout is the timestamp embedded in file names, always UTC.
const timeLayout = "20060102_150405.000"

const (
	suffix     = "_bookmarks"
	jsonExt    = ".json"
	htmlExt    = ".html"
	maxCollide = 100
)

var nameRe = regexp.MustCompile(`^(\d{8}_\d{6}\.\d{3})(?:-(\d+))?_bookmarks\.json$`)

// Handle identifies one snapshot on disk.
type Handle struct {
	Name     string // file stem shared by both forms
	Time     time.Time
	JSONPath string
	HTMLPath string

	seq int // collision counter within one millisecond
}

// NoticeKind classifies a backup notice.
type NoticeKind string

const (
	NoticeCompleted NoticeKind = "completed"
	NoticeSkipped   NoticeKind = "skipped"
	NoticeFailed    NoticeKind = "failed"
)

// Notice reports the outcome of a snapshot to the presentation layer.
type Notice struct {
	Kind    NoticeKind
	Handle  Handle
	Removed []string // names deleted by rotation
	Err     error
	At      time.Time
}

// Options configures a Manager.
type Options struct {
	Dir      string
	Retain   int // <=0 uses DefaultRetain
	Now      func() time.Time
	Logger   *slog.Logger
	OnNotice func(Notice)
}

// Manager owns one backup directory.
type Manager struct {
	dir      string
	retain   int
	now      func() time.Time
	logger   *slog.Logger
	onNotice func(Notice)
}

// New returns a Manager for opts.Dir. The directory is created on the first
// snapshot.
func New(opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: backup directory is empty", model.ErrInvalidInput)
	}
	if opts.Retain <= 0 {
		opts.Retain = DefaultRetain
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		dir:      opts.Dir,
		retain:   opts.Retain,
		now:      opts.Now,
		logger:   opts.Logger,
		onNotice: opts.OnNotice,
	}, nil
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot writes both forms of t under a fresh timestamped name, then
// deletes the oldest snapshots beyond the retention count.
func (m *Manager) Snapshot(t *model.Tree) (Handle, error) {
	h, removed, err := m.snapshot(t)
	if err != nil {
		m.logger.Error("backup failed", "dir", m.dir, "error", err)
		m.notify(Notice{Kind: NoticeFailed, Err: err})
		return Handle{}, err
	}

	m.logger.Info("backup written", "name", h.Name, "rotated", len(removed))
	m.notify(Notice{Kind: NoticeCompleted, Handle: h, Removed: removed})
	return h, nil
}

// AutoSnapshot takes a snapshot unless the newest one is younger than
// minInterval. It reports whether a snapshot was written; when skipped the
// returned handle is the existing newest snapshot.
func (m *Manager) AutoSnapshot(t *model.Tree, minInterval time.Duration) (Handle, bool, error) {
	if minInterval > 0 {
		latest, ok, err := m.Latest()
		if err != nil {
			return Handle{}, false, err
		}
		if ok && m.now().Sub(latest.Time) < minInterval {
			m.logger.Debug("backup skipped", "latest", latest.Name, "minInterval", minInterval)
			m.notify(Notice{Kind: NoticeSkipped, Handle: latest})
			return latest, false, nil
		}
	}

	h, err := m.Snapshot(t)
	if err != nil {
		return Handle{}, false, err
	}
	return h, true, nil
}

func (m *Manager) snapshot(t *model.Tree) (Handle, []string, error) {
	data, err := storage.Marshal(t)
	if err != nil {
		return Handle{}, nil, fmt.Errorf("encode backup: %w", err)
	}
	markup := exporter.ExportHTML(t)

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return Handle{}, nil, fmt.Errorf("create backup dir: %w", err)
	}

	h, err := m.reserve(m.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return Handle{}, nil, err
	}

	if err := atomic.WriteFile(h.JSONPath, bytes.NewReader(data)); err != nil {
		return Handle{}, nil, fmt.Errorf("write %s: %w", filepath.Base(h.JSONPath), err)
	}
	if err := atomic.WriteFile(h.HTMLPath, strings.NewReader(markup)); err != nil {
		_ = os.Remove(h.JSONPath)
		return Handle{}, nil, fmt.Errorf("write %s: %w", filepath.Base(h.HTMLPath), err)
	}

	removed, err := m.rotate()
	if err != nil {
		// the new snapshot is intact; rotation is retried next time
		m.logger.Warn("backup rotation failed", "error", err)
	}
	return h, removed, nil
}

// reserve picks a name for ts that no existing snapshot uses.
func (m *Manager) reserve(ts time.Time) (Handle, error) {
	for seq := 0; seq < maxCollide; seq++ {
		h := m.handle(ts, seq)
		if _, err := os.Stat(h.JSONPath); errors.Is(err, fs.ErrNotExist) {
			return h, nil
		}
	}
	return Handle{}, fmt.Errorf("%w: too many backups at %s", model.ErrInvalidInput, ts.Format(timeLayout))
}

func (m *Manager) handle(ts time.Time, seq int) Handle {
	stem := ts.Format(timeLayout)
	if seq > 0 {
		stem += "-" + strconv.Itoa(seq)
	}
	stem += suffix
	return Handle{
		Name:     stem,
		Time:     ts,
		JSONPath: filepath.Join(m.dir, stem+jsonExt),
		HTMLPath: filepath.Join(m.dir, stem+htmlExt),
		seq:      seq,
	}
}

// rotate deletes the oldest snapshots until at most retain remain.
func (m *Manager) rotate() ([]string, error) {
	handles, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(handles) <= m.retain {
		return nil, nil
	}

	var removed []string
	var errs []error
	for _, h := range handles[m.retain:] {
		for _, p := range []string{h.JSONPath, h.HTMLPath} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		removed = append(removed, h.Name)
	}
	return removed, errors.Join(errs...)
}

// List returns all snapshots, newest first. A missing directory has none.
func (m *Manager) List() ([]Handle, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var handles []Handle
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		match := nameRe.FindStringSubmatch(de.Name())
		if match == nil {
			continue
		}
		ts, err := time.ParseInLocation(timeLayout, match[1], time.UTC)
		if err != nil {
			continue
		}
		seq := 0
		if match[2] != "" {
			seq, _ = strconv.Atoi(match[2])
		}
		handles = append(handles, m.handle(ts, seq))
	}

	slices.SortFunc(handles, func(a, b Handle) int {
		if c := b.Time.Compare(a.Time); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	return handles, nil
}

// Latest returns the newest snapshot, if any.
func (m *Manager) Latest() (Handle, bool, error) {
	handles, err := m.List()
	if err != nil || len(handles) == 0 {
		return Handle{}, false, err
	}
	return handles[0], true, nil
}

// Find resolves a snapshot by name, with or without the .json extension.
func (m *Manager) Find(name string) (Handle, error) {
	name = strings.TrimSuffix(filepath.Base(name), jsonExt)
	handles, err := m.List()
	if err != nil {
		return Handle{}, err
	}
	for _, h := range handles {
		if h.Name == name {
			return h, nil
		}
	}
	return Handle{}, fmt.Errorf("backup %q: %w", name, model.ErrNotFound)
}

// Restore parses the structured form of h into a new tree. The live tree is
// never touched; the caller decides whether to adopt the result.
func (m *Manager) Restore(h Handle) (*model.Tree, error) {
	data, err := os.ReadFile(h.JSONPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("backup %q: %w", h.Name, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup %q: %w", h.Name, err)
	}

	t, err := storage.Unmarshal(data)
	if err != nil {
		m.logger.Warn("corrupt backup", "name", h.Name, "error", err)
		return nil, fmt.Errorf("backup %q: %w: %v", h.Name, model.ErrCorruptBackup, err)
	}
	return t, nil
}

func (m *Manager) notify(n Notice) {
	if m.onNotice == nil {
		return
	}
	n.At = m.now()
	m.onNotice(n)
}
