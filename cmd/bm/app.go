package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nikbrunner/favmark/internal/backup"
	"github.com/nikbrunner/favmark/internal/config"
	"github.com/nikbrunner/favmark/internal/favicon"
	"github.com/nikbrunner/favmark/internal/iconstore"
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/progressui"
	"github.com/nikbrunner/favmark/internal/refresh"
	"github.com/nikbrunner/favmark/internal/storage"
	"github.com/nikbrunner/favmark/internal/tree"
)

// app is one bm session: the live tree plus every collaborator built from
// the configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	errOut  io.Writer
	storage storage.Storage
	store   *tree.Store
	icons   *iconstore.Store
	fetcher *favicon.Client
	backups *backup.Manager

	dirty    bool // tree changed since the last save
	backedUp bool // session backup already taken
	progress bool // show the progress bar for icon refreshes
}

// appParams holds parameters for opening an app.
type appParams struct {
	ConfigPath string
	Verbose    bool
	Out        io.Writer
	ErrOut     io.Writer
}

// openApp loads the configuration and the persisted tree.
func openApp(params appParams) (*app, error) {
	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(params.ErrOut, cfg.Log, params.Verbose)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	t, err := st.Load()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading bookmarks from %s: %w", st.Path(), err)
	}

	icons, err := iconstore.New(iconstore.Options{
		Dir:           cfg.IconDir(),
		ErrorCooldown: cfg.Icons.ErrorCooldown,
		Logger:        logger.With("component", "iconstore"),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	backups, err := backup.New(backup.Options{
		Dir:    cfg.BackupDir(),
		Retain: cfg.Backup.Retain,
		Logger: logger.With("component", "backup"),
		OnNotice: func(n backup.Notice) {
			if n.Kind == backup.NoticeFailed {
				fmt.Fprintf(params.ErrOut, "Backup failed: %v\n", n.Err)
			}
		},
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		out:     params.Out,
		errOut:  params.ErrOut,
		storage: st,
		icons:   icons,
		backups: backups,
		fetcher: favicon.New(favicon.Options{
			Timeout:         cfg.Icons.FetchTimeout,
			MaxBytes:        cfg.Icons.MaxIconBytes,
			UserAgent:       cfg.Icons.UserAgent,
			FallbackService: cfg.Icons.Fallback(),
			Logger:          logger.With("component", "favicon"),
		}),
		progress: isTerminal(params.ErrOut),
	}
	a.store = tree.NewStore(t, tree.Options{
		UndoDepth: cfg.UndoDepth,
		Logger:    logger.With("component", "tree"),
		OnChange: func(ev tree.Event) {
			a.dirty = true
			logger.Debug("tree changed", "kind", ev.Kind, "ids", len(ev.IDs), "undo", ev.Undo)
		},
	})
	return a, nil
}

// newLogger builds the process logger from the log section of the config.
func newLogger(w io.Writer, cfg config.Log, verbose bool) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", config.ErrInvalidConfig, err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// sessionBackup snapshots the tree once per session, before the first
// mutation. Failures are reported but never block the command.
func (a *app) sessionBackup() {
	if a.backedUp {
		return
	}
	a.backedUp = true
	if _, _, err := a.backups.AutoSnapshot(a.store.Snapshot(), a.cfg.Backup.MinInterval); err != nil {
		a.logger.Warn("session backup failed", "error", err)
	}
}

// save persists the tree if it changed.
func (a *app) save() error {
	if !a.dirty {
		return nil
	}
	if err := a.storage.Save(a.store.Snapshot()); err != nil {
		return fmt.Errorf("saving bookmarks: %w", err)
	}
	a.dirty = false
	return nil
}

func (a *app) close() error {
	return errors.Join(a.save(), a.storage.Close())
}

// refreshParams holds parameters for an icon refresh.
type refreshParams struct {
	Entries []model.Entry
	Force   bool
	Quiet   bool // no progress bar and no summary
}

// refreshIcons runs one scheduler batch over entries and waits for it.
func (a *app) refreshIcons(ctx context.Context, params refreshParams) refresh.Report {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var view *progressui.View
	opts := refresh.Options{
		Concurrency:   a.cfg.Icons.Concurrency,
		MaxAge:        a.cfg.Icons.MaxAge,
		Force:         params.Force,
		EvictCapacity: a.cfg.Icons.CapacityBytes,
		Logger:        a.logger.With("component", "refresh"),
	}
	if a.progress && !params.Quiet && len(params.Entries) > 0 {
		view = progressui.Start("Refreshing icons", cancel, tea.WithOutput(a.errOut))
		opts.OnProgress = view.Progress
	}

	sched := refresh.New(a.fetcher, a.icons, a.store, opts)
	batch := sched.Refresh(ctx, params.Entries)
	report := batch.Wait()

	if view != nil {
		if _, err := view.Finish(report); err != nil {
			a.logger.Warn("progress view failed", "error", err)
		}
		return report
	}
	if !params.Quiet {
		fmt.Fprintln(a.out, progressui.Summary(report))
	}
	return report
}

// describe renders a node for listings.
func describe(n model.Node) string {
	if n.Kind == model.KindFolder {
		name := n.Folder.Name + "/"
		if n.Folder.Locked {
			name += " (locked)"
		}
		return name
	}
	return fmt.Sprintf("%s  %s", n.Entry.Name, n.Entry.URL)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func joinPath(names []string) string {
	return "/" + strings.Join(names, "/")
}
