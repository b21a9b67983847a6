package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/nikbrunner/favmark/internal/exporter"
	"github.com/nikbrunner/favmark/internal/importer"
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/storage"
)

// commands returns every subcommand in help order.
func commands() []*command {
	return []*command{
		lsCmd(),
		addCmd(),
		mkdirCmd(),
		mvCmd(),
		rmCmd(),
		renameCmd(),
		lockCmd(true),
		lockCmd(false),
		findCmd(),
		openCmd(),
		importCmd(),
		exportCmd(),
		iconsCmd(),
		backupCmd(),
		backupsCmd(),
		restoreCmd(),
	}
}

func lsCmd() *command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	recursive := fs.BoolP("recursive", "r", false, "list the whole subtree")
	ids := fs.Bool("ids", false, "show node ids")

	return &command{
		Flags: fs,
		Usage: "ls [folder] [-r] [--ids]",
		Short: "List a folder",
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 0, 1); err != nil {
				return err
			}
			folder, err := resolveFolder(a.store, arg(args, 0))
			if err != nil {
				return err
			}

			snap := a.store.Snapshot()
			snap.Walk(folder, func(n model.Node) bool {
				if !*recursive && n.Depth > 1 {
					return true
				}
				prefix := strings.Repeat("  ", n.Depth-1)
				if *ids {
					prefix += n.ID() + "  "
				}
				fmt.Fprintf(a.out, "%s%s\n", prefix, describe(n))
				return true
			})
			return nil
		},
	}
}

func addCmd() *command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.StringP("name", "n", "", "display name (defaults to the URL)")
	folder := fs.StringP("folder", "f", "", "target folder path or id")
	quick := fs.BoolP("quick", "q", false, "add to the quick-add folder, creating it if needed")
	noIcon := fs.Bool("no-icon", false, "do not fetch the site icon")

	return &command{
		Flags:   fs,
		Usage:   "add <url> [-n name] [-f folder | -q]",
		Short:   "Add a bookmark",
		Mutates: true,
		Exec: func(ctx context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 1); err != nil {
				return err
			}

			var parent string
			var err error
			switch {
			case *quick:
				parent, err = ensureFolder(a.store, a.cfg.QuickAddFolder)
			default:
				parent, err = resolveFolder(a.store, *folder)
			}
			if err != nil {
				return err
			}

			id, err := a.store.AddEntry(parent, model.NewEntryParams{Name: *name, URL: args[0]})
			if err != nil {
				return err
			}
			e, err := a.store.Entry(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added: %s\n", e.Name)

			if !*noIcon {
				a.refreshIcons(ctx, refreshParams{Entries: []model.Entry{e}, Quiet: true})
			}
			return nil
		},
	}
}

func mkdirCmd() *command {
	return &command{
		Usage:   "mkdir <path>",
		Short:   "Create a folder and any missing parents",
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 1); err != nil {
				return err
			}
			if len(splitPath(args[0])) == 0 {
				return fmt.Errorf("%w: empty folder path", model.ErrInvalidInput)
			}
			id, err := ensureFolder(a.store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Folder: %s\n", joinPath(a.store.Path(id)))
			return nil
		},
	}
}

func mvCmd() *command {
	fs := flag.NewFlagSet("mv", flag.ContinueOnError)
	position := fs.IntP("position", "p", -1, "index within the target folder (default: append)")

	return &command{
		Flags:   fs,
		Usage:   "mv <node> <folder> [-p index]",
		Short:   "Move a bookmark or folder",
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 2, 2); err != nil {
				return err
			}
			node, err := resolveNode(a.store, args[0])
			if err != nil {
				return err
			}
			target, err := resolveFolder(a.store, args[1])
			if err != nil {
				return err
			}
			if err := a.store.Move(node, target, *position); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Moved to %s\n", joinPath(a.store.Path(node)))
			return nil
		},
	}
}

func rmCmd() *command {
	return &command{
		Usage:   "rm <node>",
		Short:   "Delete a bookmark, or a folder with everything in it",
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 1); err != nil {
				return err
			}
			node, err := resolveNode(a.store, args[0])
			if err != nil {
				return err
			}
			path := joinPath(a.store.Path(node))
			if err := a.store.Delete(node); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted: %s\n", path)
			return nil
		},
	}
}

func renameCmd() *command {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	newURL := fs.String("url", "", "change the bookmark URL instead of (or as well as) the name")

	return &command{
		Flags:   fs,
		Usage:   "rename <node> [name] [--url url]",
		Short:   "Rename a node or change a bookmark URL",
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 2); err != nil {
				return err
			}
			if len(args) == 1 && *newURL == "" {
				return errUsage
			}
			node, err := resolveNode(a.store, args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				if err := a.store.Rename(node, args[1]); err != nil {
					return err
				}
			}
			if *newURL != "" {
				if err := a.store.SetURL(node, *newURL); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "Updated: %s\n", joinPath(a.store.Path(node)))
			return nil
		},
	}
}

func lockCmd(locked bool) *command {
	usage, short := "lock <folder>", "Mark a folder as locked"
	if !locked {
		usage, short = "unlock <folder>", "Clear the locked mark of a folder"
	}
	return &command{
		Usage:   usage,
		Short:   short,
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 1); err != nil {
				return err
			}
			folder, err := resolveFolder(a.store, args[0])
			if err != nil {
				return err
			}
			return a.store.SetLocked(folder, locked)
		},
	}
}

func findCmd() *command {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	in := fs.String("in", "", "restrict the search to a folder")

	return &command{
		Flags: fs,
		Usage: "find <text> [--in folder]",
		Short: "Substring search over names and URLs, in tree order",
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, -1); err != nil {
				return err
			}
			scope, err := resolveFolder(a.store, *in)
			if err != nil {
				return err
			}
			matches, err := a.store.Search(strings.Join(args, " "), scope)
			if err != nil {
				return err
			}

			n := 0
			for m := range matches {
				line := joinPath(m.Path)
				if m.Node.Kind == model.KindFolder {
					line += "/"
				} else {
					line += "  " + m.Node.Entry.URL
				}
				fmt.Fprintln(a.out, line)
				n++
			}
			if n == 0 {
				fmt.Fprintln(a.out, "No matches")
			}
			return nil
		},
	}
}

func importCmd() *command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	into := fs.String("into", "", "folder to import into (default: root)")
	icons := fs.Bool("icons", false, "fetch icons for the imported bookmarks")

	return &command{
		Flags:   fs,
		Usage:   "import <file> [--into folder] [--icons]",
		Short:   "Import Netscape HTML, Chromium Bookmarks or a bm JSON export",
		Mutates: true,
		Exec: func(ctx context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 1); err != nil {
				return err
			}
			parent, err := ensureFolder(a.store, *into)
			if err != nil {
				return err
			}

			records, err := importer.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			res, err := importer.Apply(a.store, parent, records)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Imported %d bookmarks, %d folders", res.Added, res.Folders)
			if res.Skipped > 0 {
				fmt.Fprintf(a.out, " (%d duplicates skipped)", res.Skipped)
			}
			if res.Invalid > 0 {
				fmt.Fprintf(a.out, " (%d invalid URLs)", res.Invalid)
			}
			fmt.Fprintln(a.out)

			if *icons && res.Added > 0 {
				entries, err := a.store.Entries(parent)
				if err != nil {
					return err
				}
				a.refreshIcons(ctx, refreshParams{Entries: entries})
			}
			return nil
		},
	}
}

func exportCmd() *command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	folder := fs.StringP("folder", "f", "", "export only this folder")
	format := fs.String("format", "html", "html or json")

	return &command{
		Flags: fs,
		Usage: "export [path] [-f folder] [--format html|json]",
		Short: "Export bookmarks (default ~/Downloads/bookmarks-export-DATE.html)",
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 0, 1); err != nil {
				return err
			}

			outputPath := arg(args, 0)
			if outputPath == "" {
				var err error
				outputPath, err = exporter.DefaultExportPath()
				if err != nil {
					return err
				}
				if *format == "json" {
					outputPath = strings.TrimSuffix(outputPath, ".html") + ".json"
				}
			}

			id, err := resolveFolder(a.store, *folder)
			if err != nil {
				return err
			}
			snap, err := a.store.Snapshot().Extract(id)
			if err != nil {
				return err
			}

			var data string
			switch *format {
			case "html":
				data, err = exporter.ExportFolderHTML(snap, id)
				if err != nil {
					return err
				}
			case "json":
				b, err := storage.Marshal(snap)
				if err != nil {
					return err
				}
				data = string(b)
			default:
				return fmt.Errorf("%w: unknown format %q", model.ErrInvalidInput, *format)
			}

			if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return err
			}
			if err := atomic.WriteFile(outputPath, strings.NewReader(data)); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Exported %d bookmarks, %d folders to %s\n",
				len(snap.Entries), len(snap.Folders)-1, outputPath)
			return nil
		},
	}
}

func iconsCmd() *command {
	fs := flag.NewFlagSet("icons", flag.ContinueOnError)
	force := fs.Bool("force", false, "refetch icons that are still fresh")
	noProgress := fs.Bool("no-progress", false, "print a summary instead of the progress bar")
	capacity := fs.Int64("capacity", 0, "evict down to this many bytes (default: icons.capacityBytes)")

	return &command{
		Flags:   fs,
		Usage:   "icons <refresh [folder]|evict|ls>",
		Short:   "Refresh, list or evict cached site icons",
		Mutates: false,
		Exec: func(ctx context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, 2); err != nil {
				return err
			}

			switch args[0] {
			case "refresh":
				scope, err := resolveFolder(a.store, arg(args, 1))
				if err != nil {
					return err
				}
				entries, err := a.store.Entries(scope)
				if err != nil {
					return err
				}
				if *noProgress {
					a.progress = false
				}
				report := a.refreshIcons(ctx, refreshParams{Entries: entries, Force: *force})
				for _, key := range report.Failed {
					fmt.Fprintf(a.errOut, "  failed: %s\n", key)
				}
				return nil

			case "evict":
				limit := *capacity
				if limit <= 0 {
					limit = a.cfg.Icons.CapacityBytes
				}
				evicted, err := a.icons.Evict(limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Evicted %d icons\n", len(evicted))
				return nil

			case "ls":
				records, err := a.icons.List()
				if err != nil {
					return err
				}
				var total int64
				for _, r := range records {
					total += r.Size
					fmt.Fprintf(a.out, "%-32s %-13s %-5s %8s  %s\n",
						r.SiteKey, r.Outcome, r.Format, humanize.IBytes(uint64(r.Size)), humanize.Time(r.FetchedAt))
				}
				fmt.Fprintf(a.out, "%d icons, %s in %s\n", len(records), humanize.IBytes(uint64(total)), a.icons.Dir())
				return nil

			default:
				return errUsage
			}
		},
	}
}

func backupCmd() *command {
	return &command{
		Usage: "backup",
		Short: "Write a backup snapshot now",
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 0, 0); err != nil {
				return err
			}
			h, err := a.backups.Snapshot(a.store.Snapshot())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Backup written: %s\n", h.JSONPath)
			return nil
		},
	}
}

func backupsCmd() *command {
	return &command{
		Usage: "backups",
		Short: "List backup snapshots, newest first",
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 0, 0); err != nil {
				return err
			}
			handles, err := a.backups.List()
			if err != nil {
				return err
			}
			if len(handles) == 0 {
				fmt.Fprintf(a.out, "No backups in %s\n", a.backups.Dir())
				return nil
			}
			for _, h := range handles {
				fmt.Fprintf(a.out, "%s  %s (%s)\n", h.Name, formatTime(h.Time), humanize.Time(h.Time))
			}
			return nil
		},
	}
}

func restoreCmd() *command {
	return &command{
		Usage:   "restore [name]",
		Short:   "Replace the bookmarks with a backup (default: the newest)",
		Mutates: true,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 0, 1); err != nil {
				return err
			}

			h, ok, err := a.backups.Latest()
			if err != nil {
				return err
			}
			if name := arg(args, 0); name != "" {
				h, err = a.backups.Find(name)
				if err != nil {
					return err
				}
			} else if !ok {
				return fmt.Errorf("no backups in %s: %w", a.backups.Dir(), model.ErrNotFound)
			}

			t, err := a.backups.Restore(h)
			if err != nil {
				return err
			}

			// keep the tree being replaced
			if _, err := a.backups.Snapshot(a.store.Snapshot()); err != nil {
				return fmt.Errorf("backing up current bookmarks: %w", err)
			}
			if err := a.store.Adopt(t); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Restored %s (%d bookmarks)\n", h.Name, len(t.Entries))
			return nil
		},
	}
}
