package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/nikbrunner/favmark/internal/config"
	"github.com/nikbrunner/favmark/internal/model"
	"github.com/nikbrunner/favmark/internal/picker"
	"github.com/nikbrunner/favmark/internal/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags and dispatches. It returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bm", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	configPath := fs.StringP("config", "c", "", "config file (default ~/.config/bm/config.json)")
	verbose := fs.BoolP("verbose", "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printHelp(stdout)
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	rest := fs.Args()

	if len(rest) > 0 {
		switch rest[0] {
		case "help", "--help", "-h":
			printHelp(stdout)
			return 0
		}
	}

	if *configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(stderr, "Error getting config path: %v\n", err)
			return 1
		}
		*configPath = path
	}

	a, err := openApp(appParams{ConfigPath: *configPath, Verbose: *verbose, Out: stdout, ErrOut: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	code := dispatch(ctx, a, rest)
	if err := a.close(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

// dispatch runs one command line. No arguments opens the shell; an unknown
// first word is a quick-search query.
func dispatch(ctx context.Context, a *app, args []string) int {
	if len(args) == 0 {
		if err := runShell(ctx, a); err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cmd, ok := lookup(commands(), args[0])
	if !ok {
		cmd, _ = lookup(commands(), "open")
	} else {
		args = args[1:]
	}

	if err := cmd.Run(ctx, a, args); err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printHelp(w io.Writer) {
	var b strings.Builder
	b.WriteString(`bm - bookmark manager with a favicon cache

Usage:
  bm                                 Open the interactive shell
  bm <query>                         Quick search → select → open
`)
	for _, c := range commands() {
		b.WriteString(c.HelpLine())
		b.WriteString("\n")
	}
	b.WriteString(`  help                               Show this help

Global flags:
  -c, --config <path>                Config file
  -v, --verbose                      Debug logging

Nodes are named by id or by path from the root, e.g. "Work/Site A".

Data Storage:
  ~/.config/bm/bookmarks.json (or bookmarks.db with "storage": "sqlite")
  ~/.config/bm/icons/, ~/.config/bm/backups/
`)
	fmt.Fprint(w, b.String())
}

func openCmd() *command {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	copyURL := fs.BoolP("copy", "y", false, "copy the URL to the clipboard instead of opening it")

	return &command{
		Flags:   fs,
		Usage:   "open <query> [-y]",
		Short:   "Fuzzy search by name and open the chosen bookmark",
		Mutates: false,
		Exec: func(_ context.Context, a *app, args []string) error {
			if err := wantArgs(args, 1, -1); err != nil {
				return err
			}
			return runQuickSearch(a, strings.Join(args, " "), *copyURL)
		},
	}
}

// runQuickSearch performs a fuzzy search and opens the selected bookmark.
func runQuickSearch(a *app, query string, copyURL bool) error {
	entries, err := a.store.Entries(a.store.RootID())
	if err != nil {
		return err
	}

	// Search
	results := search.Fuzzy(entries, query)

	if len(results) == 0 {
		fmt.Fprintf(a.out, "No bookmarks found for '%s'\n", query)
		return nil
	}

	var selected model.Entry
	action := picker.ActionOpen
	if copyURL {
		action = picker.ActionCopy
	}

	if len(results) == 1 {
		// Single result - select it directly
		selected = results[0].Entry
	} else {
		// Multiple results - show picker
		paths := make(map[string]string, len(results))
		for _, r := range results {
			if folder := a.store.Path(r.Entry.ParentID); len(folder) > 0 {
				paths[r.Entry.ID] = strings.Join(folder, "/")
			}
		}

		program := tea.NewProgram(picker.New(results, query, paths), tea.WithOutput(a.errOut))
		finalModel, err := program.Run()
		if err != nil {
			return fmt.Errorf("running picker: %w", err)
		}

		var ok bool
		var chosen picker.Action
		selected, chosen, ok = finalModel.(picker.Picker).Selected()
		if !ok {
			return nil
		}
		if chosen == picker.ActionCopy {
			action = picker.ActionCopy
		}
	}

	if action == picker.ActionCopy {
		if err := clipboard.WriteAll(selected.URL); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		fmt.Fprintf(a.out, "Copied: %s\n", selected.URL)
		return nil
	}

	fmt.Fprintf(a.out, "Opening: %s\n", selected.Name)

	// Update visitedAt
	if err := a.store.Visit(selected.ID); err != nil {
		a.logger.Warn("recording visit failed", "id", selected.ID, "error", err)
	}

	// Open in browser
	openURL(selected.URL)
	return nil
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}
