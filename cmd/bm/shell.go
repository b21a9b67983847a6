package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/nikbrunner/favmark/internal/model"
)

const historyFileName = "shell_history"

// shell is the interactive session. The tree store lives across commands,
// which is what gives undo a meaning.
type shell struct {
	app   *app
	liner *liner.State
}

// runShell starts the REPL loop.
func runShell(ctx context.Context, a *app) error {
	s := &shell{app: a}

	// Set up liner for readline-style input
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	// Load history
	if f, err := os.Open(s.historyFile()); err == nil {
		_, _ = s.liner.ReadHistory(f)
		f.Close()
	}
	defer s.saveHistory()

	fmt.Fprintf(a.out, "bm shell (%s). Type 'help' for commands.\n", a.storage.Path())

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.liner.Prompt("bm> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.liner.AppendHistory(line)

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", err)
			continue
		}
		if quit := s.exec(ctx, args); quit {
			return nil
		}
	}
}

// exec runs one shell line and saves after every change so a crashed
// session loses nothing. It reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, args []string) bool {
	a := s.app
	switch args[0] {
	case "exit", "quit", "q":
		return true

	case "help", "?":
		s.printHelp()
		return false

	case "undo", "u":
		if a.store.Undo() {
			fmt.Fprintln(a.out, "Undone")
		} else {
			fmt.Fprintln(a.out, "Nothing to undo")
		}

	default:
		cmd, ok := lookup(commands(), args[0])
		if !ok {
			fmt.Fprintf(a.errOut, "Unknown command: %s (type 'help' for commands)\n", args[0])
			return false
		}
		if err := cmd.Run(ctx, a, args[1:]); err != nil {
			fmt.Fprintf(a.errOut, "Error: %v\n", err)
		}
	}

	if err := a.save(); err != nil {
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
	}
	return false
}

func (s *shell) printHelp() {
	w := s.app.out
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintln(w, c.HelpLine())
	}
	fmt.Fprintf(w, "  %-34s %s\n", "undo", "Revert the last change")
	fmt.Fprintf(w, "  %-34s %s\n", "exit", "Leave the shell")
}

func (s *shell) historyFile() string {
	return filepath.Join(s.app.cfg.DataDir, historyFileName)
}

// saveHistory persists command history to disk.
func (s *shell) saveHistory() {
	if f, err := os.Create(s.historyFile()); err == nil {
		_, _ = s.liner.WriteHistory(f)
		f.Close()
	}
}

// completer provides tab completion for command names.
func (s *shell) completer(line string) []string {
	if strings.Contains(line, " ") {
		return nil
	}
	var out []string
	names := []string{"undo", "exit", "help"}
	for _, c := range commands() {
		names = append(names, c.Name())
	}
	for _, n := range names {
		if strings.HasPrefix(n, line) {
			out = append(out, n)
		}
	}
	return out
}

// splitArgs splits a shell line on spaces. Double or single quotes group
// words, so paths with spaces can be written as "Read Later/Some Site".
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote rune
	inArg := false

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote", model.ErrInvalidInput)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
