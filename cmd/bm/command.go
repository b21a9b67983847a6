package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// command is one bm subcommand. Commands are built fresh for every
// invocation because flag sets keep their parsed values.
type command struct {
	Flags *flag.FlagSet

	// Usage is shown after "bm" in help; its first word is the name.
	Usage string
	Short string

	// Mutates marks commands that change the tree. The session backup is
	// taken before the first one runs.
	Mutates bool

	Exec func(ctx context.Context, a *app, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

// PrintHelp prints usage and flag defaults.
func (c *command) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: bm %s\n\n%s\n", c.Usage, c.Short)
	if c.Flags != nil && c.Flags.HasFlags() {
		fmt.Fprintf(w, "\nFlags:\n%s", c.Flags.FlagUsages())
	}
}

// errUsage signals wrong arguments; the command help is printed.
var errUsage = errors.New("wrong arguments")

// Run parses flags and executes the command against a.
func (c *command) Run(ctx context.Context, a *app, args []string) error {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	}
	c.Flags.SetOutput(io.Discard)

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(a.out)
			return nil
		}
		c.PrintHelp(a.errOut)
		return err
	}

	if c.Mutates {
		a.sessionBackup()
	}

	err := c.Exec(ctx, a, c.Flags.Args())
	if errors.Is(err, errUsage) {
		c.PrintHelp(a.errOut)
	}
	return err
}

// lookup finds a command by name.
func lookup(cmds []*command, name string) (*command, bool) {
	for _, c := range cmds {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// arg returns args[i] or "".
func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// wantArgs checks the positional argument count.
func wantArgs(args []string, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return errUsage
	}
	return nil
}
