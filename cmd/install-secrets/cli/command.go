// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node in the command tree. A command either groups
// Subcommands (the root) or has a Run function (a leaf), never both.
type Command struct {
	// Name is the command name as typed by the user (e.g., "install").
	Name string

	// Summary is the one-line description shown in the parent's
	// command listing.
	Summary string

	// Description is the longer text at the top of the command's own
	// help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds the leaf's flag set. Called once per Execute, and
	// again for help and suggestions; nil means the command takes no
	// flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(args []string) error

	// HelpOutput receives help text. Only consulted on the root
	// command; nil means os.Stderr.
	HelpOutput io.Writer

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

// Execute routes args through the tree: a group dispatches on its
// first argument, a leaf parses flags and calls Run. Asking for help
// prints it and returns nil.
func (c *Command) Execute(args []string) error {
	if len(c.Subcommands) > 0 {
		return c.dispatch(args)
	}
	return c.runLeaf(args)
}

func (c *Command) dispatch(args []string) error {
	if len(args) == 0 {
		c.PrintHelp(c.helpOutput())
		return errors.New("subcommand required")
	}
	name := args[0]
	if isHelpFlag(name) {
		c.PrintHelp(c.helpOutput())
		return nil
	}
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(args[1:])
		}
	}

	suggestion := suggestCommand(name, c.Subcommands)
	if suggestion != "" {
		suggestion = fmt.Sprintf("%q", suggestion)
	}
	return c.usageError(fmt.Sprintf("unknown command %q", name), suggestion)
}

func (c *Command) runLeaf(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}
	if c.Flags != nil {
		flagSet := c.Flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				c.PrintHelp(c.helpOutput())
				return nil
			}
			// The failed parse may have assigned some fields; a fresh
			// set is only used for name lookup.
			return c.usageError(err.Error(), suggestFlag(args, c.Flags()))
		}
		args = flagSet.Args()
	}
	if c.Run == nil {
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(args)
}

// usageError appends an optional "did you mean" hint and a pointer to
// --help.
func (c *Command) usageError(message, suggestion string) error {
	if suggestion != "" {
		message += fmt.Sprintf(" (did you mean %s?)", suggestion)
	}
	return fmt.Errorf("%s\n\nRun '%s --help' for usage.", message, c.fullName())
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	var builder strings.Builder
	name := c.fullName()

	switch {
	case c.Description != "":
		fmt.Fprintf(&builder, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(&builder, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		} else {
			usage = name + " [flags]"
		}
	}
	fmt.Fprintf(&builder, "Usage:\n  %s\n", usage)

	if len(c.Subcommands) > 0 {
		builder.WriteString("\nCommands:\n")
		table := tabwriter.NewWriter(&builder, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		if usage := c.Flags().FlagUsages(); usage != "" {
			fmt.Fprintf(&builder, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		builder.WriteString("\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(&builder, "  # %s\n", example.Description)
			}
			fmt.Fprintf(&builder, "  %s\n\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(&builder, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
	io.WriteString(w, builder.String())
}

// fullName is the command path, e.g. "install-secrets install".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func (c *Command) helpOutput() io.Writer {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	if root.HelpOutput != nil {
		return root.HelpOutput
	}
	return os.Stderr
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
