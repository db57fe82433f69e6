package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// output receives command results; tests swap it
var output io.Writer = os.Stdout

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "sphinxql",
		Description: "sphinxql - build and run SphinxQL statements",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("sphinxql", flag.ExitOnError),
	}

	root.Subcommands["render"] = newRenderCommand()
	root.Subcommands["query"] = newQueryCommand()
	root.Subcommands["exec"] = newExecCommand()

	return root
}

// Execute runs the subcommand named by os.Args
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the subcommand named by args[0]
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(output, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(output, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(output, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
