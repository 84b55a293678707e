package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

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
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *Command {
	root := &Command{
		Name:        "pluginsync",
		Description: "pluginsync - resolve, verify and install host application plugins",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("pluginsync", flag.ExitOnError),
	}

	root.Subcommands["install"] = a.newInstallCommand()
	root.Subcommands["update"] = a.newUpdateCommand()
	root.Subcommands["resolve"] = a.newResolveCommand()
	root.Subcommands["check"] = a.newCheckCommand()
	root.Subcommands["verify"] = a.newVerifyCommand()
	root.Subcommands["history"] = a.newHistoryCommand()

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with args
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if isHelp(args[0]) {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		if len(args) > 1 && isHelp(args[1]) && subcmd.Flags != nil {
			return subcmd.help(c.Name)
		}
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for _, name := range names {
		fmt.Printf("  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// help prints the flags of a subcommand
func (c *Command) help(parent string) error {
	fmt.Printf("Usage: %s %s [flags] [args]\n\n%s\n\nFlags:\n", parent, c.Name, c.Description)
	c.Flags.SetOutput(os.Stdout)
	c.Flags.PrintDefaults()
	return nil
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "--help"
}
