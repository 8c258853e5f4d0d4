// Command arcanum is the command-line interface to the runtime: forcing
// serialized functions to completion, optionally attached to a live
// terminal for their console effects.
package main

import (
	"context"
	"os"

	"github.com/arcanum-run/arcanum/internal/cli"
	"github.com/arcanum-run/arcanum/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Runner(),
		cmd.Attacher(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
