// Command beam runs portfolio operations from the terminal: imports,
// live summaries, historical valuation, momentum and backups.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "portfolio")
	}
	commander.Register(&backupCmd{out: os.Stdout}, "maintenance")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
