// Command folium manages holdings and prints portfolio valuations from the terminal.
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
	commander.Register(commander.CommandsCommand(), "")

	for _, c := range holdingCommands {
		commander.Register(c, "holdings")
	}
	for _, c := range viewCommands {
		commander.Register(c, "portfolio")
	}
	commander.Register(&searchCmd{}, "market")
	commander.Register(&quoteCmd{}, "market")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
