// Command cbt reconciles crypto exchange ledgers into a cost basis report.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/cryptobasis/cmd"
	"github.com/google/subcommands"
)

func main() {
	completion.Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
