package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"
)

func main() {
	args := os.Args[1:]

	commands := map[string]cli.CommandFactory{
		"query": func() (cli.Command, error) {
			return &QueryCommand{}, nil
		},
	}

	readerCLI := &cli.CLI{
		Args:         args,
		Commands:     commands,
		HelpFunc:     cli.BasicHelpFunc("sqlitereader"),
		Autocomplete: true,
	}

	exitCode, err := readerCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}
