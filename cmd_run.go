package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"nilox/host"
)

// runCmd implements the "run" subcommand: interpret a source file
// from disk to completion.
type runCmd struct {
	trace bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute Nilox code from a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile and execute Nilox source code from <file>.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.trace, "trace", false, "print each instruction as it executes")
}

func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	stdin := bufio.NewScanner(os.Stdin)
	read := func(prompt string) string {
		if prompt != "" {
			fmt.Fprint(os.Stderr, prompt)
		}
		if !stdin.Scan() {
			return ""
		}
		return stdin.Text()
	}

	if err := host.Run(string(data), read, r.trace); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
