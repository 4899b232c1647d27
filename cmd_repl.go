package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"nilox/host"
)

// replCmd implements the "repl" subcommand: an interactive session
// backed by readline for line editing and history.
type replCmd struct {
	trace bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive Nilox session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive REPL session.
`
}

func (r *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.trace, "trace", false, "print each instruction as it executes")
}

func (r *replCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\n\nWelcome to Nilox!")

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to start REPL: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	// read is the host's asynchronous input callback: a Read* native
	// blocks the session on another readline prompt, sharing the same
	// terminal and history as the top-level loop.
	read := func(prompt string) string {
		rl.SetPrompt(prompt)
		line, err := rl.Readline()
		rl.SetPrompt(">>> ")
		if err != nil {
			return ""
		}
		return line
	}

	// A program is recompiled from scratch on every line, so the
	// accumulated session buffer carries variable and global state
	// across prompts; a line that fails to compile or run is dropped
	// from the buffer rather than left to poison later lines.
	var session strings.Builder

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return subcommands.ExitSuccess
			}
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		if strings.TrimSpace(line) == "exit" {
			return subcommands.ExitSuccess
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		before := session.Len()
		session.WriteString(line)
		session.WriteString("\n")

		if err := host.Run(session.String(), read, r.trace); err != nil {
			fmt.Fprintln(os.Stderr, err)
			trimmed := session.String()[:before]
			session.Reset()
			session.WriteString(trimmed)
		}
	}
}
