package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"nilox/compiler"
	"nilox/interner"
)

// emitBytecodeCmd implements the "emit" subcommand: compile a source
// file and write its disassembly and/or raw bytecode to files
// alongside it.
type emitBytecodeCmd struct {
	diassemble   bool
	dumpBytecode bool
}

func (*emitBytecodeCmd) Name() string { return "emit" }
func (*emitBytecodeCmd) Synopsis() string {
	return "Emit the bytecode representation of a source file"
}
func (*emitBytecodeCmd) Usage() string {
	return `nilox emit <file>`
}

func (cmd *emitBytecodeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.diassemble, "diassemble", true, "disassemble the bytecode and dump it to a .nic text file")
	f.BoolVar(&cmd.dumpBytecode, "dumpBytecode", false, "write the raw bytecode, hex-encoded, to a .nibc file")
}

func (cmd *emitBytecodeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	niloxFile := args[0]
	data, err := os.ReadFile(niloxFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file:\n\t%v", err.Error())
		return subcommands.ExitFailure
	}

	in := interner.New()
	fn, errs := compiler.Compile(string(data), in, false)
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "💥 Compilation error:\n")
		for _, cErr := range errs {
			fmt.Fprintf(os.Stderr, "\t%v\n", cErr)
		}
		return subcommands.ExitFailure
	}

	base := strings.TrimSuffix(niloxFile, filepath.Ext(niloxFile))

	if cmd.diassemble {
		out, err := os.Create(base + ".nic")
		if err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to create disassembly file:\n\t%v\n", err)
			return subcommands.ExitFailure
		}
		compiler.Disassemble(out, fn.Chunk, "<script>", in)
		out.Close()
	}

	if cmd.dumpBytecode {
		if err := os.WriteFile(base+".nibc", []byte(hex.EncodeToString(fn.Chunk.Code)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to write bytecode dump:\n\t%v\n", err)
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}
