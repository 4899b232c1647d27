package compiler

import (
	"encoding/binary"
	"fmt"
	"io"

	"nilox/value"
)

// Lookup resolves interned StrIds for disassembly output.
type Lookup interface {
	value.Lookup
}

// Disassemble writes a human-readable listing of every instruction in
// chunk to w, prefixed by name. Compile calls it when its runtime
// trace flag is set (Go has no cheap conditional compilation for
// this), and the emit subcommand calls it to write a listing file.
func Disassemble(w io.Writer, chunk *Chunk, name string, lookup Lookup) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset, lookup)
	}
}

// DisassembleInstruction prints the instruction at offset and returns
// the offset of the next one.
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int, lookup Lookup) int {
	fmt.Fprintf(w, "%04d %4d ", offset, chunk.Line(offset))

	op := Opcode(chunk.Code[offset])
	def, err := Get(op)
	if err != nil {
		fmt.Fprintf(w, "Invalid opcode %d\n", chunk.Code[offset])
		return offset + 1
	}

	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		return constantInstruction(w, def, chunk, offset, lookup)
	case OpGetLocal, OpSetLocal, OpCall:
		return byteInstruction(w, def, chunk, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(w, def, chunk, offset, 1)
	case OpLoop:
		return jumpInstruction(w, def, chunk, offset, -1)
	default:
		return simpleInstruction(w, def, offset)
	}
}

func simpleInstruction(w io.Writer, def *OpDefinition, offset int) int {
	fmt.Fprintln(w, def.Name)
	return offset + 1
}

func byteInstruction(w io.Writer, def *OpDefinition, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", def.Name, slot)
	return offset + 2
}

func constantInstruction(w io.Writer, def *OpDefinition, chunk *Chunk, offset int, lookup Lookup) int {
	idx := chunk.Code[offset+1]
	v := chunk.Constants[idx]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", def.Name, idx, value.Display(v, lookup))
	return offset + 2
}

func jumpInstruction(w io.Writer, def *OpDefinition, chunk *Chunk, offset int, sign int) int {
	jump := int(binary.BigEndian.Uint16(chunk.Code[offset+1 : offset+3]))
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", def.Name, offset, target)
	return offset + 3
}
