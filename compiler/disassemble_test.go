package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nilox/interner"
)

func TestDisassembleListsEveryInstruction(t *testing.T) {
	in := interner.New()
	fn, errs := Compile(`var x = 1; if (x < 2) { print x; }`, in, false)
	require.Empty(t, errs)

	var buf strings.Builder
	Disassemble(&buf, fn.Chunk, "<script>", in)
	out := buf.String()

	require.Contains(t, out, "== <script> ==")
	for _, mnemonic := range []string{
		"OP_CONSTANT", "OP_DEFINE_GLOBAL", "OP_GET_GLOBAL",
		"OP_LESS", "OP_JUMP_IF_FALSE", "OP_PRINT", "OP_RETURN",
	} {
		require.Contains(t, out, mnemonic)
	}

	// one listing line per instruction, so line count matches a manual
	// walk of the chunk (plus the header).
	lines := strings.Count(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, len(instructionBoundaries(t, fn.Chunk)), lines)
}

func TestDisassembleConstantShowsValue(t *testing.T) {
	in := interner.New()
	fn, errs := Compile(`print "hello";`, in, false)
	require.Empty(t, errs)

	var buf strings.Builder
	Disassemble(&buf, fn.Chunk, "test", in)
	require.Contains(t, buf.String(), "'hello'")
}
