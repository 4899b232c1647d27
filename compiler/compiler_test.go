package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"nilox/interner"
	"nilox/value"
)

func compileOK(t *testing.T, source string) *Function {
	t.Helper()
	in := interner.New()
	fn, errs := Compile(source, in, false)
	require.Empty(t, errs)
	require.NotNil(t, fn)
	return fn
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	code := fn.Chunk.Code
	// multiply must appear before add: "*" binds tighter than "+".
	mulIdx := indexOfOp(code, OpMultiply)
	addIdx := indexOfOp(code, OpAdd)
	require.GreaterOrEqual(t, mulIdx, 0)
	require.Greater(t, addIdx, mulIdx)
}

func TestCompileVarDeclarationAndGlobalAccess(t *testing.T) {
	fn := compileOK(t, "var x = 10; print x;")
	code := fn.Chunk.Code
	require.Contains(t, opcodeSequence(code), OpDefineGlobal)
	require.Contains(t, opcodeSequence(code), OpGetGlobal)
}

func TestCompileArrayDeclarationEmitsDeclareArray(t *testing.T) {
	fn := compileOK(t, "var arr[5];")
	require.Contains(t, opcodeSequence(fn.Chunk.Code), OpDeclareArray)
}

func TestCompileArrayIndexPushesNilSentinelWhenAbsent(t *testing.T) {
	fn := compileOK(t, "var x = 1; print x;")
	// the bare-identifier path emits OpNil (the "no index" sentinel)
	// immediately before the OpGetGlobal that reads it.
	code := fn.Chunk.Code
	getIdx := indexOfOp(code, OpGetGlobal)
	require.Greater(t, getIdx, 0)
	require.Equal(t, byte(OpNil), code[getIdx-1])
}

func TestCompileCallExpressionEmitsCallWithArgCount(t *testing.T) {
	fn := compileOK(t, "Clock();")
	code := fn.Chunk.Code
	idx := indexOfOp(code, OpCall)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, byte(0), code[idx+1])
}

func TestCompileCallExpressionWithArguments(t *testing.T) {
	fn := compileOK(t, "Sleep(100);")
	code := fn.Chunk.Code
	idx := indexOfOp(code, OpCall)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, byte(1), code[idx+1])
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	fn := compileOK(t, `if (true) { print 1; } else { print 2; }`)
	ops := opcodeSequence(fn.Chunk.Code)
	require.Contains(t, ops, OpJumpIfFalse)
	require.Contains(t, ops, OpJump)
}

func TestCompileWhileEmitsLoop(t *testing.T) {
	fn := compileOK(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	require.Contains(t, opcodeSequence(fn.Chunk.Code), OpLoop)
}

func TestCompileComparisonDesugaring(t *testing.T) {
	// >= compiles to LESS followed by NOT, and <= to GREATER then NOT.
	fn := compileOK(t, "print 1 >= 2;")
	ops := opcodeSequence(fn.Chunk.Code)
	lessIdx := indexOfOpSlice(ops, OpLess)
	require.GreaterOrEqual(t, lessIdx, 0)
	require.Equal(t, OpNot, ops[lessIdx+1])
}

func TestCompileStringLiteralInterns(t *testing.T) {
	in := interner.New()
	fn, errs := Compile(`print "hello";`, in, false)
	require.Empty(t, errs)
	found := false
	for _, c := range fn.Chunk.Constants {
		if c.Kind() == value.KindStr && in.Lookup(c.AsStrId()) == "hello" {
			found = true
		}
	}
	require.True(t, found)
}

func TestCompileErrorOnMissingSemicolon(t *testing.T) {
	in := interner.New()
	_, errs := Compile(`print 1`, in, false)
	require.NotEmpty(t, errs)
}

func TestCompileErrorOnInvalidAssignmentTarget(t *testing.T) {
	in := interner.New()
	_, errs := Compile(`1 = 2;`, in, false)
	require.NotEmpty(t, errs)
}

func TestCompileTooManyArgumentsErrors(t *testing.T) {
	source := "Clock("
	for i := 0; i < 256; i++ {
		if i > 0 {
			source += ","
		}
		source += "1"
	}
	source += ");"

	in := interner.New()
	_, errs := Compile(source, in, false)
	require.NotEmpty(t, errs)
}

func TestCompileTooManyLocalsErrors(t *testing.T) {
	source := "{\n"
	for i := 0; i < 257; i++ {
		source += fmt.Sprintf("var v%d = 0;\n", i)
	}
	source += "}\n"

	in := interner.New()
	_, errs := Compile(source, in, false)
	require.NotEmpty(t, errs)
}

func TestEndScopePopsOnePerLocal(t *testing.T) {
	fn := compileOK(t, `{ var a = 1; var b = 2; }`)
	pops := 0
	for _, op := range opcodeSequence(fn.Chunk.Code) {
		if op == OpPop {
			pops++
		}
	}
	require.Equal(t, 2, pops)
}

// instructionBoundaries walks the chunk instruction by instruction and
// returns the set of offsets that start one. It fails the test if the
// walk ever steps past the end of the code.
func instructionBoundaries(t *testing.T, chunk *Chunk) map[int]bool {
	t.Helper()
	boundaries := make(map[int]bool)
	for offset := 0; offset < len(chunk.Code); {
		boundaries[offset] = true
		op := Opcode(chunk.Code[offset])
		def, err := Get(op)
		require.NoError(t, err, "undefined opcode at offset %d", offset)
		offset += 1 + sum(def.OperandWidths)
		require.LessOrEqual(t, offset, len(chunk.Code))
	}
	return boundaries
}

func sum(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w
	}
	return total
}

func TestEveryInstructionStartHasLineEntry(t *testing.T) {
	fn := compileOK(t, `
var total = 0;
for (var i = 0; i < 10; i = i + 1) {
	if (i % 2 == 0 and i > 0) { total = total + i; }
}
print total;
`)
	for offset := range instructionBoundaries(t, fn.Chunk) {
		require.GreaterOrEqual(t, fn.Chunk.Line(offset), 1, "offset %d has no line entry", offset)
	}
}

func TestJumpTargetsLandOnInstructionBoundaries(t *testing.T) {
	fn := compileOK(t, `
var i = 0;
while (i < 3) {
	if (i == 1 or i == 2) { print i; } else { print "zero"; }
	i = i + 1;
}
`)
	boundaries := instructionBoundaries(t, fn.Chunk)
	code := fn.Chunk.Code
	for offset := range boundaries {
		op := Opcode(code[offset])
		switch op {
		case OpJump, OpJumpIfFalse:
			jump := int(code[offset+1])<<8 | int(code[offset+2])
			require.True(t, boundaries[offset+3+jump], "forward jump at %d targets mid-instruction", offset)
		case OpLoop:
			jump := int(code[offset+1])<<8 | int(code[offset+2])
			require.True(t, boundaries[offset+3-jump], "loop at %d targets mid-instruction", offset)
		}
	}
}

// --- helpers ---------------------------------------------------------

func opcodeSequence(code []byte) []Opcode {
	var ops []Opcode
	i := 0
	for i < len(code) {
		op := Opcode(code[i])
		ops = append(ops, op)
		i += 1 + operandWidth(op)
	}
	return ops
}

func operandWidth(op Opcode) int {
	def, err := Get(op)
	if err != nil {
		return 0
	}
	total := 0
	for _, w := range def.OperandWidths {
		total += w
	}
	return total
}

func indexOfOp(code []byte, want Opcode) int {
	i := 0
	for i < len(code) {
		op := Opcode(code[i])
		if op == want {
			return i
		}
		i += 1 + operandWidth(op)
	}
	return -1
}

func indexOfOpSlice(ops []Opcode, want Opcode) int {
	for i, op := range ops {
		if op == want {
			return i
		}
	}
	return -1
}
