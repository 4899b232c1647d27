package vm

import (
	"fmt"
	"strings"
)

// frameTrace is one line of a RuntimeError's traceback: the source
// line the frame's ip was at, and the function's display name.
type frameTrace struct {
	Line int
	Name string
}

// RuntimeError is a fatal error raised while executing bytecode: a
// bad operand, an undefined variable, a non-callable value, wrong
// arity, or an out-of-bounds array index. It carries a traceback,
// innermost frame first.
type RuntimeError struct {
	Message   string
	Traceback []frameTrace
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "💥 Nilox Runtime error: %s\n", e.Message)
	b.WriteString("Traceback (most recent call first):\n")
	for _, f := range e.Traceback {
		fmt.Fprintf(&b, "[line %4d] in %s\n", f.Line, f.Name)
	}
	return b.String()
}
