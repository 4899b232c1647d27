package compiler

import "fmt"

// CompileError is a single diagnostic produced during a compile pass.
// The compiler keeps parsing after one of these (panic-mode recovery)
// so a single source file can report more than one.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}
