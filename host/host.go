// Package host is the public entry point wiring the compiler and VM
// together. A host embedding the interpreter installs its output
// sinks once with Initialize, then calls Run per program.
package host

import (
	"fmt"
	"sync"

	"nilox/compiler"
	"nilox/interner"
	"nilox/vm"
)

var (
	initOnce  sync.Once
	printFn   = func(s string) { fmt.Print(s) }
	printlnFn = func(s string) { fmt.Println(s) }
)

// Initialize installs the host's output sinks. It is idempotent:
// calls after the first are no-ops.
func Initialize(print, println func(string)) {
	initOnce.Do(func() {
		printFn = print
		printlnFn = println
	})
}

// CompileError is returned by Run when the source fails to compile;
// it aggregates every diagnostic collected during the pass.
type CompileError struct {
	Errors []error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compilation failed with %d error(s)", len(e.Errors))
	for _, err := range e.Errors {
		msg += "\n  " + err.Error()
	}
	return msg
}

// Run compiles source and, on success, interprets it to completion
// using read as the host's asynchronous input callback. A failed
// compile never starts the VM; a runtime error is returned after its
// traceback has already been formed into the error value.
func Run(source string, read vm.Reader, trace bool) error {
	in := interner.New()
	fn, errs := compiler.Compile(source, in, trace)
	if len(errs) > 0 {
		return &CompileError{Errors: errs}
	}

	machine := vm.New([]*compiler.Function{fn}, in, printFn, printlnFn, read, trace)
	return machine.Run()
}
