package host

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Initialize is idempotent by design, so the sinks can
// only be installed once per process; tests instead swap the target
// of a package-level indirection under a lock serializing them.
var (
	testMu    sync.Mutex
	testSink  *[]string
	installed sync.Once
)

func captureOutput(t *testing.T) (*[]string, func()) {
	t.Helper()
	testMu.Lock()

	var lines []string
	testSink = &lines

	installed.Do(func() {
		Initialize(
			func(s string) { *testSink = append(*testSink, s) },
			func(s string) { *testSink = append(*testSink, s) },
		)
	})

	return &lines, func() { testMu.Unlock() }
}

func TestRunCompileErrorAggregatesDiagnostics(t *testing.T) {
	_, unlock := captureOutput(t)
	defer unlock()

	err := Run(`print 1`, func(string) string { return "" }, false)
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	require.NotEmpty(t, compileErr.Errors)
	require.Contains(t, compileErr.Error(), "compilation failed")
}

func TestRunSuccessfulProgramProducesOutput(t *testing.T) {
	out, unlock := captureOutput(t)
	defer unlock()

	err := Run(`print "hello" + " " + "world";`, func(string) string { return "" }, false)
	require.NoError(t, err)
	require.Equal(t, "hello world", strings.Join(*out, "\n"))
}

func TestRunRuntimeErrorIsReturned(t *testing.T) {
	_, unlock := captureOutput(t)
	defer unlock()

	err := Run(`print undefinedGlobal;`, func(string) string { return "" }, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Runtime error")
}
