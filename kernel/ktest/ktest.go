// Package ktest runs self tests inside the kernel and reports the outcome to
// the host through the serial port and the emulator's debug exit device.
package ktest

import (
	"io"

	"kestrel/kernel"
	"kestrel/kernel/halt"
	"kestrel/kernel/kfmt"
)

// maxTests is the capacity of the test registry.
const maxTests = 32

// TestFn is a self test. It returns a non-nil error to signal failure; a test
// may also fail by panicking.
type TestFn func() *kernel.Error

type test struct {
	name string
	fn   TestFn
}

var (
	// debugExitFn is mocked by tests.
	debugExitFn = halt.DebugExit

	tests     [maxTests]test
	testCount int

	// output receives test progress; set by Run.
	output io.Writer
)

// Register adds a self test. Registrations past the registry capacity are
// ignored.
func Register(name string, fn TestFn) {
	if testCount == maxTests {
		return
	}

	tests[testCount] = test{name: name, fn: fn}
	testCount++
}

// Run executes the registered tests in registration order, printing
// "name...\t[ok]" for each passing test to w. The first failure stops the
// run and reports halt.ExitFailed; otherwise halt.ExitSuccess is reported.
// A kernel panic while a test runs is reported as a failure.
func Run(w io.Writer) {
	output = w
	kfmt.SetPanicHook(onPanic)

	kfmt.Fprintf(w, "running %d test(s)\n", testCount)
	for i := 0; i < testCount; i++ {
		kfmt.Fprintf(w, "%s...\t", tests[i].name)
		if err := tests[i].fn(); err != nil {
			kfmt.Fprintf(w, "[failed]\nerror: [%s] %s\n", err.Module, err.Message)
			debugExitFn(halt.ExitFailed)
			return
		}
		kfmt.Fprintf(w, "[ok]\n")
	}

	debugExitFn(halt.ExitSuccess)
}

// onPanic is installed as the kfmt panic hook while tests run.
func onPanic(err *kernel.Error) {
	if output != nil {
		kfmt.Fprintf(output, "[failed]\n")
		if err != nil {
			kfmt.Fprintf(output, "error: [%s] %s\n", err.Module, err.Message)
		}
	}

	debugExitFn(halt.ExitFailed)
}
