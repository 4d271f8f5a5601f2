package kfmt

import (
	"kestrel/kernel"
	"kestrel/kernel/halt"
)

var (
	// haltFn is mocked by tests.
	haltFn = halt.Stop

	// panicHook, if set, is invoked after the panic banner is printed and
	// before the CPU is halted.
	panicHook func(*kernel.Error)

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetPanicHook registers fn to be invoked by Panic right before the CPU
// halts. The self-test runner uses it to report failures to the host.
func SetPanicHook(fn func(*kernel.Error)) {
	panicHook = fn
}

// Panic outputs the supplied error (if not nil) to the active output sink
// and halts the CPU. Calls to Panic never return. Panic also works as a
// redirection target for calls to panic() (resolved via runtime.gopanic).
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	if panicHook != nil {
		panicHook(err)
	}

	haltFn()
}

// panicString serves as a redirect target for runtime.throw.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
