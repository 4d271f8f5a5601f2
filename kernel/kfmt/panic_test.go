package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"kestrel/kernel"
	"kestrel/kernel/halt"
)

func TestPanic(t *testing.T) {
	defer func() {
		haltFn = halt.Stop
		panicHook = nil
		outputSink = nil
	}()

	var (
		buf        bytes.Buffer
		haltCalled bool
		hookErr    *kernel.Error
		hookCalled bool
	)

	haltFn = func() {
		if !hookCalled {
			t.Error("expected the panic hook to run before the CPU halts")
		}
		haltCalled = true
	}
	SetPanicHook(func(err *kernel.Error) {
		hookCalled = true
		hookErr = err
	})
	SetOutputSink(&buf)

	specs := []struct {
		descr     string
		arg       interface{}
		expOutput string
		expModule string
	}{
		{
			"with *kernel.Error",
			&kernel.Error{Module: "test", Message: "panic test"},
			"\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n",
			"test",
		},
		{
			"with error",
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
			"rt",
		},
		{
			"with string",
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------\n",
			"rt",
		},
		{
			"without error",
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
			"",
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			buf.Reset()
			haltCalled, hookCalled, hookErr = false, false, nil

			Panic(spec.arg)

			if got := buf.String(); got != spec.expOutput {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.expOutput, got)
			}

			if !haltCalled {
				t.Fatal("expected the CPU to be halted by Panic")
			}

			switch {
			case spec.expModule == "" && hookErr != nil:
				t.Fatalf("expected hook to receive a nil error; got %v", hookErr)
			case spec.expModule != "" && (hookErr == nil || hookErr.Module != spec.expModule):
				t.Fatalf("expected hook to receive an error for module %q; got %v", spec.expModule, hookErr)
			}
		})
	}
}

func TestPanicString(t *testing.T) {
	defer func() {
		haltFn = halt.Stop
		panicHook = nil
		outputSink = nil
	}()

	var (
		buf     bytes.Buffer
		halted  bool
		hookErr *kernel.Error
	)
	haltFn = func() { halted = true }
	SetPanicHook(func(err *kernel.Error) { hookErr = err })
	SetOutputSink(&buf)

	panicString("index out of range")

	exp := "\n-----------------------------------\n[rt] unrecoverable error: index out of range\n*** kernel panic: system halted ***\n-----------------------------------\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}

	if !halted {
		t.Fatal("expected the CPU to be halted")
	}

	if hookErr != errRuntimePanic {
		t.Fatalf("expected hook to receive errRuntimePanic; got %v", hookErr)
	}
}
