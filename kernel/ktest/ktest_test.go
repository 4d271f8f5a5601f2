package ktest

import (
	"bytes"
	"testing"

	"kestrel/kernel"
	"kestrel/kernel/halt"
	"kestrel/kernel/kfmt"
)

func setup(t *testing.T) *[]halt.ExitCode {
	origExit := debugExitFn
	t.Cleanup(func() {
		debugExitFn = origExit
		tests = [maxTests]test{}
		testCount = 0
		output = nil
		kfmt.SetPanicHook(nil)
	})

	var codes []halt.ExitCode
	debugExitFn = func(code halt.ExitCode) { codes = append(codes, code) }
	return &codes
}

func TestRunSuccess(t *testing.T) {
	codes := setup(t)

	var order []string
	Register("first", func() *kernel.Error { order = append(order, "first"); return nil })
	Register("second", func() *kernel.Error { order = append(order, "second"); return nil })

	var buf bytes.Buffer
	Run(&buf)

	exp := "running 2 test(s)\nfirst...\t[ok]\nsecond...\t[ok]\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected tests to run in registration order; got %v", order)
	}

	if len(*codes) != 1 || (*codes)[0] != halt.ExitSuccess {
		t.Fatalf("expected a single ExitSuccess; got %v", *codes)
	}
}

func TestRunFailure(t *testing.T) {
	codes := setup(t)

	ran := false
	Register("broken", func() *kernel.Error {
		return &kernel.Error{Module: "test", Message: "expected 1; got 2"}
	})
	Register("skipped", func() *kernel.Error { ran = true; return nil })

	var buf bytes.Buffer
	Run(&buf)

	exp := "running 2 test(s)\nbroken...\t[failed]\nerror: [test] expected 1; got 2\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}

	if ran {
		t.Fatal("expected the run to stop at the first failure")
	}

	if len(*codes) != 1 || (*codes)[0] != halt.ExitFailed {
		t.Fatalf("expected a single ExitFailed; got %v", *codes)
	}
}

func TestPanicDuringTest(t *testing.T) {
	codes := setup(t)

	var buf bytes.Buffer
	output = &buf
	onPanic(&kernel.Error{Module: "vmm", Message: "page is already mapped"})

	exp := "[failed]\nerror: [vmm] page is already mapped\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}

	if len(*codes) != 1 || (*codes)[0] != halt.ExitFailed {
		t.Fatalf("expected a single ExitFailed; got %v", *codes)
	}
}

func TestRegisterCapacity(t *testing.T) {
	setup(t)

	for i := 0; i < maxTests+1; i++ {
		Register("t", func() *kernel.Error { return nil })
	}

	if testCount != maxTests {
		t.Fatalf("expected registry to hold %d tests; got %d", maxTests, testCount)
	}
}
