package kmain

import (
	"testing"

	"kestrel/kernel"
	"kestrel/kernel/mm"
)

func TestParseAddr(t *testing.T) {
	specs := []struct {
		input string
		exp   uintptr
		expOK bool
	}{
		{"0x0", 0, true},
		{"0xffff800000000000", 0xffff800000000000, true},
		{"0XDEADbeef", 0xdeadbeef, true},
		{"18000000000", 0x18000000000, true},
		{"", 0, false},
		{"0x", 0, false},
		{"0x12g4", 0, false},
		{"0x1ffff800000000000", 0, false},
	}

	for specIndex, spec := range specs {
		got, ok := parseAddr(spec.input)
		if ok != spec.expOK || got != spec.exp {
			t.Errorf("[spec %d] expected parseAddr(%q) to return (0x%x, %t); got (0x%x, %t)", specIndex, spec.input, spec.exp, spec.expOK, got, ok)
		}
	}
}

func TestFrameAllocatorSelfTest(t *testing.T) {
	defer mm.SetFrameAllocator(nil)

	var next mm.Frame
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) {
		next++
		return next, nil
	})
	if err := testFrameAllocatorDistinct(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) { return 7, nil })
	if err := testFrameAllocatorDistinct(); err != errFrameReturnedTwice {
		t.Fatalf("expected errFrameReturnedTwice; got %v", err)
	}

	expErr := &kernel.Error{Module: "test", Message: "out of memory"}
	mm.SetFrameAllocator(func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, expErr })
	if err := testFrameAllocatorDistinct(); err != expErr {
		t.Fatalf("expected allocator error; got %v", err)
	}
}

func TestBreakpointSelfTest(t *testing.T) {
	defer func(orig func()) { breakpointFn = orig }(breakpointFn)

	called := false
	breakpointFn = func() { called = true }

	if err := testBreakpointResumes(); err != nil || !called {
		t.Fatalf("expected breakpoint to be raised and the test to pass; called: %t, err: %v", called, err)
	}
}

func TestPageMappingSelfTestWithoutMapper(t *testing.T) {
	mapper = nil
	if err := testPageMappingRoundTrip(); err != errMapperDisabled {
		t.Fatalf("expected errMapperDisabled; got %v", err)
	}
}
