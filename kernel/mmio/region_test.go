package mmio

import (
	"testing"
	"unsafe"

	"kestrel/kernel/kfmt"
)

func TestRegionAccess(t *testing.T) {
	var buf [64]byte
	r := NewRegion(uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))

	if r.Size() != 64 {
		t.Fatalf("expected size 64; got %d", r.Size())
	}

	r.Write8(0, 0xaa)
	r.Write16(2, 0xbeef)
	r.Write64(8, 0x0123456789abcdef)

	if got := r.Read8(0); got != 0xaa {
		t.Errorf("expected Read8 to return 0xaa; got 0x%x", got)
	}
	if got := r.Read16(2); got != 0xbeef {
		t.Errorf("expected Read16 to return 0xbeef; got 0x%x", got)
	}
	if got := r.Read64(8); got != 0x0123456789abcdef {
		t.Errorf("expected Read64 to return 0x0123456789abcdef; got 0x%x", got)
	}
	if buf[2] != 0xef || buf[3] != 0xbe {
		t.Errorf("expected little-endian layout; got %x %x", buf[2], buf[3])
	}

	r.Fill16(16, 0x0720, 4)
	for i := uintptr(0); i < 4; i++ {
		if got := r.Read16(16 + i*2); got != 0x0720 {
			t.Errorf("[word %d] expected 0x0720; got 0x%x", i, got)
		}
	}

	r.Copy(32, 16, 8)
	if got := r.Read64(32); got != r.Read64(16) {
		t.Errorf("expected copied word to match source; got 0x%x", got)
	}

	r.Zero()
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected byte %d to be cleared; got 0x%x", i, b)
		}
	}
}

func TestRegionBounds(t *testing.T) {
	var buf [16]byte
	r := NewRegion(uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))

	specs := []struct {
		name string
		fn   func()
	}{
		{"Read8 past end", func() { r.Read8(16) }},
		{"Write16 straddling end", func() { r.Write16(15, 1) }},
		{"Read64 straddling end", func() { r.Read64(9) }},
		{"Write64 huge offset", func() { r.Write64(^uintptr(0), 1) }},
		{"Copy past end", func() { r.Copy(8, 0, 9) }},
		{"Fill16 past end", func() { r.Fill16(12, 0, 3) }},
	}

	defer func() { panicFn = kfmt.Panic }()

	// kfmt.Panic never returns; the mock unwinds the stack instead so the
	// out of bounds access is never performed.
	var panicErr interface{}
	panicFn = func(e interface{}) {
		panicErr = e
		panic(e)
	}

	for specIndex, spec := range specs {
		panicErr = nil
		func() {
			defer func() { _ = recover() }()
			spec.fn()
		}()

		if panicErr != errOutOfBounds {
			t.Errorf("[spec %d] %s: expected kernel panic with errOutOfBounds; got %v", specIndex, spec.name, panicErr)
		}
	}

	// Accesses that end exactly at the region boundary are valid.
	r.Write64(8, 1)
	r.Write8(15, 1)
}
