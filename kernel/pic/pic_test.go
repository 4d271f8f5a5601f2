package pic

import (
	"testing"

	"kestrel/kernel/cpu"
)

type portWrite struct {
	port uint16
	val  uint8
}

func mockPorts(t *testing.T) *[]portWrite {
	var writes []portWrite
	portWriteByteFn = func(port uint16, val uint8) {
		writes = append(writes, portWrite{port, val})
	}
	t.Cleanup(func() {
		portWriteByteFn = cpu.PortWriteByte
		portReadByteFn = cpu.PortReadByte
	})
	return &writes
}

func TestInit(t *testing.T) {
	writes := mockPorts(t)

	Init()

	// Strip the I/O wait writes
	var got []portWrite
	for _, w := range *writes {
		if w.port != ioWaitPort {
			got = append(got, w)
		}
	}

	exp := []portWrite{
		{0x20, 0x11}, {0xa0, 0x11},
		{0x21, 32}, {0xa1, 40},
		{0x21, 4}, {0xa1, 2},
		{0x21, 0x01}, {0xa1, 0x01},
		{0x21, 0xfc}, {0xa1, 0xff},
	}

	if len(got) != len(exp) {
		t.Fatalf("expected %d controller writes; got %d: %v", len(exp), len(got), got)
	}

	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("[write %d] expected %v; got %v", i, exp[i], got[i])
		}
	}

	if waits := len(*writes) - len(got); waits != 8 {
		t.Errorf("expected an I/O wait after each ICW; got %d", waits)
	}
}

func TestAcknowledge(t *testing.T) {
	specs := []struct {
		vec uint8
		exp []portWrite
	}{
		// timer and keyboard: primary only
		{TimerVector, []portWrite{{0x20, 0x20}}},
		{KeyboardVector, []portWrite{{0x20, 0x20}}},
		{PrimaryOffset + 7, []portWrite{{0x20, 0x20}}},
		// secondary vectors: secondary first, then primary
		{SecondaryOffset, []portWrite{{0xa0, 0x20}, {0x20, 0x20}}},
		{SecondaryOffset + 7, []portWrite{{0xa0, 0x20}, {0x20, 0x20}}},
		// vectors not owned by the controllers are ignored
		{3, nil},
		{31, nil},
		{48, nil},
		{255, nil},
	}

	for specIndex, spec := range specs {
		writes := mockPorts(t)

		Acknowledge(spec.vec)

		if len(*writes) != len(spec.exp) {
			t.Errorf("[spec %d] expected %d writes; got %d: %v", specIndex, len(spec.exp), len(*writes), *writes)
			continue
		}

		for i := range spec.exp {
			if (*writes)[i] != spec.exp[i] {
				t.Errorf("[spec %d] write %d: expected %v; got %v", specIndex, i, spec.exp[i], (*writes)[i])
			}
		}
	}
}

func TestHandlesInterrupt(t *testing.T) {
	for vec := 0; vec < 256; vec++ {
		exp := vec >= 32 && vec < 48
		if got := Chained.HandlesInterrupt(uint8(vec)); got != exp {
			t.Errorf("[vec %d] expected HandlesInterrupt to return %t", vec, exp)
		}
	}
}

func TestMasks(t *testing.T) {
	mockPorts(t)
	portReadByteFn = func(port uint16) uint8 {
		switch port {
		case 0x21:
			return 0xfc
		case 0xa1:
			return 0xff
		}
		t.Fatalf("unexpected read from port 0x%x", port)
		return 0
	}

	if primary, secondary := Chained.Masks(); primary != 0xfc || secondary != 0xff {
		t.Fatalf("expected masks 0xfc/0xff; got 0x%x/0x%x", primary, secondary)
	}
}
