package irq

import (
	"os"
	"testing"

	"kestrel/kernel/sync"
)

func TestMain(m *testing.M) {
	reset := sync.SetInterruptControl(func() uintptr { return 0 }, func(uintptr) {})
	code := m.Run()
	reset()
	os.Exit(code)
}
