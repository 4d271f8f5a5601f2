package sync

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"kestrel/kernel/cpu"
)

func TestSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid deadlocks while testing
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			sl.Acquire()
			sl.Release()
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	sl.Release()
	wg.Wait()

	if !sl.TryToAcquire() {
		t.Error("expected TryToAcquire to succeed after all workers released the lock")
	}
}

func TestIRQSpinlock(t *testing.T) {
	// Emulate the IF flag of the RFLAGS register.
	flags := cpu.FlagInterruptEnable
	reset := SetInterruptControl(
		func() uintptr {
			prev := flags
			flags &^= cpu.FlagInterruptEnable
			return prev
		},
		func(f uintptr) { flags = f },
	)
	defer reset()

	var l IRQSpinlock

	l.Acquire()
	if flags&cpu.FlagInterruptEnable != 0 {
		t.Fatal("expected interrupts to be disabled while the lock is held")
	}

	if l.TryToAcquire() {
		t.Fatal("expected TryToAcquire to fail while the lock is held")
	}
	if flags&cpu.FlagInterruptEnable != 0 {
		t.Fatal("expected a failed TryToAcquire to leave interrupts disabled")
	}

	l.Release()
	if flags&cpu.FlagInterruptEnable == 0 {
		t.Fatal("expected Release to re-enable interrupts")
	}

	t.Run("interrupts already disabled", func(t *testing.T) {
		flags = 0

		var called bool
		l.Do(func() { called = true })

		if !called {
			t.Fatal("expected Do to invoke the supplied function")
		}
		if flags&cpu.FlagInterruptEnable != 0 {
			t.Fatal("expected Release to keep interrupts disabled")
		}
	})
}

func TestSetInterruptControl(t *testing.T) {
	var saved, restored int
	reset := SetInterruptControl(
		func() uintptr { saved++; return 0 },
		func(uintptr) { restored++ },
	)

	var l IRQSpinlock
	l.Do(func() {})

	if saved != 1 || restored != 1 {
		t.Fatalf("expected one save/restore pair; got %d/%d", saved, restored)
	}

	reset()

	if saveFlagsFn == nil || restoreFlagsFn == nil {
		t.Fatal("expected reset to reinstate the previous functions")
	}
}
