// Package sync provides synchronization primitive implementations for
// spinlocks that may be shared with interrupt handlers.
package sync

import (
	"sync/atomic"

	"kestrel/kernel/cpu"
)

const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked by Acquire after a number of failed attempts to
	// grab the lock. It stays nil until context-switching is implemented.
	yieldFn func()

	saveFlagsFn    = cpu.SaveFlagsAndDisableInterrupts
	restoreFlagsFn = cpu.RestoreFlags
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(1); !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempt++ {
		if attempt%attemptsBeforeYielding == 0 && yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// IRQSpinlock is a Spinlock that keeps interrupts disabled while it is held.
// It must be used for any state that is touched by both regular kernel code
// and interrupt handlers; otherwise a handler that fires while the lock is
// held would spin forever on a single CPU.
type IRQSpinlock struct {
	lock  Spinlock
	flags uintptr
}

// Acquire disables interrupts and then acquires the lock. The previous
// interrupt state is restored by Release.
func (l *IRQSpinlock) Acquire() {
	flags := saveFlagsFn()
	l.lock.Acquire()
	l.flags = flags
}

// TryToAcquire attempts to acquire the lock with interrupts disabled. If the
// lock is already held, the previous interrupt state is restored and false
// is returned.
func (l *IRQSpinlock) TryToAcquire() bool {
	flags := saveFlagsFn()
	if !l.lock.TryToAcquire() {
		restoreFlagsFn(flags)
		return false
	}

	l.flags = flags
	return true
}

// Release relinquishes the lock and restores the interrupt state that was
// active when the lock was acquired.
func (l *IRQSpinlock) Release() {
	flags := l.flags
	l.lock.Release()
	restoreFlagsFn(flags)
}

// SetInterruptControl replaces the functions that IRQSpinlock uses to save
// and restore the CPU interrupt flag and returns a function that reinstates
// the previous ones. Code running outside ring 0 (e.g. package tests on a
// host) cannot execute CLI and must install substitutes.
func SetInterruptControl(save func() uintptr, restore func(uintptr)) (reset func()) {
	prevSave, prevRestore := saveFlagsFn, restoreFlagsFn
	saveFlagsFn, restoreFlagsFn = save, restore
	return func() {
		saveFlagsFn, restoreFlagsFn = prevSave, prevRestore
	}
}

// Do runs fn while holding the lock.
func (l *IRQSpinlock) Do(fn func()) {
	l.Acquire()
	fn()
	l.Release()
}
