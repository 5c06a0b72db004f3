package membercache

import (
	"runtime"
	"sync/atomic"
)

// Locking architecture
//
//  1. Slot kind tags: a per-slot CAS (Unused -> Uninitialized) elects the one
//     goroutine allowed to write that slot. Storing the committed kind
//     publishes it.
//
//  2. Cache.tabuse: hazard counter. Held (non-zero) by anyone between
//     loading Cache.table and either finishing the read or taking a table
//     reference. Whoever swaps a table out waits for it to drain before
//     dropping the old table's reference.
//
//  3. Registry.lock: a spinLock guarding only the registry's list links.
//     Never held while touching tables.
//
// Lock ordering: none of these nest.

// spinLock is a test-and-set lock for critical sections of a few pointer
// writes.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
