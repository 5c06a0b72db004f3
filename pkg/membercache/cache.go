package membercache

import (
	"runtime"
	"sync/atomic"
)

// Cache is the member cache of one type (or of one type's class-level
// attributes).
//
// All methods are safe for concurrent use. A Cache must be obtained via
// [Registry.NewCache]; the zero value is not usable.
type Cache struct {
	_ [0]func() // prevent external construction

	reg *Registry

	// table is nil until the first insert and after ClearAll/Fini.
	table atomic.Pointer[table]

	// tabuse is the hazard counter. See "Locking architecture" in lock.go.
	tabuse atomic.Int64

	// generation counts installed tables.
	generation atomic.Uint64

	// Registry list links, guarded by reg.lock. linked is also read without
	// the lock for the double-checked fast path.
	prev, next *Cache
	linked     atomic.Bool
}

// read runs fn with the current table while holding the hazard counter.
// t is nil when the cache is empty. fn must not block.
func (c *Cache) read(fn func(t *table)) {
	c.tabuse.Add(1)
	fn(c.table.Load())
	c.tabuse.Add(-1)
}

// acquire returns the current table with a reference the caller must drop
// with release, or nil.
func (c *Cache) acquire() *table {
	c.tabuse.Add(1)

	t := c.table.Load()
	if t != nil {
		t.incref()
	}

	c.tabuse.Add(-1)

	return t
}

// release drops a table reference and reports whether it was the last one.
func (c *Cache) release(t *table) bool {
	if !t.decref() {
		return false
	}

	c.reg.tableReleased(t)

	return true
}

// waitfor spins until no goroutine is between loading c.table and securing
// what it loaded.
func (c *Cache) waitfor() {
	for c.tabuse.Load() != 0 {
		runtime.Gosched()
	}
}

// AddSlot caches item.
//
// It always returns true: a failed or raced insert only means a later
// lookup misses. Items whose kind is not a committed kind are ignored.
func (c *Cache) AddSlot(item *Slot) bool {
	if !item.Kind.Committed() {
		return true
	}

	for {
		old := c.acquire()
		if old != nil {
			if old.tryAdd(item, false) != addFull {
				c.release(old)

				return true
			}
		}

		fresh := migrate(old, item, c.reg.maxMask)
		if fresh == nil {
			c.overcommit(old, item)

			return true
		}

		c.reg.tableAllocated(fresh)

		// Never install a table smaller than one someone else managed to
		// install while we were copying.
		superseded := false

		c.read(func(cur *table) {
			superseded = cur != nil && cur != old && cur.mask >= fresh.mask
		})

		if superseded {
			c.release(fresh)

			if old != nil {
				c.release(old)
			}

			continue
		}

		prev := c.table.Swap(fresh)
		c.waitfor()

		if prev != nil {
			c.release(prev)
		}

		if old != nil {
			c.release(old)
		}

		c.generation.Add(1)
		c.reg.link(c)

		if log := c.reg.log.V(2); log.Enabled() {
			log.Info("installed member cache table",
				"capacity", fresh.capacity(), "size", fresh.size.Load(), "generation", c.generation.Load())
		}

		return true
	}
}

// overcommit is the fallback when the table cannot grow: squeeze item into
// old past the normal load factor, or drop it.
func (c *Cache) overcommit(old *table, item *Slot) {
	if old == nil {
		c.reg.dropped.Add(1)

		return
	}

	if old.tryAdd(item, true) == addFull {
		c.reg.dropped.Add(1)
	}

	c.release(old)
}

// Lookup returns the cached slot for name, if any.
func (c *Cache) Lookup(hash uint64, name string) (Slot, bool) {
	var (
		slot  Slot
		found bool
	)

	c.read(func(t *table) {
		if t != nil {
			slot, found = t.lookup(hash, name)
		}
	})

	return slot, found
}

// Range calls fn for every committed slot of the current table until fn
// returns false. Slots committed while Range runs may or may not be seen.
func (c *Cache) Range(fn func(Slot) bool) {
	t := c.acquire()
	if t == nil {
		return
	}

	defer c.release(t)

	for i := range t.cells {
		cl := &t.cells[i]
		if k := cl.load(); k.Committed() {
			if !fn(cl.slot(k)) {
				return
			}
		}
	}
}

// Size returns the current table's size counter: committed slots plus
// slots being written. It is 0 for an empty cache.
func (c *Cache) Size() uint64 {
	var n uint64

	c.read(func(t *table) {
		if t != nil {
			n = t.size.Load()
		}
	})

	return n
}

// Capacity returns the number of slots in the current table, or 0.
func (c *Cache) Capacity() uint64 {
	var n uint64

	c.read(func(t *table) {
		if t != nil {
			n = t.capacity()
		}
	})

	return n
}

// Linked reports whether the cache is currently in its registry.
func (c *Cache) Linked() bool {
	return c.linked.Load()
}

// Fini tears the cache down: it leaves the registry and drops its table.
// Call it once, when the owning type is destroyed. The cache may be reused
// afterwards; it behaves like a fresh one.
func (c *Cache) Fini() {
	c.reg.Unlink(c)

	t := c.table.Swap(nil)
	if t == nil {
		return
	}

	c.waitfor()
	c.release(t)
}
