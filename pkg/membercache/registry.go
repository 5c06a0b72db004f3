package membercache

import (
	"math/bits"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Options configure a [Registry] and every [Cache] created from it.
type Options struct {
	// MaxCapacity caps the slots of a single table. It is rounded up to a
	// power of two. Zero selects the default (1<<20). A cache whose table
	// hits the cap keeps inserting past the normal load factor until the
	// table is full, then stops caching new names.
	MaxCapacity uint64

	// Logger receives V(1) sweep summaries and V(2) table installs.
	// The zero value discards everything.
	Logger logr.Logger
}

// Registry tracks every [Cache] that currently owns a table, so memory
// pressure can drop them all in one sweep.
//
// A process normally has one Registry, shared by all caches of all types.
// Caches link themselves on first insert and unlink on [Cache.Fini].
type Registry struct {
	// lock guards head, count and the prev/next links of member caches.
	lock  spinLock
	head  *Cache
	count int

	maxMask uint64
	log     logr.Logger

	tablesAllocated atomic.Uint64
	tablesReleased  atomic.Uint64
	bytesAllocated  atomic.Uint64
	bytesReleased   atomic.Uint64
	sweeps          atomic.Uint64
	dropped         atomic.Uint64
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	maxCapacity := opts.MaxCapacity
	if maxCapacity == 0 {
		maxCapacity = defaultMaxCapacity
	}

	maxCapacity = max(maxCapacity, minMaxCapacity)

	if maxCapacity&(maxCapacity-1) != 0 {
		maxCapacity = uint64(1) << bits.Len64(maxCapacity)
	}

	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Registry{
		maxMask: maxCapacity - 1,
		log:     log.WithName("membercache"),
	}
}

// NewCache returns an empty cache bound to r. It joins the registry only
// once it holds a table.
func (r *Registry) NewCache() *Cache {
	return &Cache{reg: r}
}

// MaxCapacity is the effective per-table slot cap.
func (r *Registry) MaxCapacity() uint64 {
	return r.maxMask + 1
}

// link adds c to the registry unless it is already there.
func (r *Registry) link(c *Cache) {
	if c.linked.Load() {
		return
	}

	r.lock.Lock()

	if !c.linked.Load() {
		c.prev = nil
		c.next = r.head

		if r.head != nil {
			r.head.prev = c
		}

		r.head = c
		r.count++
		c.linked.Store(true)
	}

	r.lock.Unlock()
}

// unlinkLocked removes c from the list. r.lock must be held and c linked.
func (r *Registry) unlinkLocked(c *Cache) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		r.head = c.next
	}

	if c.next != nil {
		c.next.prev = c.prev
	}

	c.prev = nil
	c.next = nil
	r.count--
	c.linked.Store(false)
}

// Unlink removes c from the registry if it is linked.
func (r *Registry) Unlink(c *Cache) {
	if !c.linked.Load() {
		return
	}

	r.lock.Lock()

	if c.linked.Load() {
		r.unlinkLocked(c)
	}

	r.lock.Unlock()
}

// Len returns the number of linked caches.
func (r *Registry) Len() int {
	r.lock.Lock()
	n := r.count
	r.lock.Unlock()

	return n
}

// ClearAll drops the tables of linked caches, most recently linked first,
// until at least maxBytes have been released or the registry is empty. It
// returns the bytes released.
//
// A table still referenced by an in-flight insert is dropped from its cache
// but not counted; it goes away when that insert finishes.
func (r *Registry) ClearAll(maxBytes uint64) uint64 {
	var (
		freed  uint64
		caches int
	)

	for freed < maxBytes {
		r.lock.Lock()

		c := r.head
		if c != nil {
			r.unlinkLocked(c)
		}

		r.lock.Unlock()

		if c == nil {
			break
		}

		caches++

		t := c.table.Swap(nil)
		if t == nil {
			continue
		}

		c.waitfor()

		if c.release(t) {
			freed += t.bytes()
		}
	}

	r.sweeps.Add(1)
	r.log.V(1).Info("cleared member caches", "caches", caches, "bytesFreed", freed, "budget", maxBytes)

	return freed
}

func (r *Registry) tableAllocated(t *table) {
	r.tablesAllocated.Add(1)
	r.bytesAllocated.Add(t.bytes())
}

func (r *Registry) tableReleased(t *table) {
	r.tablesReleased.Add(1)
	r.bytesReleased.Add(t.bytes())
}
