package membercache

import (
	"sync/atomic"
	"unsafe"
)

// addOutcome is the result of table.tryAdd.
type addOutcome uint8

const (
	addInserted addOutcome = iota
	addPresent
	addFull
)

func (o addOutcome) String() string {
	switch o {
	case addInserted:
		return "inserted"
	case addPresent:
		return "present"
	case addFull:
		return "full"
	default:
		return "unknown"
	}
}

// cell is the in-table storage of one [Slot].
//
// kind is the only field read or written atomically. The other fields are
// written exactly once, by the goroutine that won the Unused->Uninitialized
// CAS, before it stores the committed kind. Readers must load a committed
// kind before touching them.
type cell struct {
	kind    atomic.Uint32
	hash    uint64
	name    string
	decl    Type
	payload any
}

func (c *cell) load() Kind {
	return Kind(c.kind.Load())
}

func (c *cell) slot(k Kind) Slot {
	return Slot{Kind: k, Hash: c.hash, Name: c.name, Decl: c.decl, Payload: c.payload}
}

// table is one generation of a cache's hash table.
//
// Capacity is fixed at mask+1. Slots are append-only: once committed a slot
// is never rewritten, so a table that has been replaced stays valid for
// anyone still holding it.
type table struct {
	mask uint64

	// size counts slots that are not Unused plus reservations that have not
	// claimed a slot yet. It never exceeds mask+1.
	size atomic.Uint64

	// refs is the number of holders. The installing cache owns one, every
	// in-flight writer owns one for as long as it works on the table.
	refs atomic.Int64

	cells []cell
}

var (
	tableHeaderBytes = uint64(unsafe.Sizeof(table{}))
	cellBytes        = uint64(unsafe.Sizeof(cell{}))
)

// newTable returns an empty table with capacity mask+1 and one reference
// owned by the caller.
func newTable(mask uint64) *table {
	t := &table{
		mask:  mask,
		cells: make([]cell, mask+1),
	}
	t.refs.Store(1)

	return t
}

// bytes is the memory accounted to t.
func (t *table) bytes() uint64 {
	return tableHeaderBytes + (t.mask+1)*cellBytes
}

func (t *table) capacity() uint64 {
	return t.mask + 1
}

func (t *table) incref() {
	t.refs.Add(1)
}

// decref drops one reference and reports whether it was the last.
func (t *table) decref() bool {
	n := t.refs.Add(-1)
	if n < 0 {
		panic("membercache: table refcount underflow")
	}

	return n == 0
}

// probe walks the perturbed open-addressing sequence for one hash:
//
//	i = hash & mask
//	i = (5*i + 1 + perturb) & mask; perturb >>= 5
type probe struct {
	i       uint64
	perturb uint64
	mask    uint64
}

func newProbe(hash, mask uint64) probe {
	return probe{i: hash & mask, perturb: hash, mask: mask}
}

func (p *probe) next() {
	p.i = (5*p.i + 1 + p.perturb) & p.mask
	p.perturb >>= perturbShift
}

// reserve bumps size if the load-factor limit allows another slot. The limit
// is half the capacity, or all of it when overcommit is set.
func (t *table) reserve(overcommit bool) bool {
	for {
		size := t.size.Load()
		if overcommit {
			if size > t.mask {
				return false
			}
		} else if size*2 > t.mask {
			return false
		}

		if t.size.CompareAndSwap(size, size+1) {
			return true
		}
	}
}

func (t *table) unreserve() {
	t.size.Add(^uint64(0))
}

// tryAdd inserts item unless the table is over its load-factor limit or
// already holds the name.
//
// A slot that is mid-insert (Uninitialized) on item's probe path is treated
// as a match: it might be another goroutine adding the same name, and a
// missed insert is cheaper than a duplicate.
func (t *table) tryAdd(item *Slot, overcommit bool) addOutcome {
	if !t.reserve(overcommit) {
		return addFull
	}

restart:
	for {
		p := newProbe(item.Hash, t.mask)

		for range probeLimit(t.mask) {
			c := &t.cells[p.i]

			switch k := c.load(); {
			case k == KindUnused:
				if !c.kind.CompareAndSwap(uint32(KindUnused), uint32(KindUninitialized)) {
					continue restart
				}

				c.hash = item.Hash
				c.name = item.Name
				c.decl = item.Decl
				c.payload = item.Payload
				c.kind.Store(uint32(item.Kind))

				return addInserted
			case k == KindUninitialized:
				t.unreserve()

				return addPresent
			case c.hash == item.Hash && c.name == item.Name:
				t.unreserve()

				return addPresent
			}

			p.next()
		}

		// Every slot was visited without finding an Unused one. The
		// reservation makes this impossible unless size accounting is off.
		t.unreserve()

		return addFull
	}
}

// lookup finds the committed slot for name. Slots still being written are
// skipped.
func (t *table) lookup(hash uint64, name string) (Slot, bool) {
	p := newProbe(hash, t.mask)

	for range probeLimit(t.mask) {
		c := &t.cells[p.i]

		k := c.load()
		if k == KindUnused {
			return Slot{}, false
		}

		if k.Committed() && c.hash == hash && c.name == name {
			return c.slot(k), true
		}

		p.next()
	}

	return Slot{}, false
}

// place copies a committed cell into t without checking for duplicates.
// t must not be visible to other goroutines yet.
func (t *table) place(k Kind, src *cell) {
	p := newProbe(src.hash, t.mask)
	for t.cells[p.i].load() != KindUnused {
		p.next()
	}

	dst := &t.cells[p.i]
	dst.hash = src.hash
	dst.name = src.name
	dst.decl = src.decl
	dst.payload = src.payload
	dst.kind.Store(uint32(k))
	t.size.Add(1)
}

// migrate builds the next generation: twice the capacity of old (or the
// initial capacity when old is nil), holding every committed slot of old
// plus item. Slots still Uninitialized in old are left behind.
//
// It returns nil when the new table would exceed maxMask, which callers
// treat as an allocation failure.
func migrate(old *table, item *Slot, maxMask uint64) *table {
	mask := initialMask
	if old != nil {
		mask = old.mask<<1 | 1
	}

	if mask > maxMask {
		return nil
	}

	t := newTable(mask)

	if old != nil {
		for i := range old.cells {
			src := &old.cells[i]
			if k := src.load(); k.Committed() {
				t.place(k, src)
			}
		}
	}

	// old may already hold item: tryAdd reports full before it looks.
	t.tryAdd(item, true)

	return t
}

// kindCounts tallies slots by kind.
func (t *table) kindCounts() [numKinds]int {
	var counts [numKinds]int

	for i := range t.cells {
		counts[t.cells[i].load()]++
	}

	return counts
}
