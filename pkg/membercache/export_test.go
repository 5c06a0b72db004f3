package membercache

// Export internal hooks for testing.
// This file is only compiled during tests.

// TableBytesForTesting returns the bytes accounted to a table of the given
// capacity.
func TableBytesForTesting(capacity uint64) uint64 {
	return tableHeaderBytes + capacity*cellBytes
}

// TableRefsForTesting returns the reference count of the current table, or
// 0 for an empty cache.
func (c *Cache) TableRefsForTesting() int64 {
	var refs int64

	c.read(func(t *table) {
		if t != nil {
			refs = t.refs.Load()
		}
	})

	return refs
}

// HoldTableForTesting takes a table reference like an in-flight insert
// would. The returned func drops it and reports whether it was the last.
func (c *Cache) HoldTableForTesting() func() bool {
	t := c.acquire()
	if t == nil {
		return func() bool { return false }
	}

	return func() bool { return c.release(t) }
}

// EnterHazardForTesting bumps the hazard counter like a reader between
// loading the table and securing it. The returned func leaves it.
func (c *Cache) EnterHazardForTesting() func() {
	c.tabuse.Add(1)

	return func() { c.tabuse.Add(-1) }
}

// HazardForTesting returns the hazard counter.
func (c *Cache) HazardForTesting() int64 {
	return c.tabuse.Load()
}
