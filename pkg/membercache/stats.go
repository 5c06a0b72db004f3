package membercache

// Stats is a snapshot of one cache.
type Stats struct {
	Capacity   uint64 `json:"capacity"`
	Size       uint64 `json:"size"`
	Bytes      uint64 `json:"bytes"`
	Generation uint64 `json:"generation"`
	Linked     bool   `json:"linked"`

	// Committed counts committed slots by kind name. Pending counts slots
	// still being written.
	Committed map[string]int `json:"committed,omitempty"`
	Pending   int            `json:"pending"`
}

// Stats returns a snapshot of the cache.
func (c *Cache) Stats() Stats {
	st := Stats{
		Generation: c.generation.Load(),
		Linked:     c.linked.Load(),
	}

	t := c.acquire()
	if t == nil {
		return st
	}

	defer c.release(t)

	st.Capacity = t.capacity()
	st.Size = t.size.Load()
	st.Bytes = t.bytes()

	counts := t.kindCounts()
	st.Pending = counts[KindUninitialized]

	for k := KindMethod; k < numKinds; k++ {
		if counts[k] == 0 {
			continue
		}

		if st.Committed == nil {
			st.Committed = make(map[string]int)
		}

		st.Committed[k.String()] = counts[k]
	}

	return st
}

// RegistryStats is a snapshot of a registry's counters.
type RegistryStats struct {
	Caches          int    `json:"caches"`
	MaxCapacity     uint64 `json:"max_capacity"`
	TablesAllocated uint64 `json:"tables_allocated"`
	TablesReleased  uint64 `json:"tables_released"`
	BytesAllocated  uint64 `json:"bytes_allocated"`
	BytesReleased   uint64 `json:"bytes_released"`
	Sweeps          uint64 `json:"sweeps"`
	Dropped         uint64 `json:"dropped"`
}

// LiveBytes is the memory held by tables that have not been released.
func (s RegistryStats) LiveBytes() uint64 {
	return s.BytesAllocated - s.BytesReleased
}

// Stats returns a snapshot of the registry's counters. Counters are read
// one by one and may be mutually inconsistent under concurrent use.
func (r *Registry) Stats() RegistryStats {
	return RegistryStats{
		Caches:          r.Len(),
		MaxCapacity:     r.MaxCapacity(),
		TablesAllocated: r.tablesAllocated.Load(),
		TablesReleased:  r.tablesReleased.Load(),
		BytesAllocated:  r.bytesAllocated.Load(),
		BytesReleased:   r.bytesReleased.Load(),
		Sweeps:          r.sweeps.Load(),
		Dropped:         r.dropped.Load(),
	}
}
