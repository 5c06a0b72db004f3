// Package model provides a deliberately simple, in-memory model of a
// membercache.Cache's observable content.
//
// The model is a plain map: first insert of a name wins, nothing is ever
// dropped except by Clear. It ignores capacity, probing and concurrency, so
// it only matches the real cache when the real cache is not running into its
// capacity cap.
package model

import (
	"slices"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// Cache models the committed slots of one membercache.Cache.
type Cache struct {
	slots map[string]membercache.Slot
}

// New returns an empty model.
func New() *Cache {
	return &Cache{slots: make(map[string]membercache.Slot)}
}

// Add records s unless its name is already present or its kind is not a
// committed kind. Reports whether s was recorded.
func (m *Cache) Add(s membercache.Slot) bool {
	if !s.Kind.Committed() {
		return false
	}

	if _, ok := m.slots[s.Name]; ok {
		return false
	}

	m.slots[s.Name] = s

	return true
}

// Lookup returns the slot recorded for name.
func (m *Cache) Lookup(name string) (membercache.Slot, bool) {
	s, ok := m.slots[name]

	return s, ok
}

// Len returns the number of recorded slots.
func (m *Cache) Len() int {
	return len(m.slots)
}

// Clear forgets everything, like a registry sweep or Fini.
func (m *Cache) Clear() {
	clear(m.slots)
}

// Names returns the recorded names in sorted order.
func (m *Cache) Names() []string {
	names := make([]string, 0, len(m.slots))
	for name := range m.slots {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Slots returns the recorded slots sorted by name.
func (m *Cache) Slots() []membercache.Slot {
	out := make([]membercache.Slot, 0, len(m.slots))
	for _, name := range m.Names() {
		out = append(out, m.slots[name])
	}

	return out
}

// Clone returns an independent copy.
func (m *Cache) Clone() *Cache {
	c := New()
	for name, s := range m.slots {
		c.slots[name] = s
	}

	return c
}
