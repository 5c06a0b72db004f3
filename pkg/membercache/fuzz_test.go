package membercache_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/membercache/internal/testutil"
	"github.com/calvinalkan/membercache/pkg/membercache"
	"github.com/calvinalkan/membercache/pkg/membercache/model"
)

// FuzzCache_Matches_Model drives one cache with generated operations and
// checks every observation against the map model.
func FuzzCache_Matches_Model(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("membercache"))
	f.Add(make([]byte, 64))

	// Add the same name twice with different kinds, then look it up.
	f.Add([]byte{
		0x00, 0x07, 0x00, 0x00, 0x00, 0x01,       // add n7 method
		0x00, 0x07, 0x00, 0x02, 0x00, 0x00, 0x00, // add n7 getset, doc "a"
		0x40, 0x07, 0x00,                         // lookup n7
	})

	// Many distinct names force several growths, then range and clear.
	seed := make([]byte, 0, 6*64+3)
	for i := range 64 {
		seed = append(seed, 0x00, byte(i), byte(i>>8), 0x00, 0x00, 0x00)
	}

	f.Add(append(seed, 0x5d, 0x5e, 0x02))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg := testutil.DefaultOpGenConfig()
		decls := []membercache.Type{&testType{N: "A"}, &testType{N: "B"}}
		gen := testutil.NewOpGenerator(data, decls, &cfg)

		reg := membercache.NewRegistry(membercache.Options{})
		c := reg.NewCache()
		m := model.New()

		defer c.Fini()

		var lastCapacity uint64

		for step := 0; gen.HasMore(); step++ {
			op := gen.NextOp()

			switch op.Kind {
			case testutil.OpAdd:
				if !c.AddSlot(&op.Slot) {
					t.Fatalf("step %d %v: AddSlot returned false", step, op)
				}

				m.Add(op.Slot)
			case testutil.OpLookup:
				got, gotOK := c.Lookup(op.Slot.Hash, op.Slot.Name)
				want, wantOK := m.Lookup(op.Slot.Name)

				if gotOK != wantOK {
					t.Fatalf("step %d %v: found=%v, model found=%v", step, op, gotOK, wantOK)
				}

				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("step %d %v: mismatch (-model +real):\n%s", step, op, diff)
				}
			case testutil.OpRange:
				if diff := cmp.Diff(m.Slots(), realSlots(c)); diff != "" {
					t.Fatalf("step %d: content mismatch (-model +real):\n%s", step, diff)
				}
			case testutil.OpClearAll:
				reg.ClearAll(op.Budget)

				if op.Budget > 0 {
					m.Clear()
				}
			case testutil.OpFini:
				c.Fini()
				m.Clear()
			}

			if got, want := c.Size(), uint64(m.Len()); got != want {
				t.Fatalf("step %d %v: size=%d, model len=%d", step, op, got, want)
			}

			capacity := c.Capacity()
			if capacity != 0 && capacity < lastCapacity {
				t.Fatalf("step %d %v: capacity shrank from %d to %d", step, op, lastCapacity, capacity)
			}

			if capacity != 0 && m.Len() > 0 && uint64(m.Len())*2 > capacity {
				t.Fatalf("step %d %v: %d slots in capacity %d exceeds the load factor", step, op, m.Len(), capacity)
			}

			lastCapacity = capacity

			if c.Linked() != (capacity != 0) {
				t.Fatalf("step %d %v: linked=%v with capacity %d", step, op, c.Linked(), capacity)
			}
		}

		if st := reg.Stats(); st.Dropped != 0 {
			t.Fatalf("dropped %d inserts below the capacity cap", st.Dropped)
		}
	})
}
