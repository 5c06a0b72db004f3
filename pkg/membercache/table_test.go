package membercache

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type tableTestType struct {
	N string
}

func (t *tableTestType) Name() string { return t.N }

func methodSlot(decl Type, name string) *Slot {
	return &Slot{
		Kind:    KindMethod,
		Hash:    HashName(name),
		Name:    name,
		Decl:    decl,
		Payload: MethodDesc{Name: name, Doc: "doc of " + name},
	}
}

func Test_NewTable_Starts_Empty_With_One_Reference(t *testing.T) {
	t.Parallel()

	tbl := newTable(initialMask)

	if got := tbl.capacity(); got != 16 {
		t.Fatalf("capacity=%d, want 16", got)
	}

	if got := tbl.size.Load(); got != 0 {
		t.Fatalf("size=%d, want 0", got)
	}

	if got := tbl.refs.Load(); got != 1 {
		t.Fatalf("refs=%d, want 1", got)
	}

	counts := tbl.kindCounts()
	if counts[KindUnused] != 16 {
		t.Fatalf("unused slots=%d, want 16", counts[KindUnused])
	}
}

func Test_TryAdd_Reports_Present_When_Name_Already_Committed(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	tbl := newTable(initialMask)

	if got := tbl.tryAdd(methodSlot(decl, "foo"), false); got != addInserted {
		t.Fatalf("first tryAdd=%v, want inserted", got)
	}

	if got := tbl.tryAdd(methodSlot(decl, "foo"), false); got != addPresent {
		t.Fatalf("second tryAdd=%v, want present", got)
	}

	if got := tbl.size.Load(); got != 1 {
		t.Fatalf("size=%d after duplicate add, want 1", got)
	}
}

func Test_TryAdd_Keeps_Both_Names_When_Hashes_Collide(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	tbl := newTable(initialMask)

	a := &Slot{Kind: KindMember, Hash: 42, Name: "a", Decl: decl, Payload: MemberDesc{Name: "a", Offset: 8}}
	b := &Slot{Kind: KindMember, Hash: 42, Name: "b", Decl: decl, Payload: MemberDesc{Name: "b", Offset: 16}}

	if got := tbl.tryAdd(a, false); got != addInserted {
		t.Fatalf("tryAdd(a)=%v, want inserted", got)
	}

	if got := tbl.tryAdd(b, false); got != addInserted {
		t.Fatalf("tryAdd(b)=%v, want inserted", got)
	}

	for _, want := range []*Slot{a, b} {
		got, ok := tbl.lookup(want.Hash, want.Name)
		if !ok {
			t.Fatalf("lookup(%q) missed", want.Name)
		}

		if diff := cmp.Diff(*want, got); diff != "" {
			t.Fatalf("lookup(%q) mismatch (-want +got):\n%s", want.Name, diff)
		}
	}
}

func Test_TryAdd_Refuses_Past_Half_Capacity_Unless_Overcommit(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	tbl := newTable(initialMask)

	for i := range 8 {
		if got := tbl.tryAdd(methodSlot(decl, fmt.Sprintf("m%d", i)), false); got != addInserted {
			t.Fatalf("tryAdd #%d=%v, want inserted", i, got)
		}
	}

	if got := tbl.tryAdd(methodSlot(decl, "m8"), false); got != addFull {
		t.Fatalf("tryAdd past load factor=%v, want full", got)
	}

	if got := tbl.size.Load(); got != 8 {
		t.Fatalf("size=%d after refused add, want 8", got)
	}

	for i := 8; i < 16; i++ {
		if got := tbl.tryAdd(methodSlot(decl, fmt.Sprintf("m%d", i)), true); got != addInserted {
			t.Fatalf("overcommit tryAdd #%d=%v, want inserted", i, got)
		}
	}

	if got := tbl.tryAdd(methodSlot(decl, "m16"), true); got != addFull {
		t.Fatalf("tryAdd into full table=%v, want full", got)
	}

	if got := tbl.size.Load(); got != 16 {
		t.Fatalf("size=%d, want 16", got)
	}

	// Every name is still reachable in a table without a single Unused slot.
	for i := range 16 {
		name := fmt.Sprintf("m%d", i)
		if _, ok := tbl.lookup(HashName(name), name); !ok {
			t.Fatalf("lookup(%q) missed in full table", name)
		}
	}

	if _, ok := tbl.lookup(HashName("absent"), "absent"); ok {
		t.Fatal("lookup of absent name hit in full table")
	}
}

func Test_TryAdd_Treats_Pending_Slot_On_Probe_Path_As_Present(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	tbl := newTable(initialMask)
	item := methodSlot(decl, "foo")

	// Another writer claimed the first slot on foo's probe path but has not
	// committed yet.
	first := newProbe(item.Hash, tbl.mask)
	tbl.cells[first.i].kind.Store(uint32(KindUninitialized))
	tbl.size.Store(1)

	if got := tbl.tryAdd(item, false); got != addPresent {
		t.Fatalf("tryAdd=%v, want present", got)
	}

	if got := tbl.size.Load(); got != 1 {
		t.Fatalf("size=%d, want reservation given back", got)
	}

	if _, ok := tbl.lookup(item.Hash, item.Name); ok {
		t.Fatal("lookup must skip a pending slot")
	}
}

func Test_Migrate_Allocates_Initial_Table_When_Old_Is_Nil(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	item := methodSlot(decl, "foo")

	tbl := migrate(nil, item, defaultMaxCapacity-1)
	if tbl == nil {
		t.Fatal("migrate returned nil")
	}

	if got := tbl.capacity(); got != 16 {
		t.Fatalf("capacity=%d, want 16", got)
	}

	if got := tbl.size.Load(); got != 1 {
		t.Fatalf("size=%d, want 1", got)
	}

	if _, ok := tbl.lookup(item.Hash, item.Name); !ok {
		t.Fatal("new item missing after migrate")
	}
}

func Test_Migrate_Copies_Committed_Slots_And_Drops_Pending_Ones(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	old := newTable(initialMask)

	var want []Slot

	for i := range 8 {
		s := methodSlot(decl, fmt.Sprintf("m%d", i))
		if old.tryAdd(s, false) != addInserted {
			t.Fatalf("setup add #%d failed", i)
		}

		want = append(want, *s)
	}

	// Simulate a writer caught mid-insert.
	for i := range old.cells {
		if old.cells[i].load() == KindUnused {
			old.cells[i].kind.Store(uint32(KindUninitialized))
			old.cells[i].name = "torn"
			old.size.Add(1)

			break
		}
	}

	item := methodSlot(decl, "new")

	tbl := migrate(old, item, defaultMaxCapacity-1)
	if tbl == nil {
		t.Fatal("migrate returned nil")
	}

	if got := tbl.capacity(); got != 32 {
		t.Fatalf("capacity=%d, want 32", got)
	}

	if got := tbl.size.Load(); got != 9 {
		t.Fatalf("size=%d, want 9 (8 migrated + new)", got)
	}

	for _, w := range append(want, *item) {
		got, ok := tbl.lookup(w.Hash, w.Name)
		if !ok {
			t.Fatalf("lookup(%q) missed after migrate", w.Name)
		}

		if diff := cmp.Diff(w, got); diff != "" {
			t.Fatalf("slot %q changed across migrate (-want +got):\n%s", w.Name, diff)
		}
	}

	if counts := tbl.kindCounts(); counts[KindUninitialized] != 0 {
		t.Fatalf("pending slots migrated: %d", counts[KindUninitialized])
	}
}

func Test_Migrate_Does_Not_Duplicate_Item_Already_In_Old_Table(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	old := newTable(initialMask)
	item := methodSlot(decl, "foo")
	old.tryAdd(item, false)

	tbl := migrate(old, item, defaultMaxCapacity-1)

	if got := tbl.size.Load(); got != 1 {
		t.Fatalf("size=%d, want 1", got)
	}

	if counts := tbl.kindCounts(); counts[KindMethod] != 1 {
		t.Fatalf("method slots=%d, want 1", counts[KindMethod])
	}
}

func Test_Migrate_Returns_Nil_When_Growth_Exceeds_Cap(t *testing.T) {
	t.Parallel()

	decl := &tableTestType{N: "T"}
	old := newTable(initialMask)

	if tbl := migrate(old, methodSlot(decl, "foo"), initialMask); tbl != nil {
		t.Fatalf("migrate past cap returned capacity %d, want nil", tbl.capacity())
	}
}

func Test_Probe_Visits_Every_Slot_Within_Probe_Limit(t *testing.T) {
	t.Parallel()

	for _, mask := range []uint64{15, 63, 1023} {
		for _, hash := range []uint64{0, 1, 42, HashName("foo"), ^uint64(0)} {
			seen := make([]bool, mask+1)
			p := newProbe(hash, mask)

			for range probeLimit(mask) {
				seen[p.i] = true
				p.next()
			}

			for i, ok := range seen {
				if !ok {
					t.Fatalf("mask=%d hash=%#x: slot %d never probed", mask, hash, i)
				}
			}
		}
	}
}

func Test_Decref_Reports_Last_Reference(t *testing.T) {
	t.Parallel()

	tbl := newTable(initialMask)
	tbl.incref()

	if tbl.decref() {
		t.Fatal("decref with a reference left reported last")
	}

	if !tbl.decref() {
		t.Fatal("final decref did not report last")
	}
}
