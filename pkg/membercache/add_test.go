package membercache_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

func Test_Add_Wrappers_Store_Their_Kind_And_Payload(t *testing.T) {
	t.Parallel()

	decl := &testType{N: "T"}
	class := &membercache.ClassDescriptor{Name: "T"}
	attr := &membercache.ClassAttribute{Name: "attr", Doc: "class attribute", Addr: 3, Flags: membercache.AttrReadOnly}
	class.Attrs = append(class.Attrs, attr)

	method := membercache.MethodDesc{Name: "meth", Doc: "a method", Flags: 1}
	getset := membercache.GetSetDesc{Name: "prop", Doc: "a property"}
	member := membercache.MemberDesc{Name: "field", Type: membercache.FieldString, Offset: 24}
	attrib := membercache.AttribDesc{Attr: attr, Class: class}

	tests := []struct {
		name    string
		add     func(c *membercache.Cache, hash uint64) bool
		member  string
		kind    membercache.Kind
		payload any
	}{
		{"AddMethod", func(c *membercache.Cache, h uint64) bool { return c.AddMethod(decl, h, method) }, "meth", membercache.KindMethod, method},
		{"AddInstanceMethod", func(c *membercache.Cache, h uint64) bool { return c.AddInstanceMethod(decl, h, method) }, "meth", membercache.KindInstanceMethod, method},
		{"AddGetSet", func(c *membercache.Cache, h uint64) bool { return c.AddGetSet(decl, h, getset) }, "prop", membercache.KindGetSet, getset},
		{"AddInstanceGetSet", func(c *membercache.Cache, h uint64) bool { return c.AddInstanceGetSet(decl, h, getset) }, "prop", membercache.KindInstanceGetSet, getset},
		{"AddMember", func(c *membercache.Cache, h uint64) bool { return c.AddMember(decl, h, member) }, "field", membercache.KindMember, member},
		{"AddInstanceMember", func(c *membercache.Cache, h uint64) bool { return c.AddInstanceMember(decl, h, member) }, "field", membercache.KindInstanceMember, member},
		{"AddAttrib", func(c *membercache.Cache, h uint64) bool { return c.AddAttrib(decl, h, attrib) }, "attr", membercache.KindAttrib, attrib},
		{"AddInstanceAttrib", func(c *membercache.Cache, h uint64) bool { return c.AddInstanceAttrib(decl, h, attrib) }, "attr", membercache.KindInstanceAttrib, attrib},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, c := newTestCache(t, membercache.Options{})
			hash := membercache.HashName(tt.member)

			if !tt.add(c, hash) {
				t.Fatalf("%s returned false", tt.name)
			}

			if !tt.add(c, hash) {
				t.Fatalf("%s returned false on repeat", tt.name)
			}

			got, ok := c.Lookup(hash, tt.member)
			if !ok {
				t.Fatalf("Lookup(%q) missed", tt.member)
			}

			want := membercache.Slot{Kind: tt.kind, Hash: hash, Name: tt.member, Decl: decl, Payload: tt.payload}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("slot mismatch (-want +got):\n%s", diff)
			}

			if got := c.Size(); got != 1 {
				t.Fatalf("size=%d, want 1", got)
			}
		})
	}
}

func Test_AddAttrib_Skips_Descriptor_Without_Attribute(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t, membercache.Options{})

	if !c.AddAttrib(&testType{N: "T"}, 1, membercache.AttribDesc{}) {
		t.Fatal("AddAttrib returned false")
	}

	if !c.AddInstanceAttrib(&testType{N: "T"}, 1, membercache.AttribDesc{}) {
		t.Fatal("AddInstanceAttrib returned false")
	}

	if got := c.Capacity(); got != 0 {
		t.Fatalf("capacity=%d, want nothing cached", got)
	}
}

func Test_Slot_Accessors_Match_Payload_Type(t *testing.T) {
	t.Parallel()

	s := membercache.Slot{Kind: membercache.KindMember, Payload: membercache.MemberDesc{Name: "x", Offset: 8}}

	if d, ok := s.Member(); !ok || d.Offset != 8 {
		t.Fatalf("Member()=%+v,%v, want offset 8", d, ok)
	}

	if _, ok := s.Method(); ok {
		t.Fatal("Method() matched a member payload")
	}

	if _, ok := s.GetSet(); ok {
		t.Fatal("GetSet() matched a member payload")
	}

	if _, ok := s.Attrib(); ok {
		t.Fatal("Attrib() matched a member payload")
	}
}

func Test_Kind_String_And_Committed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind      membercache.Kind
		str       string
		committed bool
	}{
		{membercache.KindUnused, "unused", false},
		{membercache.KindUninitialized, "uninitialized", false},
		{membercache.KindMethod, "method", true},
		{membercache.KindInstanceAttrib, "instance-attrib", true},
		{membercache.Kind(42), "kind(42)", false},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.str {
			t.Fatalf("Kind(%d).String()=%q, want %q", uint32(tt.kind), got, tt.str)
		}

		if got := tt.kind.Committed(); got != tt.committed {
			t.Fatalf("Kind(%d).Committed()=%v, want %v", uint32(tt.kind), got, tt.committed)
		}
	}
}

func Test_HashName_Matches_FNV1a64(t *testing.T) {
	t.Parallel()

	tests := map[string]uint64{
		"":    0xcbf29ce484222325,
		"a":   0xaf63dc4c8601ec8c,
		"foo": 0xdcb27518fed9d577,
	}

	for in, want := range tests {
		if got := membercache.HashName(in); got != want {
			t.Fatalf("HashName(%q)=%#x, want %#x", in, got, want)
		}
	}
}

func Test_FieldType_Parses_What_It_Prints(t *testing.T) {
	t.Parallel()

	for ft := membercache.FieldObject; ft <= membercache.FieldString; ft++ {
		got, ok := membercache.ParseFieldType(ft.String())
		if !ok || got != ft {
			t.Fatalf("ParseFieldType(%q)=%v,%v, want %v", ft.String(), got, ok, ft)
		}
	}

	if _, ok := membercache.ParseFieldType("pointer"); ok {
		t.Fatal("ParseFieldType accepted an unknown name")
	}

	if got := membercache.FieldType(9).String(); got != "field(9)" {
		t.Fatalf("FieldType(9).String()=%q, want field(9)", got)
	}
}
