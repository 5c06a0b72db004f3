package typesys

import "github.com/calvinalkan/membercache/pkg/membercache"

// FindAttr resolves name as an attribute of an instance of t.
//
// The instance cache is probed first. On a miss the MRO is walked and the
// first declaration found is recorded in the cache with its declaring type.
func (t *Type) FindAttr(name string) (membercache.Slot, bool) {
	return t.find(t.cache, name, false)
}

// FindClassAttr resolves name as an attribute of the type object itself.
// Results are recorded in the class cache with the instance kinds.
func (t *Type) FindClassAttr(name string) (membercache.Slot, bool) {
	return t.find(t.classCache, name, true)
}

func (t *Type) find(c *membercache.Cache, name string, onClass bool) (membercache.Slot, bool) {
	hash := membercache.HashName(name)

	if s, ok := c.Lookup(hash, name); ok {
		t.hits.Add(1)

		return s, true
	}

	t.misses.Add(1)

	for tp := t; tp != nil; tp = tp.base {
		s, ok := tp.declared(hash, name, onClass)
		if !ok {
			continue
		}

		record(c, &s)

		return s, true
	}

	return membercache.Slot{}, false
}

// declared returns the slot for a member t itself declares.
func (t *Type) declared(hash uint64, name string, onClass bool) (membercache.Slot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := membercache.Slot{Hash: hash, Name: name, Decl: t}

	if desc, ok := t.methods[name]; ok {
		s.Kind, s.Payload = pick(onClass, membercache.KindMethod, membercache.KindInstanceMethod), desc

		return s, true
	}

	if desc, ok := t.getsets[name]; ok {
		s.Kind, s.Payload = pick(onClass, membercache.KindGetSet, membercache.KindInstanceGetSet), desc

		return s, true
	}

	if desc, ok := t.members[name]; ok {
		s.Kind, s.Payload = pick(onClass, membercache.KindMember, membercache.KindInstanceMember), desc

		return s, true
	}

	if t.class != nil {
		if attr := t.class.Attr(name); attr != nil {
			s.Kind = pick(onClass, membercache.KindAttrib, membercache.KindInstanceAttrib)
			s.Payload = membercache.AttribDesc{Attr: attr, Class: t.class}

			return s, true
		}
	}

	return membercache.Slot{}, false
}

func pick(onClass bool, kind, instanceKind membercache.Kind) membercache.Kind {
	if onClass {
		return instanceKind
	}

	return kind
}

// record hands s to the Add* wrapper for its kind.
func record(c *membercache.Cache, s *membercache.Slot) {
	switch s.Kind {
	case membercache.KindMethod:
		c.AddMethod(s.Decl, s.Hash, s.Payload.(membercache.MethodDesc))
	case membercache.KindInstanceMethod:
		c.AddInstanceMethod(s.Decl, s.Hash, s.Payload.(membercache.MethodDesc))
	case membercache.KindGetSet:
		c.AddGetSet(s.Decl, s.Hash, s.Payload.(membercache.GetSetDesc))
	case membercache.KindInstanceGetSet:
		c.AddInstanceGetSet(s.Decl, s.Hash, s.Payload.(membercache.GetSetDesc))
	case membercache.KindMember:
		c.AddMember(s.Decl, s.Hash, s.Payload.(membercache.MemberDesc))
	case membercache.KindInstanceMember:
		c.AddInstanceMember(s.Decl, s.Hash, s.Payload.(membercache.MemberDesc))
	case membercache.KindAttrib:
		c.AddAttrib(s.Decl, s.Hash, s.Payload.(membercache.AttribDesc))
	case membercache.KindInstanceAttrib:
		c.AddInstanceAttrib(s.Decl, s.Hash, s.Payload.(membercache.AttribDesc))
	}
}
