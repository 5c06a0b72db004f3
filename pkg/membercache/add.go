package membercache

// The Add* wrappers are what a resolver calls after a cache miss. Each
// builds a slot of one kind from the descriptor it found while walking the
// MRO and hands it to [Cache.AddSlot]. They always return true.

// AddMethod caches a method found on decl.
func (c *Cache) AddMethod(decl Type, hash uint64, desc MethodDesc) bool {
	return c.AddSlot(&Slot{Kind: KindMethod, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddInstanceMethod caches a method reached through the type object rather
// than an instance.
func (c *Cache) AddInstanceMethod(decl Type, hash uint64, desc MethodDesc) bool {
	return c.AddSlot(&Slot{Kind: KindInstanceMethod, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddGetSet caches a property found on decl.
func (c *Cache) AddGetSet(decl Type, hash uint64, desc GetSetDesc) bool {
	return c.AddSlot(&Slot{Kind: KindGetSet, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddInstanceGetSet caches a property reached through the type object.
func (c *Cache) AddInstanceGetSet(decl Type, hash uint64, desc GetSetDesc) bool {
	return c.AddSlot(&Slot{Kind: KindInstanceGetSet, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddMember caches a field found on decl.
func (c *Cache) AddMember(decl Type, hash uint64, desc MemberDesc) bool {
	return c.AddSlot(&Slot{Kind: KindMember, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddInstanceMember caches a field reached through the type object.
func (c *Cache) AddInstanceMember(decl Type, hash uint64, desc MemberDesc) bool {
	return c.AddSlot(&Slot{Kind: KindInstanceMember, Hash: hash, Name: desc.Name, Decl: decl, Payload: desc})
}

// AddAttrib caches a user-class attribute found on decl.
func (c *Cache) AddAttrib(decl Type, hash uint64, desc AttribDesc) bool {
	if desc.Attr == nil {
		return true
	}

	return c.AddSlot(&Slot{Kind: KindAttrib, Hash: hash, Name: desc.Attr.Name, Decl: decl, Payload: desc})
}

// AddInstanceAttrib caches a user-class attribute reached through the type
// object.
func (c *Cache) AddInstanceAttrib(decl Type, hash uint64, desc AttribDesc) bool {
	if desc.Attr == nil {
		return true
	}

	return c.AddSlot(&Slot{Kind: KindInstanceAttrib, Hash: hash, Name: desc.Attr.Name, Decl: decl, Payload: desc})
}
