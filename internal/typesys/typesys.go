// Package typesys is a small type system that resolves attribute names
// through a type's base chain and memoizes the results in member caches.
//
// It plays the part of the runtime around membercache: types own their
// caches, the resolver probes the cache first and walks the MRO on a miss,
// and every hit found by the walk is handed to the matching Add* wrapper.
package typesys

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// Sentinel errors returned by Universe and Type operations.
var (
	ErrUnknownType     = errors.New("typesys: unknown type")
	ErrDuplicateType   = errors.New("typesys: duplicate type")
	ErrDuplicateMember = errors.New("typesys: duplicate member")
	ErrTypeInUse       = errors.New("typesys: type in use")
	ErrInvalidName     = errors.New("typesys: invalid name")
)

// Universe owns a set of types and the registry their caches live in.
type Universe struct {
	reg *membercache.Registry

	mu    sync.RWMutex
	types map[string]*Type
}

// NewUniverse returns an empty universe whose caches join reg.
func NewUniverse(reg *membercache.Registry) *Universe {
	return &Universe{
		reg:   reg,
		types: make(map[string]*Type),
	}
}

// Registry returns the registry shared by all caches of the universe.
func (u *Universe) Registry() *membercache.Registry {
	return u.reg
}

// NewType creates a type named name deriving from base. An empty base
// creates a root type.
func (u *Universe) NewType(name, base string) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("type name: %w", ErrInvalidName)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.types[name]; ok {
		return nil, fmt.Errorf("%q: %w", name, ErrDuplicateType)
	}

	var baseType *Type

	if base != "" {
		bt, ok := u.types[base]
		if !ok {
			return nil, fmt.Errorf("base %q: %w", base, ErrUnknownType)
		}

		baseType = bt
	}

	t := &Type{
		u:          u,
		name:       name,
		base:       baseType,
		methods:    make(map[string]membercache.MethodDesc),
		getsets:    make(map[string]membercache.GetSetDesc),
		members:    make(map[string]membercache.MemberDesc),
		cache:      u.reg.NewCache(),
		classCache: u.reg.NewCache(),
	}

	u.types[name] = t

	return t, nil
}

// Lookup returns the type named name.
func (u *Universe) Lookup(name string) (*Type, error) {
	u.mu.RLock()
	t, ok := u.types[name]
	u.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownType)
	}

	return t, nil
}

// Types returns all types sorted by name.
func (u *Universe) Types() []*Type {
	u.mu.RLock()

	out := make([]*Type, 0, len(u.types))
	for _, t := range u.types {
		out = append(out, t)
	}

	u.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Type) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		default:
			return 0
		}
	})

	return out
}

// Destroy removes a type and finalizes its caches. Types that still derive
// from it keep it alive; destroying such a base fails with [ErrTypeInUse].
func (u *Universe) Destroy(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	t, ok := u.types[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownType)
	}

	for _, other := range u.types {
		if other.base == t {
			return fmt.Errorf("%q is the base of %q: %w", name, other.name, ErrTypeInUse)
		}
	}

	delete(u.types, name)

	t.cache.Fini()
	t.classCache.Fini()

	return nil
}

// invalidate drops the caches of t and of every type deriving from it.
// Cached slots are never replaced one by one, so a definition that could
// shadow a cached one has to start those caches over. A lookup racing the
// definition may still cache what it resolved before it.
func (u *Universe) invalidate(t *Type) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	for _, other := range u.types {
		if other.derivesFrom(t) {
			other.cache.Fini()
			other.classCache.Fini()
		}
	}
}

// Type is a runtime type: a name, an optional base, and the members it
// declares itself.
type Type struct {
	u    *Universe
	name string
	base *Type

	// mu guards the member tables and class.
	mu      sync.RWMutex
	methods map[string]membercache.MethodDesc
	getsets map[string]membercache.GetSetDesc
	members map[string]membercache.MemberDesc
	class   *membercache.ClassDescriptor

	// cache memoizes lookups on instances, classCache lookups on the type
	// object itself.
	cache      *membercache.Cache
	classCache *membercache.Cache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Name returns the type's name.
func (t *Type) Name() string { return t.name }

// Base returns the direct base, or nil for a root type.
func (t *Type) Base() *Type { return t.base }

// Cache returns the instance attribute cache.
func (t *Type) Cache() *membercache.Cache { return t.cache }

// ClassCache returns the cache for attributes looked up on the type object.
func (t *Type) ClassCache() *membercache.Cache { return t.classCache }

// MRO returns t followed by its bases, nearest first.
func (t *Type) MRO() []*Type {
	var out []*Type
	for tp := t; tp != nil; tp = tp.base {
		out = append(out, tp)
	}

	return out
}

func (t *Type) derivesFrom(base *Type) bool {
	for tp := t; tp != nil; tp = tp.base {
		if tp == base {
			return true
		}
	}

	return false
}

// Counters returns how many attribute lookups on t hit and missed its caches.
func (t *Type) Counters() (hits, misses uint64) {
	return t.hits.Load(), t.misses.Load()
}

func (t *Type) hasLocked(name string) bool {
	if _, ok := t.methods[name]; ok {
		return true
	}

	if _, ok := t.getsets[name]; ok {
		return true
	}

	if _, ok := t.members[name]; ok {
		return true
	}

	return t.class != nil && t.class.Attr(name) != nil
}

func (t *Type) define(name string, set func()) error {
	if name == "" {
		return fmt.Errorf("member name: %w", ErrInvalidName)
	}

	t.mu.Lock()

	if t.hasLocked(name) {
		t.mu.Unlock()

		return fmt.Errorf("%s.%s: %w", t.name, name, ErrDuplicateMember)
	}

	set()
	t.mu.Unlock()

	t.u.invalidate(t)

	return nil
}

// DefineMethod declares a native method on t.
func (t *Type) DefineMethod(desc membercache.MethodDesc) error {
	return t.define(desc.Name, func() { t.methods[desc.Name] = desc })
}

// DefineGetSet declares a native property on t.
func (t *Type) DefineGetSet(desc membercache.GetSetDesc) error {
	return t.define(desc.Name, func() { t.getsets[desc.Name] = desc })
}

// DefineMember declares an instance field on t.
func (t *Type) DefineMember(desc membercache.MemberDesc) error {
	return t.define(desc.Name, func() { t.members[desc.Name] = desc })
}

// DefineClassAttr declares a user-class attribute on t.
//
// The class descriptor is replaced rather than mutated: cached slots keep
// pointing at the descriptor they were resolved against.
func (t *Type) DefineClassAttr(name, doc string, flags uint16) error {
	return t.define(name, func() {
		var attrs []*membercache.ClassAttribute
		if t.class != nil {
			attrs = slices.Clone(t.class.Attrs)
		}

		attrs = append(attrs, &membercache.ClassAttribute{
			Name:  name,
			Doc:   doc,
			Addr:  uint16(len(attrs)),
			Flags: flags,
		})

		t.class = &membercache.ClassDescriptor{Name: t.name, Attrs: attrs}
	})
}
