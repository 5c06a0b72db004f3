// Package membercache provides a per-type, concurrently accessed cache of
// member-resolution results.
//
// A [Cache] memoizes what the method-resolution-order walk found for a name:
// which type declares it and the descriptor (method, getset, member or class
// attribute) it resolved to. Repeat lookups probe the cache instead of
// walking base types again.
//
// The cache is append-only. Entries are never removed or replaced one by one;
// the backing table is only ever grown (by building a larger copy and
// swapping it in) or dropped wholesale by [Registry.ClearAll].
//
// # Basic Usage
//
//	reg := membercache.NewRegistry(membercache.Options{})
//	c := reg.NewCache()
//	defer c.Fini()
//
//	// On a miss in the resolver:
//	c.AddMethod(decl, membercache.HashName("foo"), membercache.MethodDesc{Name: "foo"})
//
//	// Fast path:
//	slot, ok := c.Lookup(membercache.HashName("foo"), "foo")
//
// # Concurrency
//
// All methods on [Cache] and [Registry] are safe for concurrent use.
// Writers never block readers: slots are claimed with a compare-and-swap on
// their kind tag and published by storing the final kind last. A table that
// is replaced stays intact for readers that already hold it.
//
// # Failure Model
//
// Nothing here returns an error. When a table cannot grow past
// [Options.MaxCapacity], inserts fall back to overcommitting the current
// table and, once that is truly full, are dropped. A dropped insert is a
// future cache miss, never a wrong answer.
package membercache
