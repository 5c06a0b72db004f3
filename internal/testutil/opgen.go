package testutil

import (
	"fmt"
	"math"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// OpKind selects what an [Op] does to a cache.
type OpKind int

// Operation kinds.
const (
	OpAdd OpKind = iota
	OpLookup
	OpRange
	OpClearAll
	OpFini
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpLookup:
		return "lookup"
	case OpRange:
		return "range"
	case OpClearAll:
		return "clear-all"
	case OpFini:
		return "fini"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Op is one generated cache operation.
type Op struct {
	Kind OpKind

	// Slot is the item for OpAdd; Name and Hash are also set for OpLookup.
	Slot membercache.Slot

	// Budget is the ClearAll byte budget.
	Budget uint64
}

func (o Op) String() string {
	switch o.Kind {
	case OpAdd:
		return fmt.Sprintf("add(%s %q)", o.Slot.Kind, o.Slot.Name)
	case OpLookup:
		return fmt.Sprintf("lookup(%q)", o.Slot.Name)
	case OpClearAll:
		return fmt.Sprintf("clear-all(%d)", o.Budget)
	default:
		return o.Kind.String()
	}
}

// OpGenConfig configures the operation generator.
type OpGenConfig struct {
	// AddRate is the percentage of ops that add a slot (0-100).
	AddRate int

	// LookupRate is the percentage of ops that look a name up.
	LookupRate int

	// RangeRate is the percentage of ops that iterate the cache.
	RangeRate int

	// ClearRate is the percentage of ops that call ClearAll.
	ClearRate int

	// Names bounds the name pool. Small pools exercise repeated names,
	// large ones exercise growth.
	Names int

	// HashCollisionRate is the percentage of names that get a shared hash.
	HashCollisionRate int
}

// DefaultOpGenConfig returns a balanced configuration. Whatever the rates
// leave over goes to Fini.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		AddRate:           55,
		LookupRate:        35,
		RangeRate:         4,
		ClearRate:         4,
		Names:             512,
		HashCollisionRate: 5,
	}
}

// collidingHash is shared by every name chosen to collide.
const collidingHash = 0x5eed

// OpGenerator generates deterministic operations from a byte stream.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
	decls  []membercache.Type
	class  *membercache.ClassDescriptor
}

// NewOpGenerator creates a new operation generator. decls are the
// declaring types slots are attributed to.
func NewOpGenerator(fuzzBytes []byte, decls []membercache.Type, cfg *OpGenConfig) *OpGenerator {
	return &OpGenerator{
		stream: NewByteStream(fuzzBytes),
		config: *cfg,
		decls:  decls,
		class:  &membercache.ClassDescriptor{Name: "Fuzz"},
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	choice := int(g.stream.NextByte()) % 100

	cumulative := g.config.AddRate
	if choice < cumulative {
		return Op{Kind: OpAdd, Slot: g.genSlot()}
	}

	cumulative += g.config.LookupRate
	if choice < cumulative {
		name, hash := g.genName()

		return Op{Kind: OpLookup, Slot: membercache.Slot{Name: name, Hash: hash}}
	}

	cumulative += g.config.RangeRate
	if choice < cumulative {
		return Op{Kind: OpRange}
	}

	cumulative += g.config.ClearRate
	if choice < cumulative {
		return Op{Kind: OpClearAll, Budget: g.genBudget()}
	}

	return Op{Kind: OpFini}
}

// genName returns a name from the pool and its hash. The same name always
// gets the same hash.
func (g *OpGenerator) genName() (string, uint64) {
	n := int(g.stream.NextUint16()) % max(g.config.Names, 1)
	name := fmt.Sprintf("n%d", n)

	if g.config.HashCollisionRate > 0 && n%100 < g.config.HashCollisionRate {
		return name, collidingHash
	}

	return name, membercache.HashName(name)
}

func (g *OpGenerator) genSlot() membercache.Slot {
	name, hash := g.genName()
	kind := membercache.KindMethod + membercache.Kind(g.stream.NextInt(8))

	s := membercache.Slot{Kind: kind, Hash: hash, Name: name}
	if len(g.decls) > 0 {
		s.Decl = g.decls[g.stream.NextInt(len(g.decls))]
	}

	switch kind {
	case membercache.KindMethod, membercache.KindInstanceMethod:
		s.Payload = membercache.MethodDesc{Name: name, Flags: uint32(g.stream.NextByte())}
	case membercache.KindGetSet, membercache.KindInstanceGetSet:
		s.Payload = membercache.GetSetDesc{Name: name, Doc: g.stream.NextString(4)}
	case membercache.KindMember, membercache.KindInstanceMember:
		s.Payload = membercache.MemberDesc{
			Name:   name,
			Type:   membercache.FieldType(g.stream.NextInt(6)),
			Offset: uintptr(g.stream.NextUint16()),
		}
	default:
		attr := g.class.Attr(name)
		if attr == nil {
			attr = &membercache.ClassAttribute{Name: name, Addr: uint16(len(g.class.Attrs))}
			g.class.Attrs = append(g.class.Attrs, attr)
		}

		s.Payload = membercache.AttribDesc{Attr: attr, Class: g.class}
	}

	return s
}

func (g *OpGenerator) genBudget() uint64 {
	switch g.stream.NextInt(3) {
	case 0:
		return 0
	case 1:
		return uint64(g.stream.NextUint16())
	default:
		return math.MaxUint64
	}
}
