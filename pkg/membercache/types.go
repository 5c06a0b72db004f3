package membercache

import "fmt"

// Kind tags what a slot holds.
//
// [KindUnused] and [KindUninitialized] are table-management states. Every
// other kind is a committed payload; once a slot carries one, the slot never
// changes again.
type Kind uint32

// Slot kinds. Transitions are strictly
// Unused -> Uninitialized -> one of the committed kinds.
const (
	KindUnused Kind = iota
	KindUninitialized
	KindMethod
	KindInstanceMethod
	KindGetSet
	KindInstanceGetSet
	KindMember
	KindInstanceMember
	KindAttrib
	KindInstanceAttrib

	numKinds
)

var kindNames = [numKinds]string{
	KindUnused:         "unused",
	KindUninitialized:  "uninitialized",
	KindMethod:         "method",
	KindInstanceMethod: "instance-method",
	KindGetSet:         "getset",
	KindInstanceGetSet: "instance-getset",
	KindMember:         "member",
	KindInstanceMember: "instance-member",
	KindAttrib:         "attrib",
	KindInstanceAttrib: "instance-attrib",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Committed reports whether k is one of the eight payload kinds.
func (k Kind) Committed() bool {
	return k > KindUninitialized && k < numKinds
}

// Type is the declaring type of a cached member.
//
// The cache only borrows it. Whoever owns the cache guarantees the type
// outlives it.
type Type interface {
	Name() string
}

// MethodFunc is the native implementation behind a [MethodDesc].
type MethodFunc func(self any, args []any) (any, error)

// GetterFunc, DeleterFunc and SetterFunc make up a [GetSetDesc].
type (
	GetterFunc  func(self any) (any, error)
	DeleterFunc func(self any) error
	SetterFunc  func(self any, value any) error
)

// MethodDesc describes a native method.
type MethodDesc struct {
	Name  string
	Func  MethodFunc
	Doc   string
	Flags uint32
}

// GetSetDesc describes a native property. Any of Get, Del, Set may be nil.
type GetSetDesc struct {
	Name string
	Get  GetterFunc
	Del  DeleterFunc
	Set  SetterFunc
	Doc  string
}

// FieldType identifies how a [MemberDesc] field is read.
type FieldType uint16

// Field types understood by the runtime.
const (
	FieldObject FieldType = iota
	FieldBool
	FieldInt
	FieldUint
	FieldFloat
	FieldString
)

var fieldTypeNames = [...]string{"object", "bool", "int", "uint", "float", "string"}

func (f FieldType) String() string {
	if int(f) < len(fieldTypeNames) {
		return fieldTypeNames[f]
	}

	return fmt.Sprintf("field(%d)", uint16(f))
}

// ParseFieldType is the inverse of [FieldType.String].
func ParseFieldType(s string) (FieldType, bool) {
	for i, name := range fieldTypeNames {
		if name == s {
			return FieldType(i), true
		}
	}

	return 0, false
}

// MemberDesc describes a field at a fixed offset inside instances.
type MemberDesc struct {
	Name   string
	Type   FieldType
	Offset uintptr
	Doc    string
}

// ClassAttribute is one attribute of a user-defined class. It is owned by
// its [ClassDescriptor].
type ClassAttribute struct {
	Name  string
	Doc   string
	Addr  uint16
	Flags uint16
}

// Class attribute flags.
const (
	AttrPrivate uint16 = 1 << iota
	AttrReadOnly
	AttrMethod
	AttrGetSet
	AttrClassMember
)

// ClassDescriptor describes the attribute layout of a user-defined class.
type ClassDescriptor struct {
	Name  string
	Attrs []*ClassAttribute
}

// Attr returns the attribute with the given name, or nil.
func (d *ClassDescriptor) Attr(name string) *ClassAttribute {
	for _, a := range d.Attrs {
		if a.Name == name {
			return a
		}
	}

	return nil
}

// AttribDesc points at a class attribute and the descriptor owning it.
// Both pointers are borrowed.
type AttribDesc struct {
	Attr  *ClassAttribute
	Class *ClassDescriptor
}

// Slot is one cached resolution.
//
// Payload holds a [MethodDesc], [GetSetDesc], [MemberDesc] or [AttribDesc]
// matching Kind. Descriptors are copied by value; the slot holds no
// references other than the borrowed Decl and the pointers inside
// [AttribDesc].
type Slot struct {
	Kind    Kind
	Hash    uint64
	Name    string
	Decl    Type
	Payload any
}

// Method returns the payload as a [MethodDesc].
func (s Slot) Method() (MethodDesc, bool) {
	d, ok := s.Payload.(MethodDesc)

	return d, ok
}

// GetSet returns the payload as a [GetSetDesc].
func (s Slot) GetSet() (GetSetDesc, bool) {
	d, ok := s.Payload.(GetSetDesc)

	return d, ok
}

// Member returns the payload as a [MemberDesc].
func (s Slot) Member() (MemberDesc, bool) {
	d, ok := s.Payload.(MemberDesc)

	return d, ok
}

// Attrib returns the payload as an [AttribDesc].
func (s Slot) Attrib() (AttribDesc, bool) {
	d, ok := s.Payload.(AttribDesc)

	return d, ok
}

const (
	fnv1aOffsetBasis = uint64(14695981039346656037)
	fnv1aPrime       = uint64(1099511628211)
)

// HashName returns the FNV-1a 64-bit hash of name.
//
// Callers with their own string hash may pass that instead; the cache only
// needs the same name to always hash the same way.
func HashName(name string) uint64 {
	hash := fnv1aOffsetBasis
	for i := range len(name) {
		hash ^= uint64(name[i])
		hash *= fnv1aPrime
	}

	return hash
}
