// Package itypes defines the interface-value type universe the engine
// marshals across the core-Wasm boundary: signed/unsigned integers of
// 8/16/32/64 bits, floats, UTF-8 strings, byte vectors, arrays and
// user-defined records.
//
// This sits one level above api.ValueType (github.com/tetratelabs/wazero/api),
// which only knows the four core Wasm numeric kinds. Every IType eventually
// lowers to one or more core values via the adapter (see package adapter).
package itypes

import "fmt"

// Kind discriminates the cases of IType/IValue. Equality of two ITypes is
// structural: same Kind, and for Record/Array, the same nested shape.
type Kind byte

const (
	KindS8 Kind = iota
	KindS16
	KindS32
	KindS64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindByteArray
	KindRecord
	KindArray
)

// String returns the lower-case name of the kind, as used in JSON schema
// mismatch errors and CLI listings.
func (k Kind) String() string {
	switch k {
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindByteArray:
		return "byte_array"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// IType is a tagged variant describing the shape of an interface value.
// Record and Array carry nested shape: a RecordID into a RecordRegistry, or
// the element IType, respectively.
type IType struct {
	Kind     Kind
	RecordID RecordID // valid only when Kind == KindRecord
	Elem     *IType   // valid only when Kind == KindArray
}

// Primitive type constructors. These are the only cases with no nested
// shape, so they are safe to share as package-level values.
var (
	S8        = IType{Kind: KindS8}
	S16       = IType{Kind: KindS16}
	S32       = IType{Kind: KindS32}
	S64       = IType{Kind: KindS64}
	U8        = IType{Kind: KindU8}
	U16       = IType{Kind: KindU16}
	U32       = IType{Kind: KindU32}
	U64       = IType{Kind: KindU64}
	F32       = IType{Kind: KindF32}
	F64       = IType{Kind: KindF64}
	String    = IType{Kind: KindString}
	ByteArray = IType{Kind: KindByteArray}
)

// Record builds the IType for a record of the given id.
func Record(id RecordID) IType { return IType{Kind: KindRecord, RecordID: id} }

// Array builds the IType whose elements all have type elem.
func Array(elem IType) IType { return IType{Kind: KindArray, Elem: &elem} }

// Equal reports structural equality, recursing into Array element types and
// comparing RecordIDs by value (not resolving through a registry).
func (t IType) Equal(o IType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindRecord:
		return t.RecordID == o.RecordID
	case KindArray:
		return t.Elem.Equal(*o.Elem)
	default:
		return true
	}
}

func (t IType) String() string {
	switch t.Kind {
	case KindRecord:
		return fmt.Sprintf("record(%d)", t.RecordID)
	case KindArray:
		return fmt.Sprintf("array(%s)", t.Elem)
	default:
		return t.Kind.String()
	}
}

// IsInteger reports whether t is one of the eight fixed-width integer kinds.
func (t IType) IsInteger() bool {
	switch t.Kind {
	case KindS8, KindS16, KindS32, KindS64, KindU8, KindU16, KindU32, KindU64:
		return true
	}
	return false
}

// FunctionSignature is the typed shape of an exported or imported function:
// named, typed arguments and at most one output (multi-return is unused).
type FunctionSignature struct {
	Name      string
	Arguments []NamedType
	Outputs   []IType
}

// NamedType pairs a field or argument name with its IType.
type NamedType struct {
	Name string
	Type IType
}

// Output returns the sole output type, or false if the signature produces no
// result.
func (s FunctionSignature) Output() (IType, bool) {
	if len(s.Outputs) == 0 {
		return IType{}, false
	}
	return s.Outputs[0], true
}
