package itypes

// IValue is a tagged variant parallel to IType. Exactly one of the typed
// fields is meaningful, selected by Kind; callers use the accessor methods
// (Signed, Unsigned, Str, Fields, AsI64, ...) rather than touching fields directly so that a future case (e.g. a richer
// Array opcode set per the adapter's open-variant design) doesn't ripple
// through call sites.
type IValue struct {
	kind Kind

	i64 int64  // S8/S16/S32/S64 sign-extended
	u64 uint64 // U8/U16/U32/U64 zero-extended
	f32 float32
	f64 float64
	str string
	buf []byte

	recordID RecordID
	fields   []IValue // Record fields, in declared order

	elems []IValue // Array elements
}

func (v IValue) Kind() Kind { return v.kind }

func S8Value(x int8) IValue   { return IValue{kind: KindS8, i64: int64(x)} }
func S16Value(x int16) IValue { return IValue{kind: KindS16, i64: int64(x)} }
func S32Value(x int32) IValue { return IValue{kind: KindS32, i64: int64(x)} }
func S64Value(x int64) IValue { return IValue{kind: KindS64, i64: x} }

func U8Value(x uint8) IValue   { return IValue{kind: KindU8, u64: uint64(x)} }
func U16Value(x uint16) IValue { return IValue{kind: KindU16, u64: uint64(x)} }
func U32Value(x uint32) IValue { return IValue{kind: KindU32, u64: uint64(x)} }
func U64Value(x uint64) IValue { return IValue{kind: KindU64, u64: x} }

func F32Value(x float32) IValue { return IValue{kind: KindF32, f32: x} }
func F64Value(x float64) IValue { return IValue{kind: KindF64, f64: x} }

func StringValue(s string) IValue    { return IValue{kind: KindString, str: s} }
func ByteArrayValue(b []byte) IValue { return IValue{kind: KindByteArray, buf: b} }

// RecordValue builds a record value; fields must already match the
// registered order for RecordID.
func RecordValue(id RecordID, fields []IValue) IValue {
	return IValue{kind: KindRecord, recordID: id, fields: fields}
}

// ArrayValue builds an array value from already-typed elements.
func ArrayValue(elems []IValue) IValue {
	return IValue{kind: KindArray, elems: elems}
}

// Signed returns the value as a sign-extended int64. Panics if Kind is not
// one of the signed integer kinds; callers must check Kind first (this
// mirrors the adapter's "type mismatch is fatal" contract rather than
// silently coercing).
func (v IValue) Signed() int64 {
	switch v.kind {
	case KindS8, KindS16, KindS32, KindS64:
		return v.i64
	default:
		panic("itypes: Signed called on a " + v.kind.String() + " value")
	}
}

// Unsigned returns the value as a zero-extended uint64.
func (v IValue) Unsigned() uint64 { return v.u64 }

func (v IValue) F32() float32 { return v.f32 }
func (v IValue) F64() float64 { return v.f64 }
func (v IValue) Str() string  { return v.str }
func (v IValue) Bytes() []byte {
	return v.buf
}

func (v IValue) RecordID() RecordID   { return v.recordID }
func (v IValue) Fields() []IValue     { return v.fields }
func (v IValue) Elements() []IValue   { return v.elems }

// AsI64 widens any integer-kind value (signed or unsigned) to the raw i64
// core representation the adapter's CallCore opcode expects on the stack
// before a narrowing/widening conversion opcode runs.
func (v IValue) AsI64() int64 {
	switch v.kind {
	case KindS8, KindS16, KindS32, KindS64:
		return v.i64
	case KindU8, KindU16, KindU32, KindU64:
		return int64(v.u64)
	default:
		return 0
	}
}
