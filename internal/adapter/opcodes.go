package adapter

import "github.com/mengsuenyan/fce/itypes"

// OpCode enumerates the adapter instruction families from §4.4. This is
// modeled as an open variant (a tag plus instruction-specific fields) so
// future opcodes (e.g. additional Array instructions) can be added without
// changing the interpreter's public contract, per §9 "Adapter instruction
// set as open variant".
type OpCode int

const (
	// Argument access.
	OpArgumentGet OpCode = iota

	// Numeric conversions: interface value -> core value.
	OpI32FromS8
	OpI32FromS16
	OpI32FromU8
	OpI32FromU16
	OpI32FromU32
	OpI64FromU64

	// Numeric conversions: core value -> interface value.
	OpS8FromI32
	OpS16FromI32
	OpU8FromI32
	OpU16FromI32
	OpU32FromI32
	OpU64FromI64

	// String / byte-array lowering.
	OpStringSize
	OpByteArraySize
	OpStringLowerMemory
	OpByteArrayLowerMemory

	// String / byte-array lifting.
	OpStringLiftMemory
	OpByteArrayLiftMemory

	// Array lowering / lifting. [ADDED per SPEC_FULL §3: Array(IType) was
	// declared in the data model but no opcode referenced it in §4.4.]
	OpArraySize
	OpArrayLowerMemory
	OpArrayLiftMemory

	// Core call.
	OpCallCore

	// Record I/O.
	OpRecordLower
	OpRecordLift
)

// Instruction is one step of an adapter program. Only the fields relevant
// to Op are meaningful; this mirrors the teacher's habit of a single
// richly-tagged type over a Go type-switch on concrete instruction structs,
// which would otherwise require one file per opcode for six families.
type Instruction struct {
	Op       OpCode
	Index    uint32        // ArgumentGet argument index, or CallCore function index
	RecordID itypes.RecordID
	Elem     itypes.IType // element type for Array opcodes
}

// Program is an ordered, non-branching sequence of instructions.
type Program []Instruction

func ArgumentGet(index uint32) Instruction { return Instruction{Op: OpArgumentGet, Index: index} }
func CallCore(index uint32) Instruction    { return Instruction{Op: OpCallCore, Index: index} }
func RecordLower(id itypes.RecordID) Instruction {
	return Instruction{Op: OpRecordLower, RecordID: id}
}
func RecordLift(id itypes.RecordID) Instruction {
	return Instruction{Op: OpRecordLift, RecordID: id}
}
func ArrayLowerMemory(elem itypes.IType) Instruction {
	return Instruction{Op: OpArrayLowerMemory, Elem: elem}
}
func ArrayLiftMemory(elem itypes.IType) Instruction {
	return Instruction{Op: OpArrayLiftMemory, Elem: elem}
}

func simple(op OpCode) Instruction { return Instruction{Op: op} }

func I32FromS8() Instruction          { return simple(OpI32FromS8) }
func I32FromS16() Instruction         { return simple(OpI32FromS16) }
func I32FromU8() Instruction          { return simple(OpI32FromU8) }
func I32FromU16() Instruction         { return simple(OpI32FromU16) }
func I32FromU32() Instruction         { return simple(OpI32FromU32) }
func I64FromU64() Instruction         { return simple(OpI64FromU64) }
func S8FromI32() Instruction          { return simple(OpS8FromI32) }
func S16FromI32() Instruction         { return simple(OpS16FromI32) }
func U8FromI32() Instruction          { return simple(OpU8FromI32) }
func U16FromI32() Instruction         { return simple(OpU16FromI32) }
func U32FromI32() Instruction         { return simple(OpU32FromI32) }
func U64FromI64() Instruction         { return simple(OpU64FromI64) }
func StringSize() Instruction         { return simple(OpStringSize) }
func ByteArraySize() Instruction      { return simple(OpByteArraySize) }
func StringLowerMemory() Instruction  { return simple(OpStringLowerMemory) }
func ByteArrayLowerMemory() Instruction {
	return simple(OpByteArrayLowerMemory)
}
func StringLiftMemory() Instruction    { return simple(OpStringLiftMemory) }
func ByteArrayLiftMemory() Instruction { return simple(OpByteArrayLiftMemory) }
