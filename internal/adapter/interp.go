// Package adapter implements §4.4: the stack machine that executes adapter
// programs, marshalling interface values across a core Wasm call.
package adapter

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/memory"
	"github.com/mengsuenyan/fce/itypes"
)

// CoreFunction is a callable addressed by a CallCore instruction, with the
// core-level signature needed to know how many values to pop/push.
type CoreFunction struct {
	Fn      api.Function
	Params  []api.ValueType
	Results []api.ValueType
}

// CoreFunctionTable resolves a CallCore function_index to a callable. The
// ABI helpers (package abi) occupy indices [0, abi.HelperCount); module
// exports occupy indices starting at abi.HelperCount, per §4.2.
type CoreFunctionTable interface {
	Lookup(index uint32) (CoreFunction, bool)
}

// Execute runs prog against args, producing exactly len(outputs) interface
// values. mem/abiH/reg/core give the interpreter access to the module's
// linear memory, ABI handles, record registry and callable functions.
func Execute(
	ctx context.Context,
	prog Program,
	args []itypes.IValue,
	outputs []itypes.IType,
	mem api.Memory,
	abiH *abi.Handles,
	reg *itypes.RecordRegistry,
	core CoreFunctionTable,
) ([]itypes.IValue, error) {
	st := &stack{}

	for _, ins := range prog {
		if err := step(ctx, ins, st, args, mem, abiH, reg, core); err != nil {
			return nil, err
		}
	}

	if st.len() != len(outputs) {
		return nil, fceerr.AdapterResidualStack(len(outputs), st.len())
	}

	results := make([]itypes.IValue, len(outputs))
	for i := len(outputs) - 1; i >= 0; i-- {
		s, _ := st.pop()
		v, err := slotToIValue(s, outputs[i])
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

func step(
	ctx context.Context,
	ins Instruction,
	st *stack,
	args []itypes.IValue,
	mem api.Memory,
	abiH *abi.Handles,
	reg *itypes.RecordRegistry,
	core CoreFunctionTable,
) error {
	switch ins.Op {
	case OpArgumentGet:
		if int(ins.Index) >= len(args) {
			return fceerr.AdapterTypeMismatch("ArgumentGet", "valid argument index", ins.Index)
		}
		st.push(ivSlot(args[ins.Index]))
		return nil

	case OpI32FromS8:
		return widen(st, itypes.KindS8, "I32FromS8")
	case OpI32FromS16:
		return widen(st, itypes.KindS16, "I32FromS16")
	case OpI32FromU8:
		return widen(st, itypes.KindU8, "I32FromU8")
	case OpI32FromU16:
		return widen(st, itypes.KindU16, "I32FromU16")
	case OpI32FromU32:
		return widen(st, itypes.KindU32, "I32FromU32")
	case OpI64FromU64:
		return widen(st, itypes.KindU64, "I64FromU64")

	case OpS8FromI32:
		return narrowSigned(st, -128, 127, func(x int64) itypes.IValue { return itypes.S8Value(int8(x)) }, "s8", "S8FromI32")
	case OpS16FromI32:
		return narrowSigned(st, -32768, 32767, func(x int64) itypes.IValue { return itypes.S16Value(int16(x)) }, "s16", "S16FromI32")
	case OpU8FromI32:
		return narrowUnsigned(st, 0xFF, func(x uint64) itypes.IValue { return itypes.U8Value(uint8(x)) }, "u8", "U8FromI32")
	case OpU16FromI32:
		return narrowUnsigned(st, 0xFFFF, func(x uint64) itypes.IValue { return itypes.U16Value(uint16(x)) }, "u16", "U16FromI32")
	case OpU32FromI32:
		return narrowUnsigned(st, 0xFFFFFFFF, func(x uint64) itypes.IValue { return itypes.U32Value(uint32(x)) }, "u32", "U32FromI32")
	case OpU64FromI64:
		s, ok := st.pop()
		if !ok {
			return fceerr.AdapterStackUnderflow("U64FromI64")
		}
		st.push(ivSlot(itypes.U64Value(uint64(coreBits(s)))))
		return nil

	case OpStringSize:
		v, ok := st.pop()
		if !ok {
			return fceerr.AdapterStackUnderflow("StringSize")
		}
		if v.kind != kindInterface || v.iv.Kind() != itypes.KindString {
			return fceerr.AdapterTypeMismatch("StringSize", itypes.KindString, v)
		}
		st.push(coreSlot(uint64(len(v.iv.Str()))))
		return nil

	case OpByteArraySize:
		v, ok := st.pop()
		if !ok || v.kind != kindInterface || v.iv.Kind() != itypes.KindByteArray {
			return fceerr.AdapterTypeMismatch("ByteArraySize", itypes.KindByteArray, v)
		}
		st.push(coreSlot(uint64(len(v.iv.Bytes()))))
		return nil

	case OpStringLowerMemory:
		value, ptrS, err := pop2(st, "StringLowerMemory")
		if err != nil {
			return err
		}
		if value.kind != kindInterface || value.iv.Kind() != itypes.KindString {
			return fceerr.AdapterTypeMismatch("StringLowerMemory", itypes.KindString, value)
		}
		ptr := uint32(ptrS.core)
		b := []byte(value.iv.Str())
		if !mem.Write(ctx, ptr, b) {
			return fceerr.MemoryAccessOutOfBounds(ptr, uint32(len(b)), mem.Size(ctx))
		}
		st.push(coreSlot(uint64(ptr)))
		st.push(coreSlot(uint64(len(b))))
		return nil

	case OpByteArrayLowerMemory:
		value, ptrS, err := pop2(st, "ByteArrayLowerMemory")
		if err != nil {
			return err
		}
		if value.kind != kindInterface || value.iv.Kind() != itypes.KindByteArray {
			return fceerr.AdapterTypeMismatch("ByteArrayLowerMemory", itypes.KindByteArray, value)
		}
		ptr := uint32(ptrS.core)
		b := value.iv.Bytes()
		if !mem.Write(ctx, ptr, b) {
			return fceerr.MemoryAccessOutOfBounds(ptr, uint32(len(b)), mem.Size(ctx))
		}
		st.push(coreSlot(uint64(ptr)))
		st.push(coreSlot(uint64(len(b))))
		return nil

	case OpStringLiftMemory:
		sizeS, ptrS, err := pop2(st, "StringLiftMemory")
		if err != nil {
			return err
		}
		v, lerr := memory.LiftString(ctx, mem, uint32(ptrS.core), uint32(sizeS.core))
		if lerr != nil {
			return lerr
		}
		st.push(ivSlot(v))
		return nil

	case OpByteArrayLiftMemory:
		sizeS, ptrS, err := pop2(st, "ByteArrayLiftMemory")
		if err != nil {
			return err
		}
		v, lerr := memory.LiftByteArray(ctx, mem, uint32(ptrS.core), uint32(sizeS.core))
		if lerr != nil {
			return lerr
		}
		st.push(ivSlot(v))
		return nil

	case OpArraySize:
		v, ok := st.pop()
		if !ok || v.kind != kindInterface || v.iv.Kind() != itypes.KindArray {
			return fceerr.AdapterTypeMismatch("ArraySize", itypes.KindArray, v)
		}
		// Mirrors StringSize: the value is consumed here and re-fetched by a
		// second ArgumentGet before ArrayLowerMemory runs, the same prologue
		// shape generator uses for strings and byte arrays.
		stride, err := memory.ElementStride(reg, ins.Elem)
		if err != nil {
			return err
		}
		st.push(coreSlot(uint64(stride) * uint64(len(v.iv.Elements()))))
		return nil

	case OpArrayLowerMemory:
		value, ptrS, err := pop2(st, "ArrayLowerMemory")
		if err != nil {
			return err
		}
		if value.kind != kindInterface || value.iv.Kind() != itypes.KindArray {
			return fceerr.AdapterTypeMismatch("ArrayLowerMemory", itypes.KindArray, value)
		}
		ptr := uint32(ptrS.core)
		total, lerr := memory.WriteArrayAt(ctx, mem, abiH, reg, ptr, ins.Elem, value.iv.Elements())
		if lerr != nil {
			return lerr
		}
		st.push(coreSlot(uint64(ptr)))
		st.push(coreSlot(uint64(total)))
		return nil

	case OpArrayLiftMemory:
		sizeS, ptrS, err := pop2(st, "ArrayLiftMemory")
		if err != nil {
			return err
		}
		v, lerr := memory.LiftArray(ctx, mem, reg, ins.Elem, uint32(ptrS.core), uint32(sizeS.core))
		if lerr != nil {
			return lerr
		}
		st.push(ivSlot(v))
		return nil

	case OpRecordLower:
		v, ok := st.pop()
		if !ok || v.kind != kindInterface || v.iv.Kind() != itypes.KindRecord {
			return fceerr.AdapterTypeMismatch("RecordLower", itypes.KindRecord, v)
		}
		ptr, lerr := memory.LowerRecord(ctx, mem, abiH, reg, ins.RecordID, v.iv)
		if lerr != nil {
			return lerr
		}
		st.push(coreSlot(uint64(ptr)))
		return nil

	case OpRecordLift:
		ptrS, ok := st.pop()
		if !ok {
			return fceerr.AdapterStackUnderflow("RecordLift")
		}
		v, lerr := memory.LiftRecord(ctx, mem, reg, ins.RecordID, uint32(ptrS.core))
		if lerr != nil {
			return lerr
		}
		st.push(ivSlot(v))
		return nil

	case OpCallCore:
		return callCore(ctx, ins.Index, st, core)

	default:
		return fceerr.AdapterTypeMismatch("step", "known opcode", ins.Op)
	}
}

// pop2 pops the top two slots, returning (top, second): top is the
// last-pushed value, second is the one pushed before it.
func pop2(st *stack, op string) (top, second slot, err error) {
	top, ok := st.pop()
	if !ok {
		return slot{}, slot{}, fceerr.AdapterStackUnderflow(op)
	}
	second, ok = st.pop()
	if !ok {
		return slot{}, slot{}, fceerr.AdapterStackUnderflow(op)
	}
	return top, second, nil
}

func coreBits(s slot) uint64 {
	if s.kind == kindCore {
		return s.core
	}
	return s.iv.AsI64()
}

// widen pops an interface value expected to have kind `want`, and pushes its
// core-space representation unchanged (widening never fails).
func widen(st *stack, want itypes.Kind, op string) error {
	v, ok := st.pop()
	if !ok || v.kind != kindInterface || v.iv.Kind() != want {
		return fceerr.AdapterTypeMismatch(op, want, v)
	}
	if want == itypes.KindU64 {
		st.push(coreSlot(v.iv.Unsigned()))
	} else {
		st.push(coreSlot(uint64(uint32(v.iv.AsI64()))))
	}
	return nil
}

func narrowSigned(st *stack, lo, hi int64, build func(int64) itypes.IValue, toName, op string) error {
	s, ok := st.pop()
	if !ok {
		return fceerr.AdapterStackUnderflow(op)
	}
	raw := int64(int32(coreBits(s)))
	if raw < lo || raw > hi {
		return fceerr.NumericRangeExceeded("i32", toName, raw)
	}
	st.push(ivSlot(build(raw)))
	return nil
}

func narrowUnsigned(st *stack, max uint64, build func(uint64) itypes.IValue, toName, op string) error {
	s, ok := st.pop()
	if !ok {
		return fceerr.AdapterStackUnderflow(op)
	}
	raw := uint64(uint32(coreBits(s)))
	if raw > max {
		return fceerr.NumericRangeExceeded("i32", toName, int64(raw))
	}
	st.push(ivSlot(build(raw)))
	return nil
}

func callCore(ctx context.Context, index uint32, st *stack, core CoreFunctionTable) error {
	target, ok := core.Lookup(index)
	if !ok {
		return fceerr.AdapterTypeMismatch("CallCore", "known function index", index)
	}
	n := len(target.Params)
	params := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		s, ok := st.pop()
		if !ok {
			return fceerr.AdapterStackUnderflow("CallCore")
		}
		params[i] = slotToCoreBits(s, target.Params[i])
	}
	results, err := target.Fn.Call(ctx, params...)
	if err != nil {
		return fceerr.WasmTrap(err)
	}
	for _, r := range results {
		st.push(coreSlot(r))
	}
	return nil
}

func slotToCoreBits(s slot, vt api.ValueType) uint64 {
	if s.kind == kindCore {
		return s.core
	}
	switch vt {
	case api.ValueTypeI32:
		return uint64(uint32(s.iv.AsI64()))
	case api.ValueTypeI64:
		return uint64(s.iv.AsI64())
	case api.ValueTypeF32:
		return uint64(math.Float32bits(s.iv.F32()))
	case api.ValueTypeF64:
		return math.Float64bits(s.iv.F64())
	default:
		return uint64(s.iv.AsI64())
	}
}

// slotToIValue reconciles a final stack slot against its expected output
// IType. A kindCore slot happens when the output type maps 1:1 onto a core
// Wasm type (S32/S64/F32/F64) and no epilogue conversion instruction was
// needed; a kindInterface slot is the result of a lift or narrowing opcode.
func slotToIValue(s slot, t itypes.IType) (itypes.IValue, error) {
	if s.kind == kindInterface {
		if s.iv.Kind() != t.Kind {
			return itypes.IValue{}, fceerr.AdapterTypeMismatch("output", t.Kind, s.iv.Kind())
		}
		return s.iv, nil
	}
	switch t.Kind {
	case itypes.KindS32:
		return itypes.S32Value(int32(s.core)), nil
	case itypes.KindU32:
		return itypes.U32Value(uint32(s.core)), nil
	case itypes.KindS64:
		return itypes.S64Value(int64(s.core)), nil
	case itypes.KindU64:
		return itypes.U64Value(s.core), nil
	case itypes.KindF32:
		return itypes.F32Value(math.Float32frombits(uint32(s.core))), nil
	case itypes.KindF64:
		return itypes.F64Value(math.Float64frombits(s.core)), nil
	default:
		return itypes.IValue{}, fceerr.AdapterTypeMismatch("output", t.Kind, "core value")
	}
}
