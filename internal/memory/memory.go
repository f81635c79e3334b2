// Package memory implements §4.3: translating interface values to and from
// bytes in a module's linear memory, via the module ABI (package abi) for
// allocation.
package memory

import (
	"context"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/itypes"
)

// LowerString allocates byte_len via the ABI and copies s's UTF-8 bytes into
// linear memory, returning (ptr, byte_len).
func LowerString(ctx context.Context, mem api.Memory, h *abi.Handles, s string) (ptr, size uint32, err error) {
	return lowerBytes(ctx, mem, h, []byte(s))
}

// LowerByteArray allocates byte_len via the ABI and copies b into linear
// memory, returning (ptr, byte_len).
func LowerByteArray(ctx context.Context, mem api.Memory, h *abi.Handles, b []byte) (ptr, size uint32, err error) {
	return lowerBytes(ctx, mem, h, b)
}

func lowerBytes(ctx context.Context, mem api.Memory, h *abi.Handles, b []byte) (ptr, size uint32, err error) {
	size = uint32(len(b))
	if size == 0 {
		return 0, 0, nil
	}
	ptr, err = h.Allocate(ctx, size)
	if err != nil {
		return 0, 0, err
	}
	if !mem.Write(ctx, ptr, b) {
		return 0, 0, fceerr.MemoryAccessOutOfBounds(ptr, size, mem.Size(ctx))
	}
	return ptr, size, nil
}

// LiftString reads byte_len bytes from ptr, validates UTF-8, and returns a
// String interface value. Fails with fceerr.InvalidUtf8 on malformed bytes.
func LiftString(ctx context.Context, mem api.Memory, ptr, size uint32) (itypes.IValue, error) {
	b, ok := mem.Read(ctx, ptr, size)
	if !ok {
		return itypes.IValue{}, fceerr.MemoryAccessOutOfBounds(ptr, size, mem.Size(ctx))
	}
	if !utf8.Valid(b) {
		return itypes.IValue{}, fceerr.InvalidUtf8(ptr, size)
	}
	// Read returns a write-through view; copy so the value outlives the
	// guest freeing or overwriting this region.
	cp := make([]byte, len(b))
	copy(cp, b)
	return itypes.StringValue(string(cp)), nil
}

// LiftByteArray copies size bytes from ptr into an owned buffer.
func LiftByteArray(ctx context.Context, mem api.Memory, ptr, size uint32) (itypes.IValue, error) {
	b, ok := mem.Read(ctx, ptr, size)
	if !ok {
		return itypes.IValue{}, fceerr.MemoryAccessOutOfBounds(ptr, size, mem.Size(ctx))
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return itypes.ByteArrayValue(cp), nil
}

// fieldLayout describes one field's offset and size within a record's
// packed representation.
type fieldLayout struct {
	offset uint32
	size   uint32
	align  uint32
	typ    itypes.IType
	name   string
}

// layout computes per-field offsets and the record's total size/alignment,
// following natural alignment: a field is placed at the next offset that is
// a multiple of its own alignment, and the record's size is padded to the
// alignment of its widest field.
func layout(fields []itypes.NamedType, reg *itypes.RecordRegistry) (fls []fieldLayout, total, align uint32, err error) {
	var offset uint32
	for _, f := range fields {
		sz, al, ferr := typeSizeAlign(f.Type, reg)
		if ferr != nil {
			return nil, 0, 0, ferr
		}
		offset = alignUp(offset, al)
		fls = append(fls, fieldLayout{offset: offset, size: sz, align: al, typ: f.Type, name: f.Name})
		offset += sz
		if al > align {
			align = al
		}
	}
	if align == 0 {
		align = 1
	}
	total = alignUp(offset, align)
	return fls, total, align, nil
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// typeSizeAlign returns the packed size and natural alignment of an IType.
// Strings, byte arrays and arrays are represented inline as a (ptr, len)
// i32 pair pointing at a separately lowered buffer; records are inlined
// recursively.
func typeSizeAlign(t itypes.IType, reg *itypes.RecordRegistry) (size, align uint32, err error) {
	switch t.Kind {
	case itypes.KindS8, itypes.KindU8:
		return 1, 1, nil
	case itypes.KindS16, itypes.KindU16:
		return 2, 2, nil
	case itypes.KindS32, itypes.KindU32, itypes.KindF32:
		return 4, 4, nil
	case itypes.KindS64, itypes.KindU64, itypes.KindF64:
		return 8, 8, nil
	case itypes.KindString, itypes.KindByteArray, itypes.KindArray:
		return 8, 4, nil // (ptr i32, len i32)
	case itypes.KindRecord:
		rt, ok := reg.Resolve(t.RecordID)
		if !ok {
			return 0, 0, fceerr.UnknownRecord(uint32(t.RecordID))
		}
		_, total, al, lerr := layout(rt.Fields, reg)
		if lerr != nil {
			return 0, 0, lerr
		}
		return total, al, nil
	default:
		return 0, 0, fceerr.AdapterTypeMismatch("typeSizeAlign", "known IType", t)
	}
}

// LowerRecord allocates a packed buffer for the record type id and writes
// v's fields into it, recursively lowering nested strings/byte
// arrays/arrays/records. Returns the buffer's pointer.
func LowerRecord(ctx context.Context, mem api.Memory, h *abi.Handles, reg *itypes.RecordRegistry, id itypes.RecordID, v itypes.IValue) (uint32, error) {
	rt, ok := reg.Resolve(id)
	if !ok {
		return 0, fceerr.UnknownRecord(uint32(id))
	}
	fls, total, _, err := layout(rt.Fields, reg)
	if err != nil {
		return 0, err
	}
	ptr, err := h.Allocate(ctx, total)
	if err != nil {
		return 0, err
	}
	fields := v.Fields()
	for i, fl := range fls {
		if err := writeField(ctx, mem, h, reg, ptr+fl.offset, fl.typ, fields[i]); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

func writeField(ctx context.Context, mem api.Memory, h *abi.Handles, reg *itypes.RecordRegistry, addr uint32, t itypes.IType, v itypes.IValue) error {
	switch t.Kind {
	case itypes.KindS8, itypes.KindU8:
		if !mem.WriteByte(ctx, addr, byte(v.AsI64())) {
			return oob(mem, ctx, addr, 1)
		}
	case itypes.KindS16, itypes.KindU16:
		if !mem.WriteUint16Le(ctx, addr, uint16(v.AsI64())) {
			return oob(mem, ctx, addr, 2)
		}
	case itypes.KindS32, itypes.KindU32:
		if !mem.WriteUint32Le(ctx, addr, uint32(v.AsI64())) {
			return oob(mem, ctx, addr, 4)
		}
	case itypes.KindF32:
		if !mem.WriteFloat32Le(ctx, addr, v.F32()) {
			return oob(mem, ctx, addr, 4)
		}
	case itypes.KindS64, itypes.KindU64:
		if !mem.WriteUint64Le(ctx, addr, uint64(v.AsI64())) {
			return oob(mem, ctx, addr, 8)
		}
	case itypes.KindF64:
		if !mem.WriteFloat64Le(ctx, addr, v.F64()) {
			return oob(mem, ctx, addr, 8)
		}
	case itypes.KindString:
		ptr, size, err := LowerString(ctx, mem, h, v.Str())
		if err != nil {
			return err
		}
		return writePtrLen(ctx, mem, addr, ptr, size)
	case itypes.KindByteArray:
		ptr, size, err := LowerByteArray(ctx, mem, h, v.Bytes())
		if err != nil {
			return err
		}
		return writePtrLen(ctx, mem, addr, ptr, size)
	case itypes.KindArray:
		ptr, size, err := LowerArray(ctx, mem, h, reg, *t.Elem, v.Elements())
		if err != nil {
			return err
		}
		return writePtrLen(ctx, mem, addr, ptr, size)
	case itypes.KindRecord:
		fls, _, _, err := layout(mustResolve(reg, t.RecordID).Fields, reg)
		if err != nil {
			return err
		}
		fields := v.Fields()
		for i, fl := range fls {
			if err := writeField(ctx, mem, h, reg, addr+fl.offset, fl.typ, fields[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func mustResolve(reg *itypes.RecordRegistry, id itypes.RecordID) itypes.RecordType {
	rt, _ := reg.Resolve(id)
	return rt
}

func writePtrLen(ctx context.Context, mem api.Memory, addr, ptr, size uint32) error {
	if !mem.WriteUint32Le(ctx, addr, ptr) {
		return oob(mem, ctx, addr, 4)
	}
	if !mem.WriteUint32Le(ctx, addr+4, size) {
		return oob(mem, ctx, addr+4, 4)
	}
	return nil
}

func oob(mem api.Memory, ctx context.Context, addr, n uint32) error {
	return fceerr.MemoryAccessOutOfBounds(addr, n, mem.Size(ctx))
}

// LowerArray lowers each element of elems (all of type elem) into a
// contiguous buffer and returns (ptr, byte_len of the buffer).
func LowerArray(ctx context.Context, mem api.Memory, h *abi.Handles, reg *itypes.RecordRegistry, elem itypes.IType, elems []itypes.IValue) (uint32, uint32, error) {
	sz, al, err := typeSizeAlign(elem, reg)
	if err != nil {
		return 0, 0, err
	}
	stride := alignUp(sz, al)
	total := stride * uint32(len(elems))
	if total == 0 {
		return 0, 0, nil
	}
	ptr, err := h.Allocate(ctx, total)
	if err != nil {
		return 0, 0, err
	}
	for i, ev := range elems {
		if err := writeField(ctx, mem, h, reg, ptr+uint32(i)*stride, elem, ev); err != nil {
			return 0, 0, err
		}
	}
	return ptr, total, nil
}

// ElementStride returns the packed, aligned byte size of one array element
// of type elem, i.e. the spacing between consecutive elements in a buffer
// produced by WriteArrayAt/LowerArray.
func ElementStride(reg *itypes.RecordRegistry, elem itypes.IType) (uint32, error) {
	sz, al, err := typeSizeAlign(elem, reg)
	if err != nil {
		return 0, err
	}
	return alignUp(sz, al), nil
}

// WriteArrayAt writes each of elems (all of type elem) into an
// already-allocated buffer at ptr, returning the buffer's total byte length.
// Used by the adapter's ArrayLowerMemory opcode, where the buffer pointer
// comes from a preceding CallCore(allocate) rather than from this call.
func WriteArrayAt(ctx context.Context, mem api.Memory, h *abi.Handles, reg *itypes.RecordRegistry, ptr uint32, elem itypes.IType, elems []itypes.IValue) (uint32, error) {
	sz, al, err := typeSizeAlign(elem, reg)
	if err != nil {
		return 0, err
	}
	stride := alignUp(sz, al)
	for i, ev := range elems {
		if err := writeField(ctx, mem, h, reg, ptr+uint32(i)*stride, elem, ev); err != nil {
			return 0, err
		}
	}
	return stride * uint32(len(elems)), nil
}

// LiftRecord reads a packed record of type id from ptr, recursively lifting
// nested strings/byte arrays/arrays/records.
func LiftRecord(ctx context.Context, mem api.Memory, reg *itypes.RecordRegistry, id itypes.RecordID, ptr uint32) (itypes.IValue, error) {
	rt, ok := reg.Resolve(id)
	if !ok {
		return itypes.IValue{}, fceerr.UnknownRecord(uint32(id))
	}
	fls, _, _, err := layout(rt.Fields, reg)
	if err != nil {
		return itypes.IValue{}, err
	}
	fields := make([]itypes.IValue, len(fls))
	for i, fl := range fls {
		v, err := readField(ctx, mem, reg, ptr+fl.offset, fl.typ)
		if err != nil {
			return itypes.IValue{}, err
		}
		fields[i] = v
	}
	return itypes.RecordValue(id, fields), nil
}

func readField(ctx context.Context, mem api.Memory, reg *itypes.RecordRegistry, addr uint32, t itypes.IType) (itypes.IValue, error) {
	switch t.Kind {
	case itypes.KindS8:
		b, ok := mem.ReadByte(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 1)
		}
		return itypes.S8Value(int8(b)), nil
	case itypes.KindU8:
		b, ok := mem.ReadByte(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 1)
		}
		return itypes.U8Value(b), nil
	case itypes.KindS16:
		u, ok := mem.ReadUint16Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 2)
		}
		return itypes.S16Value(int16(u)), nil
	case itypes.KindU16:
		u, ok := mem.ReadUint16Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 2)
		}
		return itypes.U16Value(u), nil
	case itypes.KindS32:
		u, ok := mem.ReadUint32Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 4)
		}
		return itypes.S32Value(int32(u)), nil
	case itypes.KindU32:
		u, ok := mem.ReadUint32Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 4)
		}
		return itypes.U32Value(u), nil
	case itypes.KindF32:
		f, ok := mem.ReadFloat32Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 4)
		}
		return itypes.F32Value(f), nil
	case itypes.KindS64:
		u, ok := mem.ReadUint64Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 8)
		}
		return itypes.S64Value(int64(u)), nil
	case itypes.KindU64:
		u, ok := mem.ReadUint64Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 8)
		}
		return itypes.U64Value(u), nil
	case itypes.KindF64:
		f, ok := mem.ReadFloat64Le(ctx, addr)
		if !ok {
			return itypes.IValue{}, oob(mem, ctx, addr, 8)
		}
		return itypes.F64Value(f), nil
	case itypes.KindString:
		ptr, size, err := readPtrLen(ctx, mem, addr)
		if err != nil {
			return itypes.IValue{}, err
		}
		return LiftString(ctx, mem, ptr, size)
	case itypes.KindByteArray:
		ptr, size, err := readPtrLen(ctx, mem, addr)
		if err != nil {
			return itypes.IValue{}, err
		}
		return LiftByteArray(ctx, mem, ptr, size)
	case itypes.KindArray:
		ptr, size, err := readPtrLen(ctx, mem, addr)
		if err != nil {
			return itypes.IValue{}, err
		}
		return LiftArray(ctx, mem, reg, *t.Elem, ptr, size)
	case itypes.KindRecord:
		return LiftRecord(ctx, mem, reg, t.RecordID, addr)
	default:
		return itypes.IValue{}, fceerr.AdapterTypeMismatch("readField", "known IType", t)
	}
}

func readPtrLen(ctx context.Context, mem api.Memory, addr uint32) (ptr, size uint32, err error) {
	ptr, ok := mem.ReadUint32Le(ctx, addr)
	if !ok {
		return 0, 0, oob(mem, ctx, addr, 4)
	}
	size, ok = mem.ReadUint32Le(ctx, addr+4)
	if !ok {
		return 0, 0, oob(mem, ctx, addr+4, 4)
	}
	return ptr, size, nil
}

// LiftArray reads a length-prefixed-by-caller (byteLen) contiguous buffer of
// elem-typed values starting at ptr.
func LiftArray(ctx context.Context, mem api.Memory, reg *itypes.RecordRegistry, elem itypes.IType, ptr, byteLen uint32) (itypes.IValue, error) {
	sz, al, err := typeSizeAlign(elem, reg)
	if err != nil {
		return itypes.IValue{}, err
	}
	stride := alignUp(sz, al)
	var count uint32
	if stride > 0 {
		count = byteLen / stride
	}
	elems := make([]itypes.IValue, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := readField(ctx, mem, reg, ptr+i*stride, elem)
		if err != nil {
			return itypes.IValue{}, err
		}
		elems = append(elems, v)
	}
	return itypes.ArrayValue(elems), nil
}
