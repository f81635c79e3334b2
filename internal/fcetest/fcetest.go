// Package fcetest provides minimal fakes of wazero's api.Memory/api.Module/
// api.Function for exercising package memory and package adapter without an
// actual compiled Wasm binary: a bump allocator plus a byte buffer is enough
// to drive the same Read/Write/Call surface the adapter and ABI helpers use.
package fcetest

import (
	"context"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
)

// Memory is a fixed-size byte buffer implementing api.Memory.
type Memory struct {
	buf []byte
}

// NewMemory returns a zeroed Memory of the given size.
func NewMemory(size uint32) *Memory { return &Memory{buf: make([]byte, size)} }

func (m *Memory) Size(context.Context) uint32 { return uint32(len(m.buf)) }

func (m *Memory) Grow(ctx context.Context, deltaPages uint32) (uint32, bool) {
	prev := uint32(len(m.buf)) / 65536
	m.buf = append(m.buf, make([]byte, deltaPages*65536)...)
	return prev, true
}

func (m *Memory) inBounds(offset, n uint32) bool {
	return uint64(offset)+uint64(n) <= uint64(len(m.buf))
}

func (m *Memory) ReadByte(_ context.Context, offset uint32) (byte, bool) {
	if !m.inBounds(offset, 1) {
		return 0, false
	}
	return m.buf[offset], true
}

func (m *Memory) ReadUint16Le(_ context.Context, offset uint32) (uint16, bool) {
	if !m.inBounds(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), true
}

func (m *Memory) ReadUint32Le(_ context.Context, offset uint32) (uint32, bool) {
	if !m.inBounds(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), true
}

func (m *Memory) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	u, ok := m.ReadUint32Le(ctx, offset)
	return math.Float32frombits(u), ok
}

func (m *Memory) ReadUint64Le(_ context.Context, offset uint32) (uint64, bool) {
	if !m.inBounds(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), true
}

func (m *Memory) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	u, ok := m.ReadUint64Le(ctx, offset)
	return math.Float64frombits(u), ok
}

func (m *Memory) Read(_ context.Context, offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(offset, byteCount) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount], true
}

func (m *Memory) WriteByte(_ context.Context, offset uint32, v byte) bool {
	if !m.inBounds(offset, 1) {
		return false
	}
	m.buf[offset] = v
	return true
}

func (m *Memory) WriteUint16Le(_ context.Context, offset uint32, v uint16) bool {
	if !m.inBounds(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], v)
	return true
}

func (m *Memory) WriteUint32Le(_ context.Context, offset, v uint32) bool {
	if !m.inBounds(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return true
}

func (m *Memory) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, math.Float32bits(v))
}

func (m *Memory) WriteUint64Le(_ context.Context, offset uint32, v uint64) bool {
	if !m.inBounds(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], v)
	return true
}

func (m *Memory) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, math.Float64bits(v))
}

func (m *Memory) Write(_ context.Context, offset uint32, v []byte) bool {
	if !m.inBounds(offset, uint32(len(v))) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

// def is a minimal api.FunctionDefinition exposing only what package abi and
// package adapter read: ParamTypes/ResultTypes.
type def struct {
	params, results []api.ValueType
}

func (d def) ModuleName() string                         { return "" }
func (d def) Index() uint32                               { return 0 }
func (d def) Name() string                                { return "" }
func (d def) DebugName() string                           { return "" }
func (d def) Import() (string, string, bool)              { return "", "", false }
func (d def) ExportNames() []string                       { return nil }
func (d def) GoFunc() *reflect.Value                      { return nil }
func (d def) ParamTypes() []api.ValueType                 { return d.params }
func (d def) ParamNames() []string                        { return nil }
func (d def) ResultTypes() []api.ValueType                { return d.results }

// fn is an api.Function backed by a plain Go closure over []uint64, standing
// in for both guest exports and the module's own ABI helper exports.
type fn struct {
	d    def
	call func(ctx context.Context, params []uint64) ([]uint64, error)
}

func (f *fn) Definition() api.FunctionDefinition { return f.d }
func (f *fn) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.call(ctx, params)
}

// Module is a fake api.Module whose exported functions and memory are
// supplied directly, for driving abi.Load and the adapter's CoreFunctionTable
// without compiling any Wasm bytes.
type Module struct {
	name    string
	mem     *Memory
	exports map[string]*fn
}

// NewModule returns an empty fake module named name over mem.
func NewModule(name string, mem *Memory) *Module {
	return &Module{name: name, mem: mem, exports: map[string]*fn{}}
}

// Export registers a host-backed function under name with the given core
// signature.
func (m *Module) Export(name string, params, results []api.ValueType, call func(ctx context.Context, params []uint64) ([]uint64, error)) {
	m.exports[name] = &fn{d: def{params: params, results: results}, call: call}
}

func (m *Module) Name() string                 { return m.name }
func (m *Module) String() string               { return "module[" + m.name + "]" }
func (m *Module) Memory() api.Memory           { return m.mem }
func (m *Module) ExportedMemory(string) api.Memory { return m.mem }
func (m *Module) ExportedGlobal(string) api.Global { return nil }
func (m *Module) CloseWithExitCode(context.Context, uint32) error { return nil }
func (m *Module) Close(context.Context) error                     { return nil }

func (m *Module) ExportedFunction(name string) api.Function {
	f, ok := m.exports[name]
	if !ok {
		return nil
	}
	return f
}

// BumpAllocator implements a trivial allocate/deallocate pair over mem:
// allocate never reuses freed space, matching the "leak within a call"
// simplicity a real guest's allocator hides from the engine anyway.
type BumpAllocator struct {
	next uint32
}

// WithABI registers allocate/deallocate/get_result_ptr/get_result_size/
// set_result_ptr/set_result_size on mod, backed by a fresh BumpAllocator and
// a single result-ptr/result-size register pair, then returns the loaded
// abi.Handles.
func WithABI(mod *Module) (*abi.Handles, error) {
	al := &BumpAllocator{next: 8} // leave address 0 meaning "null"
	var resultPtr, resultSize uint32

	mod.Export("allocate", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, params []uint64) ([]uint64, error) {
			size := uint32(params[0])
			ptr := al.next
			al.next += size
			return []uint64{uint64(ptr)}, nil
		})
	mod.Export("deallocate", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil,
		func(_ context.Context, params []uint64) ([]uint64, error) { return nil, nil })
	mod.Export("get_result_ptr", nil, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, params []uint64) ([]uint64, error) { return []uint64{uint64(resultPtr)}, nil })
	mod.Export("get_result_size", nil, []api.ValueType{api.ValueTypeI32},
		func(_ context.Context, params []uint64) ([]uint64, error) { return []uint64{uint64(resultSize)}, nil })
	mod.Export("set_result_ptr", []api.ValueType{api.ValueTypeI32}, nil,
		func(_ context.Context, params []uint64) ([]uint64, error) { resultPtr = uint32(params[0]); return nil, nil })
	mod.Export("set_result_size", []api.ValueType{api.ValueTypeI32}, nil,
		func(_ context.Context, params []uint64) ([]uint64, error) { resultSize = uint32(params[0]); return nil, nil })

	return abi.Load(mod)
}
