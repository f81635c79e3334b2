// Package abi implements the fixed module ABI (§4.2): the six helper
// functions every guest module must export so the engine can allocate,
// release, and exchange result metadata in the module's linear memory.
package abi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/fceerr"
)

// HelperID is a stable descriptor id (0..5) identifying one of the six ABI
// helpers. Adapter CallCore opcodes whose function_index falls in this
// range target an ABI helper rather than a module export; indices for
// exports start immediately after HelperCount. This table is process-wide
// immutable after first construction (§9 "Global state").
type HelperID int

const (
	Allocate HelperID = iota
	Deallocate
	GetResultPtr
	GetResultSize
	SetResultPtr
	SetResultSize
	HelperCount
)

// helperSpec describes one ABI function's fixed name and core signature.
type helperSpec struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// helperTable is the process-wide immutable table of ABI helper
// descriptors, indexed by HelperID.
var helperTable = [HelperCount]helperSpec{
	Allocate:      {"allocate", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
	Deallocate:    {"deallocate", []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil},
	GetResultPtr:  {"get_result_ptr", nil, []api.ValueType{api.ValueTypeI32}},
	GetResultSize: {"get_result_size", nil, []api.ValueType{api.ValueTypeI32}},
	SetResultPtr:  {"set_result_ptr", []api.ValueType{api.ValueTypeI32}, nil},
	SetResultSize: {"set_result_size", []api.ValueType{api.ValueTypeI32}, nil},
}

// Handles are the six ABI functions captured once at load time (§3
// Invariants: "The module ABI handles are captured once at load time and
// remain valid until the module is unloaded").
type Handles struct {
	fns [HelperCount]api.Function
}

// Load resolves and validates all six ABI exports against mod. It fails
// with fceerr.MissingAbiExport if any is absent, or
// fceerr.AbiSignatureMismatch if the signature does not match §4.2's table.
func Load(mod api.Module) (*Handles, error) {
	var h Handles
	for id := HelperID(0); id < HelperCount; id++ {
		spec := helperTable[id]
		fn := mod.ExportedFunction(spec.name)
		if fn == nil {
			return nil, fceerr.MissingAbiExport(spec.name)
		}
		def := fn.Definition()
		if !sameTypes(def.ParamTypes(), spec.params) || !sameTypes(def.ResultTypes(), spec.results) {
			return nil, fceerr.AbiSignatureMismatch(spec.name, signatureString(spec.params, spec.results),
				signatureString(def.ParamTypes(), def.ResultTypes()))
		}
		h.fns[id] = fn
	}
	return &h, nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func signatureString(params, results []api.ValueType) string {
	return fmt.Sprintf("(%v) -> %v", params, results)
}

// Func returns the underlying api.Function for a helper id, for use by the
// adapter interpreter's CallCore opcode when addressing the ABI index
// space.
func (h *Handles) Func(id HelperID) api.Function { return h.fns[id] }

// Allocate invokes the guest's allocate(size) -> ptr.
func (h *Handles) Allocate(ctx context.Context, size uint32) (uint32, error) {
	res, err := h.fns[Allocate].Call(ctx, uint64(size))
	if err != nil {
		return 0, fceerr.WasmTrap(err)
	}
	return uint32(res[0]), nil
}

// Deallocate invokes the guest's deallocate(ptr, size).
func (h *Handles) Deallocate(ctx context.Context, ptr, size uint32) error {
	if _, err := h.fns[Deallocate].Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return fceerr.WasmTrap(err)
	}
	return nil
}

// GetResultPtr invokes the guest's get_result_ptr() -> ptr.
func (h *Handles) GetResultPtr(ctx context.Context) (uint32, error) {
	res, err := h.fns[GetResultPtr].Call(ctx)
	if err != nil {
		return 0, fceerr.WasmTrap(err)
	}
	return uint32(res[0]), nil
}

// GetResultSize invokes the guest's get_result_size() -> size.
func (h *Handles) GetResultSize(ctx context.Context) (uint32, error) {
	res, err := h.fns[GetResultSize].Call(ctx)
	if err != nil {
		return 0, fceerr.WasmTrap(err)
	}
	return uint32(res[0]), nil
}

// SetResultPtr invokes the guest's set_result_ptr(ptr).
func (h *Handles) SetResultPtr(ctx context.Context, ptr uint32) error {
	if _, err := h.fns[SetResultPtr].Call(ctx, uint64(ptr)); err != nil {
		return fceerr.WasmTrap(err)
	}
	return nil
}

// SetResultSize invokes the guest's set_result_size(size).
func (h *Handles) SetResultSize(ctx context.Context, size uint32) error {
	if _, err := h.fns[SetResultSize].Call(ctx, uint64(size)); err != nil {
		return fceerr.WasmTrap(err)
	}
	return nil
}
