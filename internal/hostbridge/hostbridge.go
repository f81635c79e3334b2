// Package hostbridge implements §4.6: exposing host Go functions (and
// inter-module calls) to guest Wasm code as imports, using the same
// lift/lower machinery the adapter interpreter uses for exports, run in the
// opposite direction — a guest calls in with raw core values, the bridge
// lifts them to interface values, invokes the Go handler, and lowers the
// result back into the guest's own linear memory.
package hostbridge

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/memory"
	"github.com/mengsuenyan/fce/itypes"
)

// Handler is a host-side implementation of an imported function, working at
// the interface-value level so the same business logic applies regardless
// of how its arguments happen to be packed in the guest's linear memory.
type Handler func(ctx context.Context, args []itypes.IValue) ([]itypes.IValue, error)

// Import is one function a module imports from another module or the host.
type Import struct {
	Module    string
	Name      string
	Signature itypes.FunctionSignature
	Handler   Handler
}

// Register adds each Import to b as a raw-stack Go host function, lifting
// and lowering against reg for any Record/Array arguments. The guest module
// importing these functions is expected to call them using the ordinary
// core Wasm calling convention computed by CoreSignature.
func Register(b wazero.HostModuleBuilder, reg *itypes.RecordRegistry, imports []Import) wazero.HostModuleBuilder {
	for _, imp := range imports {
		params, results := CoreSignature(imp.Signature)
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(trampoline(imp, reg), params, results).
			Export(imp.Name)
	}
	return b
}

// CoreSignature computes the core Wasm value types a guest must push to
// call sig across the module boundary: one word per primitive argument,
// (ptr, len) word pairs for string/byte array/array arguments, and a single
// ptr word for record arguments; output follows the same shape.
func CoreSignature(sig itypes.FunctionSignature) (params, results []api.ValueType) {
	for _, a := range sig.Arguments {
		params = append(params, coreWords(a.Type)...)
	}
	if out, ok := sig.Output(); ok {
		results = coreWords(out)
	}
	return params, results
}

func coreWords(t itypes.IType) []api.ValueType {
	switch t.Kind {
	case itypes.KindS64, itypes.KindU64:
		return []api.ValueType{api.ValueTypeI64}
	case itypes.KindF32:
		return []api.ValueType{api.ValueTypeF32}
	case itypes.KindF64:
		return []api.ValueType{api.ValueTypeF64}
	case itypes.KindString, itypes.KindByteArray, itypes.KindArray:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case itypes.KindRecord:
		return []api.ValueType{api.ValueTypeI32}
	default:
		return []api.ValueType{api.ValueTypeI32}
	}
}

// trampoline builds the api.GoModuleFunction that lifts the caller's raw
// core stack into interface values, invokes imp.Handler, and lowers the
// single result (if any) back in place on the same stack.
func trampoline(imp Import, reg *itypes.RecordRegistry) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		mem := mod.Memory()
		h, err := abi.Load(mod)
		if err != nil {
			panic(fceerr.HostImportFailed(imp.Name, err))
		}

		args := make([]itypes.IValue, len(imp.Signature.Arguments))
		pos := 0
		for i, a := range imp.Signature.Arguments {
			v, n, lerr := liftArg(ctx, mem, reg, a.Type, stack[pos:])
			if lerr != nil {
				panic(fceerr.HostImportFailed(imp.Name, lerr))
			}
			args[i] = v
			pos += n
		}

		results, herr := imp.Handler(ctx, args)
		if herr != nil {
			panic(fceerr.HostImportFailed(imp.Name, herr))
		}

		out, ok := imp.Signature.Output()
		if !ok {
			return
		}
		words, lerr := lowerResult(ctx, mem, h, reg, out, results[0])
		if lerr != nil {
			panic(fceerr.HostImportFailed(imp.Name, lerr))
		}
		copy(stack, words)
	}
}

func liftArg(ctx context.Context, mem api.Memory, reg *itypes.RecordRegistry, t itypes.IType, words []uint64) (itypes.IValue, int, error) {
	switch t.Kind {
	case itypes.KindS8:
		return itypes.S8Value(int8(int32(words[0]))), 1, nil
	case itypes.KindS16:
		return itypes.S16Value(int16(int32(words[0]))), 1, nil
	case itypes.KindS32:
		return itypes.S32Value(int32(words[0])), 1, nil
	case itypes.KindS64:
		return itypes.S64Value(int64(words[0])), 1, nil
	case itypes.KindU8:
		return itypes.U8Value(uint8(words[0])), 1, nil
	case itypes.KindU16:
		return itypes.U16Value(uint16(words[0])), 1, nil
	case itypes.KindU32:
		return itypes.U32Value(uint32(words[0])), 1, nil
	case itypes.KindU64:
		return itypes.U64Value(words[0]), 1, nil
	case itypes.KindF32:
		return itypes.F32Value(api.DecodeF32(words[0])), 1, nil
	case itypes.KindF64:
		return itypes.F64Value(api.DecodeF64(words[0])), 1, nil
	case itypes.KindString:
		v, err := memory.LiftString(ctx, mem, uint32(words[0]), uint32(words[1]))
		return v, 2, err
	case itypes.KindByteArray:
		v, err := memory.LiftByteArray(ctx, mem, uint32(words[0]), uint32(words[1]))
		return v, 2, err
	case itypes.KindArray:
		v, err := memory.LiftArray(ctx, mem, reg, *t.Elem, uint32(words[0]), uint32(words[1]))
		return v, 2, err
	case itypes.KindRecord:
		v, err := memory.LiftRecord(ctx, mem, reg, t.RecordID, uint32(words[0]))
		return v, 1, err
	default:
		return itypes.IValue{}, 0, fceerr.AdapterTypeMismatch("hostbridge.liftArg", "known IType", t)
	}
}

func lowerResult(ctx context.Context, mem api.Memory, h *abi.Handles, reg *itypes.RecordRegistry, t itypes.IType, v itypes.IValue) ([]uint64, error) {
	switch t.Kind {
	case itypes.KindS8, itypes.KindS16, itypes.KindS32, itypes.KindU8, itypes.KindU16, itypes.KindU32:
		return []uint64{uint64(uint32(v.AsI64()))}, nil
	case itypes.KindS64, itypes.KindU64:
		return []uint64{uint64(v.AsI64())}, nil
	case itypes.KindF32:
		return []uint64{uint64(api.EncodeF32(v.F32()))}, nil
	case itypes.KindF64:
		return []uint64{api.EncodeF64(v.F64())}, nil
	case itypes.KindString:
		ptr, size, err := memory.LowerString(ctx, mem, h, v.Str())
		return []uint64{uint64(ptr), uint64(size)}, err
	case itypes.KindByteArray:
		ptr, size, err := memory.LowerByteArray(ctx, mem, h, v.Bytes())
		return []uint64{uint64(ptr), uint64(size)}, err
	case itypes.KindArray:
		ptr, size, err := memory.LowerArray(ctx, mem, h, reg, *t.Elem, v.Elements())
		return []uint64{uint64(ptr), uint64(size)}, err
	case itypes.KindRecord:
		ptr, err := memory.LowerRecord(ctx, mem, h, reg, t.RecordID, v)
		return []uint64{uint64(ptr)}, err
	default:
		return nil, fceerr.AdapterTypeMismatch("hostbridge.lowerResult", "known IType", t)
	}
}
