// Package adaptergen builds adapter.Program values from a function's
// interface-type signature, following §4.5: a fixed prologue per argument
// type, the core call itself, and a fixed epilogue for the return type.
//
// This mirrors generate_instructions_for_input_type / ...output_type in the
// original Fluence Compute Engine's wit-generator crate, translated from a
// one-shot Rust codegen pass into a Go function that builds the same
// instruction sequence at module-load time.
package adaptergen

import (
	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/adapter"
	"github.com/mengsuenyan/fce/itypes"
)

// exportIndex is where module export function indices begin in the
// CallCore index space; [0, abi.HelperCount) addresses the ABI helpers.
const exportIndex = uint32(abi.HelperCount)

// Generate builds the adapter program for calling a module's export
// identified by exportFunctionIndex (an index into the module's own export
// list, added to exportIndex to land in the adapter's global CallCore index
// space), given the export's interface-level signature.
func Generate(sig itypes.FunctionSignature, exportFunctionIndex uint32) adapter.Program {
	var prog adapter.Program

	for i, arg := range sig.Arguments {
		prog = append(prog, inputInstructions(uint32(i), arg.Type)...)
	}

	prog = append(prog, adapter.CallCore(exportIndex+exportFunctionIndex))

	if out, ok := sig.Output(); ok {
		prog = append(prog, outputInstructions(out)...)
	}

	return prog
}

func inputInstructions(index uint32, t itypes.IType) adapter.Program {
	get := adapter.ArgumentGet(index)
	switch t.Kind {
	case itypes.KindS8:
		return adapter.Program{get, adapter.I32FromS8()}
	case itypes.KindS16:
		return adapter.Program{get, adapter.I32FromS16()}
	case itypes.KindU8:
		return adapter.Program{get, adapter.I32FromU8()}
	case itypes.KindU16:
		return adapter.Program{get, adapter.I32FromU16()}
	case itypes.KindU32:
		return adapter.Program{get, adapter.I32FromU32()}
	case itypes.KindU64:
		return adapter.Program{get, adapter.I64FromU64()}
	case itypes.KindS32, itypes.KindS64, itypes.KindF32, itypes.KindF64:
		return adapter.Program{get}
	case itypes.KindString:
		return adapter.Program{
			get,
			adapter.StringSize(),
			adapter.CallCore(uint32(abi.Allocate)),
			adapter.ArgumentGet(index),
			adapter.StringLowerMemory(),
		}
	case itypes.KindByteArray:
		return adapter.Program{
			get,
			adapter.ByteArraySize(),
			adapter.CallCore(uint32(abi.Allocate)),
			adapter.ArgumentGet(index),
			adapter.ByteArrayLowerMemory(),
		}
	case itypes.KindArray:
		return adapter.Program{
			get,
			adapter.Instruction{Op: adapter.OpArraySize, Elem: *t.Elem},
			adapter.CallCore(uint32(abi.Allocate)),
			adapter.ArgumentGet(index),
			adapter.ArrayLowerMemory(*t.Elem),
		}
	case itypes.KindRecord:
		return adapter.Program{get, adapter.RecordLower(t.RecordID)}
	default:
		return nil
	}
}

func outputInstructions(t itypes.IType) adapter.Program {
	switch t.Kind {
	case itypes.KindS8:
		return adapter.Program{adapter.S8FromI32()}
	case itypes.KindS16:
		return adapter.Program{adapter.S16FromI32()}
	case itypes.KindU8:
		return adapter.Program{adapter.U8FromI32()}
	case itypes.KindU16:
		return adapter.Program{adapter.U16FromI32()}
	case itypes.KindU32:
		return adapter.Program{adapter.U32FromI32()}
	case itypes.KindU64:
		return adapter.Program{adapter.U64FromI64()}
	case itypes.KindS32, itypes.KindS64, itypes.KindF32, itypes.KindF64:
		return nil
	case itypes.KindString:
		return adapter.Program{
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.StringLiftMemory(),
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.CallCore(uint32(abi.Deallocate)),
		}
	case itypes.KindByteArray:
		return adapter.Program{
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.ByteArrayLiftMemory(),
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.CallCore(uint32(abi.Deallocate)),
		}
	case itypes.KindArray:
		return adapter.Program{
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.ArrayLiftMemory(*t.Elem),
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.CallCore(uint32(abi.GetResultSize)),
			adapter.CallCore(uint32(abi.Deallocate)),
		}
	case itypes.KindRecord:
		return adapter.Program{
			adapter.CallCore(uint32(abi.GetResultPtr)),
			adapter.RecordLift(t.RecordID),
		}
	default:
		return nil
	}
}
