package fce

import (
	"context"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/adapter"
	"github.com/mengsuenyan/fce/internal/hostbridge"
	"github.com/mengsuenyan/fce/itypes"
)

// moduleConfigFor translates a module's parsed ModuleConfig into the
// wazero.ModuleConfig InstantiateModule actually consumes: WASI environment
// variables via WithEnv, and a guest "/" or "." filesystem mapping via
// WithFS/WithWorkDirFS when mc.Wasi.MappedDirs names one. mc.MemPagesCount
// is intentionally not applied here: this wazero version's memory page cap
// is a wazero.RuntimeConfig setting shared by every module on a Runtime, and this
// registry deliberately keeps one Runtime per Registry (not one per module)
// so a host import bound to a sibling module's export can be registered
// into the importing module's own runtime regardless of load order; see
// DESIGN.md for the tradeoff this leaves unresolved. mc.Wasi.PreopenedFiles
// and any MappedDirs entry whose guest path isn't "/" or "." are likewise
// not wired: this wazero version's ModuleConfig only preopens at those two
// paths, with no arbitrary-path preopen API to bind the rest to.
func moduleConfigFor(name string, mc ModuleConfig) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().WithName(name)
	for k, v := range mc.Wasi.Envs {
		cfg = cfg.WithEnv(k, v)
	}
	for guestPath, hostPath := range mc.Wasi.MappedDirs {
		switch guestPath {
		case "/":
			cfg = cfg.WithFS(os.DirFS(hostPath))
		case ".":
			cfg = cfg.WithWorkDirFS(os.DirFS(hostPath))
		}
	}
	return cfg
}

// adapterExecute runs prog against a loaded module's live Wasm state: its
// memory, ABI helpers, record registry and core function table.
func adapterExecute(ctx context.Context, prog adapter.Program, args []itypes.IValue, outputs []itypes.IType, d *moduleDescriptor) ([]itypes.IValue, error) {
	return adapter.Execute(ctx, prog, args, outputs, d.mem, d.abi, d.records, d.core)
}

// moduleDescriptor is everything the registry knows about one loaded
// module. It is built once by Registry.Load and torn down by Unload; no
// field is mutated in place afterwards except broken, so a descriptor
// behaves as a value once fully constructed (per §9's note on eliminating
// partially-initialized state).
type moduleDescriptor struct {
	name string

	mod  api.Module
	abi  *abi.Handles
	mem  api.Memory
	core coreTable

	records *itypes.RecordRegistry
	sigs    map[string]itypes.FunctionSignature
	exports map[string]uint32 // export name -> export function index, in Load order

	imports []hostbridge.Import // resolved imports this module depends on

	broken bool // true once an imported module is unloaded out from under it
}

// coreTable implements adapter.CoreFunctionTable over a single module's ABI
// helpers plus its own exported functions, per §4.2's index space: [0,
// abi.HelperCount) addresses helpers, abi.HelperCount+i addresses the i'th
// export registered at load time.
type coreTable struct {
	h       *abi.Handles
	exports []api.Function
}

func (t coreTable) Lookup(index uint32) (adapter.CoreFunction, bool) {
	if index < uint32(abi.HelperCount) {
		fn := t.h.Func(abi.HelperID(index))
		if fn == nil {
			return adapter.CoreFunction{}, false
		}
		def := fn.Definition()
		return adapter.CoreFunction{Fn: fn, Params: def.ParamTypes(), Results: def.ResultTypes()}, true
	}
	i := index - uint32(abi.HelperCount)
	if int(i) >= len(t.exports) {
		return adapter.CoreFunction{}, false
	}
	fn := t.exports[i]
	def := fn.Definition()
	return adapter.CoreFunction{Fn: fn, Params: def.ParamTypes(), Results: def.ResultTypes()}, true
}
