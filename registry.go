// Package fce is a multi-module WebAssembly compute engine: it loads
// compiled guest modules, bridges their interface-typed exports and
// imports across the core Wasm boundary via package adapter, and exposes
// them to host code and to each other through Registry.
package fce

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/adaptergen"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/hostbridge"
	"github.com/mengsuenyan/fce/itypes"
)

// ModuleSource is everything the registry needs to load one module beyond
// its raw Wasm bytes: the interface-level signatures of its exports and any
// record types those signatures reference. spec.md's data model does not
// define an on-disk encoding for this metadata, so callers (typically
// cmd/fce, reading a sidecar file next to the .wasm) supply it directly.
type ModuleSource struct {
	Name    string
	Wasm    []byte
	Records []itypes.RecordType
	Exports []itypes.FunctionSignature
}

// Registry loads and links modules, dispatches calls into them, and
// answers introspection queries. Its module tables are guarded by a mutex,
// but Call releases that mutex before running the adapter (so calls can
// re-enter the registry) and reads a module's broken flag without it:
// concurrent calls are not serialized against each other or against Unload.
type Registry struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	cfg      *Config
	log      *logrus.Logger
	cache    *interfaceCache
	modules  map[string]*moduleDescriptor
	sigCache map[string]map[string]itypes.FunctionSignature // module -> function -> signature
}

// NewRegistry builds an empty Registry over a fresh wazero runtime,
// registering the engine's own host imports (currently logger).
func NewRegistry(ctx context.Context, cfg *Config, log *logrus.Logger) (*Registry, error) {
	rt := wazero.NewRuntime(ctx)
	r := &Registry{
		runtime: rt,
		cfg:     cfg,
		log:     log,
		cache:    newInterfaceCache(),
		modules:  map[string]*moduleDescriptor{},
		sigCache: map[string]map[string]itypes.FunctionSignature{},
	}

	loggerBuilder := rt.NewHostModuleBuilder("logger")
	loggerBuilder = registerLoggerImport(loggerBuilder, log, r.loggingEnabledFor)
	if _, err := loggerBuilder.Instantiate(ctx); err != nil {
		return nil, fceerr.HostImportFailed("logger", err)
	}
	return r, nil
}

func (r *Registry) loggingEnabledFor(moduleName string) bool {
	if !guestLoggingEnabled(r.cfg.WasmLogEnvVar(), moduleName) {
		return false
	}
	mc, ok := r.cfg.ModuleConfig(moduleName)
	return ok && mc.LoggerEnabled
}

// Load registers a single src with the registry, via the same two-phase
// publish-then-link sequence LoadAll uses for a batch. A module whose
// imports are satisfied only by a sibling in the very same Load call (a
// cyclic import graph) must go through LoadAll instead: Load alone can only
// resolve imports against modules already present in the registry.
func (r *Registry) Load(ctx context.Context, src ModuleSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pub, err := r.publish(src)
	if err != nil {
		return err
	}
	if err := r.link(ctx, pub); err != nil {
		r.unpublish(pub.name)
		return err
	}
	return nil
}

// LoadAll registers every source in srcs in two passes, per §4.7 and §9's
// cyclic-import requirement: pass one publishes every module's interface and
// signatures to the cache before any guest binary is compiled or
// instantiated, so resolveImports can see a sibling that is textually later
// in srcs (or imports it right back). Pass two then compiles, resolves
// imports, and instantiates each module in turn. If any module fails pass
// two, every module published or linked by this call is rolled back and the
// registry is left exactly as it was before LoadAll was called.
func (r *Registry) LoadAll(ctx context.Context, srcs []ModuleSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	published := make([]publishedModule, 0, len(srcs))
	rollback := func(err error) error {
		for i := len(published) - 1; i >= 0; i-- {
			delete(r.modules, published[i].name)
			r.unpublish(published[i].name)
		}
		return err
	}

	for _, src := range srcs {
		pub, err := r.publish(src)
		if err != nil {
			return rollback(err)
		}
		published = append(published, pub)
	}

	for _, pub := range published {
		if err := r.link(ctx, pub); err != nil {
			return rollback(err)
		}
	}
	return nil
}

// publishedModule carries a module's parsed records/signatures from publish
// to link, so link never has to re-derive them from the raw ModuleSource.
type publishedModule struct {
	src     ModuleSource
	name    string
	records *itypes.RecordRegistry
	sigs    map[string]itypes.FunctionSignature
}

// publish is phase 1: parse src's records and signatures and make them
// visible through the interface cache and sigCache, without touching the
// Wasm binary. Callers must hold r.mu.
func (r *Registry) publish(src ModuleSource) (publishedModule, error) {
	if _, exists := r.modules[src.Name]; exists {
		return publishedModule{}, fceerr.ModuleAlreadyExists(src.Name)
	}
	if _, exists := r.sigCache[src.Name]; exists {
		return publishedModule{}, fceerr.ModuleAlreadyExists(src.Name)
	}

	records := itypes.NewRecordRegistry()
	for _, rt := range src.Records {
		if _, err := records.Register(rt.Name, rt.Fields); err != nil {
			return publishedModule{}, fceerr.ConfigParseError(err)
		}
	}

	sigs := make(map[string]itypes.FunctionSignature, len(src.Exports))
	for _, sig := range src.Exports {
		sigs[sig.Name] = sig
	}

	r.cache.put(src.Name, moduleInterfaceFrom(src.Name, records, src.Exports))
	r.sigCache[src.Name] = sigs

	return publishedModule{src: src, name: src.Name, records: records, sigs: sigs}, nil
}

// unpublish undoes publish, for a module that never makes it through link.
func (r *Registry) unpublish(name string) {
	r.cache.remove(name)
	delete(r.sigCache, name)
}

// link is phase 2: resolve pub's imports against whatever is now in
// sigCache (every sibling in the same LoadAll batch has already been
// published), compile and instantiate the guest binary, and register the
// resulting moduleDescriptor. Callers must hold r.mu.
func (r *Registry) link(ctx context.Context, pub publishedModule) error {
	src := pub.src

	mc, _ := r.cfg.ModuleConfig(src.Name)
	imports, err := r.resolveImports(src.Name, mc)
	if err != nil {
		return err
	}

	compiled, err := r.runtime.CompileModule(ctx, src.Wasm)
	if err != nil {
		return fceerr.ModuleBroken(src.Name)
	}

	if len(imports) > 0 {
		byModule := map[string][]hostbridge.Import{}
		for _, imp := range imports {
			byModule[imp.Module] = append(byModule[imp.Module], imp)
		}
		for modName, impSet := range byModule {
			b := r.runtime.NewHostModuleBuilder(modName)
			b = hostbridge.Register(b, pub.records, impSet)
			if _, err := b.Instantiate(ctx); err != nil {
				return fceerr.UnresolvedImport(src.Name, modName)
			}
		}
	}

	modCfg := moduleConfigFor(src.Name, mc)
	mod, err := r.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fceerr.ModuleBroken(src.Name)
	}

	handles, err := abi.Load(mod)
	if err != nil {
		return err
	}

	exportFns := make([]api.Function, 0, len(src.Exports))
	exportIdx := make(map[string]uint32, len(src.Exports))
	for _, sig := range src.Exports {
		fn := mod.ExportedFunction(sig.Name)
		if fn == nil {
			return fceerr.MissingFunction(src.Name, sig.Name)
		}
		exportIdx[sig.Name] = uint32(len(exportFns))
		exportFns = append(exportFns, fn)
	}

	r.modules[src.Name] = &moduleDescriptor{
		name:    src.Name,
		mod:     mod,
		abi:     handles,
		mem:     mod.Memory(),
		core:    coreTable{h: handles, exports: exportFns},
		records: pub.records,
		sigs:    pub.sigs,
		exports: exportIdx,
		imports: imports,
	}
	return nil
}

// resolveImports turns mc.Imports (host_function_name -> module.function)
// into bound hostbridge.Import entries, each forwarding to the target
// module's own Call path. The target need not be loaded yet: Registry.Call
// always looks it up by name at call time, which is what lets two modules
// import each other.
func (r *Registry) resolveImports(callerName string, mc ModuleConfig) ([]hostbridge.Import, error) {
	out := make([]hostbridge.Import, 0, len(mc.Imports))
	for hostFn, target := range mc.Imports {
		funcs, ok := r.sigCache[target.Module]
		if !ok {
			return nil, fceerr.UnresolvedImport(callerName, hostFn)
		}
		sig, ok := funcs[target.Function]
		if !ok {
			return nil, fceerr.MissingFunction(target.Module, target.Function)
		}
		targetModule, targetFunction := target.Module, target.Function
		out = append(out, hostbridge.Import{
			Module:    target.Module,
			Name:      hostFn,
			Signature: sig,
			Handler: func(ctx context.Context, args []itypes.IValue) ([]itypes.IValue, error) {
				return r.Call(ctx, targetModule, targetFunction, args)
			},
		})
	}
	return out, nil
}

// Call invokes moduleName's exported function by marshalling args across
// the adapter per §4.4/§4.5. Each invocation is tagged with a fresh
// correlation id so a chain of calls across imported modules (cmd/fce's
// `invoke`, or one module calling into another through resolveImports) can
// be followed through the logs even though Registry.Call is reentrant.
func (r *Registry) Call(ctx context.Context, moduleName, function string, args []itypes.IValue) ([]itypes.IValue, error) {
	callID := uuid.New().String()

	r.mu.Lock()
	d, ok := r.modules[moduleName]
	r.mu.Unlock()
	if !ok {
		return nil, fceerr.NoSuchModule(moduleName)
	}
	if d.broken {
		return nil, fceerr.ModuleBroken(moduleName)
	}

	sig, ok := d.sigs[function]
	if !ok {
		return nil, fceerr.MissingFunction(moduleName, function)
	}
	exportIdx, ok := d.exports[function]
	if !ok {
		return nil, fceerr.MissingFunction(moduleName, function)
	}

	log := r.log.WithFields(logrus.Fields{"call_id": callID, "module": moduleName, "function": function})
	log.Debug("invoking")

	prog := adaptergen.Generate(sig, exportIdx)
	out, err := adapterExecute(ctx, prog, args, sig.Outputs, d)
	if err != nil {
		log.WithError(err).Debug("invocation failed")
		return nil, err
	}
	return out, nil
}

// Unload removes moduleName from the registry and marks every remaining
// module that imports from it as broken, per §3's "a module whose import
// source disappears is marked Broken rather than left partially valid".
func (r *Registry) Unload(moduleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[moduleName]; !ok {
		return fceerr.NoSuchModule(moduleName)
	}
	delete(r.modules, moduleName)
	r.cache.remove(moduleName)
	delete(r.sigCache, moduleName)

	for _, d := range r.modules {
		for _, imp := range d.imports {
			if imp.Module == moduleName {
				d.broken = true
			}
		}
	}
	return nil
}

// Interface returns the cached, human-readable description of a loaded
// module's exports and record types.
func (r *Registry) Interface(moduleName string) (ModuleInterface, bool) {
	return r.cache.get(moduleName)
}

// Signature returns the structural signature of moduleName's exported
// function, for front-ends (cmd/fce, package jsoncodec) that need to
// interpret arguments/results rather than merely display them.
func (r *Registry) Signature(moduleName, function string) (itypes.FunctionSignature, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.modules[moduleName]
	if !ok {
		return itypes.FunctionSignature{}, false
	}
	sig, ok := d.sigs[function]
	return sig, ok
}

// Records returns moduleName's record registry, for decoding/encoding JSON
// values that reference record types.
func (r *Registry) Records(moduleName string) (*itypes.RecordRegistry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.modules[moduleName]
	if !ok {
		return nil, false
	}
	return d.records, true
}

// Interfaces returns every loaded module's interface, for a moduleless
// `interface` CLI invocation.
func (r *Registry) Interfaces() []ModuleInterface {
	return r.cache.list()
}

// StateHash returns an xxhash64 digest of moduleName's linear memory
// contents, an optional diagnostic (per §9's Open Question resolution)
// rather than a correctness primitive: two calls with an unchanged memory
// region between them hash identically, which is useful for detecting
// accidental guest-side mutation across a host round-trip in tests.
func (r *Registry) StateHash(moduleName string) ([]byte, error) {
	r.mu.Lock()
	d, ok := r.modules[moduleName]
	r.mu.Unlock()
	if !ok {
		return nil, fceerr.NoSuchModule(moduleName)
	}
	size := d.mem.Size(context.Background())
	b, ok := d.mem.Read(context.Background(), 0, size)
	if !ok {
		return nil, fceerr.MemoryAccessOutOfBounds(0, size, size)
	}
	sum := xxhash.Sum64(b)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(sum >> (8 * i))
	}
	return out, nil
}
