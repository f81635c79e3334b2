package fce

import (
	"sync"

	"github.com/mengsuenyan/fce/itypes"
)

// ModuleInterface is the human- and machine-readable description of one
// loaded module's exports, returned by Registry.Interface and printed by
// the CLI's `interface` subcommand.
type ModuleInterface struct {
	Name      string
	Functions []FunctionInterface
	Records   []RecordInterface
}

// FunctionInterface describes one exported function's interface-level
// signature.
type FunctionInterface struct {
	Name      string
	Arguments []ArgumentInterface
	Output    string // "" if the function has no output
}

// ArgumentInterface names and types one function argument.
type ArgumentInterface struct {
	Name string
	Type string
}

// RecordInterface describes one record type registered by a module.
type RecordInterface struct {
	Name   string
	Fields []ArgumentInterface
}

// interfaceCache is a write-through cache of each loaded module's
// ModuleInterface, keyed unambiguously by module_name (resolving the
// original cache-keying ambiguity: earlier designs keyed partly by name and
// partly by an internal module id, which could diverge after a reload).
// Every entry is (re)computed once at load time and invalidated on unload,
// never lazily recomputed, so a lookup is always a plain map read.
type interfaceCache struct {
	mu     sync.RWMutex
	byName map[string]ModuleInterface
	order  []string // module names in insertion order, for list()
}

func newInterfaceCache() *interfaceCache {
	return &interfaceCache{byName: map[string]ModuleInterface{}}
}

// put writes through the interface for a newly loaded module. Re-putting an
// already-cached name (a reload) keeps its original position in order.
func (c *interfaceCache) put(moduleName string, iface ModuleInterface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[moduleName]; !exists {
		c.order = append(c.order, moduleName)
	}
	c.byName[moduleName] = iface
}

// get returns the cached interface for moduleName, if the module is loaded.
func (c *interfaceCache) get(moduleName string) (ModuleInterface, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	iface, ok := c.byName[moduleName]
	return iface, ok
}

// remove invalidates a module's cached interface, e.g. on Unload.
func (c *interfaceCache) remove(moduleName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, moduleName)
	for i, name := range c.order {
		if name == moduleName {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// list returns every cached interface in insertion order, for the CLI's
// `interface` subcommand with no module name argument.
func (c *interfaceCache) list() []ModuleInterface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModuleInterface, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// moduleInterfaceFrom builds the display-oriented ModuleInterface for a
// module's exports and registered record types. It is a lossy, one-way
// projection of the structural itypes.FunctionSignature/RecordType data; the
// registry separately keeps that structural data in its own sigCache for
// anything (such as resolveImports) that needs to round-trip it.
func moduleInterfaceFrom(name string, records *itypes.RecordRegistry, exports []itypes.FunctionSignature) ModuleInterface {
	fns := make([]FunctionInterface, 0, len(exports))
	for _, sig := range exports {
		args := make([]ArgumentInterface, 0, len(sig.Arguments))
		for _, a := range sig.Arguments {
			args = append(args, ArgumentInterface{Name: a.Name, Type: a.Type.String()})
		}
		output := ""
		if o, ok := sig.Output(); ok {
			output = o.String()
		}
		fns = append(fns, FunctionInterface{Name: sig.Name, Arguments: args, Output: output})
	}

	var recs []RecordInterface
	for _, rt := range records.List() {
		fields := make([]ArgumentInterface, 0, len(rt.Fields))
		for _, f := range rt.Fields {
			fields = append(fields, ArgumentInterface{Name: f.Name, Type: f.Type.String()})
		}
		recs = append(recs, RecordInterface{Name: rt.Name, Fields: fields})
	}

	return ModuleInterface{Name: name, Functions: fns, Records: recs}
}
