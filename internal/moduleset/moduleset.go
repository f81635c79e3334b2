// Package moduleset loads fce.ModuleSource values from a modules directory:
// each guest module is a pair of files, name.wasm and name.fce.json, the
// latter describing the record types and exported function signatures that
// spec.md's data model leaves with no defined on-disk encoding (see
// fce.ModuleSource's doc comment).
package moduleset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mengsuenyan/fce"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/itypes"
)

// sidecar mirrors the on-disk name.fce.json shape: record types in
// declaration order (record ids are assigned by position, and a later record
// can reference an earlier one by name), then the module's exported functions.
type sidecar struct {
	Records []recordSpec   `json:"records"`
	Exports []functionSpec `json:"exports"`
}

type recordSpec struct {
	Name   string       `json:"name"`
	Fields []fieldSpec  `json:"fields"`
}

type fieldSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type functionSpec struct {
	Name      string      `json:"name"`
	Arguments []fieldSpec `json:"arguments"`
	Output    string      `json:"output"` // "" if the function has no output
}

// Discover scans dir for *.wasm files and loads a fce.ModuleSource for each,
// in name-sorted order so that a directory of modules with no import
// relationship loads deterministically.
func Discover(dir string) ([]fce.ModuleSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fceerr.ConfigParseError(err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wasm") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".wasm"))
	}
	sort.Strings(names)

	out := make([]fce.ModuleSource, 0, len(names))
	for _, name := range names {
		src, err := Load(dir, name)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// Load reads name.wasm and name.fce.json from dir and builds the
// corresponding fce.ModuleSource. A missing sidecar is treated as a module
// with no records and no exports, rather than an error, so a bare Wasm
// binary with nothing to call can still be loaded for its side effects.
func Load(dir, name string) (fce.ModuleSource, error) {
	wasm, err := os.ReadFile(filepath.Join(dir, name+".wasm"))
	if err != nil {
		return fce.ModuleSource{}, fceerr.ConfigParseError(err)
	}

	var sc sidecar
	body, err := os.ReadFile(filepath.Join(dir, name+".fce.json"))
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(body, &sc); jsonErr != nil {
			return fce.ModuleSource{}, fceerr.ConfigParseError(fmt.Errorf("%s.fce.json: %w", name, jsonErr))
		}
	case os.IsNotExist(err):
		// no sidecar: nothing to lift into records/exports.
	default:
		return fce.ModuleSource{}, fceerr.ConfigParseError(err)
	}

	byName := map[string]itypes.RecordID{}
	records := make([]itypes.RecordType, 0, len(sc.Records))
	for i, r := range sc.Records {
		fields := make([]itypes.NamedType, 0, len(r.Fields))
		for _, f := range r.Fields {
			t, err := parseType(f.Type, byName)
			if err != nil {
				return fce.ModuleSource{}, fceerr.ConfigParseError(fmt.Errorf("%s.fce.json: record %q field %q: %w", name, r.Name, f.Name, err))
			}
			fields = append(fields, itypes.NamedType{Name: f.Name, Type: t})
		}
		id := itypes.RecordID(i + 1)
		byName[r.Name] = id
		records = append(records, itypes.RecordType{ID: id, Name: r.Name, Fields: fields})
	}

	exports := make([]itypes.FunctionSignature, 0, len(sc.Exports))
	for _, fn := range sc.Exports {
		args := make([]itypes.NamedType, 0, len(fn.Arguments))
		for _, a := range fn.Arguments {
			t, err := parseType(a.Type, byName)
			if err != nil {
				return fce.ModuleSource{}, fceerr.ConfigParseError(fmt.Errorf("%s.fce.json: function %q argument %q: %w", name, fn.Name, a.Name, err))
			}
			args = append(args, itypes.NamedType{Name: a.Name, Type: t})
		}
		var outputs []itypes.IType
		if fn.Output != "" {
			t, err := parseType(fn.Output, byName)
			if err != nil {
				return fce.ModuleSource{}, fceerr.ConfigParseError(fmt.Errorf("%s.fce.json: function %q output: %w", name, fn.Name, err))
			}
			outputs = []itypes.IType{t}
		}
		exports = append(exports, itypes.FunctionSignature{Name: fn.Name, Arguments: args, Outputs: outputs})
	}

	return fce.ModuleSource{Name: name, Wasm: wasm, Records: records, Exports: exports}, nil
}

// parseType reads a sidecar type string: a primitive kind name, "array<T>"
// for an array of T, or a record name already declared earlier in the same
// sidecar's Records list.
func parseType(s string, byName map[string]itypes.RecordID) (itypes.IType, error) {
	switch s {
	case "s8":
		return itypes.S8, nil
	case "s16":
		return itypes.S16, nil
	case "s32":
		return itypes.S32, nil
	case "s64":
		return itypes.S64, nil
	case "u8":
		return itypes.U8, nil
	case "u16":
		return itypes.U16, nil
	case "u32":
		return itypes.U32, nil
	case "u64":
		return itypes.U64, nil
	case "f32":
		return itypes.F32, nil
	case "f64":
		return itypes.F64, nil
	case "string":
		return itypes.String, nil
	case "byte_array":
		return itypes.ByteArray, nil
	}
	if strings.HasPrefix(s, "array<") && strings.HasSuffix(s, ">") {
		elem, err := parseType(s[len("array<"):len(s)-1], byName)
		if err != nil {
			return itypes.IType{}, err
		}
		return itypes.Array(elem), nil
	}
	if id, ok := byName[s]; ok {
		return itypes.Record(id), nil
	}
	return itypes.IType{}, fmt.Errorf("unknown type %q", s)
}
