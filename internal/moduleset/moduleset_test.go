package moduleset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce/internal/moduleset"
	"github.com/mengsuenyan/fce/itypes"
)

func writeFile(t *testing.T, dir, name string, body []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0o644))
}

func TestLoadWithSidecar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geo.wasm", []byte("\x00asm"))
	writeFile(t, dir, "geo.fce.json", []byte(`{
		"records": [
			{"name": "point", "fields": [{"name": "x", "type": "s32"}, {"name": "y", "type": "s32"}]}
		],
		"exports": [
			{"name": "distance", "arguments": [{"name": "p", "type": "point"}], "output": "f64"},
			{"name": "ping", "arguments": [], "output": ""}
		]
	}`))

	src, err := moduleset.Load(dir, "geo")
	require.NoError(t, err)
	require.Equal(t, "geo", src.Name)
	require.Equal(t, []byte("\x00asm"), src.Wasm)
	require.Len(t, src.Records, 1)
	require.Equal(t, "point", src.Records[0].Name)
	require.Len(t, src.Exports, 2)
	require.Equal(t, "distance", src.Exports[0].Name)
	require.True(t, src.Exports[0].Arguments[0].Type.Equal(itypes.Record(src.Records[0].ID)))
	out, ok := src.Exports[0].Output()
	require.True(t, ok)
	require.Equal(t, itypes.F64, out)
	_, ok = src.Exports[1].Output()
	require.False(t, ok)
}

func TestLoadWithoutSidecarIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bare.wasm", []byte("\x00asm"))

	src, err := moduleset.Load(dir, "bare")
	require.NoError(t, err)
	require.Empty(t, src.Records)
	require.Empty(t, src.Exports)
}

func TestLoadMissingWasmErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := moduleset.Load(dir, "missing")
	require.Error(t, err)
}

func TestLoadMalformedSidecarErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.wasm", []byte("\x00asm"))
	writeFile(t, dir, "bad.fce.json", []byte(`not json`))

	_, err := moduleset.Load(dir, "bad")
	require.Error(t, err)
}

func TestLoadArrayAndUnknownType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "m.wasm", []byte("\x00asm"))
	writeFile(t, dir, "m.fce.json", []byte(`{
		"exports": [{"name": "sum", "arguments": [{"name": "xs", "type": "array<s32>"}], "output": "s32"}]
	}`))

	src, err := moduleset.Load(dir, "m")
	require.NoError(t, err)
	require.True(t, src.Exports[0].Arguments[0].Type.Equal(itypes.Array(itypes.S32)))

	writeFile(t, dir, "bad2.wasm", []byte("\x00asm"))
	writeFile(t, dir, "bad2.fce.json", []byte(`{
		"exports": [{"name": "f", "arguments": [{"name": "a", "type": "not_a_type"}], "output": ""}]
	}`))
	_, err = moduleset.Load(dir, "bad2")
	require.Error(t, err)
}

func TestDiscoverSortsByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zebra.wasm", []byte("\x00asm"))
	writeFile(t, dir, "alpha.wasm", []byte("\x00asm"))
	writeFile(t, dir, "readme.txt", []byte("not a module"))

	srcs, err := moduleset.Discover(dir)
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	require.Equal(t, "alpha", srcs[0].Name)
	require.Equal(t, "zebra", srcs[1].Name)
}
