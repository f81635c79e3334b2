package fce

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFromTOML(t *testing.T) {
	doc := []byte(`
modules_dir = "modules"
wasm_log_env_var = "FCE_GUEST_LOG"

[modules_config.greeter]
mem_pages_count = 4
logger_enabled = true

[modules_config.greeter.wasi]
version = "preview1"
envs = { LANG = "C" }
preopened_files = ["/data"]
mapped_dirs = { "/data" = "/host/data" }

[modules_config.greeter.imports]
say_hello = "hello_svc.greet"
`)

	cfg, err := ConfigFromTOML(doc)
	require.NoError(t, err)
	require.Equal(t, "modules", cfg.ModulesDir())
	require.Equal(t, "FCE_GUEST_LOG", cfg.WasmLogEnvVar())

	mc, ok := cfg.ModuleConfig("greeter")
	require.True(t, ok)
	require.EqualValues(t, 4, mc.MemPagesCount)
	require.True(t, mc.LoggerEnabled)
	require.Equal(t, "preview1", mc.Wasi.Version)
	require.Equal(t, "C", mc.Wasi.Envs["LANG"])
	require.Equal(t, []string{"/data"}, mc.Wasi.PreopenedFiles)
	require.Equal(t, "/host/data", mc.Wasi.MappedDirs["/data"])

	target, ok := mc.Imports["say_hello"]
	require.True(t, ok)
	require.Equal(t, ImportTarget{Module: "hello_svc", Function: "greet"}, target)
}

func TestConfigFromTOMLMalformedImportTarget(t *testing.T) {
	doc := []byte(`
[modules_config.greeter.imports]
say_hello = "not-a-dotted-target"
`)
	_, err := ConfigFromTOML(doc)
	require.Error(t, err)
}

func TestConfigFromTOMLInvalidSyntax(t *testing.T) {
	_, err := ConfigFromTOML([]byte("this is not [valid toml"))
	require.Error(t, err)
}

func TestConfigBuilderIsImmutable(t *testing.T) {
	base := NewConfig()
	withDir := base.WithModulesDir("modules")

	require.Equal(t, "", base.ModulesDir())
	require.Equal(t, "modules", withDir.ModulesDir())

	withModule := withDir.WithModuleConfig("m", ModuleConfig{MemPagesCount: 1})
	_, ok := withDir.ModuleConfig("m")
	require.False(t, ok, "cloning must not leak into the config it was derived from")
	_, ok = withModule.ModuleConfig("m")
	require.True(t, ok)
}
