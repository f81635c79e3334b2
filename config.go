package fce

import (
	"fmt"

	toml "github.com/pelletier/go-toml"

	"github.com/mengsuenyan/fce/internal/fceerr"
)

// Config is the engine's top-level configuration, loaded from a TOML file
// per §6: a directory of compiled modules, per-module settings, and the
// environment variable that gates guest logging.
type Config struct {
	modulesDir    string
	modulesConfig map[string]ModuleConfig
	wasmLogEnvVar string
}

// engineLessConfig mirrors the teacher's pattern of a single package-level
// zero-value default that every constructor clones from, so no constructor
// can forget a field.
var engineLessConfig = &Config{
	modulesConfig: map[string]ModuleConfig{},
}

// clone ensures all fields are copied even if nil, so fluent With* calls
// never share mutable state with the config they were derived from.
func (c *Config) clone() *Config {
	mc := make(map[string]ModuleConfig, len(c.modulesConfig))
	for k, v := range c.modulesConfig {
		mc[k] = v
	}
	return &Config{modulesDir: c.modulesDir, modulesConfig: mc, wasmLogEnvVar: c.wasmLogEnvVar}
}

// NewConfig returns the zero-value Config: no modules directory, no guest
// logging. Use ConfigFromTOML to load one from a file's contents.
func NewConfig() *Config { return engineLessConfig.clone() }

// WithModulesDir sets the directory the registry loads *.wasm files from.
func (c *Config) WithModulesDir(dir string) *Config {
	ret := c.clone()
	ret.modulesDir = dir
	return ret
}

// WithWasmLogEnvVar sets the environment variable that gates
// logger::log_utf8_string output; an empty string disables all guest
// logging regardless of the environment.
func (c *Config) WithWasmLogEnvVar(name string) *Config {
	ret := c.clone()
	ret.wasmLogEnvVar = name
	return ret
}

// WithModuleConfig attaches per-module settings, keyed by module name.
func (c *Config) WithModuleConfig(name string, mc ModuleConfig) *Config {
	ret := c.clone()
	ret.modulesConfig[name] = mc
	return ret
}

func (c *Config) ModulesDir() string       { return c.modulesDir }
func (c *Config) WasmLogEnvVar() string    { return c.wasmLogEnvVar }
func (c *Config) ModuleConfig(name string) (ModuleConfig, bool) {
	mc, ok := c.modulesConfig[name]
	return mc, ok
}

// WasiConfig is the WASI-related subset of a module's configuration.
type WasiConfig struct {
	Envs           map[string]string
	PreopenedFiles []string
	MappedDirs     map[string]string
	Version        string
}

// ImportTarget names the module+function a host import named
// HostFunctionName is bound to, e.g. another loaded module's export.
type ImportTarget struct {
	Module   string
	Function string
}

// ModuleConfig is one module's entry in modules_config, per §6.
type ModuleConfig struct {
	MemPagesCount  uint32
	LoggerEnabled  bool
	Wasi           WasiConfig
	Imports        map[string]ImportTarget // host_function_name -> external_target
}

// tomlConfig mirrors the on-disk TOML shape exactly; ConfigFromTOML
// translates it into the immutable Config/ModuleConfig the rest of the
// engine consumes.
type tomlConfig struct {
	ModulesDir    string                    `toml:"modules_dir"`
	WasmLogEnvVar string                    `toml:"wasm_log_env_var"`
	ModulesConfig map[string]tomlModuleSpec `toml:"modules_config"`
}

type tomlModuleSpec struct {
	MemPagesCount uint32                      `toml:"mem_pages_count"`
	LoggerEnabled bool                        `toml:"logger_enabled"`
	Wasi          tomlWasiSpec                `toml:"wasi"`
	Imports       map[string]string           `toml:"imports"`
}

type tomlWasiSpec struct {
	Envs           map[string]string `toml:"envs"`
	PreopenedFiles []string          `toml:"preopened_files"`
	MappedDirs     map[string]string `toml:"mapped_dirs"`
	Version        string            `toml:"version"`
}

// ConfigFromTOML parses body as the engine's TOML configuration document.
func ConfigFromTOML(body []byte) (*Config, error) {
	var raw tomlConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return nil, fceerr.ConfigParseError(err)
	}

	cfg := NewConfig().WithModulesDir(raw.ModulesDir).WithWasmLogEnvVar(raw.WasmLogEnvVar)
	for name, spec := range raw.ModulesConfig {
		mc := ModuleConfig{
			MemPagesCount: spec.MemPagesCount,
			LoggerEnabled: spec.LoggerEnabled,
			Wasi: WasiConfig{
				Envs:           spec.Wasi.Envs,
				PreopenedFiles: spec.Wasi.PreopenedFiles,
				MappedDirs:     spec.Wasi.MappedDirs,
				Version:        spec.Wasi.Version,
			},
			Imports: make(map[string]ImportTarget, len(spec.Imports)),
		}
		for hostFn, target := range spec.Imports {
			t, err := parseImportTarget(target)
			if err != nil {
				return nil, fceerr.ConfigParseError(fmt.Errorf("module %q import %q: %w", name, hostFn, err))
			}
			mc.Imports[hostFn] = t
		}
		cfg = cfg.WithModuleConfig(name, mc)
	}
	return cfg, nil
}

// parseImportTarget splits an "external_target" string of the form
// "module.function" into its two parts.
func parseImportTarget(s string) (ImportTarget, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return ImportTarget{Module: s[:i], Function: s[i+1:]}, nil
		}
	}
	return ImportTarget{}, fmt.Errorf("malformed import target %q, want \"module.function\"", s)
}
