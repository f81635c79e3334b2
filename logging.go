package fce

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// NewLogger returns a structured logger configured the way the rest of the
// engine expects: text output, level from FCE_LOG_LEVEL (info if unset or
// unparseable).
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(os.Getenv("FCE_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// guestLoggingEnabled reports whether moduleName's guest log output should
// be emitted, per §6: an empty wasmLogEnvVar disables all guest logging;
// otherwise the named environment variable holds a comma-separated list of
// module names to allow, or "*" to allow every module.
func guestLoggingEnabled(wasmLogEnvVar, moduleName string) bool {
	if wasmLogEnvVar == "" {
		return false
	}
	filter := os.Getenv(wasmLogEnvVar)
	if filter == "" {
		return false
	}
	if filter == "*" {
		return true
	}
	for _, name := range strings.Split(filter, ",") {
		if strings.TrimSpace(name) == moduleName {
			return true
		}
	}
	return false
}

// registerLoggerImport adds the engine-provided logger::log_utf8_string
// host import (§6) to b: it prints a UTF-8 string read from the caller's
// memory, substituting a fixed message rather than failing the call when
// the bytes are not valid UTF-8. The host function is registered once per
// runtime; whether a given call actually logs is decided per-call from the
// calling module's own name and configuration, via isEnabled.
func registerLoggerImport(b wazero.HostModuleBuilder, log *logrus.Logger, isEnabled func(moduleName string) bool) wazero.HostModuleBuilder {
	fn := api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
		if !isEnabled(mod.Name()) {
			return
		}
		offset, size := uint32(stack[0]), uint32(stack[1])
		raw, ok := mod.Memory().Read(ctx, offset, size)
		text := "<invalid utf-8 log payload>"
		if ok && utf8.Valid(raw) {
			text = string(raw)
		}
		log.WithField("module", mod.Name()).Info(text)
	})
	return b.NewFunctionBuilder().
		WithGoModuleFunction(fn, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("log_utf8_string")
}
