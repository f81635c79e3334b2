// Package fceerr collects the engine's typed error kinds (§7 of the design)
// so that front-ends (cmd/fce) can map a failure to an exit code without
// string-matching error messages, and so internal callers can use
// errors.As to recover structured detail (the offending record id, the
// requested memory range, ...).
package fceerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error for exit-code mapping and metrics, per §7:
// Configuration and ABI kinds are user/config mistakes (CLI exit 1),
// Execution and Codec kinds are engine/runtime failures (CLI exit 2).
type Kind string

const (
	KindConfig    Kind = "configuration"
	KindAbi       Kind = "module_abi"
	KindExecution Kind = "execution"
	KindCodec     Kind = "codec"
)

// Error is the common shape of every engine error. Code is one of the
// specific constants below (e.g. CodeMissingFunction).
type Error struct {
	Kind Kind
	Code string
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// ExitCode maps Kind to the CLI exit codes specified in §6: 0 success,
// 1 user/config error, 2 engine error.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindAbi:
		return 1
	default:
		return 2
	}
}

func newErr(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, msg: msg, err: cause}
}

// Configuration and loading errors.
const (
	CodeConfigParseError   = "ConfigParseError"
	CodeNoSuchModule       = "NoSuchModule"
	CodeMissingFunction    = "MissingFunction"
	CodeUnresolvedImport   = "UnresolvedImport"
	CodeModuleAlreadyExist = "ModuleAlreadyExists"
	CodeModuleBroken       = "ModuleBroken"
)

func ConfigParseError(cause error) error {
	return newErr(KindConfig, CodeConfigParseError, "failed to parse engine configuration", cause)
}

func NoSuchModule(name string) error {
	return newErr(KindConfig, CodeNoSuchModule, fmt.Sprintf("no such module %q", name), nil)
}

func MissingFunction(module, function string) error {
	return newErr(KindConfig, CodeMissingFunction, fmt.Sprintf("%s has no function %q", module, function), nil)
}

func UnresolvedImport(module, name string) error {
	return newErr(KindConfig, CodeUnresolvedImport,
		fmt.Sprintf("module %q has unresolved import %q", module, name), nil)
}

func ModuleAlreadyExists(name string) error {
	return newErr(KindConfig, CodeModuleAlreadyExist, fmt.Sprintf("module %q already registered", name), nil)
}

func ModuleBroken(name string) error {
	return newErr(KindConfig, CodeModuleBroken,
		fmt.Sprintf("module %q is broken: it imports from a module that was unloaded", name), nil)
}

// Module ABI errors.
const (
	CodeMissingAbiExport     = "MissingAbiExport"
	CodeAbiSignatureMismatch = "AbiSignatureMismatch"
)

func MissingAbiExport(name string) error {
	return newErr(KindAbi, CodeMissingAbiExport, fmt.Sprintf("module does not export required ABI function %q", name), nil)
}

func AbiSignatureMismatch(name, want, got string) error {
	return newErr(KindAbi, CodeAbiSignatureMismatch,
		fmt.Sprintf("ABI function %q has signature %s, want %s", name, got, want), nil)
}

// Execution errors.
const (
	CodeAdapterStackUnderflow  = "AdapterStackUnderflow"
	CodeAdapterTypeMismatch    = "AdapterTypeMismatch"
	CodeAdapterResidualStack   = "AdapterResidualStack"
	CodeNumericRangeExceeded   = "NumericRangeExceeded"
	CodeInvalidUtf8            = "InvalidUtf8"
	CodeMemoryAccessOutOfRange = "MemoryAccessOutOfBounds"
	CodeHostImportFailed       = "HostImportFailed"
	CodeWasmTrap               = "WasmTrap"
)

func AdapterStackUnderflow(op string) error {
	return newErr(KindExecution, CodeAdapterStackUnderflow, fmt.Sprintf("stack underflow executing %s", op), nil)
}

func AdapterTypeMismatch(op string, want, got interface{}) error {
	return newErr(KindExecution, CodeAdapterTypeMismatch,
		fmt.Sprintf("%s expected %v, got %v", op, want, got), nil)
}

func AdapterResidualStack(want, got int) error {
	return newErr(KindExecution, CodeAdapterResidualStack,
		fmt.Sprintf("adapter left %d values on the stack, expected %d", got, want), nil)
}

func NumericRangeExceeded(from, to string, value int64) error {
	return newErr(KindExecution, CodeNumericRangeExceeded,
		fmt.Sprintf("value %d does not fit when converting %s to %s", value, from, to), nil)
}

func InvalidUtf8(ptr, size uint32) error {
	return newErr(KindExecution, CodeInvalidUtf8,
		fmt.Sprintf("invalid UTF-8 string at [%d, %d)", ptr, ptr+size), nil)
}

func MemoryAccessOutOfBounds(offset, length, memorySize uint32) error {
	return newErr(KindExecution, CodeMemoryAccessOutOfRange,
		fmt.Sprintf("requested range [%d, %d) exceeds memory size %d", offset, offset+length, memorySize), nil)
}

func HostImportFailed(name string, cause error) error {
	return newErr(KindExecution, CodeHostImportFailed, fmt.Sprintf("host import %q failed", name), cause)
}

func WasmTrap(cause error) error {
	return newErr(KindExecution, CodeWasmTrap, "wasm function trapped", cause)
}

// Codec errors.
const (
	CodeJsonSchemaMismatch = "JsonSchemaMismatch"
	CodeUnknownRecord      = "UnknownRecord"
)

func JsonSchemaMismatch(detail string) error {
	return newErr(KindCodec, CodeJsonSchemaMismatch, detail, nil)
}

func UnknownRecord(id itypesRecordID) error {
	return newErr(KindCodec, CodeUnknownRecord, fmt.Sprintf("unknown record id %d", id), nil)
}

// itypesRecordID avoids an import cycle with package itypes (which does not
// need to know about fceerr); callers pass the underlying uint32.
type itypesRecordID = uint32

// As is re-exported for convenience so callers need only import fceerr.
var As = errors.As
