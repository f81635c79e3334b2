package hostbridge_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/hostbridge"
	"github.com/mengsuenyan/fce/itypes"
)

func TestCoreSignaturePrimitiveArgs(t *testing.T) {
	sig := itypes.FunctionSignature{
		Name: "add",
		Arguments: []itypes.NamedType{
			{Name: "a", Type: itypes.S32},
			{Name: "b", Type: itypes.F64},
		},
		Outputs: []itypes.IType{itypes.S32},
	}

	params, results := hostbridge.CoreSignature(sig)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeF64}, params)
	require.Equal(t, []api.ValueType{api.ValueTypeI32}, results)
}

func TestCoreSignatureStringArgAndOutput(t *testing.T) {
	sig := itypes.FunctionSignature{
		Name:      "greet",
		Arguments: []itypes.NamedType{{Name: "name", Type: itypes.String}},
		Outputs:   []itypes.IType{itypes.String},
	}

	params, results := hostbridge.CoreSignature(sig)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, params)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, results)
}

func TestCoreSignatureRecordArg(t *testing.T) {
	sig := itypes.FunctionSignature{
		Name:      "distance",
		Arguments: []itypes.NamedType{{Name: "p", Type: itypes.Record(1)}},
	}

	params, _ := hostbridge.CoreSignature(sig)
	require.Equal(t, []api.ValueType{api.ValueTypeI32}, params)
}

func TestCoreSignatureArrayArgNoOutput(t *testing.T) {
	sig := itypes.FunctionSignature{
		Name:      "sum",
		Arguments: []itypes.NamedType{{Name: "xs", Type: itypes.Array(itypes.S32)}},
	}

	params, results := hostbridge.CoreSignature(sig)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, params)
	require.Nil(t, results)
}

func TestCoreSignatureByteArrayAndU64(t *testing.T) {
	sig := itypes.FunctionSignature{
		Name: "checksum",
		Arguments: []itypes.NamedType{
			{Name: "data", Type: itypes.ByteArray},
			{Name: "seed", Type: itypes.U64},
		},
		Outputs: []itypes.IType{itypes.U64},
	}

	params, results := hostbridge.CoreSignature(sig)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI64}, params)
	require.Equal(t, []api.ValueType{api.ValueTypeI64}, results)
}
