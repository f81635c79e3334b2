package jsoncodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce/internal/jsoncodec"
	"github.com/mengsuenyan/fce/itypes"
)

func TestDecodePrimitives(t *testing.T) {
	sig := itypes.FunctionSignature{
		Arguments: []itypes.NamedType{
			{Name: "a", Type: itypes.S32},
			{Name: "b", Type: itypes.F64},
			{Name: "c", Type: itypes.String},
		},
	}

	vals, err := jsoncodec.Decode([]byte(`[42, 3.5, "hi"]`), sig, itypes.NewRecordRegistry())
	require.NoError(t, err)
	require.Len(t, vals, 3)
	require.EqualValues(t, 42, vals[0].Signed())
	require.InDelta(t, 3.5, vals[1].F64(), 0.0001)
	require.Equal(t, "hi", vals[2].Str())
}

func TestDecodeRejectsStringForNumeric(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.S32}}}
	_, err := jsoncodec.Decode([]byte(`["42"]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeRejectsNegativeForUnsigned(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.U32}}}
	_, err := jsoncodec.Decode([]byte(`[-1]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeRejectsOutOfRangeForNarrowInt(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.U8}}}
	_, err := jsoncodec.Decode([]byte(`[257]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeRejectsOutOfRangeForSignedNarrowInt(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.S8}}}
	_, err := jsoncodec.Decode([]byte(`[200]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeAcceptsInRangeNarrowInt(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.U8}}}
	vals, err := jsoncodec.Decode([]byte(`[255]`), sig, itypes.NewRecordRegistry())
	require.NoError(t, err)
	require.EqualValues(t, 255, vals[0].Unsigned())
}

func TestDecodeRejectsArgumentCountMismatch(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "a", Type: itypes.S32}}}
	_, err := jsoncodec.Decode([]byte(`[1, 2]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	sig := itypes.FunctionSignature{}
	_, err := jsoncodec.Decode([]byte(`not json`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeByteArrayBase64(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "b", Type: itypes.ByteArray}}}
	vals, err := jsoncodec.Decode([]byte(`["aGVsbG8="]`), sig, itypes.NewRecordRegistry())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), vals[0].Bytes())
}

func TestDecodeByteArrayInvalidBase64Errors(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "b", Type: itypes.ByteArray}}}
	_, err := jsoncodec.Decode([]byte(`["not-base64!!"]`), sig, itypes.NewRecordRegistry())
	require.Error(t, err)
}

func TestDecodeArrayOfInts(t *testing.T) {
	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "xs", Type: itypes.Array(itypes.S32)}}}
	vals, err := jsoncodec.Decode([]byte(`[[1,2,3]]`), sig, itypes.NewRecordRegistry())
	require.NoError(t, err)
	require.Len(t, vals[0].Elements(), 3)
}

func TestDecodeRecordByFieldName(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	id, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32},
		{Name: "y", Type: itypes.S32},
	})
	require.NoError(t, err)

	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "p", Type: itypes.Record(id)}}}
	vals, err := jsoncodec.Decode([]byte(`[{"x": 1, "y": 2}]`), sig, reg)
	require.NoError(t, err)
	require.EqualValues(t, 1, vals[0].Fields()[0].Signed())
	require.EqualValues(t, 2, vals[0].Fields()[1].Signed())
}

func TestDecodeRecordMissingFieldErrors(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	id, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32},
		{Name: "y", Type: itypes.S32},
	})
	require.NoError(t, err)

	sig := itypes.FunctionSignature{Arguments: []itypes.NamedType{{Name: "p", Type: itypes.Record(id)}}}
	_, err = jsoncodec.Decode([]byte(`[{"x": 1}]`), sig, reg)
	require.Error(t, err)
}

func TestEncodeRoundTripsPrimitivesAndByteArray(t *testing.T) {
	vals := []itypes.IValue{
		itypes.S32Value(-5),
		itypes.U64Value(9),
		itypes.ByteArrayValue([]byte("hi")),
	}
	body, err := jsoncodec.Encode(vals, itypes.NewRecordRegistry())
	require.NoError(t, err)
	require.JSONEq(t, `[-5, 9, "aGk="]`, string(body))
}

func TestEncodeRecord(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	id, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32},
		{Name: "y", Type: itypes.S32},
	})
	require.NoError(t, err)

	rec := itypes.RecordValue(id, []itypes.IValue{itypes.S32Value(1), itypes.S32Value(2)})
	body, err := jsoncodec.Encode([]itypes.IValue{rec}, reg)
	require.NoError(t, err)
	require.JSONEq(t, `[{"x": 1, "y": 2}]`, string(body))
}
