package itypes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce/itypes"
)

func TestRegisterAssignsDenseIDsFromOne(t *testing.T) {
	reg := itypes.NewRecordRegistry()

	id1, err := reg.Register("a", []itypes.NamedType{{Name: "x", Type: itypes.S32}})
	require.NoError(t, err)
	require.EqualValues(t, 1, id1)

	id2, err := reg.Register("b", []itypes.NamedType{{Name: "y", Type: itypes.F64}})
	require.NoError(t, err)
	require.EqualValues(t, 2, id2)
}

func TestRegisterSameShapeTwiceReturnsSameID(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	fields := []itypes.NamedType{{Name: "x", Type: itypes.S32}}

	id1, err := reg.Register("a", fields)
	require.NoError(t, err)
	id2, err := reg.Register("a", fields)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestRegisterConflictingShapeErrors(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	_, err := reg.Register("a", []itypes.NamedType{{Name: "x", Type: itypes.S32}})
	require.NoError(t, err)

	_, err = reg.Register("a", []itypes.NamedType{{Name: "x", Type: itypes.F64}})
	var dup *itypes.DuplicateRecordError
	require.ErrorAs(t, err, &dup)
}

func TestRegisterUnresolvedRecordRefErrors(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	_, err := reg.Register("a", []itypes.NamedType{{Name: "nested", Type: itypes.Record(99)}})
	var unresolved *itypes.UnresolvedRecordRefError
	require.ErrorAs(t, err, &unresolved)
}

func TestRegisterResolvesArrayOfEarlierRecord(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	pointID, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32}, {Name: "y", Type: itypes.S32},
	})
	require.NoError(t, err)

	_, err = reg.Register("path", []itypes.NamedType{
		{Name: "points", Type: itypes.Array(itypes.Record(pointID))},
	})
	require.NoError(t, err)
}

func TestITypeEqual(t *testing.T) {
	require.True(t, itypes.S32.Equal(itypes.S32))
	require.False(t, itypes.S32.Equal(itypes.U32))
	require.True(t, itypes.Array(itypes.String).Equal(itypes.Array(itypes.String)))
	require.False(t, itypes.Array(itypes.String).Equal(itypes.Array(itypes.ByteArray)))
	require.True(t, itypes.Record(1).Equal(itypes.Record(1)))
	require.False(t, itypes.Record(1).Equal(itypes.Record(2)))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "s8", itypes.KindS8.String())
	require.Equal(t, "byte_array", itypes.KindByteArray.String())
}

func TestFunctionSignatureOutput(t *testing.T) {
	noOutput := itypes.FunctionSignature{Name: "f"}
	_, ok := noOutput.Output()
	require.False(t, ok)

	withOutput := itypes.FunctionSignature{Name: "g", Outputs: []itypes.IType{itypes.S64}}
	out, ok := withOutput.Output()
	require.True(t, ok)
	require.Equal(t, itypes.S64, out)
}
