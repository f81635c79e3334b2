package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce/internal/fcetest"
	"github.com/mengsuenyan/fce/internal/memory"
	"github.com/mengsuenyan/fce/itypes"
)

func TestStringRoundTrip(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	ctx := context.Background()

	ptr, size, err := memory.LowerString(ctx, mem, h, "hello, fce")
	require.NoError(t, err)

	v, err := memory.LiftString(ctx, mem, ptr, size)
	require.NoError(t, err)
	require.Equal(t, "hello, fce", v.Str())
}

func TestByteArrayRoundTrip(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	ctx := context.Background()

	in := []byte{0x00, 0x01, 0xff, 0x10}
	ptr, size, err := memory.LowerByteArray(ctx, mem, h, in)
	require.NoError(t, err)

	v, err := memory.LiftByteArray(ctx, mem, ptr, size)
	require.NoError(t, err)
	require.Equal(t, in, v.Bytes())
}

func TestArrayRoundTrip(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	ctx := context.Background()
	reg := itypes.NewRecordRegistry()

	elems := []itypes.IValue{itypes.S32Value(1), itypes.S32Value(2), itypes.S32Value(3)}
	ptr, byteLen, err := memory.LowerArray(ctx, mem, h, reg, itypes.S32, elems)
	require.NoError(t, err)

	v, err := memory.LiftArray(ctx, mem, reg, itypes.S32, ptr, byteLen)
	require.NoError(t, err)
	require.Equal(t, elems, v.Elements())
}

func TestWriteArrayAtRoundTripsThroughLiftArray(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	ctx := context.Background()
	reg := itypes.NewRecordRegistry()

	elems := []itypes.IValue{itypes.U8Value(9), itypes.U8Value(8)}
	stride, err := memory.ElementStride(reg, itypes.U8)
	require.NoError(t, err)
	require.EqualValues(t, 1, stride)

	ptr, err := h.Allocate(ctx, stride*uint32(len(elems)))
	require.NoError(t, err)
	total, err := memory.WriteArrayAt(ctx, mem, h, reg, ptr, itypes.U8, elems)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	v, err := memory.LiftArray(ctx, mem, reg, itypes.U8, ptr, total)
	require.NoError(t, err)
	require.Equal(t, elems, v.Elements())
}

func TestRecordRoundTrip(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	ctx := context.Background()
	reg := itypes.NewRecordRegistry()

	id, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32},
		{Name: "y", Type: itypes.S32},
		{Name: "label", Type: itypes.String},
	})
	require.NoError(t, err)

	rv := itypes.RecordValue(id, []itypes.IValue{
		itypes.S32Value(3), itypes.S32Value(-4), itypes.StringValue("origin-ish"),
	})

	ptr, err := memory.LowerRecord(ctx, mem, h, reg, id, rv)
	require.NoError(t, err)

	out, err := memory.LiftRecord(ctx, mem, reg, id, ptr)
	require.NoError(t, err)
	require.Equal(t, id, out.RecordID())
	fields := out.Fields()
	require.Len(t, fields, 3)
	require.EqualValues(t, 3, fields[0].AsI64())
	require.EqualValues(t, -4, fields[1].AsI64())
	require.Equal(t, "origin-ish", fields[2].Str())
}

func TestLiftStringInvalidUtf8(t *testing.T) {
	mem := fcetest.NewMemory(1 << 16)
	ctx := context.Background()
	require.True(t, mem.Write(ctx, 0, []byte{0xff, 0xfe, 0xfd}))

	_, err := memory.LiftString(ctx, mem, 0, 3)
	require.Error(t, err)
}
