package abi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/mengsuenyan/fce/internal/abi"
	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/fcetest"
)

func TestLoadSucceedsWithAllSixHelpers(t *testing.T) {
	mem := fcetest.NewMemory(65536)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestLoadMissingHelperErrors(t *testing.T) {
	mem := fcetest.NewMemory(65536)
	mod := fcetest.NewModule("guest", mem)
	mod.Export("allocate", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		func(context.Context, []uint64) ([]uint64, error) { return []uint64{0}, nil })

	_, err := abi.Load(mod)
	require.Error(t, err)
	var fe *fceerr.Error
	require.ErrorAs(t, err, &fe)
}

func TestLoadSignatureMismatchErrors(t *testing.T) {
	mem := fcetest.NewMemory(65536)
	mod := fcetest.NewModule("guest", mem)
	_, err := fcetest.WithABI(mod)
	require.NoError(t, err)

	// Re-export allocate with a wrong result type.
	mod.Export("allocate", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64},
		func(context.Context, []uint64) ([]uint64, error) { return []uint64{0}, nil })

	_, err = abi.Load(mod)
	require.Error(t, err)
}

func TestHandlesRoundTripAllocateAndResultRegister(t *testing.T) {
	mem := fcetest.NewMemory(65536)
	mod := fcetest.NewModule("guest", mem)
	h, err := fcetest.WithABI(mod)
	require.NoError(t, err)

	ctx := context.Background()
	ptr, err := h.Allocate(ctx, 16)
	require.NoError(t, err)
	require.GreaterOrEqual(t, ptr, uint32(8))

	require.NoError(t, h.SetResultPtr(ctx, ptr))
	require.NoError(t, h.SetResultSize(ctx, 16))

	gotPtr, err := h.GetResultPtr(ctx)
	require.NoError(t, err)
	require.Equal(t, ptr, gotPtr)

	gotSize, err := h.GetResultSize(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 16, gotSize)

	require.NoError(t, h.Deallocate(ctx, ptr, 16))
}
