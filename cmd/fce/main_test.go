package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce"
	"github.com/mengsuenyan/fce/internal/fceerr"
)

func TestExitCodeForFceError(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(fceerr.NoSuchModule("m")))
	require.Equal(t, 2, exitCodeFor(fceerr.JsonSchemaMismatch("bad")))
}

func TestExitCodeForPlainErrorDefaultsToTwo(t *testing.T) {
	require.Equal(t, 2, exitCodeFor(errors.New("boom")))
}

func TestAsFceErrorUnwrapsWrappedError(t *testing.T) {
	fe, ok := asFceError(fceerr.ModuleBroken("m"))
	require.True(t, ok)
	require.Equal(t, fceerr.CodeModuleBroken, fe.Code)

	_, ok = asFceError(errors.New("plain"))
	require.False(t, ok)
}

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["invoke"])
	require.True(t, names["interface"])
}

func TestBootstrapWithoutModulesDirReturnsEmptyRegistry(t *testing.T) {
	log := fce.NewLogger()
	reg, err := bootstrap(context.Background(), "", "", log)
	require.NoError(t, err)
	require.NotNil(t, reg)
	require.Empty(t, reg.Interfaces())
}

func TestBootstrapWithMissingModulesDirErrors(t *testing.T) {
	log := fce.NewLogger()
	_, err := bootstrap(context.Background(), "", "/nonexistent/path/for/fce-test", log)
	require.Error(t, err)
}
