package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce"
)

func TestPrintInterfaceFormatsRecordsAndFunctions(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	iface := fce.ModuleInterface{
		Name: "geo",
		Records: []fce.RecordInterface{
			{Name: "point", Fields: []fce.ArgumentInterface{{Name: "x", Type: "s32"}, {Name: "y", Type: "s32"}}},
		},
		Functions: []fce.FunctionInterface{
			{Name: "distance", Arguments: []fce.ArgumentInterface{{Name: "p", Type: "record(1)"}}, Output: "f64"},
			{Name: "ping", Output: ""},
		},
	}

	printInterface(cmd, iface)
	out := buf.String()

	require.True(t, strings.Contains(out, "module geo"))
	require.True(t, strings.Contains(out, "record point"))
	require.True(t, strings.Contains(out, "x: s32"))
	require.True(t, strings.Contains(out, "fn distance(p: record(1)) -> f64"))
	require.True(t, strings.Contains(out, "fn ping() -> ()"))
}
