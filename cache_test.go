package fce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengsuenyan/fce/itypes"
)

func TestInterfaceCachePutGetRemove(t *testing.T) {
	c := newInterfaceCache()

	_, ok := c.get("greeter")
	require.False(t, ok)

	c.put("greeter", ModuleInterface{Name: "greeter"})
	iface, ok := c.get("greeter")
	require.True(t, ok)
	require.Equal(t, "greeter", iface.Name)

	c.remove("greeter")
	_, ok = c.get("greeter")
	require.False(t, ok)
}

func TestInterfaceCacheList(t *testing.T) {
	c := newInterfaceCache()
	c.put("b", ModuleInterface{Name: "b"})
	c.put("a", ModuleInterface{Name: "a"})
	c.put("c", ModuleInterface{Name: "c"})

	list := c.list()
	require.Len(t, list, 3)
	require.Equal(t, []string{"b", "a", "c"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestInterfaceCacheListSkipsRemovedAndKeepsOrder(t *testing.T) {
	c := newInterfaceCache()
	c.put("b", ModuleInterface{Name: "b"})
	c.put("a", ModuleInterface{Name: "a"})
	c.remove("b")
	c.put("d", ModuleInterface{Name: "d"})

	list := c.list()
	require.Len(t, list, 2)
	require.Equal(t, []string{"a", "d"}, []string{list[0].Name, list[1].Name})
}

func TestModuleInterfaceFromProjectsSignaturesAndRecords(t *testing.T) {
	reg := itypes.NewRecordRegistry()
	id, err := reg.Register("point", []itypes.NamedType{
		{Name: "x", Type: itypes.S32},
		{Name: "y", Type: itypes.S32},
	})
	require.NoError(t, err)

	exports := []itypes.FunctionSignature{
		{
			Name:      "distance",
			Arguments: []itypes.NamedType{{Name: "p", Type: itypes.Record(id)}},
			Outputs:   []itypes.IType{itypes.F64},
		},
		{Name: "ping"},
	}

	iface := moduleInterfaceFrom("geo", reg, exports)
	require.Equal(t, "geo", iface.Name)
	require.Len(t, iface.Records, 1)
	require.Equal(t, "point", iface.Records[0].Name)
	require.Len(t, iface.Records[0].Fields, 2)

	require.Len(t, iface.Functions, 2)
	require.Equal(t, "distance", iface.Functions[0].Name)
	require.Equal(t, "f64", iface.Functions[0].Output)
	require.Equal(t, "record(1)", iface.Functions[0].Arguments[0].Type)
	require.Equal(t, "", iface.Functions[1].Output)
}
