package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mengsuenyan/fce"
)

func newInterfaceCmd(configPath, modulesDir *string, log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "interface [module]",
		Short: "Print the interface (exports and record types) of one loaded module, or every loaded module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := bootstrap(ctx, *configPath, *modulesDir, log)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				iface, ok := reg.Interface(args[0])
				if !ok {
					return fmt.Errorf("no such module %q", args[0])
				}
				printInterface(cmd, iface)
				return nil
			}
			for _, iface := range reg.Interfaces() {
				printInterface(cmd, iface)
			}
			return nil
		},
	}
}

func printInterface(cmd *cobra.Command, iface fce.ModuleInterface) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "module %s\n", iface.Name)
	for _, r := range iface.Records {
		fmt.Fprintf(out, "  record %s\n", r.Name)
		for _, f := range r.Fields {
			fmt.Fprintf(out, "    %s: %s\n", f.Name, f.Type)
		}
	}
	for _, f := range iface.Functions {
		args := ""
		for i, a := range f.Arguments {
			if i > 0 {
				args += ", "
			}
			args += a.Name + ": " + a.Type
		}
		output := f.Output
		if output == "" {
			output = "()"
		}
		fmt.Fprintf(out, "  fn %s(%s) -> %s\n", f.Name, args, output)
	}
}
