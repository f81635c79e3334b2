package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mengsuenyan/fce/internal/fceerr"
	"github.com/mengsuenyan/fce/internal/jsoncodec"
)

func newInvokeCmd(configPath, modulesDir *string, log *logrus.Logger) *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "invoke <module> <function>",
		Short: "Call an exported function of a loaded module, passing JSON arguments and printing a JSON result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleName, function := args[0], args[1]
			ctx := cmd.Context()

			reg, err := bootstrap(ctx, *configPath, *modulesDir, log)
			if err != nil {
				return err
			}

			sig, ok := reg.Signature(moduleName, function)
			if !ok {
				return fceerr.MissingFunction(moduleName, function)
			}
			records, _ := reg.Records(moduleName)

			ivArgs, err := jsoncodec.Decode([]byte(argsJSON), sig, records)
			if err != nil {
				return err
			}

			out, err := reg.Call(ctx, moduleName, function, ivArgs)
			if err != nil {
				return err
			}

			body, err := jsoncodec.Encode(out, records)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "[]", "JSON array of arguments")
	return cmd
}
