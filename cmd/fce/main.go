// Command fce is the engine's CLI front-end: it loads every module found in
// a modules directory and exposes `invoke`/`interface` subcommands over the
// resulting registry.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mengsuenyan/fce"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps err to the CLI's exit code contract: 0 success, 1
// configuration/ABI mistakes, 2 everything else. cobra already printed the
// error, so this only needs the code.
func exitCodeFor(err error) int {
	if fe, ok := asFceError(err); ok {
		return fe.ExitCode()
	}
	return 2
}

func newRootCmd() *cobra.Command {
	var configPath, modulesDir string

	root := &cobra.Command{
		Use:           "fce",
		Short:         "Run and introspect WebAssembly compute modules",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the engine's TOML configuration file")
	root.PersistentFlags().StringVar(&modulesDir, "modules-dir", "", "directory of *.wasm modules (overrides config's modules_dir)")

	log := fce.NewLogger()

	root.AddCommand(newInvokeCmd(&configPath, &modulesDir, log))
	root.AddCommand(newInterfaceCmd(&configPath, &modulesDir, log))
	return root
}
