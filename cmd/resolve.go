package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"pyfreeze-tools/pkg/freeze"
)

var (
	resolvePythonExe  string
	resolveModulePath []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <entry_script>",
	Short: "Prints the static dependency closure of an entry script.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmdCobra *cobra.Command, args []string) {
		cfg := freeze.Config{
			EntryScript: args[0],
			PythonExe:   resolvePythonExe,
			ModulePath:  resolveModulePath,
		}
		modules, err := freeze.Resolve(cfg, log)
		if err != nil {
			log.Error("resolver", "resolve", "error", "Resolution failed", "error", err)
			os.Exit(1)
		}

		names := make([]string, 0, len(modules))
		for name := range modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			mod := modules[name]
			fmt.Printf("%-10s %-30s %s\n", mod.Kind, mod.Name, mod.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolvePythonExe, "python", "", "Interpreter to probe (default python3).")
	resolveCmd.Flags().StringArrayVar(&resolveModulePath, "module-path", []string{}, "Extra module search roots.")
}
