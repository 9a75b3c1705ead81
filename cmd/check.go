package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pyfreeze-tools/pkg/freeze"
)

var (
	checkProgramName string
	checkEntryPoint  string
)

var checkCmd = &cobra.Command{
	Use:   "check <build_root>",
	Short: "Validates a finished build root against the bundle layout contract.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmdCobra *cobra.Command, args []string) {
		if checkProgramName == "" || checkEntryPoint == "" {
			log.Error("check", "validate", "error", "Both --name and --entry-point are required.")
			os.Exit(1)
		}
		layout := freeze.NewLayout(args[0], "check")
		if err := freeze.CheckBundle(layout, checkProgramName, checkEntryPoint, log); err != nil {
			log.Error("check", "finish", "failure", "Bundle check failed", "error", err)
			os.Exit(1)
		}
		log.Info("check", "finish", "success", "Bundle layout is valid.")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkProgramName, "name", "n", "", "Executable base name to check for.")
	checkCmd.Flags().StringVar(&checkEntryPoint, "entry-point", "", "Entry callable as \"pkg.module:callable\".")
}
