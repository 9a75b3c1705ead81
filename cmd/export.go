package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pyfreeze-tools/pkg/freeze"
)

var (
	exportProgramName string
	exportExclude     []string
)

var exportCmd = &cobra.Command{
	Use:   "export <build_root>",
	Short: "Packs a finished dist/ tree into a tar.zst for distribution.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmdCobra *cobra.Command, args []string) {
		if exportProgramName == "" {
			log.Error("archive", "validate", "error", "--name is required.")
			os.Exit(1)
		}
		layout := freeze.NewLayout(args[0], "export")
		outPath, err := freeze.ExportDist(layout, exportProgramName, exportExclude, log)
		if err != nil {
			log.Error("archive", "pack", "error", "Export failed", "error", err)
			os.Exit(1)
		}
		log.Info("archive", "finish", "success", "Distribution archive written", "path", outPath)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportProgramName, "name", "n", "", "Executable base name of the build.")
	exportCmd.Flags().StringArrayVar(&exportExclude, "exclude", []string{}, "Glob patterns to exclude from the archive.")
}
