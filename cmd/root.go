package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pyfreeze-tools/pkg/buildlog"
)

var (
	log buildlog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pyfreeze",
	Short: "Packages a Python application into a self-contained native executable.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = buildlog.Create("pyfreeze")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log.Logger != nil { // Check if logger was initialized
			log.Error("system", "start", "error", "Failed to execute command", "error", err)
		}
		os.Exit(1)
	}
}
