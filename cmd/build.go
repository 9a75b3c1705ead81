package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pyfreeze-tools/pkg/freeze"
)

var (
	buildManifestPath string
	buildProgramName  string
	buildRoot         string
	buildEntryScript  string
	buildEntryPoint   string
	buildPythonExe    string
	buildLibDir       string
	buildCompiler     string
	buildModulePath   []string
	buildExclude      []string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Resolves, compiles and bundles a Python program into dist/.",
	Run: func(cmdCobra *cobra.Command, args []string) {
		cfg, err := mergedConfig(buildManifestPath)
		if err != nil {
			log.Error("config", "validate", "error", "Invalid build configuration", "error", err)
			os.Exit(1)
		}

		if err := freeze.Run(cfg, log); err != nil {
			log.Error("system", "finish", "error", "Build failed", "error", err)
			os.Exit(1)
		}
	},
}

// mergedConfig layers CLI flags over the optional pyfreeze.yaml manifest.
// A flag that was set always wins over the manifest value.
func mergedConfig(manifestPath string) (freeze.Config, error) {
	var cfg freeze.Config
	if manifestPath != "" {
		loaded, err := freeze.LoadManifest(manifestPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if buildProgramName != "" {
		cfg.ProgramName = buildProgramName
	}
	if buildRoot != "" {
		cfg.BuildRoot = buildRoot
	}
	if buildEntryScript != "" {
		cfg.EntryScript = buildEntryScript
	}
	if buildEntryPoint != "" {
		cfg.EntryPoint = buildEntryPoint
	}
	if buildPythonExe != "" {
		cfg.PythonExe = buildPythonExe
	}
	if buildLibDir != "" {
		cfg.LibDir = buildLibDir
	}
	if buildCompiler != "" {
		cfg.Toolchain = buildCompiler
	}
	if len(buildModulePath) > 0 {
		cfg.ModulePath = buildModulePath
	}
	if len(buildExclude) > 0 {
		cfg.Exclude = buildExclude
	}
	return cfg, cfg.Validate()
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildManifestPath, "config", "", "Path to a pyfreeze.yaml build manifest.")
	buildCmd.Flags().StringVarP(&buildProgramName, "name", "n", "", "Output executable base name.")
	buildCmd.Flags().StringVar(&buildRoot, "build-root", "", "Directory for all intermediate and final artifacts.")
	buildCmd.Flags().StringVar(&buildEntryScript, "entry", "", "Path to the application's entry script.")
	buildCmd.Flags().StringVar(&buildEntryPoint, "entry-point", "", "Entry callable as \"pkg.module:callable\".")
	buildCmd.Flags().StringVar(&buildPythonExe, "python", "", "Interpreter to embed (default python3).")
	buildCmd.Flags().StringVar(&buildLibDir, "libpython-dir", "", "Directory containing the runtime shared library.")
	buildCmd.Flags().StringVar(&buildCompiler, "compiler", "", "C compiler driver override.")
	buildCmd.Flags().StringArrayVar(&buildModulePath, "module-path", []string{}, "Extra module search roots.")
	buildCmd.Flags().StringArrayVar(&buildExclude, "exclude", []string{}, "Glob patterns to exclude from copied trees.")
}
