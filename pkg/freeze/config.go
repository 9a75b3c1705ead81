package freeze

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	programNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	identifierRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Config describes one packaging run. It is constructed once from caller
// input and never mutated afterwards.
type Config struct {
	ProgramName string   `yaml:"program"`
	BuildRoot   string   `yaml:"build_root"`
	EntryScript string   `yaml:"entry_script"`
	EntryPoint  string   `yaml:"entry_point"` // "pkg.module:callable"
	PythonExe   string   `yaml:"python"`
	LibDir      string   `yaml:"libpython_dir"` // overrides the probed runtime library dir
	Toolchain   string   `yaml:"compiler"`      // overrides the cc driver
	ModulePath  []string `yaml:"module_path"`
	Exclude     []string `yaml:"exclude"`
}

// LoadManifest reads a pyfreeze.yaml build manifest.
func LoadManifest(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that flow into generated source text and
// filesystem paths. Identifier checks happen here, before any work starts.
func (c Config) Validate() error {
	if c.ProgramName == "" || c.BuildRoot == "" || c.EntryScript == "" {
		return fmt.Errorf("program name, build root and entry script are all required")
	}
	if !programNameRe.MatchString(c.ProgramName) {
		return fmt.Errorf("invalid program name %q", c.ProgramName)
	}
	if c.EntryPoint != "" {
		if _, _, err := SplitEntryPoint(c.EntryPoint); err != nil {
			return err
		}
	}
	return nil
}

// ResolvedEntryPoint returns the module:callable pair, defaulting to the
// entry script's stem and "main" when no entry point was given.
func (c Config) ResolvedEntryPoint() string {
	if c.EntryPoint != "" {
		return c.EntryPoint
	}
	stem := strings.TrimSuffix(filepath.Base(c.EntryScript), filepath.Ext(c.EntryScript))
	return stem + ":main"
}

// SplitEntryPoint parses "pkg.module:callable" into its module and callable
// parts, rejecting anything that is not plain dotted identifiers.
func SplitEntryPoint(entryPoint string) (module, callable string, err error) {
	parts := strings.Split(entryPoint, ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid entry point %q: want \"pkg.module:callable\"", entryPoint)
	}
	module, callable = parts[0], parts[1]
	for _, seg := range strings.Split(module, ".") {
		if !identifierRe.MatchString(seg) {
			return "", "", fmt.Errorf("invalid entry point module %q", module)
		}
	}
	if !identifierRe.MatchString(callable) {
		return "", "", fmt.Errorf("invalid entry point callable %q", callable)
	}
	return module, callable, nil
}

// Layout is the on-disk contract of a build root.
//
//	<root>/src/               generated native sources and objects
//	<root>/libs/lib/          bytecode staging tree (zipped into pylib.zip)
//	<root>/dist/<program>     final executable
//	<root>/dist/lib/          runtime library, support trees, pylib.zip
//	<root>/dist/lib/lib-dynload/  native extension modules
type Layout struct {
	Root       string
	SrcDir     string
	StagingDir string
	DistDir    string
	LibDir     string
	DynloadDir string
	StageDir   string // holds the linked executable until patching succeeds
}

// NewLayout derives every directory of the contract from the build root.
// buildID keys the staging location so a failed build never leaves a
// half-finished executable at dist/<program>.
func NewLayout(buildRoot, buildID string) Layout {
	dist := filepath.Join(buildRoot, "dist")
	lib := filepath.Join(dist, "lib")
	return Layout{
		Root:       buildRoot,
		SrcDir:     filepath.Join(buildRoot, "src"),
		StagingDir: filepath.Join(buildRoot, "libs", "lib"),
		DistDir:    dist,
		LibDir:     lib,
		DynloadDir: filepath.Join(lib, "lib-dynload"),
		StageDir:   filepath.Join(dist, ".stage-"+buildID),
	}
}

// Create makes every directory of the layout. MkdirAll keeps repeated runs
// from failing on pre-existing directories.
func (l Layout) Create() error {
	for _, dir := range []string{l.SrcDir, l.StagingDir, l.DistDir, l.LibDir, l.DynloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Executable is the final path of the linked, patched program.
func (l Layout) Executable(programName string) string {
	return filepath.Join(l.DistDir, programName)
}

// ArchivePath is the fixed bundle location of the bytecode archive.
func (l Layout) ArchivePath() string {
	return filepath.Join(l.LibDir, "pylib.zip")
}
