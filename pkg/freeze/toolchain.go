package freeze

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pyfreeze-tools/pkg/buildlog"
)

// Toolchain abstracts the host C compiler/linker. Configuration is additive:
// later include or library dirs never replace earlier ones.
type Toolchain interface {
	AddIncludeDir(dir string)
	AddLibraryDir(dir string)
	AddLibrary(name string)
	Compile(src, outDir string) (string, error)
	LinkExecutable(objects []string, out string) error
}

type ccToolchain struct {
	cc          string
	includeDirs []string
	libraryDirs []string
	libraries   []string
	log         buildlog.Logger
}

// NewToolchain is the explicit per-build factory for the cc driver. The
// selector overrides $CC, which overrides the plain "cc" default.
func NewToolchain(selector string, log buildlog.Logger) Toolchain {
	cc := selector
	if cc == "" {
		cc = os.Getenv("CC")
	}
	if cc == "" {
		cc = "cc"
	}
	return &ccToolchain{cc: cc, log: log}
}

func (t *ccToolchain) AddIncludeDir(dir string) { t.includeDirs = append(t.includeDirs, dir) }
func (t *ccToolchain) AddLibraryDir(dir string) { t.libraryDirs = append(t.libraryDirs, dir) }
func (t *ccToolchain) AddLibrary(name string)   { t.libraries = append(t.libraries, name) }

// Compile compiles one source file to an object file in outDir.
func (t *ccToolchain) Compile(src, outDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	obj := filepath.Join(outDir, stem+".o")

	args := []string{"-c", src, "-o", obj}
	for _, dir := range t.includeDirs {
		args = append(args, "-I"+dir)
	}
	t.log.Debug("toolchain", "compile", "progress", "Compiling object", "src", src, "obj", obj)
	if err := t.run(args); err != nil {
		return "", err
	}
	return obj, nil
}

// LinkExecutable links the object files into the executable at out.
func (t *ccToolchain) LinkExecutable(objects []string, out string) error {
	args := append([]string{}, objects...)
	args = append(args, "-o", out)
	for _, dir := range t.libraryDirs {
		args = append(args, "-L"+dir)
	}
	for _, lib := range t.libraries {
		args = append(args, "-l"+lib)
	}
	t.log.Debug("toolchain", "link", "progress", "Linking executable", "out", out)
	return t.run(args)
}

func (t *ccToolchain) run(args []string) error {
	cmd := exec.Command(t.cc, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ToolchainError{Tool: t.cc, Args: args, Output: string(out), Err: err}
	}
	return nil
}

// runPatcher invokes a post-link binary patching tool, wrapping failures with
// the captured diagnostics like any other toolchain invocation.
func runPatcher(tool string, args ...string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("patcher %s not found on PATH: %w", tool, err)
	}
	cmd := exec.Command(path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ToolchainError{Tool: tool, Args: args, Output: string(out), Err: err}
	}
	return nil
}
