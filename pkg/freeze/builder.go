package freeze

import (
	"fmt"
	"os"
	"path/filepath"

	"pyfreeze-tools/pkg/buildlog"
)

// Builder drives the native toolchain: configures include and library paths,
// copies the runtime library and support trees into the bundle, compiles and
// links the shim sources, and patches the result's load path. Steps for one
// executable are strictly sequential; independent builds are independent.
type Builder struct {
	cfg    Config
	layout Layout
	interp *Interpreter
	tc     Toolchain
	strat  Strategy
	log    buildlog.Logger
}

func NewBuilder(cfg Config, layout Layout, interp *Interpreter, tc Toolchain, strat Strategy, log buildlog.Logger) *Builder {
	return &Builder{cfg: cfg, layout: layout, interp: interp, tc: tc, strat: strat, log: log}
}

// Build produces the patched executable at dist/<program>. The executable is
// linked into a staging directory and only renamed into place after the
// load-path patch succeeds, so a failed build never leaves a runnable-looking
// artifact at the final path.
func (b *Builder) Build(shim *ShimSources) (string, error) {
	libDir, err := b.runtimeLibDir()
	if err != nil {
		return "", err
	}
	b.configureToolchain(libDir)

	if b.interp.IsPyPy() {
		if err := b.copySupportTrees(libDir); err != nil {
			return "", err
		}
	}

	libFile := b.interp.LibraryFile(b.strat)
	if err := b.copyRuntimeLibrary(libDir, libFile); err != nil {
		return "", err
	}
	b.tc.AddLibraryDir(b.layout.LibDir)
	b.tc.AddLibrary(b.interp.LinkLibrary())

	declObj, err := b.tc.Compile(shim.DeclarationPath, b.layout.SrcDir)
	if err != nil {
		return "", err
	}
	mainObj, err := b.tc.Compile(shim.MainPath, b.layout.SrcDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.layout.StageDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create stage dir %s: %w", b.layout.StageDir, err)
	}
	defer os.RemoveAll(b.layout.StageDir)

	stagedExe := filepath.Join(b.layout.StageDir, b.cfg.ProgramName)
	if err := b.tc.LinkExecutable([]string{declObj, mainObj}, stagedExe); err != nil {
		return "", err
	}

	b.log.Info("toolchain", "patch", "progress", "Patching runtime library load path",
		"exe", stagedExe, "lib", libFile)
	if err := b.strat.PatchLoadPath(stagedExe, libFile); err != nil {
		return "", err
	}

	finalExe := b.layout.Executable(b.cfg.ProgramName)
	if err := os.Rename(stagedExe, finalExe); err != nil {
		return "", fmt.Errorf("failed to move executable into place: %w", err)
	}
	b.log.Info("toolchain", "link", "success", "Executable built", "path", finalExe)
	return finalExe, nil
}

func (b *Builder) runtimeLibDir() (string, error) {
	dir := b.cfg.LibDir
	if dir == "" {
		dir = b.interp.LibDir
	}
	if dir == "" {
		return "", fmt.Errorf("runtime library directory is unknown: interpreter reported none and no override was given")
	}
	return dir, nil
}

func (b *Builder) configureToolchain(libDir string) {
	b.tc.AddIncludeDir(b.interp.IncludeDir)
	if b.interp.PlatIncludeDir != "" && b.interp.PlatIncludeDir != b.interp.IncludeDir {
		b.tc.AddIncludeDir(b.interp.PlatIncludeDir)
	}
	b.tc.AddLibraryDir(libDir)

	// Virtualenv workaround: the base install's dirs alone may be incomplete,
	// so the exec prefix's dirs are added on top, never instead.
	if b.interp.InVirtualEnv() {
		b.tc.AddIncludeDir(filepath.Join(b.interp.ExecPrefix, "include"))
		b.tc.AddLibraryDir(filepath.Join(b.interp.ExecPrefix, "lib"))
	}
}

// copySupportTrees mirrors PyPy's plain-source standard library next to the
// bundled runtime. PyPy cannot run outside its install tree without these.
func (b *Builder) copySupportTrees(libDir string) error {
	base := filepath.Dir(libDir)
	for _, tree := range []string{"lib_pypy", "lib-python"} {
		src := filepath.Join(base, tree)
		dst := filepath.Join(b.layout.LibDir, tree)
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("support tree %s missing: %w", src, err)
		}
		os.RemoveAll(dst)
		b.log.Info("file", "copy", "progress", "Copying interpreter support tree", "src", src, "dst", dst)
		if err := copyTree(src, dst, b.cfg.Exclude); err != nil {
			return fmt.Errorf("failed to copy support tree %s: %w", src, err)
		}
	}
	return nil
}

func (b *Builder) copyRuntimeLibrary(libDir, libFile string) error {
	src := filepath.Join(libDir, libFile)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("runtime library %s not found: %w", src, err)
	}
	dst := filepath.Join(b.layout.LibDir, libFile)
	b.log.Info("file", "copy", "progress", "Copying runtime shared library", "src", src, "dst", dst)
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy runtime library: %w", err)
	}
	return nil
}
