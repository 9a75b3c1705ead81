package freeze

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"pyfreeze-tools/pkg/buildlog"
)

// Zip entry timestamps are pinned so re-running on an unchanged module set
// produces an identical archive. 1980 is the zip format's floor.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Assembler turns a resolved module set into the bundle: a pylib.zip of
// bytecode mirroring the package hierarchy, plus native extensions copied
// loose into dist/lib/lib-dynload/.
type Assembler struct {
	layout  Layout
	comp    BytecodeCompiler
	log     buildlog.Logger
	workers int
}

func NewAssembler(layout Layout, comp BytecodeCompiler, log buildlog.Logger) *Assembler {
	return &Assembler{layout: layout, comp: comp, log: log, workers: runtime.NumCPU()}
}

// Assemble compiles and packs the module set, returning the archive path.
// Individual module compiles may fail without aborting the bundle; the run is
// fatal only when every source module fails.
func (a *Assembler) Assemble(modules map[string]Module) (string, error) {
	if err := os.MkdirAll(a.layout.StagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	if err := os.MkdirAll(a.layout.DynloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dynload dir: %w", err)
	}

	var source, native []Module
	for _, name := range sortedNames(modules) {
		mod := modules[name]
		switch mod.Kind {
		case ModuleSource:
			source = append(source, mod)
		case ModuleNative:
			native = append(native, mod)
		case ModuleInternal:
			// sys, builtins, etc - nothing to bundle
		}
	}

	merr := a.compileAll(source)
	if len(source) > 0 && len(merr.Errors) == len(source) {
		return "", fmt.Errorf("every module in the set failed to compile: %w", merr)
	}
	for _, err := range merr.Errors {
		a.log.Warn("bundle", "compile", "failure", "Module failed to compile, leaving it out", "error", err)
	}

	for _, mod := range native {
		dst := filepath.Join(a.layout.DynloadDir, filepath.Base(mod.Path))
		if err := copyFile(mod.Path, dst); err != nil {
			a.log.Warn("bundle", "copy", "skip", "Native module backing file could not be copied",
				"module", mod.Name, "path", mod.Path, "error", err)
			continue
		}
		a.log.Debug("bundle", "copy", "success", "Copied native module", "module", mod.Name, "dst", dst)
	}

	archivePath := a.layout.ArchivePath()
	if err := writeArchive(a.layout.StagingDir, archivePath); err != nil {
		return "", fmt.Errorf("failed to pack %s: %w", archivePath, err)
	}
	a.log.Info("bundle", "pack", "success", "Packed bytecode archive",
		"path", archivePath, "compiled", len(source)-len(merr.Errors), "native", len(native))
	return archivePath, nil
}

// compileAll fans the per-module bytecode compiles out over a worker pool.
// Modules are independent; the only shared state is the staging tree, whose
// directory creation is idempotent.
func (a *Assembler) compileAll(source []Module) *multierror.Error {
	workers := a.workers
	if workers > len(source) {
		workers = len(source)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan Module)
	var mu sync.Mutex
	var merr *multierror.Error
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mod := range jobs {
				if err := a.compileModule(mod); err != nil {
					mu.Lock()
					merr = multierror.Append(merr, err)
					mu.Unlock()
				}
			}
		}()
	}
	for _, mod := range source {
		jobs <- mod
	}
	close(jobs)
	wg.Wait()

	if merr == nil {
		return &multierror.Error{}
	}
	return merr
}

func (a *Assembler) compileModule(mod Module) error {
	dst := pycPath(a.layout.StagingDir, mod.Name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &ModuleCompileError{Module: mod.Name, Source: mod.Path, Err: err}
	}
	a.log.Debug("bundle", "compile", "progress", "Compiling module", "module", mod.Name, "dst", dst)
	if err := a.comp.Compile(mod.Path, dst); err != nil {
		return &ModuleCompileError{Module: mod.Name, Source: mod.Path, Err: err}
	}
	return nil
}

// pycPath maps a qualified name to its archive-relative bytecode file, with
// parent package segments preserved as directories.
func pycPath(root, name string) string {
	segments := strings.Split(name, ".")
	segments[len(segments)-1] += ".pyc"
	return filepath.Join(append([]string{root}, segments...)...)
}

func sortedNames(modules map[string]Module) []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeArchive packs a directory tree into a zip file. Entries are sorted and
// timestamps pinned, so equal input trees produce byte-identical archives.
// This is the single-writer phase after all per-module compiles complete.
func writeArchive(srcDir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var files []string
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	zw := zip.NewWriter(out)
	for _, rel := range files {
		hdr := &zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(srcDir, rel))
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return zw.Close()
}
