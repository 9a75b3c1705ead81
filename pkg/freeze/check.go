package freeze

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"pyfreeze-tools/pkg/buildlog"
)

// CheckBundle validates a finished build root against the bundle layout
// contract: executable present and runnable, runtime library in dist/lib/,
// pylib.zip readable with a bytecode entry for the entry module. All findings
// are collected before returning.
func CheckBundle(layout Layout, programName, entryPoint string, log buildlog.Logger) error {
	var merr *multierror.Error

	exe := layout.Executable(programName)
	if info, err := os.Stat(exe); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("executable missing: %w", err))
		log.Error("check", "validate", "failure", "Executable not found", "path", exe)
	} else if info.Mode().Perm()&0111 == 0 {
		merr = multierror.Append(merr, fmt.Errorf("executable %s is not executable", exe))
		log.Error("check", "validate", "failure", "Executable lacks exec permission", "path", exe)
	} else {
		log.Info("check", "validate", "ok", "Executable present", "path", exe)
	}

	if !libDirHasSharedLibrary(layout.LibDir) {
		merr = multierror.Append(merr, fmt.Errorf("no shared runtime library found in %s", layout.LibDir))
		log.Error("check", "validate", "failure", "No runtime library in lib dir", "dir", layout.LibDir)
	} else {
		log.Info("check", "validate", "ok", "Runtime library present", "dir", layout.LibDir)
	}

	archive := layout.ArchivePath()
	zr, err := zip.OpenReader(archive)
	if err != nil {
		merr = multierror.Append(merr, fmt.Errorf("bytecode archive unreadable: %w", err))
		log.Error("check", "validate", "failure", "Cannot open bytecode archive", "path", archive)
		return merr.ErrorOrNil()
	}
	defer zr.Close()

	module, _, err := SplitEntryPoint(entryPoint)
	if err != nil {
		merr = multierror.Append(merr, err)
		return merr.ErrorOrNil()
	}
	want := strings.ReplaceAll(module, ".", "/") + ".pyc"
	found := false
	for _, f := range zr.File {
		if f.Name == want {
			found = true
			break
		}
	}
	if !found {
		merr = multierror.Append(merr, fmt.Errorf("archive %s has no entry %s", archive, want))
		log.Error("check", "validate", "failure", "Entry module missing from archive", "entry", want)
	} else {
		log.Info("check", "validate", "ok", "Entry module present in archive", "entry", want, "files", len(zr.File))
	}

	return merr.ErrorOrNil()
}

func libDirHasSharedLibrary(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "lib") &&
			(strings.Contains(name, ".so") || strings.HasSuffix(name, ".dylib")) {
			return true
		}
	}
	return false
}
