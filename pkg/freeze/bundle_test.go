package freeze

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyfreeze-tools/pkg/buildlog"
)

// fakeBytecodeCompiler derives deterministic "bytecode" from the source text
// so archive idempotence can be checked byte for byte.
type fakeBytecodeCompiler struct {
	failFor map[string]bool
}

func (c *fakeBytecodeCompiler) Compile(src, dst string) error {
	if c.failFor[filepath.Base(src)] {
		return errors.New("invalid syntax")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("pyc:"), data...), 0644)
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	layout := NewLayout(t.TempDir(), "test0001")
	require.NoError(t, layout.Create())
	return layout
}

func testModuleSet(t *testing.T, srcDir string) map[string]Module {
	t.Helper()
	writeSource(t, srcDir, "main.py", "import app\n")
	writeSource(t, srcDir, "app/__init__.py", "")
	writeSource(t, srcDir, "app/util.py", "def helper(): pass\n")
	native := writeSource(t, srcDir, "fast.cpython-311-darwin.so", "\x7fELF native bytes")
	return map[string]Module{
		"main":     {Name: "main", Path: filepath.Join(srcDir, "main.py"), Kind: ModuleSource},
		"app":      {Name: "app", Path: filepath.Join(srcDir, "app", "__init__.py"), Kind: ModuleSource},
		"app.util": {Name: "app.util", Path: filepath.Join(srcDir, "app", "util.py"), Kind: ModuleSource},
		"fast":     {Name: "fast", Path: native, Kind: ModuleNative},
		"sys":      {Name: "sys", Kind: ModuleInternal},
	}
}

func archiveEntries(t *testing.T, path string) map[string]bool {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	entries := make(map[string]bool)
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	return entries
}

func TestAssembleBundleLayout(t *testing.T) {
	layout := testLayout(t)
	modules := testModuleSet(t, t.TempDir())

	asm := NewAssembler(layout, &fakeBytecodeCompiler{}, buildlog.Create("test-bundle"))
	archivePath, err := asm.Assemble(modules)
	require.NoError(t, err)
	assert.Equal(t, layout.ArchivePath(), archivePath)

	entries := archiveEntries(t, archivePath)
	assert.True(t, entries["main.pyc"])
	assert.True(t, entries["app.pyc"], "package module keeps its dotted-name derived path")
	assert.True(t, entries["app/util.pyc"], "parent package segments become directories")
	assert.Len(t, entries, 3, "native and internal modules stay out of the archive")

	// Native pass-through: byte-identical copy beside the archive
	copied, err := os.ReadFile(filepath.Join(layout.DynloadDir, "fast.cpython-311-darwin.so"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x7fELF native bytes"), copied)
}

func TestAssembleIsIdempotent(t *testing.T) {
	layout := testLayout(t)
	modules := testModuleSet(t, t.TempDir())
	asm := NewAssembler(layout, &fakeBytecodeCompiler{}, buildlog.Create("test-bundle"))

	archivePath, err := asm.Assemble(modules)
	require.NoError(t, err)
	first, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	_, err = asm.Assemble(modules)
	require.NoError(t, err, "re-running on pre-existing directories must not fail")
	second, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	assert.Equal(t, first, second, "unchanged module set must produce an identical archive")
}

func TestAssembleToleratesPartialCompileFailure(t *testing.T) {
	layout := testLayout(t)
	modules := testModuleSet(t, t.TempDir())
	comp := &fakeBytecodeCompiler{failFor: map[string]bool{"util.py": true}}

	asm := NewAssembler(layout, comp, buildlog.Create("test-bundle"))
	archivePath, err := asm.Assemble(modules)
	require.NoError(t, err, "one failing module must not abort the bundle")

	entries := archiveEntries(t, archivePath)
	assert.True(t, entries["main.pyc"])
	assert.False(t, entries["app/util.pyc"])
}

func TestAssembleFailsWhenEveryModuleFails(t *testing.T) {
	layout := testLayout(t)
	srcDir := t.TempDir()
	writeSource(t, srcDir, "only.py", "broken(\n")
	modules := map[string]Module{
		"only": {Name: "only", Path: filepath.Join(srcDir, "only.py"), Kind: ModuleSource},
	}
	comp := &fakeBytecodeCompiler{failFor: map[string]bool{"only.py": true}}

	asm := NewAssembler(layout, comp, buildlog.Create("test-bundle"))
	_, err := asm.Assemble(modules)
	require.Error(t, err)
	var modErr *ModuleCompileError
	assert.ErrorAs(t, err, &modErr)
	assert.Equal(t, "only", modErr.Module)
}

func TestAssembleSkipsVanishedNativeModule(t *testing.T) {
	layout := testLayout(t)
	modules := map[string]Module{
		"gone": {Name: "gone", Path: filepath.Join(t.TempDir(), "gone.so"), Kind: ModuleNative},
	}

	asm := NewAssembler(layout, &fakeBytecodeCompiler{}, buildlog.Create("test-bundle"))
	_, err := asm.Assemble(modules)
	require.NoError(t, err, "a vanished optional copy is log-and-skip, not fatal")
	assert.NoFileExists(t, filepath.Join(layout.DynloadDir, "gone.so"))
}
