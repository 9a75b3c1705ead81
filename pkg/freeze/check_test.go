package freeze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyfreeze-tools/pkg/buildlog"
)

func writeValidBundle(t *testing.T, layout Layout) {
	t.Helper()
	require.NoError(t, os.WriteFile(layout.Executable("demo"), []byte("exe"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.LibDir, "libpython3.11.so"), []byte("lib"), 0644))

	writeSource(t, layout.StagingDir, "app/main.pyc", "pyc bytes")
	require.NoError(t, writeArchive(layout.StagingDir, layout.ArchivePath()))
}

func TestCheckBundleValid(t *testing.T) {
	layout := testLayout(t)
	writeValidBundle(t, layout)
	assert.NoError(t, CheckBundle(layout, "demo", "app.main:run", buildlog.Create("test-check")))
}

func TestCheckBundleMissingExecutable(t *testing.T) {
	layout := testLayout(t)
	writeValidBundle(t, layout)
	require.NoError(t, os.Remove(layout.Executable("demo")))

	err := CheckBundle(layout, "demo", "app.main:run", buildlog.Create("test-check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable missing")
}

func TestCheckBundleMissingRuntimeLibrary(t *testing.T) {
	layout := testLayout(t)
	writeValidBundle(t, layout)
	require.NoError(t, os.Remove(filepath.Join(layout.LibDir, "libpython3.11.so")))

	err := CheckBundle(layout, "demo", "app.main:run", buildlog.Create("test-check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shared runtime library")
}

func TestCheckBundleMissingEntryModule(t *testing.T) {
	layout := testLayout(t)
	writeValidBundle(t, layout)

	err := CheckBundle(layout, "demo", "app.other:run", buildlog.Create("test-check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app/other.pyc")
}

func TestCheckBundleUnreadableArchive(t *testing.T) {
	layout := testLayout(t)
	writeValidBundle(t, layout)
	require.NoError(t, os.WriteFile(layout.ArchivePath(), []byte("not a zip"), 0644))

	err := CheckBundle(layout, "demo", "app.main:run", buildlog.Create("test-check"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive unreadable")
}
