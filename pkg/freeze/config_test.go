package freeze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	manifest := `
program: demo
build_root: build
entry_script: app/main.py
entry_point: "app.main:run"
python: python3.11
module_path:
  - vendor
exclude:
  - "**/__pycache__/**"
`
	path := filepath.Join(t.TempDir(), "pyfreeze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

	cfg, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ProgramName)
	assert.Equal(t, "build", cfg.BuildRoot)
	assert.Equal(t, "app/main.py", cfg.EntryScript)
	assert.Equal(t, "app.main:run", cfg.EntryPoint)
	assert.Equal(t, "python3.11", cfg.PythonExe)
	assert.Equal(t, []string{"vendor"}, cfg.ModulePath)
	assert.Equal(t, []string{"**/__pycache__/**"}, cfg.Exclude)
	assert.NoError(t, cfg.Validate())
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{ProgramName: "demo", BuildRoot: "build", EntryScript: "main.py"}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing program", Config{BuildRoot: "build", EntryScript: "main.py"}},
		{"missing build root", Config{ProgramName: "demo", EntryScript: "main.py"}},
		{"missing entry script", Config{ProgramName: "demo", BuildRoot: "build"}},
		{"bad program name", Config{ProgramName: "de mo", BuildRoot: "build", EntryScript: "main.py"}},
		{"bad entry point", Config{ProgramName: "demo", BuildRoot: "build", EntryScript: "main.py", EntryPoint: "no-colon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestSplitEntryPoint(t *testing.T) {
	module, callable, err := SplitEntryPoint("app.main:run")
	require.NoError(t, err)
	assert.Equal(t, "app.main", module)
	assert.Equal(t, "run", callable)

	for _, bad := range []string{"app.main", "app:run:extra", "app..x:run", "app:123", "a b:run", "app:"} {
		_, _, err := SplitEntryPoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolvedEntryPointDefault(t *testing.T) {
	cfg := Config{EntryScript: filepath.Join("src", "server.py")}
	assert.Equal(t, "server:main", cfg.ResolvedEntryPoint())

	cfg.EntryPoint = "app.main:run"
	assert.Equal(t, "app.main:run", cfg.ResolvedEntryPoint())
}

func TestLayoutCreateIsIdempotent(t *testing.T) {
	layout := NewLayout(t.TempDir(), "test0001")
	require.NoError(t, layout.Create())
	require.NoError(t, layout.Create(), "a second run must not fail on pre-existing directories")

	assert.DirExists(t, layout.SrcDir)
	assert.DirExists(t, layout.StagingDir)
	assert.DirExists(t, layout.DistDir)
	assert.DirExists(t, layout.LibDir)
	assert.DirExists(t, layout.DynloadDir)
	assert.Equal(t, filepath.Join(layout.LibDir, "pylib.zip"), layout.ArchivePath())
}
