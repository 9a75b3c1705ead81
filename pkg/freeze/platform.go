package freeze

// Strategy bundles the two platform-dependent pieces of a build: naming the
// shared runtime library file and patching the executable's load path so it
// resolves relative to the executable plus a fixed lib/ suffix. Adding a
// platform means registering a new strategy, not editing branch logic.
type Strategy interface {
	SharedLibFile(base string) string
	PatchLoadPath(exe, libFile string) error
}

var strategies = map[string]Strategy{
	"darwin": darwinStrategy{},
	"linux":  linuxStrategy{},
}

// StrategyFor looks up the patching strategy for a host platform. The lookup
// happens before any toolchain work so an unsupported host fails cheaply.
func StrategyFor(goos string) (Strategy, error) {
	strat, ok := strategies[goos]
	if !ok {
		return nil, &UnsupportedPlatformError{GOOS: goos}
	}
	return strat, nil
}

type darwinStrategy struct{}

func (darwinStrategy) SharedLibFile(base string) string {
	return "lib" + base + ".dylib"
}

// PatchLoadPath rewrites the @rpath reference the linker recorded into one
// relative to the executable's own directory.
func (darwinStrategy) PatchLoadPath(exe, libFile string) error {
	return runPatcher("install_name_tool",
		"-change",
		"@rpath/"+libFile,
		"@executable_path/lib/"+libFile,
		exe,
	)
}

type linuxStrategy struct{}

func (linuxStrategy) SharedLibFile(base string) string {
	return "lib" + base + ".so"
}

func (linuxStrategy) PatchLoadPath(exe, libFile string) error {
	return runPatcher("patchelf", "--set-rpath", "$ORIGIN/lib", exe)
}

