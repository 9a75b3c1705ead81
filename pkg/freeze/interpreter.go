package freeze

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"pyfreeze-tools/pkg/buildlog"
)

// probeScript is executed by the target interpreter once per build. It dumps
// everything the pipeline needs to know about the runtime as a single JSON
// object on stdout.
const probeScript = `import json, platform, sys, sysconfig
print(json.dumps({
    "implementation": platform.python_implementation(),
    "version": sysconfig.get_python_version(),
    "prefix": sys.prefix,
    "exec_prefix": sys.exec_prefix,
    "base_prefix": sys.base_prefix,
    "base_exec_prefix": sys.base_exec_prefix,
    "include": sysconfig.get_path("include"),
    "platinclude": sysconfig.get_path("platinclude"),
    "stdlib": sysconfig.get_path("stdlib"),
    "purelib": sysconfig.get_path("purelib"),
    "libdir": sysconfig.get_config_var("LIBDIR") or "",
    "ldlibrary": sysconfig.get_config_var("INSTSONAME") or sysconfig.get_config_var("LDLIBRARY") or "",
    "ext_suffix": sysconfig.get_config_var("EXT_SUFFIX") or ".so",
    "builtins": list(sys.builtin_module_names),
}))
`

// Interpreter holds the probed facts about the Python runtime being embedded.
// Built once per run by ProbeInterpreter and passed explicitly to the stages
// that need it.
type Interpreter struct {
	Exe            string
	Implementation string
	Version        string
	Prefix         string
	ExecPrefix     string
	BasePrefix     string
	BaseExecPrefix string
	IncludeDir     string
	PlatIncludeDir string
	StdlibDir      string
	PurelibDir     string
	LibDir         string
	LDLibrary      string
	ExtSuffix      string
	Builtins       map[string]bool
}

type probeResult struct {
	Implementation string   `json:"implementation"`
	Version        string   `json:"version"`
	Prefix         string   `json:"prefix"`
	ExecPrefix     string   `json:"exec_prefix"`
	BasePrefix     string   `json:"base_prefix"`
	BaseExecPrefix string   `json:"base_exec_prefix"`
	Include        string   `json:"include"`
	PlatInclude    string   `json:"platinclude"`
	Stdlib         string   `json:"stdlib"`
	Purelib        string   `json:"purelib"`
	LibDir         string   `json:"libdir"`
	LDLibrary      string   `json:"ldlibrary"`
	ExtSuffix      string   `json:"ext_suffix"`
	Builtins       []string `json:"builtins"`
}

// ProbeInterpreter runs the probe script against the given interpreter
// executable and returns the parsed result.
func ProbeInterpreter(exe string, log buildlog.Logger) (*Interpreter, error) {
	if exe == "" {
		exe = "python3"
	}
	cmd := exec.Command(exe, "-c", probeScript)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to probe interpreter %s: %w", exe, err)
	}
	interp, err := parseProbe(exe, out)
	if err != nil {
		return nil, err
	}
	log.Debug("interp", "probe", "success", "Probed target interpreter",
		"exe", exe, "implementation", interp.Implementation, "version", interp.Version)
	return interp, nil
}

func parseProbe(exe string, out []byte) (*Interpreter, error) {
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("failed to parse interpreter probe output: %w", err)
	}
	builtins := make(map[string]bool, len(res.Builtins))
	for _, name := range res.Builtins {
		builtins[name] = true
	}
	return &Interpreter{
		Exe:            exe,
		Implementation: res.Implementation,
		Version:        res.Version,
		Prefix:         res.Prefix,
		ExecPrefix:     res.ExecPrefix,
		BasePrefix:     res.BasePrefix,
		BaseExecPrefix: res.BaseExecPrefix,
		IncludeDir:     res.Include,
		PlatIncludeDir: res.PlatInclude,
		StdlibDir:      res.Stdlib,
		PurelibDir:     res.Purelib,
		LibDir:         res.LibDir,
		LDLibrary:      res.LDLibrary,
		ExtSuffix:      res.ExtSuffix,
		Builtins:       builtins,
	}, nil
}

// IsPyPy reports whether the probed runtime is PyPy, which links against its
// own interpreter-core library and ships its standard library as plain source.
func (in *Interpreter) IsPyPy() bool {
	return in.Implementation == "PyPy"
}

// LinkLibrary is the platform-normalized base name passed to the linker,
// matching the runtime library copied into dist/lib/.
func (in *Interpreter) LinkLibrary() string {
	if in.IsPyPy() {
		return "pypy3-c"
	}
	return "python" + in.Version
}

// LibraryFile is the file name of the shared runtime library, preferring the
// name the interpreter itself reports over the platform naming convention.
func (in *Interpreter) LibraryFile(strat Strategy) string {
	if in.LDLibrary != "" && !in.IsPyPy() {
		return in.LDLibrary
	}
	return strat.SharedLibFile(in.LinkLibrary())
}

// InVirtualEnv reports whether the interpreter runs from a virtualenv, in
// which case the base installation's include and lib dirs alone may be
// incomplete.
func (in *Interpreter) InVirtualEnv() bool {
	return in.ExecPrefix != in.BaseExecPrefix
}

// BytecodeCompiler compiles a single Python source file into a bytecode file
// at an explicit destination. The default implementation shells out to the
// probed interpreter; tests substitute their own.
type BytecodeCompiler interface {
	Compile(src, dst string) error
}

const pycScript = `import py_compile, sys
py_compile.compile(sys.argv[1], cfile=sys.argv[2], doraise=True)
`

type pycCompiler struct {
	exe string
}

// NewBytecodeCompiler returns the exec-backed compiler for this interpreter.
func (in *Interpreter) NewBytecodeCompiler() BytecodeCompiler {
	return &pycCompiler{exe: in.Exe}
}

func (c *pycCompiler) Compile(src, dst string) error {
	cmd := exec.Command(c.exe, "-c", pycScript, src, dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ToolchainError{
			Tool:   c.exe,
			Args:   []string{"py_compile", filepath.Base(src)},
			Output: string(out),
			Err:    err,
		}
	}
	return nil
}
