package freeze

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pyfreeze-tools/pkg/buildlog"
)

// Templates is the versioned constant data a ShimGenerator substitutes into.
// Passing it explicitly keeps concurrent builds with different entry points
// from sharing any ambient state.
type Templates struct {
	Version     string
	EntrySymbol string // the fixed native-callable entry contract symbol
	Declaration string
	MainSource  string
	Bootstrap   string
}

// DefaultTemplates generates the standard py_main entry contract:
// int py_main(int argc, char *argv[]), shared structurally by the generated
// main and the embedding runtime without a common compilation unit.
var DefaultTemplates = Templates{
	Version:     "1",
	EntrySymbol: "py_main",
	Declaration: `#ifndef PYFREEZE_DLLEXPORT
#  if defined(_MSC_VER)
#    define PYFREEZE_DLLEXPORT extern __declspec(dllimport)
#  else
#    define PYFREEZE_DLLEXPORT extern
#  endif
#endif

PYFREEZE_DLLEXPORT int @SYMBOL@(int argc, char *argv[]);
`,
	MainSource: `int @SYMBOL@(int argc, char *argv[]);

int main(int argc, char *argv[]) {
    return @SYMBOL@(argc, argv);
}
`,
	// Exit-status coercion: int passes through (bools excluded), None maps
	// to 0, anything else logs one line to stderr and maps to 1.
	Bootstrap: `from entry_point import ffi

@ffi.def_extern()
def @SYMBOL@(argc, argv):
    import importlib
    import sys
    sys.argv[:] = [ffi.string(argv[i]).decode() for i in range(argc)]
    target = importlib.import_module("@MODULE@")
    result = getattr(target, "@CALLABLE@")(sys.argv[1:])
    if result is None:
        return 0
    if isinstance(result, int) and not isinstance(result, bool):
        return result
    sys.stderr.write("@MODULE@:@CALLABLE@ returned {!r}; exiting 1\n".format(result))
    return 1
`,
}

// ShimSources names the artifacts one generation run produced.
type ShimSources struct {
	DeclarationPath string // compilable bridging declaration TU
	MainPath        string // compilable main TU
	BootstrapPath   string // runtime-side bootstrap, consumed by the embedding layer
	Bootstrap       string
}

// ShimGenerator synthesizes the native and runtime-side glue for one program.
type ShimGenerator struct {
	tmpl Templates
	log  buildlog.Logger
}

func NewShimGenerator(tmpl Templates, log buildlog.Logger) *ShimGenerator {
	return &ShimGenerator{tmpl: tmpl, log: log}
}

// Generate writes the declaration TU, the main TU, and the bootstrap snippet
// into srcDir. Inputs are validated as identifiers before any substitution so
// generated source can never carry injected text.
func (g *ShimGenerator) Generate(srcDir, programName, entryPoint string) (*ShimSources, error) {
	if !programNameRe.MatchString(programName) {
		return nil, fmt.Errorf("invalid program name %q", programName)
	}
	module, callable, err := SplitEntryPoint(entryPoint)
	if err != nil {
		return nil, err
	}

	sub := strings.NewReplacer(
		"@SYMBOL@", g.tmpl.EntrySymbol,
		"@MODULE@", module,
		"@CALLABLE@", callable,
	)

	out := &ShimSources{
		DeclarationPath: filepath.Join(srcDir, "entry_point.c"),
		MainPath:        filepath.Join(srcDir, programName+".c"),
		BootstrapPath:   filepath.Join(srcDir, "bootstrap.py"),
		Bootstrap:       sub.Replace(g.tmpl.Bootstrap),
	}

	files := []struct {
		path, content string
	}{
		{out.DeclarationPath, sub.Replace(g.tmpl.Declaration)},
		{out.MainPath, sub.Replace(g.tmpl.MainSource)},
		{out.BootstrapPath, out.Bootstrap},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write generated source %s: %w", f.path, err)
		}
	}

	g.log.Info("shim", "generate", "success", "Generated shim sources",
		"dir", srcDir, "symbol", g.tmpl.EntrySymbol, "entryPoint", entryPoint, "templates", g.tmpl.Version)
	return out, nil
}
