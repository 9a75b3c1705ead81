package freeze

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"pyfreeze-tools/pkg/buildlog"
)

// ModuleKind classifies how a discovered module is handled downstream.
type ModuleKind int

const (
	// ModuleSource is interpretable text, compiled to bytecode for the bundle.
	ModuleSource ModuleKind = iota
	// ModuleNative is a compiled extension, copied verbatim.
	ModuleNative
	// ModuleInternal is a runtime built-in with no backing file, skipped.
	ModuleInternal
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleSource:
		return "source"
	case ModuleNative:
		return "native"
	case ModuleInternal:
		return "internal"
	}
	return "unknown"
}

// Module is one discovered dependency. Instances are created once per
// resolution run and read-only afterwards.
type Module struct {
	Name string // dotted qualified name, unique within a run
	Path string // backing file; empty for internal modules
	Kind ModuleKind
}

var (
	importStmtRe = regexp.MustCompile(`^\s*import\s+(.+)$`)
	fromStmtRe   = regexp.MustCompile(`^\s*from\s+([.\w]+)\s+import\s+(.+)$`)
)

// Resolver discovers the transitive import closure of an entry script via
// static analysis of import statements.
type Resolver struct {
	searchPath  []string
	extSuffixes []string
	builtins    map[string]bool
	log         buildlog.Logger
}

// NewResolver builds a resolver from the probed interpreter. The search path
// is extra caller paths, then the stdlib, then site-packages; the entry
// script's own directory is prepended at resolve time.
func NewResolver(in *Interpreter, extraPaths []string, log buildlog.Logger) *Resolver {
	paths := append([]string{}, extraPaths...)
	for _, p := range []string{in.StdlibDir, in.PurelibDir} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	suffixes := []string{}
	if in.ExtSuffix != "" {
		suffixes = append(suffixes, in.ExtSuffix)
	}
	if in.ExtSuffix != ".so" {
		suffixes = append(suffixes, ".so")
	}
	return &Resolver{
		searchPath:  paths,
		extSuffixes: suffixes,
		builtins:    in.Builtins,
		log:         log,
	}
}

// Resolve walks the import graph starting at the entry script and returns the
// qualified-name keyed module set. A missing or unreadable entry script is
// fatal; a transitively imported module that cannot be located is skipped.
func (r *Resolver) Resolve(entryScript string) (map[string]Module, error) {
	src, err := os.ReadFile(entryScript)
	if err != nil {
		return nil, &EntryNotFoundError{Path: entryScript, Err: err}
	}

	search := append([]string{filepath.Dir(entryScript)}, r.searchPath...)
	stem := strings.TrimSuffix(filepath.Base(entryScript), filepath.Ext(entryScript))

	modules := map[string]Module{}
	visited := map[string]bool{}
	seenPath := map[string]bool{} // canonical identity: one record per backing file

	entryPath, err := filepath.Abs(entryScript)
	if err != nil {
		entryPath = entryScript
	}
	modules[stem] = Module{Name: stem, Path: entryPath, Kind: ModuleSource}
	visited[stem] = true
	seenPath[entryPath] = true

	queue := scanImports(string(src), "")
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == "" || visited[name] {
			continue
		}
		visited[name] = true

		// Parent packages are part of the closure too.
		if i := strings.LastIndex(name, "."); i > 0 {
			queue = append(queue, name[:i])
		}

		mod, isPkg, found := r.locate(search, name)
		if !found {
			r.log.Debug("resolver", "resolve", "skip", "Could not locate module, skipping", "module", name)
			continue
		}
		if mod.Path != "" {
			if seenPath[mod.Path] {
				continue
			}
			seenPath[mod.Path] = true
		}
		modules[name] = mod

		if mod.Kind != ModuleSource {
			continue
		}
		body, err := os.ReadFile(mod.Path)
		if err != nil {
			r.log.Warn("resolver", "read", "skip", "Module vanished during resolution", "module", name, "path", mod.Path)
			delete(modules, name)
			continue
		}
		pkgCtx := name
		if !isPkg {
			pkgCtx = parentPackage(name)
		}
		queue = append(queue, scanImports(string(body), pkgCtx)...)
	}

	r.log.Info("resolver", "resolve", "success", "Resolved dependency closure",
		"entry", entryScript, "modules", len(modules))
	return modules, nil
}

// locate maps a qualified name to its backing file. Kind is derived from the
// file's presence and extension, never from content.
func (r *Resolver) locate(search []string, name string) (Module, bool, bool) {
	if r.builtins[name] {
		return Module{Name: name, Kind: ModuleInternal}, false, true
	}
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, root := range search {
		if initFile := filepath.Join(root, rel, "__init__.py"); fileExists(initFile) {
			return Module{Name: name, Path: initFile, Kind: ModuleSource}, true, true
		}
		if pyFile := filepath.Join(root, rel+".py"); fileExists(pyFile) {
			return Module{Name: name, Path: pyFile, Kind: ModuleSource}, false, true
		}
		for _, suffix := range r.extSuffixes {
			if extFile := filepath.Join(root, rel+suffix); fileExists(extFile) {
				return Module{Name: name, Path: extFile, Kind: ModuleNative}, false, true
			}
		}
	}
	return Module{}, false, false
}

// scanImports extracts the qualified names referenced by a module's import
// statements. pkgCtx is the importing module's package, used to resolve
// relative imports.
func scanImports(src, pkgCtx string) []string {
	var names []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.SplitN(line, "#", 2)[0]
		if m := importStmtRe.FindStringSubmatch(line); m != nil {
			for _, clause := range strings.Split(m[1], ",") {
				names = append(names, importClauseName(clause))
			}
			continue
		}
		if m := fromStmtRe.FindStringSubmatch(line); m != nil {
			base := resolveRelative(m[1], pkgCtx)
			if base != "" {
				names = append(names, base)
			}
			// Imported names may themselves be submodules; the resolver
			// silently drops the ones that are plain attributes.
			items := strings.NewReplacer("(", "", ")", "").Replace(m[2])
			for _, clause := range strings.Split(items, ",") {
				item := importClauseName(clause)
				if item == "" || item == "*" || base == "" {
					continue
				}
				names = append(names, base+"."+item)
			}
		}
	}
	return names
}

// importClauseName strips an "x as y" alias down to the module name x.
// Aliases never affect the canonical identity a module is keyed by.
func importClauseName(clause string) string {
	fields := strings.Fields(clause)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// resolveRelative turns a possibly-relative "from" target into an absolute
// qualified name. One leading dot means the current package, each further dot
// one package up.
func resolveRelative(target, pkgCtx string) string {
	if !strings.HasPrefix(target, ".") {
		return target
	}
	dots := 0
	for dots < len(target) && target[dots] == '.' {
		dots++
	}
	base := pkgCtx
	for i := 1; i < dots; i++ {
		base = parentPackage(base)
	}
	rest := target[dots:]
	switch {
	case base == "" && rest == "":
		return ""
	case base == "":
		return rest
	case rest == "":
		return base
	}
	return base + "." + rest
}

func parentPackage(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
