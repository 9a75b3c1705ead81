package freeze

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"pyfreeze-tools/pkg/buildlog"
)

// Run performs one full packaging run: resolve, generate, build, assemble.
// It raises on the first fatal failure; per-module compile failures inside
// the bundle stage are only fatal when the whole set fails.
func Run(cfg Config, log buildlog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Platform gating comes first so an unsupported host fails before any
	// probing or toolchain work.
	strat, err := StrategyFor(runtime.GOOS)
	if err != nil {
		return err
	}

	buildID := uuid.NewString()[:8]
	layout := NewLayout(cfg.BuildRoot, buildID)
	if err := layout.Create(); err != nil {
		return err
	}
	log.Info("system", "start", "progress", "Starting freeze run",
		"program", cfg.ProgramName, "buildRoot", cfg.BuildRoot, "buildID", buildID)

	interp, err := ProbeInterpreter(cfg.PythonExe, log)
	if err != nil {
		return err
	}

	resolver := NewResolver(interp, cfg.ModulePath, log)
	modules, err := resolver.Resolve(cfg.EntryScript)
	if err != nil {
		return err
	}

	gen := NewShimGenerator(DefaultTemplates, log)
	shim, err := gen.Generate(layout.SrcDir, cfg.ProgramName, cfg.ResolvedEntryPoint())
	if err != nil {
		return err
	}

	tc := NewToolchain(cfg.Toolchain, log)
	builder := NewBuilder(cfg, layout, interp, tc, strat, log)
	exe, err := builder.Build(shim)
	if err != nil {
		return err
	}

	asm := NewAssembler(layout, interp.NewBytecodeCompiler(), log)
	archive, err := asm.Assemble(modules)
	if err != nil {
		return err
	}

	log.Info("system", "finish", "success", "Freeze run complete",
		"exe", exe, "archive", archive)
	return nil
}

// Resolve is the standalone resolution surface used by the resolve command:
// probe the interpreter, walk the closure, no build work.
func Resolve(cfg Config, log buildlog.Logger) (map[string]Module, error) {
	if cfg.EntryScript == "" {
		return nil, fmt.Errorf("entry script is required")
	}
	interp, err := ProbeInterpreter(cfg.PythonExe, log)
	if err != nil {
		return nil, err
	}
	return NewResolver(interp, cfg.ModulePath, log).Resolve(cfg.EntryScript)
}
