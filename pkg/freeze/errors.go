package freeze

import (
	"fmt"
	"strings"
)

// EntryNotFoundError indicates the entry script for dependency resolution
// does not exist or cannot be read. Always fatal.
type EntryNotFoundError struct {
	Path string
	Err  error
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry script %s not found: %v", e.Path, e.Err)
}

func (e *EntryNotFoundError) Unwrap() error { return e.Err }

// ModuleCompileError indicates a single module failed to compile to bytecode.
// Not fatal to the bundle unless every module in the set fails.
type ModuleCompileError struct {
	Module string
	Source string
	Err    error
}

func (e *ModuleCompileError) Error() string {
	return fmt.Sprintf("module %s (%s) failed to compile: %v", e.Module, e.Source, e.Err)
}

func (e *ModuleCompileError) Unwrap() error { return e.Err }

// ToolchainError indicates a compiler, linker, or patcher subprocess returned
// non-zero. Output holds the subprocess diagnostics verbatim.
type ToolchainError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolchainError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// UnsupportedPlatformError indicates the host has no registered strategy for
// shared-library naming and load-path patching. Raised before any toolchain
// work is started.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q: no load-path patching strategy registered", e.GOOS)
}
