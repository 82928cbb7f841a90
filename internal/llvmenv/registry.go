// Package llvmenv initializes LLVM backend registries once per process and
// resolves target strings into code-generation machines.
package llvmenv

import (
	"context"

	"tmachine/internal/target"
)

// Registry is the LLVM target registry seen from Go.
type Registry interface {
	// InitializeAll registers target infos, targets, MC layers, asm parsers
	// and asm printers. It has no error path; implementations that can
	// fail record the failure and report it from LookupTarget.
	InitializeAll()
	// DefaultTargetTriple returns the host's default target triple.
	DefaultTargetTriple() string
	// LookupTarget finds the backend for triple.
	LookupTarget(triple string) (Target, error)
}

// Target is a registered backend able to construct machines.
type Target interface {
	Name() string
	Description() string
	CreateTargetMachine(triple, cpu, features string, opts target.Options, reloc target.RelocModel) Machine
}

// FileType selects the emitted artefact.
type FileType uint8

const (
	FileObject FileType = iota
	FileAssembly
)

func (f FileType) String() string {
	if f == FileAssembly {
		return "asm"
	}
	return "obj"
}

// Ext is the conventional file extension for f.
func (f FileType) Ext() string {
	if f == FileAssembly {
		return ".s"
	}
	return ".o"
}

// EmitOptions control a single EmitFile call.
type EmitOptions struct {
	FileType FileType
	OptLevel int // 0..3
}

// Machine is a configured code generator. The caller owns it.
type Machine interface {
	Target() Target
	Triple() string
	CPU() string
	Features() string
	Options() target.Options
	RelocModel() target.RelocModel
	// EmitFile lowers the LLVM IR at irPath into outPath.
	EmitFile(ctx context.Context, irPath, outPath string, opts EmitOptions) error
}
