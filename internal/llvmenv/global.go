package llvmenv

import (
	"context"
	"errors"
	"sync"
)

var (
	globalEnv  *Env
	globalOnce sync.Once
)

// InitGlobal installs reg as the process-wide registry. Only the first call
// (or the first Global call, whichever comes first) has any effect; the
// process-wide Env is returned either way.
func InitGlobal(reg Registry) *Env {
	globalOnce.Do(func() {
		globalEnv = New(reg)
	})
	return globalEnv
}

// Global returns the process-wide Env. Without a prior InitGlobal it is
// bound to an empty registry that resolves no targets.
func Global() *Env {
	return InitGlobal(emptyRegistry{})
}

// EnsureInitialized initializes the process-wide registry once.
func EnsureInitialized() { Global().EnsureInitialized() }

// GetTargetMachine resolves raw against the process-wide registry.
func GetTargetMachine(ctx context.Context, raw string, allowNull bool) (Machine, error) {
	return Global().GetTargetMachine(ctx, raw, allowNull)
}

var errNoRegistry = errors.New("no LLVM registry installed")

type emptyRegistry struct{}

func (emptyRegistry) InitializeAll()              {}
func (emptyRegistry) DefaultTargetTriple() string { return "" }
func (emptyRegistry) LookupTarget(string) (Target, error) {
	return nil, errNoRegistry
}
