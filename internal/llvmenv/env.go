package llvmenv

import (
	"context"
	"sync"
	"sync/atomic"

	"tmachine/internal/target"
	"tmachine/internal/trace"
)

// Env binds a Registry to a one-time initialization guard.
type Env struct {
	reg         Registry
	once        sync.Once
	initialized atomic.Bool
}

// New returns an uninitialized Env over reg.
func New(reg Registry) *Env {
	return &Env{reg: reg}
}

// Registry returns the registry e was built with.
func (e *Env) Registry() Registry { return e.reg }

// EnsureInitialized runs Registry.InitializeAll exactly once. Concurrent
// callers block until the first call finishes, so every return observes a
// populated registry.
func (e *Env) EnsureInitialized() {
	if e.initialized.Load() {
		return
	}
	e.once.Do(func() {
		e.reg.InitializeAll()
		e.initialized.Store(true)
	})
}

// Initialized reports whether EnsureInitialized has completed.
func (e *Env) Initialized() bool { return e.initialized.Load() }

// ParseTargetOptions parses raw, substituting the registry's default triple.
func (e *Env) ParseTargetOptions(ctx context.Context, raw string) (target.Descriptor, error) {
	_, span := trace.Start(ctx, trace.ScopeStage, "parse")
	d, err := target.ParseOptions(raw, e.reg.DefaultTargetTriple)
	if err != nil {
		span.End(err.Error())
		return target.Descriptor{}, err
	}
	span.WithExtra("triple", d.Triple).End("")
	return d, nil
}

// GetTargetMachine resolves raw into a Machine using PIC relocation.
//
// When the triple has no registered backend it returns (nil, nil) if
// allowNull is set and a KindTargetLookup error otherwise. Parse errors are
// always returned.
func (e *Env) GetTargetMachine(ctx context.Context, raw string, allowNull bool) (Machine, error) {
	ctx, span := trace.Start(ctx, trace.ScopeStage, "resolve")
	e.EnsureInitialized()

	d, err := e.ParseTargetOptions(ctx, raw)
	if err != nil {
		span.End("parse failed")
		return nil, err
	}
	triple := target.ResolveTriple(d.Triple, e.reg.DefaultTargetTriple)
	cpu := target.ResolveCPU(d.CPU)
	span.WithExtra("triple", triple).WithExtra("cpu", cpu)

	_, lookup := trace.Start(ctx, trace.ScopeStage, "lookup")
	tgt, err := e.reg.LookupTarget(triple)
	if err != nil || tgt == nil {
		lookup.End("not found")
		if allowNull {
			span.End("null machine")
			return nil, nil
		}
		span.End("lookup failed")
		return nil, &target.Error{Kind: target.KindTargetLookup, Triple: triple, Err: err}
	}
	lookup.WithExtra("target", tgt.Name()).End("")

	m := tgt.CreateTargetMachine(triple, cpu, d.Attributes, d.Options, target.RelocPIC)
	span.End("")
	return m, nil
}
