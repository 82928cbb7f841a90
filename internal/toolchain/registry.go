// Package toolchain implements the LLVM registry on top of LLVM's
// command-line tools: llc answers target queries and emits code, clang is
// consulted for the host triple.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tmachine/internal/llvmenv"
	"tmachine/internal/trace"
)

const defaultProbeTimeout = 10 * time.Second

// Config locates the LLVM tools.
type Config struct {
	LLC          string        // llc binary name or path (default "llc")
	Clang        string        // clang binary name or path; "" disables the clang probe
	Cache        *Cache        // optional probe cache
	Tracer       trace.Tracer  // optional; InitializeAll has no context to carry one
	CommandLog   io.Writer     // echo llc command lines here when set
	ProbeTimeout time.Duration // bound on each probe subprocess
}

// Registry is an llvmenv.Registry backed by llc.
type Registry struct {
	cfg Config

	mu         sync.RWMutex
	llcPath    string
	info       llcInfo
	clangHost  string
	probeErr   error
	fromCache  bool
	registered map[string]*Target
}

var _ llvmenv.Registry = (*Registry)(nil)

// New returns an unprobed registry. Call InitializeAll (normally through
// llvmenv.Env) before lookups.
func New(cfg Config) *Registry {
	if cfg.LLC == "" {
		cfg.LLC = "llc"
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &Registry{cfg: cfg}
}

// InitializeAll probes llc and clang concurrently and registers every
// target llc reports. A failed llc probe is kept and returned from
// LookupTarget.
func (r *Registry) InitializeAll() {
	span := trace.Begin(r.cfg.Tracer, trace.ScopeStage, "init", 0)
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ProbeTimeout)
	defer cancel()

	var (
		info      llcInfo
		llcPath   string
		clangHost string
		fromCache bool
	)
	// plain group: a missing llc must not cancel the clang probe
	var g errgroup.Group
	g.Go(func() error {
		path, err := exec.LookPath(r.cfg.LLC)
		if err != nil {
			return fmt.Errorf("llc not found (%s); install with: sudo apt-get install -y llvm: %w", r.cfg.LLC, err)
		}
		llcPath = path
		key, keyErr := keyForBinary(path)
		if keyErr == nil {
			if cached, ok, _ := r.cfg.Cache.Get(key); ok {
				info, fromCache = cached, true
				return nil
			}
		}
		probed, err := probeLLC(ctx, path)
		if err != nil {
			return err
		}
		info = probed
		if keyErr == nil {
			if err := r.cfg.Cache.Put(key, probed); err != nil {
				trace.Point(r.cfg.Tracer, trace.ScopeStage, "cache", "put failed: "+err.Error(), span.ID())
			}
		}
		return nil
	})
	g.Go(func() error {
		// never fails the group: the host triple has other sources
		clangHost = probeClangTriple(ctx, r.cfg.Clang)
		return nil
	})
	probeErr := g.Wait()

	registered := make(map[string]*Target, len(info.Targets))
	for _, ti := range info.Targets {
		registered[ti.Name] = &Target{info: ti, reg: r}
	}

	r.mu.Lock()
	r.llcPath = llcPath
	r.info = info
	r.clangHost = clangHost
	r.probeErr = probeErr
	r.fromCache = fromCache
	r.registered = registered
	r.mu.Unlock()

	span.WithExtra("targets", fmt.Sprint(len(registered)))
	if fromCache {
		span.WithExtra("cache", "hit")
	}
	if probeErr != nil {
		span.End(probeErr.Error())
		return
	}
	span.End(info.Version)
}

// DefaultTargetTriple prefers llc's default target, then clang's, then the
// Go runtime's GOOS/GOARCH.
func (r *Registry) DefaultTargetTriple() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.info.DefaultTriple != "" {
		return r.info.DefaultTriple
	}
	if r.clangHost != "" {
		return r.clangHost
	}
	return runtimeHostTriple()
}

// LookupTarget returns the registered target serving triple's arch.
func (r *Registry) LookupTarget(triple string) (llvmenv.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.registered) == 0 {
		if r.probeErr != nil {
			return nil, fmt.Errorf("no LLVM targets registered: %w", r.probeErr)
		}
		return nil, errors.New("no LLVM targets registered")
	}
	for _, name := range candidateTargets(tripleArch(triple)) {
		if t, ok := r.registered[name]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("No available targets are compatible with triple %q", triple)
}

// Targets returns the registered targets sorted by name.
func (r *Registry) Targets() []TargetInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TargetInfo, len(r.info.Targets))
	copy(out, r.info.Targets)
	return out
}

// Version is the LLVM version llc reported.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info.Version
}

// HostCPU is the host CPU name llc reported.
func (r *Registry) HostCPU() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info.HostCPU
}

// LLCPath is the resolved llc binary, empty if it was not found.
func (r *Registry) LLCPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llcPath
}

// ProbeErr is the error recorded by InitializeAll, if any.
func (r *Registry) ProbeErr() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.probeErr
}

// FromCache reports whether the last probe was served by the cache.
func (r *Registry) FromCache() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fromCache
}
