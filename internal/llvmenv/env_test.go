package llvmenv

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tmachine/internal/target"
)

type fakeRegistry struct {
	inits   atomic.Int32
	mu      sync.Mutex
	targets map[string]*fakeTarget
	host    string
	delay   time.Duration
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{host: "x86_64-unknown-linux-gnu"}
}

func (r *fakeRegistry) InitializeAll() {
	r.inits.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = map[string]*fakeTarget{
		"x86_64":  {name: "x86-64"},
		"aarch64": {name: "aarch64"},
	}
}

func (r *fakeRegistry) DefaultTargetTriple() string { return r.host }

func (r *fakeRegistry) LookupTarget(triple string) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	arch, _, _ := strings.Cut(triple, "-")
	if t, ok := r.targets[arch]; ok {
		return t, nil
	}
	return nil, errors.New("No available targets are compatible with triple \"" + triple + "\"")
}

func (r *fakeRegistry) populated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets) > 0
}

type fakeTarget struct{ name string }

func (t *fakeTarget) Name() string        { return t.name }
func (t *fakeTarget) Description() string { return "fake " + t.name }
func (t *fakeTarget) CreateTargetMachine(triple, cpu, features string, opts target.Options, reloc target.RelocModel) Machine {
	return &fakeMachine{tgt: t, triple: triple, cpu: cpu, features: features, opts: opts, reloc: reloc}
}

type fakeMachine struct {
	tgt      *fakeTarget
	triple   string
	cpu      string
	features string
	opts     target.Options
	reloc    target.RelocModel
}

func (m *fakeMachine) Target() Target                                              { return m.tgt }
func (m *fakeMachine) Triple() string                                              { return m.triple }
func (m *fakeMachine) CPU() string                                                 { return m.cpu }
func (m *fakeMachine) Features() string                                            { return m.features }
func (m *fakeMachine) Options() target.Options                                     { return m.opts }
func (m *fakeMachine) RelocModel() target.RelocModel                               { return m.reloc }
func (m *fakeMachine) EmitFile(context.Context, string, string, EmitOptions) error { return nil }

func TestEnsureInitializedOnceConcurrent(t *testing.T) {
	reg := newFakeRegistry()
	reg.delay = 10 * time.Millisecond
	env := New(reg)

	const workers = 32
	var wg sync.WaitGroup
	var unpopulated atomic.Int32
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			env.EnsureInitialized()
			if !reg.populated() {
				unpopulated.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := reg.inits.Load(); got != 1 {
		t.Fatalf("InitializeAll ran %d times, want 1", got)
	}
	if unpopulated.Load() != 0 {
		t.Fatalf("%d callers returned before the registry was populated", unpopulated.Load())
	}
	if !env.Initialized() {
		t.Fatalf("env should report initialized")
	}
	env.EnsureInitialized()
	if got := reg.inits.Load(); got != 1 {
		t.Fatalf("InitializeAll ran %d times after re-entry, want 1", got)
	}
}

func TestGetTargetMachine(t *testing.T) {
	reg := newFakeRegistry()
	env := New(reg)
	m, err := env.GetTargetMachine(context.Background(), "llvm -mtriple=aarch64-linux-gnu -mcpu=cortex-a72 -mattr=+neon -mfloat-abi=soft", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Triple() != "aarch64-linux-gnu" || m.CPU() != "cortex-a72" || m.Features() != "+neon" {
		t.Fatalf("unexpected machine: %+v", m)
	}
	if m.RelocModel() != target.RelocPIC {
		t.Fatalf("reloc = %s, want pic", m.RelocModel())
	}
	if m.Options().FloatABI != target.FloatABISoft || !m.Options().NoNaNsFPMath {
		t.Fatalf("unexpected options: %+v", m.Options())
	}
	if m.Target().Name() != "aarch64" {
		t.Fatalf("target = %s", m.Target().Name())
	}
	if reg.inits.Load() != 1 {
		t.Fatalf("GetTargetMachine should initialize the registry")
	}
}

func TestGetTargetMachineDefaults(t *testing.T) {
	env := New(newFakeRegistry())
	m, err := env.GetTargetMachine(context.Background(), "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Triple() != "x86_64-unknown-linux-gnu" {
		t.Fatalf("triple = %q, want host default", m.Triple())
	}
	if m.CPU() != target.GenericCPU {
		t.Fatalf("cpu = %q, want generic", m.CPU())
	}
}

func TestGetTargetMachineLookupFailure(t *testing.T) {
	env := New(newFakeRegistry())
	m, err := env.GetTargetMachine(context.Background(), "-mtriple=bogus-triple-zzz", true)
	if err != nil || m != nil {
		t.Fatalf("allowNull: got (%v, %v), want (nil, nil)", m, err)
	}

	_, err = env.GetTargetMachine(context.Background(), "-mtriple=bogus-triple-zzz", false)
	if err == nil {
		t.Fatalf("expected lookup error")
	}
	if !errors.Is(err, target.ErrTargetLookup) || target.KindOf(err) != target.KindTargetLookup {
		t.Fatalf("unexpected error kind: %v", err)
	}
	if !strings.Contains(err.Error(), "target_triple=bogus-triple-zzz") {
		t.Fatalf("error should name the triple: %v", err)
	}
}

func TestGetTargetMachineParseErrorIgnoresAllowNull(t *testing.T) {
	env := New(newFakeRegistry())
	_, err := env.GetTargetMachine(context.Background(), "-unknownkey=1", true)
	if target.KindOf(err) != target.KindUnknownOption {
		t.Fatalf("expected unknown option error, got %v", err)
	}
}

func TestGlobalEnv(t *testing.T) {
	reg := newFakeRegistry()
	env := InitGlobal(reg)
	if Global() != env {
		t.Fatalf("Global should return the installed env")
	}
	if InitGlobal(newFakeRegistry()) != env {
		t.Fatalf("second InitGlobal must not replace the env")
	}
	EnsureInitialized()
	EnsureInitialized()
	if reg.inits.Load() != 1 {
		t.Fatalf("global init ran %d times", reg.inits.Load())
	}
	m, err := GetTargetMachine(context.Background(), "-mtriple=x86_64-pc-linux-gnu", false)
	if err != nil || m == nil {
		t.Fatalf("global resolve failed: %v", err)
	}
}

func TestEmptyRegistry(t *testing.T) {
	env := New(emptyRegistry{})
	_, err := env.GetTargetMachine(context.Background(), "-mtriple=x86_64-linux-gnu", false)
	if !errors.Is(err, errNoRegistry) {
		t.Fatalf("expected errNoRegistry, got %v", err)
	}
}
