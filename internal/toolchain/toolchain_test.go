package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"tmachine/internal/llvmenv"
	"tmachine/internal/target"
)

const llcVersionOutput = `Ubuntu LLVM version 18.1.3
  Optimized build.
  Default target: x86_64-pc-linux-gnu
  Host CPU: znver3

  Registered Targets:
    x86-64     - 64-bit X86: EM_X86_64
    aarch64    - AArch64 (little endian)
    arm        - ARM
    riscv64    - 64-bit RISC-V
    thumb      - Thumb
    wasm32     - WebAssembly 32-bit
    x86        - 32-bit X86: Pentium-Pro and above
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(dir, name)
	// #nosec G306 -- test helper must be executable
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// fakeLLC answers --version and otherwise writes its arguments to the -o file.
func fakeLLC(t *testing.T, dir string) string {
	t.Helper()
	body := `if [ "$1" = "--version" ]; then
cat <<'EOF'
` + llcVersionOutput + `EOF
exit 0
fi
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  case "$a" in
    *broken.ll) echo "error: broken.ll: invalid IR" >&2; exit 1;;
  esac
  prev="$a"
done
echo "$@" > "$out"
`
	return writeScript(t, dir, "llc", body)
}

func TestParseLLCVersion(t *testing.T) {
	info, err := parseLLCVersion(llcVersionOutput)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if info.Version != "18.1.3" {
		t.Fatalf("version = %q", info.Version)
	}
	if info.DefaultTriple != "x86_64-pc-linux-gnu" || info.HostCPU != "znver3" {
		t.Fatalf("unexpected header: %+v", info)
	}
	if len(info.Targets) != 7 {
		t.Fatalf("targets = %d, want 7", len(info.Targets))
	}
	names := make([]string, 0, len(info.Targets))
	for _, ti := range info.Targets {
		names = append(names, ti.Name)
	}
	if !slices.IsSorted(names) {
		t.Fatalf("targets not sorted: %v", names)
	}
	if info.Targets[0].Name != "aarch64" || info.Targets[0].Description != "AArch64 (little endian)" {
		t.Fatalf("unexpected first target: %+v", info.Targets[0])
	}
}

func TestParseLLCVersionWithoutTargets(t *testing.T) {
	if _, err := parseLLCVersion("LLVM version 18\n"); err == nil {
		t.Fatalf("expected error without Registered Targets section")
	}
}

func TestCandidateTargets(t *testing.T) {
	cases := []struct {
		triple string
		want   string
	}{
		{"x86_64-unknown-linux-gnu", "x86-64"},
		{"amd64-pc-windows", "x86-64"},
		{"i686-pc-linux-gnu", "x86"},
		{"aarch64-linux-gnu", "aarch64"},
		{"arm64-apple-darwin", "arm64"},
		{"armv7l-unknown-linux-gnueabihf", "arm"},
		{"thumbv7em-none-eabi", "thumb"},
		{"riscv64gc-unknown-linux-gnu", "riscv64"},
		{"wasm32-unknown-unknown", "wasm32"},
		{"s390x-ibm-linux", "systemz"},
		{"bogus-triple-zzz", "bogus"},
	}
	for _, tc := range cases {
		got := candidateTargets(tripleArch(tc.triple))
		if len(got) == 0 || got[0] != tc.want {
			t.Fatalf("candidateTargets(%q) = %v, want first %q", tc.triple, got, tc.want)
		}
	}
	if candidateTargets("") != nil {
		t.Fatalf("empty arch should have no candidates")
	}
}

func TestHostTriple(t *testing.T) {
	cases := []struct{ goos, goarch, want string }{
		{"linux", "amd64", "x86_64-unknown-linux-gnu"},
		{"linux", "arm64", "aarch64-unknown-linux-gnu"},
		{"linux", "arm", "armv7-unknown-linux-gnueabihf"},
		{"darwin", "arm64", "arm64-apple-darwin"},
		{"windows", "amd64", "x86_64-pc-windows-msvc"},
		{"freebsd", "amd64", "x86_64-unknown-freebsd"},
	}
	for _, tc := range cases {
		if got := hostTriple(tc.goos, tc.goarch); got != tc.want {
			t.Fatalf("hostTriple(%s, %s) = %q, want %q", tc.goos, tc.goarch, got, tc.want)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	dir := t.TempDir()
	reg := New(Config{LLC: fakeLLC(t, dir)})
	reg.InitializeAll()
	if err := reg.ProbeErr(); err != nil {
		t.Fatalf("probe error: %v", err)
	}
	if got := reg.DefaultTargetTriple(); got != "x86_64-pc-linux-gnu" {
		t.Fatalf("default triple = %q", got)
	}
	if reg.HostCPU() != "znver3" || reg.Version() != "18.1.3" {
		t.Fatalf("unexpected host info: cpu=%q version=%q", reg.HostCPU(), reg.Version())
	}
	tgt, err := reg.LookupTarget("x86_64-linux-gnu")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if tgt.Name() != "x86-64" {
		t.Fatalf("target = %q", tgt.Name())
	}
	_, err = reg.LookupTarget("bogus-triple-zzz")
	if err == nil || !strings.Contains(err.Error(), `"bogus-triple-zzz"`) {
		t.Fatalf("expected compatibility error, got %v", err)
	}
}

func TestRegistryMissingLLC(t *testing.T) {
	reg := New(Config{LLC: filepath.Join(t.TempDir(), "no-such-llc")})
	reg.InitializeAll()
	if reg.ProbeErr() == nil {
		t.Fatalf("expected probe error")
	}
	if reg.DefaultTargetTriple() == "" {
		t.Fatalf("default triple should fall back to the Go runtime")
	}
	_, err := reg.LookupTarget("x86_64-linux-gnu")
	if err == nil || !errors.Is(err, reg.ProbeErr()) {
		t.Fatalf("lookup should wrap the probe error, got %v", err)
	}
}

func TestRegistryClangFallback(t *testing.T) {
	dir := t.TempDir()
	clang := writeScript(t, dir, "clang", `echo riscv64-unknown-linux-gnu`)
	reg := New(Config{LLC: filepath.Join(dir, "missing-llc"), Clang: clang})
	reg.InitializeAll()
	if got := reg.DefaultTargetTriple(); got != "riscv64-unknown-linux-gnu" {
		t.Fatalf("default triple = %q, want clang's", got)
	}
}

func TestRegistryProbeCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCacheDir(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	llc := fakeLLC(t, dir)

	first := New(Config{LLC: llc, Cache: cache})
	first.InitializeAll()
	if first.FromCache() {
		t.Fatalf("first probe should miss the cache")
	}
	second := New(Config{LLC: llc, Cache: cache})
	second.InitializeAll()
	if !second.FromCache() {
		t.Fatalf("second probe should hit the cache")
	}
	if !slices.Equal(first.Targets(), second.Targets()) {
		t.Fatalf("cached targets differ: %v vs %v", first.Targets(), second.Targets())
	}
	if second.DefaultTargetTriple() != first.DefaultTargetTriple() {
		t.Fatalf("cached default triple differs")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatalf("drop: %v", err)
	}
	third := New(Config{LLC: llc, Cache: cache})
	third.InitializeAll()
	if third.FromCache() {
		t.Fatalf("probe after DropAll should miss")
	}
}

func TestCacheRejectsStaleKey(t *testing.T) {
	cache, err := OpenCacheDir(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	key := ProbeKey{Path: "/usr/bin/llc", Size: 10, ModTime: 1}
	info := llcInfo{Version: "17", Targets: []TargetInfo{{Name: "x86-64", Description: "64-bit X86"}}}
	if err := cache.Put(key, info); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Version != "17" || len(got.Targets) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	key.ModTime = 2
	if _, ok, _ := cache.Get(key); ok {
		t.Fatalf("changed mtime must miss")
	}
	var nilCache *Cache
	if _, ok, err := nilCache.Get(key); ok || err != nil {
		t.Fatalf("nil cache should miss quietly")
	}
}

func newMachine(t *testing.T, dir, raw string) *Machine {
	t.Helper()
	env := llvmenv.New(New(Config{LLC: fakeLLC(t, dir)}))
	m, err := env.GetTargetMachine(context.Background(), raw, false)
	if err != nil {
		t.Fatalf("GetTargetMachine(%q): %v", raw, err)
	}
	tm, ok := m.(*Machine)
	if !ok {
		t.Fatalf("machine type %T", m)
	}
	return tm
}

func TestMachineArgs(t *testing.T) {
	m := newMachine(t, t.TempDir(), "llvm -mtriple=armv7l-unknown-linux-gnueabihf -mcpu=cortex-a7 -mattr=+neon -mfloat-abi=soft")
	want := []string{
		"-mtriple=armv7l-unknown-linux-gnueabihf",
		"-mcpu=cortex-a7",
		"-mattr=+neon",
		"-relocation-model=pic",
		"-float-abi=soft",
		"-fp-contract=fast",
		"-enable-no-nans-fp-math",
	}
	if got := m.Args(); !slices.Equal(got, want) {
		t.Fatalf("Args() = %q\nwant    %q", got, want)
	}
	if m.Target().Name() != "arm" {
		t.Fatalf("target = %q", m.Target().Name())
	}
}

func TestMachineDefaults(t *testing.T) {
	m := newMachine(t, t.TempDir(), "")
	if m.Triple() != "x86_64-pc-linux-gnu" || m.CPU() != target.GenericCPU {
		t.Fatalf("unexpected defaults: triple=%q cpu=%q", m.Triple(), m.CPU())
	}
}

func TestMachineEmitFile(t *testing.T) {
	dir := t.TempDir()
	m := newMachine(t, dir, "-mtriple=x86_64-linux-gnu -mcpu=skylake")
	in := filepath.Join(dir, "kernel.ll")
	if err := os.WriteFile(in, []byte("; empty module\n"), 0o600); err != nil {
		t.Fatalf("write ir: %v", err)
	}
	out := filepath.Join(dir, "kernel.s")
	if err := m.EmitFile(context.Background(), in, out, llvmenv.EmitOptions{FileType: llvmenv.FileAssembly, OptLevel: 2}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	for _, flag := range []string{"-mcpu=skylake", "-filetype=asm", "-O2", in} {
		if !strings.Contains(string(data), flag) {
			t.Fatalf("llc args %q missing %q", data, flag)
		}
	}

	broken := filepath.Join(dir, "broken.ll")
	err = m.EmitFile(context.Background(), broken, filepath.Join(dir, "broken.o"), llvmenv.EmitOptions{})
	if err == nil || !strings.Contains(err.Error(), "invalid IR") {
		t.Fatalf("expected llc stderr in error, got %v", err)
	}
	if err := m.EmitFile(context.Background(), in, out, llvmenv.EmitOptions{OptLevel: 7}); err == nil {
		t.Fatalf("expected error for -O7")
	}
}
