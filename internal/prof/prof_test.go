package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Mem:   filepath.Join(dir, "mem.pprof"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	if !cfg.Enabled() {
		t.Fatalf("config should be enabled")
	}
	s, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	for _, p := range []string{cfg.CPU, cfg.Mem, cfg.Trace} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", filepath.Base(p), err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop should only rewrite the heap profile: %v", err)
	}
}

func TestStartFailsCleanly(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "cpu.pprof")
	if _, err := Start(Config{CPU: bad}); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
	// a failed Start must not leave the CPU profiler running
	s, err := Start(Config{CPU: filepath.Join(t.TempDir(), "cpu.pprof")})
	if err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestNilSession(t *testing.T) {
	var s *Session
	if err := s.Stop(); err != nil {
		t.Fatalf("nil Stop: %v", err)
	}
	if (Config{}).Enabled() {
		t.Fatalf("empty config should be disabled")
	}
}
