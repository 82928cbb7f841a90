package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvLLC, EnvClang, EnvNoCache, EnvTarget} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultsWithoutManifest(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("unexpected manifest path %q", cfg.Path)
	}
	if cfg.Toolchain.LLC != "llc" || cfg.Toolchain.Clang != "clang" || !cfg.CacheEnabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFindsManifestInParent(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeManifest(t, root, `# test manifest
[toolchain]
llc = "llc-18"
cache = false

[target]
default = "llvm -mcpu=generic"

[aliases]
rpi = "llvm -mtriple=armv7l-unknown-linux-gnueabihf -mattr=+neon"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg, err := Load("", nested)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path != filepath.Join(root, FileName) {
		t.Fatalf("path = %q", cfg.Path)
	}
	if cfg.Toolchain.LLC != "llc-18" || cfg.CacheEnabled() {
		t.Fatalf("unexpected toolchain: %+v", cfg.Toolchain)
	}
	got, err := cfg.ExpandTarget("@rpi")
	if err != nil {
		t.Fatalf("ExpandTarget error: %v", err)
	}
	if !strings.Contains(got, "armv7l") {
		t.Fatalf("alias expanded to %q", got)
	}
	if got, _ := cfg.ExpandTarget(""); got != "llvm -mcpu=generic" {
		t.Fatalf("empty target expanded to %q", got)
	}
	if got, _ := cfg.ExpandTarget("-mcpu=x"); got != "-mcpu=x" {
		t.Fatalf("plain target changed to %q", got)
	}
}

func TestExpandUnknownAlias(t *testing.T) {
	cfg := Default()
	cfg.Aliases["pi"] = "llvm"
	_, err := cfg.ExpandTarget("@nope")
	if err == nil || !strings.Contains(err.Error(), "nope") || !strings.Contains(err.Error(), "pi") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadManifest(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"syntax":  "[toolchain\n",
		"unknown": "[toolchain]\nllvm = \"x\"\n",
		"empty":   "[toolchain]\nllc = \"\"\n",
		"alias":   "[aliases]\n\"bad name\" = \"llvm\"\n",
	}
	for name, data := range cases {
		dir := t.TempDir()
		path := writeManifest(t, dir, data)
		if _, err := Load(path, ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeManifest(t, dir, "[toolchain]\nllc = \"llc-17\"\n")
	t.Setenv(EnvLLC, "/opt/llvm/bin/llc")
	t.Setenv(EnvNoCache, "1")
	t.Setenv(EnvTarget, "@host")
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Toolchain.LLC != "/opt/llvm/bin/llc" {
		t.Fatalf("llc = %q", cfg.Toolchain.LLC)
	}
	if cfg.CacheEnabled() {
		t.Fatalf("TMACHINE_NO_CACHE should disable the cache")
	}
	if cfg.Target.Default != "@host" {
		t.Fatalf("default target = %q", cfg.Target.Default)
	}
}

func TestEnvOverridesFollowLaterChanges(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeManifest(t, dir, "[toolchain]\nllc = \"llc-17\"\n")

	first, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if first.Toolchain.LLC != "llc-17" || !first.CacheEnabled() {
		t.Fatalf("unexpected first load: %+v", first.Toolchain)
	}

	t.Setenv(EnvLLC, "/usr/lib/llvm-19/bin/llc")
	t.Setenv(EnvNoCache, "true")
	second, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if second.Toolchain.LLC != "/usr/lib/llvm-19/bin/llc" {
		t.Fatalf("llc = %q after setting %s", second.Toolchain.LLC, EnvLLC)
	}
	if second.CacheEnabled() {
		t.Fatalf("%s set after the first Load was ignored", EnvNoCache)
	}
}
