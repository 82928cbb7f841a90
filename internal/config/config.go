// Package config loads tmachine.toml and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// FileName is the manifest looked up from the working directory upwards.
const FileName = "tmachine.toml"

// Environment variables that override the manifest.
const (
	EnvLLC     = "TMACHINE_LLC"
	EnvClang   = "TMACHINE_CLANG"
	EnvNoCache = "TMACHINE_NO_CACHE"
	EnvTarget  = "TMACHINE_TARGET"
)

// Config is the merged tool configuration.
type Config struct {
	Path      string            `toml:"-"` // manifest path, empty when none was found
	Toolchain Toolchain         `toml:"toolchain"`
	Target    TargetSection     `toml:"target"`
	Aliases   map[string]string `toml:"aliases"`
}

// Toolchain locates the LLVM tools.
type Toolchain struct {
	LLC   string `toml:"llc"`
	Clang string `toml:"clang"`
	Cache *bool  `toml:"cache"`
}

// TargetSection holds target defaults.
type TargetSection struct {
	Default string `toml:"default"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Toolchain: Toolchain{LLC: "llc", Clang: "clang"},
		Aliases:   map[string]string{},
	}
}

// CacheEnabled reports whether the probe cache should be used.
func (c Config) CacheEnabled() bool {
	return c.Toolchain.Cache == nil || *c.Toolchain.Cache
}

// Find walks up from startDir looking for tmachine.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load reads path (or searches from startDir when path is empty), then
// applies environment overrides. A missing manifest is not an error.
func Load(path, startDir string) (Config, error) {
	cfg := Default()
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return Config{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("toolchain", "llc") && strings.TrimSpace(cfg.Toolchain.LLC) == "" {
		return fmt.Errorf("%s: [toolchain].llc must not be empty", path)
	}
	for name := range cfg.Aliases {
		if name == "" || strings.ContainsAny(name, " \t@") {
			return fmt.Errorf("%s: invalid alias name %q", path, name)
		}
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	cfg.Path = path
	return nil
}

// applyEnv re-reads the process environment so every Load sees variables
// set after the previous one.
func applyEnv(cfg *Config) {
	env.Load()
	cfg.Toolchain.LLC = env.Str(EnvLLC, cfg.Toolchain.LLC)
	cfg.Toolchain.Clang = env.Str(EnvClang, cfg.Toolchain.Clang)
	cfg.Target.Default = env.Str(EnvTarget, cfg.Target.Default)
	if env.Bool(EnvNoCache) {
		off := false
		cfg.Toolchain.Cache = &off
	}
}

// ExpandTarget resolves "@name" through the alias table. An empty string
// is replaced by [target].default first, which may itself be an alias.
// Other strings pass through unchanged.
func (c Config) ExpandTarget(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		raw = c.Target.Default
		trimmed = strings.TrimSpace(raw)
	}
	name, ok := strings.CutPrefix(trimmed, "@")
	if !ok {
		return raw, nil
	}
	value, found := c.Aliases[name]
	if !found {
		return "", fmt.Errorf("unknown target alias %q (known: %s)", name, strings.Join(c.AliasNames(), ", "))
	}
	return value, nil
}

// AliasNames returns alias names in sorted order.
func (c Config) AliasNames() []string {
	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
