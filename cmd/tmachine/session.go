package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tmachine/internal/config"
	"tmachine/internal/llvmenv"
	"tmachine/internal/toolchain"
	"tmachine/internal/trace"
)

const cacheApp = "tmachine"

// session is the configured toolchain for commands that talk to llc.
type session struct {
	cfg   config.Config
	cache *toolchain.Cache
	reg   *toolchain.Registry
	env   *llvmenv.Env
}

// session loads configuration and binds the toolchain registry. It does
// not probe llc; see initialize.
func (c *cli) session(cmd *cobra.Command, commandLog io.Writer) (*session, error) {
	if c.sess != nil {
		return c.sess, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	idx := c.timer.Begin("config")
	cfg, err := config.Load(path, ".")
	c.timer.End(idx, cfg.Path)
	if err != nil {
		return nil, err
	}

	tracer := trace.FromContext(cmd.Context())
	var cache *toolchain.Cache
	if cfg.CacheEnabled() {
		cache, err = toolchain.OpenCache(cacheApp)
		if err != nil {
			trace.Point(tracer, trace.ScopeDriver, "cache", "disabled: "+err.Error(), trace.CurrentSpan(cmd.Context()))
			cache = nil
		}
	}
	reg := toolchain.New(toolchain.Config{
		LLC:        cfg.Toolchain.LLC,
		Clang:      cfg.Toolchain.Clang,
		Cache:      cache,
		Tracer:     tracer,
		CommandLog: commandLog,
	})
	c.sess = &session{cfg: cfg, cache: cache, reg: reg, env: c.newEnv(reg)}
	return c.sess, nil
}

// initialize probes the toolchain once and records the time it took.
func (c *cli) initialize(s *session) {
	if s.env.Initialized() {
		return
	}
	idx := c.timer.Begin("init")
	s.env.EnsureInitialized()
	note := s.reg.Version()
	if s.reg.FromCache() {
		note += " (cached)"
	}
	if err := s.reg.ProbeErr(); err != nil {
		note = "probe failed"
	}
	c.timer.End(idx, note)
}

// expand applies the alias table to raw.
func (s *session) expand(raw string) (string, error) {
	return s.cfg.ExpandTarget(raw)
}
