package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// TargetInfo is one row of llc's "Registered Targets" table.
type TargetInfo struct {
	Name        string `msgpack:"name" json:"name"`
	Description string `msgpack:"description" json:"description"`
}

// llcInfo is what `llc --version` reports.
type llcInfo struct {
	Version       string
	DefaultTriple string
	HostCPU       string
	Targets       []TargetInfo
}

// parseLLCVersion reads the output of `llc --version`.
func parseLLCVersion(out string) (llcInfo, error) {
	var info llcInfo
	inTargets := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if inTargets {
			name, desc, ok := strings.Cut(line, " - ")
			if !ok {
				continue
			}
			info.Targets = append(info.Targets, TargetInfo{
				Name:        strings.TrimSpace(name),
				Description: strings.TrimSpace(desc),
			})
			continue
		}
		switch {
		case strings.HasPrefix(line, "Registered Targets:"):
			inTargets = true
		case strings.HasPrefix(line, "Default target:"):
			info.DefaultTriple = strings.TrimSpace(strings.TrimPrefix(line, "Default target:"))
		case strings.HasPrefix(line, "Host CPU:"):
			info.HostCPU = strings.TrimSpace(strings.TrimPrefix(line, "Host CPU:"))
		case strings.Contains(line, "LLVM version"):
			_, v, _ := strings.Cut(line, "LLVM version")
			info.Version = strings.TrimSpace(v)
		}
	}
	if err := sc.Err(); err != nil {
		return llcInfo{}, err
	}
	if !inTargets {
		return llcInfo{}, fmt.Errorf("llc --version: no \"Registered Targets\" section")
	}
	slices.SortFunc(info.Targets, func(a, b TargetInfo) int { return strings.Compare(a.Name, b.Name) })
	return info, nil
}

func probeLLC(ctx context.Context, llcPath string) (llcInfo, error) {
	// #nosec G204 -- llc path comes from configuration
	out, err := exec.CommandContext(ctx, llcPath, "--version").Output()
	if err != nil {
		return llcInfo{}, fmt.Errorf("%s --version: %w", llcPath, commandError(err))
	}
	return parseLLCVersion(string(out))
}

// probeClangTriple mirrors `clang -dumpmachine`; failures yield "".
func probeClangTriple(ctx context.Context, clang string) string {
	if clang == "" {
		return ""
	}
	path, err := exec.LookPath(clang)
	if err != nil {
		return ""
	}
	// #nosec G204 -- clang path comes from configuration
	out, err := exec.CommandContext(ctx, path, "-dumpmachine").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
