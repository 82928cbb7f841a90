package toolchain

import (
	"runtime"
	"strings"
)

// archAliases maps triple arch spellings to llc's registered target names.
// Arches missing here are looked up verbatim.
var archAliases = map[string][]string{
	"x86_64":      {"x86-64"},
	"x86_64h":     {"x86-64"},
	"amd64":       {"x86-64"},
	"i386":        {"x86"},
	"i486":        {"x86"},
	"i586":        {"x86"},
	"i686":        {"x86"},
	"aarch64":     {"aarch64", "arm64"},
	"arm64":       {"arm64", "aarch64"},
	"arm64e":      {"arm64", "aarch64"},
	"aarch64_32":  {"aarch64_32", "arm64_32"},
	"arm64_32":    {"arm64_32", "aarch64_32"},
	"powerpc":     {"ppc32"},
	"ppc":         {"ppc32"},
	"powerpcle":   {"ppc32le"},
	"powerpc64":   {"ppc64"},
	"powerpc64le": {"ppc64le"},
	"s390x":       {"systemz"},
	"sparc64":     {"sparcv9"},
	"bpf":         {"bpf", "bpfel"},
	"loong64":     {"loongarch64"},
}

// tripleArch returns the arch component of triple.
func tripleArch(triple string) string {
	arch, _, _ := strings.Cut(strings.TrimSpace(triple), "-")
	return strings.ToLower(arch)
}

// candidateTargets lists llc target names that may serve arch, in order of
// preference.
func candidateTargets(arch string) []string {
	if arch == "" {
		return nil
	}
	if names, ok := archAliases[arch]; ok {
		return names
	}
	switch {
	case strings.HasPrefix(arch, "armeb"):
		return []string{"armeb"}
	case strings.HasPrefix(arch, "thumbeb"):
		return []string{"thumbeb"}
	case strings.HasPrefix(arch, "thumb"):
		return []string{"thumb"}
	case strings.HasPrefix(arch, "arm"), arch == "xscale":
		return []string{"arm"}
	case strings.HasPrefix(arch, "riscv64"):
		return []string{"riscv64"}
	case strings.HasPrefix(arch, "riscv32"):
		return []string{"riscv32"}
	}
	return []string{arch}
}

// hostTriple derives a triple from the Go runtime when no LLVM tool can
// report one.
func hostTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
		if goos == "darwin" {
			arch = "arm64"
		}
	case "arm":
		arch = "armv7"
	case "ppc64le":
		arch = "powerpc64le"
	case "ppc64":
		arch = "powerpc64"
	case "loong64":
		arch = "loongarch64"
	}
	switch goos {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "linux":
		if goarch == "arm" {
			return arch + "-unknown-linux-gnueabihf"
		}
		return arch + "-unknown-linux-gnu"
	}
	return arch + "-unknown-" + goos
}

func runtimeHostTriple() string {
	return hostTriple(runtime.GOOS, runtime.GOARCH)
}
