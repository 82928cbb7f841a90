// Package target parses LLVM target strings into machine descriptors.
package target

import (
	"fmt"
	"strings"
)

// FloatABI selects the floating-point calling convention.
type FloatABI uint8

const (
	// FloatABIHard passes floating-point values in FP registers.
	FloatABIHard FloatABI = iota
	// FloatABISoft passes floating-point values in integer registers.
	FloatABISoft
)

func (f FloatABI) String() string {
	switch f {
	case FloatABIHard:
		return "hard"
	case FloatABISoft:
		return "soft"
	default:
		return "unknown"
	}
}

// ParseFloatABI accepts only the literal values "hard" and "soft".
func ParseFloatABI(s string) (FloatABI, bool) {
	switch s {
	case "hard":
		return FloatABIHard, true
	case "soft":
		return FloatABISoft, true
	default:
		return FloatABIHard, false
	}
}

// FPOpFusion controls fusing of floating-point operations (FMA formation).
type FPOpFusion uint8

const (
	// FPOpFusionFast fuses whenever profitable.
	FPOpFusionFast FPOpFusion = iota
	// FPOpFusionStandard fuses only where the language allows it.
	FPOpFusionStandard
	// FPOpFusionStrict never fuses.
	FPOpFusionStrict
)

func (f FPOpFusion) String() string {
	switch f {
	case FPOpFusionFast:
		return "fast"
	case FPOpFusionStandard:
		return "on"
	case FPOpFusionStrict:
		return "off"
	default:
		return "unknown"
	}
}

// RelocModel is the code generation relocation model.
type RelocModel uint8

const (
	RelocDefault RelocModel = iota
	RelocStatic
	RelocPIC
	RelocDynamicNoPIC
)

func (r RelocModel) String() string {
	switch r {
	case RelocDefault:
		return "default"
	case RelocStatic:
		return "static"
	case RelocPIC:
		return "pic"
	case RelocDynamicNoPIC:
		return "dynamic-no-pic"
	default:
		return "unknown"
	}
}

// Options mirrors the subset of llvm::TargetOptions this package controls.
type Options struct {
	FloatABI        FloatABI
	AllowFPOpFusion FPOpFusion
	UnsafeFPMath    bool
	NoInfsFPMath    bool
	NoNaNsFPMath    bool
}

// DefaultOptions returns the fixed floating-point policy with a hard float ABI.
func DefaultOptions() Options {
	return Options{
		FloatABI:        FloatABIHard,
		AllowFPOpFusion: FPOpFusionFast,
		UnsafeFPMath:    false,
		NoInfsFPMath:    false,
		NoNaNsFPMath:    true,
	}
}

// Descriptor is the canonical form of a target string.
type Descriptor struct {
	Triple     string
	CPU        string
	Attributes string
	Options    Options
}

// String renders d as a target string that parses back to d.
func (d Descriptor) String() string {
	parts := []string{"llvm"}
	if d.Triple != "" {
		parts = append(parts, "-mtriple="+d.Triple)
	}
	if d.CPU != "" {
		parts = append(parts, "-mcpu="+d.CPU)
	}
	if d.Attributes != "" {
		parts = append(parts, "-mattr="+d.Attributes)
	}
	if d.Options.FloatABI == FloatABISoft {
		parts = append(parts, "-mfloat-abi=soft")
	}
	return strings.Join(parts, " ")
}

// GoString is used by %#v in test failures.
func (d Descriptor) GoString() string {
	return fmt.Sprintf("target.Descriptor{Triple:%q, CPU:%q, Attributes:%q, FloatABI:%s}",
		d.Triple, d.CPU, d.Attributes, d.Options.FloatABI)
}
