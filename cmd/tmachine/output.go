package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tmachine/internal/llvmenv"
	"tmachine/internal/target"
	"tmachine/internal/ui"
)

type outputFormat string

const (
	formatPretty outputFormat = "pretty"
	formatJSON   outputFormat = "json"
)

func readFormat(value string) (outputFormat, error) {
	switch outputFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", formatPretty:
		return formatPretty, nil
	case formatJSON:
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be pretty or json)", value)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type optionsPayload struct {
	FloatABI     string `json:"float_abi"`
	FPOpFusion   string `json:"fp_op_fusion"`
	UnsafeFPMath bool   `json:"unsafe_fp_math"`
	NoInfsFPMath bool   `json:"no_infs_fp_math"`
	NoNaNsFPMath bool   `json:"no_nans_fp_math"`
}

func newOptionsPayload(o target.Options) optionsPayload {
	return optionsPayload{
		FloatABI:     o.FloatABI.String(),
		FPOpFusion:   o.AllowFPOpFusion.String(),
		UnsafeFPMath: o.UnsafeFPMath,
		NoInfsFPMath: o.NoInfsFPMath,
		NoNaNsFPMath: o.NoNaNsFPMath,
	}
}

type descriptorPayload struct {
	Target     string         `json:"target"`
	Triple     string         `json:"triple"`
	CPU        string         `json:"cpu"`
	Attributes string         `json:"attributes"`
	Options    optionsPayload `json:"options"`
	Canonical  string         `json:"canonical"`
}

type machinePayload struct {
	Target   string          `json:"target"`
	Resolved bool            `json:"resolved"`
	Backend  string          `json:"backend,omitempty"`
	Triple   string          `json:"triple,omitempty"`
	CPU      string          `json:"cpu,omitempty"`
	Features string          `json:"features,omitempty"`
	Reloc    string          `json:"reloc,omitempty"`
	Options  *optionsPayload `json:"options,omitempty"`
	LLCFlags []string        `json:"llc_flags,omitempty"`
}

type argsProvider interface {
	Args() []string
}

func newMachinePayload(raw string, m llvmenv.Machine) machinePayload {
	p := machinePayload{Target: raw}
	if m == nil {
		return p
	}
	opts := newOptionsPayload(m.Options())
	p.Resolved = true
	p.Triple = m.Triple()
	p.CPU = m.CPU()
	p.Features = m.Features()
	p.Reloc = m.RelocModel().String()
	p.Options = &opts
	if t := m.Target(); t != nil {
		p.Backend = t.Name()
	}
	if a, ok := m.(argsProvider); ok {
		p.LLCFlags = a.Args()
	}
	return p
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderMachinePretty(out io.Writer, p machinePayload, styled bool) {
	if !p.Resolved {
		fmt.Fprintf(out, "%s: <none>\n", p.Target)
		return
	}
	rows := [][]string{
		{"triple", p.Triple},
		{"backend", orDash(p.Backend)},
		{"cpu", p.CPU},
		{"features", orDash(p.Features)},
		{"float-abi", p.Options.FloatABI},
		{"fp-fusion", p.Options.FPOpFusion},
		{"no-nans", fmt.Sprint(p.Options.NoNaNsFPMath)},
		{"reloc", p.Reloc},
	}
	if len(p.LLCFlags) > 0 {
		rows = append(rows, []string{"llc", strings.Join(p.LLCFlags, " ")})
	}
	fmt.Fprintf(out, "%s:\n", p.Target)
	table := ui.Table{Rows: rows, Styled: styled}
	for _, line := range strings.SplitAfter(table.Render(), "\n") {
		if line != "" {
			fmt.Fprint(out, "  "+line)
		}
	}
}
