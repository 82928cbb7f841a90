package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tmachine/internal/toolchain"
	"tmachine/internal/ui"
)

type targetsPayload struct {
	LLC           string                 `json:"llc"`
	Version       string                 `json:"version"`
	DefaultTriple string                 `json:"default_triple"`
	HostCPU       string                 `json:"host_cpu,omitempty"`
	Cached        bool                   `json:"cached"`
	Targets       []toolchain.TargetInfo `json:"targets"`
}

func (c *cli) targetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the LLVM backends registered by llc",
		Args:  cobra.NoArgs,
		RunE:  c.runTargets,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

func (c *cli) runTargets(cmd *cobra.Command, _ []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := readFormat(formatStr)
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	sess, err := c.session(cmd, nil)
	if err != nil {
		return err
	}
	c.initialize(sess)
	if err := sess.reg.ProbeErr(); err != nil {
		return err
	}

	payload := targetsPayload{
		LLC:           sess.reg.LLCPath(),
		Version:       sess.reg.Version(),
		DefaultTriple: sess.reg.DefaultTargetTriple(),
		HostCPU:       sess.reg.HostCPU(),
		Cached:        sess.reg.FromCache(),
		Targets:       sess.reg.Targets(),
	}
	out := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(out, payload)
	}

	if !quiet {
		fmt.Fprintf(out, "%s %s (%s)\n", color.New(color.Bold).Sprint("LLVM"), payload.Version, payload.LLC)
		fmt.Fprintf(out, "default triple: %s\n", payload.DefaultTriple)
		if payload.HostCPU != "" {
			fmt.Fprintf(out, "host cpu:       %s\n", payload.HostCPU)
		}
		fmt.Fprintln(out)
	}
	rows := make([][]string, 0, len(payload.Targets))
	for _, t := range payload.Targets {
		rows = append(rows, []string{t.Name, t.Description})
	}
	table := ui.Table{
		Header: []string{"NAME", "DESCRIPTION"},
		Rows:   rows,
		Styled: !color.NoColor,
		Width:  terminalWidth(),
	}
	fmt.Fprint(out, table.Render())
	return nil
}

// terminalWidth returns the stdout width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	if !isTerminal(os.Stdout) {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}
