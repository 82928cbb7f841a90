package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tmachine/internal/target"
)

func (c *cli) parseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <target>",
		Short: "Parse a target string and print the descriptor",
		Long: `Parse a target string without resolving a backend.

The empty triple is replaced by the toolchain's default triple and the
empty cpu by "generic" unless --raw is set. Raw parsing never runs llc.
Use -- before the target so its options are not read as flags:

  tmachine parse -- llvm -mtriple=aarch64-linux-gnu -mcpu=cortex-a72`,
		Args: cobra.ArbitraryArgs,
		RunE: c.runParse,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("raw", false, "print the descriptor as written, without running llc")
	return cmd
}

func (c *cli) runParse(cmd *cobra.Command, args []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := readFormat(formatStr)
	if err != nil {
		return err
	}
	raw, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return fmt.Errorf("failed to get raw flag: %w", err)
	}

	sess, err := c.session(cmd, nil)
	if err != nil {
		return err
	}
	input, err := sess.expand(targetArg(args))
	if err != nil {
		return err
	}

	var d target.Descriptor
	if raw {
		d, err = target.ParseOptions(input, nil)
	} else {
		c.initialize(sess)
		d, err = sess.env.ParseTargetOptions(cmd.Context(), input)
	}
	if err != nil {
		return err
	}

	cpu := d.CPU
	if !raw {
		cpu = target.ResolveCPU(cpu)
	}
	payload := descriptorPayload{
		Target:     input,
		Triple:     d.Triple,
		CPU:        cpu,
		Attributes: d.Attributes,
		Options:    newOptionsPayload(d.Options),
		Canonical:  d.String(),
	}
	out := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(out, payload)
	}
	key := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", key("triple:    "), orDash(payload.Triple))
	fmt.Fprintf(out, "%s %s\n", key("cpu:       "), orDash(payload.CPU))
	fmt.Fprintf(out, "%s %s\n", key("attributes:"), orDash(payload.Attributes))
	fmt.Fprintf(out, "%s %s\n", key("float-abi: "), payload.Options.FloatABI)
	fmt.Fprintf(out, "%s %s\n", key("fp-fusion: "), payload.Options.FPOpFusion)
	fmt.Fprintf(out, "%s %t\n", key("no-nans:   "), payload.Options.NoNaNsFPMath)
	fmt.Fprintf(out, "%s %s\n", key("canonical: "), payload.Canonical)
	return nil
}
