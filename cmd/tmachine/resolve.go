package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (c *cli) resolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <target>...",
		Short: "Resolve target strings into PIC target machines",
		Long: `Resolve each argument into a target machine and print its configuration
and the llc flags it implies. Quote each target string; "@name" expands a
[aliases] entry and an empty string uses [target].default.

With --allow-null a target whose triple has no backend prints <none>
instead of failing. Malformed target strings fail either way.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runResolve,
	}
	cmd.Flags().Bool("allow-null", false, "print <none> for triples without a backend")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

func (c *cli) runResolve(cmd *cobra.Command, args []string) error {
	allowNull, err := cmd.Flags().GetBool("allow-null")
	if err != nil {
		return fmt.Errorf("failed to get allow-null flag: %w", err)
	}
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := readFormat(formatStr)
	if err != nil {
		return err
	}

	sess, err := c.session(cmd, nil)
	if err != nil {
		return err
	}
	c.initialize(sess)

	idx := c.timer.Begin("resolve")
	payloads := make([]machinePayload, 0, len(args))
	for _, arg := range args {
		input, err := sess.expand(arg)
		if err != nil {
			c.timer.End(idx, "")
			return err
		}
		m, err := sess.env.GetTargetMachine(cmd.Context(), input, allowNull)
		if err != nil {
			c.timer.End(idx, "")
			return fmt.Errorf("%q: %w", arg, err)
		}
		payloads = append(payloads, newMachinePayload(arg, m))
	}
	c.timer.End(idx, fmt.Sprintf("%d targets", len(args)))

	out := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(out, payloads)
	}
	for _, p := range payloads {
		renderMachinePretty(out, p, !color.NoColor)
	}
	return nil
}
