package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tmachine/internal/version"
)

type versionOptions struct {
	format   outputFormat
	showHash bool
	showDate bool
}

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

func versionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show tmachine build metadata",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("hash", false, "include git commit hash")
	cmd.Flags().Bool("date", false, "include build timestamp")
	cmd.Flags().Bool("full", false, "show every recorded bit of build metadata")
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	formatStr, _ := flags.GetString("format")
	format, err := readFormat(formatStr)
	if err != nil {
		return err
	}
	hash, _ := flags.GetBool("hash")
	date, _ := flags.GetBool("date")
	full, _ := flags.GetBool("full")
	opts := versionOptions{format: format, showHash: hash || full, showDate: date || full}

	if opts.format == formatJSON {
		return renderVersionJSON(cmd.OutOrStdout(), opts)
	}
	renderVersionPretty(cmd.OutOrStdout(), opts)
	return nil
}

func renderVersionPretty(out io.Writer, opts versionOptions) {
	fmt.Fprintf(out, "tmachine %s\n", version.Colored())
	if opts.showHash {
		fmt.Fprintf(out, "commit: %s\n", valueOrUnknown(version.GitCommit))
	}
	if opts.showDate {
		fmt.Fprintf(out, "built:  %s\n", valueOrUnknown(version.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, opts versionOptions) error {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	payload := versionPayload{Tool: "tmachine", Version: v}
	if opts.showHash {
		payload.GitCommit = valueOrUnknown(version.GitCommit)
	}
	if opts.showDate {
		payload.BuildDate = valueOrUnknown(version.BuildDate)
	}
	return writeJSON(out, payload)
}

func valueOrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
