package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tmachine/internal/buildpipeline"
	"tmachine/internal/llvmenv"
)

func (c *cli) compileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [flags] <file.ll|file.bc>...",
		Short: "Lower LLVM IR files with a resolved target machine",
		Long: `Resolve --target once, then run llc over every input in parallel.
Outputs are written next to each input unless -o names a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runCompile,
	}
	flags := cmd.Flags()
	flags.StringP("target", "t", "", "target string or @alias (default: [target].default, then the host)")
	flags.IntP("opt-level", "O", 2, "optimization level (0-3)")
	flags.String("filetype", "obj", "output kind (obj|asm)")
	flags.StringP("output-dir", "o", "", "directory for outputs")
	flags.IntP("jobs", "j", 0, "parallel llc processes (0 = GOMAXPROCS)")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.BoolP("verbose", "v", false, "echo llc command lines to stderr")
	return cmd
}

func readFileType(value string) (llvmenv.FileType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "obj", "o", "object":
		return llvmenv.FileObject, nil
	case "asm", "s", "assembly":
		return llvmenv.FileAssembly, nil
	default:
		return 0, fmt.Errorf("invalid --filetype %q (expected obj|asm)", value)
	}
}

// uiMode selects the Bubble Tea progress view for compile. auto enables it
// only when stdout is a terminal.
type uiMode string

const (
	uiAuto uiMode = "auto"
	uiOn   uiMode = "on"
	uiOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch m := uiMode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return uiAuto, nil
	case uiAuto, uiOn, uiOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid --ui %q (expected auto|on|off)", value)
	}
}

// wantsProgressUI reports whether compile should drive the progress view
// instead of printing one line per output.
func (m uiMode) wantsProgressUI(out io.Writer) bool {
	switch m {
	case uiOn:
		return true
	case uiOff:
		return false
	}
	f, ok := out.(*os.File)
	return ok && isTerminal(f)
}

func (c *cli) runCompile(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	targetFlag, err := flags.GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	optLevel, err := flags.GetInt("opt-level")
	if err != nil {
		return fmt.Errorf("failed to get opt-level flag: %w", err)
	}
	fileTypeStr, err := flags.GetString("filetype")
	if err != nil {
		return fmt.Errorf("failed to get filetype flag: %w", err)
	}
	fileType, err := readFileType(fileTypeStr)
	if err != nil {
		return err
	}
	outputDir, err := flags.GetString("output-dir")
	if err != nil {
		return fmt.Errorf("failed to get output-dir flag: %w", err)
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	uiStr, err := flags.GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if optLevel < 0 || optLevel > 3 {
		return fmt.Errorf("invalid -O %d (expected 0-3)", optLevel)
	}

	var commandLog io.Writer
	if verbose {
		commandLog = cmd.ErrOrStderr()
	}
	sess, err := c.session(cmd, commandLog)
	if err != nil {
		return err
	}
	targetStr, err := sess.expand(targetFlag)
	if err != nil {
		return err
	}
	c.initialize(sess)

	req := &buildpipeline.BuildRequest{
		Env:       sess.env,
		Target:    targetStr,
		Inputs:    args,
		OutputDir: outputDir,
		FileType:  fileType,
		OptLevel:  optLevel,
		Jobs:      jobs,
	}

	out := cmd.OutOrStdout()
	var res buildpipeline.BuildResult
	if !quiet && !verbose && mode.wantsProgressUI(out) {
		res, err = runBuildWithUI(cmd.Context(), out, "compile", req)
	} else {
		res, err = buildpipeline.Build(cmd.Context(), req)
		if !quiet {
			reportOutputs(out, res)
		}
	}
	if res.Timings.Has(buildpipeline.StageResolve) {
		c.timer.Record("resolve", res.Timings.Duration(buildpipeline.StageResolve), "")
	}
	if res.Timings.Has(buildpipeline.StageCodegen) {
		c.timer.Record("codegen", res.Timings.Duration(buildpipeline.StageCodegen), fmt.Sprintf("%d files", len(res.Outputs)))
	}
	if err != nil {
		if failed := len(res.Failed()); failed > 0 {
			return fmt.Errorf("%d of %d files failed:\n%w", failed, len(res.Outputs), err)
		}
		return err
	}
	return nil
}

func reportOutputs(out io.Writer, res buildpipeline.BuildResult) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	for _, o := range res.Outputs {
		if o.Err != nil {
			fmt.Fprintf(out, "%s %s\n", bad("failed"), o.Input)
			continue
		}
		fmt.Fprintf(out, "%s %s -> %s (%s)\n", ok("wrote "), o.Input, o.Path, o.Elapsed.Round(time.Millisecond))
	}
}
