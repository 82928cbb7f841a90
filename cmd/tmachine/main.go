package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tmachine/internal/llvmenv"
	"tmachine/internal/observ"
	"tmachine/internal/prof"
	"tmachine/internal/target"
	"tmachine/internal/version"
)

// main is the only place the process terminates; every command returns
// its error up to here.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := newCLI(llvmenv.InitGlobal).execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the state shared by one invocation's commands.
type cli struct {
	newEnv  func(llvmenv.Registry) *llvmenv.Env
	timer   *observ.Timer
	sess    *session
	cleanup func()
	profile *prof.Session
}

func newCLI(newEnv func(llvmenv.Registry) *llvmenv.Env) *cli {
	return &cli{newEnv: newEnv, timer: observ.NewTimer()}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tmachine",
		Short: "Resolve LLVM target strings into configured target machines",
		Long: `tmachine parses "llvm -mtriple=... -mcpu=... -mattr=..." target strings,
resolves them against the LLVM backends llc provides and lowers IR with the
resulting machine configuration.`,
		Version:           version.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun,
	}

	flags := root.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "print phase timings to stderr")
	flags.String("config", "", "path to tmachine.toml (default: search from the working directory)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "ring buffer capacity for --trace-mode ring|both")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	flags.String("cpuprofile", "", "write a CPU profile to this file")
	flags.String("memprofile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to this file")

	root.AddCommand(
		c.parseCommand(),
		c.resolveCommand(),
		c.targetsCommand(),
		c.compileCommand(),
		c.cacheCommand(),
		versionCommand(),
	)
	return root
}

func (c *cli) preRun(cmd *cobra.Command, _ []string) error {
	if err := applyColorMode(cmd); err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	c.cleanup = cleanup

	var profCfg prof.Config
	profCfg.CPU, _ = cmd.Flags().GetString("cpuprofile")
	profCfg.Mem, _ = cmd.Flags().GetString("memprofile")
	profCfg.Trace, _ = cmd.Flags().GetString("runtime-trace")
	if profCfg.Enabled() {
		if c.profile, err = prof.Start(profCfg); err != nil {
			return err
		}
	}
	return nil
}

// execute runs args and returns the process exit code.
func (c *cli) execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.cleanup != nil {
		c.cleanup()
	}
	if profErr := c.profile.Stop(); profErr != nil {
		fmt.Fprintf(stderr, "profile: %v\n", profErr)
	}
	if showTimings, _ := root.PersistentFlags().GetBool("timings"); showTimings {
		fmt.Fprint(stderr, c.timer.Summary())
	}
	if err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

var errorLabel = color.New(color.FgRed, color.Bold)

func printError(w io.Writer, err error) {
	errorLabel.Fprint(w, "error:")
	fmt.Fprintf(w, " %v\n", err)
	var terr *target.Error
	if errors.As(err, &terr) && terr.Kind == target.KindTargetLookup {
		fmt.Fprintln(w, "hint: run `tmachine targets` to list the backends llc provides")
	}
}

func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// targetArg joins positional words into one target string so both
// `resolve "llvm -mcpu=x"` and `resolve -- llvm -mcpu=x` work.
func targetArg(args []string) string {
	return strings.Join(args, " ")
}
