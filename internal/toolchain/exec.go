package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// runCommand runs name with args, echoing the command line to log when it
// is non-nil. Stderr is folded into the returned error.
func runCommand(ctx context.Context, log io.Writer, name string, args ...string) error {
	if log != nil {
		if _, err := fmt.Fprintf(log, "%s %s\n", name, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	// #nosec G204 -- tool path comes from configuration, args are built here
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	return nil
}

// commandError surfaces the stderr captured by exec.Cmd.Output.
func commandError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
	}
	return err
}
