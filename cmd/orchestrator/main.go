package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kingmaker16/codex-os/internal/cmd"
	"github.com/Kingmaker16/codex-os/internal/exitcode"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		code := exitcode.DetermineExitCode(err)
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			code = exitcode.Interrupted
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		exitcode.Exit(code)
	}
	exitcode.Exit(exitcode.Success)
}
