package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/plancraft/internal/cmd"
	"github.com/felixgeelhaar/plancraft/internal/exitcode"
	"github.com/felixgeelhaar/plancraft/internal/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			exitcode.Exit(exitcode.Interrupted)
		}

		_, noColor := os.LookupEnv("NO_COLOR")
		fmt.Fprintln(os.Stderr, ux.FormatError(err, ux.NewStyles(noColor)))
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
