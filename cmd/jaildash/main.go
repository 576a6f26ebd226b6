// Command jaildash is the main entry point for the CLI binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jaildash/internal/cmd"
	"jaildash/internal/cmd/app"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, app.ErrReported) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(1)
	}
}

// run executes the command tree until it returns or a signal arrives.
func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRoot(&app.Options{})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
