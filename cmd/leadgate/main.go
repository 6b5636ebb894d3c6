package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadgate/internal/cli"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "leadgate: %v\n", err)
		stop()
		os.Exit(1)
	}
}
