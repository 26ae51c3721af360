package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/subx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runner.app().Run(ctx, os.Args)
	stop()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
