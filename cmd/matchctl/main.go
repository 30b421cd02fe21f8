package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/tapp/internal/matchctl"
	"github.com/okian/tapp/pkg/logger"
)

func main() {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &matchctl.CLI{Stdout: os.Stdout, Stderr: os.Stderr}
	err := cli.Run(ctx, os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, matchctl.ErrUsage):
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(2)
	default:
		os.Stderr.WriteString("matchctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
