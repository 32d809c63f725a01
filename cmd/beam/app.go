package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aristath/beam/internal/config"
	"github.com/aristath/beam/internal/di"
	"github.com/aristath/beam/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

var commands = []subcommands.Command{
	&importCmd{out: os.Stdout},
	&summaryCmd{out: os.Stdout},
	&historyCmd{out: os.Stdout},
	&momentumCmd{out: os.Stdout},
	&snapshotsCmd{out: os.Stdout},
}

// app is the wired dependency graph shared by every command
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	container *di.Container
	jobs      *di.JobInstances
}

// openApp loads configuration and wires dependencies. Logs go to stderr so
// command output stays clean.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, container: container, jobs: jobs}, nil
}

func (a *app) Close() {
	a.container.Close()
}

// fail prints err and maps it to a failure exit status
func fail(w io.Writer, err error) subcommands.ExitStatus {
	fmt.Fprintf(w, "Error: %v\n", err)
	return subcommands.ExitFailure
}
