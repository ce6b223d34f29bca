package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"portscan/args"
	"portscan/scan"
	"portscan/utils"
)

const (
	exitOK     = 0
	exitFailed = 1
)

// run executes one scan. Configuration problems are printed as a single line
// on stdout and are not treated as failures; only a scan that could not
// finish exits non-zero.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	cfg, err := args.Load(argv, stdout)
	if errors.Is(err, args.ErrUsage) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stdout, err)
		return exitOK
	}

	logger := newLogger(stderr, cfg.Verbose)

	prober, err := scan.NewProber(cfg, logger)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return exitOK
	}
	if c, ok := prober.(io.Closer); ok {
		defer c.Close()
	}

	progress := utils.NewSyncWriter(stdout)
	ports, err := scan.NewScanner(prober, progress, logger).Run(ctx, cfg)
	if err != nil {
		return exitFailed
	}

	if err := scan.Report(stdout, ports); err != nil {
		logger.Error("failed to write report", "error", err)
		return exitFailed
	}
	return exitOK
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
