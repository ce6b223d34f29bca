package scan

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"portscan/types"
)

// Scanner runs a full port sweep against one target.
type Scanner struct {
	prober   Prober
	progress io.Writer
	logger   *slog.Logger
}

// NewScanner returns a Scanner that probes with prober and writes one progress
// marker to progress per open port. progress must be safe for concurrent use;
// wrap it in a utils.SyncWriter if it is not. Nil progress and logger discard
// their output.
func NewScanner(prober Prober, progress io.Writer, logger *slog.Logger) *Scanner {
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{prober: prober, progress: progress, logger: logger}
}

// Run splits the port space across cfg.Workers workers, waits for all of them
// and returns the open ports in ascending order.
//
// If any worker fails, including by panicking, the remaining workers are
// stopped and Run returns the first error along with the ports found so far.
func (s *Scanner) Run(ctx context.Context, cfg types.ScanConfig) ([]types.Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s.logger.Info("starting scan",
		"target", cfg.Target.String(),
		"mode", cfg.Mode.String(),
		"workers", cfg.Workers,
		"parallelism", cfg.Parallelism(),
		"timeout", cfg.Timeout)

	// sized for every port so a worker never blocks on send
	results := make(chan types.Port, int(types.MaxPort))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism())

	// workers past the end of the port space own nothing
	active := min(cfg.Workers, int(types.MaxPort))
	if idle := cfg.Workers - active; idle > 0 {
		s.logger.Warn("more workers than ports, extra workers stay idle", "idle", idle)
	}

	var scanErr error
	go func() {
		defer close(results)
		for id := 0; id < active && gctx.Err() == nil; id++ {
			g.Go(func() error {
				return s.work(gctx, id, cfg, results)
			})
		}
		scanErr = g.Wait()
		if scanErr == nil {
			// a probe cut short by cancellation reports closed, so the
			// result is incomplete even when every worker returned nil
			scanErr = ctx.Err()
		}
	}()

	var out []types.Port
	for port := range results {
		out = append(out, port)
	}
	slices.Sort(out)

	if scanErr != nil {
		s.logger.Error("scan aborted", "error", scanErr, "open", len(out))
		return out, scanErr
	}

	s.logger.Debug("scan finished", "open", len(out), "elapsed", time.Since(start))
	return out, nil
}
