package scan

import (
	"context"
	"errors"
	"fmt"

	"portscan/types"
)

var ErrWorkerPanic = errors.New("scan worker panicked")

var progressMarker = []byte(".")

// work probes every port in the partition of worker id, in order, and sends
// the open ones into results. It only returns early when ctx is done or the
// prober fails.
func (s *Scanner) work(ctx context.Context, id int, cfg types.ScanConfig, results chan<- types.Port) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d: %v", ErrWorkerPanic, id, r)
		}
	}()

	var scanned, open int
	for port := range Assign(id, cfg.Workers) {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := s.prober.Probe(ctx, cfg.Target, port)
		if err != nil {
			return fmt.Errorf("worker %d: probe port %d: %w", id, port, err)
		}
		scanned++
		if state != types.OPEN {
			continue
		}

		open++
		// progress is cosmetic, a failed write must not affect the result
		_, _ = s.progress.Write(progressMarker)
		results <- port
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("worker finished", "worker", id, "scanned", scanned, "open", open)
	return nil
}
