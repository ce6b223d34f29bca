package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"portscan/types"
)

// Prober classifies a single port on a target. Connection failures are not
// errors: they come back as CLOSED or FILTERED. An error means the prober
// itself could not run and the scan should stop.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, port types.Port) (types.ScanState, error)
}

// NewProber returns the prober for cfg.Mode. Callers should close the result
// when it implements io.Closer.
func NewProber(cfg types.ScanConfig, logger *slog.Logger) (Prober, error) {
	switch cfg.Mode {
	case types.Connect:
		return NewConnectProber(cfg.Timeout), nil
	case types.SYN:
		return NewSynProber(cfg.Target, cfg.Interface, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown scan mode %v", cfg.Mode)
	}
}
