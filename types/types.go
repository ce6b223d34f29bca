package types

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Port is a TCP port number. Port 0 is reserved and never scanned.
type Port uint16

const (
	MinPort Port = 1
	MaxPort Port = 65535
)

const (
	DefaultWorkers     = 4
	DefaultTimeout     = 3 * time.Second
	DefaultMaxParallel = 1024
)

type ScanMode uint8

const (
	Connect ScanMode = iota
	SYN
)

func (m ScanMode) String() string {
	switch m {
	case Connect:
		return "connect"
	case SYN:
		return "syn"
	default:
		return fmt.Sprintf("ScanMode(%d)", uint8(m))
	}
}

// ParseScanMode accepts the names produced by ScanMode.String, case-insensitively.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "connect", "tcp":
		return Connect, nil
	case "syn":
		return SYN, nil
	default:
		return Connect, fmt.Errorf("unknown scan mode %q", s)
	}
}

type ScanState uint8

const (
	UNKNOWN ScanState = iota
	OPEN
	FILTERED
	CLOSED
)

func (s ScanState) String() string {
	switch s {
	case OPEN:
		return "open"
	case FILTERED:
		return "filtered"
	case CLOSED:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNoWorkers      = errors.New("thread count must be at least 1")
	ErrInvalidTarget  = errors.New("invalid target address")
	ErrInvalidTimeout = errors.New("timeout must not be negative")
)

// ScanConfig is built once before a scan starts and never mutated afterwards.
type ScanConfig struct {
	Target  netip.Addr
	Workers int
	Timeout time.Duration
	Mode    ScanMode
	// Interface names the capture interface for SYN scans. Empty selects one.
	Interface string
	// MaxParallel bounds how many workers run at the same time. Zero means
	// DefaultMaxParallel.
	MaxParallel int
	Verbose     bool
}

// DefaultScanConfig returns a config for target with every other field at its default.
func DefaultScanConfig(target netip.Addr) ScanConfig {
	return ScanConfig{
		Target:      target,
		Workers:     DefaultWorkers,
		Timeout:     DefaultTimeout,
		Mode:        Connect,
		MaxParallel: DefaultMaxParallel,
	}
}

func (c ScanConfig) Validate() error {
	if c.Workers < 1 {
		return ErrNoWorkers
	}
	if !c.Target.IsValid() {
		return ErrInvalidTarget
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max parallel must not be negative, got %d", c.MaxParallel)
	}
	return nil
}

// Parallelism is the number of workers allowed to run at once.
func (c ScanConfig) Parallelism() int {
	limit := c.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}
	return min(c.Workers, limit)
}
