package scan

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"portscan/types"
)

// ConnectProber completes a full TCP handshake and hangs up straight away.
// Nothing is written to or read from the connection.
type ConnectProber struct {
	timeout time.Duration
}

func NewConnectProber(timeout time.Duration) *ConnectProber {
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	return &ConnectProber{timeout: timeout}
}

func (p *ConnectProber) Probe(ctx context.Context, addr netip.Addr, port types.Port) (types.ScanState, error) {
	dialer := net.Dialer{Timeout: p.timeout}
	target := netip.AddrPortFrom(addr, uint16(port)).String()

	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return classifyDialError(err), nil
	}
	_ = conn.Close()
	return types.OPEN, nil
}

func classifyDialError(err error) types.ScanState {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return types.CLOSED
	}
	var nErr net.Error
	if errors.As(err, &nErr) && (nErr.Timeout() || isFiltered(nErr)) {
		return types.FILTERED
	}
	return types.CLOSED
}

func isFiltered(err net.Error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		msg := opErr.Err.Error()
		return strings.Contains(msg, "no route to host") ||
			strings.Contains(msg, "network is unreachable")
	}
	return false
}
