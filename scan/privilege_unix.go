//go:build !windows

package scan

import "golang.org/x/sys/unix"

// canOpenRawSocket reports whether the process may open raw sockets. Only
// euid 0 is recognised; capabilities are not inspected.
func canOpenRawSocket() (bool, error) {
	return unix.Geteuid() == 0, nil
}
