//go:build windows

package scan

import "errors"

func canOpenRawSocket() (bool, error) {
	return false, errors.New("raw sockets are not supported on windows")
}
