package scan

import (
	"iter"

	"portscan/types"
)

// Assign yields the ports owned by workerID out of n workers: workerID+1,
// then every n-th port after it, up to types.MaxPort. Across workers 0..n-1
// every port in [1, 65535] is yielded exactly once. Workers past the end of
// the port space, or invalid arguments, get an empty sequence.
func Assign(workerID, n int) iter.Seq[types.Port] {
	return func(yield func(types.Port) bool) {
		if n < 1 || workerID < 0 || workerID >= n {
			return
		}
		// int arithmetic so the stride cannot wrap around uint16
		for p := workerID + 1; p <= int(types.MaxPort); p += n {
			if !yield(types.Port(p)) {
				return
			}
		}
	}
}
