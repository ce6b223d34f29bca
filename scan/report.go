package scan

import (
	"bufio"
	"io"
	"slices"
	"strconv"
	"strings"

	"portscan/types"
)

// Report writes a blank separator line followed by one "<port> is open" line
// per port, in ascending order. ports is left untouched.
func Report(w io.Writer, ports []types.Port) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('\n')
	for _, p := range sortedCopy(ports) {
		bw.WriteString(strconv.Itoa(int(p)))
		bw.WriteString(" is open\n")
	}
	return bw.Flush()
}

// Render returns what Report would write.
func Render(ports []types.Port) string {
	var sb strings.Builder
	_ = Report(&sb, ports)
	return sb.String()
}

func sortedCopy(ports []types.Port) []types.Port {
	out := slices.Clone(ports)
	slices.Sort(out)
	return out
}
