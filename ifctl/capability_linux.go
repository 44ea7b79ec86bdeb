package ifctl

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// capNetRaw is CAP_NET_RAW's bit position, from linux/capability.h.
const capNetRaw = 13

// HasNetRawCapability reports whether the calling process holds
// CAP_NET_RAW in its effective capability set, by reading the CapEff
// bitmask out of /proc/self/status — the same set libcap's
// cap_get_proc/cap_get_flag pair inspects, without pulling in a cgo
// dependency on libcap for a single bit test.
func HasNetRawCapability() (bool, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false, fmt.Errorf("ifctl: open /proc/self/status: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return false, fmt.Errorf("ifctl: malformed CapEff line %q", line)
		}
		mask, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			return false, fmt.Errorf("ifctl: parse CapEff %q: %w", fields[1], err)
		}
		return mask&(1<<capNetRaw) != 0, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("ifctl: scan /proc/self/status: %w", err)
	}
	return false, fmt.Errorf("ifctl: CapEff not found in /proc/self/status")
}
