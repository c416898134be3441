//go:build darwin

package host

import "golang.org/x/sys/unix"

// systemMemory returns the total physical memory in bytes.
func systemMemory() uint64 {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil || total == 0 {
		slogger().Debug("host: hw.memsize unavailable, using fallback memory size", "error", err)
		return fallbackMemory
	}
	return total
}
