//go:build linux

package host

import "golang.org/x/sys/unix"

// systemMemory returns the total physical memory in bytes.
func systemMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		slogger().Debug("host: sysinfo failed, using fallback memory size", "error", err)
		return fallbackMemory
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if total == 0 {
		return fallbackMemory
	}
	return total
}
