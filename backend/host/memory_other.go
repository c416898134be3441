//go:build !linux && !darwin

package host

// systemMemory returns a fixed estimate on platforms without sysinfo.
func systemMemory() uint64 { return fallbackMemory }
