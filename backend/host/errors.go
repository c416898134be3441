package host

import "errors"

// Host platform errors.
var (
	// ErrOutOfMemory is returned when an allocation exceeds the device's
	// maximum allocation or its remaining global memory.
	ErrOutOfMemory = errors.New("host: out of device memory")

	// ErrForeignBuffer is returned when a buffer created by another context
	// or platform is passed to a host context.
	ErrForeignBuffer = errors.New("host: buffer belongs to another context")
)
