// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpustream

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every error returned by this package wraps one of them,
// so callers test the kind with errors.Is and the details with errors.As.
var (
	// ErrInvalidDeviceIndex is returned when a device index is outside the
	// catalog.
	ErrInvalidDeviceIndex = errors.New("gpustream: invalid device index")

	// ErrUnsupportedPrecision is returned when float64 is requested on a
	// device without double precision support.
	ErrUnsupportedPrecision = errors.New("gpustream: device does not support double precision")

	// ErrBuildFailure is returned when the kernel program does not compile.
	ErrBuildFailure = errors.New("gpustream: kernel build failed")

	// ErrInsufficientMemory is returned when the arrays do not fit the
	// device memory limits.
	ErrInsufficientMemory = errors.New("gpustream: insufficient device memory")

	// ErrInvalidArraySize is returned for a non-positive array size, a size
	// that is not a multiple of the work-group size, a work-group count the
	// device cannot dispatch, or a host slice of the wrong length.
	ErrInvalidArraySize = errors.New("gpustream: invalid array size")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("gpustream: engine closed")
)

// DeviceIndexError reports an out-of-range device index.
type DeviceIndexError struct {
	Index int
	Count int
}

func (e *DeviceIndexError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("gpustream: invalid device index %d: no devices found", e.Index)
	}
	return fmt.Sprintf("gpustream: invalid device index %d: want 0..%d", e.Index, e.Count-1)
}

func (e *DeviceIndexError) Unwrap() error { return ErrInvalidDeviceIndex }

// PrecisionError reports a device that cannot run float64 kernels.
type PrecisionError struct {
	Device string
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("gpustream: device %s does not support double precision; use --float for single precision", e.Device)
}

func (e *PrecisionError) Unwrap() error { return ErrUnsupportedPrecision }

// Build stages reported by BuildError.
const (
	StageOptions  = "options"
	StageParse    = "parse"
	StageLower    = "lower"
	StageValidate = "validate"
	StageSPIRV    = "spirv"
	StageEntry    = "entry-points"
	StageDevice   = "device"
)

// BuildError carries the build log of a failed kernel program build.
type BuildError struct {
	Device string
	Stage  string
	Log    string
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "gpustream: kernel build failed on %s (%s)", e.Device, e.Stage)
	if e.Log != "" {
		sb.WriteString(":\n")
		sb.WriteString(e.Log)
	}
	return sb.String()
}

func (e *BuildError) Unwrap() error { return ErrBuildFailure }

// MemoryError reports which memory limit the requested arrays exceed.
type MemoryError struct {
	Device    string
	Reason    string
	Required  uint64
	Available uint64
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("gpustream: device %s: %s: need %d bytes, have %d",
		e.Device, e.Reason, e.Required, e.Available)
}

func (e *MemoryError) Unwrap() error { return ErrInsufficientMemory }
