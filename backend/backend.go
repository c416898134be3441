// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
)

// Common backend errors.
var (
	// ErrNotAvailable is returned when a requested platform is not registered
	// or its native API cannot be loaded.
	ErrNotAvailable = errors.New("backend: not available")

	// ErrReleased is returned when a context, buffer or kernel is used after Release.
	ErrReleased = errors.New("backend: resource released")

	// ErrUnknownKernel is returned when a program has no entry point with the requested name.
	ErrUnknownKernel = errors.New("backend: unknown kernel")

	// ErrAccess is returned when a transfer violates a buffer's access mode.
	ErrAccess = errors.New("backend: buffer access violation")

	// ErrSize is returned when a transfer does not match the buffer size.
	ErrSize = errors.New("backend: transfer size mismatch")

	// ErrDeviceLost is returned when the device stops responding mid-operation.
	ErrDeviceLost = errors.New("backend: device lost")

	// ErrDispatch is returned when a work-group count cannot be issued
	// within the device's dispatch limits.
	ErrDispatch = errors.New("backend: dispatch exceeds device limits")
)

// Access is the kernel-side access mode of a device buffer.
type Access uint8

const (
	// ReadWrite buffers are read and written by kernels and by the host.
	ReadWrite Access = iota

	// WriteOnly buffers are only written by kernels. The host may read
	// them back but never writes into them.
	WriteOnly
)

// String returns the access mode name.
func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "read-write"
	case WriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// DeviceInfo describes a compute device. Values are captured at
// enumeration time and never change afterwards.
type DeviceInfo struct {
	// Name is the human-readable device name.
	Name string

	// Driver is the driver version string.
	Driver string

	// Vendor is the device vendor, if known.
	Vendor string

	// Platform is the name of the platform that enumerated the device.
	Platform string

	// Type classifies the device (discrete, integrated, software).
	Type gpucontext.AdapterType

	// GlobalMemory is the total device memory in bytes.
	GlobalMemory uint64

	// MaxAllocation is the largest single buffer the device accepts, in bytes.
	MaxAllocation uint64

	// DoublePrecision reports whether kernels may use 64-bit floats.
	DoublePrecision bool

	// MaxWorkgroupSize is the largest number of lanes in one work-group.
	MaxWorkgroupSize uint32
}

// String returns "name (driver)".
func (d DeviceInfo) String() string {
	if d.Driver == "" {
		return d.Name
	}
	return d.Name + " (" + d.Driver + ")"
}

// Platform enumerates the devices of one compute API.
type Platform interface {
	// Name returns the platform identifier (e.g. "vulkan", "host").
	Name() string

	// Devices returns the platform's devices in a stable order.
	Devices() ([]Device, error)
}

// Device is an enumerated compute device.
type Device interface {
	// Info returns the device attributes.
	Info() DeviceInfo

	// Open creates a context with a single in-order queue on the device.
	Open() (Context, error)
}

// Source is a kernel program ready to be built for a device.
type Source struct {
	// Label is a debug name for the program.
	Label string

	// WGSL is the complete kernel source, prelude included.
	WGSL string

	// SPIRV is the front-end output for the same source.
	SPIRV []uint32

	// ElementSize is the byte width of the element type (4 or 8).
	ElementSize int

	// WorkgroupSize is the number of lanes per work-group.
	WorkgroupSize uint32

	// Scalar is the value of the program's scalar constant.
	Scalar float64

	// EntryPoints lists the compute entry points in declaration order.
	EntryPoints []string
}

// Context owns one device connection and its in-order queue.
//
// All methods are serialized by the caller. Write and Read block until the
// transfer completes; Kernel.Dispatch only enqueues and Finish waits for
// all enqueued work.
type Context interface {
	// Build compiles src for the device.
	Build(src Source) (Program, error)

	// CreateBuffer allocates a device buffer of size bytes.
	CreateBuffer(label string, size uint64, access Access) (Buffer, error)

	// Write copies data into buf. len(data) must equal buf.Size().
	Write(buf Buffer, data []byte) error

	// Read copies buf into dst. len(dst) must equal buf.Size().
	Read(buf Buffer, dst []byte) error

	// Finish blocks until every enqueued command has completed.
	Finish() error

	// CheckDispatch reports whether a dispatch of groups work-groups can be
	// issued on the device. Errors wrap ErrDispatch.
	CheckDispatch(groups uint32) error

	// Release destroys the context. Resources created from it must be
	// released first.
	Release()
}

// Buffer is a device-resident allocation.
type Buffer interface {
	Label() string
	Size() uint64
	Access() Access
	Release()
}

// Program is a built kernel program.
type Program interface {
	// Kernel binds the named entry point to buffers. Buffers are bound in
	// order to bindings 0..len(bindings)-1.
	Kernel(name string, bindings []Buffer) (Kernel, error)

	Release()
}

// Kernel is an entry point bound to its buffers.
type Kernel interface {
	Name() string

	// Dispatch enqueues groups work-groups of the program's work-group size.
	Dispatch(groups uint32) error

	Release()
}
