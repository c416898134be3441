// Package gpustream measures the sustainable memory bandwidth of compute
// devices.
//
// # Overview
//
// gpustream runs the five stream kernels over three large arrays on one
// device:
//
//	copy   c[i] = a[i]
//	mul    b[i] = scalar * c[i]
//	add    c[i] = a[i] + b[i]
//	triad  a[i] = b[i] + scalar * c[i]
//	dot    sum of a[i] * b[i]
//
// with scalar = 0.3. Each kernel call covers the whole array and blocks
// until the device has finished, so the caller can time it.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpustream"
//	)
//
//	cat := gpustream.NewCatalog()
//	for _, d := range cat.List() {
//	    fmt.Printf("%d: %s (%s)\n", d.Index, d.Name, d.Driver)
//	}
//
//	e, err := gpustream.New[float32](cat, 1<<25, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	err = e.WriteArrays(a, b, c)
//	err = e.Copy()
//	sum, err := e.Dot()
//
// # Devices
//
// Devices come from platforms registered in package backend. The host
// platform (backend/host) runs the kernels on CPU goroutines and is always
// available. The wgpu platforms (backend/wgpu) expose Vulkan, Metal, DX12
// and GLES adapters. A Catalog enumerates the platforms once and keeps the
// device list for its lifetime.
//
// # Kernel Program
//
// The kernels are one WGSL source compiled per engine. The element type
// and the work-group size are compile parameters rendered by
// BuildOptions.Header. The source is checked with naga before the device
// build, so a broken source fails the same way on every platform.
//
// # Errors
//
// Errors wrap one of ErrInvalidDeviceIndex, ErrUnsupportedPrecision,
// ErrBuildFailure, ErrInsufficientMemory, ErrInvalidArraySize or ErrClosed.
// The typed errors DeviceIndexError, PrecisionError, BuildError and
// MemoryError carry the details.
package gpustream

// Version is the gpustream version reported by the command-line tool.
const Version = "0.1.0"
