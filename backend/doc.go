// Package backend provides the pluggable compute platform abstraction used
// by gpustream.
//
// A [Platform] enumerates [Device] values; opening a device yields a
// [Context] with one in-order queue, from which programs, buffers and
// kernels are created. The model follows OpenCL closely enough that any
// compute API with buffers, work-groups and barriers can implement it.
//
// # Platform Registration
//
// Platforms are registered via init() functions and enumerated at runtime:
//
//	import _ "github.com/gogpu/gpustream/backend/host"
//	import _ "github.com/gogpu/gpustream/backend/wgpu"
//
// [Platforms] returns every registered platform in enumeration order,
// hardware APIs first and the host emulator last. [Select] restricts the
// set to named platforms:
//
//	ps, err := backend.Select("vulkan", "host")
//
// # Available Platforms
//
//   - "host": in-process work-group emulator (always available)
//   - "vulkan", "metal", "dx12", "gles": GPUs via gogpu/wgpu HAL
package backend
