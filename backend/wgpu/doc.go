// Package wgpu provides GPU compute platforms for gpustream using the
// gogpu/wgpu hardware abstraction layer.
//
// Every HAL backend compiled into the binary (Vulkan, Metal, DX12, GLES)
// becomes one [backend.Platform]; its adapters are the platform's devices.
// Platforms register themselves on import:
//
//	import _ "github.com/gogpu/gpustream/backend/wgpu"
//
// # Kernel programs
//
// Programs arrive as WGSL together with the SPIR-V produced by the naga
// front end. Vulkan consumes the SPIR-V words directly; the other backends
// translate the WGSL. All entry points share one bind group layout with
// four storage buffers (a, b, c, sum) at bindings 0..3.
//
// # Memory
//
// WebGPU does not report total device memory. Devices report the
// configured memory budget (DefaultMemoryBudget unless overridden with
// [Configure]) as their global memory, and the smaller of the maximum
// buffer size and the maximum storage binding size as the maximum single
// allocation.
//
// # Transfers
//
// Uploads use Queue.WriteBuffer. Readback copies the device buffer into a
// MapRead staging buffer, waits for the device to go idle and copies the
// mapped bytes out.
package wgpu
