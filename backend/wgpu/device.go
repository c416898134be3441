package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpustream/backend"
)

// Device is a HAL adapter exposed as a compute device.
type Device struct {
	adapter  hal.Adapter
	features gputypes.Features
	limits   gputypes.Limits
	variant  gputypes.Backend
	info     backend.DeviceInfo

	// maxGroups is the work-group count limit per dispatch dimension.
	maxGroups uint32
}

func newDevice(platform string, exposed hal.ExposedAdapter, cfg Config) *Device {
	limits := exposed.Capabilities.Limits
	maxAlloc := min(limits.MaxBufferSize, limits.MaxStorageBufferBindingSize)
	global := max(cfg.MemoryBudget, maxAlloc)
	maxGroups := limits.MaxComputeWorkgroupsPerDimension
	if maxGroups == 0 {
		maxGroups = gputypes.DefaultLimits().MaxComputeWorkgroupsPerDimension
	}
	if cfg.MaxWorkgroupsPerDimension > 0 {
		maxGroups = min(maxGroups, cfg.MaxWorkgroupsPerDimension)
	}
	return &Device{
		adapter:   exposed.Adapter,
		features:  exposed.Features,
		limits:    limits,
		variant:   exposed.Info.Backend,
		maxGroups: maxGroups,
		info: backend.DeviceInfo{
			Name:             exposed.Info.Name,
			Driver:           driverString(exposed.Info),
			Vendor:           exposed.Info.Vendor,
			Platform:         platform,
			Type:             adapterType(exposed.Info.DeviceType),
			GlobalMemory:     global,
			MaxAllocation:    maxAlloc,
			DoublePrecision:  exposed.Features.Contains(gputypes.FeatureShaderFloat64),
			MaxWorkgroupSize: min(limits.MaxComputeInvocationsPerWorkgroup, limits.MaxComputeWorkgroupSizeX),
		},
	}
}

// Info returns the device attributes.
func (d *Device) Info() backend.DeviceInfo { return d.info }

// Open opens a logical device with the adapter's full limits and, when
// available, 64-bit float support.
func (d *Device) Open() (backend.Context, error) {
	var features gputypes.Features
	if d.info.DoublePrecision {
		features |= gputypes.Features(gputypes.FeatureShaderFloat64)
	}
	open, err := d.adapter.Open(features, d.limits)
	if err != nil {
		return nil, fmt.Errorf("wgpu: open %s: %w", d.info.Name, err)
	}
	slogger().Info("wgpu: device opened", "adapter", d.info.Name, "backend", d.variant)
	return &Context{
		device:    open.Device,
		queue:     open.Queue,
		variant:   d.variant,
		info:      d.info,
		maxGroups: d.maxGroups,
	}, nil
}

func driverString(info gputypes.AdapterInfo) string {
	switch {
	case info.Driver != "" && info.DriverInfo != "":
		return info.Driver + " " + info.DriverInfo
	case info.Driver != "":
		return info.Driver
	default:
		return info.DriverInfo
	}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
