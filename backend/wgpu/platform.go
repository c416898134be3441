// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends" // register native HAL backends

	"github.com/gogpu/gpustream/backend"
)

// DefaultMemoryBudget is the global memory reported for devices when no
// budget is configured.
const DefaultMemoryBudget = 2 << 30

// Config controls how HAL adapters are exposed as devices.
type Config struct {
	// MemoryBudget is the global memory in bytes reported for each device.
	// Zero selects DefaultMemoryBudget.
	MemoryBudget uint64

	// IncludeSoftware exposes CPU adapters (DeviceTypeCPU) as devices.
	// The HAL software rasterizer does not implement work-group barriers,
	// so such adapters are skipped by default.
	IncludeSoftware bool

	// MaxWorkgroupsPerDimension lowers the adapter's per-dimension
	// dispatch limit. Zero keeps the adapter limit.
	MaxWorkgroupsPerDimension uint32
}

var (
	configMu sync.RWMutex
	config   Config
)

// Configure sets the configuration used by platforms created afterwards,
// including the ones instantiated from the backend registry.
func Configure(cfg Config) {
	configMu.Lock()
	defer configMu.Unlock()
	config = cfg
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return config
}

// platformNames maps HAL backends to platform names.
var platformNames = map[gputypes.Backend]string{
	gputypes.BackendVulkan: backend.PlatformVulkan,
	gputypes.BackendMetal:  backend.PlatformMetal,
	gputypes.BackendDX12:   backend.PlatformDX12,
	gputypes.BackendGL:     backend.PlatformGLES,
}

// PlatformName returns the platform name for a HAL backend variant.
func PlatformName(variant gputypes.Backend) (string, bool) {
	name, ok := platformNames[variant]
	return name, ok
}

func init() {
	for _, variant := range hal.AvailableBackends() {
		name, ok := platformNames[variant]
		if !ok {
			continue
		}
		backend.Register(name, func() backend.Platform {
			return NewPlatform(variant, currentConfig())
		})
	}
}

// Platform exposes the adapters of one HAL backend.
// The HAL instance is created on first enumeration and lives as long as
// the platform.
type Platform struct {
	variant gputypes.Backend
	name    string
	cfg     Config

	once     sync.Once
	instance hal.Instance
	devices  []backend.Device
	err      error
}

// NewPlatform creates a platform for a HAL backend variant.
func NewPlatform(variant gputypes.Backend, cfg Config) *Platform {
	name, ok := platformNames[variant]
	if !ok {
		name = variant.String()
	}
	if cfg.MemoryBudget == 0 {
		cfg.MemoryBudget = DefaultMemoryBudget
	}
	return &Platform{variant: variant, name: name, cfg: cfg}
}

// Name returns the platform name (e.g. "vulkan").
func (p *Platform) Name() string { return p.name }

// Devices enumerates the backend's adapters once and caches the result.
func (p *Platform) Devices() ([]backend.Device, error) {
	p.once.Do(p.enumerate)
	return p.devices, p.err
}

func (p *Platform) enumerate() {
	halBackend, ok := hal.GetBackend(p.variant)
	if !ok {
		p.err = fmt.Errorf("wgpu: %s: %w", p.name, backend.ErrNotAvailable)
		return
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		p.err = fmt.Errorf("wgpu: %s: create instance: %w", p.name, err)
		return
	}
	p.instance = instance

	for _, exposed := range instance.EnumerateAdapters(nil) {
		if exposed.Info.DeviceType == gputypes.DeviceTypeCPU && !p.cfg.IncludeSoftware {
			slogger().Debug("wgpu: skipping software adapter", "platform", p.name, "adapter", exposed.Info.Name)
			continue
		}
		d := newDevice(p.name, exposed, p.cfg)
		slogger().Debug("wgpu: adapter found",
			"platform", p.name,
			"adapter", exposed.Info.Name,
			"type", exposed.Info.DeviceType,
			"f64", d.info.DoublePrecision,
			"max_allocation", d.info.MaxAllocation)
		p.devices = append(p.devices, d)
	}
}

// Close destroys the HAL instance. Devices must not be used afterwards.
func (p *Platform) Close() {
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
}
