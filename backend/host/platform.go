// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/gogpu/gpucontext"
	"golang.org/x/sys/cpu"

	"github.com/gogpu/gpustream/backend"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultName             = "Go host emulator"
	DefaultMaxWorkgroupSize = 1024

	// fallbackMemory is used when the system memory size cannot be queried.
	fallbackMemory = 4 << 30

	// minMaxAllocation mirrors the smallest maximum allocation OpenCL
	// allows a device to report.
	minMaxAllocation = 128 << 20
)

// Config describes the devices exposed by the host platform.
// The zero value is a single device sized after the machine.
type Config struct {
	// Name is the device name. Defaults to DefaultName.
	Name string

	// Devices is the number of devices to expose. Defaults to 1.
	Devices int

	// Workers is the number of goroutines executing work-groups.
	// Defaults to runtime.NumCPU().
	Workers int

	// GlobalMemory is the reported device memory in bytes.
	// Defaults to the total system memory.
	GlobalMemory uint64

	// MaxAllocation is the reported largest single buffer in bytes.
	// Defaults to a quarter of GlobalMemory, but at least 128 MiB.
	MaxAllocation uint64

	// NoDoublePrecision makes the device report no 64-bit float support.
	NoDoublePrecision bool

	// MaxWorkgroupSize is the largest accepted work-group size.
	// Defaults to DefaultMaxWorkgroupSize.
	MaxWorkgroupSize uint32
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Devices <= 0 {
		c.Devices = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.GlobalMemory == 0 {
		c.GlobalMemory = systemMemory()
	}
	if c.MaxAllocation == 0 {
		c.MaxAllocation = max(c.GlobalMemory/4, minMaxAllocation)
	}
	c.MaxAllocation = min(c.MaxAllocation, c.GlobalMemory)
	if c.MaxWorkgroupSize == 0 {
		c.MaxWorkgroupSize = DefaultMaxWorkgroupSize
	}
	return c
}

// Platform is the host compute platform.
type Platform struct {
	cfg Config
}

func init() {
	backend.Register(backend.PlatformHost, func() backend.Platform {
		return New(Config{})
	})
}

// New creates a host platform with the given configuration.
func New(cfg Config) *Platform {
	return &Platform{cfg: cfg.withDefaults()}
}

// Name returns "host".
func (p *Platform) Name() string { return backend.PlatformHost }

// Config returns the effective configuration, defaults applied.
func (p *Platform) Config() Config { return p.cfg }

// Devices returns the configured devices.
func (p *Platform) Devices() ([]backend.Device, error) {
	devs := make([]backend.Device, p.cfg.Devices)
	for i := range devs {
		name := p.cfg.Name
		if p.cfg.Devices > 1 {
			name = fmt.Sprintf("%s #%d", name, i)
		}
		devs[i] = &Device{
			cfg: p.cfg,
			info: backend.DeviceInfo{
				Name:             name,
				Driver:           driverString(p.cfg.Workers),
				Vendor:           runtime.GOARCH,
				Platform:         backend.PlatformHost,
				Type:             gpucontext.AdapterTypeSoftware,
				GlobalMemory:     p.cfg.GlobalMemory,
				MaxAllocation:    p.cfg.MaxAllocation,
				DoublePrecision:  !p.cfg.NoDoublePrecision,
				MaxWorkgroupSize: p.cfg.MaxWorkgroupSize,
			},
		}
	}
	return devs, nil
}

// driverString describes the Go runtime and the vector extensions of the CPU.
func driverString(workers int) string {
	var features []string
	switch {
	case cpu.X86.HasAVX512F:
		features = append(features, "avx512")
	case cpu.X86.HasAVX2:
		features = append(features, "avx2")
	case cpu.ARM64.HasSVE:
		features = append(features, "sve")
	case cpu.ARM64.HasASIMD:
		features = append(features, "neon")
	}
	if cpu.X86.HasFMA {
		features = append(features, "fma")
	}
	s := fmt.Sprintf("%s %s/%s, %d workers", runtime.Version(), runtime.GOOS, runtime.GOARCH, workers)
	if len(features) > 0 {
		s += ", " + strings.Join(features, "+")
	}
	return s
}
