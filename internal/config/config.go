// Package config loads the gpustream command-line configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/gpustream/backend"
	"github.com/gogpu/gpustream/backend/host"
	"github.com/gogpu/gpustream/backend/wgpu"
)

// Precision names.
const (
	PrecisionFloat  = "float"
	PrecisionDouble = "double"
)

// Defaults.
const (
	DefaultArraySize     = 1 << 25
	DefaultNumTimes      = 100
	DefaultWorkgroupSize = 64
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// HostConfig configures the host reference platform.
type HostConfig struct {
	Name            string `yaml:"name"`
	Devices         int    `yaml:"devices"`
	Workers         int    `yaml:"workers"`
	GlobalMemoryMB  uint64 `yaml:"global_memory_mb"`
	MaxAllocationMB uint64 `yaml:"max_allocation_mb"`
	DoublePrecision *bool  `yaml:"double_precision"`
}

// WGPUConfig configures the platforms backed by HAL adapters.
type WGPUConfig struct {
	MemoryBudgetMB            uint64 `yaml:"memory_budget_mb"`
	IncludeSoftware           bool   `yaml:"include_software"`
	MaxWorkgroupsPerDimension uint32 `yaml:"max_workgroups_per_dimension"`
}

// Config is the gpustream configuration file.
type Config struct {
	Device        int    `yaml:"device"`
	ArraySize     int    `yaml:"array_size"`
	NumTimes      int    `yaml:"num_times"`
	Precision     string `yaml:"precision"`
	WorkgroupSize uint32 `yaml:"workgroup_size"`
	LogLevel      string `yaml:"log_level"`
	Chart         string `yaml:"chart"`

	// Platforms lists the platforms to enumerate, in order. Empty means
	// every registered platform.
	Platforms []string `yaml:"platforms"`

	Host HostConfig `yaml:"host"`
	WGPU WGPUConfig `yaml:"wgpu"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ArraySize:     DefaultArraySize,
		NumTimes:      DefaultNumTimes,
		Precision:     PrecisionDouble,
		WorkgroupSize: DefaultWorkgroupSize,
		LogLevel:      "info",
	}
}

// LoadConfig reads path over the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that flags and files can get wrong.
func (c *Config) Validate() error {
	var problems []string
	if c.Device < 0 {
		problems = append(problems, fmt.Sprintf("device %d is negative", c.Device))
	}
	if c.ArraySize <= 0 {
		problems = append(problems, fmt.Sprintf("array_size %d must be positive", c.ArraySize))
	}
	if c.NumTimes < 2 {
		problems = append(problems, fmt.Sprintf("num_times %d must be at least 2", c.NumTimes))
	}
	if c.Precision != PrecisionFloat && c.Precision != PrecisionDouble {
		problems = append(problems, fmt.Sprintf("precision %q must be %q or %q", c.Precision, PrecisionFloat, PrecisionDouble))
	}
	if c.WorkgroupSize == 0 || bits.OnesCount32(c.WorkgroupSize) != 1 {
		problems = append(problems, fmt.Sprintf("workgroup_size %d must be a power of two", c.WorkgroupSize))
	} else if c.ArraySize > 0 && c.ArraySize%int(c.WorkgroupSize) != 0 {
		problems = append(problems, fmt.Sprintf("array_size %d must be a multiple of workgroup_size %d", c.ArraySize, c.WorkgroupSize))
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}
	for _, name := range c.Platforms {
		if !backend.IsRegistered(name) {
			problems = append(problems, fmt.Sprintf("platform %q is not available (have %s)",
				name, strings.Join(backend.Available(), ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Double reports whether float64 arrays are requested.
func (c *Config) Double() bool { return c.Precision == PrecisionDouble }

// HostPlatform returns the host platform configuration.
func (c *Config) HostPlatform() host.Config {
	cfg := host.Config{
		Name:          c.Host.Name,
		Devices:       c.Host.Devices,
		Workers:       c.Host.Workers,
		GlobalMemory:  c.Host.GlobalMemoryMB << 20,
		MaxAllocation: c.Host.MaxAllocationMB << 20,
	}
	if c.Host.DoublePrecision != nil {
		cfg.NoDoublePrecision = !*c.Host.DoublePrecision
	}
	return cfg
}

// WGPUPlatform returns the wgpu platform configuration.
func (c *Config) WGPUPlatform() wgpu.Config {
	return wgpu.Config{
		MemoryBudget:              c.WGPU.MemoryBudgetMB << 20,
		IncludeSoftware:           c.WGPU.IncludeSoftware,
		MaxWorkgroupsPerDimension: c.WGPU.MaxWorkgroupsPerDimension,
	}
}

// SelectPlatforms returns the platforms to enumerate. The host platform is
// built from the host section; the others come from the registry.
func (c *Config) SelectPlatforms() ([]backend.Platform, error) {
	names := c.Platforms
	if len(names) == 0 {
		names = backend.Available()
	}
	out := make([]backend.Platform, 0, len(names))
	for _, name := range names {
		if name == backend.PlatformHost {
			out = append(out, host.New(c.HostPlatform()))
			continue
		}
		p, err := backend.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
