// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpustream

import (
	"sync"

	"github.com/gogpu/gpustream/backend"
)

// Catalog is an ordered list of compute devices gathered from a set of
// platforms. The list is populated once, on first use, and never changes
// afterwards. A Catalog is safe for concurrent use.
type Catalog struct {
	platforms []backend.Platform

	once    sync.Once
	devices []backend.Device
}

// Listing is one catalog entry as shown to users.
type Listing struct {
	Index  int
	Name   string
	Driver string
}

// NewCatalog creates a catalog over platforms, in the given order.
// Without arguments it uses every registered platform in priority order.
func NewCatalog(platforms ...backend.Platform) *Catalog {
	return &Catalog{platforms: platforms}
}

// Enumerate queries the platforms and caches their devices. Only the first
// call does any work; later calls return its result. A platform that fails
// to enumerate is logged and skipped. A catalog with no devices is valid.
func (c *Catalog) Enumerate() {
	c.once.Do(c.enumerate)
}

func (c *Catalog) enumerate() {
	platforms := c.platforms
	if len(platforms) == 0 {
		platforms = backend.Platforms()
	}
	for _, p := range platforms {
		devs, err := p.Devices()
		if err != nil {
			Logger().Warn("gpustream: platform enumeration failed", "platform", p.Name(), "error", err)
			continue
		}
		Logger().Debug("gpustream: platform enumerated", "platform", p.Name(), "devices", len(devs))
		c.devices = append(c.devices, devs...)
	}
}

// Len returns the number of devices.
func (c *Catalog) Len() int {
	c.Enumerate()
	return len(c.devices)
}

// Device returns the device at index.
func (c *Catalog) Device(index int) (backend.Device, error) {
	c.Enumerate()
	if index < 0 || index >= len(c.devices) {
		return nil, &DeviceIndexError{Index: index, Count: len(c.devices)}
	}
	return c.devices[index], nil
}

// Name returns the name of the device at index.
func (c *Catalog) Name(index int) (string, error) {
	d, err := c.Device(index)
	if err != nil {
		return "", err
	}
	return d.Info().Name, nil
}

// Driver returns the driver version string of the device at index.
func (c *Catalog) Driver(index int) (string, error) {
	d, err := c.Device(index)
	if err != nil {
		return "", err
	}
	return d.Info().Driver, nil
}

// List returns every device with its index, name and driver.
func (c *Catalog) List() []Listing {
	c.Enumerate()
	out := make([]Listing, len(c.devices))
	for i, d := range c.devices {
		info := d.Info()
		out[i] = Listing{Index: i, Name: info.Name, Driver: info.Driver}
	}
	return out
}
