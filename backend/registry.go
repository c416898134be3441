// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"cmp"
	"slices"

	"github.com/gogpu/gpucontext"
)

// PlatformFactory creates a platform instance.
type PlatformFactory func() Platform

// Platform names used by the bundled backends.
const (
	PlatformVulkan = "vulkan"
	PlatformMetal  = "metal"
	PlatformDX12   = "dx12"
	PlatformGLES   = "gles"
	PlatformHost   = "host"
)

// Priority order for enumeration. Hardware APIs come first so that
// device index 0 is a real GPU whenever one exists.
var platformPriority = []string{
	PlatformVulkan, PlatformMetal, PlatformDX12, PlatformGLES, PlatformHost,
}

var platforms = gpucontext.NewRegistry[Platform](gpucontext.WithPriority(platformPriority...))

// Register registers a platform factory with the given name.
// This is typically called from init() functions in platform packages.
// If a platform with the same name is already registered, it is replaced.
func Register(name string, factory PlatformFactory) {
	platforms.Register(name, factory)
}

// Unregister removes a platform from the registry.
// This is useful for testing.
func Unregister(name string) {
	platforms.Unregister(name)
}

// IsRegistered checks if a platform with the given name is registered.
func IsRegistered(name string) bool {
	return platforms.Has(name)
}

// Get returns a platform instance by name.
// Returns ErrNotAvailable if the platform is not registered.
func Get(name string) (Platform, error) {
	if !platforms.Has(name) {
		return nil, ErrNotAvailable
	}
	p := platforms.Get(name)
	if p == nil {
		return nil, ErrNotAvailable
	}
	return p, nil
}

// Available returns the registered platform names in enumeration order:
// prioritized names first, then the rest sorted by name.
func Available() []string {
	names := platforms.Available()
	slices.SortFunc(names, func(a, b string) int {
		pa, pb := priorityOf(a), priorityOf(b)
		if pa != pb {
			return cmp.Compare(pa, pb)
		}
		return cmp.Compare(a, b)
	})
	return names
}

// Platforms instantiates every registered platform in enumeration order.
// Factories returning nil are skipped.
func Platforms() []Platform {
	names := Available()
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		if p := platforms.Get(name); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Select instantiates the named platforms in the given order.
// Unknown names yield ErrNotAvailable.
func Select(names ...string) ([]Platform, error) {
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		p, err := Get(name)
		if err != nil {
			return nil, &PlatformError{Name: name, Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

func priorityOf(name string) int {
	if i := slices.Index(platformPriority, name); i >= 0 {
		return i
	}
	return len(platformPriority)
}

// PlatformError records a failure attributable to one platform.
type PlatformError struct {
	Name string
	Err  error
}

func (e *PlatformError) Error() string {
	return "backend: platform " + e.Name + ": " + e.Err.Error()
}

func (e *PlatformError) Unwrap() error { return e.Err }
