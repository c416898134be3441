// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/gogpu/gpustream/backend"
)

// Program is a kernel program built for a host context.
type Program struct {
	ctx      *Context
	src      backend.Source
	released bool
}

// Build checks that every entry point of src has a native implementation
// and that the element type and work-group size are supported.
// On failure the error text is the build log.
func (c *Context) Build(src backend.Source) (backend.Program, error) {
	var log []string
	switch src.ElementSize {
	case 4:
	case 8:
		if !c.info.DoublePrecision {
			log = append(log, "64-bit floating point is disabled on this device")
		}
	default:
		log = append(log, fmt.Sprintf("unsupported element size %d", src.ElementSize))
	}
	ws := src.WorkgroupSize
	switch {
	case ws == 0:
		log = append(log, "work-group size is zero")
	case bits.OnesCount32(ws) != 1:
		log = append(log, fmt.Sprintf("work-group size %d is not a power of two", ws))
	case ws > c.info.MaxWorkgroupSize:
		log = append(log, fmt.Sprintf("work-group size %d exceeds device limit %d", ws, c.info.MaxWorkgroupSize))
	}
	if len(src.EntryPoints) == 0 {
		log = append(log, "program has no entry points")
	}
	for _, name := range src.EntryPoints {
		if !hasNativeKernel(name) {
			log = append(log, fmt.Sprintf("entry point %q: no native implementation", name))
		}
	}
	if len(log) > 0 {
		return nil, errors.New("host: build " + src.Label + " failed:\n" + strings.Join(log, "\n"))
	}

	slogger().Debug("host: program built",
		"label", src.Label,
		"element_size", src.ElementSize,
		"workgroup_size", ws,
		"entry_points", src.EntryPoints)
	return &Program{ctx: c, src: src}, nil
}

// Kernel binds the named entry point to bindings.
func (p *Program) Kernel(name string, bindings []backend.Buffer) (backend.Kernel, error) {
	if p.released {
		return nil, backend.ErrReleased
	}
	if !slices.Contains(p.src.EntryPoints, name) {
		return nil, fmt.Errorf("host: kernel %q: %w", name, backend.ErrUnknownKernel)
	}
	if len(bindings) != numBindings {
		return nil, fmt.Errorf("host: kernel %q: got %d bindings, want %d", name, len(bindings), numBindings)
	}
	bufs := make([]*Buffer, len(bindings))
	for i, b := range bindings {
		hb, err := p.ctx.own(b)
		if err != nil {
			return nil, fmt.Errorf("host: kernel %q binding %d: %w", name, i, err)
		}
		if hb.size%uint64(p.src.ElementSize) != 0 {
			return nil, fmt.Errorf("host: kernel %q binding %d: size %d not a multiple of element size: %w",
				name, i, hb.size, backend.ErrSize)
		}
		bufs[i] = hb
	}

	if p.src.ElementSize == 8 {
		return bindKernel[float64](p, name, bufs), nil
	}
	return bindKernel[float32](p, name, bufs), nil
}

// Release marks the program unusable. Bound kernels stay valid.
func (p *Program) Release() { p.released = true }
