// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpustream/backend"
)

// ErrForeignBuffer is returned when a buffer from another context or
// platform is passed to a wgpu context.
var ErrForeignBuffer = errors.New("wgpu: buffer belongs to another context")

// Context is an open HAL device with its queue.
type Context struct {
	device   hal.Device
	queue    hal.Queue
	variant  gputypes.Backend
	info     backend.DeviceInfo
	released bool

	// maxGroups is the work-group count limit per dispatch dimension.
	maxGroups uint32

	// pending holds submitted command buffers until the device is idle.
	pending []hal.CommandBuffer
}

// Buffer is a HAL storage buffer.
type Buffer struct {
	ctx    *Context
	raw    hal.Buffer
	label  string
	size   uint64
	access backend.Access
}

// Label returns the debug name.
func (b *Buffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Access returns the kernel access mode.
func (b *Buffer) Access() backend.Access { return b.access }

// Release destroys the HAL buffer.
func (b *Buffer) Release() {
	if b.raw == nil {
		return
	}
	b.ctx.device.DestroyBuffer(b.raw)
	b.raw = nil
}

// CreateBuffer creates a storage buffer. Read-write buffers accept host
// uploads; every buffer can be copied out for readback.
func (c *Context) CreateBuffer(label string, size uint64, access backend.Access) (backend.Buffer, error) {
	if c.released {
		return nil, backend.ErrReleased
	}
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("wgpu: buffer %q: size %d must be a positive multiple of 4: %w", label, size, backend.ErrSize)
	}
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	if access == backend.ReadWrite {
		usage |= gputypes.BufferUsageCopyDst
	}
	raw, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", label, err)
	}
	slogger().Debug("wgpu: buffer created", "label", label, "size", size, "access", access)
	return &Buffer{ctx: c, raw: raw, label: label, size: size, access: access}, nil
}

func (c *Context) own(buf backend.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b.ctx != c {
		return nil, ErrForeignBuffer
	}
	if c.released || b.raw == nil {
		return nil, fmt.Errorf("wgpu: buffer %q: %w", b.label, backend.ErrReleased)
	}
	return b, nil
}

// Write uploads data into buf and waits for the upload to land.
func (c *Context) Write(buf backend.Buffer, data []byte) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}
	if b.access == backend.WriteOnly {
		return fmt.Errorf("wgpu: write to %s buffer %q: %w", b.access, b.label, backend.ErrAccess)
	}
	if uint64(len(data)) != b.size {
		return fmt.Errorf("wgpu: write %d bytes to buffer %q of %d: %w", len(data), b.label, b.size, backend.ErrSize)
	}
	if err := c.queue.WriteBuffer(b.raw, 0, data); err != nil {
		return fmt.Errorf("wgpu: write buffer %q: %w", b.label, err)
	}
	return c.Finish()
}

// Read copies buf into dst through a mappable staging buffer.
func (c *Context) Read(buf backend.Buffer, dst []byte) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}
	if uint64(len(dst)) != b.size {
		return fmt.Errorf("wgpu: read %d bytes from buffer %q of %d: %w", len(dst), b.label, b.size, backend.ErrSize)
	}

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + "_staging",
		Size:  b.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	err = c.record("readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: b.size},
		})
	})
	if err != nil {
		return err
	}
	if err := c.Finish(); err != nil {
		return err
	}

	mapping, err := c.device.MapBuffer(staging, 0, b.size)
	if err != nil {
		return fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	copy(dst, unsafe.Slice((*byte)(mapping.Ptr), b.size))
	if err := c.device.UnmapBuffer(staging); err != nil {
		return fmt.Errorf("wgpu: unmap staging buffer: %w", err)
	}
	return nil
}

// record encodes one command buffer with fn and submits it.
func (c *Context) record(label string, fn func(enc hal.CommandEncoder)) error {
	enc, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	fn(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	if _, err := c.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		c.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: submit %s: %w", label, err)
	}
	c.pending = append(c.pending, cmd)
	return nil
}

// Finish waits until the device is idle.
func (c *Context) Finish() error {
	if c.released {
		return backend.ErrReleased
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: %s: %w: %w", c.info.Name, backend.ErrDeviceLost, err)
	}
	c.freePending()
	return nil
}

func (c *Context) freePending() {
	for _, cmd := range c.pending {
		c.device.FreeCommandBuffer(cmd)
	}
	c.pending = c.pending[:0]
}

// CheckDispatch reports whether groups can be folded into a two-dimensional
// dispatch within the per-dimension limit.
func (c *Context) CheckDispatch(groups uint32) error {
	if c.released {
		return backend.ErrReleased
	}
	if _, _, err := splitGroups(groups, c.maxGroups); err != nil {
		return fmt.Errorf("wgpu: %s: %w", c.info.Name, err)
	}
	return nil
}

// Release waits for outstanding work and destroys the device.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	if err := c.device.WaitIdle(); err != nil {
		slogger().Warn("wgpu: wait idle before release failed", "error", err)
	}
	c.freePending()
	c.device.Destroy()
	slogger().Debug("wgpu: device released", "adapter", c.info.Name)
}
