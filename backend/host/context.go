// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gpustream/backend"
	"github.com/gogpu/gpustream/internal/parallel"
)

// queueDepth bounds the number of commands in flight on one context.
const queueDepth = 64

// Device is a host compute device.
type Device struct {
	cfg  Config
	info backend.DeviceInfo
}

// Info returns the device attributes.
func (d *Device) Info() backend.DeviceInfo { return d.info }

// Open creates a context with its own in-order queue and worker pool.
func (d *Device) Open() (backend.Context, error) {
	slogger().Debug("host: context opened",
		"device", d.info.Name,
		"workers", d.cfg.Workers,
		"global_memory", d.info.GlobalMemory,
		"max_allocation", d.info.MaxAllocation)
	return &Context{
		info: d.info,
		pool: parallel.NewPool(d.cfg.Workers),
		q:    newQueue(queueDepth),
	}, nil
}

// Context is a host device context.
type Context struct {
	info backend.DeviceInfo
	pool *parallel.Pool
	q    *queue

	mu        sync.Mutex
	allocated uint64
	released  bool
}

// Buffer is host memory standing in for device memory.
// Storage is word-aligned so it can be viewed as any element type.
type Buffer struct {
	ctx    *Context
	label  string
	size   uint64
	access backend.Access
	words  []uint64
}

// Label returns the debug name.
func (b *Buffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Access returns the kernel access mode.
func (b *Buffer) Access() backend.Access { return b.access }

// Release returns the buffer's memory to its context.
func (b *Buffer) Release() {
	if b.words == nil {
		return
	}
	b.words = nil
	b.ctx.mu.Lock()
	b.ctx.allocated -= b.size
	b.ctx.mu.Unlock()
}

func (b *Buffer) bytes() []byte {
	if len(b.words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.words[0])), b.size)
}

// view reinterprets the buffer as a slice of T.
func view[T element](b *Buffer) []T {
	var zero T
	n := b.size / uint64(unsafe.Sizeof(zero))
	if n == 0 || len(b.words) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b.words[0])), n)
}

// CreateBuffer allocates size bytes, enforcing the device's allocation limits.
func (c *Context) CreateBuffer(label string, size uint64, access backend.Access) (backend.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("host: buffer %q: zero size: %w", label, backend.ErrSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, backend.ErrReleased
	}
	if size > c.info.MaxAllocation {
		return nil, fmt.Errorf("host: buffer %q: %d bytes exceeds max allocation %d: %w",
			label, size, c.info.MaxAllocation, ErrOutOfMemory)
	}
	if c.allocated+size > c.info.GlobalMemory {
		return nil, fmt.Errorf("host: buffer %q: %d bytes exceeds remaining memory %d: %w",
			label, size, c.info.GlobalMemory-c.allocated, ErrOutOfMemory)
	}

	b := &Buffer{
		ctx:    c,
		label:  label,
		size:   size,
		access: access,
		words:  make([]uint64, (size+7)/8),
	}
	c.allocated += size
	slogger().Debug("host: buffer created", "label", label, "size", size, "access", access)
	return b, nil
}

// own checks that buf was created by this context and is still alive.
func (c *Context) own(buf backend.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b.ctx != c {
		return nil, ErrForeignBuffer
	}
	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released || b.words == nil {
		return nil, fmt.Errorf("host: buffer %q: %w", b.label, backend.ErrReleased)
	}
	return b, nil
}

// Write copies data into buf after all previously enqueued commands finish.
func (c *Context) Write(buf backend.Buffer, data []byte) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}
	if b.access == backend.WriteOnly {
		return fmt.Errorf("host: write to %s buffer %q: %w", b.access, b.label, backend.ErrAccess)
	}
	if uint64(len(data)) != b.size {
		return fmt.Errorf("host: write %d bytes to buffer %q of %d: %w", len(data), b.label, b.size, backend.ErrSize)
	}
	if err := c.q.finish(); err != nil {
		return err
	}
	copy(b.bytes(), data)
	return nil
}

// Read copies buf into dst after all previously enqueued commands finish.
func (c *Context) Read(buf backend.Buffer, dst []byte) error {
	b, err := c.own(buf)
	if err != nil {
		return err
	}
	if uint64(len(dst)) != b.size {
		return fmt.Errorf("host: read %d bytes from buffer %q of %d: %w", len(dst), b.label, b.size, backend.ErrSize)
	}
	if err := c.q.finish(); err != nil {
		return err
	}
	copy(dst, b.bytes())
	return nil
}

// Finish blocks until the queue is empty.
func (c *Context) Finish() error {
	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released {
		return backend.ErrReleased
	}
	return c.q.finish()
}

// CheckDispatch accepts any group count: work-groups are run from a
// linear range, so there is no per-dimension limit.
func (c *Context) CheckDispatch(groups uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return backend.ErrReleased
	}
	return nil
}

// Release stops the queue and the workers. Calling Release more than once
// is a no-op.
func (c *Context) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	leaked := c.allocated
	c.mu.Unlock()
	c.q.close()
	c.pool.Close()
	slogger().Debug("host: context released", "device", c.info.Name, "unreleased_bytes", leaked)
}
