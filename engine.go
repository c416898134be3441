// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpustream

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gpustream/backend"
)

// Engine runs the stream kernels over three device arrays of T.
//
// An Engine owns its device context, program, kernels and buffers; Close
// releases them. Methods must not be called concurrently on the same
// Engine. Independent engines share nothing but the catalog.
type Engine[T Float] struct {
	info    backend.DeviceInfo
	elem    ElementType
	ctx     backend.Context
	prog    *Program
	a, b, c backend.Buffer
	sum     backend.Buffer
	kernels map[string]backend.Kernel

	// partial receives one dot product partial sum per work-group.
	partial []T

	arraySize int
	ws        uint32
	groups    uint32
	log       *slog.Logger
	closed    bool
}

// New creates an engine on the device at deviceIndex in cat with arrays of
// arraySize elements. Nothing is left allocated when New fails.
//
// Errors wrap ErrInvalidDeviceIndex, ErrInvalidArraySize,
// ErrUnsupportedPrecision, ErrBuildFailure or ErrInsufficientMemory.
func New[T Float](cat *Catalog, arraySize, deviceIndex int, opts ...Option) (*Engine[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}

	dev, err := cat.Device(deviceIndex)
	if err != nil {
		return nil, err
	}
	if err := checkArraySize(arraySize, o.workgroupSize); err != nil {
		return nil, err
	}

	e := &Engine[T]{
		info:      dev.Info(),
		elem:      ElementOf[T](),
		arraySize: arraySize,
		ws:        o.workgroupSize,
		log:       log,
		kernels:   make(map[string]backend.Kernel, len(KernelNames)),
	}
	if e.ws > 0 {
		e.groups = uint32(arraySize / int(e.ws))
	}
	if err := e.init(dev); err != nil {
		e.release()
		return nil, err
	}

	log.Info("gpustream: engine ready",
		"device", e.info.Name,
		"platform", e.info.Platform,
		"precision", e.elem.Name,
		"array_size", arraySize,
		"workgroup_size", e.ws)
	return e, nil
}

func checkArraySize(n int, ws uint32) error {
	switch {
	case n <= 0:
		return fmt.Errorf("%w: %d is not positive", ErrInvalidArraySize, n)
	case ws == 0:
		// Reported as a build failure by Compile.
		return nil
	case n%int(ws) != 0:
		return fmt.Errorf("%w: %d is not a multiple of the work-group size %d", ErrInvalidArraySize, n, ws)
	case uint64(n/int(ws)) > math.MaxUint32:
		return fmt.Errorf("%w: %d needs more than %d work-groups", ErrInvalidArraySize, n, uint32(math.MaxUint32))
	}
	return nil
}

func (e *Engine[T]) init(dev backend.Device) error {
	ctx, err := dev.Open()
	if err != nil {
		return fmt.Errorf("gpustream: open %s: %w", e.info.Name, err)
	}
	e.ctx = ctx

	prog, err := Compile(dev, ctx, BuildOptions{Element: e.elem, WorkgroupSize: e.ws})
	if err != nil {
		return err
	}
	e.prog = prog

	if err := ctx.CheckDispatch(e.groups); err != nil {
		return fmt.Errorf("%w: %d elements on %s: %w", ErrInvalidArraySize, e.arraySize, e.info.Name, err)
	}
	if err := e.checkMemory(); err != nil {
		return err
	}
	if err := e.allocate(); err != nil {
		return err
	}

	bindings := []backend.Buffer{e.a, e.b, e.c, e.sum}
	for _, name := range KernelNames {
		k, err := prog.Kernel(name, bindings)
		if err != nil {
			return fmt.Errorf("gpustream: bind kernel %q: %w", name, err)
		}
		e.kernels[name] = k
	}
	return nil
}

// arrayBytes is the size of one of the a, b and c buffers.
func (e *Engine[T]) arrayBytes() uint64 {
	return uint64(e.arraySize) * uint64(e.elem.Size)
}

// sumBytes is the size of the partial sum buffer.
func (e *Engine[T]) sumBytes() uint64 {
	return uint64(e.groups) * uint64(e.elem.Size)
}

// checkMemory compares the buffers against the device limits before
// anything is allocated. The partial sum buffer counts toward the total.
func (e *Engine[T]) checkMemory() error {
	if e.arrayBytes() > e.info.MaxAllocation {
		return &MemoryError{
			Device:    e.info.Name,
			Reason:    "array size exceeds maximum allocation",
			Required:  e.arrayBytes(),
			Available: e.info.MaxAllocation,
		}
	}
	total := 3*e.arrayBytes() + e.sumBytes()
	if total > e.info.GlobalMemory {
		return &MemoryError{
			Device:    e.info.Name,
			Reason:    "arrays exceed global memory",
			Required:  total,
			Available: e.info.GlobalMemory,
		}
	}
	return nil
}

func (e *Engine[T]) allocate() error {
	var err error
	create := func(label string, size uint64, access backend.Access) backend.Buffer {
		if err != nil {
			return nil
		}
		var buf backend.Buffer
		buf, err = e.ctx.CreateBuffer(label, size, access)
		if err != nil {
			err = fmt.Errorf("gpustream: allocate %s: %w", label, err)
		}
		return buf
	}
	e.a = create("a", e.arrayBytes(), backend.ReadWrite)
	e.b = create("b", e.arrayBytes(), backend.ReadWrite)
	e.c = create("c", e.arrayBytes(), backend.ReadWrite)
	e.sum = create("sum", e.sumBytes(), backend.WriteOnly)
	if err != nil {
		return err
	}
	e.partial = make([]T, e.groups)
	e.log.Debug("gpustream: buffers allocated",
		"array_bytes", e.arrayBytes(),
		"sum_bytes", e.sumBytes())
	return nil
}

// Copy sets c[i] = a[i].
func (e *Engine[T]) Copy() error { return e.run(KernelCopy) }

// Mul sets b[i] = scalar * c[i].
func (e *Engine[T]) Mul() error { return e.run(KernelMul) }

// Add sets c[i] = a[i] + b[i].
func (e *Engine[T]) Add() error { return e.run(KernelAdd) }

// Triad sets a[i] = b[i] + scalar * c[i].
func (e *Engine[T]) Triad() error { return e.run(KernelTriad) }

// Dot returns the sum of a[i] * b[i]. Each work-group reduces its slice on
// the device; the partial sums are added on the host in index order.
func (e *Engine[T]) Dot() (T, error) {
	if err := e.run(KernelDot); err != nil {
		return 0, err
	}
	if err := e.ctx.Read(e.sum, asBytes(e.partial)); err != nil {
		return 0, fmt.Errorf("gpustream: read partial sums: %w", err)
	}
	var sum T
	for _, v := range e.partial {
		sum += v
	}
	return sum, nil
}

// run dispatches one work-item per element and waits for completion.
func (e *Engine[T]) run(name string) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.kernels[name].Dispatch(e.groups); err != nil {
		return fmt.Errorf("gpustream: %s: %w", name, err)
	}
	if err := e.ctx.Finish(); err != nil {
		return fmt.Errorf("gpustream: %s: %w", name, err)
	}
	return nil
}

// WriteArrays copies a, b and c to the device. Each slice must hold
// exactly ArraySize elements.
func (e *Engine[T]) WriteArrays(a, b, c []T) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.checkLengths(a, b, c); err != nil {
		return err
	}
	for _, w := range []struct {
		buf  backend.Buffer
		data []T
	}{{e.a, a}, {e.b, b}, {e.c, c}} {
		if err := e.ctx.Write(w.buf, asBytes(w.data)); err != nil {
			return fmt.Errorf("gpustream: write %s: %w", w.buf.Label(), err)
		}
	}
	return nil
}

// ReadArrays copies the device arrays into a, b and c. Each slice must
// hold exactly ArraySize elements.
func (e *Engine[T]) ReadArrays(a, b, c []T) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.checkLengths(a, b, c); err != nil {
		return err
	}
	for _, r := range []struct {
		buf  backend.Buffer
		data []T
	}{{e.a, a}, {e.b, b}, {e.c, c}} {
		if err := e.ctx.Read(r.buf, asBytes(r.data)); err != nil {
			return fmt.Errorf("gpustream: read %s: %w", r.buf.Label(), err)
		}
	}
	return nil
}

func (e *Engine[T]) checkLengths(arrays ...[]T) error {
	for i, s := range arrays {
		if len(s) != e.arraySize {
			return fmt.Errorf("%w: array %c has %d elements, want %d",
				ErrInvalidArraySize, 'a'+i, len(s), e.arraySize)
		}
	}
	return nil
}

// ArraySize returns the number of elements per array.
func (e *Engine[T]) ArraySize() int { return e.arraySize }

// WorkgroupSize returns the number of lanes per work-group.
func (e *Engine[T]) WorkgroupSize() uint32 { return e.ws }

// Device returns the attributes of the engine's device.
func (e *Engine[T]) Device() backend.DeviceInfo { return e.info }

// Element returns the element type descriptor.
func (e *Engine[T]) Element() ElementType { return e.elem }

// Scalar returns the constant used by Mul and Triad.
func (e *Engine[T]) Scalar() T { return T(StartScalar) }

// Program returns the compiled kernel program.
func (e *Engine[T]) Program() *Program { return e.prog }

// Close waits for outstanding work and releases every device resource.
// Close is idempotent.
func (e *Engine[T]) Close() error {
	if e.closed {
		return nil
	}
	var err error
	if e.ctx != nil {
		if ferr := e.ctx.Finish(); ferr != nil && !errors.Is(ferr, backend.ErrReleased) {
			err = fmt.Errorf("gpustream: close: %w", ferr)
		}
	}
	e.release()
	e.log.Debug("gpustream: engine closed", "device", e.info.Name)
	return err
}

func (e *Engine[T]) release() {
	e.closed = true
	for name, k := range e.kernels {
		k.Release()
		delete(e.kernels, name)
	}
	if e.prog != nil {
		e.prog.Release()
		e.prog = nil
	}
	for _, buf := range []*backend.Buffer{&e.a, &e.b, &e.c, &e.sum} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	if e.ctx != nil {
		e.ctx.Release()
		e.ctx = nil
	}
	e.partial = nil
}
