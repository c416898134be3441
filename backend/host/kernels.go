// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"

	"github.com/gogpu/gpustream/backend"
)

// element is the set of types the native kernels are instantiated for.
type element interface {
	float32 | float64
}

// numBindings is the number of storage buffers every entry point binds:
// a, b, c and sum, in that order.
const numBindings = 4

// args holds the typed views of a kernel's bindings.
type args[T element] struct {
	a, b, c, sum []T
	scalar       T
}

// workgroup is the execution state of one work-group.
type workgroup[T element] struct {
	id    int
	size  int
	local []T // work-group memory
}

// kernelFunc executes one work-group.
type kernelFunc[T element] func(g *workgroup[T], v *args[T])

func nativeKernels[T element]() map[string]kernelFunc[T] {
	return map[string]kernelFunc[T]{
		"copy":       copyGroup[T],
		"mul":        mulGroup[T],
		"add":        addGroup[T],
		"triad":      triadGroup[T],
		"stream_dot": dotGroup[T],
	}
}

func hasNativeKernel(name string) bool {
	_, ok := nativeKernels[float32]()[name]
	return ok
}

func copyGroup[T element](g *workgroup[T], v *args[T]) {
	lo := g.id * g.size
	for i := lo; i < lo+g.size; i++ {
		v.c[i] = v.a[i]
	}
}

func mulGroup[T element](g *workgroup[T], v *args[T]) {
	lo := g.id * g.size
	for i := lo; i < lo+g.size; i++ {
		v.b[i] = v.scalar * v.c[i]
	}
}

func addGroup[T element](g *workgroup[T], v *args[T]) {
	lo := g.id * g.size
	for i := lo; i < lo+g.size; i++ {
		v.c[i] = v.a[i] + v.b[i]
	}
}

func triadGroup[T element](g *workgroup[T], v *args[T]) {
	lo := g.id * g.size
	for i := lo; i < lo+g.size; i++ {
		v.a[i] = v.b[i] + v.scalar*v.c[i]
	}
}

// dotGroup is the work-group tree reduction. Each inner loop over lanes is
// one phase; returning from a phase is the barrier, so every slot a lane
// reads was written in an earlier phase.
func dotGroup[T element](g *workgroup[T], v *args[T]) {
	base := g.id * g.size
	local := g.local
	for lane := range local {
		local[lane] = v.a[base+lane] * v.b[base+lane]
	}
	for offset := g.size / 2; offset > 0; offset /= 2 {
		for lane := 0; lane < offset; lane++ {
			local[lane] += local[lane+offset]
		}
	}
	v.sum[g.id] = local[0]
}

// kernel is an entry point bound to host buffers.
type kernel[T element] struct {
	ctx      *Context
	name     string
	fn       kernelFunc[T]
	wgSize   int
	scalar   T
	bufs     []*Buffer
	released bool
}

func bindKernel[T element](p *Program, name string, bufs []*Buffer) *kernel[T] {
	return &kernel[T]{
		ctx:    p.ctx,
		name:   name,
		fn:     nativeKernels[T]()[name],
		wgSize: int(p.src.WorkgroupSize),
		scalar: T(p.src.Scalar),
		bufs:   bufs,
	}
}

func (k *kernel[T]) Name() string { return k.name }

func (k *kernel[T]) Release() { k.released = true }

// Dispatch enqueues groups work-groups. Buffer bounds are checked here so
// that a bad launch is reported instead of faulting a worker.
func (k *kernel[T]) Dispatch(groups uint32) error {
	k.ctx.mu.Lock()
	ctxReleased := k.ctx.released
	k.ctx.mu.Unlock()
	if k.released || ctxReleased {
		return fmt.Errorf("host: kernel %q: %w", k.name, backend.ErrReleased)
	}
	v := &args[T]{
		a:      view[T](k.bufs[0]),
		b:      view[T](k.bufs[1]),
		c:      view[T](k.bufs[2]),
		sum:    view[T](k.bufs[3]),
		scalar: k.scalar,
	}
	items := int(groups) * k.wgSize
	for i, n := range []int{len(v.a), len(v.b), len(v.c)} {
		if n < items {
			return fmt.Errorf("host: kernel %q: %d work-items exceed binding %d of %d elements: %w",
				k.name, items, i, n, backend.ErrSize)
		}
	}
	if k.name == "stream_dot" && len(v.sum) < int(groups) {
		return fmt.Errorf("host: kernel %q: %d groups exceed sum binding of %d elements: %w",
			k.name, groups, len(v.sum), backend.ErrSize)
	}

	k.ctx.q.submit(func() error {
		return k.run(int(groups), v)
	})
	return nil
}

// run splits groups into contiguous ranges, one per worker, and runs them
// on the context's pool. Each range reuses one work-group's local memory.
func (k *kernel[T]) run(groups int, v *args[T]) error {
	if groups == 0 {
		return nil
	}
	workers := min(k.ctx.pool.Workers(), groups)
	per := (groups + workers - 1) / workers

	tasks := make([]func(), 0, workers)
	for start := 0; start < groups; start += per {
		end := min(start+per, groups)
		tasks = append(tasks, func() {
			g := &workgroup[T]{size: k.wgSize, local: make([]T, k.wgSize)}
			for id := start; id < end; id++ {
				g.id = id
				k.fn(g, v)
			}
		})
	}
	if !k.ctx.pool.Run(tasks) {
		return fmt.Errorf("host: kernel %q: worker pool closed: %w", k.name, backend.ErrReleased)
	}
	return nil
}
