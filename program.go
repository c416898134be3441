// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpustream

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/gpustream/backend"
	"github.com/gogpu/gpustream/internal/cache"
)

//go:embed shaders/stream.wgsl
var streamSource string

// Kernel entry point names.
const (
	KernelCopy  = "copy"
	KernelMul   = "mul"
	KernelAdd   = "add"
	KernelTriad = "triad"
	KernelDot   = "stream_dot"
)

// KernelNames lists the entry points of the kernel program in build order.
var KernelNames = []string{KernelCopy, KernelMul, KernelAdd, KernelTriad, KernelDot}

// DefaultWorkgroupSize is the work-group size used when none is given.
const DefaultWorkgroupSize = 64

// StartScalar is the constant used by Mul and Triad.
const StartScalar = 0.3

// BuildOptions are the compile parameters of the kernel program.
type BuildOptions struct {
	// Element is the array element type.
	Element ElementType

	// WorkgroupSize is the number of lanes per work-group. It must be a
	// power of two; the dot reduction halves it down to one lane.
	WorkgroupSize uint32
}

// Header renders the options as the WGSL prelude that precedes the
// kernel source.
func (o BuildOptions) Header() string {
	return fmt.Sprintf("alias real = %s;\nconst WGSIZE: u32 = %du;\n", o.Element.WGSL, o.WorkgroupSize)
}

// frontEnds caches the SPIR-V of the fixed kernel source per build options.
var frontEnds = cache.New[BuildOptions, []uint32](16)

// Program is the kernel program built for one device context.
type Program struct {
	prog   backend.Program
	opts   BuildOptions
	source string
	spirv  []uint32
}

// Compile builds the kernel program for dev in ctx. The front end runs
// first, so source errors are reported the same way on every platform.
func Compile(dev backend.Device, ctx backend.Context, opts BuildOptions) (*Program, error) {
	info := dev.Info()
	if opts.Element.Double() && !info.DoublePrecision {
		return nil, &PrecisionError{Device: info.Name}
	}
	if err := checkWorkgroupSize(opts.WorkgroupSize, info.MaxWorkgroupSize); err != nil {
		return nil, &BuildError{Device: info.Name, Stage: StageOptions, Log: err.Error()}
	}

	source := opts.Header() + streamSource
	words, err := frontEnds.GetOrCreate(opts, func() ([]uint32, error) {
		return frontEnd(info.Name, source, opts.WorkgroupSize)
	})
	if err != nil {
		return nil, err
	}

	prog, err := ctx.Build(backend.Source{
		Label:         "stream_" + opts.Element.WGSL,
		WGSL:          source,
		SPIRV:         words,
		ElementSize:   opts.Element.Size,
		WorkgroupSize: opts.WorkgroupSize,
		Scalar:        StartScalar,
		EntryPoints:   KernelNames,
	})
	if err != nil {
		return nil, &BuildError{Device: info.Name, Stage: StageDevice, Log: err.Error()}
	}
	return &Program{prog: prog, opts: opts, source: source, spirv: words}, nil
}

func checkWorkgroupSize(ws, limit uint32) error {
	switch {
	case ws == 0:
		return errors.New("work-group size is zero")
	case bits.OnesCount32(ws) != 1:
		return fmt.Errorf("work-group size %d is not a power of two", ws)
	case limit > 0 && ws > limit:
		return fmt.Errorf("work-group size %d exceeds device limit %d", ws, limit)
	}
	return nil
}

// frontEnd parses, lowers and validates source with naga, checks the entry
// points and returns the SPIR-V words.
func frontEnd(device, source string, ws uint32) ([]uint32, error) {
	fail := func(stage, log string) error {
		return &BuildError{Device: device, Stage: stage, Log: log}
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fail(StageParse, err.Error())
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fail(StageLower, err.Error())
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fail(StageValidate, err.Error())
	}
	if len(verrs) > 0 {
		lines := make([]string, len(verrs))
		for i, v := range verrs {
			lines[i] = v.Error()
		}
		return nil, fail(StageValidate, strings.Join(lines, "\n"))
	}
	if err := checkEntryPoints(module, ws); err != nil {
		return nil, fail(StageEntry, err.Error())
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fail(StageSPIRV, err.Error())
	}
	if len(code)%4 != 0 {
		return nil, fail(StageSPIRV, fmt.Sprintf("SPIR-V length %d is not a multiple of 4", len(code)))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// checkEntryPoints verifies that every kernel is a compute entry point
// whose work-group size matches the one used to schedule it.
func checkEntryPoints(module *ir.Module, ws uint32) error {
	var problems []string
	for _, name := range KernelNames {
		i := slices.IndexFunc(module.EntryPoints, func(ep ir.EntryPoint) bool { return ep.Name == name })
		if i < 0 {
			problems = append(problems, fmt.Sprintf("entry point %q not found", name))
			continue
		}
		ep := module.EntryPoints[i]
		if ep.Stage != ir.StageCompute {
			problems = append(problems, fmt.Sprintf("entry point %q is not a compute shader", name))
			continue
		}
		if ep.Workgroup != [3]uint32{ws, 1, 1} {
			problems = append(problems, fmt.Sprintf("entry point %q: workgroup_size %v, want (%d, 1, 1)",
				name, ep.Workgroup, ws))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "\n"))
	}
	return nil
}

// Options returns the compile parameters.
func (p *Program) Options() BuildOptions { return p.opts }

// Source returns the complete WGSL source, prelude included.
func (p *Program) Source() string { return p.source }

// SPIRV returns a copy of the SPIR-V words produced by the front end.
func (p *Program) SPIRV() []uint32 { return slices.Clone(p.spirv) }

// Kernel binds the named entry point to the a, b, c and sum buffers.
func (p *Program) Kernel(name string, bindings []backend.Buffer) (backend.Kernel, error) {
	return p.prog.Kernel(name, bindings)
}

// Release frees the device program.
func (p *Program) Release() {
	if p.prog != nil {
		p.prog.Release()
		p.prog = nil
	}
}
