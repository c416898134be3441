// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpustream/backend"
)

// numBindings is the number of storage buffers bound by every entry point.
const numBindings = 4

// Program holds the shader module and one compute pipeline per entry point.
type Program struct {
	ctx            *Context
	label          string
	module         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipelines      map[string]hal.ComputePipeline
}

// Build creates the shader module and compute pipelines for src.
// Partially created objects are destroyed on failure.
func (c *Context) Build(src backend.Source) (backend.Program, error) {
	if c.released {
		return nil, backend.ErrReleased
	}
	p := &Program{
		ctx:       c,
		label:     src.Label,
		pipelines: make(map[string]hal.ComputePipeline, len(src.EntryPoints)),
	}
	if err := p.init(src); err != nil {
		p.Release()
		return nil, err
	}
	slogger().Info("wgpu: program built",
		"label", src.Label,
		"adapter", c.info.Name,
		"entry_points", len(src.EntryPoints),
		"workgroup_size", src.WorkgroupSize)
	return p, nil
}

func (p *Program) init(src backend.Source) error {
	dev := p.ctx.device

	// Vulkan takes the front-end SPIR-V as is; other backends translate WGSL.
	source := hal.ShaderSource{WGSL: src.WGSL}
	if p.ctx.variant == gputypes.BackendVulkan && len(src.SPIRV) > 0 {
		source = hal.ShaderSource{SPIRV: src.SPIRV}
	}
	module, err := dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}
	p.module = module

	entries := make([]gputypes.BindGroupLayoutEntry, numBindings)
	for i := range entries {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}
	bindLayout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   src.Label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipelineLayout, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            src.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	p.pipelineLayout = pipelineLayout

	for _, entry := range src.EntryPoints {
		pipeline, err := dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  entry,
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: entry,
			},
		})
		if err != nil {
			return fmt.Errorf("wgpu: create compute pipeline %q: %w", entry, err)
		}
		p.pipelines[entry] = pipeline
	}
	return nil
}

// Kernel creates a bind group for bindings and pairs it with the entry
// point's pipeline.
func (p *Program) Kernel(name string, bindings []backend.Buffer) (backend.Kernel, error) {
	pipeline, ok := p.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("wgpu: kernel %q: %w", name, backend.ErrUnknownKernel)
	}
	if len(bindings) != numBindings {
		return nil, fmt.Errorf("wgpu: kernel %q: got %d bindings, want %d", name, len(bindings), numBindings)
	}
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		wb, err := p.ctx.own(b)
		if err != nil {
			return nil, fmt.Errorf("wgpu: kernel %q binding %d: %w", name, i, err)
		}
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: wb.raw.NativeHandle(),
				Offset: 0,
				Size:   wb.size,
			},
		}
	}
	group, err := p.ctx.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   name + "_bg",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: kernel %q: create bind group: %w", name, err)
	}
	return &Kernel{ctx: p.ctx, name: name, pipeline: pipeline, group: group}, nil
}

// Release destroys pipelines, layouts and the shader module.
func (p *Program) Release() {
	dev := p.ctx.device
	for name, pipeline := range p.pipelines {
		dev.DestroyComputePipeline(pipeline)
		delete(p.pipelines, name)
	}
	if p.pipelineLayout != nil {
		dev.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bindLayout != nil {
		dev.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
		p.module = nil
	}
}

// Kernel is a compute pipeline with its bind group.
type Kernel struct {
	ctx      *Context
	name     string
	pipeline hal.ComputePipeline
	group    hal.BindGroup
}

// Name returns the entry point name.
func (k *Kernel) Name() string { return k.name }

// Dispatch records one compute pass and submits it. Group counts above
// the per-dimension limit are folded into a second dimension; kernels
// linearize the group id with num_workgroups.
func (k *Kernel) Dispatch(groups uint32) error {
	if k.group == nil || k.ctx.released {
		return fmt.Errorf("wgpu: kernel %q: %w", k.name, backend.ErrReleased)
	}
	x, y, err := splitGroups(groups, k.ctx.maxGroups)
	if err != nil {
		return fmt.Errorf("wgpu: kernel %q: %w", k.name, err)
	}
	return k.ctx.record(k.name, func(enc hal.CommandEncoder) {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: k.name})
		pass.SetPipeline(k.pipeline)
		pass.SetBindGroup(0, k.group, nil)
		pass.Dispatch(x, y, 1)
		pass.End()
	})
}

// splitGroups factors groups into x*y with both at most limit. The split
// is exact so that no work-group falls outside the arrays.
func splitGroups(groups, limit uint32) (x, y uint32, err error) {
	if groups <= limit {
		return groups, 1, nil
	}
	for x = limit; x > 0; x-- {
		if groups%x == 0 && groups/x <= limit {
			return x, groups / x, nil
		}
	}
	return 0, 0, fmt.Errorf("%d work-groups cannot be split into two dimensions of at most %d: %w",
		groups, limit, backend.ErrDispatch)
}

// Release destroys the bind group. The pipeline belongs to the program.
func (k *Kernel) Release() {
	if k.group != nil {
		k.ctx.device.DestroyBindGroup(k.group)
		k.group = nil
	}
}
