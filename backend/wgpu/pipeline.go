package wgpu

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/cache"
	"github.com/gogpu/rhi/recording"
)

// Binding layout of group 0. Const buffer slots come first, then one
// texture and one sampler binding per texture unit (vertex units first).
const (
	maxConstSlots   = 8
	maxTextureUnits = 16

	fragmentConstBase = maxConstSlots
	textureBase       = 2 * maxConstSlots
)

func vertexConstBinding(slot int) uint32   { return uint32(slot) }                     // #nosec G115
func fragmentConstBinding(slot int) uint32 { return uint32(fragmentConstBase + slot) } // #nosec G115
func textureBinding(unit uint32) uint32    { return textureBase + 2*unit }
func samplerBinding(unit uint32) uint32    { return textureBase + 2*unit + 1 }

// PipelineState is a compiled program with its bind group layout.
// Render pipelines are derived from it per draw state.
type PipelineState struct {
	id     uint32
	label  string
	desc   recording.PipelineStateDesc
	module hal.ShaderModule
	group  hal.BindGroupLayout
	layout hal.PipelineLayout
}

// Label implements recording.Resource.
func (r *PipelineState) Label() string { return r.label }

func (r *PipelineState) hasBindings() bool {
	d := &r.desc
	return len(d.VertexConsts)+len(d.FragmentConsts) > 0 || d.VertexSamplers+d.FragmentSamplers > 0
}

func (r *PipelineState) destroy(device hal.Device) {
	if r.layout != nil {
		device.DestroyPipelineLayout(r.layout)
		r.layout = nil
	}
	if r.group != nil {
		device.DestroyBindGroupLayout(r.group)
		r.group = nil
	}
	if r.module != nil {
		device.DestroyShaderModule(r.module)
		r.module = nil
	}
}

// CreatePipelineState implements recording.ResourceFactory. The WGSL
// program is compiled to SPIR-V with naga.
func (b *Backend) CreatePipelineState(desc recording.PipelineStateDesc) (recording.Resource, error) {
	switch {
	case len(desc.VertexLayouts) == 0:
		return nil, fmt.Errorf("wgpu: pipeline %q has no vertex layouts", desc.Label)
	case len(desc.VertexConsts) > maxConstSlots || len(desc.FragmentConsts) > maxConstSlots:
		return nil, fmt.Errorf("wgpu: pipeline %q uses more than %d const buffers per stage", desc.Label, maxConstSlots)
	case desc.VertexSamplers+desc.FragmentSamplers > maxTextureUnits:
		return nil, fmt.Errorf("wgpu: pipeline %q uses more than %d texture units", desc.Label, maxTextureUnits)
	}
	if desc.VertexEntry == "" {
		desc.VertexEntry = "vs_main"
	}
	if desc.FragmentEntry == "" {
		desc.FragmentEntry = "fs_main"
	}
	if desc.ColorFormat == gputypes.TextureFormatUndefined {
		desc.ColorFormat = b.format
	}

	r := &PipelineState{id: b.id(), label: desc.Label, desc: desc}
	if err := b.buildPipelineState(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Backend) buildPipelineState(r *PipelineState) error {
	spirv, err := compileWGSL(r.desc.Program)
	if err != nil {
		return fmt.Errorf("wgpu: pipeline %q: %w", r.label, err)
	}
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  r.label + "_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module %q: %w", r.label, err)
	}
	r.module = module

	group, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   r.label + "_group",
		Entries: layoutEntries(&r.desc),
	})
	if err != nil {
		r.destroy(b.device)
		return fmt.Errorf("wgpu: create bind group layout %q: %w", r.label, err)
	}
	r.group = group

	layout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            r.label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{group},
	})
	if err != nil {
		r.destroy(b.device)
		return fmt.Errorf("wgpu: create pipeline layout %q: %w", r.label, err)
	}
	r.layout = layout
	return nil
}

// compileWGSL compiles src to little-endian SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	if src == "" {
		return nil, fmt.Errorf("empty program")
	}
	raw, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile program: %w", err)
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}

func layoutEntries(d *recording.PipelineStateDesc) []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	uniform := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	for i := range d.VertexConsts {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    vertexConstBinding(i),
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     uniform,
		})
	}
	for i := range d.FragmentConsts {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    fragmentConstBinding(i),
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     uniform,
		})
	}
	for u := range d.VertexSamplers + d.FragmentSamplers {
		vis := gputypes.ShaderStageFragment
		if u < d.VertexSamplers {
			vis = gputypes.ShaderStageVertex
		}
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    textureBinding(u),
				Visibility: vis,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    samplerBinding(u),
				Visibility: vis,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	return entries
}

// pipelineKey identifies one render pipeline derived from a pipeline state.
type pipelineKey struct {
	ps, layout, ds uint32
	topology       gputypes.PrimitiveTopology
	cull           recording.CullMode
	color, depth   gputypes.TextureFormat
}

func hashPipelineKey(k pipelineKey) uint64 {
	var buf [28]byte
	binary.LittleEndian.PutUint32(buf[0:], k.ps)
	binary.LittleEndian.PutUint32(buf[4:], k.layout)
	binary.LittleEndian.PutUint32(buf[8:], k.ds)
	binary.LittleEndian.PutUint32(buf[12:], uint32(k.topology))
	binary.LittleEndian.PutUint32(buf[16:], uint32(k.cull))
	binary.LittleEndian.PutUint32(buf[20:], uint32(k.color))
	binary.LittleEndian.PutUint32(buf[24:], uint32(k.depth))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func (b *Backend) newPipelineCache(perShard int) *cache.Sharded[pipelineKey, hal.RenderPipeline] {
	return cache.NewSharded[pipelineKey, hal.RenderPipeline](perShard, hashPipelineKey,
		cache.WithEvict(func(_ pipelineKey, p hal.RenderPipeline) {
			b.retire(func() { b.device.DestroyRenderPipeline(p) })
		}))
}

// renderPipeline returns the pipeline for the current draw state.
func (b *Backend) renderPipeline(prim recording.PrimitiveType) (hal.RenderPipeline, error) {
	d := &b.draw
	key := pipelineKey{
		ps:       d.ps.id,
		layout:   d.layout,
		topology: prim.Topology(),
		cull:     d.cull,
		color:    b.frame.colorFormat,
	}
	if b.frame.hasDepth {
		key.depth = b.frame.depthFormat
		if d.ds != nil {
			key.ds = d.ds.id
		}
	}
	return b.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		return b.createRenderPipeline(key, d.ps, d.ds)
	})
}

func (b *Backend) createRenderPipeline(key pipelineKey, ps *PipelineState, ds *DepthStencil) (hal.RenderPipeline, error) {
	if int(key.layout) >= len(ps.desc.VertexLayouts) {
		return nil, fmt.Errorf("wgpu: pipeline %q has no vertex layout %d", ps.label, key.layout)
	}
	vl := ps.desc.VertexLayouts[key.layout]
	attrs := make([]gputypes.VertexAttribute, len(vl.Attributes))
	for i, a := range vl.Attributes {
		attrs[i] = gputypes.VertexAttribute{Format: a.Format, Offset: a.Offset, ShaderLocation: a.Location}
	}

	target := gputypes.ColorTargetState{Format: key.color, WriteMask: gputypes.ColorWriteMaskAll}
	if ps.desc.Blend {
		blend := gputypes.BlendStatePremultiplied()
		target.Blend = &blend
	}
	frontFace, cullMode := cullState(key.cull)

	desc := &hal.RenderPipelineDescriptor{
		Label:  ps.label,
		Layout: ps.layout,
		Vertex: hal.VertexState{
			Module:     ps.module,
			EntryPoint: ps.desc.VertexEntry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: vl.Stride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes:  attrs,
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     ps.module,
			EntryPoint: ps.desc.FragmentEntry,
			Targets:    []gputypes.ColorTargetState{target},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  key.topology,
			FrontFace: frontFace,
			CullMode:  cullMode,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if key.depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = depthStencilState(key.depth, ds)
	}

	p, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create render pipeline %q: %w", ps.label, err)
	}
	b.logger.Debug("wgpu: render pipeline created", "label", ps.label, "layout", key.layout, "topology", key.topology)
	return p, nil
}

// cullState maps a culled winding onto front face and cull mode.
func cullState(mode recording.CullMode) (gputypes.FrontFace, gputypes.CullMode) {
	switch mode {
	case recording.CullCCW:
		return gputypes.FrontFaceCW, gputypes.CullModeBack
	case recording.CullCW:
		return gputypes.FrontFaceCCW, gputypes.CullModeBack
	default:
		return gputypes.FrontFaceCCW, gputypes.CullModeNone
	}
}

func depthStencilState(format gputypes.TextureFormat, ds *DepthStencil) *hal.DepthStencilState {
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	st := &hal.DepthStencilState{
		Format:       format,
		DepthCompare: gputypes.CompareFunctionAlways,
		StencilFront: keep,
		StencilBack:  keep,
	}
	if ds == nil {
		return st
	}
	if ds.desc.DepthTest {
		st.DepthWriteEnabled = ds.desc.DepthWrite
		st.DepthCompare = ds.desc.DepthCompare
	}
	if ds.desc.Stencil && hasStencil(format) {
		test := keep
		test.Compare = gputypes.CompareFunctionEqual
		st.StencilFront, st.StencilBack = test, test
		st.StencilReadMask = 0xFF
	}
	return st
}
