package wgpu

import (
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/recording"
)

// drawState mirrors the state the executor has set since the pass began.
// Dirty flags track what must be re-applied to the pass encoder at the
// next draw.
type drawState struct {
	ps         *PipelineState
	layout     uint32
	baseVertex uint32
	cull       recording.CullMode
	ds         *DepthStencil
	ss         *Sampler

	vb     *Buffer
	ib     *Buffer
	ibSize recording.IndexSize

	vconst [maxConstSlots]constSlot
	fconst [maxConstSlots]constSlot
	vtex   [maxTextureUnits]*Texture
	ftex   [maxTextureUnits]*Texture

	query      *QueryBuffer
	queryIndex uint32

	pipe         hal.RenderPipeline
	group        hal.BindGroup
	vbDirty      bool
	ibDirty      bool
	groupStale   bool // contents changed, a new bind group is needed
	groupUnbound bool // the pass lost the bind group
	stencilDirty bool
}

type constSlot struct {
	cb   *ConstBuffer
	data []float32
}

// invalidate marks everything for re-application, as after a new pass.
func (d *drawState) invalidate() {
	d.pipe = nil
	d.vbDirty = true
	d.ibDirty = true
	d.groupStale = true
	d.groupUnbound = true
	d.stencilDirty = true
}

// forget drops every reference to res so a released or recreated object
// is never bound again.
func (d *drawState) forget(res recording.Resource) {
	switch r := res.(type) {
	case *Buffer:
		if d.vb == r {
			d.vb = nil
		}
		if d.ib == r {
			d.ib = nil
		}
	case *Texture:
		for i := range d.vtex {
			if d.vtex[i] == r {
				d.vtex[i] = nil
			}
			if d.ftex[i] == r {
				d.ftex[i] = nil
			}
		}
	case *PipelineState:
		if d.ps == r {
			d.ps = nil
		}
	case *DepthStencil:
		if d.ds == r {
			d.ds = nil
		}
	case *Sampler:
		if d.ss == r {
			d.ss = nil
		}
	case *QueryBuffer:
		if d.query == r {
			d.query = nil
		}
	}
	d.invalidate()
}

// BeginPass implements recording.StateSink.
func (b *Backend) BeginPass(desc recording.PassDesc) recording.Rect {
	color := b.target
	if t, ok := desc.Color.(*Texture); ok && t != nil {
		color = t
	}
	vp := recording.Rect{Width: int32(color.desc.Width), Height: int32(color.desc.Height)} // #nosec G115 -- texture sizes fit int32

	if err := b.beginEncoding(); err != nil {
		b.logger.Warn("wgpu: pass skipped", "err", err)
		return vp
	}
	if b.frame.pass != nil {
		b.frame.pass.End()
	}

	rpDesc := &hal.RenderPassDescriptor{
		Label: color.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       color.view,
			LoadOp:     loadOp(desc.ColorLoad),
			StoreOp:    storeOp(desc.ColorStore),
			ClearValue: desc.ClearColor,
		}},
	}
	b.frame.hasDepth = false
	if depth, ok := desc.Depth.(*Texture); ok && depth != nil {
		att := &hal.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     loadOp(desc.DepthLoad),
			DepthStoreOp:    storeOp(desc.DepthStore),
			DepthClearValue: desc.ClearDepth,
		}
		if hasStencil(depth.format) {
			att.StencilLoadOp = gputypes.LoadOpClear
			att.StencilStoreOp = gputypes.StoreOpDiscard
		}
		rpDesc.DepthStencilAttachment = att
		b.frame.hasDepth = true
		b.frame.depthFormat = depth.format
	}

	b.frame.pass = b.frame.encoder.BeginRenderPass(rpDesc)
	b.frame.width, b.frame.height = color.desc.Width, color.desc.Height
	b.frame.colorFormat = color.format
	b.draw.invalidate()
	return vp
}

// EndPass implements recording.StateSink.
func (b *Backend) EndPass(recording.PassDesc) {
	if b.frame.pass == nil {
		return
	}
	b.frame.pass.End()
	b.frame.pass = nil
}

func loadOp(op gputypes.LoadOp) gputypes.LoadOp {
	if op == gputypes.LoadOpClear {
		return op
	}
	return gputypes.LoadOpLoad
}

func storeOp(op gputypes.StoreOp) gputypes.StoreOp {
	if op == gputypes.StoreOpDiscard {
		return op
	}
	return gputypes.StoreOpStore
}

// ResetState implements recording.StateSink.
func (b *Backend) ResetState() {
	b.draw.cull = recording.CullNone
	b.draw.ds = nil
	b.draw.stencilDirty = true
}

// SetVertexBuffer implements recording.StateSink. Pipelines declare a
// single vertex stream, so only stream 0 is bound.
func (b *Backend) SetVertexBuffer(vb recording.Resource, stream uint32) {
	if stream != 0 {
		b.logger.Debug("wgpu: vertex stream ignored", "stream", stream)
		return
	}
	b.draw.vb, _ = vb.(*Buffer)
	b.draw.vbDirty = true
}

// SetIndexBuffer implements recording.StateSink.
func (b *Backend) SetIndexBuffer(ib recording.Resource, size recording.IndexSize) {
	b.draw.ib, _ = ib.(*Buffer)
	b.draw.ibSize = size
	b.draw.ibDirty = true
}

// BindPipeline implements recording.StateSink.
func (b *Backend) BindPipeline(ps recording.Resource, layout uint32) {
	p, _ := ps.(*PipelineState)
	if p != b.draw.ps {
		b.draw.groupStale = true
	}
	b.draw.ps = p
	b.draw.layout = layout
}

// SetVertexLayout implements recording.StateSink. The base vertex becomes
// the offset the vertex buffer is bound at.
func (b *Backend) SetVertexLayout(ps recording.Resource, layout uint32, baseVertex uint32) {
	b.BindPipeline(ps, layout)
	b.draw.baseVertex = baseVertex
	b.draw.vbDirty = true
}

// SetConstBuffer implements recording.StateSink.
func (b *Backend) SetConstBuffer(stage recording.Stage, slot uint32, cb recording.Resource, data []float32) {
	if slot >= maxConstSlots {
		return
	}
	slots := &b.draw.fconst
	if stage == recording.StageVertex {
		slots = &b.draw.vconst
	}
	s := &slots[slot]
	c, _ := cb.(*ConstBuffer)
	if s.cb == c && slices.Equal(s.data, data) {
		return
	}
	s.cb = c
	s.data = append(s.data[:0], data...)
	b.draw.groupStale = true
}

// SetTexture implements recording.StateSink. A nil texture binds a 1x1
// white fallback.
func (b *Backend) SetTexture(stage recording.Stage, unit uint32, tex recording.Resource) {
	if unit >= maxTextureUnits {
		return
	}
	t, _ := tex.(*Texture)
	units := &b.draw.ftex
	if stage == recording.StageVertex {
		units = &b.draw.vtex
	}
	if units[unit] != t {
		units[unit] = t
		b.draw.groupStale = true
	}
}

// SetDepthStencilState implements recording.StateSink.
func (b *Backend) SetDepthStencilState(ds recording.Resource) {
	b.draw.ds, _ = ds.(*DepthStencil)
	b.draw.stencilDirty = true
}

// SetSamplerState implements recording.StateSink.
func (b *Backend) SetSamplerState(ss recording.Resource) {
	s, _ := ss.(*Sampler)
	if s != b.draw.ss {
		b.draw.ss = s
		b.draw.groupStale = true
	}
}

// SetCullMode implements recording.StateSink.
func (b *Backend) SetCullMode(mode recording.CullMode) {
	b.draw.cull = mode
}

// SetScissor implements recording.StateSink.
func (b *Backend) SetScissor(r recording.Rect, enabled bool) {
	rp := b.frame.pass
	if rp == nil {
		return
	}
	if !enabled {
		rp.SetScissorRect(0, 0, b.frame.width, b.frame.height)
		return
	}
	x0, y0 := clampU32(r.X, b.frame.width), clampU32(r.Y, b.frame.height)
	x1 := max(clampU32(r.X+r.Width, b.frame.width), x0)
	y1 := max(clampU32(r.Y+r.Height, b.frame.height), y0)
	rp.SetScissorRect(x0, y0, x1-x0, y1-y0)
}

// clampU32 clamps v to [0, limit].
func clampU32(v int32, limit uint32) uint32 {
	if v <= 0 {
		return 0
	}
	return min(uint32(v), limit) // #nosec G115 -- v > 0
}

// SetViewport implements recording.StateSink.
func (b *Backend) SetViewport(r recording.Rect) {
	if b.frame.pass == nil {
		return
	}
	b.frame.pass.SetViewport(float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), 0, 1)
}

// SetFillMode implements recording.StateSink. hal pipelines have no
// polygon mode; wireframe requests draw solid.
func (b *Backend) SetFillMode(mode recording.FillMode) {
	if mode == recording.FillWireframe && !b.warnWireframe {
		b.warnWireframe = true
		b.logger.Warn("wgpu: wireframe fill is not supported, drawing solid")
	}
}

// BeginQuery implements recording.StateSink.
func (b *Backend) BeginQuery(qb recording.Resource, index uint32) {
	q, ok := qb.(*QueryBuffer)
	if !ok || int(index) >= len(q.values) {
		return
	}
	q.begin(index)
	b.draw.query, b.draw.queryIndex = q, index
	if !slices.Contains(b.frame.queries, q) {
		b.frame.queries = append(b.frame.queries, q)
	}
}

// EndQuery implements recording.StateSink.
func (b *Backend) EndQuery(qb recording.Resource, index uint32) {
	q, ok := qb.(*QueryBuffer)
	if !ok || int(index) >= len(q.values) {
		return
	}
	q.end(index)
	if b.draw.query == q && b.draw.queryIndex == index {
		b.draw.query = nil
	}
}

// Draw implements recording.StateSink.
func (b *Backend) Draw(prim recording.PrimitiveType, vertexCount uint32) {
	if !b.prepareDraw(prim, false) {
		return
	}
	b.frame.pass.Draw(vertexCount, 1, 0, 0)
	b.countQuery()
}

// DrawIndexed implements recording.StateSink. The first vertex was
// already applied by SetVertexLayout.
func (b *Backend) DrawIndexed(prim recording.PrimitiveType, indexCount, _, startIndex uint32, _ recording.IndexSize) {
	if !b.prepareDraw(prim, true) {
		return
	}
	b.frame.pass.DrawIndexed(indexCount, 1, startIndex, 0, 0)
	b.countQuery()
}

func (b *Backend) countQuery() {
	if q := b.draw.query; q != nil {
		q.counts[b.draw.queryIndex]++
	}
}

// Marker implements recording.StateSink.
func (b *Backend) Marker(text string) {
	b.logger.Debug("wgpu: marker", "text", text)
}

// prepareDraw applies pending state to the pass encoder. It reports
// whether the draw can be issued.
func (b *Backend) prepareDraw(prim recording.PrimitiveType, indexed bool) bool {
	d := &b.draw
	rp := b.frame.pass
	switch {
	case rp == nil:
		return false
	case d.ps == nil || d.vb == nil:
		b.logger.Warn("wgpu: draw without pipeline or vertex buffer skipped")
		return false
	case indexed && d.ib == nil:
		b.logger.Warn("wgpu: indexed draw without index buffer skipped")
		return false
	}

	pipe, err := b.renderPipeline(prim)
	if err != nil {
		b.logger.Warn("wgpu: draw skipped", "pipeline", d.ps.label, "err", err)
		return false
	}
	if pipe != d.pipe {
		rp.SetPipeline(pipe)
		d.pipe = pipe
		d.groupUnbound = true
		d.stencilDirty = true
	}
	if d.vbDirty {
		stride := d.ps.desc.VertexLayouts[d.layout].Stride
		rp.SetVertexBuffer(0, d.vb.buf, uint64(d.baseVertex)*stride)
		d.vbDirty = false
	}
	if indexed && d.ibDirty {
		rp.SetIndexBuffer(d.ib.buf, d.ibSize.Format(), 0)
		d.ibDirty = false
	}
	if d.stencilDirty {
		if d.ds != nil && d.ds.desc.Stencil && b.frame.hasDepth && hasStencil(b.frame.depthFormat) {
			rp.SetStencilReference(d.ds.desc.StencilRef)
		}
		d.stencilDirty = false
	}
	if d.ps.hasBindings() && (d.groupStale || d.groupUnbound || d.group == nil) {
		if d.groupStale || d.group == nil {
			bg, err := b.bindGroup()
			if err != nil {
				b.logger.Warn("wgpu: draw skipped", "pipeline", d.ps.label, "err", err)
				return false
			}
			d.group = bg
			d.groupStale = false
		}
		rp.SetBindGroup(0, d.group, nil)
		d.groupUnbound = false
	}
	return true
}
