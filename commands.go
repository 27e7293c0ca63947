package rhi

import "github.com/gogpu/rhi/recording"

// rec returns the recorder of cb.
func (c *Context) rec(cb CommandBuffer) *recording.Recorder {
	return c.cmdBufs.Get(cb).rec
}

// i32 encodes a signed operand without sign extension.
func i32(v int32) uint64 {
	// #nosec G115 -- bit pattern is preserved and decoded with int32()
	return uint64(uint32(v))
}

// BeginCommandBuffer starts recording into cb, discarding anything
// recorded before.
func (c *Context) BeginCommandBuffer(cb CommandBuffer) {
	r := c.rec(cb)
	r.Begin()
	r.Command(recording.OpBegin)
}

// EndCommandBuffer finishes recording. sync, if valid, is marked used by
// the frame in which cb is replayed.
func (c *Context) EndCommandBuffer(cb CommandBuffer, sync SyncObject) {
	slot := c.cmdBufs.Get(cb)
	slot.sync = sync
	slot.rec.Command(recording.OpEnd, uint64(sync))
	slot.rec.End()
}

// SetPipelineState records a pipeline change. layout selects one of the
// pipeline's vertex layouts.
func (c *Context) SetPipelineState(cb CommandBuffer, ps PipelineState, layout uint32) {
	c.rec(cb).Command(recording.OpSetPipelineState, uint64(ps), uint64(layout))
}

// SetCullMode records the face culling mode for subsequent draws.
func (c *Context) SetCullMode(cb CommandBuffer, mode CullMode) {
	c.rec(cb).Command(recording.OpSetCullMode, uint64(mode))
}

// SetScissorRect enables the scissor test with r, or disables it when r
// is the zero Rect.
func (c *Context) SetScissorRect(cb CommandBuffer, r Rect) {
	c.rec(cb).Command(recording.OpSetScissorRect, i32(r.X), i32(r.Y), i32(r.Width), i32(r.Height))
}

// SetViewport sets the viewport to r, or restores the pass default when
// r is the zero Rect.
func (c *Context) SetViewport(cb CommandBuffer, r Rect) {
	c.rec(cb).Command(recording.OpSetViewport, i32(r.X), i32(r.Y), i32(r.Width), i32(r.Height))
}

// SetFillMode records solid or wireframe rasterization.
func (c *Context) SetFillMode(cb CommandBuffer, mode FillMode) {
	c.rec(cb).Command(recording.OpSetFillMode, uint64(mode))
}

// SetVertexData binds vb to a vertex stream.
func (c *Context) SetVertexData(cb CommandBuffer, vb VertexBuffer, stream uint32) {
	c.rec(cb).Command(recording.OpSetVertexData, uint64(vb), uint64(stream))
}

// SetIndices binds ib for indexed draws.
func (c *Context) SetIndices(cb CommandBuffer, ib IndexBuffer) {
	c.rec(cb).Command(recording.OpSetIndices, uint64(ib))
}

// SetQueryBuffer selects the query buffer written by subsequent draws.
func (c *Context) SetQueryBuffer(cb CommandBuffer, qb QueryBuffer) {
	c.rec(cb).Command(recording.OpSetQueryBuffer, uint64(qb))
}

// SetQueryIndex selects the query that wraps subsequent draws. Pass
// NoQuery to stop querying.
func (c *Context) SetQueryIndex(cb CommandBuffer, index uint32) {
	c.rec(cb).Command(recording.OpSetQueryIndex, uint64(index))
}

// NoQuery is the query index that disables querying.
const NoQuery = ^uint32(0)

// SetVertexConstBuffer binds buf to a vertex stage slot. The buffer's
// current contents are captured now; later updates do not affect this
// binding.
func (c *Context) SetVertexConstBuffer(cb CommandBuffer, slot uint32, buf ConstBuffer) {
	c.setConstBuffer(cb, recording.OpSetVertexConstBuffer, slot, buf)
}

// SetFragmentConstBuffer is SetVertexConstBuffer for the fragment stage.
func (c *Context) SetFragmentConstBuffer(cb CommandBuffer, slot uint32, buf ConstBuffer) {
	c.setConstBuffer(cb, recording.OpSetFragmentConstBuffer, slot, buf)
}

func (c *Context) setConstBuffer(cb CommandBuffer, op recording.Opcode, slot uint32, buf ConstBuffer) {
	var inst uint64
	if buf.IsValid() {
		inst = c.constInstance(buf)
	}
	c.rec(cb).Command(op, uint64(slot), uint64(buf), inst)
}

// SetVertexTexture binds tex to a vertex stage texture unit. The
// invalid handle unbinds the unit.
func (c *Context) SetVertexTexture(cb CommandBuffer, unit uint32, tex Texture) {
	c.rec(cb).Command(recording.OpSetVertexTexture, uint64(unit), uint64(tex))
}

// SetFragmentTexture is SetVertexTexture for the fragment stage.
func (c *Context) SetFragmentTexture(cb CommandBuffer, unit uint32, tex Texture) {
	c.rec(cb).Command(recording.OpSetFragmentTexture, uint64(unit), uint64(tex))
}

// SetDepthStencilState binds ds for subsequent draws.
func (c *Context) SetDepthStencilState(cb CommandBuffer, ds DepthStencilState) {
	c.rec(cb).Command(recording.OpSetDepthStencilState, uint64(ds))
}

// SetSamplerState binds the sampler block used by every texture unit.
func (c *Context) SetSamplerState(cb CommandBuffer, ss SamplerState) {
	c.rec(cb).Command(recording.OpSetSamplerState, uint64(ss))
}

// DrawPrimitive records a non-indexed draw of count primitives.
func (c *Context) DrawPrimitive(cb CommandBuffer, prim PrimitiveType, count uint32) {
	c.rec(cb).Command(recording.OpDrawPrimitive, uint64(prim), uint64(prim.VertexCount(count)))
}

// DrawIndexedPrimitive records an indexed draw of count primitives
// starting at startIndex, with firstVertex added to every index.
func (c *Context) DrawIndexedPrimitive(cb CommandBuffer, prim PrimitiveType, count, firstVertex, startIndex uint32) {
	c.rec(cb).Command(recording.OpDrawIndexedPrimitive,
		uint64(prim), uint64(prim.VertexCount(count)), uint64(firstVertex), uint64(startIndex))
}

// SetMarker records a debug marker.
func (c *Context) SetMarker(cb CommandBuffer, text string) {
	c.rec(cb).Marker(text)
}
