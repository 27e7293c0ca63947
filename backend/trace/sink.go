package trace

import (
	"github.com/gogpu/rhi/recording"
)

// BeginPass implements recording.StateSink.
func (b *Backend) BeginPass(desc recording.PassDesc) recording.Rect {
	vp := recording.Rect{Width: int32(b.width), Height: int32(b.height)} // #nosec G115 -- framebuffer sizes fit int32
	if tr, ok := desc.Color.(*Resource); ok && tr != nil {
		vp = recording.Rect{Width: int32(tr.Width), Height: int32(tr.Height)} // #nosec G115
	}
	b.record("BeginPass", "color=%s load=%v depth=%s viewport=%dx%d",
		name(desc.Color), desc.ColorLoad, name(desc.Depth), vp.Width, vp.Height)
	return vp
}

// EndPass implements recording.StateSink.
func (b *Backend) EndPass(desc recording.PassDesc) {
	b.record("EndPass", "color=%s store=%v", name(desc.Color), desc.ColorStore)
}

// ResetState implements recording.StateSink.
func (b *Backend) ResetState() { b.record("ResetState", "") }

// SetVertexBuffer implements recording.StateSink.
func (b *Backend) SetVertexBuffer(vb recording.Resource, stream uint32) {
	b.record("SetVertexBuffer", "%s stream=%d", name(vb), stream)
}

// SetIndexBuffer implements recording.StateSink.
func (b *Backend) SetIndexBuffer(ib recording.Resource, size recording.IndexSize) {
	b.record("SetIndexBuffer", "%s index=%d", name(ib), size.Bytes())
}

// BindPipeline implements recording.StateSink.
func (b *Backend) BindPipeline(ps recording.Resource, layout uint32) {
	b.record("BindPipeline", "%s layout=%d", name(ps), layout)
}

// SetVertexLayout implements recording.StateSink.
func (b *Backend) SetVertexLayout(ps recording.Resource, layout uint32, baseVertex uint32) {
	b.record("SetVertexLayout", "%s layout=%d base=%d", name(ps), layout, baseVertex)
}

// SetConstBuffer implements recording.StateSink.
func (b *Backend) SetConstBuffer(stage recording.Stage, slot uint32, cb recording.Resource, data []float32) {
	b.record("SetConstBuffer", "%s slot=%d %s floats=%d", stage, slot, name(cb), len(data))
}

// SetTexture implements recording.StateSink.
func (b *Backend) SetTexture(stage recording.Stage, unit uint32, tex recording.Resource) {
	b.record("SetTexture", "%s unit=%d %s", stage, unit, name(tex))
}

// SetDepthStencilState implements recording.StateSink.
func (b *Backend) SetDepthStencilState(ds recording.Resource) {
	b.record("SetDepthStencilState", "%s", name(ds))
}

// SetSamplerState implements recording.StateSink.
func (b *Backend) SetSamplerState(ss recording.Resource) {
	b.record("SetSamplerState", "%s", name(ss))
}

// SetCullMode implements recording.StateSink.
func (b *Backend) SetCullMode(mode recording.CullMode) {
	b.record("SetCullMode", "%d", mode)
}

// SetScissor implements recording.StateSink.
func (b *Backend) SetScissor(r recording.Rect, enabled bool) {
	if !enabled {
		b.record("SetScissor", "off")
		return
	}
	b.record("SetScissor", "%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// SetViewport implements recording.StateSink.
func (b *Backend) SetViewport(r recording.Rect) {
	b.record("SetViewport", "%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// SetFillMode implements recording.StateSink.
func (b *Backend) SetFillMode(mode recording.FillMode) {
	b.record("SetFillMode", "%d", mode)
}

// BeginQuery implements recording.StateSink.
func (b *Backend) BeginQuery(qb recording.Resource, index uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tr, ok := qb.(*Resource); ok && int(index) < len(tr.pending) {
		tr.pending[index] = true
	}
	b.recordLocked("BeginQuery", "%s index=%d", name(qb), index)
}

// EndQuery implements recording.StateSink.
// The query result is the number of draws issued inside the query.
func (b *Backend) EndQuery(qb recording.Resource, index uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tr, ok := qb.(*Resource); ok && int(index) < len(tr.pending) {
		tr.queries[index]++
		tr.pending[index] = false
	}
	b.recordLocked("EndQuery", "%s index=%d", name(qb), index)
}

// Draw implements recording.StateSink.
func (b *Backend) Draw(prim recording.PrimitiveType, vertexCount uint32) {
	b.record("Draw", "%s vertices=%d", prim, vertexCount)
}

// DrawIndexed implements recording.StateSink.
func (b *Backend) DrawIndexed(prim recording.PrimitiveType, indexCount, firstVertex, startIndex uint32, size recording.IndexSize) {
	b.record("DrawIndexed", "%s indices=%d first=%d start=%d offset=%d",
		prim, indexCount, firstVertex, startIndex, startIndex*size.Bytes())
}

// Marker implements recording.StateSink.
func (b *Backend) Marker(text string) {
	b.record("Marker", "%s", text)
}

// EndFrame implements recording.FrameControl.
func (b *Backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	b.recordLocked("EndFrame", "%d", b.frames)
	if b.loseContext {
		b.loseContext = false
		return recording.ErrContextLost
	}
	return nil
}

// Finish implements recording.FrameControl.
func (b *Backend) Finish() { b.record("Finish", "") }

// AcquireContext implements recording.FrameControl.
func (b *Backend) AcquireContext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contextOwns++
	b.recordLocked("AcquireContext", "")
}

// ReleaseContext implements recording.FrameControl.
func (b *Backend) ReleaseContext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contextOwns--
	b.recordLocked("ReleaseContext", "")
}

// CheckError implements recording.ErrorChecker.
func (b *Backend) CheckError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.failNext
	b.failNext = nil
	return err
}
