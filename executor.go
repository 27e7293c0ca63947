package rhi

import (
	"errors"

	"github.com/gogpu/rhi/recording"
)

// constBinding is one const buffer slot of the replay state.
type constBinding struct {
	buf  ConstBuffer
	inst uint64
}

// replayState is the state cache of the executor. It is reset when the
// first command buffer of a pass begins, since the backend starts a new
// render pass there.
type replayState struct {
	curPS         PipelineState
	lastPS        PipelineState // pipeline actually bound in the backend
	curLayout     uint32
	layoutPending bool
	baseVertex    uint32

	curVB     VertexBuffer
	curIB     IndexBuffer
	indexSize recording.IndexSize

	vertexConsts   [MaxConstBuffers]constBinding
	fragmentConsts [MaxConstBuffers]constBinding

	queryBuf   QueryBuffer
	queryIndex uint32

	pass            recording.PassDesc
	defaultViewport recording.Rect
}

func (st *replayState) reset() {
	*st = replayState{queryIndex: NoQuery}
}

// executeFrame replays the oldest queued frame if it has been sealed and
// reports whether it did. It runs on the render goroutine, or on the
// submission goroutine when no render thread is running.
func (c *Context) executeFrame() bool {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.frameMu.Lock()
	if len(c.frames) == 0 || !c.frames[0].ready {
		c.frameMu.Unlock()
		return false
	}
	f := c.frames[0]
	passes := c.sortPasses(f.passes)
	c.frameMu.Unlock()

	Logger().Debug("rhi: executing frame", "frame", f.number, "passes", len(passes))
	c.markSync(f.sync, f.number, syncUsed)

	var st replayState
	st.reset()
	for _, p := range passes {
		rp := c.passes.Get(p)
		for _, h := range rp.cmdBufs {
			sync := c.replay(h, rp, &st)
			c.markSync(sync, f.number, syncUsed)
			c.freeCommandBuffer(h)
		}
	}

	c.frameMu.Lock()
	c.frames[0] = nil
	c.frames = c.frames[1:]
	c.frameMu.Unlock()
	c.releaseConsts(f.constMark)
	for _, p := range passes {
		c.freePass(p, false)
	}
	c.stats.framesExecuted.Add(1)

	c.endFrame(f.number)
	c.sweepSyncs(f.number)
	return true
}

// sortPasses orders passes by descending priority. Each pass is inserted
// before the first pass of strictly lower priority, so equal priorities
// keep submission order.
func (c *Context) sortPasses(in []Pass) []Pass {
	out := make([]Pass, 0, len(in))
	for _, p := range in {
		prio := c.passes.Get(p).cfg.Priority
		at := len(out)
		for i, q := range out {
			if c.passes.Get(q).cfg.Priority < prio {
				at = i
				break
			}
		}
		out = append(out, 0)
		copy(out[at+1:], out[at:])
		out[at] = p
	}
	return out
}

func (c *Context) endFrame(n uint32) {
	err := c.backend.EndFrame()
	if err == nil {
		return
	}
	if !errors.Is(err, recording.ErrContextLost) {
		Logger().Warn("rhi: end of frame failed", "frame", n, "err", err)
		return
	}
	Logger().Info("rhi: graphics context lost, rejecting queued frames", "frame", n)
	c.rejectFrames()
	c.recreateResources()
}

// rejectFrames drops every sealed frame without replaying it. Their sync
// objects are signaled as if the frames had completed. A frame still
// being accumulated is kept.
func (c *Context) rejectFrames() {
	c.frameMu.Lock()
	var rejected []*frame
	kept := c.frames[:0]
	for _, f := range c.frames {
		if f.ready {
			rejected = append(rejected, f)
		} else {
			kept = append(kept, f)
		}
	}
	clear(c.frames[len(kept):])
	c.frames = kept
	c.frameMu.Unlock()

	for _, f := range rejected {
		c.markSync(f.sync, f.number, syncUsed|syncSignaled)
		for _, p := range f.passes {
			for _, h := range c.passes.Get(p).cmdBufs {
				if c.cmdBufs.IsAlive(h) {
					c.markSync(c.cmdBufs.Get(h).sync, f.number, syncUsed|syncSignaled)
				}
			}
			c.freePass(p, true)
		}
	}
	if len(rejected) > 0 {
		c.releaseConsts(rejected[len(rejected)-1].constMark)
	}
	c.stats.framesRejected.Add(uint64(len(rejected)))
}

// recreateResources rebuilds textures and vertex and index buffers after
// a lost context, re-uploading retained contents.
func (c *Context) recreateResources() {
	c.textures.Each(func(_ Texture, t *texture) {
		t.res = c.recreate(t.res, t.retained)
	})
	c.vertexBuffers.Each(func(_ VertexBuffer, v *vertexBuffer) {
		v.res = c.recreate(v.res, v.retained)
	})
	c.indexBuffers.Each(func(_ IndexBuffer, ib *indexBuffer) {
		ib.res = c.recreate(ib.res, ib.retained)
	})
}

func (c *Context) recreate(res recording.Resource, retained []byte) recording.Resource {
	if res == nil {
		return nil
	}
	r, err := c.backend.Recreate(res)
	if err != nil {
		Logger().Warn("rhi: resource re-creation failed", "label", res.Label(), "err", err)
		return res
	}
	if retained != nil {
		if err := c.backend.Update(r, 0, retained); err != nil {
			Logger().Warn("rhi: restoring resource contents failed", "label", res.Label(), "err", err)
		}
	}
	return r
}

func decodeRect(op recording.Op) recording.Rect {
	return recording.Rect{
		X:      int32(op.Arg(0)), // #nosec G115 -- encoded from int32
		Y:      int32(op.Arg(1)), // #nosec G115
		Width:  int32(op.Arg(2)), // #nosec G115
		Height: int32(op.Arg(3)), // #nosec G115
	}
}

// replay issues the commands of one buffer to the backend, skipping
// state changes the cache shows to be redundant. It returns the sync
// object attached at EndCommandBuffer.
//
//nolint:gocyclo,cyclop,funlen // opcode dispatch
func (c *Context) replay(h CommandBuffer, rp *renderPass, st *replayState) SyncObject {
	cb := c.cmdBufs.Get(h)
	b := c.backend
	var sync SyncObject

	rd := cb.rec.Reader()
	for n := 1; ; n++ {
		op, ok := rd.Next()
		if !ok {
			break
		}

		switch op.Code {
		case recording.OpBegin:
			b.ResetState()
			if cb.first {
				st.reset()
				st.pass = c.passDesc(&rp.cfg)
				st.defaultViewport = b.BeginPass(st.pass)
				b.SetViewport(st.defaultViewport)
			}

		case recording.OpEnd:
			sync = SyncObject(op.Arg(0))
			if cb.last {
				b.EndPass(st.pass)
			}

		case recording.OpSetVertexData:
			vb := VertexBuffer(op.Arg(0))
			if vb != st.curVB {
				b.SetVertexBuffer(c.vertexBuffers.Get(vb).res, op.Arg(1))
				st.curVB = vb
				st.layoutPending = true
				st.baseVertex = 0
				c.stats.vertexBufferBinds.Add(1)
			}

		case recording.OpSetIndices:
			ib := IndexBuffer(op.Arg(0))
			if ib != st.curIB {
				slot := c.indexBuffers.Get(ib)
				b.SetIndexBuffer(slot.res, slot.desc.IndexSize)
				st.curIB = ib
				st.indexSize = slot.desc.IndexSize
				c.stats.indexBufferBinds.Add(1)
			}

		case recording.OpSetQueryBuffer:
			st.queryBuf = QueryBuffer(op.Arg(0))

		case recording.OpSetQueryIndex:
			st.queryIndex = op.Arg(0)

		case recording.OpSetPipelineState:
			ps, layout := PipelineState(op.Arg(0)), op.Arg(1)
			if ps != st.curPS || layout != st.curLayout {
				st.vertexConsts = [MaxConstBuffers]constBinding{}
				st.fragmentConsts = [MaxConstBuffers]constBinding{}
				st.curPS = ps
				st.curLayout = layout
				st.lastPS = 0
				st.layoutPending = true
				st.baseVertex = 0
			}

		case recording.OpSetDepthStencilState:
			b.SetDepthStencilState(c.depthStencils.Get(DepthStencilState(op.Arg(0))).res)
			c.stats.depthStencilBinds.Add(1)

		case recording.OpSetSamplerState:
			b.SetSamplerState(c.samplers.Get(SamplerState(op.Arg(0))).res)
			c.stats.samplerBinds.Add(1)

		case recording.OpSetCullMode:
			b.SetCullMode(recording.CullMode(op.Arg(0)))

		case recording.OpSetScissorRect:
			r := decodeRect(op)
			b.SetScissor(r, !r.IsZero())

		case recording.OpSetViewport:
			r := decodeRect(op)
			if r.IsZero() {
				r = st.defaultViewport
			}
			b.SetViewport(r)

		case recording.OpSetFillMode:
			b.SetFillMode(recording.FillMode(op.Arg(0)))

		case recording.OpSetVertexConstBuffer, recording.OpSetFragmentConstBuffer:
			slot := op.Arg(0)
			if slot >= MaxConstBuffers {
				Logger().Warn("rhi: const buffer slot out of range", "slot", slot)
				break
			}
			bind := constBinding{buf: ConstBuffer(op.Arg(1)), inst: op.Args[2]}
			if op.Code == recording.OpSetVertexConstBuffer {
				st.vertexConsts[slot] = bind
			} else {
				st.fragmentConsts[slot] = bind
			}

		case recording.OpSetVertexTexture, recording.OpSetFragmentTexture:
			stage := recording.StageFragment
			if op.Code == recording.OpSetVertexTexture {
				stage = recording.StageVertex
			}
			var res recording.Resource
			if tex := Texture(op.Arg(1)); tex.IsValid() {
				res = c.textures.Get(tex).res
			}
			b.SetTexture(stage, op.Arg(0), res)
			c.stats.textureBinds.Add(1)

		case recording.OpDrawPrimitive:
			prim := recording.PrimitiveType(op.Arg(0))
			if !c.prepareDraw(st) {
				break
			}
			if st.layoutPending {
				b.SetVertexLayout(c.pipelines.Get(st.curPS).res, st.curLayout, st.baseVertex)
				st.layoutPending = false
			}
			c.beginQuery(st)
			b.Draw(prim, op.Arg(1))
			c.endQuery(st)
			c.stats.countDraw(prim, false)

		case recording.OpDrawIndexedPrimitive:
			prim := recording.PrimitiveType(op.Arg(0))
			firstVertex := op.Arg(2)
			if !c.prepareDraw(st) {
				break
			}
			if st.layoutPending || firstVertex != st.baseVertex {
				st.baseVertex = firstVertex
				b.SetVertexLayout(c.pipelines.Get(st.curPS).res, st.curLayout, firstVertex)
				st.layoutPending = false
			}
			c.beginQuery(st)
			b.DrawIndexed(prim, op.Arg(1), firstVertex, op.Arg(3), st.indexSize)
			c.endQuery(st)
			c.stats.countDraw(prim, true)

		case recording.OpSetMarker:
			b.Marker(cb.rec.MarkerText(op.Args[0]))

		case recording.OpNop:
		}

		if c.checker != nil {
			if err := c.checker.CheckError(); err != nil {
				Logger().Warn("rhi: backend reported an error", "op", op.Code.String(), "err", err)
			}
		}
		if n%c.opts.pollInterval == 0 {
			c.drainImmediate()
		}
	}
	return sync
}

// prepareDraw binds the current pipeline if the backend does not have it
// and applies the bound const buffers. It reports false when no pipeline
// has been set.
func (c *Context) prepareDraw(st *replayState) bool {
	if !st.curPS.IsValid() {
		Logger().Warn("rhi: draw without pipeline state skipped")
		return false
	}
	b := c.backend
	if st.lastPS != st.curPS {
		b.BindPipeline(c.pipelines.Get(st.curPS).res, st.curLayout)
		st.lastPS = st.curPS
		c.stats.pipelineBinds.Add(1)
	}
	c.applyConsts(recording.StageVertex, &st.vertexConsts)
	c.applyConsts(recording.StageFragment, &st.fragmentConsts)
	return true
}

func (c *Context) applyConsts(stage recording.Stage, slots *[MaxConstBuffers]constBinding) {
	for i, bind := range slots {
		if !bind.buf.IsValid() {
			continue
		}
		// #nosec G115 -- i < MaxConstBuffers
		c.backend.SetConstBuffer(stage, uint32(i), c.constBuffers.Get(bind.buf).res, c.consts.data(bind.inst))
	}
}

func (c *Context) beginQuery(st *replayState) {
	if st.queryIndex != NoQuery && st.queryBuf.IsValid() {
		c.backend.BeginQuery(c.queries.Get(st.queryBuf).res, st.queryIndex)
	}
}

func (c *Context) endQuery(st *replayState) {
	if st.queryIndex != NoQuery && st.queryBuf.IsValid() {
		c.backend.EndQuery(c.queries.Get(st.queryBuf).res, st.queryIndex)
	}
}
