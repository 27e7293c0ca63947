package rhi

import (
	"sync/atomic"

	"github.com/gogpu/rhi/recording"
)

// Stats counts the work the executor sent to the backend.
type Stats struct {
	PipelineBinds     uint64
	VertexBufferBinds uint64
	IndexBufferBinds  uint64
	TextureBinds      uint64
	SamplerBinds      uint64
	DepthStencilBinds uint64

	Draws          uint64 // non-indexed draw calls
	IndexedDraws   uint64
	TriangleLists  uint64 // draws by primitive type, indexed or not
	TriangleStrips uint64
	LineLists      uint64

	FramesExecuted   uint64
	FramesRejected   uint64
	ImmediateBatches uint64

	// Const snapshots that overwrote ring space of frames not yet
	// replayed. Non-zero means the const ring is too small.
	ConstRingOverruns uint64
}

type statCounters struct {
	pipelineBinds     atomic.Uint64
	vertexBufferBinds atomic.Uint64
	indexBufferBinds  atomic.Uint64
	textureBinds      atomic.Uint64
	samplerBinds      atomic.Uint64
	depthStencilBinds atomic.Uint64
	draws             atomic.Uint64
	indexedDraws      atomic.Uint64
	triangleLists     atomic.Uint64
	triangleStrips    atomic.Uint64
	lineLists         atomic.Uint64
	framesExecuted    atomic.Uint64
	framesRejected    atomic.Uint64
	immediateBatches  atomic.Uint64
	constOverruns     atomic.Uint64
}

func (s *statCounters) countDraw(prim recording.PrimitiveType, indexed bool) {
	if indexed {
		s.indexedDraws.Add(1)
	} else {
		s.draws.Add(1)
	}
	switch prim {
	case recording.PrimitiveTriangleList:
		s.triangleLists.Add(1)
	case recording.PrimitiveTriangleStrip:
		s.triangleStrips.Add(1)
	case recording.PrimitiveLineList:
		s.lineLists.Add(1)
	}
}

// Stats returns a snapshot of the counters. Counters are updated
// independently, so a snapshot taken during replay may be mid-frame.
func (c *Context) Stats() Stats {
	s := &c.stats
	return Stats{
		PipelineBinds:     s.pipelineBinds.Load(),
		VertexBufferBinds: s.vertexBufferBinds.Load(),
		IndexBufferBinds:  s.indexBufferBinds.Load(),
		TextureBinds:      s.textureBinds.Load(),
		SamplerBinds:      s.samplerBinds.Load(),
		DepthStencilBinds: s.depthStencilBinds.Load(),
		Draws:             s.draws.Load(),
		IndexedDraws:      s.indexedDraws.Load(),
		TriangleLists:     s.triangleLists.Load(),
		TriangleStrips:    s.triangleStrips.Load(),
		LineLists:         s.lineLists.Load(),
		FramesExecuted:    s.framesExecuted.Load(),
		FramesRejected:    s.framesRejected.Load(),
		ImmediateBatches:  s.immediateBatches.Load(),
		ConstRingOverruns: s.constOverruns.Load(),
	}
}

// ResetStats zeroes every counter.
func (c *Context) ResetStats() {
	s := &c.stats
	for _, v := range []*atomic.Uint64{
		&s.pipelineBinds, &s.vertexBufferBinds, &s.indexBufferBinds,
		&s.textureBinds, &s.samplerBinds, &s.depthStencilBinds,
		&s.draws, &s.indexedDraws,
		&s.triangleLists, &s.triangleStrips, &s.lineLists,
		&s.framesExecuted, &s.framesRejected, &s.immediateBatches,
		&s.constOverruns,
	} {
		v.Store(0)
	}
}
