package recording

import "errors"

// ErrContextLost is returned by Backend.EndFrame when the platform has
// invalidated the graphics context. The executor responds by rejecting
// every queued frame and re-creating buffers and textures.
var ErrContextLost = errors.New("recording: graphics context lost")

// Resource is a backend-owned GPU object: a buffer, texture, pipeline,
// state block or query set. The executor never inspects it; it only
// hands it back to the backend that created it.
type Resource interface {
	// Label returns the debug label the resource was created with.
	Label() string
}

// ResourceFactory creates and destroys backend resources.
// Calls arrive on the render thread through the immediate-command channel,
// or on the submitting goroutine when no render thread runs.
type ResourceFactory interface {
	CreateVertexBuffer(desc BufferDesc) (Resource, error)
	CreateIndexBuffer(desc BufferDesc) (Resource, error)
	CreateTexture(desc TextureDesc) (Resource, error)
	CreateConstBuffer(desc ConstBufferDesc) (Resource, error)
	CreatePipelineState(desc PipelineStateDesc) (Resource, error)
	CreateDepthStencilState(desc DepthStencilDesc) (Resource, error)
	CreateSamplerState(desc SamplerDesc) (Resource, error)
	CreateQueryBuffer(count uint32) (Resource, error)

	// Update writes data into a buffer or texture starting at offset
	// bytes (texture uploads use offset 0 and replace level 0).
	Update(r Resource, offset uint32, data []byte) error

	// QueryResult returns the value of query index i, and whether it is
	// available yet.
	QueryResult(r Resource, i uint32) (uint64, bool)

	// Recreate rebuilds r after a lost context and returns the
	// replacement. Contents are not restored; the caller re-uploads
	// retained data.
	Recreate(r Resource) (Resource, error)

	Release(r Resource)
}

// StateSink receives the replayed command stream. The executor has
// already removed redundant state changes, so every call is expected to
// reach the underlying API.
type StateSink interface {
	// BeginPass sets up the pass targets and applies load actions. It
	// returns the default viewport of the pass.
	BeginPass(desc PassDesc) Rect
	// EndPass applies store actions for the pass.
	EndPass(desc PassDesc)
	// ResetState restores default cull, depth and stencil state at the
	// beginning of every command buffer.
	ResetState()

	SetVertexBuffer(vb Resource, stream uint32)
	SetIndexBuffer(ib Resource, size IndexSize)
	BindPipeline(ps Resource, layout uint32)
	SetVertexLayout(ps Resource, layout uint32, baseVertex uint32)
	SetConstBuffer(stage Stage, slot uint32, cb Resource, data []float32)
	SetTexture(stage Stage, unit uint32, tex Resource)
	SetDepthStencilState(ds Resource)
	SetSamplerState(ss Resource)
	SetCullMode(mode CullMode)
	SetScissor(r Rect, enabled bool)
	SetViewport(r Rect)
	SetFillMode(mode FillMode)
	BeginQuery(qb Resource, index uint32)
	EndQuery(qb Resource, index uint32)
	Draw(prim PrimitiveType, vertexCount uint32)
	DrawIndexed(prim PrimitiveType, indexCount, firstVertex, startIndex uint32, size IndexSize)
	Marker(text string)
}

// FrameControl covers frame boundaries and context ownership.
type FrameControl interface {
	// EndFrame presents the frame. It returns ErrContextLost if the
	// context was lost; other errors are logged by the executor.
	EndFrame() error
	// Finish blocks until all submitted work has completed.
	Finish()
	// AcquireContext binds the graphics context to the calling OS thread.
	AcquireContext()
	// ReleaseContext unbinds the graphics context from the calling thread.
	ReleaseContext()
}

// Backend is the interface every replay target implements.
//
// Backends are created directly or by name with Open once their package
// has registered an Opener.
type Backend interface {
	ResourceFactory
	StateSink
	FrameControl
}

// ErrorChecker is implemented by backends that can report errors raised
// by the previous call, in the manner of glGetError. The executor only
// queries it when debug checks are enabled.
type ErrorChecker interface {
	CheckError() error
}
