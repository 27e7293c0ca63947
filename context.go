package rhi

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/pool"
	"github.com/gogpu/rhi/recording"
)

// Context is the render backend context. It owns the resource pools, the
// frame queue and, once InitializeRenderThread is called with a non-zero
// frame count, the render goroutine that replays frames.
//
// Frame submission (AllocatePass, BeginPass, Present) must happen on a
// single goroutine. The command buffers of an allocated pass may be
// recorded concurrently, one goroutine per buffer. Resource functions
// and ExecImmediate may be called from any goroutine.
type Context struct {
	backend recording.Backend
	checker recording.ErrorChecker // non-nil only with debug checks
	opts    options

	vertexBuffers *pool.Pool[vertexBuffer]
	indexBuffers  *pool.Pool[indexBuffer]
	textures      *pool.Pool[texture]
	constBuffers  *pool.Pool[constBuffer]
	pipelines     *pool.Pool[pipelineState]
	depthStencils *pool.Pool[depthStencilState]
	samplers      *pool.Pool[samplerState]
	queries       *pool.Pool[queryBuffer]
	syncs         *pool.Pool[syncObject]
	passes        *pool.Pool[renderPass]
	cmdBufs       *pool.Pool[commandBuffer]

	recorders sync.Pool

	// Const buffer snapshots. Written on the submission goroutine, read
	// by the executor.
	constMu    sync.Mutex
	consts     constRing
	constEpoch uint64

	// Serializes frame execution with synchronous immediate commands.
	execMu sync.Mutex

	// Frame queue.
	frameMu      sync.Mutex
	frames       []*frame
	frameStarted bool
	frameNumber  uint32

	// Render thread.
	frameCount  uint32
	threaded    atomic.Bool
	exitPending atomic.Bool
	suspended   atomic.Bool
	suspendHeld atomic.Bool
	suspendMu   sync.Mutex
	started     chan struct{}
	done        chan struct{}

	// Immediate-command mailbox.
	immMu      sync.Mutex
	immPending *immediateBatch

	stats  statCounters
	closed atomic.Bool
}

var _ io.Closer = (*Context)(nil)

// New creates a context replaying onto backend. The calling goroutine is
// assumed to own the backend's graphics context until
// InitializeRenderThread hands it to the render goroutine.
func New(backend recording.Backend, opts ...Option) (*Context, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{
		backend:       backend,
		opts:          o,
		vertexBuffers: pool.New[vertexBuffer](o.pools.VertexBuffers),
		indexBuffers:  pool.New[indexBuffer](o.pools.IndexBuffers),
		textures:      pool.New[texture](o.pools.Textures),
		constBuffers:  pool.New[constBuffer](o.pools.ConstBuffers),
		pipelines:     pool.New[pipelineState](o.pools.PipelineStates),
		depthStencils: pool.New[depthStencilState](o.pools.DepthStencilStates),
		samplers:      pool.New[samplerState](o.pools.SamplerStates),
		queries:       pool.New[queryBuffer](o.pools.QueryBuffers),
		syncs:         pool.New[syncObject](o.pools.SyncObjects),
		passes:        pool.New[renderPass](o.pools.Passes),
		cmdBufs:       pool.New[commandBuffer](o.pools.CommandBuffers),
		consts:        newConstRing(o.constRing),
		constEpoch:    1,
		frameNumber:   1,
	}
	c.recorders.New = func() any {
		return recording.NewRecorder(DefaultRecorderCapacity)
	}
	if o.debugChecks {
		c.checker, _ = backend.(recording.ErrorChecker)
	}

	trackBackend(backend)
	Logger().Debug("rhi: context created",
		"backend", backendName(backend),
		"debugChecks", c.checker != nil)
	return c, nil
}

// Backend returns the backend the context replays onto.
func (c *Context) Backend() recording.Backend { return c.backend }

// Close stops the render goroutine if one runs and releases every live
// backend resource. Queued frames that were not executed are dropped.
// Close is idempotent.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.threaded.Load() {
		if err := c.UninitializeRenderThread(); err != nil {
			return err
		}
	}

	b := c.backend
	c.vertexBuffers.Each(func(_ VertexBuffer, v *vertexBuffer) { release(b, v.res) })
	c.indexBuffers.Each(func(_ IndexBuffer, v *indexBuffer) { release(b, v.res) })
	c.textures.Each(func(_ Texture, v *texture) { release(b, v.res) })
	c.constBuffers.Each(func(_ ConstBuffer, v *constBuffer) { release(b, v.res) })
	c.pipelines.Each(func(_ PipelineState, v *pipelineState) { release(b, v.res) })
	c.depthStencils.Each(func(_ DepthStencilState, v *depthStencilState) { release(b, v.res) })
	c.samplers.Each(func(_ SamplerState, v *samplerState) { release(b, v.res) })
	c.queries.Each(func(_ QueryBuffer, v *queryBuffer) { release(b, v.res) })

	untrackBackend(b)
	Logger().Debug("rhi: context closed")
	return nil
}

func release(b recording.Backend, r recording.Resource) {
	if r != nil {
		b.Release(r)
	}
}

// backendName returns a printable name for logs.
func backendName(b recording.Backend) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unnamed"
}
