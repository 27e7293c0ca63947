package rhi

import (
	"fmt"
	"runtime"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/recording"
)

// PassConfig describes the targets of a render pass and how they are
// loaded and stored. A zero ColorTarget renders to the default
// framebuffer.
type PassConfig struct {
	ColorTarget Texture
	ColorLoad   gputypes.LoadOp
	ColorStore  gputypes.StoreOp
	ClearColor  gputypes.Color

	DepthTarget Texture
	DepthLoad   gputypes.LoadOp
	DepthStore  gputypes.StoreOp
	ClearDepth  float32

	// Priority orders passes within a frame: higher runs first, equal
	// priorities keep submission order.
	Priority int
}

type renderPass struct {
	cfg     PassConfig
	cmdBufs []CommandBuffer
}

type commandBuffer struct {
	rec   *recording.Recorder
	pass  Pass
	first bool
	last  bool
	sync  SyncObject // as recorded by EndCommandBuffer
}

// frame is one unit of presentation: the passes begun between two
// Present calls.
type frame struct {
	number    uint32
	passes    []Pass
	ready     bool
	sync      SyncObject
	constMark uint64
}

// AllocatePass creates a pass with n command buffers. The first buffer
// sets up the pass targets when replayed and the last one finishes the
// pass. It panics if n is not positive.
func (c *Context) AllocatePass(cfg PassConfig, n int) (Pass, []CommandBuffer) {
	if n <= 0 {
		panic(fmt.Sprintf("rhi: pass needs at least one command buffer, got %d", n))
	}
	p, rp := c.passes.Alloc()
	rp.cfg = cfg
	rp.cmdBufs = make([]CommandBuffer, n)
	for i := range rp.cmdBufs {
		h, cb := c.cmdBufs.Alloc()
		cb.rec = c.recorders.Get().(*recording.Recorder)
		cb.pass = p
		cb.first = i == 0
		cb.last = i == n-1
		rp.cmdBufs[i] = h
	}
	out := make([]CommandBuffer, n)
	copy(out, rp.cmdBufs)
	return p, out
}

// BeginPass appends p to the frame being accumulated, opening a new
// frame when none is. Opening a frame invalidates const buffer snapshots.
func (c *Context) BeginPass(p Pass) {
	c.frameMu.Lock()
	if !c.frameStarted {
		c.frames = append(c.frames, &frame{number: c.frameNumber})
		c.frameNumber++
		c.frameStarted = true
		c.invalidateConstInstances()
	}
	f := c.frames[len(c.frames)-1]
	f.passes = append(f.passes, p)
	c.frameMu.Unlock()
}

// EndPass is a no-op kept for symmetry with BeginPass.
func (c *Context) EndPass(Pass) {}

// Present seals the frame being accumulated and attaches sync to it.
//
// With a render thread, Present blocks while frameCount frames are
// already queued. Without one, every sealed frame still queued is
// replayed before Present returns, unless the context is suspended.
// Calling Present with no open frame seals nothing.
func (c *Context) Present(sync SyncObject) {
	c.frameMu.Lock()
	if c.frameStarted {
		f := c.frames[len(c.frames)-1]
		f.ready = true
		f.sync = sync
		f.constMark = c.constMark()
		c.frameStarted = false
		Logger().Debug("rhi: frame sealed", "frame", f.number, "passes", len(f.passes))
	}
	c.frameMu.Unlock()

	if !c.threaded.Load() {
		if c.suspended.Load() {
			return
		}
		for c.executeFrame() {
		}
		return
	}
	for {
		c.frameMu.Lock()
		queued := len(c.frames)
		c.frameMu.Unlock()
		// #nosec G115 -- queue length is bounded by frameCount
		if uint32(queued) < c.frameCount {
			return
		}
		runtime.Gosched()
	}
}

// QueuedFrames returns the number of sealed and open frames not yet
// executed.
func (c *Context) QueuedFrames() int {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	return len(c.frames)
}

// freeCommandBuffer returns cb and its recorder to their pools.
func (c *Context) freeCommandBuffer(h CommandBuffer) {
	cb := c.cmdBufs.Get(h)
	c.recorders.Put(cb.rec)
	c.cmdBufs.Free(h)
}

// freePass frees p and any command buffers it still owns.
func (c *Context) freePass(p Pass, withBuffers bool) {
	if withBuffers {
		for _, h := range c.passes.Get(p).cmdBufs {
			if c.cmdBufs.IsAlive(h) {
				c.freeCommandBuffer(h)
			}
		}
	}
	c.passes.Free(p)
}

// passDesc resolves the pass targets into backend resources.
func (c *Context) passDesc(cfg *PassConfig) recording.PassDesc {
	d := recording.PassDesc{
		ColorLoad:  cfg.ColorLoad,
		ColorStore: cfg.ColorStore,
		ClearColor: cfg.ClearColor,
		DepthLoad:  cfg.DepthLoad,
		DepthStore: cfg.DepthStore,
		ClearDepth: cfg.ClearDepth,
	}
	if cfg.ColorTarget.IsValid() {
		d.Color = c.textures.Get(cfg.ColorTarget).res
	}
	if cfg.DepthTarget.IsValid() {
		d.Depth = c.textures.Get(cfg.DepthTarget).res
	}
	return d
}
