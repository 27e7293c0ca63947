package rhi

import (
	"runtime"
)

// InitializeRenderThread starts the render goroutine, allowing up to
// frameCount frames to be queued ahead of it. A frameCount of zero
// keeps execution synchronous: Present replays each frame itself.
//
// The graphics context is released on the calling goroutine and
// acquired by the render goroutine, which stays locked to its OS thread.
// InitializeRenderThread returns once the render goroutine is running.
func (c *Context) InitializeRenderThread(frameCount uint32) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.threaded.Load() {
		return ErrAlreadyInitialized
	}
	c.frameCount = frameCount
	if frameCount == 0 {
		Logger().Info("rhi: synchronous execution")
		return nil
	}

	c.backend.ReleaseContext()
	c.exitPending.Store(false)
	c.started = make(chan struct{})
	c.done = make(chan struct{})
	go c.renderLoop()
	<-c.started
	c.threaded.Store(true)

	Logger().Info("rhi: render thread started", "frames", frameCount)
	return nil
}

// UninitializeRenderThread stops the render goroutine and waits for it to
// exit, resuming it first if it is suspended. The graphics context
// returns to the calling goroutine. Frames still queued stay queued and
// are executed by the next Present.
func (c *Context) UninitializeRenderThread() error {
	if !c.threaded.Load() {
		return ErrNotInitialized
	}
	c.exitPending.Store(true)
	if c.suspended.Load() {
		Logger().Info("rhi: resuming suspended render thread for shutdown")
		c.Resume()
	}
	<-c.done
	c.threaded.Store(false)
	c.backend.AcquireContext()

	Logger().Info("rhi: render thread stopped")
	return nil
}

// Suspend stops frame execution: once it returns, the render goroutine
// is parked and all submitted GPU work has completed. Present keeps
// queuing frames until the queue is full. Without a render thread,
// Present queues frames without replaying them until Resume; the next
// Present after Resume replays the backlog. Suspend is a no-op when
// already suspended.
func (c *Context) Suspend() {
	if !c.suspended.CompareAndSwap(false, true) {
		return
	}
	c.suspendMu.Lock()
	c.suspendHeld.Store(true)
	c.backend.Finish()
	Logger().Info("rhi: render thread suspended")
}

// Resume lets the render goroutine continue after Suspend. It is a no-op
// when not suspended.
func (c *Context) Resume() {
	if !c.suspendHeld.CompareAndSwap(true, false) {
		return
	}
	c.suspendMu.Unlock()
	c.suspended.Store(false)
	Logger().Info("rhi: render thread resumed")
}

// IsSuspended reports whether Suspend is in effect.
func (c *Context) IsSuspended() bool { return c.suspended.Load() }

func (c *Context) renderLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	c.backend.AcquireContext()
	close(c.started)

	for c.renderIteration() {
	}
	c.backend.ReleaseContext()
}

// renderIteration waits for work while holding the suspend lock, then
// executes at most one frame. It returns false once exit is requested.
func (c *Context) renderIteration() bool {
	c.suspendMu.Lock()
	defer c.suspendMu.Unlock()

	for {
		if c.exitPending.Load() {
			return false
		}
		if c.hasPendingImmediate() {
			c.drainImmediate()
		}
		if c.frontFrameReady() || c.suspended.Load() {
			break
		}
		runtime.Gosched()
	}
	c.executeFrame()
	return true
}

func (c *Context) frontFrameReady() bool {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	return len(c.frames) > 0 && c.frames[0].ready
}
