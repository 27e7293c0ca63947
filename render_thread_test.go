package rhi

import (
	"errors"
	"testing"
	"time"
)

func TestRenderThreadLifecycleErrors(t *testing.T) {
	c, _ := newTestContext(t)
	if err := c.UninitializeRenderThread(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("UninitializeRenderThread() before init = %v, want ErrNotInitialized", err)
	}
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	if err := c.InitializeRenderThread(2); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second InitializeRenderThread() = %v, want ErrAlreadyInitialized", err)
	}
	if err := c.UninitializeRenderThread(); err != nil {
		t.Errorf("UninitializeRenderThread() = %v", err)
	}
}

func TestZeroFrameCountIsSynchronous(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(0); err != nil {
		t.Fatalf("InitializeRenderThread(0) failed: %v", err)
	}
	submitMarkerFrame(c, "now", InvalidSync)
	if b.Frames() != 1 {
		t.Errorf("EndFrame calls right after Present = %d, want 1", b.Frames())
	}
	if n := b.Count("ReleaseContext"); n != 0 {
		t.Errorf("ReleaseContext calls = %d, want 0", n)
	}
}

func TestContextHandoff(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(1); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	if got := b.Ops("ReleaseContext", "AcquireContext"); !equalStrings(got, []string{"ReleaseContext", "AcquireContext"}) {
		t.Errorf("context calls after init = %v, want [ReleaseContext AcquireContext]", got)
	}
	if err := c.UninitializeRenderThread(); err != nil {
		t.Fatalf("UninitializeRenderThread failed: %v", err)
	}
	if h := b.ContextHolders(); h != 0 {
		t.Errorf("ContextHolders() = %d, want 0", h)
	}
	if n := b.Count("AcquireContext"); n != 2 {
		t.Errorf("AcquireContext calls = %d, want 2", n)
	}
}

func TestRenderThreadExecutesFrames(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	for _, m := range []string{"a", "b", "c", "d"} {
		submitMarkerFrame(c, m, InvalidSync)
	}
	waitFor(t, "frames to execute", func() bool { return b.Frames() == 4 })
	if got := markers(b.Ops("Marker")); !equalStrings(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("frame order = %v, want [a b c d]", got)
	}
}

func TestSuspendParksExecution(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}

	c.Suspend()
	if !c.IsSuspended() {
		t.Fatal("IsSuspended() = false after Suspend")
	}
	if n := b.Count("Finish"); n != 1 {
		t.Errorf("Finish calls = %d, want 1", n)
	}
	c.Suspend() // no-op

	submitMarkerFrame(c, "held", InvalidSync)
	time.Sleep(20 * time.Millisecond)
	if b.Frames() != 0 {
		t.Fatalf("frame executed while suspended")
	}

	c.Resume()
	c.Resume() // no-op
	waitFor(t, "frame after resume", func() bool { return b.Frames() == 1 })
	if c.IsSuspended() {
		t.Error("IsSuspended() = true after Resume")
	}
}

func TestUninitializeWhileSuspended(t *testing.T) {
	c, _ := newTestContext(t)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	c.Suspend()

	done := make(chan error, 1)
	go func() { done <- c.UninitializeRenderThread() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("UninitializeRenderThread() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("UninitializeRenderThread blocked on a suspended thread")
	}
	if c.IsSuspended() {
		t.Error("still suspended after shutdown")
	}
}

func TestFramesSurviveThreadRestart(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(3); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	c.Suspend()
	submitMarkerFrame(c, "queued", InvalidSync)
	if err := c.UninitializeRenderThread(); err != nil {
		t.Fatalf("UninitializeRenderThread failed: %v", err)
	}
	if got := c.QueuedFrames(); got != 1 {
		t.Fatalf("QueuedFrames() = %d, want 1", got)
	}

	// Synchronous again: the next Present replays the backlog and its
	// own frame.
	submitMarkerFrame(c, "next", InvalidSync)
	if got := markers(b.Ops("Marker")); !equalStrings(got, []string{"queued", "next"}) {
		t.Errorf("markers = %v, want [queued next]", got)
	}
	if got := c.QueuedFrames(); got != 0 {
		t.Errorf("QueuedFrames() = %d, want 0", got)
	}
}

func TestSynchronousPresentKeepsPace(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(3); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}
	c.Suspend()
	submitMarkerFrame(c, "queued", InvalidSync)
	if err := c.UninitializeRenderThread(); err != nil {
		t.Fatalf("UninitializeRenderThread failed: %v", err)
	}

	want := []string{"queued"}
	var syncs []SyncObject
	for i, m := range []string{"a", "b", "c", "d"} {
		syncs = append(syncs, c.CreateSyncObject())
		submitMarkerFrame(c, m, syncs[i])
		want = append(want, m)

		if got := markers(b.Ops("Marker")); !equalStrings(got, want) {
			t.Errorf("after Present(%s): markers = %v, want %v", m, got, want)
		}
		if got := c.QueuedFrames(); got != 0 {
			t.Errorf("after Present(%s): QueuedFrames() = %d, want 0", m, got)
		}
		if i >= syncLatency && !c.IsSyncObjectSignaled(syncs[i-syncLatency]) {
			t.Errorf("after Present(%s): sync of frame %d frames back not signaled", m, syncLatency)
		}
		if c.IsSyncObjectSignaled(syncs[i]) {
			t.Errorf("after Present(%s): its own sync signaled early", m)
		}
	}
}

func TestSuspendSynchronous(t *testing.T) {
	c, b := newTestContext(t)

	c.Suspend()
	submitMarkerFrame(c, "f1", InvalidSync)
	submitMarkerFrame(c, "f2", InvalidSync)
	if b.Frames() != 0 {
		t.Fatalf("frames executed while suspended = %d, want 0", b.Frames())
	}
	if got := c.QueuedFrames(); got != 2 {
		t.Fatalf("QueuedFrames() = %d, want 2", got)
	}

	c.Resume()
	submitMarkerFrame(c, "f3", InvalidSync)
	if got := markers(b.Ops("Marker")); !equalStrings(got, []string{"f1", "f2", "f3"}) {
		t.Errorf("markers = %v, want [f1 f2 f3]", got)
	}
	if got := c.QueuedFrames(); got != 0 {
		t.Errorf("QueuedFrames() = %d, want 0", got)
	}
}
