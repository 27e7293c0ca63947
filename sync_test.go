package rhi

import "testing"

func TestSyncObjectLifecycle(t *testing.T) {
	c, _ := newTestContext(t)
	s := c.CreateSyncObject()
	if !s.IsValid() {
		t.Fatal("CreateSyncObject returned an invalid handle")
	}
	if c.IsSyncObjectSignaled(s) {
		t.Error("new sync object reports signaled")
	}
	c.DeleteSyncObject(s)
	if c.IsSyncObjectSignaled(s) {
		t.Error("deleted sync object reports signaled")
	}
	if c.IsSyncObjectSignaled(InvalidSync) {
		t.Error("InvalidSync reports signaled")
	}
}

func TestSyncLatency(t *testing.T) {
	c, _ := newTestContext(t)
	s := c.CreateSyncObject()

	submitMarkerFrame(c, "k", s)
	if c.IsSyncObjectSignaled(s) {
		t.Fatal("sync signaled right after its frame executed")
	}
	submitMarkerFrame(c, "k+1", InvalidSync)
	if c.IsSyncObjectSignaled(s) {
		t.Fatal("sync signaled one frame after its frame executed")
	}
	submitMarkerFrame(c, "k+2", InvalidSync)
	if !c.IsSyncObjectSignaled(s) {
		t.Error("sync not signaled two frames after its frame executed")
	}
}

func TestCommandBufferSync(t *testing.T) {
	c, _ := newTestContext(t)
	s := c.CreateSyncObject()

	submitPass(c, PassConfig{}, s, nil)
	c.Present(InvalidSync)
	if c.IsSyncObjectSignaled(s) {
		t.Fatal("command buffer sync signaled immediately")
	}
	if got := c.syncs.Get(s).frame; got != 1 {
		t.Errorf("command buffer sync frame = %d, want 1", got)
	}

	submitMarkerFrame(c, "", InvalidSync)
	submitMarkerFrame(c, "", InvalidSync)
	if !c.IsSyncObjectSignaled(s) {
		t.Error("command buffer sync not signaled after two frames")
	}
}

func TestSyncSignalOrder(t *testing.T) {
	c, _ := newTestContext(t)
	syncs := make([]SyncObject, 8)
	for i := range syncs {
		syncs[i] = c.CreateSyncObject()
	}

	for i := range syncs {
		submitMarkerFrame(c, "", syncs[i])
		// A signaled sync implies every earlier one is signaled.
		seenUnsignaled := false
		for j := range syncs {
			sig := c.IsSyncObjectSignaled(syncs[j])
			if !sig {
				seenUnsignaled = true
			}
			if sig && seenUnsignaled {
				t.Fatalf("after frame %d: sync %d signaled before an earlier one", i, j)
			}
		}
	}
	for i := 0; i < 2; i++ {
		submitMarkerFrame(c, "", InvalidSync)
	}
	for i, s := range syncs {
		if !c.IsSyncObjectSignaled(s) {
			t.Errorf("sync %d not signaled after the queue drained", i)
		}
	}
}
