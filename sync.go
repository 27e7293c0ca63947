package rhi

import "sync/atomic"

// syncLatency is the number of frames after its use at which a sync
// object is considered signaled.
const syncLatency = 2

const (
	syncSignaled uint32 = 1 << iota
	syncUsed
)

// syncObject is read by the submission goroutine while the render
// goroutine marks and sweeps it, so both fields are accessed atomically.
type syncObject struct {
	frame uint32
	flags uint32
}

func (s *syncObject) mark(frame uint32, flags uint32) {
	atomic.StoreUint32(&s.frame, frame)
	atomic.StoreUint32(&s.flags, flags)
}

func (s *syncObject) signaled() bool {
	return atomic.LoadUint32(&s.flags)&syncSignaled != 0
}

// CreateSyncObject returns a new, unused sync object. It reports
// unsignaled until it has been attached to an executed frame or command
// buffer and the required number of frames has passed.
func (c *Context) CreateSyncObject() SyncObject {
	h, _ := c.syncs.Alloc()
	return h
}

// IsSyncObjectSignaled reports whether the GPU is done with everything
// submitted before the sync object was last used. Deleted or invalid
// handles report false.
func (c *Context) IsSyncObjectSignaled(h SyncObject) bool {
	if !c.syncs.IsAlive(h) {
		return false
	}
	return c.syncs.Get(h).signaled()
}

// DeleteSyncObject releases h.
func (c *Context) DeleteSyncObject(h SyncObject) {
	c.syncs.Free(h)
}

// markSync records that h was used by frame n. Handles deleted while
// their frame was in flight are skipped.
func (c *Context) markSync(h SyncObject, n uint32, flags uint32) {
	if !h.IsValid() || !c.syncs.IsAlive(h) {
		return
	}
	c.syncs.Get(h).mark(n, flags)
}

// sweepSyncs signals every used sync object whose frame is at least
// syncLatency frames older than n.
func (c *Context) sweepSyncs(n uint32) {
	c.syncs.Each(func(_ SyncObject, s *syncObject) {
		flags := atomic.LoadUint32(&s.flags)
		if flags&syncUsed == 0 || flags&syncSignaled != 0 {
			return
		}
		if n-atomic.LoadUint32(&s.frame) >= syncLatency {
			atomic.StoreUint32(&s.flags, flags|syncSignaled)
		}
	})
}
