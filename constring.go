package rhi

import "fmt"

// constRing holds snapshots of const buffer contents. A snapshot
// (an instance) is addressed by offset<<32 | count. head and tail count
// floats consumed since creation: everything between them belongs to
// frames not yet replayed, and alloc reports when a new snapshot
// overwrites part of that range.
type constRing struct {
	buf  []float32
	pos  int
	head uint64
	tail uint64
}

func newConstRing(size int) constRing {
	return constRing{buf: make([]float32, size)}
}

// alloc copies data into the ring and returns its instance. overrun is
// true when the copy overwrote snapshots still waiting for replay.
func (r *constRing) alloc(data []float32) (inst uint64, overrun bool) {
	n := len(data)
	if n > len(r.buf) {
		panic(fmt.Sprintf("rhi: const buffer of %d floats exceeds ring size %d", n, len(r.buf)))
	}
	if r.pos+n > len(r.buf) {
		r.head += uint64(len(r.buf) - r.pos) // #nosec G115 -- non-negative
		r.pos = 0
	}
	off := r.pos
	copy(r.buf[off:off+n], data)
	r.pos += n
	r.head += uint64(n) // #nosec G115 -- n is bounded by the ring size
	overrun = r.head-r.tail > uint64(len(r.buf))
	if overrun {
		r.tail = r.head - uint64(len(r.buf))
	}
	// #nosec G115 -- off and n are bounded by the ring size
	return uint64(off)<<32 | uint64(n), overrun
}

// release marks everything allocated before mark as replayed.
func (r *constRing) release(mark uint64) {
	if mark > r.tail {
		r.tail = mark
	}
}

// data returns the floats of instance inst.
func (r *constRing) data(inst uint64) []float32 {
	off := int(inst >> 32)
	n := int(inst & 0xFFFFFFFF)
	return r.buf[off : off+n : off+n]
}

// constInstance returns the ring instance of cb's current contents,
// snapshotting them if the buffer changed or a new frame started since
// the last snapshot.
func (c *Context) constInstance(h ConstBuffer) uint64 {
	c.constMu.Lock()
	cb := c.constBuffers.Get(h)
	var overrun bool
	if cb.instEpoch != c.constEpoch {
		cb.inst, overrun = c.consts.alloc(cb.data)
		cb.instEpoch = c.constEpoch
	}
	inst := cb.inst
	c.constMu.Unlock()

	if overrun {
		c.stats.constOverruns.Add(1)
		Logger().Warn("rhi: const ring overwrote snapshots of unreplayed frames",
			"ringSize", len(c.consts.buf))
	}
	return inst
}

// constMark returns the ring position that separates snapshots taken so
// far from later ones.
func (c *Context) constMark() uint64 {
	c.constMu.Lock()
	defer c.constMu.Unlock()
	return c.consts.head
}

// releaseConsts frees the snapshots of every frame up to the one sealed
// at mark.
func (c *Context) releaseConsts(mark uint64) {
	c.constMu.Lock()
	c.consts.release(mark)
	c.constMu.Unlock()
}

// invalidateConstInstances forces every const buffer to take a new
// snapshot the next time it is bound.
func (c *Context) invalidateConstInstances() {
	c.constMu.Lock()
	c.constEpoch++
	c.constMu.Unlock()
}
