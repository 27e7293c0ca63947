// Package pool provides fixed-capacity slot pools addressed by typed,
// generation-checked handles.
//
// Every resource category of the render backend (buffers, textures,
// pipeline states, passes, command buffers, sync objects) owns one Pool.
// Capacity is reserved once and never grows, so a slot pointer obtained
// through Get stays valid for as long as its handle is alive.
package pool

import "sync"

const (
	indexBits = 20
	indexMask = 1<<indexBits - 1
	genMask   = 1<<(32-indexBits) - 1

	// MaxCapacity is the largest capacity a Pool can be reserved with.
	MaxCapacity = indexMask - 1
)

// Handle is an opaque reference to a slot in a Pool[T].
// The type parameter makes handles of different resource kinds distinct
// types; it carries no data.
//
// The zero value is Invalid.
type Handle[T any] uint32

// Invalid is the zero handle. It never resolves to a slot.
const Invalid = 0

// IsValid reports whether h is non-zero. It does not check liveness;
// use Pool.IsAlive for that.
func (h Handle[T]) IsValid() bool {
	return h != Invalid
}

// Index returns the slot index encoded in h, or -1 for the zero handle.
func (h Handle[T]) Index() int {
	return int(uint32(h)&indexMask) - 1
}

func (h Handle[T]) generation() uint32 {
	return uint32(h) >> indexBits
}

func makeHandle[T any](index int, gen uint32) Handle[T] {
	// #nosec G115 -- index is bounded by MaxCapacity
	return Handle[T]((gen&genMask)<<indexBits | uint32(index+1))
}

type slot[T any] struct {
	value T
	gen   uint32
	alive bool
	next  int // free list link, -1 terminates
}

// Pool is a fixed-capacity allocator of T slots.
//
// Alloc, Free and Each are safe for concurrent use. Get does not lock: it
// is valid on any goroutine that has a happens-before edge with the Alloc
// that produced the handle, which the frame queue provides.
type Pool[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  int
	live  int
}

// New returns a pool reserved for capacity slots.
// It panics if capacity is not in (0, MaxCapacity].
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{}
	p.Reserve(capacity)
	return p
}

// Reserve sets the pool capacity. It may only be called on an empty pool.
func (p *Pool[T]) Reserve(capacity int) {
	if capacity <= 0 || capacity > MaxCapacity {
		panic("pool: invalid capacity")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live != 0 {
		panic("pool: Reserve on a pool with live slots")
	}
	p.slots = make([]slot[T], capacity)
	for i := range p.slots {
		p.slots[i].next = i + 1
	}
	p.slots[capacity-1].next = -1
	p.free = 0
}

// Alloc takes a zeroed slot from the free list.
// It panics when the pool is exhausted: pool sizes are configuration, and
// running out of slots is a programming error.
func (p *Pool[T]) Alloc() (Handle[T], *T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free < 0 {
		panic("pool: capacity exhausted")
	}
	i := p.free
	s := &p.slots[i]
	p.free = s.next
	s.next = -1
	s.alive = true
	var zero T
	s.value = zero
	p.live++
	return makeHandle[T](i, s.gen), &s.value
}

// Get resolves h to its slot.
// It panics if h is zero, out of range, freed or stale.
func (p *Pool[T]) Get(h Handle[T]) *T {
	i := h.Index()
	if i < 0 || i >= len(p.slots) {
		panic("pool: invalid handle")
	}
	s := &p.slots[i]
	if !s.alive || s.gen&genMask != h.generation() {
		panic("pool: stale handle")
	}
	return &s.value
}

// IsAlive reports whether h currently refers to an allocated slot.
func (p *Pool[T]) IsAlive(h Handle[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveLocked(h)
}

func (p *Pool[T]) aliveLocked(h Handle[T]) bool {
	i := h.Index()
	if i < 0 || i >= len(p.slots) {
		return false
	}
	s := &p.slots[i]
	return s.alive && s.gen&genMask == h.generation()
}

// Free returns the slot referenced by h to the free list and invalidates
// h. Other handles are not affected. It panics if h is not alive.
func (p *Pool[T]) Free(h Handle[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.aliveLocked(h) {
		panic("pool: Free of invalid handle")
	}
	i := h.Index()
	s := &p.slots[i]
	var zero T
	s.value = zero
	s.alive = false
	s.gen++
	s.next = p.free
	p.free = i
	p.live--
}

// Each calls fn for every live slot in index order.
// The pool lock is held for the duration, so fn must not call Alloc,
// Free, IsAlive or Each on the same pool.
func (p *Pool[T]) Each(fn func(Handle[T], *T)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		if s.alive {
			fn(makeHandle[T](i, s.gen), &s.value)
		}
	}
}

// Len returns the number of live slots.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Cap returns the reserved capacity.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}
