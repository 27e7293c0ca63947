package rhi

// Option configures a Context during creation.
//
// Example:
//
//	ctx, err := rhi.New(backend,
//	    rhi.WithPoolSizes(rhi.PoolSizes{CommandBuffers: 4096}),
//	    rhi.WithDebugChecks(true),
//	)
type Option func(*options)

// PoolSizes sets the capacity of each resource pool. Zero fields keep the
// default. Pools never grow; exhausting one panics.
type PoolSizes struct {
	VertexBuffers      int
	IndexBuffers       int
	Textures           int
	ConstBuffers       int
	PipelineStates     int
	DepthStencilStates int
	SamplerStates      int
	QueryBuffers       int
	SyncObjects        int
	Passes             int
	CommandBuffers     int
}

// DefaultPoolSizes returns the pool capacities used when none are given.
func DefaultPoolSizes() PoolSizes {
	return PoolSizes{
		VertexBuffers:      4096,
		IndexBuffers:       4096,
		Textures:           2048,
		ConstBuffers:       8192,
		PipelineStates:     1024,
		DepthStencilStates: 256,
		SamplerStates:      256,
		QueryBuffers:       64,
		SyncObjects:        1024,
		Passes:             256,
		CommandBuffers:     1024,
	}
}

// withDefaults fills zero fields from DefaultPoolSizes.
func (p PoolSizes) withDefaults() PoolSizes {
	d := DefaultPoolSizes()
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	return PoolSizes{
		VertexBuffers:      pick(p.VertexBuffers, d.VertexBuffers),
		IndexBuffers:       pick(p.IndexBuffers, d.IndexBuffers),
		Textures:           pick(p.Textures, d.Textures),
		ConstBuffers:       pick(p.ConstBuffers, d.ConstBuffers),
		PipelineStates:     pick(p.PipelineStates, d.PipelineStates),
		DepthStencilStates: pick(p.DepthStencilStates, d.DepthStencilStates),
		SamplerStates:      pick(p.SamplerStates, d.SamplerStates),
		QueryBuffers:       pick(p.QueryBuffers, d.QueryBuffers),
		SyncObjects:        pick(p.SyncObjects, d.SyncObjects),
		Passes:             pick(p.Passes, d.Passes),
		CommandBuffers:     pick(p.CommandBuffers, d.CommandBuffers),
	}
}

// Defaults for the remaining options.
const (
	DefaultConstRingSize         = 1 << 20 // float32 values
	DefaultImmediatePollInterval = 10      // replayed commands
	DefaultRecorderCapacity      = 1024    // words
)

type options struct {
	pools        PoolSizes
	constRing    int
	pollInterval int
	debugChecks  bool
}

func defaultOptions() options {
	return options{
		pools:        DefaultPoolSizes(),
		constRing:    DefaultConstRingSize,
		pollInterval: DefaultImmediatePollInterval,
	}
}

// WithPoolSizes overrides pool capacities. Zero fields keep the default.
func WithPoolSizes(p PoolSizes) Option {
	return func(o *options) {
		o.pools = p.withDefaults()
	}
}

// WithConstRingSize sets the number of float32 values in the ring that
// holds const buffer snapshots. Each const buffer bound in a frame takes
// one snapshot of its registers*4 floats, so the ring must hold the
// snapshots of every queued frame plus the one being recorded: with a
// render thread of frameCount frames, at least (frameCount+1) times the
// floats bound per frame. A smaller ring overwrites snapshots before they
// are replayed; this is logged and counted in Stats.ConstRingOverruns.
func WithConstRingSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.constRing = n
		}
	}
}

// WithImmediatePollInterval sets how many replayed commands pass between
// checks of the immediate-command mailbox during replay.
func WithImmediatePollInterval(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pollInterval = n
		}
	}
}

// WithDebugChecks makes the executor query the backend for errors after
// every replayed command. Only backends implementing
// recording.ErrorChecker are queried.
func WithDebugChecks(enabled bool) Option {
	return func(o *options) {
		o.debugChecks = enabled
	}
}
