package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rhi/cache"
	"github.com/gogpu/rhi/recording"
)

func init() {
	recording.Register("wgpu-noop", func(t recording.Target) (recording.Backend, error) {
		return NewNoop(t.Width, t.Height)
	})
}

// frameTimeout bounds the fence wait at the end of a frame.
const frameTimeout = 5 * time.Second

// Errors returned by the backend.
var (
	// ErrForeignResource is returned when a resource created by another
	// backend is passed in.
	ErrForeignResource = errors.New("wgpu: resource not created by this backend")

	// ErrNoHALDevice is returned by NewFromProvider when the provider does
	// not expose hal.Device and hal.Queue.
	ErrNoHALDevice = errors.New("wgpu: provider does not expose a hal device")

	// ErrInvalidSize is returned for zero framebuffer or texture sizes.
	ErrInvalidSize = errors.New("wgpu: invalid size")
)

// Backend replays the executor's command stream onto a hal device.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	owned  func() // tears down a device opened by NewNoop

	width, height uint32
	format        gputypes.TextureFormat

	target   *Texture // default framebuffer
	fallback *Texture // bound to texture units nothing was set on
	sampler  hal.Sampler

	pipelines *cache.Sharded[pipelineKey, hal.RenderPipeline]
	arena     uniformArena
	nextID    uint32

	fence      hal.Fence
	fenceValue uint64

	frame frameState
	draw  drawState

	// retired holds destructions deferred until the open frame completes.
	retired []func()

	frames        uint64
	warnWireframe bool
	logger        *slog.Logger
}

// frameState is the encoding state of the frame being built.
type frameState struct {
	encoder     hal.CommandEncoder
	pass        hal.RenderPassEncoder
	width       uint32
	height      uint32
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	hasDepth    bool
	bindGroups  []hal.BindGroup
	queries     []*QueryBuffer
}

// Option configures a Backend.
type Option func(*Backend)

// WithFormat sets the format of the default framebuffer.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(b *Backend) {
		b.format = f
	}
}

// WithPipelineCacheSize sets the number of render pipelines cached per
// cache shard.
func WithPipelineCacheSize(n int) Option {
	return func(b *Backend) {
		b.pipelines = b.newPipelineCache(n)
	}
}

// New returns a backend rendering with device and queue. The default
// framebuffer is an offscreen texture of width x height.
func New(device hal.Device, queue hal.Queue, width, height uint32, opts ...Option) (*Backend, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: framebuffer %dx%d", ErrInvalidSize, width, height)
	}
	b := &Backend{
		device: device,
		queue:  queue,
		width:  width,
		height: height,
		format: gputypes.TextureFormatBGRA8Unorm,
		logger: slog.New(slog.DiscardHandler),
	}
	b.pipelines = b.newPipelineCache(0)
	for _, opt := range opts {
		opt(b)
	}
	b.arena = uniformArena{device: device, queue: queue}

	if err := b.createDefaults(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// NewFromProvider returns a backend sharing the device of p. The provider
// must also expose HalDevice() and HalQueue(); the default framebuffer
// uses the provider's surface format.
func NewFromProvider(p gpucontext.DeviceProvider, width, height uint32, opts ...Option) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHALDevice, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHALDevice, hp.HalQueue())
	}
	if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithFormat(f)}, opts...)
	}
	return New(device, queue, width, height, opts...)
}

// NewNoop opens the noop hal adapter and returns a backend that owns it.
// Close releases the device.
func NewNoop(width, height uint32, opts ...Option) (*Backend, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("wgpu: noop instance has no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open noop adapter: %w", err)
	}

	b, err := New(open.Device, open.Queue, width, height, opts...)
	if err != nil {
		open.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.owned = func() {
		open.Device.Destroy()
		instance.Destroy()
	}
	return b, nil
}

func (b *Backend) createDefaults() error {
	target, err := b.newTexture(recording.TextureDesc{
		Label:        "default_framebuffer",
		Width:        b.width,
		Height:       b.height,
		Format:       b.format,
		RenderTarget: true,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create default framebuffer: %w", err)
	}
	b.target = target

	fallback, err := b.newTexture(recording.TextureDesc{Label: "fallback_texture", Width: 1, Height: 1})
	if err != nil {
		return fmt.Errorf("wgpu: create fallback texture: %w", err)
	}
	b.fallback = fallback
	if err := b.Update(fallback, 0, []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		return err
	}

	b.sampler, err = b.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "default_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create default sampler: %w", err)
	}

	b.fence, err = b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	return nil
}

// Close releases every object the backend created itself, and the device
// when it was opened by NewNoop. Resources handed out to the caller must
// be released before.
func (b *Backend) Close() {
	if b.frame.encoder != nil {
		b.frame.encoder.DiscardEncoding()
		b.finishFrame()
	}
	b.runRetired()
	if b.pipelines != nil {
		b.pipelines.Clear()
		b.runRetired()
	}
	b.arena.destroy()

	if b.target != nil {
		b.target.destroy(b.device)
		b.target = nil
	}
	if b.fallback != nil {
		b.fallback.destroy(b.device)
		b.fallback = nil
	}
	if b.sampler != nil {
		b.device.DestroySampler(b.sampler)
		b.sampler = nil
	}
	if b.fence != nil {
		b.device.DestroyFence(b.fence)
		b.fence = nil
	}
	if b.owned != nil {
		b.owned()
		b.owned = nil
	}
}

// SetLogger makes the backend log through l. A nil logger silences it.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	b.logger = l
}

// Name returns "wgpu".
func (b *Backend) Name() string { return "wgpu" }

// Device returns the hal device the backend renders with.
func (b *Backend) Device() hal.Device { return b.device }

// Target returns the default framebuffer texture.
func (b *Backend) Target() *Texture { return b.target }

// Frames returns the number of completed EndFrame calls.
func (b *Backend) Frames() uint64 { return b.frames }

// PipelineCacheStats returns the counters of the render pipeline cache.
func (b *Backend) PipelineCacheStats() cache.Stats { return b.pipelines.Stats() }

func (b *Backend) id() uint32 {
	b.nextID++
	return b.nextID
}

// retire runs fn once the GPU can no longer reference the object it
// destroys: immediately between frames, after the fence otherwise.
func (b *Backend) retire(fn func()) {
	if b.frame.encoder == nil {
		fn()
		return
	}
	b.retired = append(b.retired, fn)
}

func (b *Backend) runRetired() {
	for _, fn := range b.retired {
		fn()
	}
	b.retired = b.retired[:0]
}

// beginEncoding opens the frame's command encoder on first use.
func (b *Backend) beginEncoding() error {
	if b.frame.encoder != nil {
		return nil
	}
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rhi_frame"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("rhi_frame"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	b.frame.encoder = enc
	return nil
}

// EndFrame implements recording.FrameControl. It submits everything
// encoded since the previous frame and waits for completion.
func (b *Backend) EndFrame() error {
	b.frames++
	enc := b.frame.encoder
	if enc == nil {
		return nil
	}
	if b.frame.pass != nil {
		b.frame.pass.End()
		b.frame.pass = nil
	}
	defer b.finishFrame()

	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	b.fenceValue++
	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, b.fence, b.fenceValue); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := b.device.Wait(b.fence, b.fenceValue, frameTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", recording.ErrContextLost, err)
	}
	if !ok {
		return fmt.Errorf("wgpu: frame %d not completed after %v", b.frames, frameTimeout)
	}
	for _, q := range b.frame.queries {
		q.resolve()
	}
	return nil
}

// finishFrame releases per-frame objects once the frame was submitted or
// abandoned.
func (b *Backend) finishFrame() {
	for _, bg := range b.frame.bindGroups {
		b.device.DestroyBindGroup(bg)
	}
	b.frame = frameState{bindGroups: b.frame.bindGroups[:0], queries: b.frame.queries[:0]}
	b.draw.group = nil
	b.arena.reset()
	b.runRetired()
}

// Finish implements recording.FrameControl. EndFrame already waits for
// the GPU, so only work submitted outside a frame is waited for.
func (b *Backend) Finish() {
	if b.fenceValue == 0 {
		return
	}
	if _, err := b.device.Wait(b.fence, b.fenceValue, frameTimeout); err != nil {
		b.logger.Warn("wgpu: finish", "err", err)
	}
}

// AcquireContext implements recording.FrameControl. hal devices are not
// bound to threads.
func (b *Backend) AcquireContext() {
	b.logger.Debug("wgpu: context acquired")
}

// ReleaseContext implements recording.FrameControl.
func (b *Backend) ReleaseContext() {
	b.logger.Debug("wgpu: context released")
}

var _ recording.Backend = (*Backend)(nil)
