package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rhi/recording"
)

// Buffer is a vertex or index buffer. The backend keeps a CPU copy of the
// contents so unaligned updates can be widened to the 4-byte granularity
// hal queues require.
type Buffer struct {
	id     uint32
	label  string
	desc   recording.BufferDesc
	index  bool
	buf    hal.Buffer
	shadow []byte
}

// Label implements recording.Resource.
func (r *Buffer) Label() string { return r.label }

// Texture is a 2D texture, render target or depth buffer.
type Texture struct {
	id     uint32
	label  string
	desc   recording.TextureDesc
	format gputypes.TextureFormat
	tex    hal.Texture
	view   hal.TextureView
}

// Label implements recording.Resource.
func (r *Texture) Label() string { return r.label }

// Size returns the texture size in pixels.
func (r *Texture) Size() (width, height uint32) { return r.desc.Width, r.desc.Height }

// Format returns the texture format.
func (r *Texture) Format() gputypes.TextureFormat { return r.format }

func (r *Texture) destroy(device hal.Device) {
	if r.view != nil {
		device.DestroyTextureView(r.view)
		r.view = nil
	}
	if r.tex != nil {
		device.DestroyTexture(r.tex)
		r.tex = nil
	}
}

// ConstBuffer is a block of shader constants. Its contents travel with
// every SetConstBuffer call, so no GPU object backs it.
type ConstBuffer struct {
	id    uint32
	label string
	desc  recording.ConstBufferDesc
}

// Label implements recording.Resource.
func (r *ConstBuffer) Label() string { return r.label }

// DepthStencil is a depth-stencil state block. It is folded into render
// pipelines at draw time.
type DepthStencil struct {
	id   uint32
	desc recording.DepthStencilDesc
}

// Label implements recording.Resource.
func (r *DepthStencil) Label() string { return "depth_stencil" }

// Sampler holds one hal sampler per texture unit.
type Sampler struct {
	id       uint32
	vertex   []hal.Sampler
	fragment []hal.Sampler
}

// Label implements recording.Resource.
func (r *Sampler) Label() string { return "sampler" }

func (r *Sampler) unit(stage recording.Stage, unit uint32) hal.Sampler {
	units := r.fragment
	if stage == recording.StageVertex {
		units = r.vertex
	}
	if int(unit) < len(units) {
		return units[unit]
	}
	return nil
}

// QueryBuffer is a set of queries counting the draws issued between
// BeginQuery and EndQuery. Counts accumulate over one frame.
type QueryBuffer struct {
	values  []uint64
	counts  []uint64
	open    []bool
	pending []bool
}

// Label implements recording.Resource.
func (r *QueryBuffer) Label() string { return "query_buffer" }

func (r *QueryBuffer) begin(i uint32) {
	if !r.pending[i] {
		r.counts[i] = 0
	}
	r.open[i] = true
	r.pending[i] = true
}

func (r *QueryBuffer) end(i uint32) {
	r.open[i] = false
}

// resolve publishes the counts of every query closed in the completed frame.
func (r *QueryBuffer) resolve() {
	for i := range r.pending {
		if r.pending[i] && !r.open[i] {
			r.values[i] = r.counts[i]
			r.pending[i] = false
		}
	}
}

// CreateVertexBuffer implements recording.ResourceFactory.
func (b *Backend) CreateVertexBuffer(desc recording.BufferDesc) (recording.Resource, error) {
	return b.newBuffer(desc, false)
}

// CreateIndexBuffer implements recording.ResourceFactory.
func (b *Backend) CreateIndexBuffer(desc recording.BufferDesc) (recording.Resource, error) {
	return b.newBuffer(desc, true)
}

func (b *Backend) newBuffer(desc recording.BufferDesc, index bool) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidSize, desc.Label)
	}
	r := &Buffer{id: b.id(), label: desc.Label, desc: desc, index: index}
	if err := b.allocBuffer(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Backend) allocBuffer(r *Buffer) error {
	usage := gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	if r.index {
		usage = gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	}
	size := align4(uint64(r.desc.Size))
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: r.label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create buffer %q: %w", r.label, err)
	}
	r.buf = buf
	r.shadow = make([]byte, size)
	return nil
}

// CreateTexture implements recording.ResourceFactory.
func (b *Backend) CreateTexture(desc recording.TextureDesc) (recording.Resource, error) {
	return b.newTexture(desc)
}

func (b *Backend) newTexture(desc recording.TextureDesc) (*Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = gputypes.TextureFormatRGBA8Unorm
	}
	desc.Levels = max(desc.Levels, 1)
	r := &Texture{id: b.id(), label: desc.Label, desc: desc, format: desc.Format}
	if err := b.allocTexture(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Backend) allocTexture(r *Texture) error {
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if r.desc.RenderTarget || isDepth(r.format) {
		usage |= gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         r.label,
		Size:          hal.Extent3D{Width: r.desc.Width, Height: r.desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: r.desc.Levels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        r.format,
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create texture %q: %w", r.label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: r.label + "_view"})
	if err != nil {
		b.device.DestroyTexture(tex)
		return fmt.Errorf("wgpu: create texture view %q: %w", r.label, err)
	}
	r.tex, r.view = tex, view
	return nil
}

// CreateConstBuffer implements recording.ResourceFactory.
func (b *Backend) CreateConstBuffer(desc recording.ConstBufferDesc) (recording.Resource, error) {
	if desc.Registers == 0 {
		return nil, fmt.Errorf("%w: const buffer %q has no registers", ErrInvalidSize, desc.Label)
	}
	return &ConstBuffer{id: b.id(), label: desc.Label, desc: desc}, nil
}

// CreateDepthStencilState implements recording.ResourceFactory.
func (b *Backend) CreateDepthStencilState(desc recording.DepthStencilDesc) (recording.Resource, error) {
	if desc.DepthTest && desc.DepthCompare == 0 {
		desc.DepthCompare = gputypes.CompareFunctionLess
	}
	return &DepthStencil{id: b.id(), desc: desc}, nil
}

// CreateSamplerState implements recording.ResourceFactory.
func (b *Backend) CreateSamplerState(desc recording.SamplerDesc) (recording.Resource, error) {
	r := &Sampler{id: b.id()}
	var err error
	if r.vertex, err = b.createSamplers("vertex", desc.Vertex); err != nil {
		return nil, err
	}
	if r.fragment, err = b.createSamplers("fragment", desc.Fragment); err != nil {
		b.destroySamplers(r.vertex)
		return nil, err
	}
	return r, nil
}

func (b *Backend) createSamplers(stage string, units []recording.SamplerUnit) ([]hal.Sampler, error) {
	out := make([]hal.Sampler, 0, len(units))
	for i, u := range units {
		s, err := b.device.CreateSampler(&hal.SamplerDescriptor{
			Label:        fmt.Sprintf("%s_sampler_%d", stage, i),
			AddressModeU: u.AddressU,
			AddressModeV: u.AddressV,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    u.MagFilter,
			MinFilter:    u.MinFilter,
			MipmapFilter: u.MipFilter,
		})
		if err != nil {
			b.destroySamplers(out)
			return nil, fmt.Errorf("wgpu: create %s sampler %d: %w", stage, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *Backend) destroySamplers(samplers []hal.Sampler) {
	for _, s := range samplers {
		b.device.DestroySampler(s)
	}
}

// CreateQueryBuffer implements recording.ResourceFactory.
func (b *Backend) CreateQueryBuffer(count uint32) (recording.Resource, error) {
	return &QueryBuffer{
		values:  make([]uint64, count),
		counts:  make([]uint64, count),
		open:    make([]bool, count),
		pending: make([]bool, count),
	}, nil
}

// Update implements recording.ResourceFactory. Texture uploads replace
// level 0 and regenerate the remaining mip levels.
func (b *Backend) Update(res recording.Resource, offset uint32, data []byte) error {
	switch r := res.(type) {
	case *Buffer:
		return b.updateBuffer(r, offset, data)
	case *Texture:
		if offset != 0 {
			return fmt.Errorf("wgpu: texture %q update at offset %d", r.label, offset)
		}
		return b.uploadTexture(r, data)
	default:
		return fmt.Errorf("%w: %T", ErrForeignResource, res)
	}
}

func (b *Backend) updateBuffer(r *Buffer, offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(r.desc.Size) {
		return fmt.Errorf("wgpu: update of %q overflows buffer (%d > %d)", r.label, end, r.desc.Size)
	}
	copy(r.shadow[offset:], data)

	lo := uint64(offset) &^ 3
	hi := align4(end)
	b.queue.WriteBuffer(r.buf, lo, r.shadow[lo:hi])
	return nil
}

func (b *Backend) uploadTexture(r *Texture, data []byte) error {
	bpp, ok := bytesPerPixel(r.format)
	if !ok {
		return fmt.Errorf("wgpu: texture %q: uploads of format %v are not supported", r.label, r.format)
	}
	w, h := r.desc.Width, r.desc.Height
	if want := int(w * h * bpp); len(data) != want {
		return fmt.Errorf("wgpu: texture %q: got %d bytes, want %d", r.label, len(data), want)
	}
	b.writeLevel(r, 0, w, h, bpp, data)

	if r.desc.Levels > 1 && bpp == 4 {
		for i, img := range mipChain(rgbaView(data, w, h), r.desc.Levels) {
			bounds := img.Bounds()
			// #nosec G115 -- level count and mip sizes fit uint32
			b.writeLevel(r, uint32(i+1), uint32(bounds.Dx()), uint32(bounds.Dy()), bpp, img.Pix)
		}
	}
	return nil
}

func (b *Backend) writeLevel(r *Texture, level, w, h, bpp uint32, data []byte) {
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: r.tex, MipLevel: level},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * bpp, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}

// QueryResult implements recording.ResourceFactory.
func (b *Backend) QueryResult(res recording.Resource, i uint32) (uint64, bool) {
	q, ok := res.(*QueryBuffer)
	if !ok || int(i) >= len(q.values) {
		return 0, false
	}
	return q.values[i], !q.pending[i]
}

// Recreate implements recording.ResourceFactory. Buffers and textures get
// new hal objects with undefined contents; the same Resource is returned.
func (b *Backend) Recreate(res recording.Resource) (recording.Resource, error) {
	switch r := res.(type) {
	case *Buffer:
		old := r.buf
		b.retire(func() { b.device.DestroyBuffer(old) })
		if err := b.allocBuffer(r); err != nil {
			return nil, err
		}
		b.draw.forget(r)
	case *Texture:
		old := *r
		b.retire(func() { old.destroy(b.device) })
		if err := b.allocTexture(r); err != nil {
			return nil, err
		}
		b.draw.forget(r)
	case *PipelineState:
		b.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.ps == r.id })
		old := *r
		b.retire(func() { old.destroy(b.device) })
		if err := b.buildPipelineState(r); err != nil {
			return nil, err
		}
		b.draw.forget(r)
	case *ConstBuffer, *DepthStencil, *Sampler, *QueryBuffer:
	default:
		return nil, fmt.Errorf("%w: %T", ErrForeignResource, res)
	}
	return res, nil
}

// Release implements recording.ResourceFactory. Objects still referenced
// by the frame being encoded are destroyed after it completes.
func (b *Backend) Release(res recording.Resource) {
	b.draw.forget(res)
	switch r := res.(type) {
	case *Buffer:
		buf := r.buf
		r.buf, r.shadow = nil, nil
		b.retire(func() { b.device.DestroyBuffer(buf) })
	case *Texture:
		old := *r
		r.tex, r.view = nil, nil
		b.retire(func() { old.destroy(b.device) })
	case *PipelineState:
		b.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.ps == r.id })
		old := *r
		b.retire(func() { old.destroy(b.device) })
	case *DepthStencil:
		b.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.ds == r.id })
	case *Sampler:
		samplers := append(r.vertex, r.fragment...)
		r.vertex, r.fragment = nil, nil
		b.retire(func() { b.destroySamplers(samplers) })
	}
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}

func isDepth(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float:
		return true
	}
	return false
}

func hasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

func bytesPerPixel(f gputypes.TextureFormat) (uint32, bool) {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4, true
	case gputypes.TextureFormatR8Unorm:
		return 1, true
	}
	return 0, false
}
