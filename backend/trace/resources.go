package trace

import (
	"fmt"

	"github.com/gogpu/rhi/recording"
)

// CreateVertexBuffer implements recording.ResourceFactory.
func (b *Backend) CreateVertexBuffer(desc recording.BufferDesc) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("vb", desc.Label)
	r.Data = make([]byte, desc.Size)
	b.recordLocked("CreateVertexBuffer", "%s size=%d", name(r), desc.Size)
	return r, nil
}

// CreateIndexBuffer implements recording.ResourceFactory.
func (b *Backend) CreateIndexBuffer(desc recording.BufferDesc) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("ib", desc.Label)
	r.Data = make([]byte, desc.Size)
	b.recordLocked("CreateIndexBuffer", "%s size=%d index=%d", name(r), desc.Size, desc.IndexSize.Bytes())
	return r, nil
}

// CreateTexture implements recording.ResourceFactory.
func (b *Backend) CreateTexture(desc recording.TextureDesc) (recording.Resource, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("trace: texture %q has zero size", desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("tex", desc.Label)
	r.Width, r.Height = desc.Width, desc.Height
	b.recordLocked("CreateTexture", "%s %dx%d", name(r), desc.Width, desc.Height)
	return r, nil
}

// CreateConstBuffer implements recording.ResourceFactory.
func (b *Backend) CreateConstBuffer(desc recording.ConstBufferDesc) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("cb", desc.Label)
	b.recordLocked("CreateConstBuffer", "%s %s regs=%d", name(r), desc.Stage, desc.Registers)
	return r, nil
}

// CreatePipelineState implements recording.ResourceFactory.
func (b *Backend) CreatePipelineState(desc recording.PipelineStateDesc) (recording.Resource, error) {
	if len(desc.VertexLayouts) == 0 {
		return nil, fmt.Errorf("trace: pipeline %q has no vertex layouts", desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("ps", desc.Label)
	b.recordLocked("CreatePipelineState", "%s layouts=%d", name(r), len(desc.VertexLayouts))
	return r, nil
}

// CreateDepthStencilState implements recording.ResourceFactory.
func (b *Backend) CreateDepthStencilState(desc recording.DepthStencilDesc) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("ds", "")
	b.recordLocked("CreateDepthStencilState", "%s test=%t write=%t", name(r), desc.DepthTest, desc.DepthWrite)
	return r, nil
}

// CreateSamplerState implements recording.ResourceFactory.
func (b *Backend) CreateSamplerState(desc recording.SamplerDesc) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("ss", "")
	b.recordLocked("CreateSamplerState", "%s fragment=%d vertex=%d", name(r), len(desc.Fragment), len(desc.Vertex))
	return r, nil
}

// CreateQueryBuffer implements recording.ResourceFactory.
func (b *Backend) CreateQueryBuffer(count uint32) (recording.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.newResource("qb", "")
	r.queries = make([]uint64, count)
	r.pending = make([]bool, count)
	b.recordLocked("CreateQueryBuffer", "%s count=%d", name(r), count)
	return r, nil
}

// Update implements recording.ResourceFactory.
func (b *Backend) Update(res recording.Resource, offset uint32, data []byte) error {
	r, err := b.resource(res)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	end := int(offset) + len(data)
	if end > len(r.Data) {
		if r.Kind == "vb" || r.Kind == "ib" {
			return fmt.Errorf("trace: update of %s overflows buffer (%d > %d)", name(r), end, len(r.Data))
		}
		grown := make([]byte, end)
		copy(grown, r.Data)
		r.Data = grown
	}
	copy(r.Data[offset:], data)
	b.recordLocked("Update", "%s offset=%d len=%d", name(r), offset, len(data))
	return nil
}

// QueryResult implements recording.ResourceFactory.
func (b *Backend) QueryResult(res recording.Resource, i uint32) (uint64, bool) {
	r, err := b.resource(res)
	if err != nil || int(i) >= len(r.queries) {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return r.queries[i], !r.pending[i]
}

// Recreate implements recording.ResourceFactory.
// The same object is returned with its contents dropped, as a real
// driver would after a context loss.
func (b *Backend) Recreate(res recording.Resource) (recording.Resource, error) {
	r, err := b.resource(res)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r.Recreated++
	clear(r.Data)
	b.recordLocked("Recreate", "%s", name(r))
	return r, nil
}

// Release implements recording.ResourceFactory.
func (b *Backend) Release(res recording.Resource) {
	r, err := b.resource(res)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r.released = true
	delete(b.live, r.ID)
	b.recordLocked("Release", "%s", name(r))
}
