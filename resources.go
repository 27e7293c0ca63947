package rhi

import (
	"fmt"

	"github.com/gogpu/rhi/pool"
	"github.com/gogpu/rhi/recording"
)

// createResource runs fn through the immediate channel and stores the
// result in a new slot of p.
func createResource[T any](c *Context, p *pool.Pool[T], what, label string,
	fn func(recording.Backend) (recording.Resource, error),
	init func(*T, recording.Resource),
) (pool.Handle[T], error) {
	var res recording.Resource
	err := c.immediate("create "+what, func(b recording.Backend) error {
		var err error
		res, err = fn(b)
		return err
	})
	if err != nil {
		return pool.Invalid, fmt.Errorf("rhi: create %s %q: %w", what, label, err)
	}
	h, slot := p.Alloc()
	init(slot, res)
	return h, nil
}

// deleteResource releases the backend resource of h and frees its slot.
func deleteResource[T any](c *Context, p *pool.Pool[T], what string, h pool.Handle[T], res func(*T) recording.Resource) {
	_ = c.immediate("delete "+what, func(b recording.Backend) error {
		release(b, res(p.Get(h)))
		return nil
	})
	p.Free(h)
}

// CreateVertexBuffer creates a vertex buffer of desc.Size bytes.
func (c *Context) CreateVertexBuffer(desc BufferDesc) (VertexBuffer, error) {
	return createResource(c, c.vertexBuffers, "vertex buffer", desc.Label,
		func(b recording.Backend) (recording.Resource, error) { return b.CreateVertexBuffer(desc) },
		func(v *vertexBuffer, res recording.Resource) {
			v.res, v.desc = res, desc
			if desc.Retain {
				v.retained = make([]byte, desc.Size)
			}
		})
}

// UpdateVertexBuffer writes data at offset bytes.
func (c *Context) UpdateVertexBuffer(vb VertexBuffer, offset uint32, data []byte) error {
	return c.immediate("update vertex buffer", func(b recording.Backend) error {
		v := c.vertexBuffers.Get(vb)
		if err := b.Update(v.res, offset, data); err != nil {
			return err
		}
		retain(v.retained, offset, data)
		return nil
	})
}

// DeleteVertexBuffer releases vb.
func (c *Context) DeleteVertexBuffer(vb VertexBuffer) {
	deleteResource(c, c.vertexBuffers, "vertex buffer", vb, func(v *vertexBuffer) recording.Resource { return v.res })
}

// CreateIndexBuffer creates an index buffer of desc.Size bytes holding
// indices of desc.IndexSize.
func (c *Context) CreateIndexBuffer(desc BufferDesc) (IndexBuffer, error) {
	return createResource(c, c.indexBuffers, "index buffer", desc.Label,
		func(b recording.Backend) (recording.Resource, error) { return b.CreateIndexBuffer(desc) },
		func(ib *indexBuffer, res recording.Resource) {
			ib.res, ib.desc = res, desc
			if desc.Retain {
				ib.retained = make([]byte, desc.Size)
			}
		})
}

// UpdateIndexBuffer writes data at offset bytes.
func (c *Context) UpdateIndexBuffer(ib IndexBuffer, offset uint32, data []byte) error {
	return c.immediate("update index buffer", func(b recording.Backend) error {
		slot := c.indexBuffers.Get(ib)
		if err := b.Update(slot.res, offset, data); err != nil {
			return err
		}
		retain(slot.retained, offset, data)
		return nil
	})
}

// DeleteIndexBuffer releases ib.
func (c *Context) DeleteIndexBuffer(ib IndexBuffer) {
	deleteResource(c, c.indexBuffers, "index buffer", ib, func(v *indexBuffer) recording.Resource { return v.res })
}

// retain mirrors an upload into a retained copy, if there is one.
func retain(dst []byte, offset uint32, data []byte) {
	if dst == nil || int(offset) >= len(dst) {
		return
	}
	copy(dst[offset:], data)
}

// CreateTexture creates a 2D texture.
func (c *Context) CreateTexture(desc TextureDesc) (Texture, error) {
	return createResource(c, c.textures, "texture", desc.Label,
		func(b recording.Backend) (recording.Resource, error) { return b.CreateTexture(desc) },
		func(t *texture, res recording.Resource) { t.res, t.desc = res, desc })
}

// UpdateTexture replaces the contents of the top mip level.
func (c *Context) UpdateTexture(tex Texture, data []byte) error {
	return c.immediate("update texture", func(b recording.Backend) error {
		t := c.textures.Get(tex)
		if err := b.Update(t.res, 0, data); err != nil {
			return err
		}
		if t.desc.Retain {
			t.retained = append(t.retained[:0], data...)
		}
		return nil
	})
}

// DeleteTexture releases tex.
func (c *Context) DeleteTexture(tex Texture) {
	deleteResource(c, c.textures, "texture", tex, func(v *texture) recording.Resource { return v.res })
}

// CreateConstBuffer creates a const buffer of desc.Registers float4
// registers, initially zero.
func (c *Context) CreateConstBuffer(desc ConstBufferDesc) (ConstBuffer, error) {
	return createResource(c, c.constBuffers, "const buffer", desc.Label,
		func(b recording.Backend) (recording.Resource, error) { return b.CreateConstBuffer(desc) },
		func(cb *constBuffer, res recording.Resource) {
			cb.res, cb.desc = res, desc
			cb.data = make([]float32, 4*desc.Registers)
		})
}

// UpdateConstBuffer writes data starting at float4 register reg. Command
// buffers that already bound the buffer keep the previous contents.
func (c *Context) UpdateConstBuffer(cb ConstBuffer, reg uint32, data []float32) error {
	c.constMu.Lock()
	defer c.constMu.Unlock()
	slot := c.constBuffers.Get(cb)
	start := int(reg) * 4
	if start+len(data) > len(slot.data) {
		return fmt.Errorf("rhi: const buffer %q: write of %d floats at register %d overflows %d registers",
			slot.desc.Label, len(data), reg, slot.desc.Registers)
	}
	copy(slot.data[start:], data)
	slot.instEpoch = 0
	return nil
}

// DeleteConstBuffer releases cb.
func (c *Context) DeleteConstBuffer(cb ConstBuffer) {
	deleteResource(c, c.constBuffers, "const buffer", cb, func(v *constBuffer) recording.Resource { return v.res })
}

// CreatePipelineState creates a pipeline state.
func (c *Context) CreatePipelineState(desc PipelineStateDesc) (PipelineState, error) {
	return createResource(c, c.pipelines, "pipeline state", desc.Label,
		func(b recording.Backend) (recording.Resource, error) { return b.CreatePipelineState(desc) },
		func(ps *pipelineState, res recording.Resource) { ps.res, ps.desc = res, desc })
}

// DeletePipelineState releases ps.
func (c *Context) DeletePipelineState(ps PipelineState) {
	deleteResource(c, c.pipelines, "pipeline state", ps, func(v *pipelineState) recording.Resource { return v.res })
}

// CreateDepthStencilState creates a depth-stencil state.
func (c *Context) CreateDepthStencilState(desc DepthStencilDesc) (DepthStencilState, error) {
	return createResource(c, c.depthStencils, "depth-stencil state", "",
		func(b recording.Backend) (recording.Resource, error) { return b.CreateDepthStencilState(desc) },
		func(ds *depthStencilState, res recording.Resource) { ds.res = res })
}

// DeleteDepthStencilState releases ds.
func (c *Context) DeleteDepthStencilState(ds DepthStencilState) {
	deleteResource(c, c.depthStencils, "depth-stencil state", ds, func(v *depthStencilState) recording.Resource { return v.res })
}

// CreateSamplerState creates a sampler state.
func (c *Context) CreateSamplerState(desc SamplerDesc) (SamplerState, error) {
	return createResource(c, c.samplers, "sampler state", "",
		func(b recording.Backend) (recording.Resource, error) { return b.CreateSamplerState(desc) },
		func(ss *samplerState, res recording.Resource) { ss.res = res })
}

// DeleteSamplerState releases ss.
func (c *Context) DeleteSamplerState(ss SamplerState) {
	deleteResource(c, c.samplers, "sampler state", ss, func(v *samplerState) recording.Resource { return v.res })
}

// CreateQueryBuffer creates a buffer of count occlusion queries.
func (c *Context) CreateQueryBuffer(count uint32) (QueryBuffer, error) {
	return createResource(c, c.queries, "query buffer", "",
		func(b recording.Backend) (recording.Resource, error) { return b.CreateQueryBuffer(count) },
		func(qb *queryBuffer, res recording.Resource) { qb.res, qb.count = res, count })
}

// QueryResult returns the value of query i and whether it is available.
func (c *Context) QueryResult(qb QueryBuffer, i uint32) (uint64, bool) {
	var (
		v  uint64
		ok bool
	)
	_ = c.immediate("query result", func(b recording.Backend) error {
		slot := c.queries.Get(qb)
		if i < slot.count {
			v, ok = b.QueryResult(slot.res, i)
		}
		return nil
	})
	return v, ok
}

// DeleteQueryBuffer releases qb.
func (c *Context) DeleteQueryBuffer(qb QueryBuffer) {
	deleteResource(c, c.queries, "query buffer", qb, func(v *queryBuffer) recording.Resource { return v.res })
}
