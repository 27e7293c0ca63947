package rhi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/rhi/backend/trace"
)

func TestResourceCreateDelete(t *testing.T) {
	c, b := newTestContext(t)

	vb, err := c.CreateVertexBuffer(BufferDesc{Label: "verts", Size: 8})
	if err != nil {
		t.Fatalf("CreateVertexBuffer failed: %v", err)
	}
	ib, err := c.CreateIndexBuffer(BufferDesc{Size: 8, IndexSize: IndexSize16})
	if err != nil {
		t.Fatalf("CreateIndexBuffer failed: %v", err)
	}
	tex, err := c.CreateTexture(TextureDesc{Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	cb, err := c.CreateConstBuffer(ConstBufferDesc{Registers: 4})
	if err != nil {
		t.Fatalf("CreateConstBuffer failed: %v", err)
	}
	ps := mustPipeline(t, c)
	ds, err := c.CreateDepthStencilState(DepthStencilDesc{})
	if err != nil {
		t.Fatalf("CreateDepthStencilState failed: %v", err)
	}
	ss, err := c.CreateSamplerState(SamplerDesc{})
	if err != nil {
		t.Fatalf("CreateSamplerState failed: %v", err)
	}
	qb, err := c.CreateQueryBuffer(1)
	if err != nil {
		t.Fatalf("CreateQueryBuffer failed: %v", err)
	}
	if n := b.LiveResources(); n != 8 {
		t.Fatalf("LiveResources() = %d, want 8", n)
	}

	c.DeleteVertexBuffer(vb)
	c.DeleteIndexBuffer(ib)
	c.DeleteTexture(tex)
	c.DeleteConstBuffer(cb)
	c.DeletePipelineState(ps)
	c.DeleteDepthStencilState(ds)
	c.DeleteSamplerState(ss)
	c.DeleteQueryBuffer(qb)

	if n := b.LiveResources(); n != 0 {
		t.Errorf("LiveResources() after deletes = %d, want 0", n)
	}
	if c.vertexBuffers.IsAlive(vb) {
		t.Error("deleted vertex buffer handle still alive")
	}
}

func TestCreateResourceError(t *testing.T) {
	c, _ := newTestContext(t)
	h, err := c.CreateTexture(TextureDesc{Label: "empty"})
	if err == nil {
		t.Fatal("CreateTexture with zero size succeeded")
	}
	if h.IsValid() {
		t.Errorf("failed CreateTexture returned handle %v", h)
	}
	if c.textures.Len() != 0 {
		t.Errorf("texture pool Len() = %d, want 0", c.textures.Len())
	}
}

func TestUpdateVertexBuffer(t *testing.T) {
	c, _ := newTestContext(t)
	vb, _ := c.CreateVertexBuffer(BufferDesc{Size: 4, Retain: true})

	if err := c.UpdateVertexBuffer(vb, 1, []byte{7, 8}); err != nil {
		t.Fatalf("UpdateVertexBuffer failed: %v", err)
	}
	slot := c.vertexBuffers.Get(vb)
	if !bytes.Equal(slot.retained, []byte{0, 7, 8, 0}) {
		t.Errorf("retained = %v, want [0 7 8 0]", slot.retained)
	}
	if got := slot.res.(*trace.Resource).Data; !bytes.Equal(got, []byte{0, 7, 8, 0}) {
		t.Errorf("backend data = %v, want [0 7 8 0]", got)
	}

	err := c.UpdateVertexBuffer(vb, 3, []byte{1, 2})
	if err == nil {
		t.Fatal("overflowing UpdateVertexBuffer succeeded")
	}
	if !bytes.Equal(slot.retained, []byte{0, 7, 8, 0}) {
		t.Errorf("retained changed by a failed update: %v", slot.retained)
	}
}

func TestUpdateTextureRetains(t *testing.T) {
	c, _ := newTestContext(t)
	kept, _ := c.CreateTexture(TextureDesc{Width: 1, Height: 1, Retain: true})
	plain, _ := c.CreateTexture(TextureDesc{Width: 1, Height: 1})

	px := []byte{1, 2, 3, 4}
	for _, tex := range []Texture{kept, plain} {
		if err := c.UpdateTexture(tex, px); err != nil {
			t.Fatalf("UpdateTexture failed: %v", err)
		}
	}
	if got := c.textures.Get(kept).retained; !bytes.Equal(got, px) {
		t.Errorf("retained = %v, want %v", got, px)
	}
	if got := c.textures.Get(plain).retained; got != nil {
		t.Errorf("texture without Retain kept %v", got)
	}
}

func TestUpdateIndexBufferForeignResource(t *testing.T) {
	c, _ := newTestContext(t)
	ib, _ := c.CreateIndexBuffer(BufferDesc{Size: 4})
	c.indexBuffers.Get(ib).res = nil

	if err := c.UpdateIndexBuffer(ib, 0, []byte{1}); !errors.Is(err, trace.ErrForeignResource) {
		t.Errorf("UpdateIndexBuffer() = %v, want ErrForeignResource", err)
	}
}

func TestConstRingWraps(t *testing.T) {
	r := newConstRing(8)
	a, overrun := r.alloc([]float32{1, 2, 3, 4, 5})
	if overrun {
		t.Error("first alloc reported an overrun")
	}
	r.release(r.head)

	b, overrun := r.alloc([]float32{6, 7, 8, 9})
	if overrun {
		t.Error("wrap over replayed snapshots reported an overrun")
	}
	if b>>32 != 0 {
		t.Errorf("second instance offset = %d, want 0 after wrap", b>>32)
	}
	if got := r.data(b); len(got) != 4 || got[3] != 9 {
		t.Errorf("data(b) = %v", got)
	}
	// The wrap reuses the space of a.
	if got := r.data(a); got[0] != 6 {
		t.Errorf("data(a)[0] = %v, want 6 after wrap", got[0])
	}

	defer func() {
		if recover() == nil {
			t.Error("alloc larger than the ring did not panic")
		}
	}()
	r.alloc(make([]float32, 9))
}

func TestConstRingOverrun(t *testing.T) {
	r := newConstRing(8)
	if _, overrun := r.alloc([]float32{1, 2, 3, 4, 5}); overrun {
		t.Fatal("first alloc reported an overrun")
	}
	// Nothing released: wrapping onto a must be reported.
	if _, overrun := r.alloc([]float32{6, 7, 8, 9}); !overrun {
		t.Error("wrap over unreplayed snapshot not reported")
	}
}

func TestConstRingOverrunCounted(t *testing.T) {
	tests := []struct {
		name     string
		frames   uint32
		suspend  bool
		overruns uint64
	}{
		{"synchronous", 0, false, 0},
		{"queued behind suspended thread", 4, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(t, WithConstRingSize(8))
			cbuf, err := c.CreateConstBuffer(ConstBufferDesc{Label: "tint", Registers: 1})
			if err != nil {
				t.Fatalf("CreateConstBuffer failed: %v", err)
			}
			if err := c.InitializeRenderThread(tt.frames); err != nil {
				t.Fatalf("InitializeRenderThread failed: %v", err)
			}
			if tt.suspend {
				c.Suspend()
			}

			// Each frame snapshots 4 floats; three frames need 12.
			for range 3 {
				submitPass(c, PassConfig{}, InvalidSync, func(cb CommandBuffer) {
					c.SetFragmentConstBuffer(cb, 0, cbuf)
				})
				c.Present(InvalidSync)
			}
			if got := c.Stats().ConstRingOverruns; got != tt.overruns {
				t.Errorf("ConstRingOverruns = %d, want %d", got, tt.overruns)
			}

			if tt.suspend {
				c.Resume()
				waitFor(t, "queue to drain", func() bool { return c.QueuedFrames() == 0 })
				if err := c.UninitializeRenderThread(); err != nil {
					t.Fatalf("UninitializeRenderThread failed: %v", err)
				}
			}
		})
	}
}
