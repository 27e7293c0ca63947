package trace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/rhi/recording"
)

func TestRegisteredAsTrace(t *testing.T) {
	rb, err := recording.Open("trace", recording.Target{Width: 320, Height: 200})
	if err != nil {
		t.Fatalf("Open(trace) failed: %v", err)
	}
	b, ok := rb.(*Backend)
	if !ok {
		t.Fatalf("Open(trace) = %T, want *Backend", rb)
	}
	if w, h := b.Size(); w != 320 || h != 200 {
		t.Errorf("Size() = %dx%d, want 320x200", w, h)
	}
}

func TestCallLogOrder(t *testing.T) {
	b := New(64, 32)
	ps, err := b.CreatePipelineState(recording.PipelineStateDesc{
		Label:         "flat",
		VertexLayouts: []recording.VertexLayout{{Stride: 8}},
	})
	if err != nil {
		t.Fatalf("CreatePipelineState failed: %v", err)
	}
	b.Reset()

	vp := b.BeginPass(recording.PassDesc{})
	b.BindPipeline(ps, 0)
	b.Draw(recording.PrimitiveTriangleList, 3)

	if vp.Width != 64 || vp.Height != 32 {
		t.Errorf("BeginPass viewport = %+v, want 64x32", vp)
	}
	got := b.Ops("BindPipeline", "Draw")
	want := []string{"BindPipeline ps#1 layout=0", "Draw TriangleList vertices=3"}
	if len(got) != len(want) {
		t.Fatalf("Ops() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ops()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBeginPassUsesTargetSize(t *testing.T) {
	b := New(64, 32)
	tex, err := b.CreateTexture(recording.TextureDesc{Width: 16, Height: 8, RenderTarget: true})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	vp := b.BeginPass(recording.PassDesc{Color: tex})
	if vp.Width != 16 || vp.Height != 8 {
		t.Errorf("viewport = %dx%d, want 16x8", vp.Width, vp.Height)
	}
}

func TestLoseContextOnce(t *testing.T) {
	b := New(1, 1)
	b.LoseContext()

	if err := b.EndFrame(); !errors.Is(err, recording.ErrContextLost) {
		t.Errorf("first EndFrame() = %v, want ErrContextLost", err)
	}
	if err := b.EndFrame(); err != nil {
		t.Errorf("second EndFrame() = %v, want nil", err)
	}
	if b.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", b.Frames())
	}
}

func TestUpdateAndRecreate(t *testing.T) {
	b := New(1, 1)
	vb, _ := b.CreateVertexBuffer(recording.BufferDesc{Size: 4})

	if err := b.Update(vb, 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := b.Update(vb, 2, []byte{1, 2, 3}); err == nil {
		t.Error("overflowing Update succeeded")
	}

	r, err := b.Recreate(vb)
	if err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}
	tr := r.(*Resource)
	if tr.Recreated != 1 {
		t.Errorf("Recreated = %d, want 1", tr.Recreated)
	}
	if !bytes.Equal(tr.Data, []byte{0, 0, 0, 0}) {
		t.Errorf("Data after Recreate = %v, want zeroed", tr.Data)
	}

	b.Release(vb)
	if b.LiveResources() != 0 {
		t.Errorf("LiveResources() = %d, want 0", b.LiveResources())
	}
}

func TestQueryResult(t *testing.T) {
	b := New(1, 1)
	qb, _ := b.CreateQueryBuffer(2)

	if _, ok := b.QueryResult(qb, 5); ok {
		t.Error("QueryResult out of range reported available")
	}

	b.BeginQuery(qb, 1)
	if _, ok := b.QueryResult(qb, 1); ok {
		t.Error("QueryResult inside open query reported available")
	}
	b.EndQuery(qb, 1)

	v, ok := b.QueryResult(qb, 1)
	if !ok || v != 1 {
		t.Errorf("QueryResult(1) = %d, %v; want 1, true", v, ok)
	}
}

func TestForeignResource(t *testing.T) {
	b := New(1, 1)
	if err := b.Update(nil, 0, nil); !errors.Is(err, ErrForeignResource) {
		t.Errorf("Update(nil) = %v, want ErrForeignResource", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	b := New(8, 8)
	b.BeginPass(recording.PassDesc{})
	b.Marker("shadow pass")
	b.Draw(recording.PrimitiveLineList, 2)
	b.EndPass(recording.PassDesc{})

	var buf bytes.Buffer
	if err := b.WriteCapture(&buf); err != nil {
		t.Fatalf("WriteCapture failed: %v", err)
	}

	calls, err := ReadCapture(&buf)
	if err != nil {
		t.Fatalf("ReadCapture failed: %v", err)
	}
	orig := b.Calls()
	if len(calls) != len(orig) {
		t.Fatalf("ReadCapture returned %d calls, want %d", len(calls), len(orig))
	}
	for i := range orig {
		if calls[i] != orig[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], orig[i])
		}
	}
}

func TestReadCaptureRejectsGarbage(t *testing.T) {
	if _, err := ReadCapture(strings.NewReader("not lz4")); err == nil {
		t.Error("ReadCapture(garbage) succeeded")
	}
}
