package rhi

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/rhi/recording"
)

func TestExecImmediateSynchronous(t *testing.T) {
	c, _ := newTestContext(t)
	errBoom := errors.New("boom")
	ran := 0
	cmds := []ImmediateCommand{
		{Name: "ok", Func: func(recording.Backend) error { ran++; return nil }},
		{Name: "fail", Func: func(recording.Backend) error { ran++; return errBoom }},
		{Name: "empty"},
	}

	err := c.ExecImmediate(cmds, false)
	if ran != 2 {
		t.Errorf("ran %d commands, want 2", ran)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("ExecImmediate() = %v, want to wrap %v", err, errBoom)
	}
	if cmds[0].Err != nil {
		t.Errorf("cmds[0].Err = %v, want nil", cmds[0].Err)
	}
	if !errors.Is(cmds[1].Err, errBoom) {
		t.Errorf("cmds[1].Err = %v, want %v", cmds[1].Err, errBoom)
	}
	if cmds[2].Err == nil {
		t.Error("command without Func reported no error")
	}
}

func TestExecImmediateEmpty(t *testing.T) {
	c, _ := newTestContext(t)
	if err := c.ExecImmediate(nil, false); err != nil {
		t.Errorf("ExecImmediate(nil) = %v, want nil", err)
	}
	if got := c.Stats().ImmediateBatches; got != 0 {
		t.Errorf("ImmediateBatches = %d, want 0", got)
	}
}

func TestExecImmediateOnRenderThread(t *testing.T) {
	c, b := newTestContext(t)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}

	var got recording.Backend
	err := c.ExecImmediate([]ImmediateCommand{{
		Name: "probe",
		Func: func(rb recording.Backend) error { got = rb; return nil },
	}}, false)
	if err != nil {
		t.Fatalf("ExecImmediate() = %v", err)
	}
	if got != b {
		t.Errorf("command received backend %v, want the context backend", got)
	}
}

func TestExecImmediateMutualExclusion(t *testing.T) {
	c, _ := newTestContext(t)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}

	const perGoroutine = 50
	var inFlight, maxInFlight atomic.Int32
	probe := func(recording.Backend) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		runtime.Gosched()
		inFlight.Add(-1)
		return nil
	}

	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := c.ExecImmediate([]ImmediateCommand{{Name: "probe", Func: probe}}, false); err != nil {
					t.Errorf("ExecImmediate() = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if m := maxInFlight.Load(); m != 1 {
		t.Errorf("max batches in flight = %d, want 1", m)
	}
	if got := c.Stats().ImmediateBatches; got != 2*perGoroutine {
		t.Errorf("ImmediateBatches = %d, want %d", got, 2*perGoroutine)
	}
}

func TestExecImmediateDuringReplay(t *testing.T) {
	c, b := newTestContext(t, WithImmediatePollInterval(1))
	ps := mustPipeline(t, c)
	if err := c.InitializeRenderThread(2); err != nil {
		t.Fatalf("InitializeRenderThread failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		submitPass(c, PassConfig{}, InvalidSync, func(cb CommandBuffer) {
			c.SetPipelineState(cb, ps, 0)
			for j := 0; j < 50; j++ {
				c.DrawPrimitive(cb, PrimitiveTriangleList, 1)
			}
		})
		c.Present(InvalidSync)
		if _, err := c.CreateConstBuffer(ConstBufferDesc{Registers: 1}); err != nil {
			t.Fatalf("CreateConstBuffer during replay failed: %v", err)
		}
	}
	waitFor(t, "queue to drain", func() bool { return c.QueuedFrames() == 0 })
	if got := b.Count("Draw"); got != 20*50 {
		t.Errorf("Draw calls = %d, want %d", got, 20*50)
	}
}
