// Command rhidemo drives frames of a spinning triangle through an rhi
// backend and prints execution statistics.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend/trace"
	"github.com/gogpu/rhi/backend/wgpu"
	"github.com/gogpu/rhi/config"
	"github.com/gogpu/rhi/internal/parallel"
	"github.com/gogpu/rhi/recording"
)

const triangleWGSL = `
struct Camera {
    mvp: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera.mvp * vec4<f32>(pos, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.9, 0.5, 0.1, 1.0);
}
`

var triangle = []float32{
	0, 0.8, 0,
	-0.7, -0.6, 0,
	0.7, -0.6, 0,
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML or TOML configuration file")
		backend    = flag.String("backend", "", "backend name (overrides config)")
		frames     = flag.Int("frames", -1, "frames to render (overrides config)")
		workers    = flag.Int("workers", 4, "command buffers recorded in parallel per frame")
		capture    = flag.String("capture", "", "write an lz4 call capture (trace backend)")
		output     = flag.String("output", "", "write the last frame as PNG (wgpu backends)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *frames >= 0 {
		cfg.Frames = *frames
	}
	level, _ := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, *workers, *capture, *output); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config, workers int, capture, output string) error {
	b, err := recording.Open(cfg.Backend, cfg.Target())
	if err != nil {
		return err
	}
	if c, ok := b.(interface{ Close() }); ok {
		defer c.Close()
	}

	ctx, err := rhi.New(b, cfg.Options()...)
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Close() }()

	scene, err := newScene(ctx)
	if err != nil {
		return err
	}

	if err := ctx.InitializeRenderThread(cfg.RenderThreadFrames); err != nil {
		return err
	}

	pool := parallel.New(workers)
	defer pool.Close()

	start := time.Now()
	var last rhi.SyncObject
	for frame := range cfg.Frames {
		if err := scene.update(ctx, frame); err != nil {
			return err
		}
		last = scene.submit(ctx, pool, workers)
		ctx.Present(last)
	}
	if last.IsValid() {
		for !ctx.IsSyncObjectSignaled(last) {
			time.Sleep(time.Millisecond)
		}
	}
	elapsed := time.Since(start)
	if err := ctx.UninitializeRenderThread(); err != nil && cfg.RenderThreadFrames > 0 {
		return err
	}

	printStats(ctx.Stats(), cfg, elapsed)

	switch be := b.(type) {
	case *trace.Backend:
		if capture != "" {
			if err := writeCapture(be, capture); err != nil {
				return err
			}
		}
	case *wgpu.Backend:
		p := message.NewPrinter(language.English)
		st := be.PipelineCacheStats()
		p.Printf("pipeline cache: %d entries, %.1f%% hits\n", st.Len, 100*st.HitRate())
		if output != "" {
			if err := writePNG(be, output); err != nil {
				return err
			}
		}
	}
	scene.release(ctx)
	return nil
}

type scene struct {
	ps     rhi.PipelineState
	vb     rhi.VertexBuffer
	camera rhi.ConstBuffer
	syncs  []rhi.SyncObject
}

func newScene(ctx *rhi.Context) (*scene, error) {
	ps, err := ctx.CreatePipelineState(rhi.PipelineStateDesc{
		Label:   "triangle",
		Program: triangleWGSL,
		VertexLayouts: []rhi.VertexLayout{{
			Stride: 12,
			Attributes: []rhi.VertexAttribute{{
				Format: gputypes.VertexFormatFloat32x3,
			}},
		}},
		VertexConsts: []uint32{4},
	})
	if err != nil {
		return nil, err
	}
	vb, err := ctx.CreateVertexBuffer(rhi.BufferDesc{Label: "triangle", Size: uint32(4 * len(triangle)), Retain: true})
	if err != nil {
		return nil, err
	}
	if err := ctx.UpdateVertexBuffer(vb, 0, floatBytes(triangle)); err != nil {
		return nil, err
	}
	camera, err := ctx.CreateConstBuffer(rhi.ConstBufferDesc{Label: "camera", Stage: recording.StageVertex, Registers: 4})
	if err != nil {
		return nil, err
	}
	return &scene{ps: ps, vb: vb, camera: camera}, nil
}

// update writes the camera matrix for frame.
func (s *scene) update(ctx *rhi.Context, frame int) error {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	model := mgl32.HomogRotate3DY(float32(frame) * mgl32.DegToRad(3))
	mvp := proj.Mul4(view).Mul4(model)
	return ctx.UpdateConstBuffer(s.camera, 0, mvp[:])
}

// submit records one pass of n command buffers in parallel and returns
// the sync object that signals when the frame has executed.
func (s *scene) submit(ctx *rhi.Context, pool *parallel.Pool, n int) rhi.SyncObject {
	for len(s.syncs) > 0 && ctx.IsSyncObjectSignaled(s.syncs[0]) {
		ctx.DeleteSyncObject(s.syncs[0])
		s.syncs = s.syncs[1:]
	}
	sync := ctx.CreateSyncObject()
	s.syncs = append(s.syncs, sync)

	pass, cbs := ctx.AllocatePass(rhi.PassConfig{
		ColorLoad:  gputypes.LoadOpClear,
		ClearColor: gputypes.Color{R: 0.1, G: 0.1, B: 0.15, A: 1},
	}, max(n, 1))
	pool.ForEach(len(cbs), func(i int) {
		cb := cbs[i]
		ctx.BeginCommandBuffer(cb)
		ctx.SetMarker(cb, fmt.Sprintf("slice %d", i))
		ctx.SetPipelineState(cb, s.ps, 0)
		ctx.SetCullMode(cb, rhi.CullNone)
		ctx.SetVertexData(cb, s.vb, 0)
		ctx.SetVertexConstBuffer(cb, 0, s.camera)
		ctx.DrawPrimitive(cb, rhi.PrimitiveTriangleList, 1)
		ctx.EndCommandBuffer(cb, sync)
	})
	ctx.BeginPass(pass)
	ctx.EndPass(pass)
	return sync
}

func (s *scene) release(ctx *rhi.Context) {
	for _, sync := range s.syncs {
		ctx.DeleteSyncObject(sync)
	}
	ctx.DeleteConstBuffer(s.camera)
	ctx.DeleteVertexBuffer(s.vb)
	ctx.DeletePipelineState(s.ps)
}

func floatBytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func printStats(st rhi.Stats, cfg config.Config, elapsed time.Duration) {
	p := message.NewPrinter(language.English)
	p.Printf("backend %s: %d frames in %v\n", cfg.Backend, st.FramesExecuted, elapsed.Round(time.Microsecond))
	p.Printf("  draws:           %d (%d indexed)\n", st.Draws+st.IndexedDraws, st.IndexedDraws)
	p.Printf("  pipeline binds:  %d\n", st.PipelineBinds)
	p.Printf("  vertex binds:    %d\n", st.VertexBufferBinds)
	p.Printf("  frames rejected: %d\n", st.FramesRejected)
	p.Printf("  immediate:       %d batches\n", st.ImmediateBatches)
}

func writeCapture(b *trace.Backend, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.WriteCapture(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writePNG(b *wgpu.Backend, path string) error {
	img, err := b.ReadPixels(nil)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
