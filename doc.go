// Package rhi is a deferred command-buffer execution engine for a GPU
// rendering hardware interface.
//
// # Overview
//
// Rendering code records draw calls and state changes into command
// buffers instead of calling the graphics API directly. Command buffers
// belong to render passes, passes are grouped into frames, and sealed
// frames are replayed in submission order against a recording.Backend,
// optionally on a dedicated render goroutine.
//
//	ctx, err := rhi.New(trace.New(1280, 720))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	if err := ctx.InitializeRenderThread(2); err != nil {
//	    log.Fatal(err)
//	}
//
//	pass, cbs := ctx.AllocatePass(rhi.PassConfig{ColorLoad: gputypes.LoadOpClear}, 1)
//	ctx.BeginCommandBuffer(cbs[0])
//	ctx.SetPipelineState(cbs[0], ps, 0)
//	ctx.SetVertexData(cbs[0], vb, 0)
//	ctx.DrawPrimitive(cbs[0], rhi.PrimitiveTriangleList, 1)
//	ctx.EndCommandBuffer(cbs[0], rhi.InvalidSync)
//	ctx.BeginPass(pass)
//	ctx.EndPass(pass)
//	ctx.Present(sync)
//
// # Threading
//
// Recording and submission happen on one goroutine, the submission
// goroutine. With a render thread running, Present returns as soon as
// fewer than frameCount frames are queued, and the render goroutine
// replays them. Without a render thread, Present replays the frame
// synchronously.
//
// Resource creation, updates and queries are serialized against replay
// through the immediate-command channel (see ExecImmediate); they are safe
// to call from any goroutine.
//
// # Sync objects
//
// A sync object attached to a frame or command buffer becomes signaled
// two frames after the frame that used it was executed, at which point
// the GPU is assumed to be done with the resources that frame referenced.
//
// # Lost context
//
// When the backend reports recording.ErrContextLost, every queued frame
// is rejected without executing and buffers and textures are re-created.
// Resources created with Retain get their last uploaded contents back.
package rhi
