// Package wgpu provides a recording.Backend that replays command buffers
// onto a github.com/gogpu/wgpu/hal device.
//
// The backend works with any hal device: one opened by the caller, one
// shared through a gpucontext.DeviceProvider, or the noop adapter
// registered under the name "wgpu-noop" for tests and headless runs.
//
// # Mapping
//
// The executor's state model is the one of a GL-style immediate API, so
// the backend folds state into hal objects lazily:
//
//   - Pipeline states compile their WGSL program with naga at creation.
//     Render pipelines are built on the first draw for a combination of
//     program, vertex layout, topology, cull mode, depth-stencil state and
//     target formats, and kept in a sharded LRU cache.
//   - Const buffers are written into a per-frame uniform arena; every
//     change of bound constants, textures or samplers produces a new bind
//     group at the next draw.
//   - Vertex layouts bind the vertex buffer at baseVertex * stride, which
//     is how indexed draws with a first vertex are expressed.
//   - Passes without a color target render into an offscreen texture of
//     the size given to New. Its contents can be read back with
//     ReadPixels.
//
// EndFrame submits the frame and waits for it on a fence; a failed wait
// is reported as recording.ErrContextLost. Queries count the draws issued
// between BeginQuery and EndQuery and become available once the frame's
// fence has signaled.
//
// The backend is not safe for concurrent use. The rhi executor serializes
// every call onto the render thread.
package wgpu
