// Package recording defines the command stream format of the render
// backend and the interface replay targets implement.
//
// # Stream format
//
// A command buffer is recorded into a flat []uint64. Each record is an
// Opcode followed by a fixed number of operands (Opcode.Operands), and a
// closed stream ends with EndCmd:
//
//	[SetPipelineState ps vdecl][SetVertexData vb 0][DrawPrimitive 0 3][EndCmd]
//
// There is no length prefix. The decoder knows every opcode's arity, so
// skipping a record is a single addition. Strings (debug markers) live in
// a side table on the Recorder and the stream carries their index.
//
// # Backends
//
// Replay targets implement Backend: a ResourceFactory for object
// lifetime, a StateSink for the replayed calls and FrameControl for
// frame boundaries and context ownership. Backends register themselves
// with Register from init:
//
//	import _ "github.com/gogpu/rhi/backend/trace"
//
//	b, err := recording.Open("trace", recording.Target{Width: 640, Height: 480})
package recording
