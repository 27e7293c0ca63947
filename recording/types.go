package recording

import "github.com/gogpu/gputypes"

// Rect is an integer rectangle in framebuffer pixels.
// The zero Rect has special meaning for scissor and viewport commands:
// it disables the scissor test or restores the pass default viewport.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

// IsZero reports whether r is the (0,0,0,0) rectangle.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// CullMode selects which triangle winding is discarded.
type CullMode uint32

const (
	CullNone CullMode = iota
	CullCCW           // cull counter-clockwise (back faces with clockwise front)
	CullCW            // cull clockwise
)

// FillMode selects solid or wireframe rasterization.
type FillMode uint32

const (
	FillSolid FillMode = iota
	FillWireframe
)

// PrimitiveType is the topology of a draw call.
type PrimitiveType uint32

const (
	PrimitiveTriangleList PrimitiveType = iota
	PrimitiveTriangleStrip
	PrimitiveLineList
)

var primitiveNames = [...]string{
	PrimitiveTriangleList:  "TriangleList",
	PrimitiveTriangleStrip: "TriangleStrip",
	PrimitiveLineList:      "LineList",
}

// String returns the primitive type name.
func (p PrimitiveType) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "Unknown"
}

// VertexCount converts a primitive count into the number of vertices
// (or indices) the draw consumes.
func (p PrimitiveType) VertexCount(primitives uint32) uint32 {
	switch p {
	case PrimitiveTriangleList:
		return primitives * 3
	case PrimitiveTriangleStrip:
		return primitives + 2
	case PrimitiveLineList:
		return primitives * 2
	default:
		return 0
	}
}

// Topology maps p to its gputypes equivalent.
func (p PrimitiveType) Topology() gputypes.PrimitiveTopology {
	switch p {
	case PrimitiveTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case PrimitiveLineList:
		return gputypes.PrimitiveTopologyLineList
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

// Stage is a programmable pipeline stage.
type Stage uint32

const (
	StageVertex Stage = iota
	StageFragment
)

// String returns "vertex" or "fragment".
func (s Stage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// IndexSize is the width of one index.
type IndexSize uint32

const (
	IndexSize16 IndexSize = iota
	IndexSize32
)

// Bytes returns the size of one index in bytes.
func (s IndexSize) Bytes() uint32 {
	if s == IndexSize32 {
		return 4
	}
	return 2
}

// Format maps s to its gputypes equivalent.
func (s IndexSize) Format() gputypes.IndexFormat {
	if s == IndexSize32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

// BufferDesc describes a vertex or index buffer.
type BufferDesc struct {
	Label     string
	Size      uint32
	IndexSize IndexSize // index buffers only

	// Retain keeps a CPU copy of uploaded contents so the buffer can be
	// restored after a lost context.
	Retain bool
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label         string
	Width, Height uint32
	Format        gputypes.TextureFormat
	Levels        uint32
	RenderTarget  bool
	Retain        bool
}

// ConstBufferDesc describes a block of shader constants.
// Registers counts float4 registers.
type ConstBufferDesc struct {
	Label     string
	Stage     Stage
	Registers uint32
}

// VertexAttribute is one element of a vertex layout.
type VertexAttribute struct {
	Format   gputypes.VertexFormat
	Offset   uint64
	Location uint32
}

// VertexLayout describes the memory layout of one vertex stream.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// PipelineStateDesc describes a program pair plus its fixed state.
// A pipeline state can be bound with any of its vertex layouts; the
// layout index travels with SetPipelineState as the vdecl operand.
type PipelineStateDesc struct {
	Label          string
	Program        string // WGSL source containing both entry points
	VertexEntry    string
	FragmentEntry  string
	VertexLayouts  []VertexLayout
	ColorFormat    gputypes.TextureFormat
	Blend          bool
	VertexConsts   []uint32 // registers per vertex const buffer slot
	FragmentConsts []uint32 // registers per fragment const buffer slot

	// Texture units used by each stage. Backends that bind textures
	// through descriptor sets number fragment units after vertex units.
	VertexSamplers   uint32
	FragmentSamplers uint32
}

// DepthStencilDesc describes depth and stencil test state.
type DepthStencilDesc struct {
	DepthTest    bool
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction
	Stencil      bool
	StencilRef   uint32
}

// SamplerUnit is the sampling state of one texture unit.
type SamplerUnit struct {
	AddressU, AddressV gputypes.AddressMode
	MinFilter          gputypes.FilterMode
	MagFilter          gputypes.FilterMode
	MipFilter          gputypes.FilterMode
}

// SamplerDesc describes the sampling state of every fragment and vertex
// texture unit.
type SamplerDesc struct {
	Fragment []SamplerUnit
	Vertex   []SamplerUnit
}

// PassDesc is the resolved target configuration of a render pass, handed
// to the backend by the first command buffer of the pass.
type PassDesc struct {
	Color      Resource // nil renders to the default framebuffer
	ColorLoad  gputypes.LoadOp
	ColorStore gputypes.StoreOp
	ClearColor gputypes.Color

	Depth      Resource
	DepthLoad  gputypes.LoadOp
	DepthStore gputypes.StoreOp
	ClearDepth float32
}
