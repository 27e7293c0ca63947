package rhi

import (
	"github.com/gogpu/rhi/pool"
	"github.com/gogpu/rhi/recording"
)

// Handles. Each kind is a distinct type, so passing a texture where a
// vertex buffer is expected fails to compile. The zero value of every
// handle is invalid.
type (
	VertexBuffer      = pool.Handle[vertexBuffer]
	IndexBuffer       = pool.Handle[indexBuffer]
	Texture           = pool.Handle[texture]
	ConstBuffer       = pool.Handle[constBuffer]
	PipelineState     = pool.Handle[pipelineState]
	DepthStencilState = pool.Handle[depthStencilState]
	SamplerState      = pool.Handle[samplerState]
	QueryBuffer       = pool.Handle[queryBuffer]
	SyncObject        = pool.Handle[syncObject]
	Pass              = pool.Handle[renderPass]
	CommandBuffer     = pool.Handle[commandBuffer]
)

// InvalidSync is the zero sync handle, accepted wherever a sync object is
// optional.
const InvalidSync SyncObject = pool.Invalid

// Descriptor and enum types shared with backends.
type (
	Rect              = recording.Rect
	CullMode          = recording.CullMode
	FillMode          = recording.FillMode
	PrimitiveType     = recording.PrimitiveType
	IndexSize         = recording.IndexSize
	Stage             = recording.Stage
	BufferDesc        = recording.BufferDesc
	TextureDesc       = recording.TextureDesc
	ConstBufferDesc   = recording.ConstBufferDesc
	PipelineStateDesc = recording.PipelineStateDesc
	DepthStencilDesc  = recording.DepthStencilDesc
	SamplerDesc       = recording.SamplerDesc
	VertexLayout      = recording.VertexLayout
	VertexAttribute   = recording.VertexAttribute
)

const (
	CullNone = recording.CullNone
	CullCCW  = recording.CullCCW
	CullCW   = recording.CullCW

	FillSolid     = recording.FillSolid
	FillWireframe = recording.FillWireframe

	PrimitiveTriangleList  = recording.PrimitiveTriangleList
	PrimitiveTriangleStrip = recording.PrimitiveTriangleStrip
	PrimitiveLineList      = recording.PrimitiveLineList

	IndexSize16 = recording.IndexSize16
	IndexSize32 = recording.IndexSize32
)

// MaxConstBuffers is the number of const buffer slots per stage.
const MaxConstBuffers = 8

// Pool slot types. Backend resources are only touched on the goroutine
// that executes immediate commands and frames.

type vertexBuffer struct {
	res      recording.Resource
	desc     recording.BufferDesc
	retained []byte
}

type indexBuffer struct {
	res      recording.Resource
	desc     recording.BufferDesc
	retained []byte
}

type texture struct {
	res      recording.Resource
	desc     recording.TextureDesc
	retained []byte
}

type constBuffer struct {
	res  recording.Resource
	desc recording.ConstBufferDesc
	data []float32

	// Snapshot of data in the const ring; valid while instEpoch matches
	// the context epoch.
	inst      uint64
	instEpoch uint64
}

type pipelineState struct {
	res  recording.Resource
	desc recording.PipelineStateDesc
}

type depthStencilState struct {
	res recording.Resource
}

type samplerState struct {
	res recording.Resource
}

type queryBuffer struct {
	res   recording.Resource
	count uint32
}
