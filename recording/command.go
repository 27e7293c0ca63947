package recording

import "strconv"

// Opcode identifies one record in a command stream.
// Opcodes are small positive integers grouped by category; each has a
// fixed operand count so the decoder can skip records without a length
// prefix.
type Opcode uint64

const (
	// Buffer framing
	OpBegin Opcode = 1 // Start of a command buffer: reset default state, set up the pass on the first buffer
	OpEnd   Opcode = 2 // End of a command buffer; operand: sync object

	// Buffer and query binding
	OpSetVertexData  Opcode = 11 // vertex buffer, stream
	OpSetIndices     Opcode = 12 // index buffer
	OpSetQueryBuffer Opcode = 13 // query buffer
	OpSetQueryIndex  Opcode = 14 // query index

	// Fixed-function state
	OpSetPipelineState     Opcode = 21 // pipeline state, vertex layout
	OpSetDepthStencilState Opcode = 22 // depth-stencil state
	OpSetSamplerState      Opcode = 23 // sampler state
	OpSetCullMode          Opcode = 24 // cull mode
	OpSetScissorRect       Opcode = 25 // x, y, w, h
	OpSetViewport          Opcode = 26 // x, y, w, h
	OpSetFillMode          Opcode = 27 // fill mode

	// Shader resource binding
	OpSetVertexConstBuffer   Opcode = 31 // slot, const buffer, instance
	OpSetFragmentConstBuffer Opcode = 32 // slot, const buffer, instance
	OpSetVertexTexture       Opcode = 33 // unit, texture
	OpSetFragmentTexture     Opcode = 34 // unit, texture

	// Draws
	OpDrawPrimitive        Opcode = 41 // primitive type, vertex count
	OpDrawIndexedPrimitive Opcode = 42 // primitive type, index count, first vertex, start index

	// Debug
	OpSetMarker Opcode = 51 // marker table index
	OpNop       Opcode = 77
)

// EndCmd terminates every closed stream. It cannot collide with a real
// opcode.
const EndCmd Opcode = 0xFFFFFFFF

// MaxOperands is the largest operand count any opcode takes.
const MaxOperands = 6

type opInfo struct {
	name     string
	operands int
}

// opcodeInfo is the static decode table, indexed by opcode.
var opcodeInfo = [OpNop + 1]opInfo{
	OpBegin:                  {"Begin", 0},
	OpEnd:                    {"End", 1},
	OpSetVertexData:          {"SetVertexData", 2},
	OpSetIndices:             {"SetIndices", 1},
	OpSetQueryBuffer:         {"SetQueryBuffer", 1},
	OpSetQueryIndex:          {"SetQueryIndex", 1},
	OpSetPipelineState:       {"SetPipelineState", 2},
	OpSetDepthStencilState:   {"SetDepthStencilState", 1},
	OpSetSamplerState:        {"SetSamplerState", 1},
	OpSetCullMode:            {"SetCullMode", 1},
	OpSetScissorRect:         {"SetScissorRect", 4},
	OpSetViewport:            {"SetViewport", 4},
	OpSetFillMode:            {"SetFillMode", 1},
	OpSetVertexConstBuffer:   {"SetVertexConstBuffer", 3},
	OpSetFragmentConstBuffer: {"SetFragmentConstBuffer", 3},
	OpSetVertexTexture:       {"SetVertexTexture", 2},
	OpSetFragmentTexture:     {"SetFragmentTexture", 2},
	OpDrawPrimitive:          {"DrawPrimitive", 2},
	OpDrawIndexedPrimitive:   {"DrawIndexedPrimitive", 4},
	OpSetMarker:              {"SetMarker", 1},
	OpNop:                    {"Nop", 0},
}

// Operands returns the fixed operand count of op, or -1 if op is not a
// known opcode.
func (op Opcode) Operands() int {
	if !op.IsValid() {
		return -1
	}
	return opcodeInfo[op].operands
}

// IsValid reports whether op is a known opcode.
func (op Opcode) IsValid() bool {
	return op < Opcode(len(opcodeInfo)) && opcodeInfo[op].name != ""
}

// String returns the opcode name.
func (op Opcode) String() string {
	if op == EndCmd {
		return "EndCmd"
	}
	if op.IsValid() {
		return opcodeInfo[op].name
	}
	return "Opcode(" + strconv.FormatUint(uint64(op), 10) + ")"
}
