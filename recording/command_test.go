package recording

import "testing"

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpBegin, "Begin"},
		{OpEnd, "End"},
		{OpSetVertexData, "SetVertexData"},
		{OpSetPipelineState, "SetPipelineState"},
		{OpSetScissorRect, "SetScissorRect"},
		{OpDrawIndexedPrimitive, "DrawIndexedPrimitive"},
		{OpSetMarker, "SetMarker"},
		{OpNop, "Nop"},
		{EndCmd, "EndCmd"},
		{Opcode(3), "Opcode(3)"},
		{Opcode(1000), "Opcode(1000)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.op.String(); got != tt.want {
				t.Errorf("Opcode.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpcodeOperands(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpBegin, 0},
		{OpEnd, 1},
		{OpSetVertexData, 2},
		{OpSetIndices, 1},
		{OpSetQueryBuffer, 1},
		{OpSetQueryIndex, 1},
		{OpSetPipelineState, 2},
		{OpSetDepthStencilState, 1},
		{OpSetSamplerState, 1},
		{OpSetCullMode, 1},
		{OpSetScissorRect, 4},
		{OpSetViewport, 4},
		{OpSetFillMode, 1},
		{OpSetVertexConstBuffer, 3},
		{OpSetFragmentConstBuffer, 3},
		{OpSetVertexTexture, 2},
		{OpSetFragmentTexture, 2},
		{OpDrawPrimitive, 2},
		{OpDrawIndexedPrimitive, 4},
		{OpSetMarker, 1},
		{OpNop, 0},
		{Opcode(5), -1},
		{EndCmd, -1},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.Operands(); got != tt.want {
				t.Errorf("%v.Operands() = %d, want %d", tt.op, got, tt.want)
			}
			if got := tt.op.Operands(); got > MaxOperands {
				t.Errorf("%v.Operands() = %d exceeds MaxOperands", tt.op, got)
			}
		})
	}
}

func TestPrimitiveVertexCount(t *testing.T) {
	tests := []struct {
		prim  PrimitiveType
		count uint32
		want  uint32
	}{
		{PrimitiveTriangleList, 4, 12},
		{PrimitiveTriangleStrip, 4, 6},
		{PrimitiveLineList, 4, 8},
		{PrimitiveType(9), 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.prim.String(), func(t *testing.T) {
			if got := tt.prim.VertexCount(tt.count); got != tt.want {
				t.Errorf("VertexCount(%d) = %d, want %d", tt.count, got, tt.want)
			}
		})
	}
}

func TestRectIsZero(t *testing.T) {
	if !(Rect{}).IsZero() {
		t.Error("Rect{}.IsZero() = false, want true")
	}
	if (Rect{Width: 1}).IsZero() {
		t.Error("Rect{Width: 1}.IsZero() = true, want false")
	}
}
