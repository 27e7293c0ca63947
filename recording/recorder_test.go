package recording

import "testing"

func TestRecorderEncodesFlatStream(t *testing.T) {
	r := NewRecorder(0)
	r.Begin()
	r.Command(OpBegin)
	r.Command(OpSetPipelineState, 7, 1)
	r.Command(OpDrawPrimitive, uint64(PrimitiveTriangleList), 3)
	r.Command(OpEnd, 0)
	r.End()

	want := []uint64{
		uint64(OpBegin),
		uint64(OpSetPipelineState), 7, 1,
		uint64(OpDrawPrimitive), 0, 3,
		uint64(OpEnd), 0,
		uint64(EndCmd),
	}
	got := r.Words()
	if len(got) != len(want) {
		t.Fatalf("Words() len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Words()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if r.Count() != 4 {
		t.Errorf("Count() = %d, want 4", r.Count())
	}
	if !r.Closed() {
		t.Error("Closed() = false after End")
	}
}

func TestRecorderBeginResets(t *testing.T) {
	r := NewRecorder(16)
	r.Begin()
	r.Command(OpNop)
	r.Marker("frame")
	r.End()

	r.Begin()
	if r.Len() != 0 || r.Count() != 0 || r.Closed() {
		t.Errorf("after Begin: Len=%d Count=%d Closed=%v, want 0 0 false", r.Len(), r.Count(), r.Closed())
	}
	if got := r.MarkerText(0); got != "" {
		t.Errorf("MarkerText(0) = %q after Begin, want empty", got)
	}
}

func TestRecorderOperandMismatchPanics(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		args []uint64
	}{
		{"too few", OpSetScissorRect, []uint64{1, 2, 3}},
		{"too many", OpBegin, []uint64{1}},
		{"unknown", Opcode(99), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(0)
			defer func() {
				if recover() == nil {
					t.Errorf("Command(%v) did not panic", tt.op)
				}
			}()
			r.Command(tt.op, tt.args...)
		})
	}
}

func TestRecorderGrowth(t *testing.T) {
	r := NewRecorder(0)
	r.Begin()
	for i := 0; i < 1000; i++ {
		r.Command(OpSetViewport, 0, 0, uint64(i), uint64(i))
	}
	r.End()

	if r.Len() != 1000*5+1 {
		t.Errorf("Len() = %d, want %d", r.Len(), 1000*5+1)
	}

	rd := r.Reader()
	n := 0
	for {
		op, ok := rd.Next()
		if !ok {
			break
		}
		if op.Code != OpSetViewport || op.Arg(2) != uint32(n) {
			t.Fatalf("record %d = %v %v", n, op.Code, op.Args)
		}
		n++
	}
	if n != 1000 {
		t.Errorf("decoded %d records, want 1000", n)
	}
}

func TestReaderSkipsByArity(t *testing.T) {
	r := NewRecorder(0)
	r.Begin()
	r.Command(OpBegin)
	r.Command(OpSetVertexConstBuffer, 0, 5, 1<<32|4)
	r.Marker("draw sky")
	r.Command(OpDrawIndexedPrimitive, uint64(PrimitiveTriangleStrip), 6, 2, 10)
	r.Command(OpEnd, 0)
	r.End()

	want := []Opcode{OpBegin, OpSetVertexConstBuffer, OpSetMarker, OpDrawIndexedPrimitive, OpEnd}
	rd := r.Reader()
	var got []Op
	for {
		op, ok := rd.Next()
		if !ok {
			break
		}
		got = append(got, op)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Code != want[i] {
			t.Errorf("record %d = %v, want %v", i, got[i].Code, want[i])
		}
		if len(got[i].Args) != want[i].Operands() {
			t.Errorf("record %d has %d args, want %d", i, len(got[i].Args), want[i].Operands())
		}
	}
	if text := r.MarkerText(got[2].Args[0]); text != "draw sky" {
		t.Errorf("marker = %q, want %q", text, "draw sky")
	}
	if got[3].Arg(3) != 10 {
		t.Errorf("start index = %d, want 10", got[3].Arg(3))
	}
}

func TestReaderStopsAtEndCmd(t *testing.T) {
	words := []uint64{uint64(OpNop), uint64(EndCmd), uint64(OpNop)}
	rd := NewReader(words)

	if _, ok := rd.Next(); !ok {
		t.Fatal("first Next() = false")
	}
	if _, ok := rd.Next(); ok {
		t.Error("Next() past EndCmd = true")
	}
	if _, ok := rd.Next(); ok {
		t.Error("Next() after end = true")
	}
}

func TestReaderCorruptedStreamPanics(t *testing.T) {
	tests := []struct {
		name  string
		words []uint64
	}{
		{"unknown opcode", []uint64{3}},
		{"truncated", []uint64{uint64(OpSetScissorRect), 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := NewReader(tt.words)
			defer func() {
				if recover() == nil {
					t.Error("Next() on corrupted stream did not panic")
				}
			}()
			rd.Next()
		})
	}
}
