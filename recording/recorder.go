package recording

import "fmt"

// Recorder builds one command stream: a flat sequence of 64-bit words,
// each record being an opcode followed by exactly Opcode.Operands()
// operands, terminated by EndCmd.
//
// Recording performs no side effects; it only captures data for later
// replay. A Recorder is owned by the goroutine recording into it; the
// executor reads it only after the owning frame has been handed off.
type Recorder struct {
	words   []uint64
	markers []string
	count   int
	closed  bool
}

// NewRecorder returns a recorder with room for capacity words.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{words: make([]uint64, 0, capacity)}
}

// Begin clears the stream and the debug command counter. The backing
// storage is kept for reuse.
func (r *Recorder) Begin() {
	r.words = r.words[:0]
	clear(r.markers)
	r.markers = r.markers[:0]
	r.count = 0
	r.closed = false
}

// Command appends one record.
// It panics if op is unknown or args does not match its operand count;
// both are programming errors in the caller.
func (r *Recorder) Command(op Opcode, args ...uint64) {
	n := op.Operands()
	if n < 0 {
		panic(fmt.Sprintf("recording: unknown opcode %d", uint64(op)))
	}
	if len(args) != n {
		panic(fmt.Sprintf("recording: %s takes %d operands, got %d", op, n, len(args)))
	}
	r.growFor(1 + n)
	r.words = append(r.words, uint64(op))
	r.words = append(r.words, args...)
	r.count++
}

// Marker appends a SetMarker record carrying text.
func (r *Recorder) Marker(text string) {
	r.markers = append(r.markers, text)
	r.Command(OpSetMarker, uint64(len(r.markers)-1))
}

// End terminates the stream with EndCmd. Further Commands are allowed only
// after the next Begin.
func (r *Recorder) End() {
	r.growFor(1)
	r.words = append(r.words, uint64(EndCmd))
	r.closed = true
}

// Closed reports whether End has been called since the last Begin.
func (r *Recorder) Closed() bool { return r.closed }

// Count returns the number of records appended since Begin.
func (r *Recorder) Count() int { return r.count }

// Len returns the stream length in words.
func (r *Recorder) Len() int { return len(r.words) }

// Words returns the encoded stream. The slice aliases the recorder's
// storage and is only valid until the next Begin.
func (r *Recorder) Words() []uint64 { return r.words }

// MarkerText returns the marker string stored at index i.
func (r *Recorder) MarkerText(i uint64) string {
	if i >= uint64(len(r.markers)) {
		return ""
	}
	return r.markers[i]
}

// Reader returns a decoder over the recorded stream.
func (r *Recorder) Reader() Reader {
	return Reader{words: r.words}
}

// growFor makes sure n more words can be appended without the append
// reallocating more than once.
func (r *Recorder) growFor(n int) {
	if len(r.words)+n <= cap(r.words) {
		return
	}
	sz := 2 * cap(r.words)
	if sz < 256 {
		sz = 256
	}
	for sz < len(r.words)+n {
		sz *= 2
	}
	grown := make([]uint64, len(r.words), sz)
	copy(grown, r.words)
	r.words = grown
}

// Op is one decoded record.
type Op struct {
	Code Opcode
	Args []uint64
}

// Arg returns operand i as a uint32.
func (o Op) Arg(i int) uint32 {
	// #nosec G115 -- operands are encoded from 32-bit values
	return uint32(o.Args[i])
}

// Reader walks a command stream record by record.
type Reader struct {
	words []uint64
	pos   int
}

// NewReader returns a reader over words.
func NewReader(words []uint64) Reader {
	return Reader{words: words}
}

// Next decodes the next record. It returns false at EndCmd or at the end
// of the slice. It panics on an unknown opcode or a truncated record,
// which mean the stream is corrupted.
func (rd *Reader) Next() (Op, bool) {
	if rd.pos >= len(rd.words) {
		return Op{}, false
	}
	op := Opcode(rd.words[rd.pos])
	if op == EndCmd {
		rd.pos = len(rd.words)
		return Op{}, false
	}
	n := op.Operands()
	if n < 0 {
		panic(fmt.Sprintf("recording: corrupted stream: opcode %d at word %d", uint64(op), rd.pos))
	}
	end := rd.pos + 1 + n
	if end > len(rd.words) {
		panic(fmt.Sprintf("recording: corrupted stream: %s truncated at word %d", op, rd.pos))
	}
	rec := Op{Code: op, Args: rd.words[rd.pos+1 : end : end]}
	rd.pos = end
	return rec, true
}

// Offset returns the word offset of the next record.
func (rd *Reader) Offset() int { return rd.pos }
