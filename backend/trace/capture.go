package trace

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4"
)

// captureMagic is the first line of every capture.
const captureMagic = "rhi-trace 1"

// WriteCapture writes the call log to w as an lz4-compressed text stream,
// one call per line.
func (b *Backend) WriteCapture(w io.Writer) error {
	zw := lz4.NewWriter(w)
	bw := bufio.NewWriter(zw)

	if _, err := fmt.Fprintln(bw, captureMagic); err != nil {
		return fmt.Errorf("trace: write capture header: %w", err)
	}
	for _, c := range b.Calls() {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", c.Op, c.Args); err != nil {
			return fmt.Errorf("trace: write capture: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("trace: flush capture: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("trace: close capture: %w", err)
	}
	return nil
}

// ReadCapture decodes a capture written by WriteCapture.
func ReadCapture(r io.Reader) ([]Call, error) {
	sc := bufio.NewScanner(lz4.NewReader(r))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("trace: read capture: %w", err)
		}
		return nil, fmt.Errorf("trace: empty capture")
	}
	if sc.Text() != captureMagic {
		return nil, fmt.Errorf("trace: bad capture header %q", sc.Text())
	}

	var calls []Call
	for sc.Scan() {
		op, args, _ := strings.Cut(sc.Text(), "\t")
		calls = append(calls, Call{Op: op, Args: args})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read capture: %w", err)
	}
	return calls, nil
}
