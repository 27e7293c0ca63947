// Package trace provides a recording.Backend that performs no GPU work
// and instead logs every call it receives.
//
// It is the reference backend for tests: assertions are made against the
// call log (which state changes reached the backend, in which order),
// and it can simulate a lost graphics context or a failing call. Call
// logs can be exported as lz4-compressed captures.
//
// The backend registers itself as "trace".
package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gogpu/rhi/recording"
)

func init() {
	recording.Register("trace", func(t recording.Target) (recording.Backend, error) {
		return New(t.Width, t.Height), nil
	})
}

// ErrForeignResource is returned when a resource created by another
// backend is passed in.
var ErrForeignResource = errors.New("trace: resource not created by this backend")

// Call is one logged backend call.
type Call struct {
	Op   string
	Args string
}

// String formats the call as "Op args".
func (c Call) String() string {
	if c.Args == "" {
		return c.Op
	}
	return c.Op + " " + c.Args
}

// Resource is the object handed out by the trace backend.
type Resource struct {
	ID        int
	Kind      string
	label     string
	Width     uint32
	Height    uint32
	Data      []byte
	Recreated int
	released  bool

	queries []uint64
	pending []bool
}

// Label returns the debug label.
func (r *Resource) Label() string { return r.label }

// Released reports whether Release was called on r.
func (r *Resource) Released() bool { return r.released }

// Backend is the trace backend.
type Backend struct {
	mu     sync.Mutex
	calls  []Call
	nextID int
	width  uint32
	height uint32
	live   map[int]*Resource

	loseContext bool
	failNext    error
	frames      int
	contextOwns int // goroutines holding the context, for assertions

	logger *slog.Logger
}

// New returns a trace backend whose default framebuffer is width x height.
func New(width, height uint32) *Backend {
	return &Backend{
		width:  width,
		height: height,
		live:   make(map[int]*Resource),
	}
}

// SetLogger makes the backend log every call at debug level.
func (b *Backend) SetLogger(l *slog.Logger) {
	b.mu.Lock()
	b.logger = l
	b.mu.Unlock()
}

func (b *Backend) record(op, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked(op, format, args...)
}

func (b *Backend) recordLocked(op, format string, args ...any) {
	c := Call{Op: op}
	if format != "" {
		c.Args = fmt.Sprintf(format, args...)
	}
	b.calls = append(b.calls, c)
	if b.logger != nil {
		b.logger.Debug("trace: call", "op", op, "args", c.Args)
	}
}

func (b *Backend) newResource(kind, label string) *Resource {
	b.nextID++
	r := &Resource{ID: b.nextID, Kind: kind, label: label}
	b.live[r.ID] = r
	return r
}

func (b *Backend) resource(r recording.Resource) (*Resource, error) {
	tr, ok := r.(*Resource)
	if !ok || tr == nil {
		return nil, ErrForeignResource
	}
	return tr, nil
}

// name formats a resource for the call log.
func name(r recording.Resource) string {
	tr, ok := r.(*Resource)
	if !ok || tr == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", tr.Kind, tr.ID)
}

// Calls returns a copy of the call log.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Ops returns the call log as "Op args" strings, keeping only the given
// ops (all ops when none are given).
func (b *Backend) Ops(only ...string) []string {
	keep := make(map[string]bool, len(only))
	for _, op := range only {
		keep[op] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.calls {
		if len(keep) == 0 || keep[c.Op] {
			out = append(out, c.String())
		}
	}
	return out
}

// Count returns how many times op was called.
func (b *Backend) Count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

// Dump returns the call log, one call per line.
func (b *Backend) Dump() string {
	var sb strings.Builder
	for _, c := range b.Calls() {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Frames returns the number of EndFrame calls.
func (b *Backend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Size returns the default framebuffer size.
func (b *Backend) Size() (width, height uint32) { return b.width, b.height }

// LiveResources returns the number of resources not yet released.
func (b *Backend) LiveResources() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// LoseContext makes the next EndFrame report a lost context.
func (b *Backend) LoseContext() {
	b.mu.Lock()
	b.loseContext = true
	b.mu.Unlock()
}

// FailNext makes the next CheckError return err.
func (b *Backend) FailNext(err error) {
	b.mu.Lock()
	b.failNext = err
	b.mu.Unlock()
}

// ContextHolders returns how many AcquireContext calls are not matched by
// a ReleaseContext. A negative value means the context was released by
// the thread that owned it at startup.
func (b *Backend) ContextHolders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contextOwns
}

var _ recording.Backend = (*Backend)(nil)
var _ recording.ErrorChecker = (*Backend)(nil)

// Name returns "trace".
func (b *Backend) Name() string { return "trace" }
