package recording

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownBackend is returned by Open for names nothing registered.
var ErrUnknownBackend = errors.New("recording: unknown backend")

// DefaultTarget is used by Open when the requested target has no size.
var DefaultTarget = Target{Width: 1280, Height: 720}

// Target describes the default render target a backend draws to: the
// surface passes without explicit color targets render into.
type Target struct {
	Width, Height uint32
}

// Opener creates a backend drawing to t. Backend packages register one
// from init.
type Opener func(t Target) (Backend, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a backend available to Open under name. It panics if
// open is nil or name is taken.
func Register(name string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if open == nil {
		panic("recording: nil opener for backend " + name)
	}
	if _, dup := openers[name]; dup {
		panic("recording: backend " + name + " registered twice")
	}
	openers[name] = open
}

// Unregister removes name. Backends already opened are unaffected.
func Unregister(name string) {
	openersMu.Lock()
	delete(openers, name)
	openersMu.Unlock()
}

// Open creates the backend registered as name with default target t.
// A zero-sized t is replaced by DefaultTarget.
//
//	import _ "github.com/gogpu/rhi/backend/wgpu" // "wgpu-noop"
//
//	b, err := recording.Open("wgpu-noop", recording.Target{Width: 640, Height: 480})
func Open(name string, t Target) (Backend, error) {
	openersMu.RLock()
	open, ok := openers[name]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, name, Backends())
	}
	if t.Width == 0 || t.Height == 0 {
		t = DefaultTarget
	}
	b, err := open(t)
	if err != nil {
		return nil, fmt.Errorf("recording: open backend %q at %dx%d: %w", name, t.Width, t.Height, err)
	}
	return b, nil
}

// Backends returns the registered names in sorted order.
func Backends() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	return slices.Sorted(maps.Keys(openers))
}
