package recording

import (
	"errors"
	"slices"
	"testing"
)

// stubBackend satisfies Backend; none of its methods are called.
type stubBackend struct {
	Backend
	target Target
}

func stubOpener(t Target) (Backend, error) { return &stubBackend{target: t}, nil }

// isolateRegistry swaps in an empty registry for the duration of a test.
func isolateRegistry(t *testing.T) {
	t.Helper()
	openersMu.Lock()
	saved := openers
	openers = map[string]Opener{}
	openersMu.Unlock()
	t.Cleanup(func() {
		openersMu.Lock()
		openers = saved
		openersMu.Unlock()
	})
}

func TestOpenPassesTarget(t *testing.T) {
	tests := []struct {
		name string
		in   Target
		want Target
	}{
		{"explicit", Target{Width: 640, Height: 480}, Target{Width: 640, Height: 480}},
		{"zero", Target{}, DefaultTarget},
		{"zero height", Target{Width: 640}, DefaultTarget},
	}
	isolateRegistry(t)
	Register("stub", stubOpener)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open("stub", tt.in)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if got := b.(*stubBackend).target; got != tt.want {
				t.Errorf("target = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOpenUnknown(t *testing.T) {
	isolateRegistry(t)

	if _, err := Open("missing", Target{}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(missing) error = %v, want ErrUnknownBackend", err)
	}
}

func TestOpenError(t *testing.T) {
	isolateRegistry(t)

	boom := errors.New("no adapter")
	Register("broken", func(Target) (Backend, error) { return nil, boom })

	if _, err := Open("broken", Target{}); !errors.Is(err, boom) {
		t.Errorf("Open(broken) error = %v, want wrapped %v", err, boom)
	}
}

func TestRegisterPanics(t *testing.T) {
	isolateRegistry(t)

	t.Run("nil opener", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Register(nil) did not panic")
			}
		}()
		Register("nil", nil)
	})

	t.Run("duplicate", func(t *testing.T) {
		Register("dup", stubOpener)
		defer func() {
			if recover() == nil {
				t.Error("duplicate Register did not panic")
			}
		}()
		Register("dup", stubOpener)
	})
}

func TestBackendsSorted(t *testing.T) {
	isolateRegistry(t)

	for _, name := range []string{"wgpu", "trace", "gl"} {
		Register(name, stubOpener)
	}
	if got, want := Backends(), []string{"gl", "trace", "wgpu"}; !slices.Equal(got, want) {
		t.Fatalf("Backends() = %v, want %v", got, want)
	}

	Unregister("gl")
	if slices.Contains(Backends(), "gl") {
		t.Error("gl still listed after Unregister")
	}
}
