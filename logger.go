package rhi

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/recording"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// liveBackends holds the backends of open contexts so SetLogger can reach
// them.
var (
	liveMu       sync.Mutex
	liveBackends = make(map[recording.Backend]int)
)

// SetLogger configures the logger for rhi and the backends of every open
// Context. By default rhi produces no log output.
//
// Pass nil to restore the silent default.
//
// Log levels used by rhi:
//   - [slog.LevelDebug]: per-frame diagnostics (frame numbers, pass counts)
//   - [slog.LevelInfo]: lifecycle events (render thread start/stop, suspend, context loss)
//   - [slog.LevelWarn]: non-fatal issues (backend call errors, failed re-creation)
//
// Example:
//
//	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	liveMu.Lock()
	defer liveMu.Unlock()
	for b := range liveBackends {
		propagateLogger(b, l)
	}
}

// Logger returns the current logger used by rhi.
// Backend packages call this to share the same configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(b recording.Backend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

func trackBackend(b recording.Backend) {
	liveMu.Lock()
	liveBackends[b]++
	liveMu.Unlock()
	propagateLogger(b, Logger())
}

func untrackBackend(b recording.Backend) {
	liveMu.Lock()
	defer liveMu.Unlock()
	if liveBackends[b] <= 1 {
		delete(liveBackends, b)
		return
	}
	liveBackends[b]--
}
