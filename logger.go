package slider

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/backend/native"
	"github.com/gogpu/slider/imgcache"
	"github.com/gogpu/slider/source"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for slider and all its sub-packages.
// By default, slider produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by slider:
//   - [slog.LevelDebug]: allocations, grows, window moves, decodes
//   - [slog.LevelInfo]: atlas and viewer creation
//   - [slog.LevelWarn]: atlas fallbacks, skipped images, invalid frees
//
// Example:
//
//	slider.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	atlas.SetLogger(l)
	imgcache.SetLogger(l)
	source.SetLogger(l)
	native.SetLogger(l)
}

// Logger returns the current logger used by slider.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
