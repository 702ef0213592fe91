package codeskew

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/codeskew/engine"
	"github.com/gogpu/codeskew/watch"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
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
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for codeskew and all its sub-packages.
// By default, codeskew produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by codeskew:
//   - [slog.LevelDebug]: internal diagnostics (binding layouts, pass grids)
//   - [slog.LevelInfo]: important lifecycle events (backend selected,
//     shader published)
//   - [slog.LevelWarn]: non-fatal issues (rejected recompiles, assertion
//     counter overflows)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	codeskew.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	codeskew.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Sub-packages keep their own handle so they stay importable on
	// their own without a cycle through the root.
	engine.SetLogger(l.With(slog.String("component", "engine")))
	watch.SetLogger(l.With(slog.String("component", "watch")))
}

// Logger returns the current logger used by codeskew.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
