package gpustream

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gpustream/backend/host"
	"github.com/gogpu/gpustream/backend/wgpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for gpustream and its platforms.
// By default gpustream produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by gpustream:
//   - [slog.LevelDebug]: buffer allocation, dispatch sizes
//   - [slog.LevelInfo]: device opened, program built
//   - [slog.LevelWarn]: platforms that failed to enumerate
//
// Example:
//
//	gpustream.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	host.SetLogger(l)
	wgpu.SetLogger(l)
}

// Logger returns the current logger used by gpustream.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
