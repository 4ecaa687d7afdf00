package vbatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
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

// SetLogger configures the logger for vbatch and its sub-packages.
// By default, vbatch produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior. Artists created with WithLogger keep their own logger.
//
// Log levels used by vbatch:
//   - [slog.LevelDebug]: allocator diagnostics (inserts, removes, resyncs,
//     buffer growth, removal of an unregistered owner)
//   - [slog.LevelInfo]: lifecycle events (device backend selected)
//   - [slog.LevelWarn]: non-fatal issues (resync failure, backend init failure)
//
// Example:
//
//	vbatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Pass the new logger on to live device adapters.
	for _, ls := range propagationTargets() {
		ls.SetLogger(l)
	}
}

// Logger returns the current logger used by vbatch.
// Sub-packages (vbo/, gpu/, backend/) call this to share the same
// logger configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// LoggerSetter is implemented by device adapters that accept a logger.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}

// targets holds the adapters that receive every logger set with SetLogger.
var (
	targetsMu sync.Mutex
	targets   = make(map[LoggerSetter]struct{})
)

// PropagateLogger passes the current logger to target if it implements
// LoggerSetter, and keeps passing every logger set later until
// StopPropagation is called with the same target. Backends call it when
// they create an adapter. target must be comparable, typically a pointer.
func PropagateLogger(target any) {
	ls, ok := target.(LoggerSetter)
	if !ok {
		return
	}
	targetsMu.Lock()
	targets[ls] = struct{}{}
	targetsMu.Unlock()
	ls.SetLogger(Logger())
}

// StopPropagation stops passing loggers to target. Backends call it when
// they release the adapter.
func StopPropagation(target any) {
	ls, ok := target.(LoggerSetter)
	if !ok {
		return
	}
	targetsMu.Lock()
	delete(targets, ls)
	targetsMu.Unlock()
}

func propagationTargets() []LoggerSetter {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	out := make([]LoggerSetter, 0, len(targets))
	for ls := range targets {
		out = append(out, ls)
	}
	return out
}
