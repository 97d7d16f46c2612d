// Package logging provides a minimal logging facade for the bt2 wrapper.
//
// The Logger interface wraps a subset of log/slog with context-aware methods:
//
//	type Logger interface {
//	    Debug(ctx context.Context, msg string, args ...any)
//	    Info(ctx context.Context, msg string, args ...any)
//	    Warn(ctx context.Context, msg string, args ...any)
//	    Error(ctx context.Context, msg string, args ...any)
//	    With(args ...any) Logger
//	}
//
// # Implementations
//
// New binds a *slog.Logger (slog.Default() when nil):
//
//	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})
//	logger := logging.New(slog.New(handler))
//
// NewZap adapts an existing *zap.Logger, for applications that already log
// through zap:
//
//	z, _ := zap.NewDevelopment()
//	logger := logging.NewZap(z)
//
// Nop discards everything and is handy in tests.
//
// # Usage in the wrapper
//
// The bt2 package logs graph construction, plugin loading and sink activity
// at debug level, and failures inside sink callbacks at error level:
//
//	lib, err := bt2.Open(bt2.Config{Logger: logger})
package logging
