// Package log builds the logger the bt2-go command hands to the bindings.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// Options configures the logger.
type Options struct {
	// Backend is slog (the default) or zap.
	Backend string
	// JSONFormat uses JSON output instead of text.
	JSONFormat bool
	// Verbose enables debug output; otherwise only warnings and errors
	// are written.
	Verbose bool
	// Stderr is the destination, os.Stderr when nil.
	Stderr io.Writer
}

// Init builds the logger. The slog backend also becomes slog's default.
// The returned sync function flushes buffered output.
func Init(opts Options) (logging.Logger, func(), error) {
	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	switch opts.Backend {
	case "", "slog":
		return initSlog(w, opts), func() {}, nil
	case "zap":
		z := initZap(w, opts)
		return logging.NewZap(z), func() { _ = z.Sync() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q (want slog or zap)", opts.Backend)
	}
}

func initSlog(w io.Writer, opts Options) logging.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.JSONFormat {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logging.New(logger)
}

func initZap(w io.Writer, opts Options) *zap.Logger {
	level := zapcore.WarnLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}
