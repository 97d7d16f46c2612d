package bt2

import (
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// Config expresses the knobs applied when the library is opened.
type Config struct {
	// LogLevel is applied as the library's global logging level by Open.
	// The zero value disables library logging.
	LogLevel LoggingLevel

	// Logger receives the wrapper's own diagnostics. Nil binds to
	// slog.Default().
	Logger logging.Logger

	// Backend replaces the native bindings. Nil selects them.
	Backend backend.API
}
