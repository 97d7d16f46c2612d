package bt2

import (
	"context"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// Library represents the opened libbabeltrace2 bindings. Every wrapper is
// created through it. A Library and the wrappers it creates are not safe for
// concurrent use: libbabeltrace2 requires callers to serialize access to a
// graph and to the objects reachable from it.
type Library struct {
	cfg    Config
	api    backend.API
	log    logging.Logger
	closed bool
}

// Open prepares the bindings and applies cfg.LogLevel globally.
func Open(cfg Config) (*Library, error) {
	if err := CheckLoggingLevel("open", cfg.LogLevel); err != nil {
		return nil, err
	}
	api := cfg.Backend
	if api == nil {
		a, err := backend.New()
		if err != nil {
			return nil, RemapError(err)
		}
		api = a
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New(nil)
	}

	api.SetGlobalLoggingLevel(cfg.LogLevel.native())
	log.Debug(context.Background(), "opened libbabeltrace2",
		"version", api.Version(), "log_level", cfg.LogLevel.String())
	return &Library{cfg: cfg, api: api, log: log}, nil
}

// Close marks the library closed; wrappers created earlier stay valid until
// their own Close. The method is idempotent, returning ErrLibraryClosed when
// called twice.
func (lib *Library) Close() error {
	if lib == nil {
		return nil
	}
	if lib.closed {
		return ErrLibraryClosed
	}
	lib.closed = true
	return nil
}

// Backend returns the raw bindings. It is exported for the bt2 subpackages.
func (lib *Library) Backend() (backend.API, error) {
	return lib.backend("backend")
}

func (lib *Library) backend(op string) (backend.API, error) {
	if lib == nil {
		return nil, invalidArg(op, "nil library")
	}
	if lib.closed {
		return nil, &Error{Op: op, Kind: KindInvalidArgument, Err: ErrLibraryClosed}
	}
	return lib.api, nil
}

// Logger returns the logger configured for the library.
func (lib *Library) Logger() logging.Logger {
	if lib == nil || lib.log == nil {
		return logging.Nop()
	}
	return lib.log
}

// LogLevel returns the logging level the library was opened with.
func (lib *Library) LogLevel() LoggingLevel {
	if lib == nil {
		return LoggingNone
	}
	return lib.cfg.LogLevel
}
