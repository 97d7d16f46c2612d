package bt2

import (
	"fmt"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// LoggingLevel is a libbabeltrace2 logging level. The zero value is
// LoggingNone.
type LoggingLevel int

const (
	LoggingNone LoggingLevel = iota
	LoggingTrace
	LoggingDebug
	LoggingInfo
	LoggingWarn
	LoggingError
	LoggingFatal
)

var loggingLevelNames = [...]string{
	LoggingNone:  "none",
	LoggingTrace: "trace",
	LoggingDebug: "debug",
	LoggingInfo:  "info",
	LoggingWarn:  "warn",
	LoggingError: "error",
	LoggingFatal: "fatal",
}

func (l LoggingLevel) String() string {
	if l.valid() {
		return loggingLevelNames[l]
	}
	return fmt.Sprintf("LoggingLevel(%d)", int(l))
}

func (l LoggingLevel) valid() bool {
	return l >= LoggingNone && l <= LoggingFatal
}

// ParseLoggingLevel accepts the names printed by String, case-insensitively,
// plus "warning".
func ParseLoggingLevel(s string) (LoggingLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LoggingWarn, nil
	}
	for i, n := range loggingLevelNames {
		if n == s {
			return LoggingLevel(i), nil
		}
	}
	return LoggingNone, invalidArg("logging.parse", fmt.Sprintf("unknown logging level %q", s))
}

func (l LoggingLevel) native() backend.LoggingLevel {
	switch l {
	case LoggingTrace:
		return backend.LoggingTrace
	case LoggingDebug:
		return backend.LoggingDebug
	case LoggingInfo:
		return backend.LoggingInfo
	case LoggingWarn:
		return backend.LoggingWarning
	case LoggingError:
		return backend.LoggingError
	case LoggingFatal:
		return backend.LoggingFatal
	default:
		return backend.LoggingNone
	}
}

// Native returns the level as the library encodes it. It is exported for the
// bt2 subpackages.
func (l LoggingLevel) Native() backend.LoggingLevel { return l.native() }

func loggingLevelOf(l backend.LoggingLevel) LoggingLevel {
	switch l {
	case backend.LoggingTrace:
		return LoggingTrace
	case backend.LoggingDebug:
		return LoggingDebug
	case backend.LoggingInfo:
		return LoggingInfo
	case backend.LoggingWarning:
		return LoggingWarn
	case backend.LoggingError:
		return LoggingError
	case backend.LoggingFatal:
		return LoggingFatal
	default:
		return LoggingNone
	}
}

// CheckLoggingLevel rejects levels outside the defined range.
func CheckLoggingLevel(op string, l LoggingLevel) error {
	if !l.valid() {
		return invalidArg(op, "invalid logging level "+l.String())
	}
	return nil
}

// SetGlobalLoggingLevel sets the library-wide logging level.
func (lib *Library) SetGlobalLoggingLevel(l LoggingLevel) error {
	const op = "logging.set_global_level"
	api, err := lib.backend(op)
	if err != nil {
		return err
	}
	if err := CheckLoggingLevel(op, l); err != nil {
		return err
	}
	api.SetGlobalLoggingLevel(l.native())
	return nil
}

// GlobalLoggingLevel returns the library-wide logging level.
func (lib *Library) GlobalLoggingLevel() (LoggingLevel, error) {
	api, err := lib.backend("logging.global_level")
	if err != nil {
		return LoggingNone, err
	}
	return loggingLevelOf(api.GlobalLoggingLevel()), nil
}
