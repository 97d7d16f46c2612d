package bt2

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// ErrorKind classifies every failure reported by the wrapper.
type ErrorKind int

const (
	KindInvalidArgument ErrorKind = iota + 1
	KindResourceExhausted
	KindNotFound
	KindUnsupported
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind sentinels; every *Error matches exactly one of them with errors.Is.
var (
	ErrInvalidArgument   = errors.New("bt2: invalid argument")
	ErrResourceExhausted = errors.New("bt2: resource exhausted")
	ErrNotFound          = errors.New("bt2: not found")
	ErrUnsupported       = errors.New("bt2: unsupported")
	ErrFatal             = errors.New("bt2: fatal")
)

var (
	// ErrClosed is wrapped by errors about wrappers used after Close.
	ErrClosed = errors.New("bt2: use of closed handle")

	// ErrLibraryClosed is returned when Close is called twice, or when a
	// closed Library is used.
	ErrLibraryClosed = errors.New("bt2: library already closed")

	// ErrNotBuilt reports that the binary was built without the native
	// bindings (cgo and the babeltrace2 build tag).
	ErrNotBuilt = backend.ErrNotBuilt
)

// Pipeline failures.
var (
	ErrCtfSourceRequiresInputs = &Error{
		Op: "ctf.fs.params", Kind: KindInvalidArgument,
		Detail: "at least one CTF input directory is required",
	}
	ErrCtfSinkRequiresPath = &Error{
		Op: "ctf.fs_sink.params", Kind: KindInvalidArgument,
		Detail: "an output directory is required",
	}
	ErrCtfSourceMissingOutputPorts = &Error{
		Op: "pipeline.connect", Kind: KindNotFound,
		Detail: "the CTF source has no output port, check that the input contains at least one stream",
	}
	ErrProxySinkMissingInputPort = &Error{
		Op: "pipeline.connect", Kind: KindNotFound,
		Detail: "the proxy sink has no input port",
	}
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindNotFound:
		return ErrNotFound
	case KindUnsupported:
		return ErrUnsupported
	default:
		return ErrFatal
	}
}

// Error is the typed failure returned by every operation. Status holds the
// raw library status when the failure came from the library, zero otherwise.
type Error struct {
	Op     string
	Kind   ErrorKind
	Status int
	Detail string
	Err    error

	status string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("bt2: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.status != "" {
		fmt.Fprintf(&b, " (status %s)", e.status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewError builds an *Error. It is exported for the bt2 subpackages.
func NewError(op string, kind ErrorKind, detail string) *Error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}

// KindOf returns the kind of err, or zero when err is nil or does not come
// from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusKind maps a library status to an error kind. The mapping is total:
// codes the library does not define are fatal. OK maps to zero.
func StatusKind(st backend.Status) ErrorKind {
	switch st {
	case backend.StatusOK:
		return 0
	case backend.StatusNotFound, backend.StatusNoMatch:
		return KindNotFound
	case backend.StatusEnd, backend.StatusAgain, backend.StatusInterrupted, backend.StatusUnknownObject:
		return KindUnsupported
	case backend.StatusUserError, backend.StatusOverflowError:
		return KindInvalidArgument
	case backend.StatusMemoryError:
		return KindResourceExhausted
	default:
		return KindFatal
	}
}

// RemapStatus converts a library status into an error, nil for OK.
func RemapStatus(op string, st backend.Status) error {
	k := StatusKind(st)
	if k == 0 {
		return nil
	}
	return &Error{Op: op, Kind: k, Status: int(st), status: st.String()}
}

// DecoderStatusError converts a CTF metadata decoder status, nil for OK.
func DecoderStatusError(op string, st backend.DecoderStatus) error {
	var k ErrorKind
	switch st {
	case backend.DecoderOK:
		return nil
	case backend.DecoderNone:
		k = KindNotFound
	case backend.DecoderIncomplete:
		k = KindUnsupported
	case backend.DecoderInvalVersion:
		k = KindInvalidArgument
	default:
		k = KindFatal
	}
	return &Error{Op: op, Kind: k, Status: int(st), status: st.String()}
}

// MsgIterStatusError converts a CTF message iterator status, nil for OK.
// EOF and AGAIN are not failures for callers that define them; they reach
// this function only when they are.
func MsgIterStatusError(op string, st backend.MsgIterStatus) error {
	var k ErrorKind
	switch st {
	case backend.MsgIterOK:
		return nil
	case backend.MsgIterEOF, backend.MsgIterAgain:
		k = KindUnsupported
	case backend.MsgIterMemoryError:
		k = KindResourceExhausted
	default:
		k = KindFatal
	}
	return &Error{Op: op, Kind: k, Status: int(st), status: st.String()}
}

// RemapError converts backend errors to public API errors. It is exported
// for the bt2 subpackages.
func RemapError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.Is(err, backend.ErrNotBuilt) || errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindFatal, Err: err}
}

func invalidArg(op, detail string) error {
	return &Error{Op: op, Kind: KindInvalidArgument, Detail: detail}
}

func closedErr(op string) error {
	return &Error{Op: op, Kind: KindInvalidArgument, Err: ErrClosed}
}

// createFailed reports a create call that returned NULL.
func createFailed(op string) error {
	return &Error{Op: op, Kind: KindResourceExhausted, Detail: "library returned NULL"}
}

// borrowFailed reports a borrow or lookup call that returned NULL.
func borrowFailed(op string) error {
	return &Error{Op: op, Kind: KindNotFound, Detail: "library returned NULL"}
}

func unsupported(op, detail string) error {
	return &Error{Op: op, Kind: KindUnsupported, Detail: detail}
}

// CheckName rejects strings the C API cannot carry: empty names and names
// with interior NUL bytes.
func CheckName(op, what, s string) error {
	if s == "" {
		return invalidArg(op, what+" is empty")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return invalidArg(op, what+" contains a NUL byte")
	}
	return nil
}

func checkString(op, what, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return invalidArg(op, what+" contains a NUL byte")
	}
	return nil
}
