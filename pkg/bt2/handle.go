package bt2

import (
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// use checks a wrapper's reference before a library call.
func use(op string, r *own.Ref) (backend.API, backend.Ptr, error) {
	if r == nil {
		return nil, nil, invalidArg(op, "nil handle")
	}
	if !r.Valid() {
		return nil, nil, closedErr(op)
	}
	return r.API(), r.Ptr(), nil
}

// arg checks a handle passed as an argument.
func arg(op, what string, r *own.Ref) (backend.Ptr, error) {
	if r == nil {
		return nil, invalidArg(op, "nil "+what)
	}
	if !r.Valid() {
		return nil, &Error{Op: op, Kind: KindInvalidArgument, Detail: what, Err: ErrClosed}
	}
	return r.Ptr(), nil
}

// fail converts a failed status and clears the library's error of the
// current thread, which the returned error replaces.
func fail(api backend.API, op string, st backend.Status) error {
	api.CurrentThreadClearError()
	return RemapStatus(op, st)
}
