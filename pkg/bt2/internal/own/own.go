// Package own tracks who is responsible for releasing a libbabeltrace2
// handle. An owned Ref performed an acquisition and releases it exactly once;
// a borrowed Ref never releases and is only valid while its parent is.
package own

import "github.com/tracewire/bt2-go/pkg/bt2/internal/backend"

// Mode is the ownership mode of a Ref.
type Mode int

const (
	Borrowed Mode = iota
	Owned
)

func (m Mode) String() string {
	if m == Owned {
		return "owned"
	}
	return "borrowed"
}

// Ref is a handle together with its release obligation. The zero value is an
// empty, already released reference.
type Ref struct {
	api    backend.API
	kind   backend.Kind
	ptr    backend.Ptr
	mode   Mode
	parent *Ref
}

// Take wraps a handle the caller just acquired.
func Take(api backend.API, kind backend.Kind, p backend.Ptr) Ref {
	return Ref{api: api, kind: kind, ptr: p, mode: Owned}
}

// Borrow wraps a handle that stays valid while parent is. The parent's
// wrapper stays reachable through the pointer. A nil parent means the handle
// outlives every wrapper, like the null value or a component inside its own
// callbacks.
func Borrow(api backend.API, kind backend.Kind, p backend.Ptr, parent *Ref) Ref {
	return Ref{api: api, kind: kind, ptr: p, mode: Borrowed, parent: parent}
}

func (r *Ref) API() backend.API   { return r.api }
func (r *Ref) Kind() backend.Kind { return r.kind }
func (r *Ref) Mode() Mode         { return r.mode }
func (r *Ref) Parent() *Ref       { return r.parent }

// Ptr returns the raw handle, nil once released.
func (r *Ref) Ptr() backend.Ptr {
	if r == nil {
		return nil
	}
	return r.ptr
}

// Valid reports whether the reference still designates a live handle. A
// borrowed reference dies with the first released ancestor.
func (r *Ref) Valid() bool {
	for ; r != nil; r = r.parent {
		if r.ptr == nil || r.api == nil {
			return false
		}
		if r.parent == nil {
			return true
		}
	}
	return false
}

// Release drops the reference. Owned handles are put exactly once no matter
// how many times Release is called. It reports whether a put happened.
func (r *Ref) Release() bool {
	if r == nil || r.ptr == nil {
		return false
	}
	p := r.ptr
	r.ptr = nil
	r.parent = nil
	if r.mode != Owned {
		return false
	}
	r.api.PutRef(r.kind, p)
	return true
}

// Transfer hands an owned handle to the library, which takes over its
// reference. The Ref is empty afterwards and Release becomes a no-op.
// Borrowed and released references transfer nothing.
func (r *Ref) Transfer() (backend.Ptr, bool) {
	if r == nil || r.ptr == nil || r.mode != Owned {
		return nil, false
	}
	p := r.ptr
	r.ptr = nil
	r.parent = nil
	return p, true
}

// Share acquires a new reference on the same handle. It fails for released
// references and for exclusively owned kinds.
func (r *Ref) Share() (Ref, bool) {
	if !r.Valid() || !r.kind.Shared() {
		return Ref{}, false
	}
	r.api.GetRef(r.kind, r.ptr)
	return Take(r.api, r.kind, r.ptr), true
}

// Scope releases a group of references in reverse acquisition order unless it
// is disarmed. Constructors that acquire several handles defer Release and
// call Keep once everything succeeded.
type Scope struct {
	refs []*Ref
	kept bool
}

// Track registers r for release.
func (s *Scope) Track(r *Ref) {
	s.refs = append(s.refs, r)
}

// Keep disarms the scope.
func (s *Scope) Keep() {
	s.kept = true
}

// Release puts every tracked reference unless Keep was called.
func (s *Scope) Release() {
	if s.kept {
		return
	}
	for i := len(s.refs) - 1; i >= 0; i-- {
		s.refs[i].Release()
	}
	s.refs = nil
}
