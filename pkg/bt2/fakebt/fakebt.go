// Package fakebt simulates libbabeltrace2 in memory. It implements
// backend.API with real reference counting so that tests can observe every
// acquisition and release the binding performs, the order of library calls,
// and any use of a handle after its owner dropped it.
//
// The simulation knows the plugins the binding relies on: ctf (fs source,
// lttng-live, fs sink), utils (muxer, dummy), and Go sink and source
// classes. Traces are registered as fixtures keyed by the input path or URL
// a source receives. The fs sink does not touch the file system: it records
// what a Go source emitted as trace fixtures, available through Written and
// readable again by the fs source under the same path.
//
// Library is safe for use by multiple goroutines, but component callbacks
// are always invoked without the internal lock held.
package fakebt

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// kindInternal marks objects that only ever circulate as borrowed handles
// (ports, events, fields, clock snapshots).
const kindInternal backend.Kind = -1

type object struct {
	kind     backend.Kind
	refs     int
	dead     bool
	data     any
	children []*object
	builtin  bool
	// holds are the internal references dropped when the object dies.
	holds []*object
}

type failure struct {
	status backend.Status
	times  int
}

// Library is the simulated library. The zero value is not usable; call New.
type Library struct {
	mu sync.Mutex

	objs       map[backend.Ptr]*object
	acquired   map[backend.Kind]int
	released   map[backend.Kind]int
	violations []string
	calls      []string
	failures   map[string]*failure

	level     backend.LoggingLevel
	plugins   map[string]*object
	traces    map[string]*Trace
	written   map[string]*Trace
	batchSize int
	null      *object
}

var _ backend.API = (*Library)(nil)

// New returns a simulated library with the ctf and utils plugins installed.
func New() *Library {
	l := &Library{
		objs:      make(map[backend.Ptr]*object),
		acquired:  make(map[backend.Kind]int),
		released:  make(map[backend.Kind]int),
		failures:  make(map[string]*failure),
		level:     backend.LoggingNone,
		plugins:   make(map[string]*object),
		traces:    make(map[string]*Trace),
		written:   make(map[string]*Trace),
		batchSize: 8,
	}
	l.null = l.alloc(backend.KindValue, &value{typ: backend.ValueNull})
	l.null.builtin = true
	l.installPlugins()
	return l
}

// SetBatchSize bounds how many messages a single MessageIteratorNext returns.
func (l *Library) SetBatchSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > 0 {
		l.batchSize = n
	}
}

// AddTrace registers a trace fixture for a ctf.fs input path or an
// lttng-live URL.
func (l *Library) AddTrace(input string, t *Trace) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traces[input] = t
}

// Written returns the trace the fs sink wrote under path.
func (l *Library) Written(path string) (*Trace, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.written[path]
	return t, ok
}

// Fail makes the next call to op fail with st. Calls that return a handle
// return nil instead.
func (l *Library) Fail(op string, st backend.Status) {
	l.FailTimes(op, st, 1)
}

// FailTimes is Fail for n consecutive calls.
func (l *Library) FailTimes(op string, st backend.Status, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = &failure{status: st, times: n}
}

// Calls returns the names of the API methods invoked so far.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// CallCount returns len(Calls()).
func (l *Library) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// Acquired returns how many references of kind k were handed to the caller.
func (l *Library) Acquired(k backend.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired[k]
}

// Released returns how many references of kind k the caller put back.
func (l *Library) Released(k backend.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released[k]
}

// Outstanding returns the references handed out and not yet released, per
// kind. An empty map means every acquisition was balanced.
func (l *Library) Outstanding() map[backend.Kind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[backend.Kind]int)
	for k, n := range l.acquired {
		if d := n - l.released[k]; d != 0 {
			out[k] = d
		}
	}
	return out
}

// Violations lists misuse detected so far: double releases, use of dead
// handles and releases of borrowed-only objects.
func (l *Library) Violations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.violations...)
}

func (l *Library) violate(format string, args ...any) {
	l.violations = append(l.violations, fmt.Sprintf(format, args...))
}

// enter records a call and reports an injected failure for it, if any.
func (l *Library) enter(op string) (backend.Status, bool) {
	l.calls = append(l.calls, op)
	f, ok := l.failures[op]
	if !ok {
		return backend.StatusOK, false
	}
	f.times--
	if f.times <= 0 {
		delete(l.failures, op)
	}
	return f.status, true
}

func (l *Library) alloc(kind backend.Kind, data any) *object {
	o := &object{kind: kind, refs: 1, data: data}
	l.objs[ptrOf(o)] = o
	return o
}

// give allocates an object whose only reference goes to the caller.
func (l *Library) give(kind backend.Kind, data any) *object {
	o := l.alloc(kind, data)
	l.acquired[kind]++
	return o
}

func ptrOf(o *object) backend.Ptr {
	if o == nil {
		return nil
	}
	return backend.Ptr(unsafe.Pointer(o))
}

// lookup resolves a handle, recording a violation for unknown or dead ones.
func (l *Library) lookup(op string, p backend.Ptr) *object {
	o, ok := l.objs[p]
	if !ok {
		l.violate("%s: unknown handle %p", op, p)
		return nil
	}
	if o.dead {
		l.violate("%s: use of released %s handle", op, kindName(o.kind))
		return nil
	}
	return o
}

func kindName(k backend.Kind) string {
	if k == kindInternal {
		return "borrowed-only"
	}
	return k.String()
}

// data resolves a handle to its payload of type T.
func data[T any](l *Library, op string, p backend.Ptr) T {
	var zero T
	o := l.lookup(op, p)
	if o == nil {
		return zero
	}
	d, ok := o.data.(T)
	if !ok {
		l.violate("%s: handle of unexpected type %T", op, o.data)
		return zero
	}
	return d
}

// child links a borrowed object to its parent so that it dies with it.
func child(parent, c *object) *object {
	parent.children = append(parent.children, c)
	return c
}

// hold takes an internal reference.
func (l *Library) hold(o *object) {
	if o != nil {
		o.refs++
	}
}

// keep makes o hold an internal reference on each of deps until it dies.
func (l *Library) keep(o *object, deps ...*object) {
	for _, d := range deps {
		if d != nil {
			d.refs++
			o.holds = append(o.holds, d)
		}
	}
}

// drop puts an internal reference and returns the components that must be
// finalized once the lock is released.
func (l *Library) drop(o *object) []finalizeCall {
	if o == nil || o.dead {
		return nil
	}
	o.refs--
	if o.refs > 0 {
		return nil
	}
	return l.destroy(o)
}

// finalizeCall is a Go component whose Finalize method is pending.
type finalizeCall struct {
	sink   backend.SinkMethods
	source backend.SourceMethods
	self   backend.Ptr
}

func (l *Library) destroy(o *object) []finalizeCall {
	var pending []finalizeCall
	o.dead = true
	switch d := o.data.(type) {
	case *graph:
		for _, c := range d.components {
			comp := c.data.(*component)
			if comp.sink != nil || comp.source != nil {
				pending = append(pending, finalizeCall{sink: comp.sink, source: comp.source, self: ptrOf(c)})
			}
			pending = append(pending, l.drop(comp.params)...)
			pending = append(pending, l.drop(comp.class)...)
			c.refs = 0
			pending = append(pending, l.destroy(c)...)
		}
	case *value:
		for _, e := range d.elems {
			pending = append(pending, l.drop(e)...)
		}
		for _, k := range d.keys {
			pending = append(pending, l.drop(d.entries[k])...)
		}
	case *decoder:
		pending = append(pending, l.drop(d.traceClass)...)
	case *trace:
		pending = append(pending, l.drop(d.class)...)
	}
	for _, h := range o.holds {
		pending = append(pending, l.drop(h)...)
	}
	o.holds = nil
	for _, c := range o.children {
		if c.kind == kindInternal {
			c.dead = true
			l.killChildren(c)
		}
	}
	return pending
}

func (l *Library) killChildren(o *object) {
	for _, c := range o.children {
		c.dead = true
		l.killChildren(c)
	}
}

// owner returns the object whose count a reference on o really holds:
// components share the count of their graph.
func owner(o *object) *object {
	if c, ok := o.data.(*component); ok && c.graph != nil {
		return c.graph
	}
	return o
}

func finalize(calls []finalizeCall) {
	for _, c := range calls {
		if c.sink != nil {
			c.sink.Finalize(c.self)
		}
		if c.source != nil {
			c.source.Finalize(c.self)
		}
	}
}

// Version implements backend.API.
func (l *Library) Version() string { return "2.0.4-fake" }

// GetRef implements backend.API.
func (l *Library) GetRef(k backend.Kind, p backend.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("GetRef")
	o := l.lookup("GetRef", p)
	if o == nil {
		return
	}
	if o.kind != k {
		l.violate("GetRef: %s handle acquired as %s", kindName(o.kind), k)
	}
	if !k.Shared() {
		l.violate("GetRef: %s is not reference counted", k)
		return
	}
	owner(o).refs++
	l.acquired[k]++
}

// PutRef implements backend.API.
func (l *Library) PutRef(k backend.Kind, p backend.Ptr) {
	l.mu.Lock()
	l.enter("PutRef")
	o, ok := l.objs[p]
	switch {
	case !ok:
		l.violate("PutRef: unknown %s handle", k)
		l.mu.Unlock()
		return
	case o.dead:
		l.violate("PutRef: double release of %s handle", k)
		l.mu.Unlock()
		return
	case o.kind == kindInternal:
		l.violate("PutRef: release of borrowed-only handle as %s", k)
		l.mu.Unlock()
		return
	case o.kind != k:
		l.violate("PutRef: %s handle released as %s", kindName(o.kind), k)
	}
	l.released[k]++
	pending := l.drop(owner(o))
	l.mu.Unlock()
	finalize(pending)
}

// CurrentThreadClearError implements backend.API.
func (l *Library) CurrentThreadClearError() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("CurrentThreadClearError")
}

// SetGlobalLoggingLevel implements backend.API.
func (l *Library) SetGlobalLoggingLevel(lvl backend.LoggingLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("SetGlobalLoggingLevel")
	l.level = lvl
}

// GlobalLoggingLevel implements backend.API.
func (l *Library) GlobalLoggingLevel() backend.LoggingLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("GlobalLoggingLevel")
	return l.level
}

// Live returns the number of objects the simulation still considers alive,
// grouped by kind. Built-in plugins and borrowed-only objects are not counted.
func (l *Library) Live() map[backend.Kind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[backend.Kind]int)
	for _, o := range l.objs {
		if !o.dead && !o.builtin && o.kind != kindInternal {
			out[o.kind]++
		}
	}
	return out
}
