package bt2

import (
	"fmt"
	"maps"
	"runtime"

	"github.com/google/uuid"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// TraceProperties describes a trace. Env values are int64 or string.
type TraceProperties struct {
	Name string
	UUID uuid.NullUUID
	Env  map[string]any
}

// Equal reports whether p and o hold the same name, UUID and environment.
func (p TraceProperties) Equal(o TraceProperties) bool {
	return p.Name == o.Name && p.UUID == o.UUID && maps.Equal(p.Env, o.Env)
}

// Trace is a trace borrowed from a stream.
type Trace struct {
	ref own.Ref
}

func newTrace(api backend.API, p backend.Ptr, parent *own.Ref) *Trace {
	return &Trace{ref: own.Borrow(api, backend.KindTrace, p, parent)}
}

func (t *Trace) handle() *own.Ref {
	if t == nil {
		return nil
	}
	return &t.ref
}

// Acquire returns an owned reference to the trace.
func (t *Trace) Acquire() (*Trace, error) {
	const op = "trace.get_ref"
	if _, _, err := use(op, t.handle()); err != nil {
		return nil, err
	}
	ref, ok := t.ref.Share()
	if !ok {
		return nil, unsupported(op, "handle is not reference counted")
	}
	out := &Trace{ref: ref}
	runtime.SetFinalizer(out, (*Trace).Close)
	return out, nil
}

// Close releases the trace if the wrapper owns it.
func (t *Trace) Close() error {
	if t == nil {
		return nil
	}
	if t.ref.Release() {
		runtime.SetFinalizer(t, nil)
	}
	return nil
}

// Name returns the trace's name and whether it has one.
func (t *Trace) Name() (string, bool, error) {
	api, p, err := use("trace.get_name", t.handle())
	if err != nil {
		return "", false, err
	}
	defer runtime.KeepAlive(t)
	name, ok := api.TraceName(p)
	return name, ok, nil
}

// UUID returns the trace's UUID; Valid is false when it has none.
func (t *Trace) UUID() (uuid.NullUUID, error) {
	api, p, err := use("trace.get_uuid", t.handle())
	if err != nil {
		return uuid.NullUUID{}, err
	}
	defer runtime.KeepAlive(t)
	b, ok := api.TraceUUID(p)
	if !ok {
		return uuid.NullUUID{}, nil
	}
	return nullUUID(b), nil
}

// Environment copies the trace's environment. Entries holding anything
// other than a signed integer or a string fail with KindUnsupported.
func (t *Trace) Environment() (map[string]any, error) {
	const op = "trace.environment"
	api, p, err := use(op, t.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(t)
	n := api.TraceEnvironmentEntryCount(p)
	env := make(map[string]any, n)
	for i := range n {
		name, v := api.TraceEnvironmentEntryByIndex(p, i)
		if v == nil {
			return nil, borrowFailed(op)
		}
		switch typ := api.ValueType(v); typ {
		case backend.ValueSignedInteger:
			env[name] = api.ValueIntegerSignedGet(v)
		case backend.ValueString:
			env[name] = api.ValueStringGet(v)
		default:
			return nil, unsupported(op, fmt.Sprintf("environment entry %q has type %s", name, ValueType(typ)))
		}
	}
	return env, nil
}

// Properties reads the trace's name, UUID and environment.
func (t *Trace) Properties() (TraceProperties, error) {
	var props TraceProperties
	var err error
	if props.Name, _, err = t.Name(); err != nil {
		return props, err
	}
	if props.UUID, err = t.UUID(); err != nil {
		return props, err
	}
	props.Env, err = t.Environment()
	return props, err
}
