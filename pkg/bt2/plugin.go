package bt2

import (
	"context"
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// FindOptions selects where FindPlugin looks.
type FindOptions struct {
	StdEnvVar       bool
	UserDir         bool
	SystemDir       bool
	Static          bool
	FailOnLoadError bool
}

// StaticOnly looks at the plugins built into the library only.
func StaticOnly() FindOptions {
	return FindOptions{Static: true}
}

// Plugin is an owned libbabeltrace2 plugin.
type Plugin struct {
	ref own.Ref
}

// FindPlugin loads the plugin named name.
func (lib *Library) FindPlugin(name string, opts FindOptions) (*Plugin, error) {
	const op = "plugin.find"
	api, err := lib.backend(op)
	if err != nil {
		return nil, err
	}
	if err := CheckName(op, "plugin name", name); err != nil {
		return nil, err
	}
	p, st := api.PluginFind(name, backend.PluginFindOptions{
		FindInStdEnvVar: opts.StdEnvVar,
		FindInUserDir:   opts.UserDir,
		FindInSysDir:    opts.SystemDir,
		FindInStatic:    opts.Static,
		FailOnLoadError: opts.FailOnLoadError,
	})
	if st != backend.StatusOK {
		err := fail(api, op, st)
		if e, ok := err.(*Error); ok {
			e.Detail = "plugin " + name
		}
		return nil, err
	}
	if p == nil {
		return nil, borrowFailed(op)
	}
	lib.log.Debug(context.Background(), "loaded plugin", "name", name)
	pl := &Plugin{ref: own.Take(api, backend.KindPlugin, p)}
	runtime.SetFinalizer(pl, (*Plugin).Close)
	return pl, nil
}

func (pl *Plugin) handle() *own.Ref {
	if pl == nil {
		return nil
	}
	return &pl.ref
}

// Close releases the plugin's reference.
func (pl *Plugin) Close() error {
	if pl == nil {
		return nil
	}
	if pl.ref.Release() {
		runtime.SetFinalizer(pl, nil)
	}
	return nil
}

// Name returns the plugin's name.
func (pl *Plugin) Name() (string, error) {
	api, p, err := use("plugin.name", pl.handle())
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(pl)
	return api.PluginName(p), nil
}

func (pl *Plugin) class(op string, typ ComponentClassType, name string) (*ComponentClass, error) {
	api, p, err := use(op, pl.handle())
	if err != nil {
		return nil, err
	}
	if err := CheckName(op, "component class name", name); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(pl)
	var c backend.Ptr
	switch typ {
	case ComponentClassSource:
		c = api.PluginBorrowSourceComponentClassByName(p, name)
	case ComponentClassFilter:
		c = api.PluginBorrowFilterComponentClassByName(p, name)
	default:
		c = api.PluginBorrowSinkComponentClassByName(p, name)
	}
	if c == nil {
		e := borrowFailed(op).(*Error)
		e.Detail = "no " + typ.String() + " component class named " + name
		return nil, e
	}
	return &ComponentClass{ref: own.Borrow(api, backend.KindComponentClass, c, pl.handle()), typ: typ}, nil
}

// SourceComponentClass borrows the source component class named name.
func (pl *Plugin) SourceComponentClass(name string) (*ComponentClass, error) {
	return pl.class("plugin.borrow_source_component_class", ComponentClassSource, name)
}

// FilterComponentClass borrows the filter component class named name.
func (pl *Plugin) FilterComponentClass(name string) (*ComponentClass, error) {
	return pl.class("plugin.borrow_filter_component_class", ComponentClassFilter, name)
}

// SinkComponentClass borrows the sink component class named name.
func (pl *Plugin) SinkComponentClass(name string) (*ComponentClass, error) {
	return pl.class("plugin.borrow_sink_component_class", ComponentClassSink, name)
}

// ComponentClassType is the type of a component class.
type ComponentClassType uint64

const (
	ComponentClassSource = ComponentClassType(backend.ComponentClassSource)
	ComponentClassFilter = ComponentClassType(backend.ComponentClassFilter)
	ComponentClassSink   = ComponentClassType(backend.ComponentClassSink)
)

func (t ComponentClassType) String() string {
	switch t {
	case ComponentClassSource:
		return "source"
	case ComponentClassFilter:
		return "filter"
	case ComponentClassSink:
		return "sink"
	default:
		return "unknown"
	}
}

// ComponentClass is a component class, borrowed from a plugin or owned when
// created with NewSinkComponentClass or NewSourceComponentClass.
type ComponentClass struct {
	ref own.Ref
	typ ComponentClassType
	// goMethods is set for classes whose methods are implemented in Go.
	goMethods bool
}

func (lib *Library) newGoClass(op string, typ ComponentClassType, name string, create func(backend.API) backend.Ptr) (*ComponentClass, error) {
	api, err := lib.backend(op)
	if err != nil {
		return nil, err
	}
	if err := CheckName(op, "component class name", name); err != nil {
		return nil, err
	}
	p := create(api)
	if p == nil {
		return nil, createFailed(op)
	}
	c := &ComponentClass{ref: own.Take(api, backend.KindComponentClass, p), typ: typ, goMethods: true}
	runtime.SetFinalizer(c, (*ComponentClass).Close)
	return c, nil
}

// NewSinkComponentClass creates a sink component class whose methods are
// implemented in Go by the Sink given to Graph.AddSinkComponent.
func (lib *Library) NewSinkComponentClass(name string) (*ComponentClass, error) {
	return lib.newGoClass("component_class.sink_create", ComponentClassSink, name, func(api backend.API) backend.Ptr {
		return api.ComponentClassSinkCreate(name)
	})
}

// NewSourceComponentClass creates a source component class whose methods
// are implemented in Go by the Source given to Graph.AddSourceComponent.
func (lib *Library) NewSourceComponentClass(name string) (*ComponentClass, error) {
	return lib.newGoClass("component_class.source_create", ComponentClassSource, name, func(api backend.API) backend.Ptr {
		return api.ComponentClassSourceCreate(name)
	})
}

func (c *ComponentClass) handle() *own.Ref {
	if c == nil {
		return nil
	}
	return &c.ref
}

// Close releases the class if the wrapper owns it.
func (c *ComponentClass) Close() error {
	if c == nil {
		return nil
	}
	if c.ref.Release() {
		runtime.SetFinalizer(c, nil)
	}
	return nil
}

// Acquire returns an owned wrapper holding its own reference to the class.
func (c *ComponentClass) Acquire() (*ComponentClass, error) {
	const op = "component_class.get_ref"
	if _, _, err := use(op, c.handle()); err != nil {
		return nil, err
	}
	ref, ok := c.ref.Share()
	if !ok {
		return nil, unsupported(op, "handle is not reference counted")
	}
	out := &ComponentClass{ref: ref, typ: c.typ, goMethods: c.goMethods}
	runtime.SetFinalizer(out, (*ComponentClass).Close)
	return out, nil
}

// Name returns the class name.
func (c *ComponentClass) Name() (string, error) {
	api, p, err := use("component_class.name", c.handle())
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(c)
	return api.ComponentClassName(p), nil
}

// Type returns the class type.
func (c *ComponentClass) Type() (ComponentClassType, error) {
	api, p, err := use("component_class.type", c.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(c)
	return ComponentClassType(api.ComponentClassType(p)), nil
}
