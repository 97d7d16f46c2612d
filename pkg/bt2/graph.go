package bt2

import (
	"context"
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// RunStatus is the successful outcome of Graph.RunOnce.
type RunStatus int

const (
	RunOK RunStatus = iota
	RunTryAgain
	RunEnd
)

func (s RunStatus) String() string {
	switch s {
	case RunOK:
		return "ok"
	case RunTryAgain:
		return "try-again"
	case RunEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Graph is an owned trace processing graph.
type Graph struct {
	ref own.Ref
	log logging.Logger
}

// NewGraph creates an empty graph using message interchange protocol 0.
func (lib *Library) NewGraph() (*Graph, error) {
	const op = "graph.create"
	api, err := lib.backend(op)
	if err != nil {
		return nil, err
	}
	p := api.GraphCreate(0)
	if p == nil {
		return nil, createFailed(op)
	}
	g := &Graph{ref: own.Take(api, backend.KindGraph, p), log: lib.Logger()}
	runtime.SetFinalizer(g, (*Graph).Close)
	return g, nil
}

func (g *Graph) handle() *own.Ref {
	if g == nil {
		return nil
	}
	return &g.ref
}

// Close releases the graph's reference. Components, ports and Go sinks
// living in the graph are finalized by the library once nothing else holds
// the graph.
func (g *Graph) Close() error {
	if g == nil {
		return nil
	}
	if g.ref.Release() {
		runtime.SetFinalizer(g, nil)
	}
	return nil
}

type componentArgs struct {
	graph  backend.Ptr
	class  backend.Ptr
	params backend.Ptr
}

func (g *Graph) componentArgs(op string, cls *ComponentClass, want ComponentClassType, name string, params *Value, lvl LoggingLevel) (backend.API, componentArgs, error) {
	var a componentArgs
	api, gp, err := use(op, g.handle())
	if err != nil {
		return nil, a, err
	}
	a.graph = gp
	if a.class, err = arg(op, "component class", cls.handle()); err != nil {
		return nil, a, err
	}
	if cls.typ != want {
		return nil, a, invalidArg(op, "component class is a "+cls.typ.String()+" class, want "+want.String())
	}
	if err := CheckName(op, "component name", name); err != nil {
		return nil, a, err
	}
	if params != nil {
		if a.params, err = arg(op, "params", params.handle()); err != nil {
			return nil, a, err
		}
	}
	if err := CheckLoggingLevel(op, lvl); err != nil {
		return nil, a, err
	}
	return api, a, nil
}

func (g *Graph) added(api backend.API, op string, p backend.Ptr, st backend.Status, name string) (*Component, error) {
	if st != backend.StatusOK {
		return nil, fail(api, op, st)
	}
	if p == nil {
		return nil, borrowFailed(op)
	}
	g.log.Debug(context.Background(), "added component", "name", name)
	return newComponent(api, p, g.handle()), nil
}

// checkMethods matches Go methods against the class: classes created in Go
// need them, plugin classes must not get any.
func checkMethods(op string, cls *ComponentClass, name string, given bool) error {
	switch {
	case cls.goMethods && !given:
		return invalidArg(op, "component class "+name+" needs Go "+cls.typ.String()+" methods")
	case !cls.goMethods && given:
		return invalidArg(op, "Go "+cls.typ.String()+" methods given for a plugin component class")
	}
	return nil
}

// AddSourceComponent instantiates cls as a source named name. params may be
// nil. When cls was created with NewSourceComponentClass, source implements
// its methods; for plugin classes source must be nil. Source.Initialize runs
// before the call returns. The returned component is borrowed from the
// graph.
func (g *Graph) AddSourceComponent(cls *ComponentClass, name string, params *Value, source Source, lvl LoggingLevel) (*Component, error) {
	const op = "graph.add_source_component"
	api, a, err := g.componentArgs(op, cls, ComponentClassSource, name, params, lvl)
	if err != nil {
		return nil, err
	}
	if err := checkMethods(op, cls, name, source != nil); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(params)
	defer runtime.KeepAlive(cls)
	var m backend.SourceMethods
	if source != nil {
		m = newSourceAdapter(api, source, g.log.With("component", name))
	}
	p, st := api.GraphAddSourceComponent(a.graph, a.class, name, a.params, m, lvl.native())
	return g.added(api, op, p, st, name)
}

// AddFilterComponent instantiates cls as a filter named name. params may be
// nil.
func (g *Graph) AddFilterComponent(cls *ComponentClass, name string, params *Value, lvl LoggingLevel) (*Component, error) {
	const op = "graph.add_filter_component"
	api, a, err := g.componentArgs(op, cls, ComponentClassFilter, name, params, lvl)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(params)
	defer runtime.KeepAlive(cls)
	p, st := api.GraphAddFilterComponent(a.graph, a.class, name, a.params, lvl.native())
	return g.added(api, op, p, st, name)
}

// AddSinkComponent instantiates cls as a sink named name. When cls was
// created with NewSinkComponentClass, sink implements its methods; for
// plugin classes sink must be nil. Sink.Initialize runs before the call
// returns.
func (g *Graph) AddSinkComponent(cls *ComponentClass, name string, params *Value, sink Sink, lvl LoggingLevel) (*Component, error) {
	const op = "graph.add_sink_component"
	api, a, err := g.componentArgs(op, cls, ComponentClassSink, name, params, lvl)
	if err != nil {
		return nil, err
	}
	if err := checkMethods(op, cls, name, sink != nil); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(params)
	defer runtime.KeepAlive(cls)
	var m backend.SinkMethods
	if sink != nil {
		m = &sinkAdapter{api: api, sink: sink, name: name, log: g.log.With("component", name)}
	}
	p, st := api.GraphAddSinkComponent(a.graph, a.class, name, a.params, m, lvl.native())
	return g.added(api, op, p, st, name)
}

// ConnectPorts connects an output port to an input port.
func (g *Graph) ConnectPorts(out, in *Port) error {
	const op = "graph.connect_ports"
	api, gp, err := use(op, g.handle())
	if err != nil {
		return err
	}
	outp, err := arg(op, "output port", out.handle())
	if err != nil {
		return err
	}
	ip, err := arg(op, "input port", in.handle())
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(g)
	defer runtime.KeepAlive(out)
	defer runtime.KeepAlive(in)
	if st := api.GraphConnectPorts(gp, outp, ip); st != backend.StatusOK {
		return fail(api, op, st)
	}
	return nil
}

// RunOnce makes every sink consume once. AGAIN and END are reported as
// RunTryAgain and RunEnd; every other failure is an error.
func (g *Graph) RunOnce() (RunStatus, error) {
	const op = "graph.run_once"
	api, gp, err := use(op, g.handle())
	if err != nil {
		return RunOK, err
	}
	defer runtime.KeepAlive(g)
	switch st := api.GraphRunOnce(gp); st {
	case backend.StatusOK:
		return RunOK, nil
	case backend.StatusAgain:
		return RunTryAgain, nil
	case backend.StatusEnd:
		return RunEnd, nil
	default:
		return RunOK, fail(api, op, st)
	}
}
