package fakebt

import (
	"fmt"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type plugin struct {
	name    string
	sources map[string]*object
	filters map[string]*object
	sinks   map[string]*object
}

type compClass struct {
	name string
	typ  backend.ComponentClassType
	impl string
}

type graph struct {
	components []*object
	names      map[string]bool
	configured bool
}

type component struct {
	graph   *object
	name    string
	class   *object
	cls     *compClass
	params  *object
	sink    backend.SinkMethods
	source  backend.SourceMethods
	writer  *fsWriter
	inputs  []*object
	outputs []*object
	ended   bool
}

type port struct {
	name     string
	typ      backend.PortType
	owner    *object
	peer     *object
	bindings []binding
}

// binding ties a source output port to the streams it delivers.
type binding struct {
	src     *sourceTrace
	streams []uint64
}

type sourceTrace struct {
	fixture *Trace
	name    string
	trace   *object
	streams map[uint64]*object
	missing string
}

const (
	implCTFFs   = "ctf.fs"
	implLive    = "ctf.lttng-live"
	implMuxer   = "utils.muxer"
	implDummy   = "utils.dummy"
	implGoSink  = "go.sink"
	implGoSrc   = "go.source"
	implFsSink  = "ctf.fs-sink"
	nsPerSecond = 1_000_000_000
)

func (l *Library) installPlugins() {
	l.plugins["ctf"] = l.builtinPlugin("ctf", map[string]string{
		"fs":         implCTFFs,
		"lttng-live": implLive,
	}, nil, map[string]string{
		"fs": implFsSink,
	})
	l.plugins["utils"] = l.builtinPlugin("utils", nil, map[string]string{
		"muxer": implMuxer,
	}, map[string]string{
		"dummy": implDummy,
	})
}

func (l *Library) builtinPlugin(name string, sources, filters, sinks map[string]string) *object {
	p := &plugin{
		name:    name,
		sources: make(map[string]*object),
		filters: make(map[string]*object),
		sinks:   make(map[string]*object),
	}
	add := func(dst map[string]*object, typ backend.ComponentClassType, classes map[string]string) {
		for n, impl := range classes {
			o := l.alloc(backend.KindComponentClass, &compClass{name: n, typ: typ, impl: impl})
			o.builtin = true
			dst[n] = o
		}
	}
	add(p.sources, backend.ComponentClassSource, sources)
	add(p.filters, backend.ComponentClassFilter, filters)
	add(p.sinks, backend.ComponentClassSink, sinks)
	o := l.alloc(backend.KindPlugin, p)
	o.builtin = true
	return o
}

// GraphCreate implements backend.API.
func (l *Library) GraphCreate(mipVersion uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("GraphCreate"); fail {
		return nil
	}
	if mipVersion != 0 {
		return nil
	}
	return ptrOf(l.give(backend.KindGraph, &graph{names: make(map[string]bool)}))
}

func (l *Library) addComponent(op string, g, cls backend.Ptr, name string, params backend.Ptr, want backend.ComponentClassType) (*object, backend.Status) {
	if st, fail := l.enter(op); fail {
		return nil, st
	}
	gobj := l.lookup(op, g)
	cobj := l.lookup(op, cls)
	if gobj == nil || cobj == nil {
		return nil, backend.StatusError
	}
	gr, ok1 := gobj.data.(*graph)
	cc, ok2 := cobj.data.(*compClass)
	if !ok1 || !ok2 || cc.typ != want {
		l.violate("%s: wrong handle types", op)
		return nil, backend.StatusError
	}
	if gr.configured || gr.names[name] {
		return nil, backend.StatusError
	}
	var pobj *object
	if params != nil {
		pobj = l.lookup(op, params)
		if pobj == nil {
			return nil, backend.StatusError
		}
		if v, ok := pobj.data.(*value); !ok || v.typ != backend.ValueMap {
			return nil, backend.StatusError
		}
	}

	comp := &component{graph: gobj, name: name, class: cobj, cls: cc, params: pobj}
	c := l.alloc(backend.KindComponent, comp)

	switch cc.impl {
	case implCTFFs:
		if st := l.setupFs(c, comp, pobj); st != backend.StatusOK {
			delete(l.objs, ptrOf(c))
			return nil, st
		}
	case implLive:
		if st := l.setupLive(c, comp, pobj); st != backend.StatusOK {
			delete(l.objs, ptrOf(c))
			return nil, st
		}
	case implFsSink:
		if st := l.setupFsSink(c, comp, pobj); st != backend.StatusOK {
			delete(l.objs, ptrOf(c))
			return nil, st
		}
	case implMuxer:
		comp.inputs = append(comp.inputs, l.newPort(c, "in0", backend.PortInput))
		comp.outputs = append(comp.outputs, l.newPort(c, "out", backend.PortOutput))
	case implDummy:
		comp.inputs = append(comp.inputs, l.newPort(c, "in", backend.PortInput))
	}

	l.hold(cobj)
	l.hold(pobj)
	gr.names[name] = true
	gr.components = append(gr.components, c)
	return c, backend.StatusOK
}

func (l *Library) newPort(owner *object, name string, typ backend.PortType) *object {
	return child(owner, l.alloc(kindInternal, &port{name: name, typ: typ, owner: owner}))
}

// GraphAddSourceComponent implements backend.API. Go source classes need
// m and plugin classes must not get one. Initialize runs before the call
// returns, without the lock held.
func (l *Library) GraphAddSourceComponent(g, cls backend.Ptr, name string, params backend.Ptr, m backend.SourceMethods, lvl backend.LoggingLevel) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	c, st := l.addComponent("GraphAddSourceComponent", g, cls, name, params, backend.ComponentClassSource)
	if st != backend.StatusOK {
		l.mu.Unlock()
		return nil, st
	}
	comp := c.data.(*component)
	if (comp.cls.impl == implGoSrc) != (m != nil) {
		l.violate("GraphAddSourceComponent: source methods do not match class %s", comp.cls.name)
		l.removeComponent(g, c)
		l.mu.Unlock()
		return nil, backend.StatusError
	}
	comp.source = m
	l.mu.Unlock()

	if m == nil {
		return ptrOf(c), backend.StatusOK
	}
	if st := m.Initialize(ptrOf(c)); st != backend.StatusOK {
		l.mu.Lock()
		l.removeComponent(g, c)
		l.mu.Unlock()
		return nil, st
	}
	return ptrOf(c), backend.StatusOK
}

// GraphAddFilterComponent implements backend.API.
func (l *Library) GraphAddFilterComponent(g, cls backend.Ptr, name string, params backend.Ptr, lvl backend.LoggingLevel) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, st := l.addComponent("GraphAddFilterComponent", g, cls, name, params, backend.ComponentClassFilter)
	return ptrOf(c), st
}

// GraphAddSinkComponent implements backend.API. Initialize runs before the
// call returns, without the lock held.
func (l *Library) GraphAddSinkComponent(g, cls backend.Ptr, name string, params backend.Ptr, m backend.SinkMethods, lvl backend.LoggingLevel) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	c, st := l.addComponent("GraphAddSinkComponent", g, cls, name, params, backend.ComponentClassSink)
	if st != backend.StatusOK {
		l.mu.Unlock()
		return nil, st
	}
	comp := c.data.(*component)
	comp.sink = m
	l.mu.Unlock()

	if m == nil {
		return ptrOf(c), backend.StatusOK
	}
	if st := m.Initialize(ptrOf(c)); st != backend.StatusOK {
		l.mu.Lock()
		l.removeComponent(g, c)
		l.mu.Unlock()
		return nil, st
	}
	return ptrOf(c), backend.StatusOK
}

func (l *Library) removeComponent(g backend.Ptr, c *object) {
	gr := l.objs[g].data.(*graph)
	for i, o := range gr.components {
		if o == c {
			gr.components = append(gr.components[:i], gr.components[i+1:]...)
			break
		}
	}
	comp := c.data.(*component)
	delete(gr.names, comp.name)
	l.drop(comp.class)
	l.drop(comp.params)
	c.refs = 0
	l.destroy(c)
}

// GraphConnectPorts implements backend.API.
func (l *Library) GraphConnectPorts(g, out, in backend.Ptr) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("GraphConnectPorts"); fail {
		return st
	}
	gr := data[*graph](l, "GraphConnectPorts", g)
	op := data[*port](l, "GraphConnectPorts", out)
	ip := data[*port](l, "GraphConnectPorts", in)
	if gr == nil || op == nil || ip == nil {
		return backend.StatusError
	}
	if op.typ != backend.PortOutput || ip.typ != backend.PortInput || op.peer != nil || ip.peer != nil {
		return backend.StatusError
	}
	op.peer = l.objs[in]
	ip.peer = l.objs[out]

	owner := ip.owner.data.(*component)
	if owner.cls.impl == implMuxer {
		name := fmt.Sprintf("in%d", len(owner.inputs))
		owner.inputs = append(owner.inputs, l.newPort(ip.owner, name, backend.PortInput))
	}
	return backend.StatusOK
}

// GraphRunOnce implements backend.API. It configures the graph on first use
// and lets every sink consume once.
func (l *Library) GraphRunOnce(g backend.Ptr) backend.Status {
	l.mu.Lock()
	if st, fail := l.enter("GraphRunOnce"); fail {
		l.mu.Unlock()
		return st
	}
	gr := data[*graph](l, "GraphRunOnce", g)
	if gr == nil {
		l.mu.Unlock()
		return backend.StatusError
	}
	var sinks []*object
	for _, c := range gr.components {
		if c.data.(*component).cls.typ == backend.ComponentClassSink {
			sinks = append(sinks, c)
		}
	}
	configure := !gr.configured
	gr.configured = true
	l.mu.Unlock()

	if len(sinks) == 0 {
		return backend.StatusError
	}
	if configure {
		for _, s := range sinks {
			if m := s.data.(*component).sink; m != nil {
				if st := m.GraphIsConfigured(ptrOf(s)); st != backend.StatusOK {
					return runStatus(st)
				}
			}
		}
	}

	ended := 0
	for _, s := range sinks {
		comp := s.data.(*component)
		l.mu.Lock()
		done := comp.ended
		l.mu.Unlock()
		if done {
			ended++
			continue
		}
		st := backend.StatusEnd
		switch {
		case comp.sink != nil:
			st = comp.sink.Consume(ptrOf(s))
		case comp.writer != nil:
			st = l.consumeFsSink(s, comp)
		}
		switch st {
		case backend.StatusOK:
		case backend.StatusEnd:
			l.mu.Lock()
			comp.ended = true
			l.mu.Unlock()
			ended++
		default:
			return runStatus(st)
		}
	}
	if ended == len(sinks) {
		return backend.StatusEnd
	}
	return backend.StatusOK
}

func runStatus(st backend.Status) backend.Status {
	switch st {
	case backend.StatusAgain, backend.StatusMemoryError, backend.StatusInterrupted:
		return st
	default:
		return backend.StatusError
	}
}

// PluginFind implements backend.API. The simulated plugins are static.
func (l *Library) PluginFind(name string, opts backend.PluginFindOptions) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("PluginFind"); fail {
		return nil, st
	}
	p, ok := l.plugins[name]
	if !ok || !opts.FindInStatic {
		return nil, backend.StatusNotFound
	}
	p.refs++
	l.acquired[backend.KindPlugin]++
	return ptrOf(p), backend.StatusOK
}

// PluginName implements backend.API.
func (l *Library) PluginName(p backend.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("PluginName")
	if pl := data[*plugin](l, "PluginName", p); pl != nil {
		return pl.name
	}
	return ""
}

func (l *Library) borrowClass(op string, p backend.Ptr, name string, pick func(*plugin) map[string]*object) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter(op); fail {
		return nil
	}
	pl := data[*plugin](l, op, p)
	if pl == nil {
		return nil
	}
	return ptrOf(pick(pl)[name])
}

// PluginBorrowSourceComponentClassByName implements backend.API.
func (l *Library) PluginBorrowSourceComponentClassByName(p backend.Ptr, name string) backend.Ptr {
	return l.borrowClass("PluginBorrowSourceComponentClassByName", p, name, func(pl *plugin) map[string]*object { return pl.sources })
}

// PluginBorrowFilterComponentClassByName implements backend.API.
func (l *Library) PluginBorrowFilterComponentClassByName(p backend.Ptr, name string) backend.Ptr {
	return l.borrowClass("PluginBorrowFilterComponentClassByName", p, name, func(pl *plugin) map[string]*object { return pl.filters })
}

// PluginBorrowSinkComponentClassByName implements backend.API.
func (l *Library) PluginBorrowSinkComponentClassByName(p backend.Ptr, name string) backend.Ptr {
	return l.borrowClass("PluginBorrowSinkComponentClassByName", p, name, func(pl *plugin) map[string]*object { return pl.sinks })
}

// ComponentClassSinkCreate implements backend.API.
func (l *Library) ComponentClassSinkCreate(name string) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("ComponentClassSinkCreate"); fail {
		return nil
	}
	return ptrOf(l.give(backend.KindComponentClass, &compClass{name: name, typ: backend.ComponentClassSink, impl: implGoSink}))
}

// ComponentClassSourceCreate implements backend.API.
func (l *Library) ComponentClassSourceCreate(name string) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("ComponentClassSourceCreate"); fail {
		return nil
	}
	return ptrOf(l.give(backend.KindComponentClass, &compClass{name: name, typ: backend.ComponentClassSource, impl: implGoSrc}))
}

// ComponentClassName implements backend.API.
func (l *Library) ComponentClassName(c backend.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentClassName")
	if cc := data[*compClass](l, "ComponentClassName", c); cc != nil {
		return cc.name
	}
	return ""
}

// ComponentClassType implements backend.API.
func (l *Library) ComponentClassType(c backend.Ptr) backend.ComponentClassType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentClassType")
	if cc := data[*compClass](l, "ComponentClassType", c); cc != nil {
		return cc.typ
	}
	return 0
}

// ComponentName implements backend.API.
func (l *Library) ComponentName(c backend.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentName")
	if comp := data[*component](l, "ComponentName", c); comp != nil {
		return comp.name
	}
	return ""
}

// ComponentClassTypeOf implements backend.API.
func (l *Library) ComponentClassTypeOf(c backend.Ptr) backend.ComponentClassType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentClassTypeOf")
	if comp := data[*component](l, "ComponentClassTypeOf", c); comp != nil {
		return comp.cls.typ
	}
	return 0
}

// ComponentInputPortCount implements backend.API.
func (l *Library) ComponentInputPortCount(c backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentInputPortCount")
	if comp := data[*component](l, "ComponentInputPortCount", c); comp != nil {
		return uint64(len(comp.inputs))
	}
	return 0
}

// ComponentOutputPortCount implements backend.API.
func (l *Library) ComponentOutputPortCount(c backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentOutputPortCount")
	if comp := data[*component](l, "ComponentOutputPortCount", c); comp != nil {
		return uint64(len(comp.outputs))
	}
	return 0
}

// ComponentBorrowInputPortByIndex implements backend.API.
func (l *Library) ComponentBorrowInputPortByIndex(c backend.Ptr, i uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentBorrowInputPortByIndex")
	comp := data[*component](l, "ComponentBorrowInputPortByIndex", c)
	if comp == nil || i >= uint64(len(comp.inputs)) {
		return nil
	}
	return ptrOf(comp.inputs[i])
}

// ComponentBorrowOutputPortByIndex implements backend.API.
func (l *Library) ComponentBorrowOutputPortByIndex(c backend.Ptr, i uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ComponentBorrowOutputPortByIndex")
	comp := data[*component](l, "ComponentBorrowOutputPortByIndex", c)
	if comp == nil || i >= uint64(len(comp.outputs)) {
		return nil
	}
	return ptrOf(comp.outputs[i])
}

// PortName implements backend.API.
func (l *Library) PortName(p backend.Ptr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("PortName")
	if pt := data[*port](l, "PortName", p); pt != nil {
		return pt.name
	}
	return ""
}

// PortIsConnected implements backend.API.
func (l *Library) PortIsConnected(p backend.Ptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("PortIsConnected")
	pt := data[*port](l, "PortIsConnected", p)
	return pt != nil && pt.peer != nil
}

// PortType implements backend.API.
func (l *Library) PortType(p backend.Ptr) backend.PortType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("PortType")
	if pt := data[*port](l, "PortType", p); pt != nil {
		return pt.typ
	}
	return 0
}

// SelfComponentSinkAddInputPort implements backend.API.
func (l *Library) SelfComponentSinkAddInputPort(self backend.Ptr, name string) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("SelfComponentSinkAddInputPort"); fail {
		return st
	}
	c := l.lookup("SelfComponentSinkAddInputPort", self)
	if c == nil {
		return backend.StatusError
	}
	comp := c.data.(*component)
	for _, p := range comp.inputs {
		if p.data.(*port).name == name {
			return backend.StatusError
		}
	}
	comp.inputs = append(comp.inputs, l.newPort(c, name, backend.PortInput))
	return backend.StatusOK
}

// SelfComponentSinkBorrowInputPortByIndex implements backend.API.
func (l *Library) SelfComponentSinkBorrowInputPortByIndex(self backend.Ptr, i uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("SelfComponentSinkBorrowInputPortByIndex")
	comp := data[*component](l, "SelfComponentSinkBorrowInputPortByIndex", self)
	if comp == nil || i >= uint64(len(comp.inputs)) {
		return nil
	}
	return ptrOf(comp.inputs[i])
}

// SelfComponentSourceAddOutputPort implements backend.API.
func (l *Library) SelfComponentSourceAddOutputPort(self backend.Ptr, name string) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("SelfComponentSourceAddOutputPort"); fail {
		return st
	}
	c := l.lookup("SelfComponentSourceAddOutputPort", self)
	if c == nil {
		return backend.StatusError
	}
	comp, ok := c.data.(*component)
	if !ok || comp.cls.impl != implGoSrc {
		l.violate("SelfComponentSourceAddOutputPort: not a Go source component")
		return backend.StatusError
	}
	for _, p := range comp.outputs {
		if p.data.(*port).name == name {
			return backend.StatusError
		}
	}
	comp.outputs = append(comp.outputs, l.newPort(c, name, backend.PortOutput))
	return backend.StatusOK
}
