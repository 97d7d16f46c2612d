package fakebt

import (
	"fmt"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type trace struct {
	name      string
	hasName   bool
	uuid      []byte
	envNames  []string
	envValues []*object
	class     *object
	// nextStream numbers the streams created in the trace.
	nextStream uint64
}

type stream struct {
	fixture Stream
	trace   *object
	clock   *object
	class   *object
}

type clockClass struct {
	fixture Clock
}

type msgIter struct {
	queue []msgSpec
	pos   int
	again int
	final backend.Status
}

type msgSpec struct {
	typ    backend.MessageType
	stream *object
	event  *Event
	count  uint64
}

type clockAdjust struct {
	offsetS  int64
	offsetNS int64
	force    bool
}

func (a clockAdjust) apply(c Clock) Clock {
	total := a.offsetS*nsPerSecond + a.offsetNS
	secs := total / nsPerSecond
	rem := total % nsPerSecond
	if rem < 0 {
		rem += nsPerSecond
		secs--
	}
	c.OffsetSeconds += secs
	c.OffsetCycles += uint64(rem) * c.Frequency / nsPerSecond
	if a.force {
		c.UnixEpoch = true
	}
	return c
}

func (l *Library) paramsOf(o *object) *value {
	if o == nil {
		return nil
	}
	v, _ := o.data.(*value)
	return v
}

func (v *value) entry(key string) *value {
	if v == nil || v.typ != backend.ValueMap {
		return nil
	}
	o, ok := v.entries[key]
	if !ok {
		return nil
	}
	e, _ := o.data.(*value)
	return e
}

func (v *value) stringList() ([]string, bool) {
	if v == nil || v.typ != backend.ValueArray || len(v.elems) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(v.elems))
	for _, e := range v.elems {
		ev := e.data.(*value)
		if ev.typ != backend.ValueString {
			return nil, false
		}
		out = append(out, ev.s)
	}
	return out, true
}

func (v *value) int64Param() (int64, bool) {
	switch v.typ {
	case backend.ValueSignedInteger:
		return v.i, true
	case backend.ValueUnsignedInteger:
		return int64(v.u), true
	}
	return 0, false
}

func (l *Library) setupFs(c *object, comp *component, pobj *object) backend.Status {
	params := l.paramsOf(pobj)
	inputs, ok := params.entry("inputs").stringList()
	if !ok {
		return backend.StatusError
	}
	var adj clockAdjust
	name := ""
	if v := params.entry("trace-name"); v != nil {
		if v.typ != backend.ValueString {
			return backend.StatusError
		}
		name = v.s
	}
	if v := params.entry("clock-class-offset-s"); v != nil {
		if adj.offsetS, ok = v.int64Param(); !ok {
			return backend.StatusError
		}
	}
	if v := params.entry("clock-class-offset-ns"); v != nil {
		if adj.offsetNS, ok = v.int64Param(); !ok {
			return backend.StatusError
		}
	}
	if v := params.entry("force-clock-class-origin-unix-epoch"); v != nil {
		if v.typ != backend.ValueBool {
			return backend.StatusError
		}
		adj.force = v.b
	}

	for _, in := range inputs {
		fx, ok := l.traces[in]
		if !ok {
			return backend.StatusError
		}
		src := l.newSourceTrace(fx, name, adj)
		for _, s := range fx.Streams {
			p := l.newPort(c, fmt.Sprintf("%s | stream %d", in, s.ID), backend.PortOutput)
			p.data.(*port).bindings = []binding{{src: src, streams: []uint64{s.ID}}}
			comp.outputs = append(comp.outputs, p)
		}
	}
	return backend.StatusOK
}

func (l *Library) setupLive(c *object, comp *component, pobj *object) backend.Status {
	params := l.paramsOf(pobj)
	inputs, ok := params.entry("inputs").stringList()
	if !ok || len(inputs) != 1 {
		return backend.StatusError
	}
	act := "continue"
	if v := params.entry("session-not-found-action"); v != nil {
		if v.typ != backend.ValueString {
			return backend.StatusError
		}
		switch v.s {
		case "continue", "fail", "end":
			act = v.s
		default:
			return backend.StatusError
		}
	}

	fx, found := l.traces[inputs[0]]
	if !found {
		fx = &Trace{}
	}
	src := l.newSourceTrace(fx, "", clockAdjust{})
	if !found {
		src.missing = act
	}
	ids := make([]uint64, 0, len(fx.Streams))
	for _, s := range fx.Streams {
		ids = append(ids, s.ID)
	}
	p := l.newPort(c, "out", backend.PortOutput)
	p.data.(*port).bindings = []binding{{src: src, streams: ids}}
	comp.outputs = append(comp.outputs, p)
	return backend.StatusOK
}

func (l *Library) newSourceTrace(fx *Trace, nameOverride string, adj clockAdjust) *sourceTrace {
	t := &trace{name: fx.Name, hasName: fx.Name != "", uuid: fx.UUID}
	if nameOverride != "" {
		t.name, t.hasName = nameOverride, true
	}
	for _, e := range fx.Env {
		t.envNames = append(t.envNames, e.Name)
		t.envValues = append(t.envValues, l.alloc(backend.KindValue, envValue(e.Value)))
	}
	src := &sourceTrace{
		fixture: fx,
		name:    t.name,
		trace:   l.alloc(backend.KindTrace, t),
		streams: make(map[uint64]*object),
	}
	for _, s := range fx.Streams {
		sd := &stream{fixture: s, trace: src.trace}
		if s.Clock != nil {
			sd.clock = l.alloc(backend.KindClockClass, &clockClass{fixture: adj.apply(*s.Clock)})
		}
		src.streams[s.ID] = l.alloc(backend.KindStream, sd)
	}
	return src
}

func envValue(v any) *value {
	switch x := v.(type) {
	case int64:
		return &value{typ: backend.ValueSignedInteger, i: x}
	case int:
		return &value{typ: backend.ValueSignedInteger, i: int64(x)}
	case string:
		return &value{typ: backend.ValueString, s: x}
	case float64:
		return &value{typ: backend.ValueReal, f: x}
	case bool:
		return &value{typ: backend.ValueBool, b: x}
	default:
		return &value{typ: backend.ValueNull}
	}
}

func (l *Library) collect(p *port, out *[]binding) {
	if p.peer == nil {
		return
	}
	up := p.peer.data.(*port)
	comp := up.owner.data.(*component)
	if comp.cls.typ == backend.ComponentClassSource {
		*out = append(*out, up.bindings...)
		return
	}
	for _, in := range comp.inputs {
		l.collect(in.data.(*port), out)
	}
}

func (l *Library) buildQueue(bindings []binding) *msgIter {
	it := &msgIter{final: backend.StatusEnd}

	type group struct {
		src *sourceTrace
		ids map[uint64]bool
	}
	var groups []*group
	bySrc := make(map[*sourceTrace]*group)
	var order []*object
	for _, b := range bindings {
		g, ok := bySrc[b.src]
		if !ok {
			g = &group{src: b.src, ids: make(map[uint64]bool)}
			bySrc[b.src] = g
			groups = append(groups, g)
		}
		for _, id := range b.streams {
			if !g.ids[id] {
				g.ids[id] = true
				order = append(order, b.src.streams[id])
			}
		}
		switch b.src.missing {
		case "end":
		case "fail":
			it.final = backend.StatusError
		case "continue":
			it.final = backend.StatusAgain
		}
		if b.src.fixture.AgainBefore > it.again {
			it.again = b.src.fixture.AgainBefore
		}
	}

	for _, s := range order {
		it.queue = append(it.queue, msgSpec{typ: backend.MessageStreamBeginning, stream: s})
	}
	for _, g := range groups {
		for i := range g.src.fixture.Events {
			ev := &g.src.fixture.Events[i]
			if g.ids[ev.Stream] {
				it.queue = append(it.queue, msgSpec{typ: backend.MessageEvent, stream: g.src.streams[ev.Stream], event: ev})
			}
		}
	}
	for _, g := range groups {
		fx := g.src.fixture
		for _, s := range fx.Streams {
			if !g.ids[s.ID] {
				continue
			}
			if fx.DiscardedEvents > 0 {
				it.queue = append(it.queue, msgSpec{typ: backend.MessageDiscardedEvents, stream: g.src.streams[s.ID], count: fx.DiscardedEvents})
			}
			if fx.DiscardedPackets > 0 {
				it.queue = append(it.queue, msgSpec{typ: backend.MessageDiscardedPackets, stream: g.src.streams[s.ID], count: fx.DiscardedPackets})
			}
		}
	}
	for _, s := range order {
		it.queue = append(it.queue, msgSpec{typ: backend.MessageStreamEnd, stream: s})
	}
	return it
}

// MessageIteratorCreateFromSinkComponent implements backend.API.
func (l *Library) MessageIteratorCreateFromSinkComponent(self, p backend.Ptr) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("MessageIteratorCreateFromSinkComponent"); fail {
		return nil, st
	}
	comp := data[*component](l, "MessageIteratorCreateFromSinkComponent", self)
	pt := data[*port](l, "MessageIteratorCreateFromSinkComponent", p)
	if comp == nil || pt == nil || pt.owner != l.objs[self] || pt.peer == nil {
		return nil, backend.StatusError
	}
	var bindings []binding
	l.collect(pt, &bindings)
	return ptrOf(l.give(backend.KindMessageIterator, l.buildQueue(bindings))), backend.StatusOK
}

// MessageIteratorNext implements backend.API.
func (l *Library) MessageIteratorNext(itp backend.Ptr) ([]backend.Ptr, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("MessageIteratorNext"); fail {
		return nil, st
	}
	it := data[*msgIter](l, "MessageIteratorNext", itp)
	if it == nil {
		return nil, backend.StatusError
	}
	if it.again > 0 {
		it.again--
		return nil, backend.StatusAgain
	}
	if it.pos >= len(it.queue) {
		return nil, it.final
	}
	end := min(it.pos+l.batchSize, len(it.queue))
	out := make([]backend.Ptr, 0, end-it.pos)
	for _, ms := range it.queue[it.pos:end] {
		out = append(out, ptrOf(l.newMessage(ms)))
	}
	it.pos = end
	return out, backend.StatusOK
}

func (l *Library) newMessage(ms msgSpec) *object {
	msg := &message{typ: ms.typ, stream: ms.stream, count: ms.count}
	m := l.give(backend.KindMessage, msg)
	if ms.event == nil {
		return m
	}
	ev := ms.event
	sd := ms.stream.data.(*stream)
	e := child(m, l.alloc(kindInternal, &event{fixture: ev, stream: ms.stream}))
	ed := e.data.(*event)
	ed.class = child(e, l.alloc(kindInternal, &eventClass{
		id: ev.ClassID, name: ev.Name, hasLevel: ev.HasLogLevel, level: ev.LogLevel,
	}))
	msg.event = e
	if sd.clock != nil {
		msg.snapshot = child(m, l.alloc(kindInternal, &snapshot{cycles: ev.Cycles, clock: sd.clock.data.(*clockClass).fixture}))
	}
	return m
}
