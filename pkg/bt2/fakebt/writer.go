package fakebt

import (
	"fmt"
	"path"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// fsWriter is the state of a sink.ctf.fs component.
type fsWriter struct {
	path   string
	single bool
	iters  []*object
	traces []*object
	out    map[*object]*Trace
}

func (l *Library) setupFsSink(c *object, comp *component, pobj *object) backend.Status {
	params := l.paramsOf(pobj)
	p := params.entry("path")
	if p == nil || p.typ != backend.ValueString || p.s == "" {
		return backend.StatusError
	}
	w := &fsWriter{path: p.s, out: make(map[*object]*Trace)}
	for _, key := range []string{"assume-single-trace", "ignore-discarded-events", "ignore-discarded-packets", "quiet"} {
		v := params.entry(key)
		if v == nil {
			continue
		}
		if v.typ != backend.ValueBool {
			return backend.StatusError
		}
		if key == "assume-single-trace" {
			w.single = v.b
		}
	}
	comp.writer = w
	comp.inputs = append(comp.inputs, l.newPort(c, "in", backend.PortInput))
	return backend.StatusOK
}

// goOutputs collects the Go source output ports upstream of p.
func (l *Library) goOutputs(p *port, out *[]*object) bool {
	if p.peer == nil {
		return false
	}
	up := p.peer.data.(*port)
	comp := up.owner.data.(*component)
	switch {
	case comp.cls.typ == backend.ComponentClassSource && comp.source != nil:
		*out = append(*out, p.peer)
		return true
	case comp.cls.typ == backend.ComponentClassSource:
		return false
	}
	for _, in := range comp.inputs {
		if in.data.(*port).peer == nil {
			continue
		}
		if !l.goOutputs(in.data.(*port), out) {
			return false
		}
	}
	return true
}

// consumeFsSink lets every upstream Go source iterator produce one batch
// and records the messages. Once all of them ended, the traces are written.
func (l *Library) consumeFsSink(s *object, comp *component) backend.Status {
	l.mu.Lock()
	w := comp.writer
	if w.iters == nil {
		var outs []*object
		if !l.goOutputs(comp.inputs[0].data.(*port), &outs) || len(outs) == 0 {
			l.mu.Unlock()
			return backend.StatusError
		}
		for _, po := range outs {
			owner := po.data.(*port).owner
			w.iters = append(w.iters, child(owner, l.alloc(kindInternal, &selfIter{component: owner, port: po})))
		}
	}
	iters := append([]*object(nil), w.iters...)
	batch := l.batchSize
	l.mu.Unlock()

	ended := 0
	for _, io := range iters {
		l.mu.Lock()
		it := io.data.(*selfIter)
		m := it.component.data.(*component).source
		done := it.ended || io.dead
		l.mu.Unlock()
		if done {
			ended++
			continue
		}

		msgs, st := m.IteratorNext(ptrOf(io), uint64(batch))
		l.mu.Lock()
		var pending []finalizeCall
		for _, mp := range msgs {
			pending = append(pending, l.record(w, mp)...)
		}
		if st == backend.StatusEnd {
			it.ended = true
			ended++
		}
		l.mu.Unlock()
		finalize(pending)

		switch st {
		case backend.StatusOK, backend.StatusEnd, backend.StatusAgain:
		default:
			return runStatus(st)
		}
	}
	if ended < len(iters) {
		return backend.StatusOK
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush(w)
}

// record takes over the reference of a message a Go source emitted.
func (l *Library) record(w *fsWriter, mp backend.Ptr) []finalizeCall {
	o := l.lookup("SinkConsume", mp)
	if o == nil {
		return nil
	}
	msg, ok := o.data.(*message)
	if !ok {
		l.violate("SinkConsume: not a message")
		return nil
	}
	sd := msg.stream.data.(*stream)
	tr, ok := w.out[sd.trace]
	if !ok {
		td := sd.trace.data.(*trace)
		tr = &Trace{Name: td.name}
		w.out[sd.trace] = tr
		w.traces = append(w.traces, sd.trace)
	}
	switch msg.typ {
	case backend.MessageStreamBeginning:
		tr.Streams = append(tr.Streams, sd.fixture)
	case backend.MessageEvent:
		tr.Events = append(tr.Events, *msg.event.data.(*event).fixture)
	}
	l.released[backend.KindMessage]++
	return l.drop(o)
}

func (l *Library) flush(w *fsWriter) backend.Status {
	if w.single && len(w.traces) > 1 {
		return backend.StatusError
	}
	used := make(map[string]int)
	for _, to := range w.traces {
		tr := w.out[to]
		key := w.path
		if !w.single {
			name := tr.Name
			if name == "" {
				name = "trace"
			}
			key = path.Join(w.path, name)
			if n := used[key]; n > 0 {
				used[key]++
				key = fmt.Sprintf("%s-%d", key, n)
			} else {
				used[key] = 1
			}
		}
		l.written[key] = tr
		l.traces[key] = tr
	}
	w.traces = nil
	return backend.StatusEnd
}
