package bt2

import (
	"context"
	"iter"
)

// TraceIterator reads the events of CTF traces on disk through
// source.ctf.fs, filter.utils.muxer and the proxy sink. It is not safe for
// concurrent use.
//
//	it, err := lib.NewTraceIterator(bt2.LoggingWarn, bt2.CtfFsParams{Inputs: []string{dir}})
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for ev, err := range it.All() {
//		...
//	}
type TraceIterator struct {
	p      *pipeline
	last   RunStatus
	ev     OwnedEvent
	err    error
	closed bool
}

// NewTraceIterator builds the pipeline and runs it once, which loads the
// trace and stream properties and possibly a first batch of events.
func (lib *Library) NewTraceIterator(lvl LoggingLevel, params CtfFsParams) (*TraceIterator, error) {
	p, err := newPipeline(lib, lvl, params)
	if err != nil {
		return nil, err
	}
	st, err := p.run()
	if err != nil {
		p.close()
		return nil, err
	}
	return &TraceIterator{p: p, last: st}, nil
}

// Next advances to the next event, running the graph when the queue is
// empty. It returns false at the end of the traces or on failure, see Err.
func (t *TraceIterator) Next() bool {
	if t == nil || t.closed || t.err != nil {
		return false
	}
	for {
		if ev, ok := t.p.proxy.pop(); ok {
			t.ev = ev
			return true
		}
		if t.last == RunEnd {
			t.ev = OwnedEvent{}
			return false
		}
		st, err := t.p.run()
		if err != nil {
			t.err = err
			t.ev = OwnedEvent{}
			return false
		}
		t.last = st
	}
}

// Event returns the event Next advanced to.
func (t *TraceIterator) Event() OwnedEvent { return t.ev }

// Err returns the failure that stopped Next, if any.
func (t *TraceIterator) Err() error {
	if t == nil {
		return nil
	}
	return t.err
}

// All yields every remaining event. A failure is yielded once, last.
func (t *TraceIterator) All() iter.Seq2[OwnedEvent, error] {
	return func(yield func(OwnedEvent, error) bool) {
		for t.Next() {
			if !yield(t.Event(), nil) {
				return
			}
		}
		if err := t.Err(); err != nil {
			yield(OwnedEvent{}, err)
		}
	}
}

// TraceProperties returns the properties of the trace read so far. They
// stay readable after Close.
func (t *TraceIterator) TraceProperties() TraceProperties {
	return t.p.proxy.trace
}

// StreamProperties returns the distinct streams seen so far, ordered by ID.
func (t *TraceIterator) StreamProperties() []StreamProperties {
	return t.p.proxy.streams.Sorted()
}

// Close tears the pipeline down. It is safe to call more than once.
func (t *TraceIterator) Close() error {
	if t == nil || t.closed {
		return nil
	}
	t.p.log.Debug(context.Background(), "closing trace iterator")
	t.p.close()
	t.closed = true
	t.ev = OwnedEvent{}
	return nil
}
