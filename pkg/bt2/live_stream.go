package bt2

import (
	"context"
	"iter"
)

// LiveStream follows an LTTng live session through source.ctf.lttng-live,
// filter.utils.muxer and the proxy sink. Callers poll Update and drain
// Events. It is not safe for concurrent use.
type LiveStream struct {
	p        *pipeline
	metadata bool
	closed   bool
}

// NewLiveStream builds the pipeline. Nothing is read before the first
// Update.
func (lib *Library) NewLiveStream(lvl LoggingLevel, params LttngLiveParams) (*LiveStream, error) {
	p, err := newPipeline(lib, lvl, params)
	if err != nil {
		return nil, err
	}
	return &LiveStream{p: p}, nil
}

// Update runs the graph once. RunTryAgain means no data is available yet;
// RunEnd means the remote session was closed.
func (s *LiveStream) Update() (RunStatus, error) {
	const op = "live_stream.update"
	if s == nil || s.closed {
		return RunOK, closedErr(op)
	}
	st, err := s.p.run()
	if err != nil {
		return st, err
	}
	switch st {
	case RunOK:
		// The first data means the session handshake completed and the
		// metadata arrived.
		s.metadata = true
	case RunEnd:
		s.p.log.Debug(context.Background(), "live stream reached the end, the remote tracing session was closed")
	}
	return st, nil
}

// HasMetadata reports whether an Update returned RunOK.
func (s *LiveStream) HasMetadata() bool { return s.metadata }

// Pending returns the number of queued events.
func (s *LiveStream) Pending() int {
	if s == nil || s.closed {
		return 0
	}
	return len(s.p.proxy.events)
}

// Events drains the events queued by the previous updates.
func (s *LiveStream) Events() iter.Seq[OwnedEvent] {
	return func(yield func(OwnedEvent) bool) {
		if s == nil || s.closed {
			return
		}
		for {
			ev, ok := s.p.proxy.pop()
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

// TraceProperties returns the properties of the session's trace.
func (s *LiveStream) TraceProperties() TraceProperties {
	return s.p.proxy.trace
}

// StreamProperties returns the distinct streams seen so far, ordered by ID.
func (s *LiveStream) StreamProperties() []StreamProperties {
	return s.p.proxy.streams.Sorted()
}

// Close tears the pipeline down. It is safe to call more than once.
func (s *LiveStream) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.p.close()
	s.closed = true
	s.p.proxy.events = nil
	return nil
}
