package bt2

import (
	"context"

	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// proxyInputPort is the name of the proxy sink's only input port.
const proxyInputPort = "in"

// proxySink is the Go sink at the end of the pipelines. It funnels the
// stream and trace properties and the events it consumes to the pipeline's
// owner.
type proxySink struct {
	log logging.Logger

	it      *MessageIterator
	trace   TraceProperties
	streams StreamSet
	events  []OwnedEvent
	err     error
}

var _ Sink = (*proxySink)(nil)

func (s *proxySink) Initialize(self *SelfSink) error {
	return self.AddInputPort(proxyInputPort)
}

func (s *proxySink) GraphIsConfigured(self *SelfSink) error {
	port, err := self.InputPort(0)
	if err != nil {
		return s.fail(err)
	}
	it, err := self.CreateMessageIterator(port)
	if err != nil {
		return s.fail(err)
	}
	s.it = it
	return nil
}

func (s *proxySink) Consume(*SelfSink) (ConsumeStatus, error) {
	if s.it == nil {
		return ConsumeEnd, s.fail(NewError("proxy_sink.consume", KindFatal, "message iterator is gone"))
	}
	st, msgs, err := s.it.Next()
	if err != nil {
		return ConsumeOK, s.fail(err)
	}
	defer CloseMessages(msgs)
	switch st {
	case NextTryAgain:
		return ConsumeTryAgain, nil
	case NextEnd:
		s.it.Close()
		s.it = nil
		return ConsumeEnd, nil
	}
	s.log.Debug(context.Background(), "proxy sink consuming", "messages", len(msgs))
	for _, m := range msgs {
		if err := s.handle(m); err != nil {
			return ConsumeOK, s.fail(err)
		}
	}
	return ConsumeOK, nil
}

func (s *proxySink) handle(m *Message) error {
	t, err := m.Type()
	if err != nil {
		return err
	}
	switch t {
	case MessageStreamBeginning:
		stream, err := m.Stream()
		if err != nil {
			return err
		}
		props, err := stream.Properties()
		if err != nil {
			return err
		}
		s.streams.Add(props)
		trace, err := stream.Trace()
		if err != nil {
			return err
		}
		// Every stream of the pipeline belongs to the same trace.
		if s.trace, err = trace.Properties(); err != nil {
			return err
		}
	case MessageEvent:
		ev, err := m.Event()
		if err != nil {
			return err
		}
		owned, err := ev.ToOwned()
		if err != nil {
			return err
		}
		s.events = append(s.events, owned)
	case MessageDiscardedEvents, MessageDiscardedPackets:
		n, known, err := m.DiscardedCount()
		if err != nil {
			return err
		}
		what := "events"
		if t == MessageDiscardedPackets {
			what = "packets"
		}
		args := []any{"what", what, "trace_uuid", s.trace.UUID}
		if known {
			args = append(args, "count", n)
		}
		s.log.Debug(context.Background(), "tracer discarded data", args...)
	}
	return nil
}

// fail records the first consume failure so the pipeline can report it in
// place of the library's generic sink error.
func (s *proxySink) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *proxySink) Finalize(*SelfSink) {
	s.log.Debug(context.Background(), "finalizing proxy sink")
	if s.it != nil {
		s.it.Close()
		s.it = nil
	}
}

// pop removes and returns the oldest queued event.
func (s *proxySink) pop() (OwnedEvent, bool) {
	if len(s.events) == 0 {
		return OwnedEvent{}, false
	}
	ev := s.events[0]
	s.events[0] = OwnedEvent{}
	s.events = s.events[1:]
	return ev, true
}

// takeErr returns and clears the recorded consume failure.
func (s *proxySink) takeErr() error {
	err := s.err
	s.err = nil
	return err
}
