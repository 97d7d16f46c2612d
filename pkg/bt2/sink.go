package bt2

import (
	"context"
	"errors"
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// ConsumeStatus is the successful outcome of Sink.Consume.
type ConsumeStatus int

const (
	ConsumeOK ConsumeStatus = iota
	ConsumeTryAgain
	ConsumeEnd
)

// Sink implements the methods of a sink component class created with
// NewSinkComponentClass. The library calls them synchronously from
// Graph.AddSinkComponent, Graph.RunOnce and the graph's destruction. The
// SelfSink argument is only valid during the call.
type Sink interface {
	Initialize(self *SelfSink) error
	GraphIsConfigured(self *SelfSink) error
	Consume(self *SelfSink) (ConsumeStatus, error)
	Finalize(self *SelfSink)
}

// SelfSink is the view a Sink has of its own component.
type SelfSink struct {
	ref own.Ref
}

func (s *SelfSink) handle() *own.Ref {
	if s == nil {
		return nil
	}
	return &s.ref
}

// Name returns the component's name.
func (s *SelfSink) Name() (string, error) {
	api, p, err := use("self_component_sink.name", s.handle())
	if err != nil {
		return "", err
	}
	return api.ComponentName(p), nil
}

// AddInputPort adds an input port named name.
func (s *SelfSink) AddInputPort(name string) error {
	const op = "self_component_sink.add_input_port"
	api, p, err := use(op, s.handle())
	if err != nil {
		return err
	}
	if err := CheckName(op, "port name", name); err != nil {
		return err
	}
	if st := api.SelfComponentSinkAddInputPort(p, name); st != backend.StatusOK {
		return fail(api, op, st)
	}
	return nil
}

// InputPort borrows the input port at index i.
func (s *SelfSink) InputPort(i uint64) (*Port, error) {
	const op = "self_component_sink.borrow_input_port"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	port := api.SelfComponentSinkBorrowInputPortByIndex(p, i)
	if port == nil {
		return nil, borrowFailed(op)
	}
	return newPort(api, port, s.handle()), nil
}

// CreateMessageIterator creates an owned iterator on the messages arriving
// at one of the sink's connected input ports.
func (s *SelfSink) CreateMessageIterator(port *Port) (*MessageIterator, error) {
	const op = "message_iterator.create_from_sink_component"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	pp, err := arg(op, "port", port.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(port)
	it, st := api.MessageIteratorCreateFromSinkComponent(p, pp)
	if st != backend.StatusOK {
		return nil, fail(api, op, st)
	}
	if it == nil {
		return nil, createFailed(op)
	}
	return newMessageIterator(api, it), nil
}

// sinkAdapter turns a Sink into the status-returning callbacks the backend
// drives.
type sinkAdapter struct {
	api  backend.API
	sink Sink
	name string
	log  logging.Logger
}

var _ backend.SinkMethods = (*sinkAdapter)(nil)

func (a *sinkAdapter) call(self backend.Ptr, fn func(*SelfSink) (backend.Status, error), method string) backend.Status {
	s := &SelfSink{ref: own.Borrow(a.api, backend.KindComponent, self, nil)}
	defer s.ref.Release()
	st, err := fn(s)
	if err != nil {
		a.log.Error(context.Background(), "sink method failed", "method", method, "error", err)
		return errorStatus(err)
	}
	return st
}

func (a *sinkAdapter) Initialize(self backend.Ptr) backend.Status {
	a.log.Debug(context.Background(), "initializing sink")
	return a.call(self, func(s *SelfSink) (backend.Status, error) {
		return backend.StatusOK, a.sink.Initialize(s)
	}, "initialize")
}

func (a *sinkAdapter) GraphIsConfigured(self backend.Ptr) backend.Status {
	return a.call(self, func(s *SelfSink) (backend.Status, error) {
		return backend.StatusOK, a.sink.GraphIsConfigured(s)
	}, "graph_is_configured")
}

func (a *sinkAdapter) Consume(self backend.Ptr) backend.Status {
	return a.call(self, func(s *SelfSink) (backend.Status, error) {
		cs, err := a.sink.Consume(s)
		switch cs {
		case ConsumeTryAgain:
			return backend.StatusAgain, err
		case ConsumeEnd:
			return backend.StatusEnd, err
		default:
			return backend.StatusOK, err
		}
	}, "consume")
}

func (a *sinkAdapter) Finalize(self backend.Ptr) {
	a.log.Debug(context.Background(), "finalizing sink")
	s := &SelfSink{ref: own.Borrow(a.api, backend.KindComponent, self, nil)}
	defer s.ref.Release()
	a.sink.Finalize(s)
}

// errorStatus picks the method status reported for a Go error.
func errorStatus(err error) backend.Status {
	if errors.Is(err, ErrResourceExhausted) {
		return backend.StatusMemoryError
	}
	return backend.StatusError
}
