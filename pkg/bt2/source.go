package bt2

import (
	"context"
	"fmt"
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// SourceOutputPortName is the port a Go source gets when its Initialize
// adds none.
const SourceOutputPortName = "out"

// Source implements the methods of a source component class created with
// NewSourceComponentClass. Each output port gets one message iterator; Next
// fills it with at most Capacity messages. Returning NextEnd with messages
// delivers them first and ends the iterator on the following call. The
// SelfSource and SelfMessageIterator arguments are only valid during the
// call.
type Source interface {
	Initialize(self *SelfSource) error
	Next(it *SelfMessageIterator) (NextStatus, error)
	Finalize(self *SelfSource)
}

// SelfSource is the view a Source has of its own component.
type SelfSource struct {
	ref own.Ref
}

func (s *SelfSource) handle() *own.Ref {
	if s == nil {
		return nil
	}
	return &s.ref
}

// Name returns the component's name.
func (s *SelfSource) Name() (string, error) {
	api, p, err := use("self_component_source.name", s.handle())
	if err != nil {
		return "", err
	}
	return api.ComponentName(p), nil
}

// AddOutputPort adds an output port named name.
func (s *SelfSource) AddOutputPort(name string) error {
	const op = "self_component_source.add_output_port"
	api, p, err := use(op, s.handle())
	if err != nil {
		return err
	}
	if err := CheckName(op, "port name", name); err != nil {
		return err
	}
	if st := api.SelfComponentSourceAddOutputPort(p, name); st != backend.StatusOK {
		return fail(api, op, st)
	}
	return nil
}

// SelfMessageIterator collects the messages one Source.Next call emits.
type SelfMessageIterator struct {
	ref      own.Ref
	capacity uint64
	msgs     []*Message
}

func (it *SelfMessageIterator) handle() *own.Ref {
	if it == nil {
		return nil
	}
	return &it.ref
}

// Capacity returns how many more messages the current call may emit.
func (it *SelfMessageIterator) Capacity() uint64 {
	if it == nil || !it.ref.Valid() {
		return 0
	}
	return it.capacity - uint64(len(it.msgs))
}

func (it *SelfMessageIterator) room(op string) (backend.API, backend.Ptr, error) {
	api, p, err := use(op, it.handle())
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(it.msgs)) >= it.capacity {
		return nil, nil, invalidArg(op, fmt.Sprintf("batch is full at %d messages", it.capacity))
	}
	return api, p, nil
}

func (it *SelfMessageIterator) streamMessage(op string, s *Stream, create func(api backend.API, it, s backend.Ptr) backend.Ptr) error {
	api, p, err := it.room(op)
	if err != nil {
		return err
	}
	sp, err := arg(op, "stream", s.handle())
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(s)
	m := create(api, p, sp)
	if m == nil {
		return createFailed(op)
	}
	it.msgs = append(it.msgs, newMessage(api, m))
	return nil
}

// StreamBeginning emits the beginning of stream s.
func (it *SelfMessageIterator) StreamBeginning(s *Stream) error {
	return it.streamMessage("message.stream_beginning_create", s, func(api backend.API, it, s backend.Ptr) backend.Ptr {
		return api.MessageStreamBeginningCreate(it, s)
	})
}

// StreamEnd emits the end of stream s.
func (it *SelfMessageIterator) StreamEnd(s *Stream) error {
	return it.streamMessage("message.stream_end_create", s, func(api backend.API, it, s backend.Ptr) backend.Ptr {
		return api.MessageStreamEndCreate(it, s)
	})
}

// Event emits an event of class ec in stream s. values set the payload
// members in order: bool for FieldBool, any unsigned integer for
// FieldUnsignedInteger, any signed integer for FieldSignedInteger, float32
// and float64 for the reals and string for FieldString. cycles is the clock
// value and is ignored when the stream class has no clock.
func (it *SelfMessageIterator) Event(ec *EventClass, s *Stream, cycles uint64, values ...any) error {
	const op = "message.event_create"
	api, p, err := it.room(op)
	if err != nil {
		return err
	}
	ep, err := arg(op, "event class", ec.handle())
	if err != nil {
		return err
	}
	sp, err := arg(op, "stream", s.handle())
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(ec)
	defer runtime.KeepAlive(s)
	if len(values) != len(ec.members) {
		return invalidArg(op, fmt.Sprintf("event class %q has %d payload members, got %d values", ec.name, len(ec.members), len(values)))
	}
	for i, v := range values {
		if !assignable(ec.members[i].Type, v) {
			return invalidArg(op, fmt.Sprintf("payload member %q of type %s cannot hold %T", ec.members[i].Name, ec.members[i].Type, v))
		}
	}
	if api.StreamBorrowClass(sp) != ec.streamClass {
		return invalidArg(op, fmt.Sprintf("event class %q belongs to another stream class", ec.name))
	}

	mp := api.MessageEventCreate(p, ep, sp, cycles, ec.clocked)
	if mp == nil {
		return createFailed(op)
	}
	m := newMessage(api, mp)
	if len(values) > 0 {
		payload := api.MessageEventBorrowPayload(mp)
		if payload == nil {
			m.Close()
			return borrowFailed(op)
		}
		for i, v := range values {
			f := api.FieldStructureBorrowMemberByIndex(payload, uint64(i))
			if f == nil {
				m.Close()
				return borrowFailed(op)
			}
			if err := setField(api, op, f, v); err != nil {
				m.Close()
				return err
			}
		}
	}
	it.msgs = append(it.msgs, m)
	return nil
}

func assignable(t FieldType, v any) bool {
	switch v.(type) {
	case bool:
		return t == FieldBool
	case uint64, uint, uint32, uint16, uint8:
		return t == FieldUnsignedInteger
	case int64, int, int32, int16, int8:
		return t == FieldSignedInteger
	case float32:
		return t == FieldSingleReal || t == FieldDoubleReal
	case float64:
		return t == FieldDoubleReal || t == FieldSingleReal
	case string:
		return t == FieldString
	}
	return false
}

func setField(api backend.API, op string, f backend.Ptr, v any) error {
	single := FieldType(api.FieldClassType(f)) == FieldSingleReal
	switch x := v.(type) {
	case bool:
		api.FieldBoolSet(f, x)
	case uint64:
		api.FieldUnsignedIntegerSet(f, x)
	case uint:
		api.FieldUnsignedIntegerSet(f, uint64(x))
	case uint32:
		api.FieldUnsignedIntegerSet(f, uint64(x))
	case uint16:
		api.FieldUnsignedIntegerSet(f, uint64(x))
	case uint8:
		api.FieldUnsignedIntegerSet(f, uint64(x))
	case int64:
		api.FieldSignedIntegerSet(f, x)
	case int:
		api.FieldSignedIntegerSet(f, int64(x))
	case int32:
		api.FieldSignedIntegerSet(f, int64(x))
	case int16:
		api.FieldSignedIntegerSet(f, int64(x))
	case int8:
		api.FieldSignedIntegerSet(f, int64(x))
	case float32:
		if single {
			api.FieldRealSingleSet(f, x)
		} else {
			api.FieldRealDoubleSet(f, float64(x))
		}
	case float64:
		if single {
			api.FieldRealSingleSet(f, float32(x))
		} else {
			api.FieldRealDoubleSet(f, x)
		}
	case string:
		if err := checkString(op, "string field", x); err != nil {
			return err
		}
		if st := api.FieldStringSet(f, x); st != backend.StatusOK {
			return fail(api, op, st)
		}
	}
	return nil
}

// take hands the collected messages over and invalidates the iterator.
func (it *SelfMessageIterator) take() []backend.Ptr {
	out := make([]backend.Ptr, 0, len(it.msgs))
	for _, m := range it.msgs {
		if p, ok := m.ref.Transfer(); ok {
			runtime.SetFinalizer(m, nil)
			out = append(out, p)
		}
	}
	it.msgs = nil
	it.ref.Release()
	return out
}

func (it *SelfMessageIterator) discard() {
	CloseMessages(it.msgs)
	it.msgs = nil
	it.ref.Release()
}

// sourceAdapter turns a Source into the status-returning callbacks the
// backend drives.
type sourceAdapter struct {
	api    backend.API
	source Source
	log    logging.Logger
	ended  map[backend.Ptr]bool
}

var _ backend.SourceMethods = (*sourceAdapter)(nil)

func newSourceAdapter(api backend.API, source Source, log logging.Logger) *sourceAdapter {
	return &sourceAdapter{api: api, source: source, log: log, ended: make(map[backend.Ptr]bool)}
}

func (a *sourceAdapter) Initialize(self backend.Ptr) backend.Status {
	a.log.Debug(context.Background(), "initializing source")
	s := &SelfSource{ref: own.Borrow(a.api, backend.KindComponent, self, nil)}
	defer s.ref.Release()
	if err := a.source.Initialize(s); err != nil {
		a.log.Error(context.Background(), "source method failed", "method", "initialize", "error", err)
		return errorStatus(err)
	}
	if a.api.ComponentOutputPortCount(self) == 0 {
		if err := s.AddOutputPort(SourceOutputPortName); err != nil {
			// A component whose initialization fails is never finalized.
			a.source.Finalize(s)
			a.log.Error(context.Background(), "source method failed", "method", "initialize", "error", err)
			return errorStatus(err)
		}
	}
	return backend.StatusOK
}

func (a *sourceAdapter) IteratorNext(it backend.Ptr, capacity uint64) ([]backend.Ptr, backend.Status) {
	if a.ended[it] {
		return nil, backend.StatusEnd
	}
	self := &SelfMessageIterator{
		ref:      own.Borrow(a.api, backend.KindMessageIterator, it, nil),
		capacity: capacity,
	}
	ns, err := a.source.Next(self)
	if err != nil {
		self.discard()
		a.log.Error(context.Background(), "source method failed", "method", "next", "error", err)
		return nil, errorStatus(err)
	}
	out := self.take()
	switch {
	case len(out) > 0:
		if ns == NextEnd {
			a.ended[it] = true
		}
		return out, backend.StatusOK
	case ns == NextEnd:
		a.ended[it] = true
		return nil, backend.StatusEnd
	default:
		return nil, backend.StatusAgain
	}
}

func (a *sourceAdapter) Finalize(self backend.Ptr) {
	a.log.Debug(context.Background(), "finalizing source")
	s := &SelfSource{ref: own.Borrow(a.api, backend.KindComponent, self, nil)}
	defer s.ref.Release()
	a.source.Finalize(s)
}
