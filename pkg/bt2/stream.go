package bt2

import (
	"cmp"
	"errors"
	"runtime"
	"slices"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// StreamProperties describes a stream. Name is empty when the stream has
// none; Clock is nil when the stream has no default clock class.
type StreamProperties struct {
	ID    uint64
	Name  string
	Clock *ClockClassProperties
}

type streamKey struct {
	id       uint64
	name     string
	hasClock bool
	clock    ClockClassProperties
}

func (p StreamProperties) key() streamKey {
	k := streamKey{id: p.ID, name: p.Name}
	if p.Clock != nil {
		k.hasClock, k.clock = true, *p.Clock
	}
	return k
}

// StreamSet collects distinct stream properties.
type StreamSet struct {
	seen  map[streamKey]struct{}
	items []StreamProperties
}

// Add inserts p unless an equal entry is present and reports whether it
// was added.
func (s *StreamSet) Add(p StreamProperties) bool {
	if s.seen == nil {
		s.seen = make(map[streamKey]struct{})
	}
	k := p.key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, p)
	return true
}

// Len returns the number of distinct entries.
func (s *StreamSet) Len() int { return len(s.items) }

// Sorted returns the entries ordered by ID, then name.
func (s *StreamSet) Sorted() []StreamProperties {
	out := slices.Clone(s.items)
	slices.SortStableFunc(out, func(a, b StreamProperties) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Stream is a stream borrowed from a message or an event.
type Stream struct {
	ref own.Ref
}

func newStream(api backend.API, p backend.Ptr, parent *own.Ref) *Stream {
	return &Stream{ref: own.Borrow(api, backend.KindStream, p, parent)}
}

func (s *Stream) handle() *own.Ref {
	if s == nil {
		return nil
	}
	return &s.ref
}

// Acquire returns an owned reference to the stream that outlives the
// message it was borrowed from.
func (s *Stream) Acquire() (*Stream, error) {
	const op = "stream.get_ref"
	if _, _, err := use(op, s.handle()); err != nil {
		return nil, err
	}
	ref, ok := s.ref.Share()
	if !ok {
		return nil, unsupported(op, "handle is not reference counted")
	}
	out := &Stream{ref: ref}
	runtime.SetFinalizer(out, (*Stream).Close)
	return out, nil
}

// Close releases the stream if the wrapper owns it.
func (s *Stream) Close() error {
	if s == nil {
		return nil
	}
	if s.ref.Release() {
		runtime.SetFinalizer(s, nil)
	}
	return nil
}

// ID returns the stream's ID.
func (s *Stream) ID() (uint64, error) {
	api, p, err := use("stream.get_id", s.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(s)
	return api.StreamID(p), nil
}

// Name returns the stream's name and whether it has one.
func (s *Stream) Name() (string, bool, error) {
	api, p, err := use("stream.get_name", s.handle())
	if err != nil {
		return "", false, err
	}
	defer runtime.KeepAlive(s)
	name, ok := api.StreamName(p)
	return name, ok, nil
}

// Trace borrows the stream's trace.
func (s *Stream) Trace() (*Trace, error) {
	const op = "stream.borrow_trace"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(s)
	t := api.StreamBorrowTrace(p)
	if t == nil {
		return nil, borrowFailed(op)
	}
	return newTrace(api, t, s.handle()), nil
}

// ClockClass borrows the stream's default clock class. It fails with
// KindNotFound when the stream has none.
func (s *Stream) ClockClass() (*ClockClass, error) {
	const op = "stream.borrow_default_clock_class"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(s)
	c := api.StreamBorrowDefaultClockClass(p)
	if c == nil {
		return nil, borrowFailed(op)
	}
	return &ClockClass{ref: own.Borrow(api, backend.KindClockClass, c, s.handle())}, nil
}

// Properties reads the stream's ID, name and default clock class.
func (s *Stream) Properties() (StreamProperties, error) {
	var props StreamProperties
	var err error
	if props.ID, err = s.ID(); err != nil {
		return props, err
	}
	if props.Name, _, err = s.Name(); err != nil {
		return props, err
	}
	cc, err := s.ClockClass()
	if errors.Is(err, ErrNotFound) {
		return props, nil
	}
	if err != nil {
		return props, err
	}
	clock, err := cc.Properties()
	if err != nil {
		return props, err
	}
	props.Clock = &clock
	return props, nil
}
