package bt2_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// fooSource emits a stream of events with a string and an unsigned member,
// then ends.
type fooSource struct {
	events    int
	clocked   bool
	initErr   error
	failAt    int
	next      func(s *fooSource, it *bt2.SelfMessageIterator) (bt2.NextStatus, error)
	sent      int
	finalized int

	tc     *bt2.TraceClass
	cc     *bt2.ClockClass
	sc     *bt2.StreamClass
	ec     *bt2.EventClass
	trace  *bt2.Trace
	stream *bt2.Stream
}

func (s *fooSource) Initialize(self *bt2.SelfSource) (err error) {
	if s.initErr != nil {
		return s.initErr
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()
	if s.tc, err = self.NewTraceClass(); err != nil {
		return err
	}
	if s.clocked {
		s.cc, err = self.NewClockClass(bt2.ClockClassProperties{Frequency: 1_000_000_000, Name: "monotonic"})
		if err != nil {
			return err
		}
	}
	if s.sc, err = s.tc.NewStreamClass(s.cc); err != nil {
		return err
	}
	s.ec, err = s.sc.NewEventClass("event_foo",
		bt2.PayloadMember{Name: "field_bar", Type: bt2.FieldString},
		bt2.PayloadMember{Name: "count", Type: bt2.FieldUnsignedInteger},
	)
	if err != nil {
		return err
	}
	if s.trace, err = s.tc.NewTrace("my_trace"); err != nil {
		return err
	}
	s.stream, err = s.sc.NewStream(s.trace)
	return err
}

func (s *fooSource) Next(it *bt2.SelfMessageIterator) (bt2.NextStatus, error) {
	if s.next != nil {
		return s.next(s, it)
	}
	for it.Capacity() > 0 {
		if s.failAt > 0 && s.sent == s.failAt {
			return bt2.NextOK, errors.New("sensor went away")
		}
		var err error
		switch {
		case s.sent == 0:
			err = it.StreamBeginning(s.stream)
		case s.sent <= s.events:
			err = it.Event(s.ec, s.stream, uint64(s.sent*10), fmt.Sprintf("value %d", s.sent), uint64(s.sent))
		case s.sent == s.events+1:
			err = it.StreamEnd(s.stream)
		default:
			return bt2.NextEnd, nil
		}
		if err != nil {
			return bt2.NextOK, err
		}
		s.sent++
	}
	return bt2.NextOK, nil
}

func (s *fooSource) Finalize(*bt2.SelfSource) {
	s.finalized++
	s.close()
}

func (s *fooSource) close() {
	s.stream.Close()
	s.trace.Close()
	s.ec.Close()
	s.sc.Close()
	s.cc.Close()
	s.tc.Close()
}

func boolPtr(b bool) *bool { return &b }

func TestEncoderRoundTrip(t *testing.T) {
	lib, fake := openFake(t)
	src := &fooSource{events: 10, clocked: true}

	enc, err := lib.NewEncoderPipeline(bt2.LoggingWarn, "foo", src, bt2.CtfFsSinkParams{
		Path:              "/tmp/trace_out",
		AssumeSingleTrace: boolPtr(true),
		Quiet:             boolPtr(true),
	})
	require.NoError(t, err)
	require.NoError(t, enc.Run(context.Background()))
	st, err := enc.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, bt2.RunEnd, st)

	assert.Zero(t, src.finalized)
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())
	assert.Equal(t, 1, src.finalized)

	written, ok := fake.Written("/tmp/trace_out")
	require.True(t, ok)
	assert.Equal(t, "my_trace", written.Name)
	require.Len(t, written.Streams, 1)
	require.NotNil(t, written.Streams[0].Clock)
	assert.Equal(t, "monotonic", written.Streams[0].Clock.Name)
	require.Len(t, written.Events, 10)

	it, err := lib.NewTraceIterator(bt2.LoggingWarn, bt2.CtfFsParams{Inputs: []string{"/tmp/trace_out"}})
	require.NoError(t, err)
	events := collect(t, it)
	require.NoError(t, it.Close())
	require.Len(t, events, 10)
	assert.Equal(t, "[10] event_foo (ID=0)\n  stream ID: 0\n  payload: { field_bar = 'value 1', count = 1 }", events[0].String())
	assert.Equal(t, "[100] event_foo (ID=0)\n  stream ID: 0\n  payload: { field_bar = 'value 10', count = 10 }", events[9].String())
	assert.Equal(t, "my_trace", it.TraceProperties().Name)

	requireBalanced(t, fake)
}

func TestEncoderWritesUnderTraceName(t *testing.T) {
	lib, fake := openFake(t)
	fake.SetBatchSize(3)
	src := &fooSource{events: 4}

	enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", src, bt2.CtfFsSinkParams{Path: "/out"})
	require.NoError(t, err)
	require.NoError(t, enc.Run(context.Background()))
	require.NoError(t, enc.Close())

	_, ok := fake.Written("/out")
	assert.False(t, ok)
	written, ok := fake.Written("/out/my_trace")
	require.True(t, ok)
	require.Len(t, written.Events, 4)
	assert.Nil(t, written.Streams[0].Clock)
	assert.Equal(t, uint64(0), written.Events[3].Cycles)
	require.NotNil(t, written.Events[3].Payload)
	assert.Equal(t, []fakebt.Field{fakebt.Str("field_bar", "value 4"), fakebt.U64("count", 4)}, written.Events[3].Payload.Members)
	requireBalanced(t, fake)
}

func TestEncoderEveryMemberType(t *testing.T) {
	lib, fake := openFake(t)
	members := []bt2.PayloadMember{
		{Name: "b", Type: bt2.FieldBool},
		{Name: "u", Type: bt2.FieldUnsignedInteger},
		{Name: "i", Type: bt2.FieldSignedInteger},
		{Name: "f", Type: bt2.FieldSingleReal},
		{Name: "d", Type: bt2.FieldDoubleReal},
		{Name: "s", Type: bt2.FieldString},
	}
	var ec *bt2.EventClass
	src := &fooSource{}
	src.next = func(s *fooSource, it *bt2.SelfMessageIterator) (bt2.NextStatus, error) {
		if s.sent > 0 {
			return bt2.NextEnd, nil
		}
		s.sent++
		var err error
		if ec, err = s.sc.NewEventClass("typed", members...); err != nil {
			return bt2.NextOK, err
		}
		assert.Equal(t, members, ec.Members())
		assert.Equal(t, "typed", ec.Name())
		if err := it.StreamBeginning(s.stream); err != nil {
			return bt2.NextOK, err
		}
		if err := it.Event(ec, s.stream, 0, true, uint8(7), int16(-3), float32(1.5), 2.25, "x"); err != nil {
			return bt2.NextOK, err
		}
		return bt2.NextEnd, it.StreamEnd(s.stream)
	}

	enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "typed", src, bt2.CtfFsSinkParams{Path: "/typed", AssumeSingleTrace: boolPtr(true)})
	require.NoError(t, err)
	require.NoError(t, enc.Run(context.Background()))
	require.NoError(t, enc.Close())
	require.NoError(t, ec.Close())

	written, ok := fake.Written("/typed")
	require.True(t, ok)
	require.Len(t, written.Events, 1)
	assert.Equal(t, []fakebt.Field{
		fakebt.Bool("b", true),
		fakebt.U64("u", 7),
		fakebt.I64("i", -3),
		fakebt.F32("f", 1.5),
		fakebt.F64("d", 2.25),
		fakebt.Str("s", "x"),
	}, written.Events[0].Payload.Members)
	requireBalanced(t, fake)
}

// emitOnce runs a source whose Next calls emit once and ends, returning
// what emit reported.
func emitOnce(t *testing.T, batch int, emit func(s *fooSource, it *bt2.SelfMessageIterator) error) error {
	t.Helper()
	lib, fake := openFake(t)
	fake.SetBatchSize(batch)
	var got error
	src := &fooSource{}
	src.next = func(s *fooSource, it *bt2.SelfMessageIterator) (bt2.NextStatus, error) {
		if s.sent == 0 {
			s.sent++
			got = emit(s, it)
		}
		return bt2.NextEnd, nil
	}
	enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "once", src, bt2.CtfFsSinkParams{Path: "/once"})
	require.NoError(t, err)
	require.NoError(t, enc.Run(context.Background()))
	require.NoError(t, enc.Close())
	requireBalanced(t, fake)
	return got
}

func TestEncoderEventValidation(t *testing.T) {
	t.Run("value count", func(t *testing.T) {
		err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			return it.Event(s.ec, s.stream, 0, "only one")
		})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	})
	t.Run("value type", func(t *testing.T) {
		err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			return it.Event(s.ec, s.stream, 0, 42, uint64(1))
		})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	})
	t.Run("NUL in string", func(t *testing.T) {
		err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			return it.Event(s.ec, s.stream, 0, "a\x00b", uint64(1))
		})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	})
	t.Run("foreign stream class", func(t *testing.T) {
		err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			other, err := s.tc.NewStreamClass(nil)
			require.NoError(t, err)
			defer other.Close()
			stream, err := other.NewStream(s.trace)
			require.NoError(t, err)
			defer stream.Close()
			return it.Event(s.ec, stream, 0, "x", uint64(1))
		})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	})
	t.Run("capacity", func(t *testing.T) {
		err := emitOnce(t, 2, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			assert.Equal(t, uint64(2), it.Capacity())
			require.NoError(t, it.StreamBeginning(s.stream))
			require.NoError(t, it.Event(s.ec, s.stream, 0, "x", uint64(1)))
			assert.Zero(t, it.Capacity())
			return it.StreamEnd(s.stream)
		})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	})
	t.Run("closed stream", func(t *testing.T) {
		err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
			stream, err := s.sc.NewStream(s.trace)
			require.NoError(t, err)
			require.NoError(t, stream.Close())
			return it.StreamBeginning(stream)
		})
		assert.ErrorIs(t, err, bt2.ErrClosed)
	})
}

func TestSelfMessageIteratorDiesAfterNext(t *testing.T) {
	var kept *bt2.SelfMessageIterator
	err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
		kept = it
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, kept.Capacity())
	requireClosed(t, kept.StreamBeginning(nil))
}

func TestEncoderClassValidation(t *testing.T) {
	err := emitOnce(t, 8, func(s *fooSource, it *bt2.SelfMessageIterator) error {
		_, err := s.sc.NewEventClass("dup",
			bt2.PayloadMember{Name: "a", Type: bt2.FieldBool},
			bt2.PayloadMember{Name: "a", Type: bt2.FieldString})
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
		_, err = s.sc.NewEventClass("nested", bt2.PayloadMember{Name: "a", Type: bt2.FieldStructure})
		assert.ErrorIs(t, err, bt2.ErrUnsupported)
		_, err = s.sc.NewEventClass("")
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
		_, err = s.tc.NewTrace("bad\x00name")
		assert.ErrorIs(t, err, bt2.ErrInvalidArgument)

		empty, err := s.sc.NewEventClass("empty")
		require.NoError(t, err)
		defer empty.Close()
		assert.Empty(t, empty.Members())
		return it.Event(empty, s.stream, 0)
	})
	require.NoError(t, err)
}

// clockSource checks clock class validation from its Initialize.
type clockSource struct {
	t *testing.T
}

func (c clockSource) Initialize(self *bt2.SelfSource) error {
	_, err := self.NewClockClass(bt2.ClockClassProperties{})
	assert.ErrorIs(c.t, err, bt2.ErrInvalidArgument)
	_, err = self.NewClockClass(bt2.ClockClassProperties{Frequency: 10, OffsetCycles: 10})
	assert.ErrorIs(c.t, err, bt2.ErrInvalidArgument)
	_, err = self.NewClockClass(bt2.ClockClassProperties{Frequency: 10, Name: "a\x00"})
	assert.ErrorIs(c.t, err, bt2.ErrInvalidArgument)
	name, err := self.Name()
	require.NoError(c.t, err)
	assert.Equal(c.t, "clocks", name)
	require.NoError(c.t, self.AddOutputPort("first"))
	require.NoError(c.t, self.AddOutputPort("second"))
	assert.Error(c.t, self.AddOutputPort("first"))
	return nil
}

func (clockSource) Next(*bt2.SelfMessageIterator) (bt2.NextStatus, error) { return bt2.NextEnd, nil }
func (clockSource) Finalize(*bt2.SelfSource)                              {}

func TestSourceOwnPorts(t *testing.T) {
	lib, fake := openFake(t)
	cls, err := lib.NewSourceComponentClass("clocks")
	require.NoError(t, err)
	g, err := lib.NewGraph()
	require.NoError(t, err)

	src, err := g.AddSourceComponent(cls, "clocks", nil, clockSource{t: t}, bt2.LoggingNone)
	require.NoError(t, err)
	n, err := src.OutputPortCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, g.Close())
	require.NoError(t, cls.Close())
	requireBalanced(t, fake)
}

func TestEncoderSourceFailures(t *testing.T) {
	t.Run("initialize", func(t *testing.T) {
		lib, fake := openFake(t)
		src := &fooSource{initErr: errors.New("no sensor")}
		_, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", src, bt2.CtfFsSinkParams{Path: "/out"})
		require.ErrorIs(t, err, bt2.ErrFatal)
		assert.Zero(t, src.finalized)
		requireBalanced(t, fake)
	})
	t.Run("next", func(t *testing.T) {
		lib, fake := openFake(t)
		src := &fooSource{events: 5, failAt: 3}
		enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", src, bt2.CtfFsSinkParams{Path: "/out"})
		require.NoError(t, err)
		require.ErrorIs(t, enc.Run(context.Background()), bt2.ErrFatal)
		require.NoError(t, enc.Close())
		assert.Equal(t, 1, src.finalized)
		_, ok := fake.Written("/out/my_trace")
		assert.False(t, ok)
		requireBalanced(t, fake)
	})
	t.Run("cancelled", func(t *testing.T) {
		lib, fake := openFake(t)
		src := &fooSource{events: 5}
		enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", src, bt2.CtfFsSinkParams{Path: "/out"})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, enc.Run(ctx), context.Canceled)
		require.NoError(t, enc.Close())
		_, err = enc.RunOnce()
		require.ErrorIs(t, err, bt2.ErrClosed)
		requireBalanced(t, fake)
	})
}

func TestEncoderReleasesOnEveryFailure(t *testing.T) {
	steps := []string{
		"ValueMapInsertEntry",
		"PluginFind",
		"ComponentClassSourceCreate",
		"GraphCreate",
		"GraphAddSourceComponent",
		"SelfComponentSourceAddOutputPort",
		"TraceClassCreate",
		"ClockClassCreate",
		"StreamClassCreate",
		"FieldClassCreate",
		"FieldClassStructureAppendMember",
		"EventClassCreate",
		"TraceCreate",
		"TraceSetName",
		"StreamCreate",
		"GraphAddFilterComponent",
		"GraphAddSinkComponent",
		"GraphConnectPorts",
		"GraphRunOnce",
		"MessageStreamBeginningCreate",
		"MessageEventCreate",
		"FieldStringSet",
		"MessageStreamEndCreate",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			lib, fake := openFake(t)
			fake.Fail(step, backend.StatusMemoryError)
			src := &fooSource{events: 2, clocked: true}

			enc, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", src, bt2.CtfFsSinkParams{Path: "/out"})
			if err == nil {
				err = enc.Run(context.Background())
				enc.Close()
			}
			require.Error(t, err)
			requireBalanced(t, fake)
		})
	}
}

func TestGoSourceClassNeedsMethods(t *testing.T) {
	lib, fake := openFake(t)
	cls, err := lib.NewSourceComponentClass("mine")
	require.NoError(t, err)
	defer cls.Close()
	typ, err := cls.Type()
	require.NoError(t, err)
	assert.Equal(t, bt2.ComponentClassSource, typ)

	ctf, err := lib.FindPlugin("ctf", bt2.StaticOnly())
	require.NoError(t, err)
	defer ctf.Close()
	fs, err := ctf.SourceComponentClass("fs")
	require.NoError(t, err)

	g, err := lib.NewGraph()
	require.NoError(t, err)
	defer g.Close()

	before := fake.CallCount()
	_, err = g.AddSourceComponent(cls, "mine", nil, nil, bt2.LoggingNone)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = g.AddSourceComponent(fs, "fs", nil, &fooSource{}, bt2.LoggingNone)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount())

	_, err = lib.NewSourceComponentClass("")
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
}

func TestNewEncoderPipelineArguments(t *testing.T) {
	lib, fake := openFake(t)
	before := fake.CallCount()
	_, err := lib.NewEncoderPipeline(bt2.LoggingNone, "foo", nil, bt2.CtfFsSinkParams{Path: "/out"})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = lib.NewEncoderPipeline(bt2.LoggingNone, "", &fooSource{}, bt2.CtfFsSinkParams{Path: "/out"})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = lib.NewEncoderPipeline(bt2.LoggingLevel(-1), "foo", &fooSource{}, bt2.CtfFsSinkParams{Path: "/out"})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = lib.NewEncoderPipeline(bt2.LoggingNone, "foo", &fooSource{}, bt2.CtfFsSinkParams{})
	assert.ErrorIs(t, err, bt2.ErrCtfSinkRequiresPath)
	assert.Equal(t, before, fake.CallCount())
}

func TestCtfFsSinkParamsMap(t *testing.T) {
	m, err := bt2.CtfFsSinkParams{Path: "/out"}.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/out"}, m)

	m, err = bt2.CtfFsSinkParams{
		Path:                   "/out",
		AssumeSingleTrace:      boolPtr(true),
		IgnoreDiscardedEvents:  boolPtr(false),
		IgnoreDiscardedPackets: boolPtr(true),
		Quiet:                  boolPtr(true),
	}.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"path":                     "/out",
		"assume-single-trace":      true,
		"ignore-discarded-events":  false,
		"ignore-discarded-packets": true,
		"quiet":                    true,
	}, m)

	_, err = bt2.CtfFsSinkParams{}.Map()
	assert.ErrorIs(t, err, bt2.ErrCtfSinkRequiresPath)
	_, err = bt2.CtfFsSinkParams{Path: "/o\x00ut"}.Map()
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
}
