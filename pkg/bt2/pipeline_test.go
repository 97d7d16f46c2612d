package bt2_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

func collect(t *testing.T, it *bt2.TraceIterator) []bt2.OwnedEvent {
	t.Helper()
	var out []bt2.OwnedEvent
	for ev, err := range it.All() {
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestTraceIteratorReadsEveryEvent(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/kernel", sampleTrace())

	it, err := lib.NewTraceIterator(bt2.LoggingWarn, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
	require.NoError(t, err)

	events := collect(t, it)
	require.Len(t, events, 3)
	assert.Equal(t, "sched_switch", events[0].Class.Name)
	assert.Equal(t, "irq_entry", events[1].Class.Name)
	assert.Equal(t, uint64(3), events[2].Class.ID)

	assert.Equal(t,
		"[100] sched_switch (ID=1)\n"+
			"  stream ID: 0\n"+
			"  log_level: Info\n"+
			"  payload: { prev_comm = 'swapper', prev_tid = 0, prev_state = (['EXIT_DEAD', 'TASK_RUNNING'] : container = 1) }\n"+
			"  common context: { cpu_id = 3 }",
		events[0].String())
	assert.Equal(t, "[200] irq_entry (ID=2)\n  stream ID: 1\n  payload: { irq = 7 }", events[1].String())
	assert.Equal(t, "[300] ID=3\n  stream ID: 0", events[2].String())

	props := it.TraceProperties()
	assert.Equal(t, "kernel", props.Name)
	assert.Equal(t, uuid.NullUUID{UUID: uuid.UUID(traceUUID), Valid: true}, props.UUID)
	assert.Equal(t, map[string]any{"hostname": "box", "tracer_major": int64(2)}, props.Env)

	streams := it.StreamProperties()
	require.Len(t, streams, 2)
	assert.Equal(t, uint64(0), streams[0].ID)
	assert.Equal(t, "chan0", streams[0].Name)
	assert.Equal(t, uint64(1), streams[1].ID)
	require.NotNil(t, streams[1].Clock)
	assert.Equal(t, uint64(1_000_000_000), streams[1].Clock.Frequency)
	assert.Equal(t, "monotonic", streams[1].Clock.Name)

	assert.False(t, it.Next(), "exhausted iterator must stay exhausted")
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
	assert.Equal(t, "kernel", it.TraceProperties().Name)
	requireBalanced(t, fake)
}

func TestTraceIteratorSmallBatches(t *testing.T) {
	lib, fake := openFake(t)
	fake.SetBatchSize(1)
	tr := sampleTrace()
	tr.AgainBefore = 2
	fake.AddTrace("/traces/kernel", tr)

	it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
	require.NoError(t, err)
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 3, n)
}

func TestTraceIteratorEarlyBreakReleasesEverything(t *testing.T) {
	lib, fake := openFake(t)
	fake.SetBatchSize(2)
	fake.AddTrace("/traces/kernel", sampleTrace())

	it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
	require.NoError(t, err)
	for range it.All() {
		break
	}
	require.NoError(t, it.Close())
	assert.Equal(t, fake.Acquired(backend.KindMessageIterator), fake.Released(backend.KindMessageIterator))
	requireBalanced(t, fake)
}

func TestTraceIteratorParams(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/kernel", sampleTrace())

	name := "renamed"
	offS := int64(10)
	force := true
	it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{
		Inputs:                         []string{"/traces/kernel"},
		TraceName:                      &name,
		ClockClassOffsetS:              &offS,
		ForceClockClassOriginUnixEpoch: &force,
	})
	require.NoError(t, err)
	defer it.Close()

	params, ok := fake.ComponentParams(bt2.CtfFsNodeName)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"inputs":                              []any{"/traces/kernel"},
		"trace-name":                          "renamed",
		"clock-class-offset-s":                int64(10),
		"force-clock-class-origin-unix-epoch": true,
	}, params)

	events := collect(t, it)
	require.NotEmpty(t, events)
	require.NotNil(t, events[0].ClockSnapshot)
	assert.Equal(t, int64(10_000_000_100), *events[0].ClockSnapshot)
	assert.Equal(t, "renamed", it.TraceProperties().Name)
	for _, s := range it.StreamProperties() {
		require.NotNil(t, s.Clock)
		assert.True(t, s.Clock.UnixEpochOrigin)
		assert.Equal(t, int64(10), s.Clock.OffsetSeconds)
	}
}

func TestTraceIteratorDiscardedMessages(t *testing.T) {
	lib, fake := openFake(t)
	tr := sampleTrace()
	tr.DiscardedEvents = 4
	tr.DiscardedPackets = 1
	fake.AddTrace("/traces/kernel", tr)

	it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
	require.NoError(t, err)
	defer it.Close()
	assert.Len(t, collect(t, it), 3)
	assert.Contains(t, fake.Calls(), "MessageDiscardedEventsCount")
	assert.Contains(t, fake.Calls(), "MessageDiscardedPacketsCount")
}

func TestTraceIteratorStreamWithoutClock(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/noclock", &fakebt.Trace{
		Streams: []fakebt.Stream{{ID: 5}},
		Events:  []fakebt.Event{{Stream: 5, ClassID: 9, Name: "tick"}},
	})

	it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/noclock"}})
	require.NoError(t, err)
	defer it.Close()

	events := collect(t, it)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].ClockSnapshot)
	assert.Equal(t, "[??] tick (ID=9)\n  stream ID: 5", events[0].String())
	assert.Equal(t, []bt2.StreamProperties{{ID: 5}}, it.StreamProperties())
	assert.Equal(t, bt2.TraceProperties{Env: map[string]any{}}, it.TraceProperties())
}

func TestTraceIteratorRequiresInputs(t *testing.T) {
	lib, fake := openFake(t)
	before := fake.CallCount()

	_, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{})
	require.ErrorIs(t, err, bt2.ErrCtfSourceRequiresInputs)
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount(), "invalid input must not reach the library")

	_, err = lib.NewTraceIterator(bt2.LoggingLevel(42), bt2.CtfFsParams{Inputs: []string{"x"}})
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount())
}

func TestTraceIteratorSourceWithoutStreams(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/empty", &fakebt.Trace{Name: "empty"})

	_, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/empty"}})
	require.ErrorIs(t, err, bt2.ErrCtfSourceMissingOutputPorts)
	require.ErrorIs(t, err, bt2.ErrNotFound)
	requireBalanced(t, fake)
}

func TestTraceIteratorUnknownInput(t *testing.T) {
	lib, fake := openFake(t)

	_, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/does/not/exist"}})
	require.ErrorIs(t, err, bt2.ErrFatal)
	requireBalanced(t, fake)
}

func TestTraceIteratorReleasesOnEveryFailure(t *testing.T) {
	steps := []string{
		"PluginFind",
		"ComponentClassSinkCreate",
		"GraphCreate",
		"GraphAddSourceComponent",
		"GraphAddFilterComponent",
		"GraphAddSinkComponent",
		"SelfComponentSinkAddInputPort",
		"GraphConnectPorts",
		"GraphRunOnce",
		"MessageIteratorCreateFromSinkComponent",
		"MessageIteratorNext",
		"ValueMapInsertEntry",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			lib, fake := openFake(t)
			fake.AddTrace("/traces/kernel", sampleTrace())
			fake.Fail(step, backend.StatusMemoryError)

			it, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
			if err == nil {
				for range it.All() {
				}
				err = it.Err()
				it.Close()
			}
			require.Error(t, err)
			requireBalanced(t, fake)
		})
	}
}

func TestTraceIteratorSinkFailureCarriesCause(t *testing.T) {
	lib, fake := openFake(t)
	tr := sampleTrace()
	tr.Env = append(tr.Env, fakebt.EnvEntry{Name: "ratio", Value: 0.5})
	fake.AddTrace("/traces/kernel", tr)

	_, err := lib.NewTraceIterator(bt2.LoggingNone, bt2.CtfFsParams{Inputs: []string{"/traces/kernel"}})
	require.Error(t, err)
	assert.Equal(t, bt2.KindFatal, bt2.KindOf(err))
	require.ErrorIs(t, err, bt2.ErrUnsupported)
	assert.Contains(t, err.Error(), `environment entry "ratio"`)
	requireBalanced(t, fake)
}

func TestLiveStream(t *testing.T) {
	const url = "net://localhost/host/box/session"
	lib, fake := openFake(t)
	tr := sampleTrace()
	tr.AgainBefore = 1
	fake.AddTrace(url, tr)

	s, err := lib.NewLiveStream(bt2.LoggingNone, bt2.LttngLiveParams{URL: url})
	require.NoError(t, err)
	assert.False(t, s.HasMetadata())

	st, err := s.Update()
	require.NoError(t, err)
	assert.Equal(t, bt2.RunTryAgain, st)
	assert.False(t, s.HasMetadata())

	var events []bt2.OwnedEvent
	for range 10 {
		st, err = s.Update()
		require.NoError(t, err)
		for ev := range s.Events() {
			events = append(events, ev)
		}
		if st == bt2.RunEnd {
			break
		}
	}
	assert.Equal(t, bt2.RunEnd, st)
	assert.True(t, s.HasMetadata())
	assert.Len(t, events, 3)
	assert.Zero(t, s.Pending())
	assert.Len(t, s.StreamProperties(), 2)

	require.NoError(t, s.Close())
	_, err = s.Update()
	require.ErrorIs(t, err, bt2.ErrClosed)
	requireBalanced(t, fake)
}

func TestLiveStreamSessionNotFound(t *testing.T) {
	cases := []struct {
		action bt2.SessionNotFoundAction
		check  func(t *testing.T, st bt2.RunStatus, err error)
	}{
		{bt2.SessionNotFoundContinue, func(t *testing.T, st bt2.RunStatus, err error) {
			require.NoError(t, err)
			assert.Equal(t, bt2.RunTryAgain, st)
		}},
		{bt2.SessionNotFoundEnd, func(t *testing.T, st bt2.RunStatus, err error) {
			require.NoError(t, err)
			assert.Equal(t, bt2.RunEnd, st)
		}},
		{bt2.SessionNotFoundFail, func(t *testing.T, _ bt2.RunStatus, err error) {
			require.ErrorIs(t, err, bt2.ErrFatal)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.action.String(), func(t *testing.T) {
			lib, fake := openFake(t)
			action := tc.action
			s, err := lib.NewLiveStream(bt2.LoggingNone, bt2.LttngLiveParams{
				URL:                   "net://localhost/host/box/missing",
				SessionNotFoundAction: &action,
			})
			require.NoError(t, err)

			params, ok := fake.ComponentParams(bt2.LttngLiveNodeName)
			require.True(t, ok)
			assert.Equal(t, action.String(), params["session-not-found-action"])

			st, err := s.Update()
			tc.check(t, st, err)
			assert.False(t, s.HasMetadata())
			require.NoError(t, s.Close())
			requireBalanced(t, fake)
		})
	}
}

func TestLttngLiveParamsValidation(t *testing.T) {
	_, err := bt2.LttngLiveParams{}.Map()
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)

	bad := bt2.SessionNotFoundAction(9)
	_, err = bt2.LttngLiveParams{URL: "net://h/host/x/s", SessionNotFoundAction: &bad}.Map()
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)

	for _, s := range []string{"continue", "fail", "end"} {
		a, err := bt2.ParseSessionNotFoundAction(s)
		require.NoError(t, err)
		assert.Equal(t, s, a.String())
	}
	_, err = bt2.ParseSessionNotFoundAction("retry")
	require.Error(t, err)
}

func TestCtfFsParamsRejectNUL(t *testing.T) {
	_, err := bt2.CtfFsParams{Inputs: []string{"a\x00b"}}.Map()
	require.True(t, errors.Is(err, bt2.ErrInvalidArgument))
}
