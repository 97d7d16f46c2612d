package bt2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
)

func requireClosed(t *testing.T, err error) {
	t.Helper()
	require.ErrorIs(t, err, bt2.ErrClosed)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
}

func TestComponentsDieWithGraph(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/kernel", sampleTrace())
	g := buildGraph(t, lib, "/traces/kernel", &recordingSink{types: map[bt2.MessageType]int{}})

	port, err := g.source.OutputPort(0)
	require.NoError(t, err)
	require.NoError(t, g.graph.Close())

	before := fake.CallCount()
	_, err = g.source.Name()
	requireClosed(t, err)
	_, err = g.source.ClassType()
	requireClosed(t, err)
	_, err = g.source.OutputPortCount()
	requireClosed(t, err)
	_, err = port.Name()
	requireClosed(t, err)
	_, err = g.sink.Acquire()
	requireClosed(t, err)
	assert.Equal(t, before, fake.CallCount())

	g.close()
	requireBalanced(t, fake)
}

func TestComponentClassDiesWithPlugin(t *testing.T) {
	lib, fake := openFake(t)
	ctf, err := lib.FindPlugin("ctf", bt2.StaticOnly())
	require.NoError(t, err)
	fs, err := ctf.SourceComponentClass("fs")
	require.NoError(t, err)
	owned, err := fs.Acquire()
	require.NoError(t, err)

	require.NoError(t, ctf.Close())
	_, err = fs.Name()
	requireClosed(t, err)

	name, err := owned.Name()
	require.NoError(t, err)
	assert.Equal(t, "fs", name)
	require.NoError(t, owned.Close())
	requireBalanced(t, fake)
}

func TestValueElementsDieWithContainer(t *testing.T) {
	lib, fake := openFake(t)
	m, err := lib.ValueFromGo(map[string]any{"a": []any{int64(1), "x"}})
	require.NoError(t, err)
	arr, err := m.Entry("a")
	require.NoError(t, err)
	elem, err := arr.Index(1)
	require.NoError(t, err)
	kept, err := arr.Acquire()
	require.NoError(t, err)

	require.NoError(t, m.Close())
	before := fake.CallCount()
	_, err = arr.Len()
	requireClosed(t, err)
	_, err = elem.AsString()
	requireClosed(t, err)
	_, err = arr.Acquire()
	requireClosed(t, err)
	assert.Equal(t, before, fake.CallCount())

	n, err := kept.Len()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	require.NoError(t, kept.Close())
	requireBalanced(t, fake)
}

// keepingSink holds on to wrappers borrowed from the first event message
// after the message is closed.
type keepingSink struct {
	recordingSink
	ev      *bt2.Event
	stream  *bt2.Stream
	payload *bt2.Field
	snap    *bt2.ClockSnapshot
}

func (s *keepingSink) Consume(*bt2.SelfSink) (bt2.ConsumeStatus, error) {
	st, msgs, err := s.it.Next()
	if err != nil {
		return bt2.ConsumeOK, err
	}
	defer bt2.CloseMessages(msgs)
	switch st {
	case bt2.NextTryAgain:
		return bt2.ConsumeTryAgain, nil
	case bt2.NextEnd:
		return bt2.ConsumeEnd, nil
	}
	for _, m := range msgs {
		typ, err := m.Type()
		if err != nil || typ != bt2.MessageEvent || s.ev != nil {
			continue
		}
		if s.ev, err = m.Event(); err != nil {
			return bt2.ConsumeOK, err
		}
		if s.stream, err = m.Stream(); err != nil {
			return bt2.ConsumeOK, err
		}
		if s.payload, err = s.ev.Payload(); err != nil {
			return bt2.ConsumeOK, err
		}
		if s.snap, err = m.DefaultClockSnapshot(); err != nil {
			return bt2.ConsumeOK, err
		}
		if _, err := s.payload.Type(); err != nil {
			return bt2.ConsumeOK, err
		}
	}
	return bt2.ConsumeOK, nil
}

func TestMessageContentsDieWithMessage(t *testing.T) {
	lib, fake := openFake(t)
	fake.AddTrace("/traces/kernel", sampleTrace())
	sink := &keepingSink{recordingSink: recordingSink{types: map[bt2.MessageType]int{}}}
	g := buildGraph(t, lib, "/traces/kernel", sink)
	defer g.close()

	for range 10 {
		st, err := g.graph.RunOnce()
		require.NoError(t, err)
		if st == bt2.RunEnd {
			break
		}
	}
	require.NotNil(t, sink.ev)

	before := fake.CallCount()
	_, err := sink.ev.ClassProperties()
	requireClosed(t, err)
	_, err = sink.ev.StreamID()
	requireClosed(t, err)
	_, err = sink.stream.ID()
	requireClosed(t, err)
	_, err = sink.payload.Len()
	requireClosed(t, err)
	_, err = sink.snap.Cycles()
	requireClosed(t, err)
	assert.Equal(t, before, fake.CallCount())
}
