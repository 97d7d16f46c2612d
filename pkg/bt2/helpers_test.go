package bt2_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// openFake opens a Library over a fresh simulated backend and fails the test
// if the binding misused a handle.
func openFake(t *testing.T) (*bt2.Library, *fakebt.Library) {
	t.Helper()
	fake := fakebt.New()
	lib, err := bt2.Open(bt2.Config{Backend: fake, Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() {
		if v := fake.Violations(); len(v) > 0 {
			t.Errorf("handle misuse: %v", v)
		}
	})
	return lib, fake
}

func requireBalanced(t *testing.T, fake *fakebt.Library) {
	t.Helper()
	require.Empty(t, fake.Outstanding(), "unreleased references")
	require.Empty(t, fake.Violations())
}

func clock(freq uint64) *fakebt.Clock {
	return &fakebt.Clock{Frequency: freq, Name: "monotonic", UUID: make([]byte, 16)}
}

var traceUUID = []byte{
	0x2a, 0x6e, 0x4f, 0x5e, 0x0b, 0x1c, 0x4b, 0x7f,
	0x9a, 0x3d, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
}

// sampleTrace has two streams with a 1 GHz clock and three events.
func sampleTrace() *fakebt.Trace {
	return &fakebt.Trace{
		Name: "kernel",
		UUID: traceUUID,
		Env: []fakebt.EnvEntry{
			{Name: "hostname", Value: "box"},
			{Name: "tracer_major", Value: int64(2)},
		},
		Streams: []fakebt.Stream{
			{ID: 1, Name: "chan1", Clock: clock(1_000_000_000)},
			{ID: 0, Name: "chan0", Clock: clock(1_000_000_000)},
		},
		Events: []fakebt.Event{
			{
				Stream: 0, ClassID: 1, Name: "sched_switch", Cycles: 100,
				HasLogLevel: true, LogLevel: int(bt2.EventLogLevelInfo),
				Payload: fakebt.Struct(
					fakebt.Str("prev_comm", "swapper"),
					fakebt.I64("prev_tid", 0),
					fakebt.UEnum("prev_state", 1, "TASK_RUNNING", "EXIT_DEAD"),
				),
				CommonContext: fakebt.Struct(fakebt.U64("cpu_id", 3)),
			},
			{
				Stream: 1, ClassID: 2, Name: "irq_entry", Cycles: 200,
				Payload: fakebt.Struct(fakebt.I64("irq", 7), fakebt.Str("name", "")),
			},
			{
				Stream: 0, ClassID: 3, Cycles: 300,
			},
		},
	}
}
