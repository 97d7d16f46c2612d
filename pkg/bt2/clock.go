package bt2

import (
	"runtime"

	"github.com/google/uuid"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// ClockClassProperties describes a clock class. The struct is comparable.
type ClockClassProperties struct {
	Frequency       uint64
	OffsetSeconds   int64
	OffsetCycles    uint64
	Precision       uint64
	UnixEpochOrigin bool
	Name            string
	Description     string
	UUID            uuid.NullUUID
}

// ClockClass is a clock class borrowed from a stream.
type ClockClass struct {
	ref own.Ref
}

func (c *ClockClass) handle() *own.Ref {
	if c == nil {
		return nil
	}
	return &c.ref
}

// Close releases a clock class created with SelfSource.NewClockClass.
// Borrowed clock classes are left alone.
func (c *ClockClass) Close() error {
	if c == nil {
		return nil
	}
	if c.ref.Release() {
		runtime.SetFinalizer(c, nil)
	}
	return nil
}

// Properties reads the clock class's properties.
func (c *ClockClass) Properties() (ClockClassProperties, error) {
	api, p, err := use("clock_class.properties", c.handle())
	if err != nil {
		return ClockClassProperties{}, err
	}
	defer runtime.KeepAlive(c)
	return clockClassProperties(api.ClockClassProperties(p)), nil
}

func clockClassProperties(b backend.ClockClassProperties) ClockClassProperties {
	props := ClockClassProperties{
		Frequency:       b.Frequency,
		OffsetSeconds:   b.OffsetSeconds,
		OffsetCycles:    b.OffsetCycles,
		Precision:       b.Precision,
		UnixEpochOrigin: b.UnixEpoch,
	}
	if b.HasName {
		props.Name = b.Name
	}
	if b.HasDesc {
		props.Description = b.Description
	}
	props.UUID = nullUUID(b.UUID)
	return props
}

func nullUUID(b []byte) uuid.NullUUID {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: u, Valid: true}
}

// ClockSnapshot is a clock value borrowed from a message.
type ClockSnapshot struct {
	ref own.Ref
}

func (cs *ClockSnapshot) handle() *own.Ref {
	if cs == nil {
		return nil
	}
	return &cs.ref
}

// Cycles returns the raw clock value.
func (cs *ClockSnapshot) Cycles() (uint64, error) {
	api, p, err := use("clock_snapshot.get_value", cs.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(cs)
	return api.ClockSnapshotValue(p), nil
}

// NsFromOrigin converts the snapshot to nanoseconds from its clock's
// origin. ok is false when the result does not fit an int64.
func (cs *ClockSnapshot) NsFromOrigin() (ns int64, ok bool, err error) {
	const op = "clock_snapshot.get_ns_from_origin"
	api, p, err := use(op, cs.handle())
	if err != nil {
		return 0, false, err
	}
	defer runtime.KeepAlive(cs)
	ns, st := api.ClockSnapshotNsFromOrigin(p)
	switch st {
	case backend.StatusOK:
		return ns, true, nil
	case backend.StatusOverflowError:
		api.CurrentThreadClearError()
		return 0, false, nil
	}
	return 0, false, fail(api, op, st)
}
