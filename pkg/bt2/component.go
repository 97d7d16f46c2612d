package bt2

import (
	"runtime"
	"strconv"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// Component is a component of a graph. Components returned by the graph are
// borrowed; Acquire yields an owned wrapper, which keeps the graph alive.
type Component struct {
	ref own.Ref
}

func newComponent(api backend.API, p backend.Ptr, parent *own.Ref) *Component {
	return &Component{ref: own.Borrow(api, backend.KindComponent, p, parent)}
}

func (c *Component) handle() *own.Ref {
	if c == nil {
		return nil
	}
	return &c.ref
}

// Close releases the component if the wrapper owns it.
func (c *Component) Close() error {
	if c == nil {
		return nil
	}
	if c.ref.Release() {
		runtime.SetFinalizer(c, nil)
	}
	return nil
}

// Acquire returns an owned wrapper holding its own reference.
func (c *Component) Acquire() (*Component, error) {
	const op = "component.get_ref"
	if _, _, err := use(op, c.handle()); err != nil {
		return nil, err
	}
	ref, ok := c.ref.Share()
	if !ok {
		return nil, unsupported(op, "handle is not reference counted")
	}
	out := &Component{ref: ref}
	runtime.SetFinalizer(out, (*Component).Close)
	return out, nil
}

// Name returns the component's name in its graph.
func (c *Component) Name() (string, error) {
	api, p, err := use("component.name", c.handle())
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(c)
	return api.ComponentName(p), nil
}

// ClassType returns the type of the component's class.
func (c *Component) ClassType() (ComponentClassType, error) {
	api, p, err := use("component.class_type", c.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(c)
	return ComponentClassType(api.ComponentClassTypeOf(p)), nil
}

// InputPortCount returns the number of input ports; sources have none.
func (c *Component) InputPortCount() (uint64, error) {
	api, p, err := use("component.input_port_count", c.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(c)
	if ComponentClassType(api.ComponentClassTypeOf(p)) == ComponentClassSource {
		return 0, nil
	}
	return api.ComponentInputPortCount(p), nil
}

// OutputPortCount returns the number of output ports; sinks have none.
func (c *Component) OutputPortCount() (uint64, error) {
	api, p, err := use("component.output_port_count", c.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(c)
	if ComponentClassType(api.ComponentClassTypeOf(p)) == ComponentClassSink {
		return 0, nil
	}
	return api.ComponentOutputPortCount(p), nil
}

// InputPort borrows the input port at index i.
func (c *Component) InputPort(i uint64) (*Port, error) {
	const op = "component.borrow_input_port"
	api, p, err := use(op, c.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(c)
	if ComponentClassType(api.ComponentClassTypeOf(p)) == ComponentClassSource {
		return nil, unsupported(op, "source components have no input port")
	}
	if n := api.ComponentInputPortCount(p); i >= n {
		return nil, invalidArg(op, "port index "+strconv.FormatUint(i, 10)+" out of range")
	}
	port := api.ComponentBorrowInputPortByIndex(p, i)
	if port == nil {
		return nil, borrowFailed(op)
	}
	return newPort(api, port, c.handle()), nil
}

// OutputPort borrows the output port at index i.
func (c *Component) OutputPort(i uint64) (*Port, error) {
	const op = "component.borrow_output_port"
	api, p, err := use(op, c.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(c)
	if ComponentClassType(api.ComponentClassTypeOf(p)) == ComponentClassSink {
		return nil, unsupported(op, "sink components have no output port")
	}
	if n := api.ComponentOutputPortCount(p); i >= n {
		return nil, invalidArg(op, "port index "+strconv.FormatUint(i, 10)+" out of range")
	}
	port := api.ComponentBorrowOutputPortByIndex(p, i)
	if port == nil {
		return nil, borrowFailed(op)
	}
	return newPort(api, port, c.handle()), nil
}

// PortType is the direction of a port.
type PortType uint64

const (
	PortInput  = PortType(backend.PortInput)
	PortOutput = PortType(backend.PortOutput)
)

func (t PortType) String() string {
	switch t {
	case PortInput:
		return "input"
	case PortOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Port is a port borrowed from its component.
type Port struct {
	ref own.Ref
}

func newPort(api backend.API, p backend.Ptr, parent *own.Ref) *Port {
	return &Port{ref: own.Borrow(api, backend.KindComponent, p, parent)}
}

func (p *Port) handle() *own.Ref {
	if p == nil {
		return nil
	}
	return &p.ref
}

// Name returns the port's name.
func (p *Port) Name() (string, error) {
	api, ptr, err := use("port.name", p.handle())
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(p)
	return api.PortName(ptr), nil
}

// IsConnected reports whether the port is connected.
func (p *Port) IsConnected() (bool, error) {
	api, ptr, err := use("port.is_connected", p.handle())
	if err != nil {
		return false, err
	}
	defer runtime.KeepAlive(p)
	return api.PortIsConnected(ptr), nil
}

// Type returns the port's direction.
func (p *Port) Type() (PortType, error) {
	api, ptr, err := use("port.type", p.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(p)
	return PortType(api.PortType(ptr)), nil
}
