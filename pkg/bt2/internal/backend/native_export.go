//go:build cgo && babeltrace2

package backend

/*
#include <stdint.h>
#include <babeltrace2/babeltrace.h>
*/
import "C"

import (
	"unsafe"

	"github.com/falcosecurity/plugin-sdk-go/pkg/cgo"
)

// callbacks carries the Go methods of one sink or source component
// instance. Its handle is the component's initialization data on the C
// side; source message iterators copy it into their own data.
type callbacks struct {
	sink     SinkMethods
	source   SourceMethods
	handle   cgo.Handle
	released bool
}

func newCallbacks(sink SinkMethods, source SourceMethods) *callbacks {
	c := &callbacks{sink: sink, source: source}
	c.handle = cgo.NewHandle(c)
	return c
}

func (c *callbacks) release() {
	if c.released {
		return
	}
	c.released = true
	c.handle.Delete()
}

func callbacksFor(h C.uintptr_t) *callbacks {
	if h == 0 || h > cgo.MaxHandle {
		return nil
	}
	c, _ := cgo.Handle(h).Value().(*callbacks)
	return c
}

func sinkFor(h C.uintptr_t) SinkMethods {
	if c := callbacksFor(h); c != nil {
		return c.sink
	}
	return nil
}

func sourceFor(h C.uintptr_t) SourceMethods {
	if c := callbacksFor(h); c != nil {
		return c.source
	}
	return nil
}

func selfPtr(self *C.bt_self_component_sink) Ptr {
	return Ptr(unsafe.Pointer(self))
}

func guard(st *Status) {
	if r := recover(); r != nil {
		*st = StatusError
	}
}

//export btgoSinkInitialize
func btgoSinkInitialize(self *C.bt_self_component_sink, h C.uintptr_t) C.int {
	m := sinkFor(h)
	if m == nil {
		return C.int(StatusError)
	}
	st := StatusError
	func() {
		defer guard(&st)
		st = m.Initialize(selfPtr(self))
	}()
	return C.int(st)
}

//export btgoSinkGraphIsConfigured
func btgoSinkGraphIsConfigured(self *C.bt_self_component_sink, h C.uintptr_t) C.int {
	m := sinkFor(h)
	if m == nil {
		return C.int(StatusError)
	}
	st := StatusError
	func() {
		defer guard(&st)
		st = m.GraphIsConfigured(selfPtr(self))
	}()
	return C.int(st)
}

//export btgoSinkConsume
func btgoSinkConsume(self *C.bt_self_component_sink, h C.uintptr_t) C.int {
	m := sinkFor(h)
	if m == nil {
		return C.int(StatusError)
	}
	st := StatusError
	func() {
		defer guard(&st)
		st = m.Consume(selfPtr(self))
	}()
	return C.int(st)
}

//export btgoSinkFinalize
func btgoSinkFinalize(self *C.bt_self_component_sink, h C.uintptr_t) {
	c := callbacksFor(h)
	if c == nil {
		return
	}
	defer c.release()
	if c.sink == nil {
		return
	}
	var st Status
	defer guard(&st)
	c.sink.Finalize(selfPtr(self))
}

//export btgoSourceInitialize
func btgoSourceInitialize(self *C.bt_self_component_source, h C.uintptr_t) C.int {
	m := sourceFor(h)
	if m == nil {
		return C.int(StatusError)
	}
	st := StatusError
	func() {
		defer guard(&st)
		st = m.Initialize(Ptr(unsafe.Pointer(self)))
	}()
	return C.int(st)
}

//export btgoSourceNext
func btgoSourceNext(it *C.bt_self_message_iterator, h C.uintptr_t, msgs **C.bt_message, capacity C.uint64_t, count *C.uint64_t) C.int {
	m := sourceFor(h)
	if m == nil {
		return C.int(StatusError)
	}
	*count = 0
	var out []Ptr
	st := StatusError
	func() {
		defer guard(&st)
		out, st = m.IteratorNext(Ptr(unsafe.Pointer(it)), uint64(capacity))
	}()
	if st != StatusOK {
		return C.int(st)
	}
	if len(out) == 0 || uint64(len(out)) > uint64(capacity) {
		for _, p := range out {
			C.bt_message_put_ref((*C.bt_message)(p))
		}
		return C.int(StatusError)
	}
	dst := unsafe.Slice(msgs, int(capacity))
	for i, p := range out {
		dst[i] = (*C.bt_message)(p)
	}
	*count = C.uint64_t(len(out))
	return C.int(StatusOK)
}

//export btgoSourceFinalize
func btgoSourceFinalize(self *C.bt_self_component_source, h C.uintptr_t) {
	c := callbacksFor(h)
	if c == nil {
		return
	}
	defer c.release()
	if c.source == nil {
		return
	}
	var st Status
	defer guard(&st)
	c.source.Finalize(Ptr(unsafe.Pointer(self)))
}
