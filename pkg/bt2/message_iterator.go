package bt2

import (
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// NextStatus is the successful outcome of MessageIterator.Next.
type NextStatus int

const (
	NextOK NextStatus = iota
	NextTryAgain
	NextEnd
)

func (s NextStatus) String() string {
	switch s {
	case NextOK:
		return "ok"
	case NextTryAgain:
		return "try-again"
	case NextEnd:
		return "end"
	default:
		return "unknown"
	}
}

// MessageIterator is an owned message iterator created by a sink.
type MessageIterator struct {
	ref own.Ref
}

func newMessageIterator(api backend.API, p backend.Ptr) *MessageIterator {
	it := &MessageIterator{ref: own.Take(api, backend.KindMessageIterator, p)}
	runtime.SetFinalizer(it, (*MessageIterator).Close)
	return it
}

func (it *MessageIterator) handle() *own.Ref {
	if it == nil {
		return nil
	}
	return &it.ref
}

// Close releases the iterator.
func (it *MessageIterator) Close() error {
	if it == nil {
		return nil
	}
	if it.ref.Release() {
		runtime.SetFinalizer(it, nil)
	}
	return nil
}

// Next returns the next batch of messages. The caller owns every returned
// message and must Close it, see CloseMessages. With NextTryAgain and
// NextEnd the batch is empty.
func (it *MessageIterator) Next() (NextStatus, []*Message, error) {
	const op = "message_iterator.next"
	api, p, err := use(op, it.handle())
	if err != nil {
		return NextOK, nil, err
	}
	defer runtime.KeepAlive(it)
	ptrs, st := api.MessageIteratorNext(p)
	switch st {
	case backend.StatusOK:
	case backend.StatusAgain:
		return NextTryAgain, nil, nil
	case backend.StatusEnd:
		return NextEnd, nil, nil
	default:
		return NextOK, nil, fail(api, op, st)
	}
	msgs := make([]*Message, 0, len(ptrs))
	for _, m := range ptrs {
		msgs = append(msgs, newMessage(api, m))
	}
	return NextOK, msgs, nil
}

// CloseMessages closes every message of a batch.
func CloseMessages(msgs []*Message) {
	for _, m := range msgs {
		m.Close()
	}
}
