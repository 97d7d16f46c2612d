package fakebt

import (
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type value struct {
	typ     backend.ValueType
	b       bool
	u       uint64
	i       int64
	f       float64
	s       string
	elems   []*object
	keys    []string
	entries map[string]*object
}

func (l *Library) createValue(op string, v *value) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter(op); fail {
		return nil
	}
	return ptrOf(l.give(backend.KindValue, v))
}

func (l *Library) valueOf(op string, p backend.Ptr) *value {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	if v := data[*value](l, op, p); v != nil {
		return v
	}
	return &value{}
}

// ValueNullBorrow implements backend.API.
func (l *Library) ValueNullBorrow() backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ValueNullBorrow")
	return ptrOf(l.null)
}

// ValueBoolCreate implements backend.API.
func (l *Library) ValueBoolCreate(v bool) backend.Ptr {
	return l.createValue("ValueBoolCreate", &value{typ: backend.ValueBool, b: v})
}

// ValueIntegerUnsignedCreate implements backend.API.
func (l *Library) ValueIntegerUnsignedCreate(v uint64) backend.Ptr {
	return l.createValue("ValueIntegerUnsignedCreate", &value{typ: backend.ValueUnsignedInteger, u: v})
}

// ValueIntegerSignedCreate implements backend.API.
func (l *Library) ValueIntegerSignedCreate(v int64) backend.Ptr {
	return l.createValue("ValueIntegerSignedCreate", &value{typ: backend.ValueSignedInteger, i: v})
}

// ValueRealCreate implements backend.API.
func (l *Library) ValueRealCreate(v float64) backend.Ptr {
	return l.createValue("ValueRealCreate", &value{typ: backend.ValueReal, f: v})
}

// ValueStringCreate implements backend.API.
func (l *Library) ValueStringCreate(v string) backend.Ptr {
	return l.createValue("ValueStringCreate", &value{typ: backend.ValueString, s: v})
}

// ValueArrayCreate implements backend.API.
func (l *Library) ValueArrayCreate() backend.Ptr {
	return l.createValue("ValueArrayCreate", &value{typ: backend.ValueArray})
}

// ValueMapCreate implements backend.API.
func (l *Library) ValueMapCreate() backend.Ptr {
	return l.createValue("ValueMapCreate", &value{typ: backend.ValueMap, entries: make(map[string]*object)})
}

// ValueType implements backend.API.
func (l *Library) ValueType(v backend.Ptr) backend.ValueType {
	return l.valueOf("ValueType", v).typ
}

// ValueBoolGet implements backend.API.
func (l *Library) ValueBoolGet(v backend.Ptr) bool {
	return l.valueOf("ValueBoolGet", v).b
}

// ValueIntegerUnsignedGet implements backend.API.
func (l *Library) ValueIntegerUnsignedGet(v backend.Ptr) uint64 {
	return l.valueOf("ValueIntegerUnsignedGet", v).u
}

// ValueIntegerSignedGet implements backend.API.
func (l *Library) ValueIntegerSignedGet(v backend.Ptr) int64 {
	return l.valueOf("ValueIntegerSignedGet", v).i
}

// ValueRealGet implements backend.API.
func (l *Library) ValueRealGet(v backend.Ptr) float64 {
	return l.valueOf("ValueRealGet", v).f
}

// ValueStringGet implements backend.API.
func (l *Library) ValueStringGet(v backend.Ptr) string {
	return l.valueOf("ValueStringGet", v).s
}

// ValueArrayLength implements backend.API.
func (l *Library) ValueArrayLength(v backend.Ptr) uint64 {
	return uint64(len(l.valueOf("ValueArrayLength", v).elems))
}

// ValueArrayBorrowElementByIndex implements backend.API.
func (l *Library) ValueArrayBorrowElementByIndex(v backend.Ptr, i uint64) backend.Ptr {
	val := l.valueOf("ValueArrayBorrowElementByIndex", v)
	if i >= uint64(len(val.elems)) {
		return nil
	}
	return ptrOf(val.elems[i])
}

// ValueArrayAppendElement implements backend.API. The array takes its own
// reference on elem.
func (l *Library) ValueArrayAppendElement(v, elem backend.Ptr) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("ValueArrayAppendElement"); fail {
		return st
	}
	arr := data[*value](l, "ValueArrayAppendElement", v)
	e := l.lookup("ValueArrayAppendElement", elem)
	if arr == nil || e == nil || arr.typ != backend.ValueArray {
		return backend.StatusError
	}
	l.hold(e)
	arr.elems = append(arr.elems, e)
	return backend.StatusOK
}

// ValueMapSize implements backend.API.
func (l *Library) ValueMapSize(v backend.Ptr) uint64 {
	return uint64(len(l.valueOf("ValueMapSize", v).keys))
}

// ValueMapBorrowEntry implements backend.API.
func (l *Library) ValueMapBorrowEntry(v backend.Ptr, key string) backend.Ptr {
	val := l.valueOf("ValueMapBorrowEntry", v)
	return ptrOf(val.entries[key])
}

// ValueMapKeys implements backend.API. Keys come back in insertion order.
func (l *Library) ValueMapKeys(v backend.Ptr) []string {
	return append([]string(nil), l.valueOf("ValueMapKeys", v).keys...)
}

// ValueMapInsertEntry implements backend.API. The map takes its own
// reference on elem and drops the one of a replaced entry.
func (l *Library) ValueMapInsertEntry(v backend.Ptr, key string, elem backend.Ptr) backend.Status {
	l.mu.Lock()
	if st, fail := l.enter("ValueMapInsertEntry"); fail {
		l.mu.Unlock()
		return st
	}
	m := data[*value](l, "ValueMapInsertEntry", v)
	e := l.lookup("ValueMapInsertEntry", elem)
	if m == nil || e == nil || m.typ != backend.ValueMap {
		l.mu.Unlock()
		return backend.StatusError
	}
	l.hold(e)
	old, replaced := m.entries[key]
	if !replaced {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = e
	var pending []finalizeCall
	if replaced {
		pending = l.drop(old)
	}
	l.mu.Unlock()
	finalize(pending)
	return backend.StatusOK
}

// ToGo converts a value handle to plain Go data: nil, bool, uint64, int64,
// float64, string, []any or map[string]any.
func (l *Library) ToGo(p backend.Ptr) any {
	l.mu.Lock()
	defer l.mu.Unlock()
	o := l.lookup("ToGo", p)
	if o == nil {
		return nil
	}
	return toGo(o)
}

func toGo(o *object) any {
	v, ok := o.data.(*value)
	if !ok {
		return nil
	}
	switch v.typ {
	case backend.ValueBool:
		return v.b
	case backend.ValueUnsignedInteger:
		return v.u
	case backend.ValueSignedInteger:
		return v.i
	case backend.ValueReal:
		return v.f
	case backend.ValueString:
		return v.s
	case backend.ValueArray:
		out := make([]any, 0, len(v.elems))
		for _, e := range v.elems {
			out = append(out, toGo(e))
		}
		return out
	case backend.ValueMap:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = toGo(v.entries[k])
		}
		return out
	}
	return nil
}

// ComponentParams returns the parameters a component named name received,
// converted with ToGo, searching every live graph.
func (l *Library) ComponentParams(name string) (map[string]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.objs {
		g, ok := o.data.(*graph)
		if !ok || o.dead {
			continue
		}
		for _, c := range g.components {
			comp := c.data.(*component)
			if comp.name != name {
				continue
			}
			if comp.params == nil {
				return nil, true
			}
			m, _ := toGo(comp.params).(map[string]any)
			return m, true
		}
	}
	return nil, false
}
