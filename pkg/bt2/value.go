package bt2

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// ValueType is the type of a Value.
type ValueType uint64

const (
	ValueNull            = ValueType(backend.ValueNull)
	ValueBool            = ValueType(backend.ValueBool)
	ValueUnsignedInteger = ValueType(backend.ValueUnsignedInteger)
	ValueSignedInteger   = ValueType(backend.ValueSignedInteger)
	ValueReal            = ValueType(backend.ValueReal)
	ValueString          = ValueType(backend.ValueString)
	ValueArray           = ValueType(backend.ValueArray)
	ValueMap             = ValueType(backend.ValueMap)
)

func (t ValueType) String() string {
	switch t {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueUnsignedInteger:
		return "unsigned integer"
	case ValueSignedInteger:
		return "signed integer"
	case ValueReal:
		return "real"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	case ValueMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a libbabeltrace2 value, used for component parameters and trace
// environments. Constructors return owned values; elements and entries are
// borrowed from their container.
type Value struct {
	ref own.Ref
}

func (lib *Library) newValue(op string, create func(backend.API) backend.Ptr) (*Value, error) {
	api, err := lib.backend(op)
	if err != nil {
		return nil, err
	}
	p := create(api)
	if p == nil {
		return nil, createFailed(op)
	}
	return ownedValue(api, p), nil
}

func ownedValue(api backend.API, p backend.Ptr) *Value {
	v := &Value{ref: own.Take(api, backend.KindValue, p)}
	runtime.SetFinalizer(v, (*Value).Close)
	return v
}

// NullValue borrows the null value singleton.
func (lib *Library) NullValue() (*Value, error) {
	const op = "value.null"
	api, err := lib.backend(op)
	if err != nil {
		return nil, err
	}
	return &Value{ref: own.Borrow(api, backend.KindValue, api.ValueNullBorrow(), nil)}, nil
}

// NewBoolValue creates a boolean value.
func (lib *Library) NewBoolValue(v bool) (*Value, error) {
	return lib.newValue("value.bool_create", func(api backend.API) backend.Ptr { return api.ValueBoolCreate(v) })
}

// NewUnsignedValue creates an unsigned integer value.
func (lib *Library) NewUnsignedValue(v uint64) (*Value, error) {
	return lib.newValue("value.integer_unsigned_create", func(api backend.API) backend.Ptr { return api.ValueIntegerUnsignedCreate(v) })
}

// NewSignedValue creates a signed integer value.
func (lib *Library) NewSignedValue(v int64) (*Value, error) {
	return lib.newValue("value.integer_signed_create", func(api backend.API) backend.Ptr { return api.ValueIntegerSignedCreate(v) })
}

// NewRealValue creates a real value.
func (lib *Library) NewRealValue(v float64) (*Value, error) {
	return lib.newValue("value.real_create", func(api backend.API) backend.Ptr { return api.ValueRealCreate(v) })
}

// NewStringValue creates a string value.
func (lib *Library) NewStringValue(v string) (*Value, error) {
	const op = "value.string_create"
	if err := checkString(op, "string", v); err != nil {
		return nil, err
	}
	return lib.newValue(op, func(api backend.API) backend.Ptr { return api.ValueStringCreate(v) })
}

// NewArrayValue creates an empty array value.
func (lib *Library) NewArrayValue() (*Value, error) {
	return lib.newValue("value.array_create", func(api backend.API) backend.Ptr { return api.ValueArrayCreate() })
}

// NewMapValue creates an empty map value.
func (lib *Library) NewMapValue() (*Value, error) {
	return lib.newValue("value.map_create", func(api backend.API) backend.Ptr { return api.ValueMapCreate() })
}

// ValueFromGo converts plain Go data: nil, bool, signed and unsigned
// integers, float32, float64, string, []string, []any and map[string]any.
// Map entries are inserted in sorted key order. Every intermediate value is
// released, on success and on failure.
func (lib *Library) ValueFromGo(x any) (*Value, error) {
	switch v := x.(type) {
	case nil:
		return lib.NullValue()
	case *Value:
		return v.Acquire()
	case bool:
		return lib.NewBoolValue(v)
	case int:
		return lib.NewSignedValue(int64(v))
	case int8:
		return lib.NewSignedValue(int64(v))
	case int16:
		return lib.NewSignedValue(int64(v))
	case int32:
		return lib.NewSignedValue(int64(v))
	case int64:
		return lib.NewSignedValue(v)
	case uint:
		return lib.NewUnsignedValue(uint64(v))
	case uint8:
		return lib.NewUnsignedValue(uint64(v))
	case uint16:
		return lib.NewUnsignedValue(uint64(v))
	case uint32:
		return lib.NewUnsignedValue(uint64(v))
	case uint64:
		return lib.NewUnsignedValue(v)
	case float32:
		return lib.NewRealValue(float64(v))
	case float64:
		return lib.NewRealValue(v)
	case string:
		return lib.NewStringValue(v)
	case []string:
		elems := make([]any, len(v))
		for i, s := range v {
			elems[i] = s
		}
		return lib.ValueFromGo(elems)
	case []any:
		arr, err := lib.NewArrayValue()
		if err != nil {
			return nil, err
		}
		for _, e := range v {
			if err := lib.appendGo(arr, e); err != nil {
				arr.Close()
				return nil, err
			}
		}
		return arr, nil
	case map[string]any:
		m, err := lib.NewMapValue()
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := lib.insertGo(m, k, v[k]); err != nil {
				m.Close()
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, invalidArg("value.from_go", fmt.Sprintf("unsupported Go type %T", x))
	}
}

func (lib *Library) appendGo(arr *Value, x any) error {
	e, err := lib.ValueFromGo(x)
	if err != nil {
		return err
	}
	defer e.Close()
	return arr.Append(e)
}

func (lib *Library) insertGo(m *Value, key string, x any) error {
	e, err := lib.ValueFromGo(x)
	if err != nil {
		return err
	}
	defer e.Close()
	return m.Insert(key, e)
}

func (v *Value) handle() *own.Ref {
	if v == nil {
		return nil
	}
	return &v.ref
}

// Close releases the value if the wrapper owns it.
func (v *Value) Close() error {
	if v == nil {
		return nil
	}
	if v.ref.Release() {
		runtime.SetFinalizer(v, nil)
	}
	return nil
}

// Acquire returns an owned wrapper holding its own reference.
func (v *Value) Acquire() (*Value, error) {
	const op = "value.get_ref"
	api, p, err := use(op, v.handle())
	if err != nil {
		return nil, err
	}
	if v.ref.Mode() == own.Borrowed && v.ref.Parent() == nil {
		// The null singleton is never reference counted.
		return &Value{ref: own.Borrow(api, backend.KindValue, p, nil)}, nil
	}
	ref, _ := v.ref.Share()
	out := &Value{ref: ref}
	runtime.SetFinalizer(out, (*Value).Close)
	return out, nil
}

// Type returns the value's type.
func (v *Value) Type() (ValueType, error) {
	api, p, err := use("value.type", v.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v)
	return ValueType(api.ValueType(p)), nil
}

func (v *Value) typed(op string, want ValueType) (backend.API, backend.Ptr, error) {
	api, p, err := use(op, v.handle())
	if err != nil {
		return nil, nil, err
	}
	if got := ValueType(api.ValueType(p)); got != want {
		return nil, nil, unsupported(op, "value is "+got.String()+", not "+want.String())
	}
	return api, p, nil
}

// AsBool returns the value of a boolean value.
func (v *Value) AsBool() (bool, error) {
	api, p, err := v.typed("value.bool_get", ValueBool)
	if err != nil {
		return false, err
	}
	defer runtime.KeepAlive(v)
	return api.ValueBoolGet(p), nil
}

// AsUnsigned returns the value of an unsigned integer value.
func (v *Value) AsUnsigned() (uint64, error) {
	api, p, err := v.typed("value.integer_unsigned_get", ValueUnsignedInteger)
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v)
	return api.ValueIntegerUnsignedGet(p), nil
}

// AsSigned returns the value of a signed integer value.
func (v *Value) AsSigned() (int64, error) {
	api, p, err := v.typed("value.integer_signed_get", ValueSignedInteger)
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v)
	return api.ValueIntegerSignedGet(p), nil
}

// AsReal returns the value of a real value.
func (v *Value) AsReal() (float64, error) {
	api, p, err := v.typed("value.real_get", ValueReal)
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v)
	return api.ValueRealGet(p), nil
}

// AsString returns the value of a string value.
func (v *Value) AsString() (string, error) {
	api, p, err := v.typed("value.string_get", ValueString)
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(v)
	return api.ValueStringGet(p), nil
}

// Len returns the length of an array or the size of a map.
func (v *Value) Len() (uint64, error) {
	const op = "value.len"
	api, p, err := use(op, v.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v)
	switch t := ValueType(api.ValueType(p)); t {
	case ValueArray:
		return api.ValueArrayLength(p), nil
	case ValueMap:
		return api.ValueMapSize(p), nil
	default:
		return 0, unsupported(op, t.String()+" has no length")
	}
}

// Index borrows the element at index i of an array.
func (v *Value) Index(i uint64) (*Value, error) {
	const op = "value.array_borrow_element"
	api, p, err := v.typed(op, ValueArray)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(v)
	if i >= api.ValueArrayLength(p) {
		return nil, invalidArg(op, fmt.Sprintf("index %d out of range", i))
	}
	e := api.ValueArrayBorrowElementByIndex(p, i)
	if e == nil {
		return nil, borrowFailed(op)
	}
	return &Value{ref: own.Borrow(api, backend.KindValue, e, v.handle())}, nil
}

// Entry borrows the entry of a map stored under key.
func (v *Value) Entry(key string) (*Value, error) {
	const op = "value.map_borrow_entry"
	if err := checkString(op, "key", key); err != nil {
		return nil, err
	}
	api, p, err := v.typed(op, ValueMap)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(v)
	e := api.ValueMapBorrowEntry(p, key)
	if e == nil {
		return nil, &Error{Op: op, Kind: KindNotFound, Detail: "no entry " + key}
	}
	return &Value{ref: own.Borrow(api, backend.KindValue, e, v.handle())}, nil
}

// Keys returns the keys of a map.
func (v *Value) Keys() ([]string, error) {
	api, p, err := v.typed("value.map_keys", ValueMap)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(v)
	return api.ValueMapKeys(p), nil
}

// Append appends elem to an array. The array takes its own reference; the
// caller keeps its own.
func (v *Value) Append(elem *Value) error {
	const op = "value.array_append_element"
	ep, err := arg(op, "element", elem.handle())
	if err != nil {
		return err
	}
	api, p, err := v.typed(op, ValueArray)
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(v)
	defer runtime.KeepAlive(elem)
	if st := api.ValueArrayAppendElement(p, ep); st != backend.StatusOK {
		return fail(api, op, st)
	}
	return nil
}

// Insert stores elem under key in a map, replacing any previous entry. The
// map takes its own reference; the caller keeps its own.
func (v *Value) Insert(key string, elem *Value) error {
	const op = "value.map_insert_entry"
	if err := CheckName(op, "key", key); err != nil {
		return err
	}
	ep, err := arg(op, "element", elem.handle())
	if err != nil {
		return err
	}
	api, p, err := v.typed(op, ValueMap)
	if err != nil {
		return err
	}
	defer runtime.KeepAlive(v)
	defer runtime.KeepAlive(elem)
	if st := api.ValueMapInsertEntry(p, key, ep); st != backend.StatusOK {
		return fail(api, op, st)
	}
	return nil
}

// ToGo converts the value to plain Go data: nil, bool, uint64, int64,
// float64, string, []any or map[string]any.
func (v *Value) ToGo() (any, error) {
	api, p, err := use("value.to_go", v.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(v)
	return valueToGo(api, p), nil
}

func valueToGo(api backend.API, p backend.Ptr) any {
	switch ValueType(api.ValueType(p)) {
	case ValueBool:
		return api.ValueBoolGet(p)
	case ValueUnsignedInteger:
		return api.ValueIntegerUnsignedGet(p)
	case ValueSignedInteger:
		return api.ValueIntegerSignedGet(p)
	case ValueReal:
		return api.ValueRealGet(p)
	case ValueString:
		return api.ValueStringGet(p)
	case ValueArray:
		n := api.ValueArrayLength(p)
		out := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			out = append(out, valueToGo(api, api.ValueArrayBorrowElementByIndex(p, i)))
		}
		return out
	case ValueMap:
		keys := api.ValueMapKeys(p)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = valueToGo(api, api.ValueMapBorrowEntry(p, k))
		}
		return out
	default:
		return nil
	}
}
