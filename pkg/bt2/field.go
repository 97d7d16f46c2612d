package bt2

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// FieldType is the class type of a field. Types this package cannot convert
// keep the library's value and report false from Supported.
type FieldType uint64

const (
	FieldBool                = FieldType(backend.FieldClassBool)
	FieldUnsignedInteger     = FieldType(backend.FieldClassUnsignedInteger)
	FieldSignedInteger       = FieldType(backend.FieldClassSignedInteger)
	FieldSingleReal          = FieldType(backend.FieldClassSingleReal)
	FieldDoubleReal          = FieldType(backend.FieldClassDoubleReal)
	FieldString              = FieldType(backend.FieldClassString)
	FieldUnsignedEnumeration = FieldType(backend.FieldClassUnsignedEnumeration)
	FieldSignedEnumeration   = FieldType(backend.FieldClassSignedEnumeration)
	FieldStructure           = FieldType(backend.FieldClassStructure)
	FieldStaticArray         = FieldType(backend.FieldClassStaticArray)
	FieldDynamicArray        = FieldType(backend.FieldClassDynamicArray)
)

var fieldTypeNames = map[FieldType]string{
	FieldBool:                "bool",
	FieldUnsignedInteger:     "unsigned integer",
	FieldSignedInteger:       "signed integer",
	FieldSingleReal:          "single-precision real",
	FieldDoubleReal:          "double-precision real",
	FieldString:              "string",
	FieldUnsignedEnumeration: "unsigned enumeration",
	FieldSignedEnumeration:   "signed enumeration",
	FieldStructure:           "structure",
	FieldStaticArray:         "static array",
	FieldDynamicArray:        "dynamic array",
}

func (t FieldType) String() string {
	if n, ok := fieldTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("unsupported(%#x)", uint64(t))
}

// Supported reports whether ToOwned converts fields of this type.
func (t FieldType) Supported() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// IsArray reports whether t is a static or dynamic array.
func (t FieldType) IsArray() bool {
	return t == FieldStaticArray || t == FieldDynamicArray
}

// Field is a field borrowed from an event.
type Field struct {
	ref own.Ref
}

func newField(api backend.API, p backend.Ptr, parent *own.Ref) *Field {
	return &Field{ref: own.Borrow(api, backend.KindMessage, p, parent)}
}

func (f *Field) handle() *own.Ref {
	if f == nil {
		return nil
	}
	return &f.ref
}

// Type returns the field's class type.
func (f *Field) Type() (FieldType, error) {
	api, p, err := use("field.class_type", f.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(f)
	return FieldType(api.FieldClassType(p)), nil
}

// Len returns the number of members of a structure or elements of an array.
func (f *Field) Len() (uint64, error) {
	const op = "field.len"
	api, p, err := use(op, f.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(f)
	switch t := FieldType(api.FieldClassType(p)); {
	case t == FieldStructure:
		return api.FieldStructureMemberCount(p), nil
	case t.IsArray():
		return api.FieldArrayLength(p), nil
	default:
		return 0, unsupported(op, t.String()+" field has no members")
	}
}

// Member borrows the member at index i of a structure together with its
// name.
func (f *Field) Member(i uint64) (string, *Field, error) {
	const op = "field.structure_borrow_member"
	api, p, err := use(op, f.handle())
	if err != nil {
		return "", nil, err
	}
	defer runtime.KeepAlive(f)
	if t := FieldType(api.FieldClassType(p)); t != FieldStructure {
		return "", nil, unsupported(op, t.String()+" field has no members")
	}
	if i >= api.FieldStructureMemberCount(p) {
		return "", nil, invalidArg(op, "member index "+strconv.FormatUint(i, 10)+" out of range")
	}
	m := api.FieldStructureBorrowMemberByIndex(p, i)
	if m == nil {
		return "", nil, borrowFailed(op)
	}
	return api.FieldStructureMemberName(p, i), newField(api, m, f.handle()), nil
}

// Element borrows the element at index i of an array.
func (f *Field) Element(i uint64) (*Field, error) {
	const op = "field.array_borrow_element"
	api, p, err := use(op, f.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(f)
	if t := FieldType(api.FieldClassType(p)); !t.IsArray() {
		return nil, unsupported(op, t.String()+" field has no elements")
	}
	if i >= api.FieldArrayLength(p) {
		return nil, invalidArg(op, "element index "+strconv.FormatUint(i, 10)+" out of range")
	}
	e := api.FieldArrayBorrowElementByIndex(p, i)
	if e == nil {
		return nil, borrowFailed(op)
	}
	return newField(api, e, f.handle()), nil
}

// ToOwned copies the field into Go memory. It returns nil for fields that
// carry nothing: unsupported types, empty strings, and structures or arrays
// left empty once those are dropped.
func (f *Field) ToOwned() (*OwnedField, error) {
	const op = "field.to_owned"
	api, p, err := use(op, f.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(f)
	return ownField(api, op, p)
}

func ownField(api backend.API, op string, p backend.Ptr) (*OwnedField, error) {
	t := FieldType(api.FieldClassType(p))
	out := &OwnedField{Type: t}
	switch t {
	case FieldBool:
		out.Value = api.FieldBoolValue(p)
	case FieldUnsignedInteger:
		out.Value = api.FieldUnsignedIntegerValue(p)
	case FieldSignedInteger:
		out.Value = api.FieldSignedIntegerValue(p)
	case FieldSingleReal:
		out.Value = api.FieldRealSingleValue(p)
	case FieldDoubleReal:
		out.Value = api.FieldRealDoubleValue(p)
	case FieldString:
		s := api.FieldStringValue(p)
		if s == "" {
			return nil, nil
		}
		out.Value = s
	case FieldUnsignedEnumeration, FieldSignedEnumeration:
		var labels []string
		var st backend.Status
		if t == FieldUnsignedEnumeration {
			out.Value = api.FieldUnsignedIntegerValue(p)
			labels, st = api.FieldUnsignedEnumerationLabels(p)
		} else {
			out.Value = api.FieldSignedIntegerValue(p)
			labels, st = api.FieldSignedEnumerationLabels(p)
		}
		if st != backend.StatusOK {
			return nil, fail(api, op, st)
		}
		sort.Strings(labels)
		out.Labels = labels
	case FieldStructure:
		n := api.FieldStructureMemberCount(p)
		for i := uint64(0); i < n; i++ {
			m := api.FieldStructureBorrowMemberByIndex(p, i)
			if m == nil {
				return nil, borrowFailed(op)
			}
			mf, err := ownField(api, op, m)
			if err != nil {
				return nil, err
			}
			if mf == nil {
				continue
			}
			mf.Name = api.FieldStructureMemberName(p, i)
			out.Members = append(out.Members, *mf)
		}
		if len(out.Members) == 0 {
			return nil, nil
		}
	case FieldStaticArray, FieldDynamicArray:
		n := api.FieldArrayLength(p)
		for i := uint64(0); i < n; i++ {
			e := api.FieldArrayBorrowElementByIndex(p, i)
			if e == nil {
				return nil, borrowFailed(op)
			}
			ef, err := ownField(api, op, e)
			if err != nil {
				return nil, err
			}
			if ef != nil {
				out.Members = append(out.Members, *ef)
			}
		}
		if len(out.Members) == 0 {
			return nil, nil
		}
	default:
		return nil, nil
	}
	return out, nil
}

// OwnedField is a field copied into Go memory.
//
// Scalars keep their value in Value: bool, uint64, int64, float32, float64 or
// string. Enumerations keep their integer value in Value and their sorted
// mapping labels in Labels. Structures and arrays keep their converted
// members, in order, in Members.
type OwnedField struct {
	// Name is the structure member name, empty at the top level and for
	// array elements.
	Name    string
	Type    FieldType
	Value   any
	Labels  []string
	Members []OwnedField
}

// Member returns the member named name of a structure.
func (f *OwnedField) Member(name string) (*OwnedField, bool) {
	if f == nil {
		return nil, false
	}
	for i := range f.Members {
		if f.Members[i].Name == name {
			return &f.Members[i], true
		}
	}
	return nil, false
}

func (f OwnedField) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f OwnedField) write(b *strings.Builder) {
	if f.Type != FieldStructure {
		f.writeNamed(b)
		return
	}
	f.writeMembers(b)
}

func (f OwnedField) writeMembers(b *strings.Builder) {
	for i, m := range f.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		m.writeNamed(b)
	}
}

func (f OwnedField) writeNamed(b *strings.Builder) {
	if f.Name == "" {
		b.WriteString("<anonymous>")
	} else {
		b.WriteString(f.Name)
	}
	b.WriteString(" = ")
	f.writeValue(b)
}

func (f OwnedField) writeValue(b *strings.Builder) {
	switch {
	case f.Type == FieldStructure:
		b.WriteString("{ ")
		f.writeMembers(b)
		b.WriteString(" }")
	case f.Type.IsArray():
		b.WriteString("[")
		for i, e := range f.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeValue(b)
		}
		b.WriteString("]")
	case f.Type == FieldUnsignedEnumeration || f.Type == FieldSignedEnumeration:
		b.WriteString("([")
		for i, l := range f.Labels {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "'%s'", l)
		}
		fmt.Fprintf(b, "] : container = %v)", f.Value)
	case f.Type == FieldString:
		fmt.Fprintf(b, "'%s'", f.Value)
	case f.Type == FieldSingleReal:
		b.WriteString(strconv.FormatFloat(float64(f.Value.(float32)), 'g', -1, 32))
	case f.Type == FieldDoubleReal:
		b.WriteString(strconv.FormatFloat(f.Value.(float64), 'g', -1, 64))
	default:
		fmt.Fprint(b, f.Value)
	}
}
