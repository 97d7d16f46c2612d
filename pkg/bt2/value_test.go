package bt2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

func TestValueFromGoRoundTrip(t *testing.T) {
	lib, fake := openFake(t)

	in := map[string]any{
		"inputs":  []string{"/a", "/b"},
		"verbose": true,
		"offset":  -3,
		"limit":   uint32(9),
		"ratio":   0.5,
		"nested":  map[string]any{"empty": []any{}, "none": nil},
	}
	v, err := lib.ValueFromGo(in)
	require.NoError(t, err)

	typ, err := v.Type()
	require.NoError(t, err)
	assert.Equal(t, bt2.ValueMap, typ)

	keys, err := v.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"inputs", "limit", "nested", "offset", "ratio", "verbose"}, keys)

	got, err := v.ToGo()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"inputs":  []any{"/a", "/b"},
		"verbose": true,
		"offset":  int64(-3),
		"limit":   uint64(9),
		"ratio":   0.5,
		"nested":  map[string]any{"empty": []any{}, "none": nil},
	}, got)

	inputs, err := v.Entry("inputs")
	require.NoError(t, err)
	n, err := inputs.Len()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	second, err := inputs.Index(1)
	require.NoError(t, err)
	s, err := second.AsString()
	require.NoError(t, err)
	assert.Equal(t, "/b", s)

	_, err = inputs.Index(2)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = v.Entry("missing")
	assert.ErrorIs(t, err, bt2.ErrNotFound)

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	requireBalanced(t, fake)
}

func TestValueScalars(t *testing.T) {
	lib, fake := openFake(t)

	b, err := lib.NewBoolValue(true)
	require.NoError(t, err)
	got, err := b.AsBool()
	require.NoError(t, err)
	assert.True(t, got)

	u, err := lib.NewUnsignedValue(1 << 63)
	require.NoError(t, err)
	uv, err := u.AsUnsigned()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63), uv)

	i, err := lib.NewSignedValue(-8)
	require.NoError(t, err)
	iv, err := i.AsSigned()
	require.NoError(t, err)
	assert.Equal(t, int64(-8), iv)

	r, err := lib.NewRealValue(2.5)
	require.NoError(t, err)
	rv, err := r.AsReal()
	require.NoError(t, err)
	assert.Equal(t, 2.5, rv)

	_, err = r.AsString()
	assert.ErrorIs(t, err, bt2.ErrUnsupported)
	_, err = r.Len()
	assert.ErrorIs(t, err, bt2.ErrUnsupported)

	null, err := lib.NullValue()
	require.NoError(t, err)
	nt, err := null.Type()
	require.NoError(t, err)
	assert.Equal(t, bt2.ValueNull, nt)
	require.NoError(t, null.Close())

	for _, v := range []*bt2.Value{b, u, i, r} {
		require.NoError(t, v.Close())
	}
	requireBalanced(t, fake)
}

func TestValueFromGoRejectsBadInput(t *testing.T) {
	lib, fake := openFake(t)
	before := fake.CallCount()

	_, err := lib.ValueFromGo(struct{}{})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	_, err = lib.ValueFromGo("nul\x00inside")
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount())

	_, err = lib.ValueFromGo(map[string]any{"a": 1, "b": []any{make(chan int)}})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	requireBalanced(t, fake)
}

func TestValueFromGoReleasesOnFailure(t *testing.T) {
	for _, op := range []string{"ValueMapInsertEntry", "ValueArrayAppendElement", "ValueStringCreate", "ValueArrayCreate"} {
		t.Run(op, func(t *testing.T) {
			lib, fake := openFake(t)
			fake.Fail(op, backend.StatusMemoryError)
			_, err := lib.ValueFromGo(map[string]any{"inputs": []string{"/x"}, "n": 1})
			require.Error(t, err)
			requireBalanced(t, fake)
		})
	}
}

func TestValueAcquireOutlivesOriginal(t *testing.T) {
	lib, fake := openFake(t)

	v, err := lib.NewStringValue("kept")
	require.NoError(t, err)
	other, err := v.Acquire()
	require.NoError(t, err)
	require.NoError(t, v.Close())

	s, err := other.AsString()
	require.NoError(t, err)
	assert.Equal(t, "kept", s)

	_, err = v.AsString()
	assert.ErrorIs(t, err, bt2.ErrClosed)

	require.NoError(t, other.Close())
	assert.Equal(t, 2, fake.Released(backend.KindValue))
	requireBalanced(t, fake)
}

func TestValueInsertReplaces(t *testing.T) {
	lib, fake := openFake(t)

	m, err := lib.NewMapValue()
	require.NoError(t, err)
	one, err := lib.NewSignedValue(1)
	require.NoError(t, err)
	two, err := lib.NewSignedValue(2)
	require.NoError(t, err)

	require.NoError(t, m.Insert("k", one))
	require.NoError(t, m.Insert("k", two))
	require.NoError(t, one.Close())
	require.NoError(t, two.Close())

	got, err := m.ToGo()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": int64(2)}, got)

	assert.ErrorIs(t, m.Insert("", nil), bt2.ErrInvalidArgument)
	assert.ErrorIs(t, m.Append(nil), bt2.ErrInvalidArgument)

	require.NoError(t, m.Close())
	requireBalanced(t, fake)
}

func TestValueUseAfterLibraryClose(t *testing.T) {
	lib, _ := openFake(t)
	require.NoError(t, lib.Close())
	assert.ErrorIs(t, lib.Close(), bt2.ErrLibraryClosed)

	_, err := lib.NewBoolValue(true)
	assert.ErrorIs(t, err, bt2.ErrLibraryClosed)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
}
