package cell

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// faultStore is a map-backed kv.Store whose operations can be made to fail.
type faultStore struct {
	data        map[string]string
	failGet     bool
	failSet     bool
	failDelete  bool
	unavailable bool
	sets        int
}

func newFaultStore() *faultStore {
	return &faultStore{data: make(map[string]string)}
}

func (f *faultStore) Get(key string) (string, bool, error) {
	if f.failGet {
		return "", false, errInjected
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *faultStore) Set(key, value string) error {
	if f.failSet {
		return errInjected
	}
	f.sets++
	f.data[key] = value
	return nil
}

func (f *faultStore) Delete(key string) error {
	if f.failDelete {
		return errInjected
	}
	delete(f.data, key)
	return nil
}

func (f *faultStore) Available() bool {
	return !f.unavailable
}

func TestNew_EmptyKey(t *testing.T) {
	st := newFaultStore()

	_, err := New(st, "", WithInitial(0))
	require.ErrorIs(t, err, ErrEmptyKey)

	_, err = New[string](st, "")
	require.ErrorIs(t, err, ErrEmptyKey)

	// Empty keys are rejected even without a usable store.
	_, err = New[int](nil, "")
	require.ErrorIs(t, err, ErrEmptyKey)

	require.Panics(t, func() {
		MustNew(st, "", WithInitial("x"))
	})
	assert.Empty(t, st.data)
}

func TestNew_SeedsEmptyStore(t *testing.T) {
	st := newFaultStore()

	c, err := New(st, "prefs", WithInitial(map[string]int{"a": 1}))
	require.NoError(t, err)

	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 1}, v)
	assert.Equal(t, `{"a":1}`, st.data["prefs"])
	assert.True(t, c.Persistent())
	assert.Equal(t, "prefs", c.Key())
}

func TestNew_SeedsZeroValues(t *testing.T) {
	st := newFaultStore()

	MustNew(st, "n", WithInitial(0))
	MustNew(st, "s", WithInitial(""))
	MustNew(st, "b", WithInitial(false))

	assert.Equal(t, "0", st.data["n"])
	assert.Equal(t, `""`, st.data["s"])
	assert.Equal(t, "false", st.data["b"])
}

func TestNew_StoredValueWins(t *testing.T) {
	st := newFaultStore()
	st.data["count"] = "41"

	c := MustNew(st, "count", WithInitial(7))

	assert.Equal(t, 41, c.Value())
	assert.Equal(t, "41", st.data["count"])
	assert.Zero(t, st.sets)
}

func TestNew_NoInitialValue(t *testing.T) {
	st := newFaultStore()

	c := MustNew[string](st, "missing")

	v, ok := c.Get()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.NotContains(t, st.data, "missing")
}

func TestNew_FallsBackToInitial(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*faultStore)
	}{
		{
			name:  "read fails",
			setup: func(f *faultStore) { f.failGet = true },
		},
		{
			name:  "seed write fails",
			setup: func(f *faultStore) { f.failSet = true },
		},
		{
			name:  "stored value malformed",
			setup: func(f *faultStore) { f.data["count"] = "{not json" },
		},
		{
			name:  "stored value has wrong type",
			setup: func(f *faultStore) { f.data["count"] = `"seven"` },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFaultStore()
			tt.setup(st)

			var ops []Op
			c, err := New(st, "count",
				WithInitial(3),
				WithErrorHandler[int](func(op Op, key string, err error) {
					assert.Equal(t, "count", key)
					assert.Error(t, err)
					ops = append(ops, op)
				}),
			)
			require.NoError(t, err)

			v, ok := c.Get()
			assert.True(t, ok)
			assert.Equal(t, 3, v)
			assert.Equal(t, []Op{OpLoad}, ops)
		})
	}
}

func TestNew_SeedEncodeFailure(t *testing.T) {
	st := newFaultStore()

	// NaN cannot be encoded as JSON.
	c := MustNew(st, "ratio", WithInitial(math.NaN()))

	assert.True(t, math.IsNaN(c.Value()))
	assert.NotContains(t, st.data, "ratio")
}

func TestUnavailableStore(t *testing.T) {
	st := newFaultStore()
	st.unavailable = true

	c := MustNew(st, "count", WithInitial(5))
	assert.False(t, c.Persistent())
	assert.Equal(t, 5, c.Value())

	called := false
	c.Update(func(n int, _ bool) (int, bool) {
		called = true
		return n + 1, true
	})
	c.Set(9)
	c.Remove()

	assert.False(t, called)
	assert.Equal(t, 5, c.Value())
	assert.Empty(t, st.data)
}

func TestNilStore(t *testing.T) {
	c := MustNew[string](nil, "name", WithInitial("alice"))

	c.Set("bob")
	c.Remove()

	assert.False(t, c.Persistent())
	assert.Equal(t, "alice", c.Value())
}

func TestCounterScenario(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "count", WithInitial(0))
	assert.Equal(t, 0, c.Value())
	assert.Equal(t, "0", st.data["count"])

	c.Update(func(n int, _ bool) (int, bool) { return n + 1, true })
	assert.Equal(t, 1, c.Value())
	assert.Equal(t, "1", st.data["count"])

	c.Remove()
	v, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.NotContains(t, st.data, "count")
}

func TestRawScenario(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "name", WithInitial("alice"), WithRaw[string]())
	assert.Equal(t, "alice", c.Value())
	assert.Equal(t, "alice", st.data["name"])

	c.Set("bob")
	assert.Equal(t, "bob", c.Value())
	assert.Equal(t, "bob", st.data["name"])
}

func TestRaw_ReadsUnparsed(t *testing.T) {
	st := newFaultStore()
	st.data["doc"] = `{"a":1}`

	c := MustNew(st, "doc", WithRaw[any]())
	assert.Equal(t, `{"a":1}`, c.Value())

	// Non-string values are still written as JSON, then read back as text.
	c.Set(map[string]int{"b": 2})
	assert.Equal(t, `{"b":2}`, st.data["doc"])
	assert.Equal(t, `{"b":2}`, c.Value())
}

type color string

func TestRaw_NamedStringType(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "theme", WithInitial(color("dark")), WithRaw[color]())
	c.Set("light")

	assert.Equal(t, color("light"), c.Value())
	assert.Equal(t, "light", st.data["theme"])
}

func TestRaw_IncompatibleType(t *testing.T) {
	st := newFaultStore()
	st.data["n"] = "12"

	c := MustNew(st, "n", WithInitial(1), WithRaw[int]())
	assert.Equal(t, 1, c.Value())
}

func TestRaw_OverridesCustomCodec(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "name",
		WithInitial("alice"),
		WithSerializer(func(s string) (string, error) { return "custom:" + s, nil }),
		WithRaw[string](),
	)
	c.Set("bob")
	assert.Equal(t, "bob", st.data["name"])
}

func TestCustomCodec(t *testing.T) {
	st := newFaultStore()
	st.data["flag"] = "yes"

	ser := func(b bool) (string, error) {
		if b {
			return "yes", nil
		}
		return "no", nil
	}
	de := func(s string) (bool, error) {
		switch s {
		case "yes":
			return true, nil
		case "no":
			return false, nil
		}
		return false, errors.New("bad flag")
	}

	c := MustNew(st, "flag", WithSerializer(ser), WithDeserializer(de))
	assert.True(t, c.Value())

	c.Set(false)
	assert.False(t, c.Value())
	assert.Equal(t, "no", st.data["flag"])
}

func TestCustomSerializerKeepsDefaultDeserializer(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "n",
		WithInitial(2),
		WithSerializer(func(n int) (string, error) { return "[" + string(rune('0'+n)) + "]", nil }),
	)

	// "[2]" does not decode into an int, so the set is dropped after the write.
	c.Set(4)
	assert.Equal(t, 2, c.Value())
	assert.Equal(t, "[4]", st.data["n"])
}

type profile struct {
	Name   string `json:"name"`
	Secret string `json:"-"`
}

func TestSet_AdoptsRoundTrippedValue(t *testing.T) {
	st := newFaultStore()

	c := MustNew[profile](st, "profile")
	c.Set(profile{Name: "alice", Secret: "hunter2"})

	assert.Equal(t, profile{Name: "alice"}, c.Value())
	assert.Equal(t, `{"name":"alice"}`, st.data["profile"])
}

func TestUpdate_DeclinedWrite(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "count", WithInitial(4))
	sets := st.sets

	c.Update(func(n int, ok bool) (int, bool) {
		assert.True(t, ok)
		assert.Equal(t, 4, n)
		return 100, false
	})

	assert.Equal(t, 4, c.Value())
	assert.Equal(t, "4", st.data["count"])
	assert.Equal(t, sets, st.sets)
}

func TestUpdate_FromUndefined(t *testing.T) {
	st := newFaultStore()

	c := MustNew[[]string](st, "tags")
	c.Update(func(prev []string, ok bool) ([]string, bool) {
		assert.False(t, ok)
		return append(prev, "go"), true
	})

	v, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, []string{"go"}, v)
	assert.Equal(t, `["go"]`, st.data["tags"])
}

func TestSet_StoreFailure(t *testing.T) {
	st := newFaultStore()
	c := MustNew(st, "count", WithInitial(1))
	c.Set(2)

	var failed []Op
	c.onError = func(op Op, _ string, _ error) { failed = append(failed, op) }
	st.failSet = true

	require.NotPanics(t, func() { c.Set(3) })
	assert.Equal(t, 2, c.Value())
	assert.Equal(t, "2", st.data["count"])
	assert.Equal(t, []Op{OpSet}, failed)
}

func TestSet_EncodeFailure(t *testing.T) {
	st := newFaultStore()
	c := MustNew(st, "ratio", WithInitial(0.5))

	c.Set(math.Inf(1))

	assert.Equal(t, 0.5, c.Value())
	assert.Equal(t, "0.5", st.data["ratio"])
}

func TestRemove_AfterSet(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "name", WithInitial("alice"))
	c.Set("bob")
	c.Remove()

	assert.Equal(t, "alice", c.Value())
	assert.NotContains(t, st.data, "name")
}

func TestRemove_WithoutInitial(t *testing.T) {
	st := newFaultStore()

	c := MustNew[int](st, "n")
	c.Set(3)
	c.Remove()

	_, ok := c.Get()
	assert.False(t, ok)
	assert.NotContains(t, st.data, "n")
}

func TestRemove_StoreFailure(t *testing.T) {
	st := newFaultStore()

	c := MustNew(st, "count", WithInitial(0))
	c.Set(8)
	st.failDelete = true

	require.NotPanics(t, c.Remove)
	assert.Equal(t, 8, c.Value())
	assert.Equal(t, "8", st.data["count"])
}

func TestCellsShareKey(t *testing.T) {
	st := newFaultStore()

	a := MustNew(st, "count", WithInitial(0))
	b := MustNew(st, "count", WithInitial(0))

	a.Set(1)
	b.Set(2)

	// Cells are independent; the store holds the last write.
	assert.Equal(t, 1, a.Value())
	assert.Equal(t, 2, b.Value())
	assert.Equal(t, "2", st.data["count"])
}
