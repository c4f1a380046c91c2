package native

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/deobvm/pkg/value"
)

func str(s string) value.Value { return value.RefValue(s) }

func TestHashMap(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put(str("key1"), str("value1"))

		got, _ := value.AsString(hm.Get(str("key1")))
		if got != "value1" {
			t.Errorf("Get(key1): got %v, want %q", got, "value1")
		}
	})

	t.Run("get missing key returns null", func(t *testing.T) {
		hm := NewHashMap()
		if got := hm.Get(str("nonexistent")); !got.IsNull() {
			t.Errorf("Get(nonexistent): got %v, want null", got)
		}
	})

	t.Run("overwrite value", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put(str("key"), str("old"))
		old := hm.Put(str("key"), str("new"))

		got, _ := value.AsString(hm.Get(str("key")))
		if got != "new" {
			t.Errorf("Get(key) after overwrite: got %v, want %q", got, "new")
		}
		prev, _ := value.AsString(old)
		assert.Equal(t, "old", prev)
		assert.Equal(t, 1, hm.Size())
	})

	t.Run("boxed keys compare by value", func(t *testing.T) {
		hm := NewHashMap()
		hm.Put(value.RefValue(&Box{Class: "java/lang/Integer", Value: value.IntValue(0)}), value.IntValue(1))

		got := hm.Get(value.RefValue(&Box{Class: "java/lang/Integer", Value: value.IntValue(0)}))
		assert.Equal(t, value.IntValue(1), got)
		assert.True(t, hm.Get(value.RefValue(&Box{Class: "java/lang/Long", Value: value.IntValue(0)})).IsNull())
	})

	t.Run("objects compare by identity", func(t *testing.T) {
		hm := NewHashMap()
		a, b := value.NewObject("t/K"), value.NewObject("t/K")
		hm.Put(value.RefValue(a), str("a"))
		assert.True(t, hm.ContainsKey(value.RefValue(a)))
		assert.False(t, hm.ContainsKey(value.RefValue(b)))
	})

	t.Run("remove keeps insertion order", func(t *testing.T) {
		hm := NewHashMap()
		for _, k := range []string{"a", "b", "c"} {
			hm.Put(str(k), str(k))
		}
		removed, _ := value.AsString(hm.Remove(str("b")))
		assert.Equal(t, "b", removed)
		require.Len(t, hm.Keys(), 2)
		assert.Equal(t, str("c"), hm.Keys()[1])
		assert.Equal(t, str("c"), hm.Get(str("c")))
	})
}

func TestBoxCache(t *testing.T) {
	c := NewBoxCache()
	tests := []struct {
		name   string
		class  string
		v      value.Value
		shared bool
	}{
		{"small int", "java/lang/Integer", value.IntValue(42), true},
		{"negative int", "java/lang/Integer", value.IntValue(-128), true},
		{"large int", "java/lang/Integer", value.IntValue(1000), false},
		{"small long", "java/lang/Long", value.LongValue(7), true},
		{"char above ascii", "java/lang/Character", value.IntValue(200), false},
		{"double", "java/lang/Double", value.DoubleValue(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := c.ValueOf(tt.class, tt.v)
			b := c.ValueOf(tt.class, tt.v)
			assert.Equal(t, tt.shared, a == b)
			assert.Equal(t, tt.v, a.Value)
			assert.Equal(t, tt.class, a.JavaClass())
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v    value.Value
		desc string
		want string
	}{
		{value.IntValue(-5), "I", "-5"},
		{value.IntValue('A'), "C", "A"},
		{value.IntValue(1), "Z", "true"},
		{value.LongValue(1 << 40), "J", "1099511627776"},
		{value.FloatValue(1), "F", "1.0"},
		{value.FloatValue(0.1), "F", "0.1"},
		{value.DoubleValue(1e10), "D", "1.0E10"},
		{value.DoubleValue(1.5e-5), "D", "1.5E-5"},
		{value.DoubleValue(math.NaN()), "D", "NaN"},
		{value.DoubleValue(math.Inf(-1)), "D", "-Infinity"},
		{value.DoubleValue(math.Copysign(0, -1)), "D", "-0.0"},
		{value.NullValue(), "Ljava/lang/Object;", "null"},
		{str("hi"), "Ljava/lang/String;", "hi"},
		{value.RefValue(&Box{Class: "java/lang/Character", Value: value.IntValue('z')}), "Ljava/lang/Object;", "z"},
		{value.RefValue(value.ClassRef{Name: "java/lang/String"}), "Ljava/lang/Object;", "class java.lang.String"},
		{value.RefValue(value.ClassRef{Name: "int"}), "Ljava/lang/Object;", "int"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.v, tt.desc))
		})
	}
}

func TestStringBuilder(t *testing.T) {
	b := NewStringBuilder("java/lang/StringBuilder", "ab")
	b.Append("c")
	b.AppendChar('d')
	assert.Equal(t, "abcd", b.String())
	assert.Equal(t, 4, b.Len())

	require.NoError(t, b.SetCharAt(0, 'z'))
	c, err := b.CharAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint16('z'), c)

	require.NoError(t, b.Insert(4, "!"))
	require.NoError(t, b.DeleteCharAt(1))
	assert.Equal(t, "zcd!", b.String())

	b.Reverse()
	assert.Equal(t, "!dcz", b.String())

	_, err = b.CharAt(10)
	var idx *IndexError
	require.ErrorAs(t, err, &idx)
	assert.Equal(t, 10, idx.Index)

	require.NoError(t, b.SetLength(1))
	assert.Equal(t, "!", b.String())
}

func TestStringBuilderReverseSurrogates(t *testing.T) {
	b := NewStringBuilder("java/lang/StringBuilder", "a\U0001F600b")
	assert.Equal(t, 4, b.Len())
	b.Reverse()
	assert.Equal(t, "b\U0001F600a", b.String())
}

func TestPrintStream(t *testing.T) {
	var buf bytes.Buffer
	ps := &PrintStream{Writer: &buf}
	ps.Print("x=")
	ps.Println(Format(value.IntValue(3), "I"))
	ps.Println("")
	assert.Equal(t, "x=3\n\n", buf.String())
}

func TestStackTraceElement(t *testing.T) {
	e := &StackTraceElement{Class: "a/b/C", Method: "run"}
	assert.Equal(t, "a.b.C", e.ClassName())
	assert.Equal(t, "a.b.C.run(Unknown Source)", e.String())
}
