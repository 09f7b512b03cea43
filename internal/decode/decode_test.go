package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/boltview/internal/apperr"
)

func TestJSON_Decode(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`{"name":"foo","n":3}`))
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "foo", m["name"])
	assert.Equal(t, int64(3), m["n"])

	_, err = JSON{}.Decode([]byte("not json"))
	assert.Error(t, err)
	_, err = JSON{}.Decode([]byte("  "))
	assert.Error(t, err)
}

func TestMsgPack_Decode(t *testing.T) {
	b, err := msgpack.Marshal(map[string]any{"name": "foo", "n": 3})
	require.NoError(t, err)

	v, err := MsgPack{}.Decode(b)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "foo", m["name"])
	assert.Equal(t, int64(3), m["n"])
}

func TestMsgPack_RejectsTrailingBytes(t *testing.T) {
	// 'h' is a valid positive fixint; the rest must not be ignored.
	_, err := MsgPack{}.Decode([]byte("hello"))
	assert.Error(t, err)
}

func TestAuto_FallsBackToMsgPack(t *testing.T) {
	b, err := msgpack.Marshal([]string{"a", "b"})
	require.NoError(t, err)

	v, err := Auto{}.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	v, err = Auto{}.Decode([]byte(`["x"]`))
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, v)

	_, err = Auto{}.Decode([]byte{0xc1})
	assert.Error(t, err)
}

func TestRaw_NeverFails(t *testing.T) {
	v, err := Raw{}.Decode([]byte{0xff, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, "\xff\xfe", v)
}

type upper struct{}

func (upper) Name() string                 { return "upper" }
func (upper) Decode(b []byte) (any, error) { return string(b), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(Raw{}, JSON{})
	assert.Equal(t, []string{"json", "raw"}, r.Names())

	require.NoError(t, r.Register(upper{}))
	d, err := r.Lookup("upper")
	require.NoError(t, err)
	assert.Equal(t, "upper", d.Name())

	err = r.Register(upper{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = r.Lookup("missing")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestDefaultRegistry(t *testing.T) {
	for _, name := range []string{"raw", "json", "msgpack", "auto"} {
		d, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name())
	}
}
