package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "hi", want: `"hi"`},
		{name: "no html escaping", in: "<a&b>", want: `"<a&b>"`},
		{name: "control escaped", in: "a\nb\"", want: `"a\nb\""`},
		{name: "ints", in: []any{1, int64(-2)}, want: `[1,-2]`},
		{name: "bools", in: []any{true, false}, want: `[true,false]`},
		{name: "empty array", in: []any{}, want: `[]`},
		{name: "sorted keys", in: map[string]any{"b": 1, "a": 2, "ab": 3}, want: `{"a":2,"ab":3,"b":1}`},
		{name: "nested", in: map[string]any{"x": map[string]any{"z": "1", "y": []any{"q"}}}, want: `{"x":{"y":["q"],"z":"1"}}`},
		{name: "nfc", in: "e\u0301", want: "\"\u00e9\""},
		{name: "line separator literal", in: "a\u2028b\u2029c", want: "\"a\u2028b\u2029c\""},
		{name: "escaped backslash kept", in: `\u2028`, want: `"\\u2028"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_UTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	got, err := MarshalCanonical(map[string]any{"\U0001F600": 1, "\uff61": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uff61\":2}", string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "null", in: nil, want: "null is forbidden"},
		{name: "float", in: 1.5, want: "floats are forbidden"},
		{name: "nested null", in: map[string]any{"a": []any{nil}}, want: `value for key "a": array[0]: null is forbidden`},
		{name: "unsupported", in: struct{}{}, want: "unsupported type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
