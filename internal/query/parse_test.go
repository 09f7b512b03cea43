package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/apperr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		mode Mode
		want string
	}{
		{"exact:alice", ModeExact, "exact:alice"},
		{"prefix:user:", ModePrefix, "prefix:user:"},
		{"user:", ModePrefix, "prefix:user:"},
		{"plain", ModePrefix, "prefix:plain"},
		{"range:[a..c)", ModeRange, "range:[a..c)"},
		{"range:(a..c]", ModeRange, "range:(a..c]"},
		{"range:a..", ModeRange, "range:[a..)"},
		{"range:..c]", ModeRange, "range:[..c]"},
		{"regex:^a", ModeRegex, "regex:^a"},
		{"re:^a", ModeRegex, "regex:^a"},
		{"jsonpath:$.name", ModeJSONPath, "jsonpath:$.name"},
		{"jp:$.name", ModeJSONPath, "jsonpath:$.name"},
		{"$.name", ModeJSONPath, "jsonpath:$.name"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			q, err := Parse(tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, q.Mode())
			assert.Equal(t, tt.want, q.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, text := range []string{"range:abc", "regex:(", "jsonpath:$[?(@.a"} {
		_, err := Parse(text, nil)
		assert.True(t, apperr.Is(err, apperr.CodeQuerySyntax), "%s: %v", text, err)
	}
}

func TestParse_JSONPathDefaultsToAuto(t *testing.T) {
	q, err := Parse("$.a", nil)
	require.NoError(t, err)
	assert.Equal(t, "auto", q.Decoder().Name())
}
