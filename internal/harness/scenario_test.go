package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Name)
			assert.NotEmpty(t, s.Flow)
		})
	}
}

func TestParseScenario_Fields(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: fields
description: all fields
setup:
  - op: put
    db: users
    key: alice
    value: v1
flow:
  - op: query
    db: users
    query: "prefix:a"
    expect:
      case: ok
      result: { keys: [alice] }
assertions:
  - type: final_state
    db: users
    key: alice
    value: v1
  - type: trace_order
    ops: [put, query]
`))
	require.NoError(t, err)

	assert.Equal(t, "fields", s.Name)
	require.Len(t, s.Setup, 1)
	assert.Equal(t, Step{Op: OpPut, DB: "users", Key: "alice", Value: "v1"}, s.Setup[0])
	require.Len(t, s.Flow, 1)
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, CaseOK, s.Flow[0].Expect.Case)
	assert.Equal(t, []any{"alice"}, s.Flow[0].Expect.Result["keys"])
	require.Len(t, s.Assertions, 2)
	require.NotNil(t, s.Assertions[0].Value)
	assert.Equal(t, "v1", *s.Assertions[0].Value)
	assert.Equal(t, []string{"put", "query"}, s.Assertions[1].Ops)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nflow: [{op: commit}]\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nflow: [{op: commit}]\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: "description is required",
		},
		{
			name: "empty flow",
			yaml: "name: n\ndescription: d\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: "flow list is required",
		},
		{
			name: "empty assertions",
			yaml: "name: n\ndescription: d\nflow: [{op: commit}]",
			want: "assertions list is required",
		},
		{
			name: "unknown field",
			yaml: "name: n\ndescription: d\nflows: []",
			want: "failed to parse YAML",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nflow: [{op: rename}]\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: `flow[0]: unknown op "rename"`,
		},
		{
			name: "missing op",
			yaml: "name: n\ndescription: d\nflow: [{db: users}]\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: "op is required",
		},
		{
			name: "put without key",
			yaml: "name: n\ndescription: d\nflow: [{op: put, db: users}]\nassertions: [{type: trace_count, op: put, count: 1}]",
			want: "put needs db and key",
		},
		{
			name: "setup query without text",
			yaml: "name: n\ndescription: d\nsetup: [{op: query, db: users}]\nflow: [{op: commit}]\nassertions: [{type: trace_count, op: commit, count: 1}]",
			want: "setup[0]: query needs db and query",
		},
		{
			name: "stats without db",
			yaml: "name: n\ndescription: d\nflow: [{op: stats}]\nassertions: [{type: trace_count, op: stats, count: 1}]",
			want: "stats needs db",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nflow: [{op: commit}]\nassertions: [{type: sql}]",
			want: `unknown assertion type "sql"`,
		},
		{
			name: "trace_order without ops",
			yaml: "name: n\ndescription: d\nflow: [{op: commit}]\nassertions: [{type: trace_order}]",
			want: "ops list is required",
		},
		{
			name: "final_state with value and absent",
			yaml: "name: n\ndescription: d\nflow: [{op: commit}]\nassertions: [{type: final_state, db: u, key: k, value: v, absent: true}]",
			want: "exactly one of value or absent",
		},
		{
			name: "final_state with neither",
			yaml: "name: n\ndescription: d\nflow: [{op: commit}]\nassertions: [{type: final_state, db: u, key: k}]",
			want: "exactly one of value or absent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
