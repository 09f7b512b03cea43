package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/apperr"
)

var errPutFailed = errors.New("put failed")

// memMutator is an in-memory Mutator keyed by "db/key".
type memMutator struct {
	data    map[string]string
	failPut bool
}

func newMem() *memMutator {
	return &memMutator{data: map[string]string{}}
}

func (m *memMutator) Put(db string, key, value []byte) error {
	if m.failPut {
		return errPutFailed
	}
	m.data[db+"/"+string(key)] = string(value)
	return nil
}

func (m *memMutator) Delete(db string, key []byte) error {
	delete(m.data, db+"/"+string(key))
	return nil
}

func (m *memMutator) snapshot() map[string]string {
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

func TestCommand_InverseRestoresState(t *testing.T) {
	tests := []struct {
		name  string
		seed  map[string]string
		cmd   Command
		after map[string]string
	}{
		{
			name:  "create",
			seed:  map[string]string{},
			cmd:   Create("users", []byte("alice"), []byte("1")),
			after: map[string]string{"users/alice": "1"},
		},
		{
			name:  "update",
			seed:  map[string]string{"users/alice": "1"},
			cmd:   Update("users", []byte("alice"), []byte("1"), []byte("2")),
			after: map[string]string{"users/alice": "2"},
		},
		{
			name:  "delete",
			seed:  map[string]string{"users/alice": "1"},
			cmd:   Delete("users", []byte("alice"), []byte("1")),
			after: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMem()
			for k, v := range tt.seed {
				m.data[k] = v
			}
			before := m.snapshot()

			require.NoError(t, tt.cmd.Apply(m))
			assert.Equal(t, tt.after, m.snapshot())

			require.NoError(t, tt.cmd.Inverse().Apply(m))
			assert.Equal(t, before, m.snapshot())

			assert.True(t, tt.cmd.Inverse().Inverse().Equal(tt.cmd))
		})
	}
}

func TestStack_UndoRedo(t *testing.T) {
	m := newMem()
	s := NewStack()

	require.NoError(t, s.Push(m, Create("db", []byte("k"), []byte("v1"))))
	require.NoError(t, s.Push(m, Update("db", []byte("k"), []byte("v1"), []byte("v2"))))
	assert.Equal(t, "v2", m.data["db/k"])
	assert.Equal(t, 2, s.UndoLen())

	c, err := s.Undo(m)
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, c.Kind)
	assert.Equal(t, "v1", m.data["db/k"])

	_, err = s.Undo(m)
	require.NoError(t, err)
	_, present := m.data["db/k"]
	assert.False(t, present)
	assert.Equal(t, 2, s.RedoLen())

	_, err = s.Redo(m)
	require.NoError(t, err)
	_, err = s.Redo(m)
	require.NoError(t, err)
	assert.Equal(t, "v2", m.data["db/k"])
	assert.Equal(t, 0, s.RedoLen())
}

func TestStack_PushClearsRedo(t *testing.T) {
	m := newMem()
	s := NewStack()

	require.NoError(t, s.Push(m, Create("db", []byte("a"), []byte("1"))))
	_, err := s.Undo(m)
	require.NoError(t, err)
	require.Equal(t, 1, s.RedoLen())

	require.NoError(t, s.Push(m, Create("db", []byte("b"), []byte("2"))))
	assert.Equal(t, 0, s.RedoLen())

	_, err = s.Redo(m)
	assert.True(t, apperr.Is(err, apperr.CodeEmptyHistory))
}

func TestStack_EmptyHistory(t *testing.T) {
	s := NewStack()
	m := newMem()

	_, err := s.Undo(m)
	assert.True(t, errors.Is(err, apperr.ErrEmptyHistory))

	_, err = s.Redo(m)
	assert.True(t, errors.Is(err, apperr.ErrEmptyHistory))
}

func TestStack_FailedPushLeavesStackUnchanged(t *testing.T) {
	m := newMem()
	s := NewStack()
	require.NoError(t, s.Push(m, Create("db", []byte("a"), []byte("1"))))

	m.failPut = true
	err := s.Push(m, Create("db", []byte("b"), []byte("2")))
	require.Error(t, err)
	assert.Equal(t, 1, s.UndoLen())
}

func TestStack_ErrorsNameTheCommand(t *testing.T) {
	m := newMem()
	s := NewStack()
	require.NoError(t, s.Push(m, Create("db", []byte("a"), []byte("1"))))
	_, err := s.Undo(m)
	require.NoError(t, err)

	m.failPut = true
	err = s.Push(m, Create("db", []byte("b"), []byte("2")))
	assert.EqualError(t, err, `push create db/"b": put failed`)
	assert.ErrorIs(t, err, errPutFailed)

	_, err = s.Redo(m)
	assert.EqualError(t, err, `redo create db/"a": put failed`)
	assert.ErrorIs(t, err, errPutFailed)
	assert.Equal(t, 1, s.RedoLen())
}

func TestStack_Rollback(t *testing.T) {
	m := newMem()
	s := NewStack()
	require.NoError(t, s.Push(m, Create("db", []byte("keep"), []byte("1"))))
	require.NoError(t, s.Push(m, Create("db", []byte("x"), []byte("2"))))
	require.NoError(t, s.Push(m, Create("db", []byte("y"), []byte("3"))))

	require.NoError(t, s.Rollback(m, 2))
	assert.Equal(t, map[string]string{"db/keep": "1"}, m.snapshot())
	assert.Equal(t, 1, s.UndoLen())
	assert.Equal(t, 0, s.RedoLen())
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, `create users/"alice"`, Create("users", []byte("alice"), nil).String())
	assert.Equal(t, `delete bin/0xff00`, Delete("bin", []byte{0xff, 0x00}, nil).String())
}
