// Package history implements reversible edit commands and the undo/redo
// stack that lives inside a write transaction.
//
// A Command records enough to apply and invert itself. The Stack applies
// commands through a Mutator, so it works against any key-value writer;
// the store package supplies one backed by the live write transaction.
package history

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Kind identifies the edit a Command performs.
type Kind int

const (
	// KindCreate inserts a key that did not exist.
	KindCreate Kind = iota + 1
	// KindUpdate replaces the value of an existing key.
	KindUpdate
	// KindDelete removes an existing key.
	KindDelete
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutator is the write surface a Command applies to.
type Mutator interface {
	Put(db string, key, value []byte) error
	Delete(db string, key []byte) error
}

// Command is one reversible edit.
//
// Old is set for Update and Delete; New is set for Create and Update.
type Command struct {
	Kind Kind
	DB   string
	Key  []byte
	Old  []byte
	New  []byte
}

// Create returns a command that inserts key=value.
func Create(db string, key, value []byte) Command {
	return Command{Kind: KindCreate, DB: db, Key: clone(key), New: clone(value)}
}

// Update returns a command that replaces old with value at key.
func Update(db string, key, old, value []byte) Command {
	return Command{Kind: KindUpdate, DB: db, Key: clone(key), Old: clone(old), New: clone(value)}
}

// Delete returns a command that removes key, whose current value is old.
func Delete(db string, key, old []byte) Command {
	return Command{Kind: KindDelete, DB: db, Key: clone(key), Old: clone(old)}
}

// Inverse returns the command that undoes c.
//
//	Create(k, v)        <-> Delete(k, v)
//	Update(k, old, new) <-> Update(k, new, old)
func (c Command) Inverse() Command {
	switch c.Kind {
	case KindCreate:
		return Command{Kind: KindDelete, DB: c.DB, Key: c.Key, Old: c.New}
	case KindUpdate:
		return Command{Kind: KindUpdate, DB: c.DB, Key: c.Key, Old: c.New, New: c.Old}
	case KindDelete:
		return Command{Kind: KindCreate, DB: c.DB, Key: c.Key, New: c.Old}
	default:
		return c
	}
}

// Apply performs the command against m.
func (c Command) Apply(m Mutator) error {
	switch c.Kind {
	case KindCreate, KindUpdate:
		return m.Put(c.DB, c.Key, c.New)
	case KindDelete:
		return m.Delete(c.DB, c.Key)
	default:
		return fmt.Errorf("unknown command kind %d", int(c.Kind))
	}
}

// Equal reports whether two commands perform the same edit.
func (c Command) Equal(o Command) bool {
	return c.Kind == o.Kind && c.DB == o.DB &&
		bytes.Equal(c.Key, o.Key) &&
		bytes.Equal(c.Old, o.Old) &&
		bytes.Equal(c.New, o.New)
}

// String renders the command for display, e.g. `update users/"alice"`.
func (c Command) String() string {
	return fmt.Sprintf("%s %s/%s", c.Kind, c.DB, displayKey(c.Key))
}

func displayKey(k []byte) string {
	if utf8.Valid(k) {
		return strconv.Quote(string(k))
	}
	return fmt.Sprintf("0x%x", k)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
