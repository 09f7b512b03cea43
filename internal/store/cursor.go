package store

import (
	"bytes"
	"iter"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/boltview/internal/apperr"
)

// DefaultDB is the display name of the unnamed default database.
const DefaultDB = "(unnamed)"

// defaultBucket is where the default database lives. The leading NUL keeps
// it out of the way of user-chosen names.
var defaultBucket = []byte("\x00default")

func bucketName(db string) []byte {
	if db == "" || db == DefaultDB {
		return defaultBucket
	}
	return []byte(db)
}

func displayName(bucket []byte) string {
	if bytes.Equal(bucket, defaultBucket) {
		return DefaultDB
	}
	return string(bucket)
}

// Record is one key-value entry. Both slices are owned by the caller.
type Record struct {
	Key   []byte
	Value []byte
}

// Reader is the read surface shared by ReadTx and the view of a WriteTx.
type Reader interface {
	// Get returns the value at key. found is false when the key is absent.
	// A missing database is NOT_FOUND.
	Get(db string, key []byte) (value []byte, found bool, err error)

	// Cursor positions over db in ascending key order.
	// A missing database is NOT_FOUND.
	Cursor(db string) (*Cursor, error)

	// Databases lists database names in ascending order.
	Databases() ([]string, error)
}

// Cursor walks one database in ascending key order, copying each entry out
// of the memory map. Nested buckets are skipped.
type Cursor struct {
	c       *bolt.Cursor
	visited int
}

// First moves to the first entry.
func (c *Cursor) First() (Record, bool) {
	return c.settle(c.c.First())
}

// Seek moves to the first entry with key >= k.
func (c *Cursor) Seek(k []byte) (Record, bool) {
	return c.settle(c.c.Seek(k))
}

// Next moves to the following entry.
func (c *Cursor) Next() (Record, bool) {
	return c.settle(c.c.Next())
}

// Visited returns how many entries the cursor has produced.
func (c *Cursor) Visited() int {
	return c.visited
}

func (c *Cursor) settle(k, v []byte) (Record, bool) {
	for k != nil && v == nil {
		k, v = c.c.Next()
	}
	if k == nil {
		return Record{}, false
	}
	c.visited++
	return Record{Key: clone(k), Value: clone(v)}, true
}

// txReader implements Reader over any bbolt transaction.
type txReader struct {
	tx *bolt.Tx
}

func (r txReader) Get(db string, key []byte) ([]byte, bool, error) {
	b := r.tx.Bucket(bucketName(db))
	if b == nil {
		return nil, false, errNoDatabase("get", db)
	}
	k, v := b.Cursor().Seek(key)
	if k == nil || v == nil || !bytes.Equal(k, key) {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (r txReader) Cursor(db string) (*Cursor, error) {
	b := r.tx.Bucket(bucketName(db))
	if b == nil {
		return nil, errNoDatabase("cursor", db)
	}
	return &Cursor{c: b.Cursor()}, nil
}

func (r txReader) Databases() ([]string, error) {
	var names []string
	err := r.tx.ForEach(func(name []byte, b *bolt.Bucket) error {
		if bytes.Equal(name, defaultBucket) && isEmpty(b) {
			return nil
		}
		names = append(names, displayName(name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (r txReader) countDatabases() int {
	n := 0
	_ = r.tx.ForEach(func([]byte, *bolt.Bucket) error {
		n++
		return nil
	})
	return n
}

// Records adapts a slice to the sequence shape used by queries and exports.
func Records(recs []Record) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func isEmpty(b *bolt.Bucket) bool {
	k, _ := b.Cursor().First()
	return k == nil
}

func errNoDatabase(op, db string) error {
	return apperr.Newf(apperr.CodeNotFound, op, "database %q not found", db)
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
