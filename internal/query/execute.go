package query

import (
	"bytes"
	"iter"
	"unicode/utf8"

	"github.com/roach88/boltview/internal/store"
)

// Stats counts what one execution touched.
type Stats struct {
	// Visited is the number of entries read from the cursor.
	Visited int
	// Matched is the number of entries yielded.
	Matched int
	// Skipped is the number of values a JSONPath decoder rejected.
	Skipped int
}

// ExecOption configures one Execute call.
type ExecOption func(*execConfig)

type execConfig struct {
	stats *Stats
	visit func(visited int) error
}

// WithStats records counters into s. s is reset at the start of each iteration.
func WithStats(s *Stats) ExecOption {
	return func(c *execConfig) { c.stats = s }
}

// OnVisit calls fn after each entry is read, with the running count. A non-nil
// error ends the iteration and is yielded as its final element.
func OnVisit(fn func(visited int) error) ExecOption {
	return func(c *execConfig) { c.visit = fn }
}

// Execute runs q against db and yields matching records in ascending key order.
//
// The sequence is lazy: nothing is read until it is ranged over, and breaking
// out early stops the scan. Ranging again re-runs the query. Prefix and range
// scans stop at the first key past their end. A missing database is yielded
// as a NOT_FOUND error.
func Execute(r store.Reader, db string, q Query, opts ...ExecOption) iter.Seq2[store.Record, error] {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(store.Record, error) bool) {
		st := cfg.stats
		if st == nil {
			st = &Stats{}
		}
		*st = Stats{}

		if q.mode == ModeExact {
			v, found, err := r.Get(db, q.key)
			if err != nil {
				yield(store.Record{}, err)
				return
			}
			st.Visited = 1
			if found {
				st.Matched = 1
				yield(store.Record{Key: clone(q.key), Value: v}, nil)
			}
			return
		}

		cur, err := r.Cursor(db)
		if err != nil {
			yield(store.Record{}, err)
			return
		}
		if q.mode == 0 || q.empty() {
			return
		}

		var rec store.Record
		var ok bool
		switch {
		case q.mode == ModePrefix:
			rec, ok = cur.Seek(q.key)
		case q.mode == ModeRange && q.lower != nil:
			rec, ok = cur.Seek(q.lower.Key)
		default:
			rec, ok = cur.First()
		}

		for ; ok; rec, ok = cur.Next() {
			st.Visited++
			if cfg.visit != nil {
				if err := cfg.visit(st.Visited); err != nil {
					yield(store.Record{}, err)
					return
				}
			}
			if q.beyond(rec.Key) {
				return
			}
			if !q.match(rec, st) {
				continue
			}
			st.Matched++
			if !yield(rec, nil) {
				return
			}
			if q.limit > 0 && st.Matched >= q.limit {
				return
			}
		}
	}
}

// match applies the per-entry predicate. Range and prefix end conditions are
// handled by beyond.
func (q Query) match(rec store.Record, st *Stats) bool {
	switch q.mode {
	case ModePrefix:
		return true
	case ModeRange:
		if q.lower != nil && !q.lower.Inclusive && bytes.Equal(rec.Key, q.lower.Key) {
			return false
		}
		return true
	case ModeRegex:
		return utf8.Valid(rec.Key) && q.re.Match(rec.Key)
	case ModeJSONPath:
		v, err := q.decoder.Decode(rec.Value)
		if err != nil {
			st.Skipped++
			return false
		}
		return len(q.path.Get(v)) > 0
	default:
		return false
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[store.Record, error]) ([]store.Record, error) {
	var out []store.Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
