package export

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"

	"github.com/roach88/boltview/internal/store"
)

// entry is the JSON shape of one record. []byte marshals as base64.
type entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

func writeJSON(w io.Writer, records iter.Seq2[store.Record, error]) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return 0, err
	}

	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		b, err := json.Marshal(entry{Key: rec.Key, Value: rec.Value})
		if err != nil {
			return n, err
		}
		sep := "\n  "
		if n > 0 {
			sep = ",\n  "
		}
		if _, err := bw.WriteString(sep); err != nil {
			return n, err
		}
		if _, err := bw.Write(b); err != nil {
			return n, err
		}
		n++
	}

	tail := "]\n"
	if n > 0 {
		tail = "\n]\n"
	}
	if _, err := bw.WriteString(tail); err != nil {
		return n, err
	}
	return n, bw.Flush()
}

func readJSON(r io.Reader) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		dec := json.NewDecoder(r)
		tok, err := dec.Token()
		if err != nil {
			yield(store.Record{}, malformed("json: %v", err))
			return
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			yield(store.Record{}, malformed("json: expected array, got %v", tok))
			return
		}

		for i := 0; dec.More(); i++ {
			var e entry
			if err := dec.Decode(&e); err != nil {
				yield(store.Record{}, malformed("json: record %d: %v", i, err))
				return
			}
			if e.Key == nil {
				yield(store.Record{}, malformed("json: record %d has no key", i))
				return
			}
			if e.Value == nil {
				e.Value = []byte{}
			}
			if !yield(store.Record{Key: e.Key, Value: e.Value}, nil) {
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			yield(store.Record{}, malformed("json: %v", err))
		}
	}
}
