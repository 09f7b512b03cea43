package export

import (
	"encoding/base64"
	"encoding/csv"
	"errors"
	"io"
	"iter"

	"github.com/roach88/boltview/internal/store"
)

var csvHeader = []string{"key", "value"}

func writeCSV(w io.Writer, records iter.Seq2[store.Record, error]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		row := []string{
			base64.StdEncoding.EncodeToString(rec.Key),
			base64.StdEncoding.EncodeToString(rec.Value),
		}
		if err := cw.Write(row); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func readCSV(r io.Reader) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = 2

		header, err := cr.Read()
		if err != nil {
			yield(store.Record{}, malformed("csv: missing header: %v", err))
			return
		}
		if header[0] != csvHeader[0] || header[1] != csvHeader[1] {
			yield(store.Record{}, malformed("csv: header must be %q, got %q", csvHeader, header))
			return
		}

		for line := 2; ; line++ {
			row, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(store.Record{}, malformed("csv: %v", err))
				return
			}
			key, err := base64.StdEncoding.DecodeString(row[0])
			if err != nil {
				yield(store.Record{}, malformed("csv: line %d: key: %v", line, err))
				return
			}
			value, err := base64.StdEncoding.DecodeString(row[1])
			if err != nil {
				yield(store.Record{}, malformed("csv: line %d: value: %v", line, err))
				return
			}
			if !yield(store.Record{Key: key, Value: value}, nil) {
				return
			}
		}
	}
}
