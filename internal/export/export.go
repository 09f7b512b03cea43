// Package export writes database entries to portable files and reads them
// back for import.
//
// Formats:
//   - json: an array of {"key": BASE64, "value": BASE64} objects
//   - csv: a "key,value" header, then one base64 row per entry
//   - sqlite: a records(key BLOB, value BLOB) table
//
// Keys and values are arbitrary bytes, so every format preserves them
// exactly; an export followed by an import reproduces the entries
// byte-for-byte.
package export

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/store"
)

// Format names an export file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatSQLite}

// ParseFormat validates a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", apperr.Newf(apperr.CodeInvalidArgument, "export", "unknown format %q (valid: json, csv, sqlite)", s)
}

// Streams reports whether the format can be written to an io.Writer.
// SQLite needs a file path.
func (f Format) Streams() bool {
	return f == FormatJSON || f == FormatCSV
}

// Write streams records to w. Returns the number of records written.
func Write(w io.Writer, f Format, records iter.Seq2[store.Record, error]) (int, error) {
	switch f {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatCSV:
		return writeCSV(w, records)
	default:
		return 0, apperr.Newf(apperr.CodeInvalidArgument, "export", "format %q cannot be streamed", f)
	}
}

// WriteFile writes records to path, replacing any existing file. On error
// the partial file is removed.
func WriteFile(path string, f Format, records iter.Seq2[store.Record, error]) (n int, err error) {
	if f == FormatSQLite {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("failed to replace %s: %w", path, err)
		}
		n, err = writeSQLite(path, records)
		if err != nil {
			_ = os.Remove(path)
		}
		return n, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err = Write(file, f, records)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

// Read returns the records in r. Decoding is lazy and stops at the first
// malformed record, which is yielded as an INVALID_ARGUMENT error.
func Read(r io.Reader, f Format) iter.Seq2[store.Record, error] {
	switch f {
	case FormatJSON:
		return readJSON(r)
	case FormatCSV:
		return readCSV(r)
	default:
		return fail(apperr.Newf(apperr.CodeInvalidArgument, "import", "format %q cannot be streamed", f))
	}
}

// ReadFile returns the records stored at path. The file is opened when the
// sequence is ranged over and closed when it ends.
func ReadFile(path string, f Format) iter.Seq2[store.Record, error] {
	if f == FormatSQLite {
		return readSQLite(path)
	}
	return func(yield func(store.Record, error) bool) {
		file, err := os.Open(path)
		if err != nil {
			yield(store.Record{}, fmt.Errorf("failed to open %s: %w", path, err))
			return
		}
		defer file.Close()
		for rec, err := range Read(file, f) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

func fail(err error) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		yield(store.Record{}, err)
	}
}

func malformed(format string, args ...any) error {
	return apperr.Newf(apperr.CodeInvalidArgument, "import", format, args...)
}
