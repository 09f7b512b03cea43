// Package query builds and runs key and value queries over a store.Reader.
//
// A Query is validated when it is built: a malformed regex or JSONPath
// expression fails at construction with QUERY_SYNTAX and never reaches a
// scan. Execute returns a lazy, restartable sequence; each iteration opens
// a fresh cursor and holds one entry (and at most one decoded value) at a
// time.
package query

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/ohler55/ojg/jp"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/decode"
)

// Mode selects how a Query matches entries.
type Mode int

const (
	// ModeExact matches one key.
	ModeExact Mode = iota + 1
	// ModePrefix matches keys starting with a prefix.
	ModePrefix
	// ModeRange matches keys between two bounds.
	ModeRange
	// ModeRegex matches UTF-8 keys against a regular expression.
	ModeRegex
	// ModeJSONPath matches decoded values selected by a JSONPath expression.
	ModeJSONPath
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModePrefix:
		return "prefix"
	case ModeRange:
		return "range"
	case ModeRegex:
		return "regex"
	case ModeJSONPath:
		return "jsonpath"
	default:
		return "unknown"
	}
}

// Bound is one end of a key range.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// Inclusive returns a bound that includes key.
func Inclusive(key []byte) *Bound {
	return &Bound{Key: key, Inclusive: true}
}

// Exclusive returns a bound that excludes key.
func Exclusive(key []byte) *Bound {
	return &Bound{Key: key}
}

// Query is an immutable, validated query. The zero value matches nothing;
// use the constructors.
type Query struct {
	mode    Mode
	key     []byte
	lower   *Bound
	upper   *Bound
	expr    string
	re      *regexp.Regexp
	path    jp.Expr
	decoder decode.Decoder
	limit   int
}

// Exact matches the single entry at key.
func Exact(key []byte) Query {
	return Query{mode: ModeExact, key: clone(key)}
}

// Prefix matches every key starting with prefix. An empty prefix matches all keys.
func Prefix(prefix []byte) Query {
	return Query{mode: ModePrefix, key: clone(prefix)}
}

// Range matches keys between lower and upper. A nil bound is unbounded.
// If lower sorts after upper the query matches nothing.
func Range(lower, upper *Bound) Query {
	return Query{mode: ModeRange, lower: cloneBound(lower), upper: cloneBound(upper)}
}

// All matches every entry.
func All() Query {
	return Range(nil, nil)
}

// Regex matches keys that are valid UTF-8 and match pattern (RE2 syntax).
//
// Errors:
//   - QUERY_SYNTAX: pattern does not compile
func Regex(pattern string) (Query, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Query{}, apperr.Wrap(apperr.CodeQuerySyntax, "regex", err)
	}
	return Query{mode: ModeRegex, expr: pattern, re: re}, nil
}

// JSONPath matches entries whose decoded value yields at least one result for
// expr. Values the decoder rejects are skipped. A nil decoder means "auto".
//
// Errors:
//   - QUERY_SYNTAX: expr does not parse
func JSONPath(expr string, d decode.Decoder) (Query, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return Query{}, apperr.Wrap(apperr.CodeQuerySyntax, "jsonpath", err)
	}
	if d == nil {
		d = decode.Auto{}
	}
	return Query{mode: ModeJSONPath, expr: expr, path: x, decoder: d}, nil
}

// WithLimit returns a copy of q that stops after n matches. n <= 0 means no limit.
func (q Query) WithLimit(n int) Query {
	q.limit = n
	return q
}

// Mode returns the query's mode.
func (q Query) Mode() Mode { return q.mode }

// Limit returns the match limit, 0 when unlimited.
func (q Query) Limit() int { return q.limit }

// Decoder returns the value decoder for JSONPath queries, nil otherwise.
func (q Query) Decoder() decode.Decoder { return q.decoder }

// String renders the query in the syntax Parse accepts.
func (q Query) String() string {
	switch q.mode {
	case ModeExact:
		return "exact:" + string(q.key)
	case ModePrefix:
		return "prefix:" + string(q.key)
	case ModeRange:
		open, closing := "[", ")"
		var lo, hi string
		if q.lower != nil {
			lo = string(q.lower.Key)
			if !q.lower.Inclusive {
				open = "("
			}
		}
		if q.upper != nil {
			hi = string(q.upper.Key)
			if q.upper.Inclusive {
				closing = "]"
			}
		}
		return fmt.Sprintf("range:%s%s..%s%s", open, lo, hi, closing)
	case ModeRegex:
		return "regex:" + q.expr
	case ModeJSONPath:
		return "jsonpath:" + q.expr
	default:
		return "invalid:" + strconv.Itoa(int(q.mode))
	}
}

// empty reports whether the range bounds exclude every key.
func (q Query) empty() bool {
	if q.lower == nil || q.upper == nil {
		return false
	}
	c := bytes.Compare(q.lower.Key, q.upper.Key)
	return c > 0 || (c == 0 && !(q.lower.Inclusive && q.upper.Inclusive))
}

// beyond reports whether key is past the end of the range or prefix, so no
// later key in order can match.
func (q Query) beyond(key []byte) bool {
	switch q.mode {
	case ModePrefix:
		return !bytes.HasPrefix(key, q.key)
	case ModeRange:
		if q.upper == nil {
			return false
		}
		c := bytes.Compare(key, q.upper.Key)
		return c > 0 || (c == 0 && !q.upper.Inclusive)
	default:
		return false
	}
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}

func cloneBound(b *Bound) *Bound {
	if b == nil {
		return nil
	}
	return &Bound{Key: clone(b.Key), Inclusive: b.Inclusive}
}
