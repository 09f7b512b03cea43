package query

import (
	"strings"

	"github.com/roach88/boltview/internal/apperr"
	"github.com/roach88/boltview/internal/decode"
)

// Parse reads the text form of a query:
//
//	exact:KEY
//	prefix:PREFIX
//	range:[LO..HI)    brackets choose inclusive "[ ]" or exclusive "( )" ends;
//	                  an empty LO or HI is unbounded; brackets default to "[" and ")"
//	regex:PATTERN     (alias re:)
//	jsonpath:EXPR     (alias jp:, or any text starting with "$")
//
// Text without a known prefix is a key prefix. d is the decoder for JSONPath
// queries; nil means "auto".
//
// Errors:
//   - QUERY_SYNTAX: malformed range, regex or JSONPath
func Parse(text string, d decode.Decoder) (Query, error) {
	kind, body, found := strings.Cut(text, ":")
	if !found {
		kind, body = "", text
	}

	switch kind {
	case "exact":
		return Exact([]byte(body)), nil
	case "prefix":
		return Prefix([]byte(body)), nil
	case "range":
		return parseRange(body)
	case "regex", "re":
		return Regex(body)
	case "jsonpath", "jp":
		return JSONPath(body, d)
	}

	if strings.HasPrefix(text, "$") {
		return JSONPath(text, d)
	}
	return Prefix([]byte(text)), nil
}

func parseRange(body string) (Query, error) {
	lowerInclusive, upperInclusive := true, false

	switch {
	case strings.HasPrefix(body, "["):
		body = body[1:]
	case strings.HasPrefix(body, "("):
		lowerInclusive = false
		body = body[1:]
	}
	switch {
	case strings.HasSuffix(body, "]"):
		upperInclusive = true
		body = body[:len(body)-1]
	case strings.HasSuffix(body, ")"):
		body = body[:len(body)-1]
	}

	lo, hi, ok := strings.Cut(body, "..")
	if !ok {
		return Query{}, apperr.Newf(apperr.CodeQuerySyntax, "range", "expected LO..HI, got %q", body)
	}

	var lower, upper *Bound
	if lo != "" {
		lower = &Bound{Key: []byte(lo), Inclusive: lowerInclusive}
	}
	if hi != "" {
		upper = &Bound{Key: []byte(hi), Inclusive: upperInclusive}
	}
	return Range(lower, upper), nil
}
