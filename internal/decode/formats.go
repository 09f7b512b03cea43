package decode

import (
	"bytes"
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/vmihailenco/msgpack/v5"
)

// JSON decodes a single JSON document. Integers decode as int64 and other
// numbers as float64, matching what JSONPath filters compare against.
type JSON struct{}

// Name implements Decoder.
func (JSON) Name() string { return "json" }

// Decode implements Decoder.
func (JSON) Decode(value []byte) (any, error) {
	if len(bytes.TrimSpace(value)) == 0 {
		return nil, fmt.Errorf("empty JSON document")
	}
	v, err := oj.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// MsgPack decodes a single MessagePack document. Trailing bytes are an error
// so arbitrary text is not mistaken for a short MessagePack value.
type MsgPack struct{}

// Name implements Decoder.
func (MsgPack) Name() string { return "msgpack" }

// Decode implements Decoder.
func (MsgPack) Decode(value []byte) (any, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty MessagePack document")
	}
	r := bytes.NewReader(value)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid MessagePack: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("invalid MessagePack: %d trailing bytes", r.Len())
	}
	return v, nil
}
