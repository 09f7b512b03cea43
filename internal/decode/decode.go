// Package decode turns stored value bytes into structured data for JSONPath
// matching and display.
//
// Decoders are looked up by name in a Registry. The Default registry carries
// the built-in decoders:
//
//	raw      bytes as a string, never fails
//	json     JSON document
//	msgpack  MessagePack document (must consume the whole value)
//	auto     json, then msgpack
package decode

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/boltview/internal/apperr"
)

// Decoder turns a value into structured data.
type Decoder interface {
	// Name is the registry key.
	Name() string

	// Decode returns a tree of map[string]any, []any, string, bool, nil and
	// numeric leaves. An error means the value is not in this format.
	Decode(value []byte) (any, error)
}

// Registry maps decoder names to decoders.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Decoder
}

// NewRegistry creates a registry holding ds.
func NewRegistry(ds ...Decoder) *Registry {
	r := &Registry{byName: make(map[string]Decoder, len(ds))}
	for _, d := range ds {
		r.byName[d.Name()] = d
	}
	return r
}

// Register adds d. A name already present is an error.
func (r *Registry) Register(d Decoder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[d.Name()]; ok {
		return apperr.Newf(apperr.CodeInvalidArgument, "register decoder", "decoder %q already registered", d.Name())
	}
	r.byName[d.Name()] = d
	return nil
}

// Lookup returns the decoder called name.
//
// Errors:
//   - INVALID_ARGUMENT: no decoder has that name
func (r *Registry) Lookup(name string) (Decoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "lookup decoder",
			"unknown decoder %q (have %v)", name, r.namesLocked())
	}
	return d, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry.
var Default = NewRegistry(Raw{}, JSON{}, MsgPack{}, Auto{})

// Register adds d to the Default registry.
func Register(d Decoder) error {
	return Default.Register(d)
}

// Lookup finds name in the Default registry.
func Lookup(name string) (Decoder, error) {
	return Default.Lookup(name)
}

// Raw presents the bytes as a string.
type Raw struct{}

// Name implements Decoder.
func (Raw) Name() string { return "raw" }

// Decode implements Decoder.
func (Raw) Decode(value []byte) (any, error) {
	return string(value), nil
}

// Auto tries JSON, then MessagePack.
type Auto struct{}

// Name implements Decoder.
func (Auto) Name() string { return "auto" }

// Decode implements Decoder.
func (Auto) Decode(value []byte) (any, error) {
	if v, err := (JSON{}).Decode(value); err == nil {
		return v, nil
	}
	v, err := (MsgPack{}).Decode(value)
	if err != nil {
		return nil, fmt.Errorf("value is neither JSON nor MessagePack: %w", err)
	}
	return v, nil
}
