// Package labels models request label sets and their layered merge.
//
// A Set is an immutable mapping from non-empty keys to values. Layers tag a
// Set with the origin it came from; Merge folds an ordered sequence of
// layers into the effective Set with last-write-wins semantics.
//
// Keys and values are passed through unmodified. Length limits, character
// restrictions and escaping belong to the backend that receives the labels.
package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyKey is returned when a label key is the empty string.
var ErrEmptyKey = errors.New("label key must be non-empty")

// Set is an immutable label mapping.
//
// A nil *Set means "absent" and is distinct from an empty Set, although
// every read accessor treats nil as zero entries.
type Set struct {
	m map[string]string
}

// New returns a Set holding a copy of m.
// A nil or empty map yields an empty (non-nil) Set.
func New(m map[string]string) (*Set, error) {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		if k == "" {
			return nil, ErrEmptyKey
		}
		cp[k] = v
	}
	return &Set{m: cp}, nil
}

// MustNew is like New but panics on error.
// Use only in tests or with literal maps.
func MustNew(m map[string]string) *Set {
	s, err := New(m)
	if err != nil {
		panic(err)
	}
	return s
}

// Empty returns a Set with zero entries.
func Empty() *Set {
	return &Set{m: map[string]string{}}
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Get returns the value for key and whether it was present.
func (s *Set) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.m[key]
	return v, ok
}

// Keys returns the keys in sorted order.
func (s *Set) Keys() []string {
	if s == nil {
		return []string{}
	}
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the entries. Mutating it does not affect s.
func (s *Set) Map() map[string]string {
	cp := make(map[string]string, s.Len())
	if s == nil {
		return cp
	}
	for k, v := range s.m {
		cp[k] = v
	}
	return cp
}

// Equal reports whether s and o hold the same entries.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, k := range s.Keys() {
		ov, ok := o.Get(k)
		if !ok {
			return false
		}
		if v, _ := s.Get(k); v != ov {
			return false
		}
	}
	return true
}

// String renders the set as "{k1=v1, k2=v2}" with sorted keys.
func (s *Set) String() string {
	keys := s.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, _ := s.Get(k)
		parts[i] = k + "=" + v
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the set as a JSON object.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// Origin identifies where a layer's labels came from.
type Origin int

const (
	// Default labels are supplied when the client is constructed.
	Default Origin = iota
	// Override labels are supplied with a single call.
	Override
)

func (o Origin) String() string {
	switch o {
	case Default:
		return "default"
	case Override:
		return "override"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// ParseOrigin converts "default" or "override" to an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return Default, nil
	case "override":
		return Override, nil
	default:
		return 0, fmt.Errorf("unknown layer origin %q: must be default or override", s)
	}
}

// Layer is one source of labels.
// A nil Labels field is an absent layer and merges as a no-op.
type Layer struct {
	Origin Origin
	Labels *Set
}

// Merge folds layers in order into a new Set. For every key, the value from
// the last layer that contains it wins; keys missing from later layers are
// kept. Inputs are never mutated. Merge of zero layers is the empty Set.
func Merge(layers ...Layer) *Set {
	acc := make(map[string]string)
	for _, l := range layers {
		if l.Labels == nil {
			continue
		}
		for k, v := range l.Labels.m {
			acc[k] = v
		}
	}
	return &Set{m: acc}
}

// Stack returns a copy of layers with every Default layer ahead of every
// Override layer. Relative order within one origin is preserved, so Merge
// of the result lets call-time labels win over construction-time labels
// however the caller listed them.
func Stack(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Origin < out[j].Origin
	})
	return out
}
