package cbor

import (
	"fmt"
	"math/big"
)

// ByteString is a decoded CBOR byte string (major type 2). It is backed by a
// plain string so that, like every other decoded scalar, it is directly
// usable as a map key without any further wrapping.
type ByteString string

// Bytes returns the byte string's contents as a fresh []byte.
func (b ByteString) Bytes() []byte {
	return []byte(b)
}

// String implements fmt.Stringer.
func (b ByteString) String() string {
	return string(b)
}

// undefinedType is the type of the sentinel returned for CBOR's "undefined"
// simple value (major type 7, additional info 23). There is exactly one
// instance, Undefined.
type undefinedType struct{}

// String implements fmt.Stringer.
func (undefinedType) String() string { return "undefined" }

// Undefined is the decoded representation of CBOR's undefined simple value.
var Undefined = undefinedType{}

// List is a decoded CBOR array (major type 4). Container values are always
// handed out by pointer: pointer identity is what lets a List be both
// self-referential (a TagSharedMarker slot can be filled in place while its
// own payload is still being decoded) and, once Immutable, directly usable
// as a map key, without a second "freeze" pass over the data.
type List struct {
	Items []any

	// Immutable records that this value was decoded in a context that
	// demanded a hashable result (a map key, or the payload or a member of a
	// TagSet, which is always decoded immutably). It does not change how
	// the value behaves in Go; it documents the context it came from and
	// lets tag handlers make the same set/frozenset-style decisions cbor2
	// makes based on decoder.immutable.
	Immutable bool
}

// Map is a decoded CBOR map (major type 5).
type Map struct {
	Entries map[any]any

	// Order preserves the sequence in which keys were first decoded, since
	// Go map iteration order is undefined and RFC 8949 does not require
	// sorted keys outside of canonical encodings.
	Order []any

	Immutable bool
}

// newMap allocates an empty Map ready to accept entries.
func newMap() *Map {
	return &Map{Entries: make(map[any]any)}
}

// put records a key/value pair, preserving first-seen key order. A custom
// tag handler or object hook can hand back an incomparable Go value (a
// slice, a map, a non-pointer struct containing either); using such a value
// as a map key panics at the language level, so put recovers and turns that
// into an ordinary error instead of taking the whole decode down with it.
func (m *Map) put(key, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newValueError("unhashable type used as map key: %v", r)
		}
	}()
	if _, exists := m.Entries[key]; !exists {
		m.Order = append(m.Order, key)
	}
	m.Entries[key] = value
	return nil
}

// Set is a decoded CBOR set (TagSet, tag 258): an array whose members are
// deduplicated on decode, mirroring Python's set()/frozenset() conversion.
type Set struct {
	Items     []any
	Immutable bool
}

// Has reports whether v is a member of the set.
func (s *Set) Has(v any) bool {
	for _, item := range s.Items {
		if item == v {
			return true
		}
	}
	return false
}

// newSet builds a Set from a decoded array's items, dropping duplicates in
// the same manner as Python's set(list).
func newSet(items []any, immutable bool) *Set {
	s := &Set{Immutable: immutable}
	for _, item := range items {
		if !s.Has(item) {
			s.Items = append(s.Items, item)
		}
	}
	return s
}

// Tag is a decoded CBOR semantic tag (major type 6) for which no tag handler
// produced a substitute value - or the intermediate value handed to a tag
// handler before it runs. It corresponds to cbor2's CBORTag.
type Tag struct {
	Number uint64
	Value  any
}

// String implements fmt.Stringer.
func (t *Tag) String() string {
	return fmt.Sprintf("Tag(%d, %v)", t.Number, t.Value)
}

// Decimal is the decoded payload of a TagDecimalFraction (tag 4): the exact
// value Mantissa * 10^Exponent. Go has no standard-library decimal type, so
// this keeps the two components intact rather than lossily collapsing them
// into a float64.
type Decimal struct {
	Exponent int64
	Mantissa *big.Int
}

// Float64 returns an approximate float64 value for the decimal.
func (d *Decimal) Float64() float64 {
	f := new(big.Float).SetInt(d.Mantissa)
	if d.Exponent == 0 {
		v, _ := f.Float64()
		return v
	}
	pow := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(absInt64(d.Exponent)), nil))
	if d.Exponent > 0 {
		f.Mul(f, pow)
	} else {
		f.Quo(f, pow)
	}
	v, _ := f.Float64()
	return v
}

// String implements fmt.Stringer.
func (d *Decimal) String() string {
	return fmt.Sprintf("%se%d", d.Mantissa.String(), d.Exponent)
}

// BigFloat is the decoded payload of a TagBigFloat (tag 5): the exact value
// Mantissa * 2^Exponent.
type BigFloat struct {
	Exponent int64
	Mantissa *big.Int
}

// Float64 returns an approximate float64 value for the bigfloat.
func (b *BigFloat) Float64() float64 {
	f := new(big.Float).SetInt(b.Mantissa)
	f.SetMantExp(f, int(b.Exponent))
	v, _ := f.Float64()
	return v
}

// String implements fmt.Stringer.
func (b *BigFloat) String() string {
	return fmt.Sprintf("%sp%d", b.Mantissa.String(), b.Exponent)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
