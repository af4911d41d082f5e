package relational

import (
	"strings"
)

// Tuple is an ordered, fixed-length sequence of fields. Tuples produced
// by a stream are treated as immutable: operators read and recombine
// them but never mutate one in place.
type Tuple []Field

// NewTuple creates a tuple from fields
func NewTuple(fields ...Field) Tuple {
	return Tuple(fields)
}

// IntTuple creates a tuple of integer fields, a shorthand used heavily
// by tests and generators
func IntTuple(values ...int64) Tuple {
	t := make(Tuple, len(values))
	for i, v := range values {
		t[i] = IntField(v)
	}
	return t
}

// Field returns the field at index i. An out-of-range index is a
// programming error and panics.
func (t Tuple) Field(i int) Field {
	return t[i]
}

// SetField replaces the field at index i
func (t Tuple) SetField(i int, f Field) {
	t[i] = f
}

// Len returns the number of fields
func (t Tuple) Len() int {
	return len(t)
}

// Concat returns a fresh tuple holding this tuple's fields followed by
// other's fields. Neither input is modified.
func (t Tuple) Concat(other Tuple) Tuple {
	out := make(Tuple, 0, len(t)+len(other))
	out = append(out, t...)
	out = append(out, other...)
	return out
}

// Equal checks field-wise equality
func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if !FieldsEqual(t[i], other[i]) {
			return false
		}
	}
	return true
}

// Hash combines the field hashes with FNV-1a folding
func (t Tuple) Hash() uint64 {
	const prime = 1099511628211
	hash := uint64(14695981039346656037)
	for _, f := range t {
		if f == nil {
			hash *= prime
			continue
		}
		hash ^= f.Hash()
		hash *= prime
	}
	return hash
}

// Clone returns a shallow copy of the tuple. Fields are immutable, so a
// shallow copy is an independent tuple.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// String renders the tuple as (f1, f2, ...)
func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, f := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f == nil {
			sb.WriteString("nil")
			continue
		}
		sb.WriteString(f.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
