// Package relational provides the value model for the join execution
// engine: typed fields with a fixed total order, tuples, schemas, and
// the comparison operators shared by all join operators.
package relational

import (
	"encoding/binary"
	"fmt"
)

// FieldType identifies the concrete type of a Field.
type FieldType uint8

const (
	IntType FieldType = iota
	StringType
)

// String returns the type name
func (t FieldType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field is a single typed value inside a tuple. Fields are immutable
// value objects: comparable, hashable, and byte-encodable.
//
// The cross-type total order is fixed: integers order before strings,
// and values of the same type use their natural order. Partitioning and
// sort-network results depend on this order being stable.
type Field interface {
	Type() FieldType
	// Compare returns -1, 0, or 1 per the total order over fields.
	Compare(other Field) int
	// Hash returns an FNV-1a hash of the encoded field.
	Hash() uint64
	// Bytes returns the canonical encoding of the field.
	Bytes() []byte
	String() string
}

// IntField is a 64-bit integer field.
type IntField int64

// NewIntField creates an integer field
func NewIntField(v int64) IntField {
	return IntField(v)
}

// Type returns IntType
func (f IntField) Type() FieldType {
	return IntType
}

// Value returns the underlying integer
func (f IntField) Value() int64 {
	return int64(f)
}

// Compare orders integers before strings, numerically within integers
func (f IntField) Compare(other Field) int {
	o, ok := other.(IntField)
	if !ok {
		return compareAcrossTypes(f, other)
	}
	if f < o {
		return -1
	} else if f > o {
		return 1
	}
	return 0
}

// Hash returns the FNV-1a hash of the encoded integer
func (f IntField) Hash() uint64 {
	return hashBytes(f.Bytes())
}

// Bytes encodes the integer as 8 little-endian bytes
func (f IntField) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(f))
	return b
}

// String returns the decimal representation
func (f IntField) String() string {
	return fmt.Sprintf("%d", int64(f))
}

// StringField is a text field.
type StringField string

// NewStringField creates a text field
func NewStringField(s string) StringField {
	return StringField(s)
}

// Type returns StringType
func (f StringField) Type() FieldType {
	return StringType
}

// Value returns the underlying string
func (f StringField) Value() string {
	return string(f)
}

// Compare orders strings after integers, lexicographically within strings
func (f StringField) Compare(other Field) int {
	o, ok := other.(StringField)
	if !ok {
		return compareAcrossTypes(f, other)
	}
	if f < o {
		return -1
	} else if f > o {
		return 1
	}
	return 0
}

// Hash returns the FNV-1a hash of the raw string bytes
func (f StringField) Hash() uint64 {
	const prime = 1099511628211
	hash := uint64(14695981039346656037)
	for i := 0; i < len(f); i++ {
		hash ^= uint64(f[i])
		hash *= prime
	}
	return hash
}

// Bytes returns the raw UTF-8 bytes of the string
func (f StringField) Bytes() []byte {
	return []byte(f)
}

// String returns the text value
func (f StringField) String() string {
	return string(f)
}

// CompareFields is the single ordering entry point used by joins,
// sorting networks, and range partitioning. A nil field orders before
// any non-nil field.
func CompareFields(left, right Field) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}
	return left.Compare(right)
}

// FieldsEqual checks two fields for equality under the total order
func FieldsEqual(left, right Field) bool {
	return CompareFields(left, right) == 0
}

// compareAcrossTypes resolves comparisons between different field types
// by type rank: IntType < StringType
func compareAcrossTypes(left, right Field) int {
	lt, rt := left.Type(), right.Type()
	if lt < rt {
		return -1
	} else if lt > rt {
		return 1
	}
	return 0
}

// hashBytes hashes a byte slice with FNV-1a
func hashBytes(b []byte) uint64 {
	const prime = 1099511628211
	hash := uint64(14695981039346656037)
	for _, c := range b {
		hash ^= uint64(c)
		hash *= prime
	}
	return hash
}
