package relational

import (
	"strconv"
	"strings"
)

// Attribute is a named, typed column of a schema.
type Attribute struct {
	Name string
	Type FieldType
}

// Schema is an ordered sequence of attributes with name lookup. A join
// operator's output schema is the concatenation of its children's
// schemas, fixed at construction and immutable afterwards.
type Schema struct {
	attrs  []Attribute
	byName map[string]int
}

// NewSchema creates a schema from attributes. When a name repeats, the
// rightmost position wins the name lookup; positional access is
// unaffected.
func NewSchema(attrs []Attribute) *Schema {
	s := &Schema{
		attrs:  make([]Attribute, len(attrs)),
		byName: make(map[string]int, len(attrs)),
	}
	copy(s.attrs, attrs)
	for i, a := range s.attrs {
		s.byName[a.Name] = i
	}
	return s
}

// IntSchema creates a schema of width integer columns named c0..cN, the
// shape used by generated benchmark tables
func IntSchema(width int) *Schema {
	attrs := make([]Attribute, width)
	for i := range attrs {
		attrs[i] = Attribute{Name: "c" + strconv.Itoa(i), Type: IntType}
	}
	return NewSchema(attrs)
}

// Len returns the number of attributes
func (s *Schema) Len() int {
	return len(s.attrs)
}

// Attribute returns the attribute at index i. An out-of-range index is
// a programming error and panics.
func (s *Schema) Attribute(i int) Attribute {
	return s.attrs[i]
}

// Attributes returns a copy of the attribute list
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// IndexOf returns the position of the named attribute
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// Concat returns a new schema holding this schema's attributes followed
// by other's. Mirrors Tuple.Concat.
func (s *Schema) Concat(other *Schema) *Schema {
	attrs := make([]Attribute, 0, len(s.attrs)+len(other.attrs))
	attrs = append(attrs, s.attrs...)
	attrs = append(attrs, other.attrs...)
	return NewSchema(attrs)
}

// Equal checks attribute-wise equality
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.attrs) != len(other.attrs) {
		return false
	}
	for i := range s.attrs {
		if s.attrs[i] != other.attrs[i] {
			return false
		}
	}
	return true
}

// String renders the schema as [name:type, ...]
func (s *Schema) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, a := range s.attrs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Name)
		sb.WriteByte(':')
		sb.WriteString(a.Type.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
