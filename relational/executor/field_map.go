package executor

import (
	"github.com/wbrown/janus-relational/relational"
)

// FieldMap is an insertion-order-preserving multimap from a join-key
// field to the tuples carrying that key. It hashes fields to uint64 and
// resolves hash collisions by comparing the actual field values.
type FieldMap struct {
	m      map[uint64][]fieldGroup
	groups int
}

// fieldGroup holds every tuple sharing one join-key value, in the
// order the tuples were added.
type fieldGroup struct {
	key    relational.Field
	tuples []relational.Tuple
}

// NewFieldMap creates an empty FieldMap
func NewFieldMap() *FieldMap {
	return &FieldMap{
		m: make(map[uint64][]fieldGroup),
	}
}

// NewFieldMapWithCapacity creates a FieldMap pre-sized for
// expectedSize distinct keys
func NewFieldMapWithCapacity(expectedSize int) *FieldMap {
	return &FieldMap{
		m: make(map[uint64][]fieldGroup, expectedSize),
	}
}

// Add appends a tuple to the group for key, creating the group on
// first sight of the key
func (m *FieldMap) Add(key relational.Field, t relational.Tuple) {
	hash := hashField(key)
	groups := m.m[hash]

	for i := range groups {
		if relational.FieldsEqual(groups[i].key, key) {
			groups[i].tuples = append(groups[i].tuples, t)
			return
		}
	}

	m.m[hash] = append(groups, fieldGroup{
		key:    key,
		tuples: []relational.Tuple{t},
	})
	m.groups++
}

// Get returns the group for key in insertion order
func (m *FieldMap) Get(key relational.Field) ([]relational.Tuple, bool) {
	groups, ok := m.m[hashField(key)]
	if !ok {
		return nil, false
	}

	for i := range groups {
		if relational.FieldsEqual(groups[i].key, key) {
			return groups[i].tuples, true
		}
	}

	return nil, false
}

// Exists checks whether any tuple was added under key
func (m *FieldMap) Exists(key relational.Field) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of distinct keys
func (m *FieldMap) Len() int {
	return m.groups
}

// hashField hashes a field, mapping nil to zero
func hashField(f relational.Field) uint64 {
	if f == nil {
		return 0
	}
	return f.Hash()
}
