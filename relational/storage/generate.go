package storage

import (
	"math/rand"

	"github.com/wbrown/janus-relational/relational"
)

// generateWindow is the width of the value window tables draw from.
const generateWindow = 1000

// GenerateTable builds rows integer tuples of the given width, every
// field drawn uniformly from [keyRange-1000, keyRange). Pass a seeded
// rand.Rand for reproducible tables.
func GenerateTable(r *rand.Rand, rows, width int, keyRange int64) []relational.Tuple {
	lo := keyRange - generateWindow
	tuples := make([]relational.Tuple, rows)
	for i := range tuples {
		t := make(relational.Tuple, width)
		for j := range t {
			t[j] = relational.IntField(lo + r.Int63n(generateWindow))
		}
		tuples[i] = t
	}
	return tuples
}

// GenerateOverlappingTables builds a left and right table that end with
// the same block of common tuples. The distinct rows of each side are
// drawn independently, so the common block sets the guaranteed match
// rate: 1843/205 gives roughly 10% overlap, 1434/614 roughly 30%,
// 1024/1024 half.
func GenerateOverlappingTables(r *rand.Rand, distinct, common, width int, keyRange int64) (left, right []relational.Tuple) {
	left = GenerateTable(r, distinct, width, keyRange)
	right = GenerateTable(r, distinct, width, keyRange)
	shared := GenerateTable(r, common, width, keyRange)
	left = append(left, shared...)
	right = append(right, shared...)
	return left, right
}
