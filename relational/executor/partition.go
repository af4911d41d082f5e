package executor

import (
	"github.com/wbrown/janus-relational/relational"
)

// mwayBuckets is the fixed bucket count of the m-way strategy: two cut
// points over the right side's key range give three range-disjoint
// buckets.
const mwayBuckets = 3

// keyExtrema scans runs for the minimum and maximum join-key value.
// Both are nil when the runs hold no tuples.
func keyExtrema(runs [][]relational.Tuple, key int) (min, max relational.Field) {
	for _, run := range runs {
		for _, t := range run {
			k := t[key]
			if min == nil || relational.CompareFields(k, min) < 0 {
				min = k
			}
			if max == nil || relational.CompareFields(k, max) > 0 {
				max = k
			}
		}
	}
	return min, max
}

// cutPoints derives two evenly spaced cut points over [min, max].
// Range arithmetic needs integer keys; anything else reports false and
// the caller degrades to a single bucket.
func cutPoints(min, max relational.Field) (cut1, cut2 relational.Field, ok bool) {
	lo, okLo := min.(relational.IntField)
	hi, okHi := max.(relational.IntField)
	if !okLo || !okHi {
		return nil, nil, false
	}

	span := int64(hi) - int64(lo)
	cut1 = relational.IntField(int64(lo) + span/3)
	cut2 = relational.IntField(int64(lo) + 2*span/3)
	return cut1, cut2, true
}

// partitionTuples assigns every tuple from every run to one of three
// range buckets: key ≤ cut1 → 0, key ≤ cut2 → 1, else 2. Keys outside
// [min, max] land in the nearest outer bucket, which keeps left tuples
// with no right-side counterpart harmless.
func partitionTuples(runs [][]relational.Tuple, key int, cut1, cut2 relational.Field) [][]relational.Tuple {
	buckets := make([][]relational.Tuple, mwayBuckets)
	for _, run := range runs {
		for _, t := range run {
			k := t[key]
			switch {
			case relational.CompareFields(k, cut1) <= 0:
				buckets[0] = append(buckets[0], t)
			case relational.CompareFields(k, cut2) <= 0:
				buckets[1] = append(buckets[1], t)
			default:
				buckets[2] = append(buckets[2], t)
			}
		}
	}
	return buckets
}

// flattenRuns concatenates runs into a single tuple slice
func flattenRuns(runs [][]relational.Tuple) []relational.Tuple {
	total := 0
	for _, run := range runs {
		total += len(run)
	}
	flat := make([]relational.Tuple, 0, total)
	for _, run := range runs {
		flat = append(flat, run...)
	}
	return flat
}
