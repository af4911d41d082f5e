package executor

import (
	"math/rand"
	"testing"

	"github.com/wbrown/janus-relational/relational"
)

func TestSortNetworkFour(t *testing.T) {
	// Exhaustive over the value domain 0..3: covers every permutation
	// and every duplicate pattern of four keys
	for a := int64(0); a < 4; a++ {
		for b := int64(0); b < 4; b++ {
			for c := int64(0); c < 4; c++ {
				for d := int64(0); d < 4; d++ {
					run := intRun(a, b, c, d)
					sortNetworkFour(run, 0)
					if !keysNonDecreasing(run, 0) {
						t.Fatalf("input (%d,%d,%d,%d) sorted to %v", a, b, c, d, run)
					}
				}
			}
		}
	}
}

func TestBitonicMergeEight(t *testing.T) {
	// The three-stage merger expects a bitonic arrangement: first four
	// ascending, last four descending
	r := rand.New(rand.NewSource(19))
	for trial := 0; trial < 200; trial++ {
		run := make([]relational.Tuple, 8)
		for i := range run {
			run[i] = relational.IntTuple(r.Int63n(20))
		}
		sortRunByKey(run[:4], 0)
		sortRunByKey(run[4:], 0)
		reverseRun(run[4:])

		before := append([]relational.Tuple(nil), run...)
		bitonicMergeEight(run, 0)

		if !keysNonDecreasing(run, 0) {
			t.Fatalf("trial %d: input %v merged to %v", trial, before, run)
		}
		if !sameMultiset(run, before) {
			t.Fatalf("trial %d: merger lost tuples: %v -> %v", trial, before, run)
		}
	}
}

func TestSortRunShortLengths(t *testing.T) {
	// Everything except exactly four tuples takes the comparison-sort
	// fallback
	r := rand.New(rand.NewSource(23))
	for _, n := range []int{1, 2, 3, 5, 6, 7} {
		run := make([]relational.Tuple, n)
		for i := range run {
			run[i] = relational.IntTuple(r.Int63n(50), int64(i))
		}
		sortRun(run, 0)
		if !keysNonDecreasing(run, 0) {
			t.Errorf("length %d: sorted to %v", n, run)
		}
	}
}

func TestChunkRuns(t *testing.T) {
	cases := []struct {
		total int
		sizes []int
	}{
		{0, nil},
		{1, []int{1}},
		{4, []int{4}},
		{5, []int{4, 1}},
		{8, []int{4, 4}},
		{11, []int{4, 4, 3}},
	}

	for _, tc := range cases {
		tuples := make([]relational.Tuple, tc.total)
		for i := range tuples {
			tuples[i] = relational.IntTuple(int64(i))
		}

		runs := chunkRuns(tuples)
		if len(runs) != len(tc.sizes) {
			t.Errorf("total %d: got %d runs, want %d", tc.total, len(runs), len(tc.sizes))
			continue
		}
		seen := 0
		for i, run := range runs {
			if len(run) != tc.sizes[i] {
				t.Errorf("total %d run %d: len %d, want %d", tc.total, i, len(run), tc.sizes[i])
			}
			for _, tuple := range run {
				if tuple[0] != relational.IntField(int64(seen)) {
					t.Errorf("total %d: run contents out of order at %d: %v", tc.total, seen, tuple)
				}
				seen++
			}
		}
	}
}

func TestMergePair(t *testing.T) {
	r := rand.New(rand.NewSource(29))

	t.Run("two full runs", func(t *testing.T) {
		for trial := 0; trial < 100; trial++ {
			first := sortedRun(r, 4)
			second := sortedRun(r, 4)
			want := append(append([]relational.Tuple(nil), first...), second...)

			merged := mergePair(first, second, 0)
			if len(merged) != 8 || !keysNonDecreasing(merged, 0) {
				t.Fatalf("trial %d: merged %v + %v to %v", trial, first, second, merged)
			}
			if !sameMultiset(merged, want) {
				t.Fatalf("trial %d: merge lost tuples: %v", trial, merged)
			}
		}
	})

	t.Run("short second run", func(t *testing.T) {
		first := sortedRun(r, 4)
		second := sortedRun(r, 2)
		want := append(append([]relational.Tuple(nil), first...), second...)

		merged := mergePair(first, second, 0)
		if len(merged) != 6 || !keysNonDecreasing(merged, 0) {
			t.Fatalf("merged %v + %v to %v", first, second, merged)
		}
		if !sameMultiset(merged, want) {
			t.Fatalf("merge lost tuples: %v", merged)
		}
	})
}

func TestKeyExtrema(t *testing.T) {
	runs := [][]relational.Tuple{
		{relational.IntTuple(4), relational.IntTuple(-17)},
		{relational.IntTuple(903), relational.IntTuple(0)},
		{relational.IntTuple(12)},
	}
	min, max := keyExtrema(runs, 0)
	if min != relational.IntField(-17) || max != relational.IntField(903) {
		t.Errorf("extrema %v..%v, want -17..903", min, max)
	}

	min, max = keyExtrema(nil, 0)
	if min != nil || max != nil {
		t.Errorf("empty runs: extrema %v..%v, want nil..nil", min, max)
	}
}

func TestCutPoints(t *testing.T) {
	cut1, cut2, ok := cutPoints(relational.IntField(0), relational.IntField(9))
	if !ok || cut1 != relational.IntField(3) || cut2 != relational.IntField(6) {
		t.Errorf("cuts over [0,9]: %v, %v, %v", cut1, cut2, ok)
	}

	cut1, cut2, ok = cutPoints(relational.IntField(-900), relational.IntField(1000))
	if !ok || cut1 != relational.IntField(-267) || cut2 != relational.IntField(366) {
		t.Errorf("cuts over [-900,1000]: %v, %v, %v", cut1, cut2, ok)
	}

	if _, _, ok := cutPoints(nil, nil); ok {
		t.Error("nil extrema must not produce cut points")
	}
	if _, _, ok := cutPoints(relational.StringField("a"), relational.StringField("z")); ok {
		t.Error("text extrema must not produce cut points")
	}
}

func TestPartitionInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(31))
	tuples := make([]relational.Tuple, 200)
	for i := range tuples {
		tuples[i] = relational.IntTuple(r.Int63n(1000)-500, int64(i))
	}
	runs := chunkRuns(tuples)

	min, max := keyExtrema(runs, 0)
	cut1, cut2, ok := cutPoints(min, max)
	if !ok {
		t.Fatal("integer extrema must produce cut points")
	}
	buckets := partitionTuples(runs, 0, cut1, cut2)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}

	total := 0
	for _, bucket := range buckets {
		total += len(bucket)
	}
	if total != len(tuples) {
		t.Errorf("partition kept %d of %d tuples", total, len(tuples))
	}

	// Every key in bucket i must be <= every key in bucket i+1
	for i := 0; i+1 < len(buckets); i++ {
		lowMax, _ := bucketExtrema(buckets[i])
		_, highMin := bucketExtrema(buckets[i+1])
		if lowMax == nil || highMin == nil {
			continue
		}
		if relational.CompareFields(lowMax, highMin) > 0 {
			t.Errorf("bucket %d max %v exceeds bucket %d min %v", i, lowMax, i+1, highMin)
		}
	}
}

// Helper functions

func intRun(keys ...int64) []relational.Tuple {
	run := make([]relational.Tuple, len(keys))
	for i, k := range keys {
		run[i] = relational.IntTuple(k)
	}
	return run
}

func keysNonDecreasing(run []relational.Tuple, key int) bool {
	for i := 1; i < len(run); i++ {
		if relational.CompareFields(run[i-1][key], run[i][key]) > 0 {
			return false
		}
	}
	return true
}

func reverseRun(run []relational.Tuple) {
	for i, k := 0, len(run)-1; i < k; i, k = i+1, k-1 {
		run[i], run[k] = run[k], run[i]
	}
}

// sortedRun generates n tuples sorted ascending on field 0
func sortedRun(r *rand.Rand, n int) []relational.Tuple {
	run := make([]relational.Tuple, n)
	for i := range run {
		run[i] = relational.IntTuple(r.Int63n(40), int64(i))
	}
	sortRunByKey(run, 0)
	return run
}

// bucketExtrema returns the max and min key of a bucket
func bucketExtrema(bucket []relational.Tuple) (max, min relational.Field) {
	for _, tuple := range bucket {
		k := tuple[0]
		if max == nil || relational.CompareFields(k, max) > 0 {
			max = k
		}
		if min == nil || relational.CompareFields(k, min) < 0 {
			min = k
		}
	}
	return max, min
}
