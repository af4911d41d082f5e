package executor

import (
	"sort"

	"github.com/wbrown/janus-relational/relational"
)

// Fixed sorting networks for the sort-merge join's first two levels.
//
// levelOneNetwork sorts any 4 elements with 5 compare-exchanges.
// levelTwoStages is a 3-stage bitonic merger for 8 elements; it only
// sorts inputs arranged as an ascending 4-run followed by a descending
// 4-run, which is exactly what pairing level-1 runs forward+reversed
// produces.
var levelOneNetwork = [5][2]int{{0, 1}, {2, 3}, {0, 2}, {1, 3}, {1, 2}}

// runSize is the level-1 run length the 4-element network handles.
const runSize = 4

var levelTwoStages = [3][4][2]int{
	{{0, 4}, {1, 5}, {2, 6}, {3, 7}},
	{{0, 2}, {1, 3}, {4, 6}, {5, 7}},
	{{0, 1}, {2, 3}, {4, 5}, {6, 7}},
}

// compareExchange orders run[i] and run[j] by the join-key field
func compareExchange(run []relational.Tuple, i, j, key int) {
	if relational.CompareFields(run[i][key], run[j][key]) > 0 {
		run[i], run[j] = run[j], run[i]
	}
}

// sortNetworkFour sorts a run of exactly 4 tuples in place by the
// join-key field
func sortNetworkFour(run []relational.Tuple, key int) {
	for _, cx := range levelOneNetwork {
		compareExchange(run, cx[0], cx[1], key)
	}
}

// bitonicMergeEight sorts a bitonic run of exactly 8 tuples in place
// by the join-key field. The run must ascend for the first 4 elements
// and descend for the last 4.
func bitonicMergeEight(run []relational.Tuple, key int) {
	for _, stage := range levelTwoStages {
		for _, cx := range stage {
			compareExchange(run, cx[0], cx[1], key)
		}
	}
}

// sortRunByKey is the comparison-sort fallback used for runs the fixed
// networks cannot take: short tails and the level-3 bucket re-sort.
// Not stable; equal-key tie order is unspecified throughout.
func sortRunByKey(run []relational.Tuple, key int) {
	sort.Slice(run, func(a, b int) bool {
		return relational.CompareFields(run[a][key], run[b][key]) < 0
	})
}

// sortRun dispatches a run to the level-1 network or the fallback
func sortRun(run []relational.Tuple, key int) {
	if len(run) == runSize {
		sortNetworkFour(run, key)
		return
	}
	sortRunByKey(run, key)
}

// chunkRuns splits tuples into runs of runSize; the final run may be
// shorter. Runs alias the input slice so in-place sorting sorts the
// underlying storage.
func chunkRuns(tuples []relational.Tuple) [][]relational.Tuple {
	if len(tuples) == 0 {
		return nil
	}
	runs := make([][]relational.Tuple, 0, (len(tuples)+runSize-1)/runSize)
	for start := 0; start < len(tuples); start += runSize {
		end := start + runSize
		if end > len(tuples) {
			end = len(tuples)
		}
		runs = append(runs, tuples[start:end])
	}
	return runs
}

// mergePair concatenates two sorted level-1 runs as first-forward +
// second-reversed and sorts the result: the bitonic merger when the
// pair totals exactly 8 tuples, the fallback otherwise.
func mergePair(first, second []relational.Tuple, key int) []relational.Tuple {
	merged := make([]relational.Tuple, 0, len(first)+len(second))
	merged = append(merged, first...)
	for i := len(second) - 1; i >= 0; i-- {
		merged = append(merged, second[i])
	}

	if len(merged) == 2*runSize {
		bitonicMergeEight(merged, key)
		return merged
	}
	sortRunByKey(merged, key)
	return merged
}
