package executor

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
)

// MergeStrategy selects how the sort-merge join arranges its sorted
// runs ahead of the merge scan.
type MergeStrategy uint8

const (
	// MWay range-partitions both sides into three aligned buckets and
	// scans each pair independently.
	MWay MergeStrategy = iota

	// MPass keeps the level-2 runs and scans every right run once per
	// left run.
	MPass
)

// String returns the strategy name.
func (s MergeStrategy) String() string {
	switch s {
	case MWay:
		return "m-way"
	case MPass:
		return "m-pass"
	default:
		return fmt.Sprintf("MergeStrategy(%d)", uint8(s))
	}
}

// MergeJoin is a materializing sort-merge join. Open drains both
// children and sorts the tuples in two levels. Runs of four are sorted
// with a fixed comparison network and merged pairwise into bitonic
// runs of eight. The m-way strategy then range-partitions both sides
// into three aligned buckets on the right side's key range; m-pass
// keeps the runs and scans every right run per left run. The merge
// scan itself runs on the first Next and fills a result buffer that
// subsequent calls drain one tuple at a time.
//
// CONCURRENCY: the sort, partition and scan stages fan out across
// Options.MaxWorkers goroutines. The stream surface itself is not safe
// for concurrent use.
type MergeJoin struct {
	pred     JoinPredicate
	left     TupleStream
	right    TupleStream
	strategy MergeStrategy
	schema   *relational.Schema
	opts     Options

	opened bool
	sorted bool
	joined bool

	leftRuns  [][]relational.Tuple
	rightRuns [][]relational.Tuple

	results   []relational.Tuple
	resultIdx int

	leftSize  int
	rightSize int
	openedAt  time.Time
	reported  bool
}

// NewMergeJoin creates a sort-merge join. Predicate indices out of
// range for the children's schemas are a programming error and panic.
func NewMergeJoin(pred JoinPredicate, left, right TupleStream, strategy MergeStrategy) *MergeJoin {
	return NewMergeJoinWithOptions(pred, left, right, strategy, Options{})
}

// NewMergeJoinWithOptions creates a sort-merge join with explicit options
func NewMergeJoinWithOptions(pred JoinPredicate, left, right TupleStream, strategy MergeStrategy, opts Options) *MergeJoin {
	pred.validate(left.Schema(), right.Schema(), "MergeJoin")
	return &MergeJoin{
		pred:     pred,
		left:     left,
		right:    right,
		strategy: strategy,
		schema:   left.Schema().Concat(right.Schema()),
		opts:     opts,
	}
}

// Open opens both children and runs the sort pipeline. The merge scan
// is deferred to the first Next.
func (j *MergeJoin) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		return err
	}

	j.clearDerived()
	j.openedAt = time.Now()
	j.reported = false
	if err := j.runPipeline(); err != nil {
		return err
	}
	j.opened = true
	return nil
}

// Next runs the merge scan if it has not happened yet, then returns
// the next buffered result tuple. After a Rewind the whole pipeline
// re-runs here against the rewound children.
func (j *MergeJoin) Next() (relational.Tuple, error) {
	mustBeOpen(j.opened, "MergeJoin")

	if !j.joined {
		if !j.sorted {
			if err := j.runPipeline(); err != nil {
				return nil, err
			}
		}
		j.runMergeScan()
	}

	if j.resultIdx >= len(j.results) {
		return nil, nil
	}
	t := j.results[j.resultIdx]
	j.resultIdx++
	return t, nil
}

// Rewind discards every derived structure and rewinds both children.
// Sorting and scanning happen again lazily on the next Next.
func (j *MergeJoin) Rewind() error {
	mustBeOpen(j.opened, "MergeJoin")

	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}
	j.clearDerived()
	j.openedAt = time.Now()
	j.reported = false

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["operator"] = "MergeJoin"
		j.opts.Collector.AddTiming(annotations.JoinRewind, time.Now(), data)
	}
	return nil
}

// Close releases the sorted runs and result buffer and closes both children
func (j *MergeJoin) Close() error {
	mustBeOpen(j.opened, "MergeJoin")

	j.opened = false
	j.clearDerived()

	lerr := j.left.Close()
	rerr := j.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

// Schema returns the concatenated left-then-right schema
func (j *MergeJoin) Schema() *relational.Schema {
	return j.schema
}

// clearDerived drops everything computed from the children's tuples
func (j *MergeJoin) clearDerived() {
	j.sorted = false
	j.joined = false
	j.leftRuns = nil
	j.rightRuns = nil
	j.results = nil
	j.resultIdx = 0
	j.leftSize = 0
	j.rightSize = 0
}

// runPipeline materializes both children and sorts them through the
// level-1 network, the level-2 pair merge and, for m-way, the range
// partition.
func (j *MergeJoin) runPipeline() error {
	matStart := time.Now()
	leftTuples, err := drain(j.left)
	if err != nil {
		return err
	}
	rightTuples, err := drain(j.right)
	if err != nil {
		return err
	}
	j.leftSize = len(leftTuples)
	j.rightSize = len(rightTuples)

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["left.size"] = j.leftSize
		data["right.size"] = j.rightSize
		j.opts.Collector.AddTiming(annotations.MergeMaterialize, matStart, data)
	}

	l1Start := time.Now()
	leftRuns := chunkRuns(leftTuples)
	rightRuns := chunkRuns(rightTuples)
	j.sortRuns(leftRuns, j.pred.LeftField)
	j.sortRuns(rightRuns, j.pred.RightField)

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["run.count"] = len(leftRuns) + len(rightRuns)
		j.opts.Collector.AddTiming(annotations.SortLevelOne, l1Start, data)
	}

	l2Start := time.Now()
	leftRuns = j.mergeRunPairs(leftRuns, j.pred.LeftField)
	rightRuns = j.mergeRunPairs(rightRuns, j.pred.RightField)

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["run.count"] = len(leftRuns) + len(rightRuns)
		j.opts.Collector.AddTiming(annotations.SortLevelTwo, l2Start, data)
	}

	if j.strategy == MWay {
		leftRuns, rightRuns = j.partitionBuckets(leftRuns, rightRuns)
	}
	j.leftRuns = leftRuns
	j.rightRuns = rightRuns
	j.sorted = true
	return nil
}

// sortRuns sorts every run on key, fanning out across workers
func (j *MergeJoin) sortRuns(runs [][]relational.Tuple, key int) {
	forEachRun(len(runs), j.opts.maxWorkers(), func(i int) {
		sortRun(runs[i], key)
	})
}

// mergeRunPairs merges adjacent run pairs into sorted runs of eight.
// An unpaired trailing run is already sorted and carried forward as is.
func (j *MergeJoin) mergeRunPairs(runs [][]relational.Tuple, key int) [][]relational.Tuple {
	if len(runs) < 2 {
		return runs
	}

	pairs := len(runs) / 2
	merged := make([][]relational.Tuple, pairs, pairs+1)
	forEachRun(pairs, j.opts.maxWorkers(), func(i int) {
		merged[i] = mergePair(runs[2*i], runs[2*i+1], key)
	})
	if len(runs)%2 == 1 {
		merged = append(merged, runs[len(runs)-1])
	}
	return merged
}

// partitionBuckets cuts the right side's key range into thirds and
// splits both sides into aligned range buckets. A key range that is
// empty or not integer-valued degrades to a single bucket pair, which
// turns the scan into a plain merge join. Bucket contents interleave
// tuples from many runs, so every bucket gets a full sort.
func (j *MergeJoin) partitionBuckets(leftRuns, rightRuns [][]relational.Tuple) ([][]relational.Tuple, [][]relational.Tuple) {
	partStart := time.Now()
	min, max := keyExtrema(rightRuns, j.pred.RightField)

	var leftBuckets, rightBuckets [][]relational.Tuple
	cut1, cut2, ok := cutPoints(min, max)
	if !ok {
		leftBuckets = [][]relational.Tuple{flattenRuns(leftRuns)}
		rightBuckets = [][]relational.Tuple{flattenRuns(rightRuns)}
	} else {
		leftBuckets = partitionTuples(leftRuns, j.pred.LeftField, cut1, cut2)
		rightBuckets = partitionTuples(rightRuns, j.pred.RightField, cut1, cut2)
	}

	total := len(leftBuckets) + len(rightBuckets)
	forEachRun(total, j.opts.maxWorkers(), func(i int) {
		if i < len(leftBuckets) {
			sortRunByKey(leftBuckets[i], j.pred.LeftField)
		} else {
			sortRunByKey(rightBuckets[i-len(leftBuckets)], j.pred.RightField)
		}
	})

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["key.min"] = fieldLabel(min)
		data["key.max"] = fieldLabel(max)
		data["bucket.count"] = len(rightBuckets)
		j.opts.Collector.AddTiming(annotations.PartitionRange, partStart, data)
	}
	return leftBuckets, rightBuckets
}

// runMergeScan joins the sorted runs and fills the result buffer.
// Under m-way each worker handles one aligned bucket pair; under
// m-pass each worker scans one left run against all right runs.
func (j *MergeJoin) runMergeScan() {
	scanStart := time.Now()

	workers := len(j.leftRuns)
	results := make([][]relational.Tuple, workers)
	forEachRun(workers, j.opts.maxWorkers(), func(i int) {
		if j.strategy == MWay {
			results[i] = scanRuns(j.leftRuns[i], j.rightRuns[i:i+1], j.pred)
		} else {
			results[i] = scanRuns(j.leftRuns[i], j.rightRuns, j.pred)
		}
	})

	j.results = flattenRuns(results)
	j.resultIdx = 0
	j.joined = true

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["worker.count"] = workers
		data["result.size"] = len(j.results)
		j.opts.Collector.AddTiming(annotations.MergeScan, scanStart, data)
	}
	j.report()
}

// scanRuns joins one sorted left run against a set of sorted right
// runs. Within each right run the scan stops once the right key passes
// the left key, which is what the sort pays for.
func scanRuns(leftRun []relational.Tuple, rightRuns [][]relational.Tuple, pred JoinPredicate) []relational.Tuple {
	var out []relational.Tuple
	for _, lt := range leftRun {
		lk := lt[pred.LeftField]
		for _, rightRun := range rightRuns {
			for _, rt := range rightRun {
				if pred.Op.Eval(lk, rt[pred.RightField]) {
					out = append(out, lt.Concat(rt))
				}
				if relational.CompareFields(rt[pred.RightField], lk) > 0 {
					break
				}
			}
		}
	}
	return out
}

// report emits the join/merge event once per drain
func (j *MergeJoin) report() {
	if j.reported || !j.opts.Collector.Enabled() {
		return
	}
	j.reported = true

	data := j.opts.Collector.GetDataMap()
	data["predicate"] = j.pred.String()
	data["strategy"] = j.strategy.String()
	data["left.size"] = j.leftSize
	data["right.size"] = j.rightSize
	data["result.size"] = len(j.results)
	j.opts.Collector.AddTiming(annotations.JoinMerge, j.openedAt, data)
}

// fieldLabel renders a key bound for annotation data. A nil bound
// means the side held no tuples.
func fieldLabel(f relational.Field) string {
	if f == nil {
		return "-"
	}
	return f.String()
}
