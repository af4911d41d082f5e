package executor

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
)

// HashJoin is an in-memory equi-join: Open drains the left child into
// a multimap from join-key value to the tuples carrying it, and Next
// probes that table with right tuples through a resumable group
// cursor. Grouping by exact value is only correct for the equals
// operator, so construction rejects every other operator.
//
// Rewind is deliberately asymmetric: the built table survives and only
// the right child is rewound, making a rewound drain cost O(|right|)
// instead of O(|left| + |right|).
//
// CONCURRENCY: not thread-safe; one caller drives the join at a time.
type HashJoin struct {
	pred   JoinPredicate
	left   TupleStream
	right  TupleStream
	schema *relational.Schema
	opts   Options

	opened bool
	table  *FieldMap

	// Probe cursor: remaining group members for the current right
	// tuple. group[groupIdx:] have not been returned yet.
	group        []relational.Tuple
	groupIdx     int
	currentRight relational.Tuple

	leftCount   int
	rightCount  int
	resultCount int
	openedAt    time.Time
	reported    bool
}

// NewHashJoin creates a hash equi-join. A predicate whose operator is
// not Equals is rejected with a validation error; silently grouping by
// value under any other operator would produce wrong results.
// Predicate indices out of range for the children's schemas panic.
func NewHashJoin(pred JoinPredicate, left, right TupleStream) (*HashJoin, error) {
	return NewHashJoinWithOptions(pred, left, right, Options{})
}

// NewHashJoinWithOptions creates a hash equi-join with explicit options
func NewHashJoinWithOptions(pred JoinPredicate, left, right TupleStream, opts Options) (*HashJoin, error) {
	if pred.Op != relational.Equals {
		return nil, fmt.Errorf("executor: HashJoin requires the equals operator, got %q", pred.Op)
	}
	pred.validate(left.Schema(), right.Schema(), "HashJoin")

	return &HashJoin{
		pred:   pred,
		left:   left,
		right:  right,
		schema: left.Schema().Concat(right.Schema()),
		opts:   opts,
	}, nil
}

// Open builds the hash table from the left child, then opens the right
// child for probing
func (j *HashJoin) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}

	buildStart := time.Now()
	table := NewFieldMapWithCapacity(j.opts.hashTableSize())
	count := 0
	for {
		lt, err := j.left.Next()
		if err != nil {
			return err
		}
		if lt == nil {
			break
		}
		table.Add(lt[j.pred.LeftField], lt)
		count++
	}
	j.table = table
	j.leftCount = count

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["left.size"] = count
		data["group.count"] = table.Len()
		j.opts.Collector.AddTiming(annotations.HashBuild, buildStart, data)
	}

	if err := j.right.Open(); err != nil {
		return err
	}

	j.opened = true
	j.resetCursor()
	j.rightCount = 0
	j.resultCount = 0
	j.openedAt = time.Now()
	j.reported = false
	return nil
}

// Next resumes the current group cursor if it has unvisited members,
// otherwise pulls right tuples until one's join key is present in the
// table; end of stream when the right child is exhausted
func (j *HashJoin) Next() (relational.Tuple, error) {
	mustBeOpen(j.opened, "HashJoin")

	if j.groupIdx < len(j.group) {
		t := j.group[j.groupIdx].Concat(j.currentRight)
		j.groupIdx++
		j.resultCount++
		return t, nil
	}

	for {
		rt, err := j.right.Next()
		if err != nil {
			return nil, err
		}
		if rt == nil {
			j.report()
			return nil, nil
		}
		j.rightCount++

		group, ok := j.table.Get(rt[j.pred.RightField])
		if !ok {
			continue
		}

		// First group member is returned immediately; the cursor
		// resumes from index 1 on the next call.
		j.group = group
		j.groupIdx = 1
		j.currentRight = rt
		j.resultCount++
		return group[0].Concat(rt), nil
	}
}

// Rewind keeps the built table, rewinds only the right child, and
// clears the probe cursor; the next call re-seeks the first matching
// right tuple
func (j *HashJoin) Rewind() error {
	mustBeOpen(j.opened, "HashJoin")

	if err := j.right.Rewind(); err != nil {
		return err
	}
	j.resetCursor()
	j.rightCount = 0
	j.resultCount = 0
	j.openedAt = time.Now()
	j.reported = false

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["operator"] = "HashJoin"
		j.opts.Collector.AddTiming(annotations.JoinRewind, time.Now(), data)
	}
	return nil
}

// Close releases the table and closes both children
func (j *HashJoin) Close() error {
	mustBeOpen(j.opened, "HashJoin")

	j.opened = false
	j.table = nil
	j.resetCursor()

	lerr := j.left.Close()
	rerr := j.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

// Schema returns the concatenation of the children's schemas
func (j *HashJoin) Schema() *relational.Schema {
	return j.schema
}

// resetCursor deactivates the probe cursor
func (j *HashJoin) resetCursor() {
	j.group = nil
	j.groupIdx = 0
	j.currentRight = nil
}

// report emits the join/hash event once per drain
func (j *HashJoin) report() {
	if j.reported || !j.opts.Collector.Enabled() {
		return
	}
	j.reported = true

	data := j.opts.Collector.GetDataMap()
	data["predicate"] = j.pred.String()
	data["left.size"] = j.leftCount
	data["right.size"] = j.rightCount
	data["result.size"] = j.resultCount
	j.opts.Collector.AddTiming(annotations.JoinHash, j.openedAt, data)
}
