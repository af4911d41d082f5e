package executor

import (
	"time"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
)

// NestedLoopJoin evaluates the predicate over the full cross product of
// its children: for each left tuple, the right child is scanned end to
// end, then rewound for the next left tuple. No preprocessing, no
// memory beyond the one buffered left tuple.
//
// CONCURRENCY: not thread-safe; one caller drives the join at a time.
type NestedLoopJoin struct {
	pred   JoinPredicate
	left   TupleStream
	right  TupleStream
	schema *relational.Schema
	opts   Options

	opened    bool
	leftTuple relational.Tuple // current left slot
	leftDone  bool

	// Counters for the join/nested annotation
	leftCount   int
	rightCount  int // right tuples seen on the first pass
	firstPass   bool
	resultCount int
	openedAt    time.Time
	reported    bool
}

// NewNestedLoopJoin creates a nested-loop join. Predicate indices out
// of range for the children's schemas are a programming error and
// panic here rather than mid-iteration.
func NewNestedLoopJoin(pred JoinPredicate, left, right TupleStream) *NestedLoopJoin {
	return NewNestedLoopJoinWithOptions(pred, left, right, Options{})
}

// NewNestedLoopJoinWithOptions creates a nested-loop join with explicit options
func NewNestedLoopJoinWithOptions(pred JoinPredicate, left, right TupleStream, opts Options) *NestedLoopJoin {
	pred.validate(left.Schema(), right.Schema(), "NestedLoopJoin")
	return &NestedLoopJoin{
		pred:   pred,
		left:   left,
		right:  right,
		schema: left.Schema().Concat(right.Schema()),
		opts:   opts,
	}
}

// Open opens both children and primes the current-left slot. A left
// child with no tuples is a valid empty join, not an error.
func (j *NestedLoopJoin) Open() error {
	if err := j.left.Open(); err != nil {
		return err
	}

	lt, err := j.left.Next()
	if err != nil {
		return err
	}
	j.leftTuple = lt
	j.leftDone = lt == nil

	if err := j.right.Open(); err != nil {
		return err
	}

	j.opened = true
	j.leftCount = 0
	if !j.leftDone {
		j.leftCount = 1
	}
	j.rightCount = 0
	j.firstPass = true
	j.resultCount = 0
	j.openedAt = time.Now()
	j.reported = false
	return nil
}

// Next scans the right child forward from its current position,
// returning the concatenation for the first predicate match against
// the current left tuple. On right exhaustion the next left tuple is
// pulled and the right child rewound; end of stream once the left
// child is exhausted.
func (j *NestedLoopJoin) Next() (relational.Tuple, error) {
	mustBeOpen(j.opened, "NestedLoopJoin")

	for !j.leftDone {
		rt, err := j.right.Next()
		if err != nil {
			return nil, err
		}

		if rt == nil {
			// Right exhausted for this left tuple
			j.firstPass = false

			lt, err := j.left.Next()
			if err != nil {
				return nil, err
			}
			if lt == nil {
				j.leftDone = true
				break
			}
			j.leftTuple = lt
			j.leftCount++

			if err := j.right.Rewind(); err != nil {
				return nil, err
			}
			continue
		}

		if j.firstPass {
			j.rightCount++
		}

		if j.pred.Evaluate(j.leftTuple, rt) {
			j.resultCount++
			return j.leftTuple.Concat(rt), nil
		}
	}

	j.report()
	return nil, nil
}

// Rewind rewinds both children and re-primes the current-left slot
func (j *NestedLoopJoin) Rewind() error {
	mustBeOpen(j.opened, "NestedLoopJoin")

	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}

	lt, err := j.left.Next()
	if err != nil {
		return err
	}
	j.leftTuple = lt
	j.leftDone = lt == nil

	j.leftCount = 0
	if !j.leftDone {
		j.leftCount = 1
	}
	j.rightCount = 0
	j.firstPass = true
	j.resultCount = 0
	j.openedAt = time.Now()
	j.reported = false

	if j.opts.Collector.Enabled() {
		data := j.opts.Collector.GetDataMap()
		data["operator"] = "NestedLoopJoin"
		j.opts.Collector.AddTiming(annotations.JoinRewind, time.Now(), data)
	}
	return nil
}

// Close closes both children and drops the current-left slot
func (j *NestedLoopJoin) Close() error {
	mustBeOpen(j.opened, "NestedLoopJoin")

	j.opened = false
	j.leftTuple = nil
	j.leftDone = false

	lerr := j.left.Close()
	rerr := j.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

// Schema returns the concatenation of the children's schemas
func (j *NestedLoopJoin) Schema() *relational.Schema {
	return j.schema
}

// report emits the join/nested event once per drain
func (j *NestedLoopJoin) report() {
	if j.reported || !j.opts.Collector.Enabled() {
		return
	}
	j.reported = true

	data := j.opts.Collector.GetDataMap()
	data["predicate"] = j.pred.String()
	data["left.size"] = j.leftCount
	data["right.size"] = j.rightCount
	data["result.size"] = j.resultCount
	j.opts.Collector.AddTiming(annotations.JoinNested, j.openedAt, data)
}
