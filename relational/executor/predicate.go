package executor

import (
	"fmt"

	"github.com/wbrown/janus-relational/relational"
)

// JoinPredicate is the single binary comparison shared by all join
// operators: the field at LeftField of a left tuple compared against
// the field at RightField of a right tuple.
type JoinPredicate struct {
	Op         relational.Predicate
	LeftField  int
	RightField int
}

// NewJoinPredicate creates a join predicate
func NewJoinPredicate(op relational.Predicate, leftField, rightField int) JoinPredicate {
	return JoinPredicate{Op: op, LeftField: leftField, RightField: rightField}
}

// Evaluate applies the predicate to a pair of tuples. Both field
// indices are assumed valid for the respective schemas; an invalid
// index is a programming error and panics.
func (p JoinPredicate) Evaluate(left, right relational.Tuple) bool {
	return p.Op.Eval(left[p.LeftField], right[p.RightField])
}

// Flip returns the predicate with left and right roles swapped.
func (p JoinPredicate) Flip() JoinPredicate {
	return JoinPredicate{
		Op:         p.Op.Flip(),
		LeftField:  p.RightField,
		RightField: p.LeftField,
	}
}

// String renders the predicate as left[i] op right[j]
func (p JoinPredicate) String() string {
	return fmt.Sprintf("left[%d] %s right[%d]", p.LeftField, p.Op, p.RightField)
}

// validate panics when a field index is out of range for its schema.
// Join constructors call this so misuse surfaces at construction, not
// mid-iteration.
func (p JoinPredicate) validate(left, right *relational.Schema, operator string) {
	if p.LeftField < 0 || p.LeftField >= left.Len() {
		panic(fmt.Sprintf("executor: %s left field %d out of range for schema %s",
			operator, p.LeftField, left))
	}
	if p.RightField < 0 || p.RightField >= right.Len() {
		panic(fmt.Sprintf("executor: %s right field %d out of range for schema %s",
			operator, p.RightField, right))
	}
}
