package relational

import (
	"fmt"
)

// Predicate is a binary comparison operator over fields.
type Predicate uint8

const (
	Equals Predicate = iota
	GreaterThan
	LessThan
	LessOrEqual
	GreaterOrEqual
	NotEqual
	// Any accepts every pair of fields.
	Any
)

// Eval applies the operator to a pair of fields using the total order
// from CompareFields.
func (p Predicate) Eval(left, right Field) bool {
	if p == Any {
		return true
	}
	cmp := CompareFields(left, right)
	switch p {
	case Equals:
		return cmp == 0
	case GreaterThan:
		return cmp > 0
	case LessThan:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	case GreaterOrEqual:
		return cmp >= 0
	case NotEqual:
		return cmp != 0
	default:
		panic(fmt.Sprintf("relational: unknown predicate %d", uint8(p)))
	}
}

// Flip returns the operator with its operands' roles swapped, so that
// l op r holds exactly when r op.Flip() l holds. Equals, NotEqual and
// Any flip to themselves.
func (p Predicate) Flip() Predicate {
	switch p {
	case GreaterThan:
		return LessThan
	case LessThan:
		return GreaterThan
	case LessOrEqual:
		return GreaterOrEqual
	case GreaterOrEqual:
		return LessOrEqual
	default:
		return p
	}
}

// String returns the operator symbol
func (p Predicate) String() string {
	switch p {
	case Equals:
		return "="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case NotEqual:
		return "!="
	case Any:
		return "any"
	default:
		return "UNKNOWN"
	}
}
