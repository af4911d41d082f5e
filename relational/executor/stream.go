// Package executor implements the join execution operators: a
// nested-loop join, an in-memory hash equi-join, and a parallel
// sort-merge join, all behind a single resumable tuple-stream contract.
package executor

import (
	"github.com/wbrown/janus-relational/relational"
)

// TupleStream is the iteration contract shared by stream sources and
// join operators. Callers drive a stream through Open, repeated Next,
// and Close, with Rewind available to restart iteration.
//
// Next returns a nil tuple with a nil error at end of stream. Schema is
// valid at any time after construction, independent of open state.
//
// Driving calls are synchronous and not reentrant: exactly one caller
// drives a stream at a time. Calling Next, Rewind, or Close before Open
// is caller misuse and panics rather than returning an error.
type TupleStream interface {
	Open() error
	Next() (relational.Tuple, error)
	Rewind() error
	Close() error
	Schema() *relational.Schema
}

// mustBeOpen guards the driving calls that require an open stream.
func mustBeOpen(opened bool, operator string) {
	if !opened {
		panic("executor: " + operator + " is not open")
	}
}

// SliceStream is an in-memory TupleStream over a materialized tuple
// slice. It backs tests, benchmarks, and the sort-merge join's
// intermediate runs.
//
// CONCURRENCY: not thread-safe; each caller needs its own instance.
type SliceStream struct {
	schema *relational.Schema
	tuples []relational.Tuple
	pos    int
	opened bool
}

// NewSliceStream creates a stream over tuples with the given schema.
// The slice is not copied; callers must not mutate it while streaming.
func NewSliceStream(schema *relational.Schema, tuples []relational.Tuple) *SliceStream {
	return &SliceStream{
		schema: schema,
		tuples: tuples,
		pos:    -1,
	}
}

// Open prepares the stream for iteration
func (s *SliceStream) Open() error {
	s.opened = true
	s.pos = 0
	return nil
}

// Next returns the next tuple, or nil at end of stream
func (s *SliceStream) Next() (relational.Tuple, error) {
	mustBeOpen(s.opened, "SliceStream")
	if s.pos >= len(s.tuples) {
		return nil, nil
	}
	t := s.tuples[s.pos]
	s.pos++
	return t, nil
}

// Rewind resets iteration to the first tuple
func (s *SliceStream) Rewind() error {
	mustBeOpen(s.opened, "SliceStream")
	s.pos = 0
	return nil
}

// Close releases the stream
func (s *SliceStream) Close() error {
	mustBeOpen(s.opened, "SliceStream")
	s.opened = false
	s.pos = -1
	return nil
}

// Schema returns the stream's schema
func (s *SliceStream) Schema() *relational.Schema {
	return s.schema
}

// drain pulls every remaining tuple from an open stream.
func drain(s TupleStream) ([]relational.Tuple, error) {
	var tuples []relational.Tuple
	for {
		t, err := s.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return tuples, nil
		}
		tuples = append(tuples, t)
	}
}
