package executor

import (
	"runtime"

	"github.com/wbrown/janus-relational/relational/annotations"
)

// Options carries the optional knobs shared by the join operators.
// The zero value is a fully working configuration: no annotations and
// one worker per CPU for the sort-merge join's parallel stages.
type Options struct {
	// Collector receives annotation events when non-nil.
	Collector *annotations.Collector

	// MaxWorkers caps concurrent workers inside the sort-merge join's
	// fork-join stages. Zero means runtime.NumCPU().
	MaxWorkers int

	// DefaultHashTableSize pre-sizes the hash join's build table; the
	// left side's cardinality is unknown until drained. Zero means 256.
	DefaultHashTableSize int
}

// maxWorkers resolves the worker cap
func (o Options) maxWorkers() int {
	if o.MaxWorkers > 0 {
		return o.MaxWorkers
	}
	return runtime.NumCPU()
}

// hashTableSize resolves the build table pre-size
func (o Options) hashTableSize() int {
	if o.DefaultHashTableSize > 0 {
		return o.DefaultHashTableSize
	}
	return 256
}
