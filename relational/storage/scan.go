package storage

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
)

// TableScan streams a stored table's rows in insertion order. It
// satisfies the executor's TupleStream contract, so stored tables plug
// directly into the join operators as children.
//
// Open pins a badger snapshot; Rewind restarts iteration over that
// same snapshot, and rows loaded after Open only become visible on a
// Close and reopen.
//
// CONCURRENCY: not thread-safe; each caller needs its own instance.
type TableScan struct {
	store  *TableStore
	table  string
	schema *relational.Schema
	prefix []byte

	txn *badger.Txn
	it  *badger.Iterator

	opened   bool
	started  bool
	done     bool
	count    int
	openedAt time.Time
}

// Open pins a read snapshot and prepares the row iterator.
func (s *TableScan) Open() error {
	if s.opened {
		// Reopening discards the previous snapshot
		s.it.Close()
		s.txn.Discard()
	}

	s.txn = s.store.db.NewTransaction(false)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000 // rows are small; prefetch aggressively
	opts.PrefetchValues = true
	opts.Prefix = s.prefix

	s.it = s.txn.NewIterator(opts)

	s.opened = true
	s.started = false
	s.done = false
	s.count = 0
	s.openedAt = time.Now()
	return nil
}

// Next returns the next row, or nil at end of table
func (s *TableScan) Next() (relational.Tuple, error) {
	s.mustBeOpen()

	if s.done {
		return nil, nil
	}

	if s.started {
		s.it.Next()
	} else {
		// First call - position at the table's first row
		s.it.Rewind()
		s.started = true
	}

	if !s.it.Valid() {
		s.done = true
		s.report()
		return nil, nil
	}

	var tuple relational.Tuple
	err := s.it.Item().Value(func(val []byte) error {
		decoded, derr := decodeTuple(val)
		if derr != nil {
			return derr
		}
		tuple = decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: table %s: %w", s.table, err)
	}

	s.count++
	return tuple, nil
}

// Rewind restarts iteration from the first row. Positioning happens
// lazily on the next call to Next.
func (s *TableScan) Rewind() error {
	s.mustBeOpen()
	s.started = false
	s.done = false
	s.count = 0
	s.openedAt = time.Now()
	return nil
}

// Close releases the iterator and its snapshot
func (s *TableScan) Close() error {
	s.mustBeOpen()
	s.opened = false
	s.it.Close()
	s.txn.Discard()
	s.it, s.txn = nil, nil
	return nil
}

// Schema returns the table's schema
func (s *TableScan) Schema() *relational.Schema {
	return s.schema
}

// Table returns the table name the scan reads from
func (s *TableScan) Table() string {
	return s.table
}

func (s *TableScan) mustBeOpen() {
	if !s.opened {
		panic("storage: TableScan is not open")
	}
}

// report emits one scan summary per full drain.
func (s *TableScan) report() {
	if !s.store.opts.Collector.Enabled() {
		return
	}

	c := s.store.opts.Collector
	data := c.GetDataMap()
	data["table"] = s.table
	data["tuple.count"] = s.count
	c.AddTiming(annotations.StoreScan, s.openedAt, data)
}
