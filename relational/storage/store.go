// Package storage persists named tuple tables in BadgerDB so benchmark
// and demo tables survive runs. A table is a schema record plus rows
// keyed by insertion sequence; TableScan streams the rows back in
// insertion order through the same contract the join operators consume.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
)

var (
	ErrTableNotFound = errors.New("storage: table not found")
	ErrTableExists   = errors.New("storage: table already exists")
)

// Key namespaces. Table names carry no zero bytes, so the separator in
// row keys keeps one table's prefix scan out of another's rows.
const (
	metaPrefix byte = 0x00
	rowPrefix  byte = 0x01
	rowKeySep  byte = 0x00
)

// loadBatchSize bounds rows per transaction; badger commits degrade on
// very large transactions and ErrTxnTooBig caps them outright.
const loadBatchSize = 5000

// Options carries the optional knobs for a TableStore. The zero value
// works: no annotations and one load worker per CPU.
type Options struct {
	// Collector receives annotation events when non-nil.
	Collector *annotations.Collector

	// LoadWorkers caps concurrent batch writers in LoadTable. Zero
	// means runtime.NumCPU().
	LoadWorkers int
}

// loadWorkers resolves the writer cap
func (o Options) loadWorkers() int {
	if o.LoadWorkers > 0 {
		return o.LoadWorkers
	}
	return runtime.NumCPU()
}

// TableStore is a BadgerDB-backed collection of named tuple tables.
//
// CONCURRENCY: safe for concurrent use; badger transactions isolate
// readers from writers. Individual TableScan instances are not.
type TableStore struct {
	db   *badger.DB
	opts Options
}

// NewTableStore opens or creates a store at path.
func NewTableStore(path string) (*TableStore, error) {
	return NewTableStoreWithOptions(path, Options{})
}

// NewTableStoreWithOptions opens or creates a store at path with the
// given options.
func NewTableStoreWithOptions(path string, opts Options) (*TableStore, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil // keep badger quiet

	// Tuned for bulk loads followed by sequential scans
	bopts.MemTableSize = 128 << 20   // 128MB memtables (default 64MB)
	bopts.BlockCacheSize = 256 << 20 // 256MB block cache for faster reads
	bopts.IndexCacheSize = 100 << 20 // 100MB index cache
	bopts.DetectConflicts = false    // load batches write disjoint key ranges
	bopts.NumCompactors = 4          // Parallel compaction
	bopts.ValueThreshold = 1 << 10   // 1KB - keep small rows in the LSM tree

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &TableStore{
		db:   db,
		opts: opts,
	}, nil
}

// CreateTable registers an empty table under name with the given
// schema. The schema is persisted alongside the rows and restored on
// reopen.
func (s *TableStore) CreateTable(name string, schema *relational.Schema) error {
	if err := validateTableName(name); err != nil {
		return err
	}
	if schema == nil || schema.Len() == 0 {
		return fmt.Errorf("storage: table %s needs at least one column", name)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := metaKey(name)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrTableExists, name)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, encodeTableMeta(schema, 0))
	})
}

// LoadTable appends tuples to an existing table. Rows are written in
// parallel batches; the recorded row count is only advanced once every
// batch has committed, so a failed load never shortens a scan that was
// valid before it.
func (s *TableStore) LoadTable(name string, tuples []relational.Tuple) error {
	startTime := time.Now()

	schema, rows, err := s.readMeta(name)
	if err != nil {
		return err
	}

	// Encode everything up front so the only mid-load failure mode
	// left is a storage error.
	values := make([][]byte, len(tuples))
	for i, t := range tuples {
		if len(t) != schema.Len() {
			return fmt.Errorf("storage: table %s: tuple %d has %d fields, schema has %d",
				name, i, len(t), schema.Len())
		}
		v, err := encodeTuple(t)
		if err != nil {
			return fmt.Errorf("storage: table %s: tuple %d: %w", name, i, err)
		}
		values[i] = v
	}

	var g errgroup.Group
	g.SetLimit(s.opts.loadWorkers())

	for batchStart := 0; batchStart < len(values); batchStart += loadBatchSize {
		batchStart := batchStart
		batchEnd := batchStart + loadBatchSize
		if batchEnd > len(values) {
			batchEnd = len(values)
		}

		g.Go(func() error {
			return s.db.Update(func(txn *badger.Txn) error {
				for i := batchStart; i < batchEnd; i++ {
					if err := txn.Set(rowKey(name, uint64(rows+i)), values[i]); err != nil {
						return fmt.Errorf("storage: table %s: write row %d: %w", name, rows+i, err)
					}
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(name), encodeTableMeta(schema, rows+len(tuples)))
	})
	if err != nil {
		return fmt.Errorf("storage: table %s: update row count: %w", name, err)
	}

	if s.opts.Collector.Enabled() {
		data := s.opts.Collector.GetDataMap()
		data["table"] = name
		data["tuple.count"] = len(tuples)
		s.opts.Collector.AddTiming(annotations.StoreLoad, startTime, data)
	}

	return nil
}

// Scan returns a TableScan over the named table's rows in insertion
// order. The scan's schema is available immediately; badger resources
// are only acquired at Open.
func (s *TableStore) Scan(name string) (*TableScan, error) {
	schema, _, err := s.readMeta(name)
	if err != nil {
		return nil, err
	}

	return &TableScan{
		store:  s,
		table:  name,
		schema: schema,
		prefix: rowKeyPrefix(name),
	}, nil
}

// Schema returns the named table's persisted schema.
func (s *TableStore) Schema(name string) (*relational.Schema, error) {
	schema, _, err := s.readMeta(name)
	return schema, err
}

// RowCount returns the named table's recorded row count.
func (s *TableStore) RowCount(name string) (int, error) {
	_, rows, err := s.readMeta(name)
	return rows, err
}

// DropTable removes a table's schema record and all of its rows.
func (s *TableStore) DropTable(name string) error {
	if _, _, err := s.readMeta(name); err != nil {
		return err
	}

	keys, err := s.collectKeys(rowKeyPrefix(name))
	if err != nil {
		return err
	}
	keys = append(keys, metaKey(name))

	for batchStart := 0; batchStart < len(keys); batchStart += loadBatchSize {
		batchEnd := batchStart + loadBatchSize
		if batchEnd > len(keys) {
			batchEnd = len(keys)
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys[batchStart:batchEnd] {
				if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("storage: drop table %s: %w", name, err)
		}
	}

	return nil
}

// ListTables returns the names of all tables, in lexicographic order.
func (s *TableStore) ListTables() ([]string, error) {
	keys, err := s.collectKeys([]byte{metaPrefix})
	if err != nil {
		return nil, err
	}

	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = string(key[1:])
	}
	return names, nil
}

// Close closes the store
func (s *TableStore) Close() error {
	return s.db.Close()
}

// readMeta loads a table's schema and recorded row count.
func (s *TableStore) readMeta(name string) (*relational.Schema, int, error) {
	if err := validateTableName(name); err != nil {
		return nil, 0, err
	}

	var schema *relational.Schema
	var rows int

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var derr error
			schema, rows, derr = decodeTableMeta(val)
			if derr != nil {
				return fmt.Errorf("storage: table %s: %w", name, derr)
			}
			return nil
		})
	})

	return schema, rows, err
}

// collectKeys gathers every key under prefix without fetching values.
func (s *TableStore) collectKeys(prefix []byte) ([][]byte, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false // keys only
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	return keys, nil
}

// validateTableName rejects names the key layout cannot hold.
func validateTableName(name string) error {
	if name == "" {
		return errors.New("storage: empty table name")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("storage: table name %q contains a zero byte", name)
	}
	return nil
}

// metaKey builds the schema record key for a table
func metaKey(table string) []byte {
	key := make([]byte, 0, 1+len(table))
	key = append(key, metaPrefix)
	return append(key, table...)
}

// rowKeyPrefix builds the shared prefix of a table's row keys
func rowKeyPrefix(table string) []byte {
	key := make([]byte, 0, 2+len(table))
	key = append(key, rowPrefix)
	key = append(key, table...)
	return append(key, rowKeySep)
}

// rowKey builds the key for row seq of a table. Sequence numbers are
// big-endian so badger iterates rows in insertion order.
func rowKey(table string, seq uint64) []byte {
	key := make([]byte, 0, 10+len(table))
	key = append(key, rowKeyPrefix(table)...)
	return binary.BigEndian.AppendUint64(key, seq)
}
