package tests

import (
	"math/rand"
	"os"
	"testing"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
	"github.com/wbrown/janus-relational/relational/executor"
	"github.com/wbrown/janus-relational/relational/storage"
)

// Stored table scans must plug into the join operators as children.
var _ executor.TupleStream = (*storage.TableScan)(nil)

func newStore(t *testing.T, opts storage.Options) *storage.TableStore {
	t.Helper()

	dir, err := os.MkdirTemp("", "relational-integration-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := storage.NewTableStoreWithOptions(dir, opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func loadTable(t *testing.T, store *storage.TableStore, name string, schema *relational.Schema, rows []relational.Tuple) {
	t.Helper()
	if err := store.CreateTable(name, schema); err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
	if err := store.LoadTable(name, rows); err != nil {
		t.Fatalf("Failed to load %s: %v", name, err)
	}
}

func scanTable(t *testing.T, store *storage.TableStore, name string) *storage.TableScan {
	t.Helper()
	scan, err := store.Scan(name)
	if err != nil {
		t.Fatalf("Failed to scan %s: %v", name, err)
	}
	return scan
}

func drainJoin(t *testing.T, s executor.TupleStream) []relational.Tuple {
	t.Helper()
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var tuples []relational.Tuple
	for {
		tuple, err := s.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if tuple == nil {
			return tuples
		}
		tuples = append(tuples, tuple)
	}
}

func asMultiset(tuples []relational.Tuple) map[string]int {
	counts := make(map[string]int, len(tuples))
	for _, tuple := range tuples {
		counts[tuple.String()]++
	}
	return counts
}

func expectSameMultiset(t *testing.T, got, want []relational.Tuple) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tuples, want %d", len(got), len(want))
	}
	gotCounts, wantCounts := asMultiset(got), asMultiset(want)
	for key, n := range wantCounts {
		if gotCounts[key] != n {
			t.Errorf("tuple %s: got %d occurrences, want %d", key, gotCounts[key], n)
		}
	}
}

// TestJoinsOverBadgerTables loads two generated tables into badger and
// checks that every operator computes the same join off the stored
// scans as a brute-force pass over the source rows.
func TestJoinsOverBadgerTables(t *testing.T) {
	store := newStore(t, storage.Options{})

	r := rand.New(rand.NewSource(271))
	leftRows := storage.GenerateTable(r, 300, 2, 1000)
	rightRows := storage.GenerateTable(r, 280, 3, 1000)

	loadTable(t, store, "left", relational.IntSchema(2), leftRows)
	loadTable(t, store, "right", relational.IntSchema(3), rightRows)

	pred := executor.NewJoinPredicate(relational.Equals, 0, 1)

	var expected []relational.Tuple
	for _, l := range leftRows {
		for _, rt := range rightRows {
			if pred.Evaluate(l, rt) {
				expected = append(expected, l.Concat(rt))
			}
		}
	}
	if len(expected) == 0 {
		t.Fatal("generated tables produced no matches; join test is vacuous")
	}

	operators := map[string]func() executor.TupleStream{
		"nested": func() executor.TupleStream {
			return executor.NewNestedLoopJoin(pred,
				scanTable(t, store, "left"), scanTable(t, store, "right"))
		},
		"hash": func() executor.TupleStream {
			join, err := executor.NewHashJoin(pred,
				scanTable(t, store, "left"), scanTable(t, store, "right"))
			if err != nil {
				t.Fatalf("hash join: %v", err)
			}
			return join
		},
		"merge m-way": func() executor.TupleStream {
			return executor.NewMergeJoin(pred,
				scanTable(t, store, "left"), scanTable(t, store, "right"),
				executor.MWay)
		},
		"merge m-pass": func() executor.TupleStream {
			return executor.NewMergeJoin(pred,
				scanTable(t, store, "left"), scanTable(t, store, "right"),
				executor.MPass)
		},
	}

	for name, build := range operators {
		t.Run(name, func(t *testing.T) {
			expectSameMultiset(t, drainJoin(t, build()), expected)
		})
	}
}

// TestMixedSchemaJoinOverStore round-trips string fields through the
// store and joins on the integer key.
func TestMixedSchemaJoinOverStore(t *testing.T) {
	store := newStore(t, storage.Options{})

	people := relational.NewSchema([]relational.Attribute{
		{Name: "name", Type: relational.StringType},
		{Name: "dept", Type: relational.IntType},
	})
	departments := relational.NewSchema([]relational.Attribute{
		{Name: "id", Type: relational.IntType},
		{Name: "label", Type: relational.StringType},
	})

	loadTable(t, store, "people", people, []relational.Tuple{
		{relational.StringField("alice"), relational.IntField(1)},
		{relational.StringField("bob"), relational.IntField(2)},
		{relational.StringField("carol"), relational.IntField(1)},
	})
	loadTable(t, store, "departments", departments, []relational.Tuple{
		{relational.IntField(1), relational.StringField("engineering")},
		{relational.IntField(2), relational.StringField("sales")},
	})

	join, err := executor.NewHashJoin(
		executor.NewJoinPredicate(relational.Equals, 1, 0),
		scanTable(t, store, "people"), scanTable(t, store, "departments"))
	if err != nil {
		t.Fatalf("hash join: %v", err)
	}

	if !join.Schema().Equal(people.Concat(departments)) {
		t.Errorf("join schema %s, want %s", join.Schema(), people.Concat(departments))
	}

	got := drainJoin(t, join)
	expectSameMultiset(t, got, []relational.Tuple{
		{relational.StringField("alice"), relational.IntField(1), relational.IntField(1), relational.StringField("engineering")},
		{relational.StringField("carol"), relational.IntField(1), relational.IntField(1), relational.StringField("engineering")},
		{relational.StringField("bob"), relational.IntField(2), relational.IntField(2), relational.StringField("sales")},
	})
}

// TestEmptyStoredTableJoin joins against a created-but-never-loaded
// table; an empty side produces a valid empty join.
func TestEmptyStoredTableJoin(t *testing.T) {
	store := newStore(t, storage.Options{})

	loadTable(t, store, "left", relational.IntSchema(2), []relational.Tuple{
		relational.IntTuple(1, 2),
		relational.IntTuple(3, 4),
	})
	if err := store.CreateTable("right", relational.IntSchema(2)); err != nil {
		t.Fatal(err)
	}

	pred := executor.NewJoinPredicate(relational.Equals, 0, 0)

	for name, join := range map[string]executor.TupleStream{
		"nested": executor.NewNestedLoopJoin(pred,
			scanTable(t, store, "left"), scanTable(t, store, "right")),
		"merge m-way": executor.NewMergeJoin(pred,
			scanTable(t, store, "left"), scanTable(t, store, "right"),
			executor.MWay),
	} {
		t.Run(name, func(t *testing.T) {
			if got := drainJoin(t, join); len(got) != 0 {
				t.Errorf("expected empty join, got %d tuples", len(got))
			}
		})
	}
}

// TestMergeJoinRewindOverStore rewinds a merge join whose children are
// badger scans; the rewind re-reads both scans through the pipeline.
func TestMergeJoinRewindOverStore(t *testing.T) {
	store := newStore(t, storage.Options{})

	r := rand.New(rand.NewSource(99))
	leftRows := storage.GenerateTable(r, 64, 2, 1000)
	rightRows := storage.GenerateTable(r, 64, 2, 1000)

	loadTable(t, store, "left", relational.IntSchema(2), leftRows)
	loadTable(t, store, "right", relational.IntSchema(2), rightRows)

	join := executor.NewMergeJoin(
		executor.NewJoinPredicate(relational.Equals, 1, 1),
		scanTable(t, store, "left"), scanTable(t, store, "right"),
		executor.MWay)

	if err := join.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer join.Close()

	var first []relational.Tuple
	for {
		tuple, err := join.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if tuple == nil {
			break
		}
		first = append(first, tuple)
	}

	if err := join.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}

	var second []relational.Tuple
	for {
		tuple, err := join.Next()
		if err != nil {
			t.Fatalf("Next after Rewind failed: %v", err)
		}
		if tuple == nil {
			break
		}
		second = append(second, tuple)
	}

	expectSameMultiset(t, second, first)
}

// TestAnnotationsAcrossStoreAndJoin shares one collector between the
// store and a hash join and checks the full event trail: load events
// while populating, scan events as the join drains its children, and
// the join's own lifecycle events.
func TestAnnotationsAcrossStoreAndJoin(t *testing.T) {
	collector := annotations.NewCollector(func(annotations.Event) {})
	store := newStore(t, storage.Options{Collector: collector})

	r := rand.New(rand.NewSource(5))
	rows := storage.GenerateTable(r, 32, 2, 1000)
	loadTable(t, store, "left", relational.IntSchema(2), rows)
	loadTable(t, store, "right", relational.IntSchema(2), rows)

	join, err := executor.NewHashJoinWithOptions(
		executor.NewJoinPredicate(relational.Equals, 0, 0),
		scanTable(t, store, "left"), scanTable(t, store, "right"),
		executor.Options{Collector: collector})
	if err != nil {
		t.Fatalf("hash join: %v", err)
	}
	drainJoin(t, join)

	seen := make(map[string]int)
	for _, event := range collector.Events() {
		seen[event.Name]++
	}

	if seen[annotations.StoreLoad] != 2 {
		t.Errorf("expected 2 StoreLoad events, got %d", seen[annotations.StoreLoad])
	}
	if seen[annotations.StoreScan] != 2 {
		t.Errorf("expected 2 StoreScan events, got %d", seen[annotations.StoreScan])
	}
	if seen[annotations.HashBuild] == 0 {
		t.Error("expected a HashBuild event")
	}
	if seen[annotations.JoinHash] == 0 {
		t.Error("expected a JoinHash event")
	}
}
