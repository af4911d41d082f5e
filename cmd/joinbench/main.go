package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/annotations"
	"github.com/wbrown/janus-relational/relational/executor"
	"github.com/wbrown/janus-relational/relational/storage"
)

func main() {
	var (
		opName    string
		strategy  string
		predicate string
		dbPath    string
		leftName  string
		rightName string
		rows      int
		width     int
		common    int
		keyRange  int64
		leftKey   int
		rightKey  int
		workers   int
		show      int
		seed      int64
		verbose   bool
	)

	flag.StringVar(&opName, "op", "hash", "join operator: nested, hash, or merge")
	flag.StringVar(&strategy, "strategy", "m-way", "merge strategy: m-way or m-pass")
	flag.StringVar(&predicate, "predicate", "=", "join predicate: = != < <= > >=")
	flag.StringVar(&dbPath, "db", "", "table store path (omit to join generated tables)")
	flag.StringVar(&leftName, "left", "left", "left table name in the store")
	flag.StringVar(&rightName, "right", "right", "right table name in the store")
	flag.IntVar(&rows, "rows", 2048, "generated rows per side")
	flag.IntVar(&width, "width", 2, "generated columns per row")
	flag.IntVar(&common, "common", 0, "rows shared by both generated sides (0 = rows/10)")
	flag.Int64Var(&keyRange, "range", 1000, "top of the generated value window")
	flag.IntVar(&leftKey, "leftkey", 0, "left join key position")
	flag.IntVar(&rightKey, "rightkey", 0, "right join key position")
	flag.IntVar(&workers, "workers", 0, "merge join workers (0 = NumCPU)")
	flag.IntVar(&show, "show", 10, "result rows to print (0 = none)")
	flag.Int64Var(&seed, "seed", 0, "random seed for generated tables (0 = time-based)")
	flag.BoolVar(&verbose, "verbose", false, "print annotation events to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a join operator over generated or stored tables.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -op hash -rows 65536            # hash join two generated tables\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -op merge -strategy m-pass      # sort-merge join, one pass per run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -op nested -predicate '<'       # nested loop with an inequality\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db bench.db -left a -right b   # join tables from a store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -verbose                        # show per-stage annotations\n", os.Args[0])
	}
	flag.Parse()

	var collector *annotations.Collector
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		collector = annotations.NewCollector(formatter.Handle)
	}

	opts := executor.Options{
		Collector:  collector,
		MaxWorkers: workers,
	}

	var left, right executor.TupleStream
	if dbPath != "" {
		store := openStore(dbPath, collector)
		defer store.Close()
		left, right = openStoredTables(store, leftName, rightName)
	} else {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		if common == 0 {
			common = rows / 10
		}
		left, right = generateTables(seed, rows, common, width, keyRange)
	}

	op, err := parsePredicate(predicate)
	if err != nil {
		log.Fatalf("Bad -predicate: %v", err)
	}
	if leftKey < 0 || leftKey >= left.Schema().Len() {
		log.Fatalf("-leftkey %d out of range for schema %s", leftKey, left.Schema())
	}
	if rightKey < 0 || rightKey >= right.Schema().Len() {
		log.Fatalf("-rightkey %d out of range for schema %s", rightKey, right.Schema())
	}
	pred := executor.NewJoinPredicate(op, leftKey, rightKey)

	join := buildJoin(opName, strategy, pred, left, right, opts)

	fmt.Printf("=== joinbench ===\n")
	fmt.Printf("operator:  %s\n", describeOperator(opName, strategy))
	fmt.Printf("predicate: %s\n", pred)
	fmt.Printf("left:      %s\n", describeStream(left))
	fmt.Printf("right:     %s\n", describeStream(right))
	fmt.Println()

	start := time.Now()
	if err := join.Open(); err != nil {
		log.Fatalf("Open failed: %v", err)
	}

	var sample []relational.Tuple
	count := 0
	for {
		tuple, err := join.Next()
		if err != nil {
			log.Fatalf("Next failed: %v", err)
		}
		if tuple == nil {
			break
		}
		if count < show {
			sample = append(sample, tuple)
		}
		count++
	}
	elapsed := time.Since(start)

	if err := join.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}

	if show > 0 {
		table := executor.NewTableFormatter().FormatTuples(join.Schema(), sample)
		if count > len(sample) {
			table = strings.Replace(table,
				fmt.Sprintf("_%d rows_", len(sample)),
				fmt.Sprintf("_%d of %d rows_", len(sample), count), 1)
		}
		fmt.Println(table)
	}

	fmt.Printf("%d result tuples in %.3fms (%.0f tuples/sec)\n",
		count,
		float64(elapsed.Microseconds())/1000.0,
		float64(count)/elapsed.Seconds())
}

func openStore(path string, collector *annotations.Collector) *storage.TableStore {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Table store does not exist: %s (run build-tables first)", path)
	}

	store, err := storage.NewTableStoreWithOptions(path, storage.Options{Collector: collector})
	if err != nil {
		log.Fatalf("Failed to open table store: %v", err)
	}
	return store
}

// openStoredTables opens scans over the two named tables. The metadata
// reads are independent, so they run concurrently.
func openStoredTables(store *storage.TableStore, leftName, rightName string) (left, right executor.TupleStream) {
	var leftScan, rightScan *storage.TableScan
	var g errgroup.Group
	g.Go(func() error {
		var err error
		leftScan, err = store.Scan(leftName)
		return err
	})
	g.Go(func() error {
		var err error
		rightScan, err = store.Scan(rightName)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Failed to open tables: %v", err)
	}

	return leftScan, rightScan
}

// generateTables builds the two in-memory sides with a shared common
// block, the same distribution the benchmarks use.
func generateTables(seed int64, rows, common, width int, keyRange int64) (left, right executor.TupleStream) {
	distinct := rows - common
	if distinct < 0 {
		log.Fatalf("-common %d exceeds -rows %d", common, rows)
	}

	r := rand.New(rand.NewSource(seed))
	leftRows, rightRows := storage.GenerateOverlappingTables(r, distinct, common, width, keyRange)

	schema := relational.IntSchema(width)
	fmt.Printf("generated %d+%d rows per side (seed %d)\n", distinct, common, seed)
	return executor.NewSliceStream(schema, leftRows), executor.NewSliceStream(schema, rightRows)
}

// buildJoin constructs the requested operator over the two sides.
func buildJoin(opName, strategy string, pred executor.JoinPredicate, left, right executor.TupleStream, opts executor.Options) executor.TupleStream {
	switch opName {
	case "nested":
		return executor.NewNestedLoopJoinWithOptions(pred, left, right, opts)

	case "hash":
		join, err := executor.NewHashJoinWithOptions(pred, left, right, opts)
		if err != nil {
			log.Fatalf("Hash join: %v", err)
		}
		return join

	case "merge":
		return executor.NewMergeJoinWithOptions(pred, left, right, parseStrategy(strategy), opts)

	default:
		log.Fatalf("Unknown -op %q (use nested, hash, or merge)", opName)
		return nil
	}
}

func parseStrategy(s string) executor.MergeStrategy {
	switch s {
	case "m-way", "mway":
		return executor.MWay
	case "m-pass", "mpass":
		return executor.MPass
	default:
		log.Fatalf("Unknown -strategy %q (use m-way or m-pass)", s)
		return executor.MWay
	}
}

func parsePredicate(s string) (relational.Predicate, error) {
	switch s {
	case "=", "==":
		return relational.Equals, nil
	case "!=", "<>":
		return relational.NotEqual, nil
	case "<":
		return relational.LessThan, nil
	case "<=":
		return relational.LessOrEqual, nil
	case ">":
		return relational.GreaterThan, nil
	case ">=":
		return relational.GreaterOrEqual, nil
	default:
		return relational.Equals, fmt.Errorf("unknown predicate %q", s)
	}
}

func describeOperator(opName, strategy string) string {
	if opName == "merge" {
		return fmt.Sprintf("%s (%s)", opName, parseStrategy(strategy))
	}
	return opName
}

func describeStream(s executor.TupleStream) string {
	if scan, ok := s.(*storage.TableScan); ok {
		return fmt.Sprintf("table %q, schema %s", scan.Table(), scan.Schema())
	}
	return fmt.Sprintf("generated, schema %s", s.Schema())
}
