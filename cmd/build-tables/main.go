package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-relational/relational"
	"github.com/wbrown/janus-relational/relational/storage"
)

// overlapPercents are the guaranteed-match rates of the generated
// table pairs, one pair per rate.
var overlapPercents = []int{10, 30, 50}

func main() {
	var (
		dbPath   string
		rows     int
		width    int
		keyRange int64
		seed     int64
	)

	flag.StringVar(&dbPath, "db", "tables.db", "table store path")
	flag.IntVar(&rows, "rows", 2048, "rows per table")
	flag.IntVar(&width, "width", 2, "columns per row")
	flag.Int64Var(&keyRange, "range", 1000, "top of the generated value window")
	flag.Int64Var(&seed, "seed", 1, "random seed")
	flag.Parse()

	// Rebuild from scratch
	if err := os.RemoveAll(dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing store: %v", err)
	}

	store, err := storage.NewTableStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to create table store: %v", err)
	}
	defer store.Close()

	fmt.Printf("Building table store: %s\n", dbPath)
	fmt.Printf("  Rows per table: %d\n", rows)
	fmt.Printf("  Columns: %d\n", width)
	fmt.Printf("  Value window: [%d, %d)\n", keyRange-1000, keyRange)
	fmt.Println()

	var g errgroup.Group
	for i, pct := range overlapPercents {
		i, pct := i, pct
		g.Go(func() error {
			return buildPair(store, rows, width, keyRange, seed+int64(i), pct)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Failed to build tables: %v", err)
	}

	names, err := store.ListTables()
	if err != nil {
		log.Fatalf("Failed to list tables: %v", err)
	}

	fmt.Printf("\n✅ Done! Built %d tables: %v\n", len(names), names)
	fmt.Println("   Join a pair with:")
	fmt.Printf("   joinbench -db %s -left left_10 -right right_10\n", dbPath)
}

// buildPair generates and loads one left/right pair sharing pct percent
// of its rows.
func buildPair(store *storage.TableStore, rows, width int, keyRange, seed int64, pct int) error {
	common := rows * pct / 100
	r := rand.New(rand.NewSource(seed))
	left, right := storage.GenerateOverlappingTables(r, rows-common, common, width, keyRange)

	schema := relational.IntSchema(width)
	tables := []struct {
		name   string
		tuples []relational.Tuple
	}{
		{fmt.Sprintf("left_%d", pct), left},
		{fmt.Sprintf("right_%d", pct), right},
	}

	for _, tbl := range tables {
		if err := store.CreateTable(tbl.name, schema); err != nil {
			return err
		}
		if err := store.LoadTable(tbl.name, tbl.tuples); err != nil {
			return err
		}
		fmt.Printf("  loaded %s: %d rows\n", tbl.name, len(tbl.tuples))
	}
	return nil
}
