// Command migrate is a standalone CLI for applying the schema migrator
// against a given database file, independent of the pipeline process —
// useful for provisioning a fresh DB_PATH before the first pipeline run.
// Flag/exit-code style grounded on tools/migrate_state.go.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dmittakarin8/solflow-pipeline/internal/store"
)

func main() {
	dbPath := flag.String("db", "./pipeline.db", "path to the sqlite database file")
	migrationsDir := flag.String("migrations", "migrations", "directory of lexicographically-ordered .sql migration files")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		exitf("open %s: %v", *dbPath, err)
	}
	defer db.Close()

	if err := store.Migrate(db, *migrationsDir); err != nil {
		exitf("migrate: %v", err)
	}

	fmt.Printf("migrations applied to %s from %s\n", *dbPath, *migrationsDir)
}

func exitf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "migrate: "+format+"\n", a...)
	os.Exit(1)
}
