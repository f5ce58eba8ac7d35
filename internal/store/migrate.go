package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrate applies every *.sql file under dir, in lexicographic filename
// order, that hasn't already been recorded in schema_migrations. Unlike
// blackholedex's recorder (which calls gorm's AutoMigrate), this module
// owns its schema as versioned SQL files so multi-table migrations with
// indexes and constraints are explicit and reviewable, per spec §6.
//
// Also sets PRAGMA journal_mode=WAL, matching a sqlite single-writer,
// many-reader workload where the flush loop writes and the scorer/HTTP
// handlers read concurrently.
func Migrate(db *sql.DB, dir string) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("set WAL journal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".sql") {
			continue
		}
		files = append(files, ent.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		applied, err := isApplied(db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if err := applyMigration(db, name, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

func isApplied(db *sql.DB, filename string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration status for %s: %w", filename, err)
	}
	return count > 0, nil
}

func applyMigration(db *sql.DB, filename, script string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, strftime('%s','now'))`, filename); err != nil {
		return err
	}
	return tx.Commit()
}
