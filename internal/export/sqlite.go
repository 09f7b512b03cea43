package export

import (
	"database/sql"
	_ "embed"
	"fmt"
	"iter"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/boltview/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - records table
const currentSchemaVersion = 1

// openSQLite opens (creating if needed) an export file with pragmas applied.
func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: export files have a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

// applyPragmas sets export-file configuration. Export files are written
// once and copied around, so they use a rollback journal rather than WAL.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func writeSQLite(path string, records iter.Seq2[store.Record, error]) (int, error) {
	db, err := openSQLite(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return 0, fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return 0, fmt.Errorf("set user_version: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO records (key, value) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for rec, err := range records {
		if err != nil {
			return n, err
		}
		value := rec.Value
		if value == nil {
			value = []byte{}
		}
		if _, err := stmt.Exec(rec.Key, value); err != nil {
			return n, fmt.Errorf("insert record %d: %w", n, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit export: %w", err)
	}
	return n, nil
}

func readSQLite(path string) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		if _, err := os.Stat(path); err != nil {
			yield(store.Record{}, fmt.Errorf("failed to open %s: %w", path, err))
			return
		}
		db, err := openSQLite(path)
		if err != nil {
			yield(store.Record{}, err)
			return
		}
		defer db.Close()

		var version int
		if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
			yield(store.Record{}, fmt.Errorf("get user_version: %w", err))
			return
		}
		if version != currentSchemaVersion {
			yield(store.Record{}, malformed("sqlite: %s is not an export file (schema version %d)", path, version))
			return
		}

		rows, err := db.Query("SELECT key, value FROM records ORDER BY key")
		if err != nil {
			yield(store.Record{}, fmt.Errorf("query records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var rec store.Record
			if err := rows.Scan(&rec.Key, &rec.Value); err != nil {
				yield(store.Record{}, fmt.Errorf("scan record: %w", err))
				return
			}
			if rec.Value == nil {
				rec.Value = []byte{}
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(store.Record{}, fmt.Errorf("read records: %w", err))
		}
	}
}
