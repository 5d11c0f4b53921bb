package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath keeps all state in process memory; it is gone on restart.
const MemoryPath = ":memory:"

func Open(path string) (*sql.DB, error) {
	dsn := "file::memory:?_foreign_keys=on"
	if path != "" && path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// Every pooled connection to :memory: would get its own empty database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS targets (
			name TEXT PRIMARY KEY,
			ip TEXT NOT NULL,
			mac TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS operations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			target TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			ts DATETIME NOT NULL,
			command TEXT NOT NULL DEFAULT '',
			error TEXT,
			duration_ms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_target_seq ON operations(target, seq DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
