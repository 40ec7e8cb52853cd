package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDirName = ".wardline"
	dbFileName  = "wardline.db"
)

// Config locates the database. Dir is the workspace data directory; the
// database lives at <dir>/.wardline/wardline.db.
type Config struct {
	Dir string
}

// Path returns the database file path under dir.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, dataDirName, dbFileName)
}

// EnsureDataDir creates the data directory under dir if missing.
func EnsureDataDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, dataDirName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database, creating the data directory as needed.
// WAL keeps the CLI and a running server from tripping over each other,
// and the busy timeout covers the brief writer lock that remains.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureDataDir(cfg.Dir); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", Path(cfg.Dir))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
