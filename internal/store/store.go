package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS          = 5000
	defaultMaxOpenConns    = 1
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "STATSVAULT_DB_MAX_OPEN_CONNS"
	connMaxLifetimeEnvKey = "STATSVAULT_DB_CONN_MAX_LIFETIME"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrExhausted     = errors.New("access budget exhausted")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreLocked   = errors.New("store is locked by another process")
)

// Store wraps the SQLite database holding the identifier registry, stored
// payloads, and the fetch audit trail.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open opens the SQLite database, takes an exclusive process lock next to
// it, and applies pending migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if path != MemoryPath {
		lock = flock.New(path + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock store %s: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		unlock(lock)
		return nil, err
	}

	if err := configureDB(db, path == MemoryPath); err != nil {
		_ = db.Close()
		unlock(lock)
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		unlock(lock)
		return nil, err
	}

	return &Store{db: db, path: path, lock: lock}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close checkpoints the WAL, closes the database, and releases the lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.path != MemoryPath {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	}
	err := s.db.Close()
	unlock(s.lock)
	return err
}

func unlock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	_ = lock.Unlock()
}

func configureDB(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	if !memory {
		// Every committed push and decrement must survive a power loss.
		pragmas = append([]string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = FULL;",
		}, pragmas...)
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	maxOpen := intFromEnv(maxOpenConnsEnvKey, defaultMaxOpenConns)
	lifetime := durationFromEnv(connMaxLifetimeEnvKey, defaultConnMaxLifetime)
	if memory {
		// Each connection to :memory: is its own database.
		maxOpen = 1
		lifetime = 0
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(defaultMaxIdleConns, maxOpen))
	db.SetConnMaxLifetime(lifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	if path == MemoryPath {
		return path, nil
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func intFromEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return def
		}
		return time.Duration(seconds) * time.Second
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
