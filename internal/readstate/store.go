// Package readstate persists the set of notification ids the user has
// acknowledged. The set only grows: marks are never removed
// automatically, and an id marked read once stays read wherever the
// same notification recurs.
package readstate

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ltran/capstone-notify/internal/bus"
)

// Store is the durable read-mark set, backed by a local SQLite
// database. Reads are safe for concurrent use; writes are simple
// last-write-wins set insertions.
type Store struct {
	db  *sqlx.DB
	bus *bus.Bus
}

// Open opens (or creates) the read-state database at dbPath, enables
// WAL mode, and runs any pending schema migrations. A corrupt or
// otherwise unusable database file is reset to an empty set: the marks
// are a cache of acknowledgements, and losing them only resurfaces
// notifications as unread. Marking operations emit on b only when a
// mark actually transitions.
func Open(dbPath string, b *bus.Bus) (*Store, error) {
	s, err := open(dbPath, b)
	if err == nil {
		return s, nil
	}
	if dbPath == ":memory:" {
		return nil, err
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		return nil, err
	}

	log.Printf("read-state db unusable, resetting to empty set: %v", err)
	removeDatabaseFiles(dbPath)

	return open(dbPath, b)
}

// removeDatabaseFiles deletes the database file and its WAL sidecars,
// best-effort.
func removeDatabaseFiles(dbPath string) {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("removing %s: %v", p, err)
		}
	}
}

func open(dbPath string, b *bus.Bus) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening read-state db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, bus: b}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// IsRead reports whether the given notification id has been
// acknowledged. Storage errors degrade to false: showing a read
// notification as unread is preferable to failing the caller.
func (s *Store) IsRead(ctx context.Context, id string) bool {
	var count int
	err := s.db.GetContext(ctx,
		&count, "SELECT COUNT(*) FROM read_marks WHERE id = ?", id,
	)
	if err != nil {
		log.Printf("read-state lookup for %s failed: %v", id, err)
		return false
	}
	return count > 0
}

// ReadSet returns the full set of acknowledged ids. Storage errors
// degrade to an empty set.
func (s *Store) ReadSet(ctx context.Context) map[string]bool {
	rows, err := s.db.QueryxContext(ctx, "SELECT id FROM read_marks")
	if err != nil {
		log.Printf("read-state scan failed: %v", err)
		return map[string]bool{}
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Printf("read-state scan failed: %v", err)
			return set
		}
		set[id] = true
	}
	if err := rows.Err(); err != nil {
		log.Printf("read-state scan failed: %v", err)
	}

	return set
}

// MarkRead records a single acknowledgement. It is idempotent and
// emits a change event only when the id was not already marked, so
// repeated marks do not cause redundant refresh storms.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO read_marks (id, marked_at) VALUES (?, ?)",
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	if inserted > 0 && s.bus != nil {
		s.bus.Emit()
	}

	return nil
}

// MarkIDsRead records a batch of acknowledgements in one transaction
// and emits a single change event if at least one id transitioned.
// An empty batch is a pure no-op: callers wanting a broadcast-only
// refresh signal use Bus.Emit directly.
func (s *Store) MarkIDsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"INSERT OR IGNORE INTO read_marks (id, marked_at) VALUES (?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing mark statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var transitions int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id, now)
		if err != nil {
			return fmt.Errorf("marking %s read: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("marking %s read: %w", id, err)
		}
		transitions += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing read marks: %w", err)
	}

	if transitions > 0 && s.bus != nil {
		s.bus.Emit()
	}

	return nil
}
