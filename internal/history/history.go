// Package history keeps the list of recently visited components in a local SQLite file.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/otavio/vigia/internal/component"
	_ "modernc.org/sqlite"
)

// DefaultSize is the number of entries kept when no size is configured.
const DefaultSize = 10

// Entry is one visited component.
type Entry struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Qualifier    string    `json:"qualifier"`
	Organization string    `json:"organization,omitempty"`
	VisitedAt    time.Time `json:"visited_at"`
}

// Store is a capped, most-recent-first history de-duplicated by component key.
type Store struct {
	db     *sql.DB
	size   int
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the history database at path.
func Open(path string, size int, logger *slog.Logger) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS recent_history (
			key          TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			qualifier    TEXT NOT NULL,
			organization TEXT NOT NULL DEFAULT '',
			visited_at   INTEGER NOT NULL,
			seq          INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}

	return &Store{db: db, size: size, logger: logger, now: time.Now}, nil
}

// Add records a visit. Failures are logged, never returned: history is best effort.
func (s *Store) Add(c component.Component) {
	if err := s.add(c); err != nil {
		s.logger.Warn("recording recent history", "component", c.Key, "error", err)
	}
}

func (s *Store) add(c component.Component) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO recent_history (key, name, qualifier, organization, visited_at, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_history))
		ON CONFLICT (key) DO UPDATE SET
			name         = excluded.name,
			qualifier    = excluded.qualifier,
			organization = excluded.organization,
			visited_at   = excluded.visited_at,
			seq          = excluded.seq
	`, c.Key, c.Name, c.Qualifier, c.Organization, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting entry: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM recent_history
		WHERE key NOT IN (SELECT key FROM recent_history ORDER BY seq DESC LIMIT ?)
	`, s.size)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}

	return tx.Commit()
}

// List returns entries most recent first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT key, name, qualifier, organization, visited_at
		FROM   recent_history
		ORDER  BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var visited int64
		if err := rows.Scan(&e.Key, &e.Name, &e.Qualifier, &e.Organization, &visited); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.VisitedAt = time.UnixMilli(visited)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes one entry. Removing an unknown key is not an error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM recent_history WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing %s from history: %w", key, err)
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM recent_history`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
