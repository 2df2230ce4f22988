// Package sqlite provides a durable memory.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/memory"
	_ "modernc.org/sqlite"
)

// Store persists memory entries in a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL for concurrent read/write access and a busy timeout so writers
	// retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			domain      TEXT NOT NULL,
			key         TEXT NOT NULL,
			content     TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (domain, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_domain ON memory_entries(domain)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

// Put implements memory.Store with an upsert on (domain, key).
func (s *Store) Put(ctx context.Context, entry memory.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_entries (domain, key, content)
		 VALUES (?, ?, ?)
		 ON CONFLICT(domain, key) DO UPDATE SET
		   content = excluded.content,
		   updated_at = CURRENT_TIMESTAMP`,
		entry.Domain, entry.Key, entry.Content)
	if err != nil {
		return fmt.Errorf("put memory entry: %w", err)
	}
	return nil
}

// Search implements memory.Store with a LIKE scan over the listed
// domains. Key matches rank above content matches.
func (s *Store) Search(ctx context.Context, domains []string, query string, limit int) ([]core.SearchResult, error) {
	if len(domains) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	placeholders := strings.Repeat("?,", len(domains))
	placeholders = placeholders[:len(placeholders)-1]
	pattern := "%" + query + "%"

	args := make([]any, 0, len(domains)+4)
	args = append(args, pattern)
	for _, d := range domains {
		args = append(args, d)
	}
	args = append(args, pattern, pattern, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, key, content,
		        CASE WHEN key LIKE ? THEN 1.0 ELSE 0.5 END AS score
		 FROM memory_entries
		 WHERE domain IN (`+placeholders+`)
		   AND (key LIKE ? OR content LIKE ?)
		 ORDER BY score DESC, updated_at DESC
		 LIMIT ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("search memory entries: %w", err)
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var r core.SearchResult
		if err := rows.Scan(&r.Domain, &r.Key, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scan memory entry: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, domain, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_entries WHERE domain = ? AND key = ?`, domain, key)
	if err != nil {
		return fmt.Errorf("delete memory entry: %w", err)
	}
	return nil
}
