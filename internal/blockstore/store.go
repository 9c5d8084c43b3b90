// Package blockstore is a block graph kept in SQLite or PostgreSQL. It
// serves as the extractor's host: blocks, tag backlinks, plugin settings and
// firehose cursors.
package blockstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store implements domain.Host, domain.Indicator and firehose.CursorStore.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to the database named by dsn and migrates it. postgres://
// and postgresql:// DSNs use PostgreSQL; anything else is a SQLite path,
// optionally prefixed with sqlite://. The caller should call Close when the
// store is no longer needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source, d := "sqlite", strings.TrimPrefix(dsn, "sqlite://"), dialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, source, d = "postgres", dsn, dialectPostgres
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewUID returns a fresh block UID.
func (s *Store) NewUID() string {
	return uuid.NewString()
}

func (s *Store) migrate(ctx context.Context) error {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		seq = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			seq ` + seq + `,
			uid TEXT NOT NULL UNIQUE,
			parent_uid TEXT NOT NULL DEFAULT '',
			ord INTEGER NOT NULL DEFAULT 0,
			string TEXT NOT NULL DEFAULT '',
			pending INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS blocks_parent_idx ON blocks (parent_uid, ord)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cursors (
			service TEXT PRIMARY KEY,
			cursor_value BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
