// Package sqlite implements a durable read-model store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/snagmail/snagmail/pkg/config"
	"github.com/snagmail/snagmail/pkg/readmodel"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	doc        BLOB NOT NULL,
	PRIMARY KEY (collection, key)
);
`

// Store persists read-model documents in a SQLite database.
type Store struct {
	sqlDB *sql.DB
}

var _ readmodel.Store = &Store{}

// New opens the SQLite store named by the configuration.
func New(cfg config.ReadModel) (readmodel.Store, error) {
	return Open(cfg.Path)
}

// Open opens a SQLite read-model store and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("read-model store path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create read-model dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open read-model store: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping read-model store: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply read-model schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put unconditionally writes a document.
func (s *Store) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (collection, key, doc) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET doc = excluded.doc`,
		collection, key, doc)
	if err != nil {
		return unavailable("put document", err)
	}
	return nil
}

// Get returns one document, or readmodel.ErrNoDocument.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc []byte
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, readmodel.ErrNoDocument
		}
		return nil, unavailable("get document", err)
	}
	return doc, nil
}

// Delete removes one document; absent documents are a no-op.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return unavailable("delete document", err)
	}
	return nil
}

// DeleteAll truncates a collection.
func (s *Store) DeleteAll(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return unavailable("truncate collection", err)
	}
	return nil
}

// Visit walks a collection.
func (s *Store) Visit(ctx context.Context, collection string, visit func(key string, doc []byte) bool) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key, doc FROM documents WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return unavailable("visit collection", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var doc []byte
		if err := rows.Scan(&key, &doc); err != nil {
			return unavailable("scan document", err)
		}
		if !visit(key, doc) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable("visit collection", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, readmodel.ErrUnavailable, err)
}
