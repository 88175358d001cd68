// Package storage implements the document store contract on SQLite: one
// table of JSON documents keyed by path, with in-process live subscriptions.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/grofunds/grofunds/internal/common"
	"github.com/grofunds/grofunds/internal/service"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteStore implements service.DocumentStore. Writes stamp createdAt and
// updatedAt inside the document, playing the server-timestamp role the
// hosted document database plays in production.
type SQLiteStore struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

// NewSQLiteStore opens (creating if needed) the document database at dbPath.
// Use ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required: %w", common.ErrInvalidConfig)
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		subs: make(map[string]map[*subscription]struct{}),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create writes a new document at path. It fails with common.ErrDuplicateEntry
// if a document already exists there.
func (s *SQLiteStore) Create(ctx context.Context, path string, fields map[string]any) error {
	now := time.Now().UTC()

	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	doc["createdAt"] = now.Format(time.RFC3339Nano)
	doc["updatedAt"] = now.Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (path, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		path, string(data), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("document %s: %w", path, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	s.notify(path)
	return nil
}

// Get returns the full document at path, or common.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, path string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return fields, nil
}

// Update merges fields into the document at path and bumps updatedAt.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", path, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	now := time.Now().UTC()
	for k, v := range fields {
		doc[k] = v
	}
	doc["updatedAt"] = now.Format(time.RFC3339Nano)

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE path = ?`,
		string(merged), now, path); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	s.notify(path)
	return nil
}

// Delete removes the document at path. Deleting a missing document is not
// an error.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.notify(path)
	}
	return nil
}

// Subscribe opens a live feed for path. The document's current state is
// delivered as the first event.
func (s *SQLiteStore) Subscribe(path string) (service.Subscription, error) {
	sub := &subscription{
		store: s,
		path:  path,
		ch:    make(chan service.DocumentEvent, 1),
	}

	s.mu.Lock()
	if s.subs[path] == nil {
		s.subs[path] = make(map[*subscription]struct{})
	}
	s.subs[path][sub] = struct{}{}
	s.mu.Unlock()

	sub.push(s.snapshot(path))
	return sub, nil
}

func (s *SQLiteStore) notify(path string) {
	ev := s.snapshot(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[path] {
		sub.push(ev)
	}
}

func (s *SQLiteStore) snapshot(path string) service.DocumentEvent {
	fields, err := s.Get(context.Background(), path)
	switch {
	case err == nil:
		return service.DocumentEvent{Fields: fields, Exists: true}
	case errors.Is(err, common.ErrNotFound):
		return service.DocumentEvent{Exists: false}
	default:
		return service.DocumentEvent{Err: err}
	}
}
