/*
Package sqlite provides a SQLite-backed implementation of generic.Store.

PURPOSE:
  Persists every collection as JSON documents in a single table and
  evaluates queries with SQLite's JSON functions. The ledger code above
  sees the same document-store contract as the in-memory store; nothing
  relational (joins, foreign keys, cascades) is used on purpose.

INTERFACES IMPLEMENTED:
  generic.Store:    NewID, Get, Query, Commit
  generic.Resetter: Reset (demo scenarios)

KEY TABLE:
  documents(collection, id, body, created_at, updated_at)
  PRIMARY KEY (collection, id)

INDEXES:
  - idx_documents_linked: ledger entries by back-reference (hot path for
    reconciliation: "entries where linkedId == X")
  - idx_documents_date:   date range listing and fallback matching

ATOMIC BATCHES:
  Commit() runs every operation of a batch inside one sql.Tx. Update and
  increment operations read the body inside the transaction, apply the
  shared semantics from generic/document.go, and write it back, so a
  failing operation (missing document, stock below zero) rolls back the
  whole batch.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, like the rest of the stores.
  ":memory:" databases are pinned to a single connection because each new
  connection would otherwise see an empty database.

USAGE:
  store, err := sqlite.New("./data/gym.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go:        Interface definitions
  - generic/document.go:     Filter and update semantics
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/gym-ledger/generic"
)

// Store implements generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- One table, one row per document. Collections are a column, not tables,
	-- so new entity kinds need no migration.
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);

	-- Ledger entries by back-reference
	CREATE INDEX IF NOT EXISTS idx_documents_linked
		ON documents(collection, json_extract(body, '$.linkedId'));

	-- Date listing and fallback matching
	CREATE INDEX IF NOT EXISTS idx_documents_date
		ON documents(collection, json_extract(body, '$.date'));
	`

	_, err := s.db.Exec(schema)
	return err
}

// NewID returns a random UUID.
func (s *Store) NewID() string {
	return uuid.New().String()
}

// =============================================================================
// READS
// =============================================================================

// Get returns a single document.
func (s *Store) Get(ctx context.Context, coll generic.Collection, id string) (generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getDoc(ctx, s.db, coll, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, db queryer, coll generic.Collection, id string) (generic.Document, error) {
	var body string
	err := db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?",
		string(coll), id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return generic.Document{}, &generic.NotFoundError{Collection: coll, ID: id}
	}
	if err != nil {
		return generic.Document{}, fmt.Errorf("failed to get %s/%s: %w", coll, id, err)
	}
	return generic.Document{ID: id, Data: json.RawMessage(body)}, nil
}

// Query returns matching documents.
func (s *Store) Query(ctx context.Context, coll generic.Collection, q generic.Query) ([]generic.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := buildQuery(coll, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []generic.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, generic.Document{ID: id, Data: json.RawMessage(body)})
	}
	return docs, rows.Err()
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func fieldExpr(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(body, '$.%s')", field), nil
}

func buildQuery(coll generic.Collection, q generic.Query) (string, []any, error) {
	where := []string{"collection = ?"}
	args := []any{string(coll)}

	for _, f := range q.Filters {
		expr, err := fieldExpr(f.Field)
		if err != nil {
			return "", nil, err
		}
		switch f.Op {
		case generic.OpEq, generic.OpLt, generic.OpLte, generic.OpGt, generic.OpGte:
			op := string(f.Op)
			if f.Op == generic.OpEq {
				op = "="
			}
			where = append(where, fmt.Sprintf("%s %s ?", expr, op))
		case generic.OpNeq:
			where = append(where, fmt.Sprintf("(%s IS NULL OR %s != ?)", expr, expr))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		args = append(args, sqlValue(f.Value))
	}

	query := "SELECT id, body FROM documents WHERE " + strings.Join(where, " AND ")

	if q.OrderBy != "" {
		expr, err := fieldExpr(q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, id ASC", expr, dir)
	} else {
		query += " ORDER BY id ASC"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return query, args, nil
}

// sqlValue converts a filter value to what json_extract yields for it.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case time.Time:
		return generic.FormatStamp(x)
	case fmt.Stringer:
		return x.String()
	}
	return v
}

// =============================================================================
// WRITES
// =============================================================================

// Commit applies the batch inside one SQL transaction.
func (s *Store) Commit(ctx context.Context, b *generic.Batch) error {
	if err := b.Ready(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, op := range b.Ops() {
		if err := s.apply(ctx, sqlTx, op, now); err != nil {
			return err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, op generic.WriteOp, now string) error {
	switch op.Kind {
	case generic.OpSet:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				body = excluded.body,
				updated_at = excluded.updated_at
		`, string(op.Collection), op.ID, string(op.Data), now, now)
		if err != nil {
			return fmt.Errorf("failed to set %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil

	case generic.OpDelete:
		_, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?",
			string(op.Collection), op.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil

	case generic.OpUpdate, generic.OpIncrement:
		doc, err := getDoc(ctx, tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		var next json.RawMessage
		if op.Kind == generic.OpUpdate {
			next, err = generic.ApplyUpdate(doc.Data, op.Data)
		} else {
			next, err = generic.ApplyIncrement(doc.Data, op.Field, op.Delta, op.NonNegative)
		}
		if err != nil {
			return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
			string(next), now, string(op.Collection), op.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	}
	return fmt.Errorf("unsupported batch operation %v", op.Kind)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset deletes every document. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM documents")
	return err
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, coll generic.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", string(coll),
	).Scan(&n)
	return n, err
}
