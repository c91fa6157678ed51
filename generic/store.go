/*
store.go - Document store interface consumed by the ledger

PURPOSE:
  Defines the boundary between the ledger logic and the database. The
  store is a generic document store: one collection per entity kind,
  JSON documents keyed by id. It offers exactly these primitives:
  - NewID:   generate an id before writing (so it can be embedded elsewhere)
  - Get:     point lookup by id
  - Query:   equality / range filters with ordering
  - Commit:  atomic multi-document batch (set, update, delete, increment)

NO REFERENTIAL INTEGRITY:
  There are no joins, no foreign keys, no cascading deletes and no
  triggers. Every cross-collection relationship (a ledger entry pointing
  at the member that produced it) is maintained by application code in
  the ledger package. That is the reason Reconciler and Scanner exist.

ATOMIC BATCHES:
  Commit() is all-or-nothing. When enrolling a member, the member
  document and its ledger entry are written together or not at all.
  Reads that precede a batch are NOT part of the atomic unit, so
  check-then-write races between two operators remain possible.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go:  SQLite with JSON bodies

EXAMPLE:
  b := generic.NewBatch()
  b.Set(gym.CollMembers, member.ID, member)
  b.Set(gym.CollCashflow, entry.ID, entry)
  if err := store.Commit(ctx, b); err != nil {
      // neither document was written
  }

SEE ALSO:
  - batch.go:    Batch operations
  - document.go: Filter evaluation and update semantics shared by stores
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
)

// =============================================================================
// STORE - Interface for document persistence
// =============================================================================

// Collection names a set of documents of one kind.
type Collection string

// Store is a collection-per-entity document store.
type Store interface {
	// NewID returns a fresh, unique document id.
	NewID() string

	// Get returns the raw document. Returns *NotFoundError if missing.
	Get(ctx context.Context, coll Collection, id string) (Document, error)

	// Query returns the documents matching every filter, ordered as requested.
	Query(ctx context.Context, coll Collection, q Query) ([]Document, error)

	// Commit applies every operation of the batch atomically.
	// Either all succeed or none do.
	Commit(ctx context.Context, b *Batch) error
}

// Resetter is implemented by stores that can drop all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}

// Document is a stored JSON body with its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Op is a comparison operator for filters.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter compares a top-level document field against a value.
// Values are strings, bools or numbers; dates are compared as "YYYY-MM-DD"
// strings and money is compared in Go, not in the store.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query is a conjunction of filters plus ordering.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// All matches every document of a collection.
func All() Query { return Query{} }

// Where starts a query with one filter.
func Where(field string, op Op, value any) Query {
	return Query{Filters: []Filter{{Field: field, Op: op, Value: value}}}
}

// Where adds another filter (AND).
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// In adds pre-built filters (AND).
func (q Query) In(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

// Order sets the ordering field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Take caps the number of results.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// =============================================================================
// TYPED HELPERS
// =============================================================================

// Load fetches and decodes a single document.
func Load[T any](ctx context.Context, s Store, coll Collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, coll, id)
	if err != nil {
		return out, err
	}
	err = doc.Decode(&out)
	return out, err
}

// Find runs a query and decodes every result.
func Find[T any](ctx context.Context, s Store, coll Collection, q Query) ([]T, error) {
	docs, err := s.Query(ctx, coll, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Exists reports whether a document exists.
func Exists(ctx context.Context, s Store, coll Collection, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	_, err := s.Get(ctx, coll, id)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
