// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/gym-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps documents in maps under one RWMutex. Commit applies a batch
// against a snapshot and restores it on the first failing operation.
type Memory struct {
	mu   sync.RWMutex
	docs map[generic.Collection]map[string]json.RawMessage

	// FailCommit, when set, is called before every commit. A non-nil error
	// aborts the commit. Tests use it to simulate store outages.
	FailCommit func(b *generic.Batch) error
}

var _ generic.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{docs: make(map[generic.Collection]map[string]json.RawMessage)}
}

func (m *Memory) NewID() string {
	return uuid.New().String()
}

func (m *Memory) Get(_ context.Context, coll generic.Collection, id string) (generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[coll][id]
	if !ok {
		return generic.Document{}, &generic.NotFoundError{Collection: coll, ID: id}
	}
	return generic.Document{ID: id, Data: cloneRaw(data)}, nil
}

func (m *Memory) Query(_ context.Context, coll generic.Collection, q generic.Query) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Document
	for id, data := range m.docs[coll] {
		ok, err := generic.Matches(data, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, generic.Document{ID: id, Data: cloneRaw(data)})
		}
	}
	generic.SortDocuments(result, q.OrderBy, q.Desc)
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Commit applies the batch atomically.
func (m *Memory) Commit(_ context.Context, b *generic.Batch) error {
	if err := b.Ready(); err != nil {
		return err
	}
	if m.FailCommit != nil {
		if err := m.FailCommit(b); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	for _, op := range b.Ops() {
		if err := m.applyLocked(op); err != nil {
			m.docs = snapshot
			return err
		}
	}
	return nil
}

func (m *Memory) applyLocked(op generic.WriteOp) error {
	coll := m.docs[op.Collection]
	if coll == nil {
		coll = make(map[string]json.RawMessage)
		m.docs[op.Collection] = coll
	}

	switch op.Kind {
	case generic.OpSet:
		coll[op.ID] = cloneRaw(op.Data)
	case generic.OpDelete:
		delete(coll, op.ID)
	case generic.OpUpdate:
		current, ok := coll[op.ID]
		if !ok {
			return &generic.NotFoundError{Collection: op.Collection, ID: op.ID}
		}
		next, err := generic.ApplyUpdate(current, op.Data)
		if err != nil {
			return err
		}
		coll[op.ID] = next
	case generic.OpIncrement:
		current, ok := coll[op.ID]
		if !ok {
			return &generic.NotFoundError{Collection: op.Collection, ID: op.ID}
		}
		next, err := generic.ApplyIncrement(current, op.Field, op.Delta, op.NonNegative)
		if err != nil {
			return err
		}
		coll[op.ID] = next
	}
	return nil
}

// snapshot copies the collection maps. Bodies are never mutated in place,
// so sharing the byte slices is safe.
func (m *Memory) snapshot() map[generic.Collection]map[string]json.RawMessage {
	out := make(map[generic.Collection]map[string]json.RawMessage, len(m.docs))
	for c, docs := range m.docs {
		cp := make(map[string]json.RawMessage, len(docs))
		for id, d := range docs {
			cp[id] = d
		}
		out[c] = cp
	}
	return out
}

// Reset drops every document.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[generic.Collection]map[string]json.RawMessage)
	return nil
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(coll generic.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[coll])
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), r...)
}
