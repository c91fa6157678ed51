package generic

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// BATCH - Atomic multi-document write
// =============================================================================

// OpKind identifies a batch operation.
type OpKind int

const (
	OpSet       OpKind = iota // create or replace a whole document
	OpUpdate                  // merge top-level fields into an existing document
	OpDelete                  // remove a document (missing is not an error)
	OpIncrement               // add to a numeric field of an existing document
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpIncrement:
		return "increment"
	}
	return "unknown"
}

// WriteOp is one operation of a batch.
type WriteOp struct {
	Kind       OpKind
	Collection Collection
	ID         string

	// OpSet: full body. OpUpdate: JSON object of fields to merge; a null
	// value removes the field.
	Data json.RawMessage

	// OpIncrement
	Field       string
	Delta       int64
	NonNegative bool
}

// Batch collects writes that Store.Commit applies atomically. Marshalling
// errors are remembered and reported by Commit so call sites stay linear.
type Batch struct {
	ops []WriteOp
	err error
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set creates or replaces a document.
func (b *Batch) Set(coll Collection, id string, doc any) *Batch {
	data, err := json.Marshal(doc)
	if err == nil {
		data, err = normalizeStamps(data)
	}
	if err != nil {
		b.fail(fmt.Errorf("failed to encode %s/%s: %w", coll, id, err))
		return b
	}
	b.ops = append(b.ops, WriteOp{Kind: OpSet, Collection: coll, ID: id, Data: data})
	return b
}

// Update merges fields into an existing document. Commit fails with
// ErrNotFound if the document is missing.
func (b *Batch) Update(coll Collection, id string, fields map[string]any) *Batch {
	data, err := json.Marshal(fields)
	if err == nil {
		data, err = normalizeStamps(data)
	}
	if err != nil {
		b.fail(fmt.Errorf("failed to encode update %s/%s: %w", coll, id, err))
		return b
	}
	b.ops = append(b.ops, WriteOp{Kind: OpUpdate, Collection: coll, ID: id, Data: data})
	return b
}

// Delete removes a document.
func (b *Batch) Delete(coll Collection, id string) *Batch {
	b.ops = append(b.ops, WriteOp{Kind: OpDelete, Collection: coll, ID: id})
	return b
}

// Increment adds delta to an integer field. The counter must stay >= 0;
// otherwise Commit fails with ErrNegativeCounter and nothing is written.
func (b *Batch) Increment(coll Collection, id, field string, delta int64) *Batch {
	b.ops = append(b.ops, WriteOp{
		Kind: OpIncrement, Collection: coll, ID: id,
		Field: field, Delta: delta, NonNegative: true,
	})
	return b
}

// Ops returns the queued operations.
func (b *Batch) Ops() []WriteOp { return b.ops }

// Len returns the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

// Err returns the first encoding error, if any.
func (b *Batch) Err() error { return b.err }

func (b *Batch) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Ready is called by stores before applying a batch.
func (b *Batch) Ready() error {
	if b == nil || len(b.ops) == 0 {
		return ErrEmptyBatch
	}
	return b.err
}
