/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Store errors      - document missing, counter would go negative, I/O
  2. Validation errors - caught before any write is attempted
  3. Ledger errors     - operation not allowed on linked data

Store I/O failures are never sentinels: they are wrapped with %w and
surface as "retry" failures to the operator. Nothing here is fatal to the
process; every error is scoped to the action that produced it.

USAGE:
  if errors.Is(err, generic.ErrNotFound) {
      // 404
  }
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      // render verr.Fields inline
  }

SEE ALSO:
  - store.go: Store contract returning these errors
  - ledger/: Writer, Reconciler and Scanner
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrValidation is returned when input fails validation. No store
	// interaction happens before it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNegativeCounter is returned by a batch commit when an increment
	// would take a non-negative counter (stock) below zero. The whole batch
	// is rolled back.
	ErrNegativeCounter = errors.New("counter would become negative")

	// ErrInsufficientStock is returned when a sale asks for more units than
	// the inventory holds.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNoOperator is returned when a ledger operation runs without an
	// operator identity in the context.
	ErrNoOperator = errors.New("no operator identity in context")

	// ErrLinkedEntry is returned when a caller tries to edit an
	// auto-generated ledger entry directly instead of through its source.
	ErrLinkedEntry = errors.New("entry is linked to a source record")

	// ErrUnknownKind is returned for an unknown linked-entity kind.
	ErrUnknownKind = errors.New("unknown record kind")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrEmptyBatch is returned when committing a batch with no operations.
	ErrEmptyBatch = errors.New("empty batch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError is a single per-field validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed field of one record.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validator accumulates field errors for one record.
//
//	v := generic.NewValidator("member")
//	v.Require("name", m.Name)
//	return v.Err()
type Validator struct {
	err ValidationError
}

func NewValidator(entity string) *Validator {
	return &Validator{err: ValidationError{Entity: entity}}
}

// Add records a failure for field.
func (v *Validator) Add(field, message string) {
	v.err.Fields = append(v.err.Fields, FieldError{Field: field, Message: message})
}

// Check records message for field when ok is false.
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.Add(field, message)
	}
}

// Require records a failure when value is blank.
func (v *Validator) Require(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// Err returns nil when no field failed.
func (v *Validator) Err() error {
	if len(v.err.Fields) == 0 {
		return nil
	}
	out := v.err
	return &out
}

// NotFoundError names the missing document.
type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Collection, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNegativeCounter) ||
		errors.Is(err, ErrLinkedEntry) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true for errors caused by the current state of the data
// rather than the request itself.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNegativeCounter) ||
		errors.Is(err, ErrLinkedEntry)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
