package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// CASHFLOW - Manual bookkeeping
// =============================================================================

// Cashflow records entries typed in by staff: expenses, and income that no
// primary record produced. Auto-generated entries are edited through the
// record that owns them.
type Cashflow struct {
	base
}

func NewCashflow(store generic.Store, clock generic.Clock) *Cashflow {
	return &Cashflow{base: newBase(store, clock)}
}

// EntryInput carries input for RecordEntry.
type EntryInput struct {
	Type   gym.EntryType
	Source string
	Amount decimal.Decimal
	Date   generic.TimePoint // zero = today
	Notes  string
}

// RecordEntry writes one manual entry.
func (c *Cashflow) RecordEntry(ctx context.Context, in EntryInput) (*gym.CashflowEntry, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()
	e := gym.CashflowEntry{
		ID:        c.Store.NewID(),
		Type:      in.Type,
		Source:    strings.TrimSpace(in.Source),
		Amount:    in.Amount,
		Date:      in.Date,
		Notes:     strings.TrimSpace(in.Notes),
		Manual:    true,
		CreatedBy: op.Label(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.Date.IsZero() {
		e.Date = c.today()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := c.Store.Commit(ctx, generic.NewBatch().Set(gym.CollCashflow, e.ID, e)); err != nil {
		return nil, fmt.Errorf("failed to record entry: %w", err)
	}
	return &e, nil
}

// UpdateEntryInput carries optional changes; nil fields are kept.
type UpdateEntryInput struct {
	Type   *gym.EntryType
	Source *string
	Amount *decimal.Decimal
	Date   *generic.TimePoint
	Notes  *string
}

// UpdateEntry edits a manual entry. Entries owned by a record return
// ErrLinkedEntry.
func (c *Cashflow) UpdateEntry(ctx context.Context, id string, in UpdateEntryInput) (*gym.CashflowEntry, error) {
	if _, err := generic.RequireOperator(ctx); err != nil {
		return nil, err
	}
	e, err := c.Repo.Entry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsLinked() || e.AutoGenerated {
		return nil, fmt.Errorf("entry %s belongs to %s %s: %w", id, e.LinkedType, e.LinkedID, generic.ErrLinkedEntry)
	}

	if in.Type != nil {
		e.Type = *in.Type
	}
	if in.Source != nil {
		e.Source = strings.TrimSpace(*in.Source)
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if in.Notes != nil {
		e.Notes = strings.TrimSpace(*in.Notes)
	}
	e.UpdatedAt = c.now()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := c.Store.Commit(ctx, generic.NewBatch().Set(gym.CollCashflow, e.ID, e)); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return &e, nil
}

// DeleteEntry removes any entry. Deleting an auto-generated entry leaves its
// record without income; the scanner does not recreate it.
func (c *Cashflow) DeleteEntry(ctx context.Context, id string) error {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return err
	}
	e, err := c.Repo.Entry(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Store.Commit(ctx, generic.NewBatch().Delete(gym.CollCashflow, id)); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if e.IsLinked() {
		log.Printf("[Ledger] %s deleted entry %s linked to %s %s", op.Label(), id, e.LinkedType, e.LinkedID)
	}
	return nil
}

// Totals sums a set of entries.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// Summarize returns the entries matching f and their totals.
func (c *Cashflow) Summarize(ctx context.Context, f gym.EntryFilter) ([]gym.CashflowEntry, Totals, error) {
	if err := f.Period.Validate(); err != nil {
		return nil, Totals{}, err
	}
	entries, err := c.Repo.Entries(ctx, f)
	if err != nil {
		return nil, Totals{}, err
	}
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero, Count: len(entries)}
	for _, e := range entries {
		switch e.Type {
		case gym.Income:
			t.Income = t.Income.Add(e.Amount)
		case gym.Expense:
			t.Expense = t.Expense.Add(e.Amount)
		}
		t.Net = t.Net.Add(e.SignedAmount())
	}
	return entries, t, nil
}
