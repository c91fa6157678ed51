/*
Package ledger keeps ledger entries consistent with the records that
produce them.

PURPOSE:
  The document store has no foreign keys, no cascading deletes and no
  triggers. Every income-producing action (enrollment, walk-in, sale,
  renewal) must leave exactly one cashflow entry behind, and deleting the
  action must take that entry with it. This package is the only place
  that writes more than one document at a time.

COMPONENTS:
  Writer:     primary record + linked entry in one atomic batch
  Reconciler: delete a primary record and undo everything it wrote
  Scanner:    operator-triggered repair of drift (orphans, unlinked rows)
  Renewals:   member extension + renewal payment + linked entry
  Cashflow:   manual income/expense bookkeeping

CRITICAL INVARIANTS:
  1. After a successful write, exactly one entry has linkedId == primary id
     and amount == event amount.
  2. Deleting a sale restores each line's stock by exactly the sold
     quantity and removes exactly one entry.
  3. Every write happens in one Store.Commit; a failure leaves nothing
     behind.
  4. Heuristic matching never resolves ambiguity silently: ambiguous
     matches are logged and reported, and nothing is deleted for them.

KNOWN GAP:
  Reads that precede a batch (linked-entry lookups, fallback search,
  inventory lookups) are not isolated. Two operators deleting the same
  sale at once can both restore its stock. The store offers no primitive
  to close this; see DESIGN.md.

EXAMPLE:
  l := ledger.New(store, generic.SystemClock{})
  ctx = generic.WithOperator(ctx, generic.Operator{ID: "staff-1"})
  enrollment, err := l.Writer.EnrollMember(ctx, ledger.EnrollMemberInput{...})
  reversal, err := l.Reconciler.DeleteMember(ctx, enrollment.Member.ID)

SEE ALSO:
  - generic/store.go: Store contract and atomic batches
  - gym/:             Records and validation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// LEDGER - All components over one store
// =============================================================================

// Ledger bundles the components that share a store and a clock.
type Ledger struct {
	Writer     *Writer
	Reconciler *Reconciler
	Scanner    *Scanner
	Renewals   *Renewals
	Cashflow   *Cashflow
}

func New(store generic.Store, clock generic.Clock) *Ledger {
	return &Ledger{
		Writer:     NewWriter(store, clock),
		Reconciler: NewReconciler(store, clock),
		Scanner:    NewScanner(store, clock),
		Renewals:   NewRenewals(store, clock),
		Cashflow:   NewCashflow(store, clock),
	}
}

// base holds what every component needs.
type base struct {
	Store generic.Store
	Repo  *gym.Repository
	Clock generic.Clock
}

func newBase(store generic.Store, clock generic.Clock) base {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return base{Store: store, Repo: gym.NewRepository(store), Clock: clock}
}

// now is the timestamp written to createdAt/updatedAt.
func (b base) now() time.Time { return b.Clock.Now().UTC() }

// today is the default business date.
func (b base) today() generic.TimePoint { return generic.Today(b.Clock) }

// linkedEntry builds the auto-generated income row for a primary record.
func (b base) linkedEntry(op generic.Operator, id string, kind gym.LinkedType, linkedID, source string,
	amount decimal.Decimal, date generic.TimePoint, party string) gym.CashflowEntry {
	now := b.now()
	return gym.CashflowEntry{
		ID:            id,
		Type:          gym.Income,
		Source:        source,
		Amount:        amount,
		Date:          date,
		Notes:         gym.EntryNotes(kind, party),
		LinkedID:      linkedID,
		LinkedType:    kind,
		AutoGenerated: true,
		CreatedBy:     op.Label(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
