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
// RECONCILER - Undo a Writer write when its primary record is deleted
// =============================================================================
// Two phases:
//   1. Read: primary record, linked entries, fallback candidates, inventory.
//   2. One batch: delete primary, delete entries, restore stock.
// A failing read aborts before anything is written. The read phase is not
// isolated from concurrent writers; see KNOWN GAP in ledger.go.

// Reconciler deletes primary records together with their ledger entries.
type Reconciler struct {
	base
}

func NewReconciler(store generic.Store, clock generic.Clock) *Reconciler {
	return &Reconciler{base: newBase(store, clock)}
}

// StockRestore describes one inventory change made by DeleteSale.
type StockRestore struct {
	ItemID      string `json:"itemId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Recreated   bool   `json:"recreated,omitempty"`
}

// Reversal reports what a delete removed.
type Reversal struct {
	Kind            gym.LinkedType  `json:"kind"`
	PrimaryID       string          `json:"primaryId"`
	RemovedEntries  []string        `json:"removedEntries"`
	RemovedAmount   decimal.Decimal `json:"removedAmount"`
	UsedFallback    bool            `json:"usedFallback,omitempty"`
	Ambiguous       []string        `json:"ambiguous,omitempty"`
	RestoredStock   []StockRestore  `json:"restoredStock,omitempty"`
	RemovedRenewals int             `json:"removedRenewals,omitempty"`
}

// removal accumulates entries to delete, without duplicates.
type removal struct {
	rev  *Reversal
	seen map[string]bool
}

func newRemoval(kind gym.LinkedType, id string) *removal {
	return &removal{
		rev:  &Reversal{Kind: kind, PrimaryID: id, RemovedEntries: []string{}, RemovedAmount: decimal.Zero},
		seen: make(map[string]bool),
	}
}

func (r *removal) add(e gym.CashflowEntry) {
	if r.seen[e.ID] {
		return
	}
	r.seen[e.ID] = true
	r.rev.RemovedEntries = append(r.rev.RemovedEntries, e.ID)
	r.rev.RemovedAmount = r.rev.RemovedAmount.Add(e.SignedAmount())
}

// fallback runs the heuristic search and records its outcome.
func (r *removal) fallback(ctx context.Context, b base, what string, c entryCriteria) error {
	best, ambiguous, err := b.findFallback(ctx, what, c, r.seen)
	if err != nil {
		return err
	}
	if best != nil {
		r.add(*best)
		r.rev.UsedFallback = true
	}
	r.rev.Ambiguous = append(r.rev.Ambiguous, ambiguous...)
	return nil
}

func (r *removal) queue(b *generic.Batch) {
	for _, id := range r.rev.RemovedEntries {
		b.Delete(gym.CollCashflow, id)
	}
}

// hasKind reports whether any entry carries the given linked type.
func hasKind(entries []gym.CashflowEntry, kind gym.LinkedType) bool {
	for _, e := range entries {
		if e.LinkedType == kind {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Members
// -----------------------------------------------------------------------------

// DeleteMember removes the member, its renewal payments and every entry
// linked to it (enrollment and renewals). Legacy unlinked entries are
// removed through the fallback matcher when it finds exactly one candidate.
func (r *Reconciler) DeleteMember(ctx context.Context, id string) (*Reversal, error) {
	if _, err := generic.RequireOperator(ctx); err != nil {
		return nil, err
	}
	m, err := r.Repo.Member(ctx, id)
	if err != nil {
		return nil, err
	}
	linked, err := r.Repo.LinkedEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	renewals, err := r.Repo.RenewalsForMember(ctx, id)
	if err != nil {
		return nil, err
	}

	rm := newRemoval(gym.LinkedMember, id)
	for _, e := range linked {
		rm.add(e)
	}
	if !hasKind(linked, gym.LinkedMember) {
		if err := rm.fallback(ctx, r.base, "member "+id, entryCriteria{
			Source: m.MembershipType.Label(),
			Amount: m.AmountPaid,
			Date:   m.StartDate,
			Party:  m.Name,
		}); err != nil {
			return nil, err
		}
	}

	b := generic.NewBatch().Delete(gym.CollMembers, id)
	for _, p := range renewals {
		b.Delete(gym.CollRenewals, p.ID)
		if p.CashflowEntryID != "" {
			if e, err := r.Repo.Entry(ctx, p.CashflowEntryID); err == nil {
				rm.add(e)
				continue
			} else if !generic.IsNotFound(err) {
				return nil, err
			}
		}
		if err := rm.fallback(ctx, r.base, "renewal "+p.ID, entryCriteria{
			Source: p.MembershipType.Label(),
			Amount: p.Amount,
			Date:   p.PaymentDate,
			Party:  m.Name,
		}); err != nil {
			return nil, err
		}
	}
	rm.rev.RemovedRenewals = len(renewals)
	rm.queue(b)

	if err := r.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to delete member: %w", err)
	}
	r.logReversal(rm.rev)
	return rm.rev, nil
}

// -----------------------------------------------------------------------------
// Walk-ins
// -----------------------------------------------------------------------------

// DeleteWalkIn removes the walk-in and its "Day Pass" entry.
func (r *Reconciler) DeleteWalkIn(ctx context.Context, id string) (*Reversal, error) {
	if _, err := generic.RequireOperator(ctx); err != nil {
		return nil, err
	}
	wi, err := r.Repo.WalkIn(ctx, id)
	if err != nil {
		return nil, err
	}
	linked, err := r.Repo.LinkedEntries(ctx, id)
	if err != nil {
		return nil, err
	}

	rm := newRemoval(gym.LinkedWalkIn, id)
	for _, e := range linked {
		rm.add(e)
	}
	if len(linked) == 0 {
		if err := rm.fallback(ctx, r.base, "walk-in "+id, entryCriteria{
			Source: gym.SourceWalkIn,
			Amount: wi.Amount,
			Date:   wi.Date,
			Party:  wi.Name,
		}); err != nil {
			return nil, err
		}
	}

	b := generic.NewBatch().Delete(gym.CollWalkIns, id)
	rm.queue(b)
	if err := r.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to delete walk-in: %w", err)
	}
	r.logReversal(rm.rev)
	return rm.rev, nil
}

// -----------------------------------------------------------------------------
// Sales
// -----------------------------------------------------------------------------

// DeleteSale removes the sale and its "Product Sale" entry and puts the
// sold units back on the shelf. Each line is restored to the item with the
// recorded product id, else to the item with the same product name. When
// neither exists the item is recreated with the sold quantity as stock and
// the sale price.
// POST: stock += quantity per line; net ledger change == -sale.TotalAmount
func (r *Reconciler) DeleteSale(ctx context.Context, id string) (*Reversal, error) {
	if _, err := generic.RequireOperator(ctx); err != nil {
		return nil, err
	}
	sale, err := r.Repo.Sale(ctx, id)
	if err != nil {
		return nil, err
	}
	linked, err := r.Repo.LinkedEntries(ctx, id)
	if err != nil {
		return nil, err
	}

	rm := newRemoval(gym.LinkedSale, id)
	for _, e := range linked {
		rm.add(e)
	}
	if len(linked) == 0 {
		if err := rm.fallback(ctx, r.base, "sale "+id, entryCriteria{
			Source: gym.SourceSale,
			Amount: sale.TotalAmount,
			Date:   sale.Date,
			Party:  sale.CustomerName,
		}); err != nil {
			return nil, err
		}
	}

	b := generic.NewBatch().Delete(gym.CollSales, id)
	restores, err := r.restoreStock(ctx, b, sale)
	if err != nil {
		return nil, err
	}
	rm.rev.RestoredStock = restores
	rm.queue(b)

	if err := r.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to delete sale: %w", err)
	}
	r.logReversal(rm.rev)
	return rm.rev, nil
}

// restoreStock queues stock increments, or item re-creations, for every line.
func (r *Reconciler) restoreStock(ctx context.Context, b *generic.Batch, sale gym.Sale) ([]StockRestore, error) {
	var restores []StockRestore
	recreated := make(map[string]*gym.InventoryItem) // by lower-cased name
	var recreatedOrder []string

	for _, line := range sale.Items {
		if line.Quantity <= 0 {
			continue
		}
		item, err := r.findItem(ctx, line)
		if err != nil {
			return nil, err
		}
		if item != nil {
			b.Increment(gym.CollInventory, item.ID, gym.FieldStock, int64(line.Quantity))
			restores = append(restores, StockRestore{ItemID: item.ID, ProductName: item.ProductName, Quantity: line.Quantity})
			continue
		}

		key := strings.ToLower(strings.TrimSpace(line.ProductName))
		if it, ok := recreated[key]; ok {
			it.Stock += line.Quantity
			continue
		}
		now := r.now()
		recreated[key] = &gym.InventoryItem{
			ID:          r.Store.NewID(),
			ProductName: line.ProductName,
			Price:       line.Price,
			Stock:       line.Quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		recreatedOrder = append(recreatedOrder, key)
	}

	for _, key := range recreatedOrder {
		it := recreated[key]
		log.Printf("[Ledger] recreating deleted product %q with stock %d", it.ProductName, it.Stock)
		b.Set(gym.CollInventory, it.ID, it)
		restores = append(restores, StockRestore{ItemID: it.ID, ProductName: it.ProductName, Quantity: it.Stock, Recreated: true})
	}
	return restores, nil
}

// findItem resolves a sale line to a live inventory item, or nil.
func (r *Reconciler) findItem(ctx context.Context, line gym.SaleItem) (*gym.InventoryItem, error) {
	if line.ProductID != "" {
		item, err := r.Repo.Item(ctx, line.ProductID)
		if err == nil {
			return &item, nil
		}
		if !generic.IsNotFound(err) {
			return nil, err
		}
	}
	return r.Repo.ItemByName(ctx, line.ProductName)
}

func (r *Reconciler) logReversal(rev *Reversal) {
	log.Printf("[Ledger] deleted %s %s: removed %d entries (%s), fallback=%t, ambiguous=%d, stock lines=%d",
		rev.Kind, rev.PrimaryID, len(rev.RemovedEntries), rev.RemovedAmount, rev.UsedFallback,
		len(rev.Ambiguous), len(rev.RestoredStock))
}
