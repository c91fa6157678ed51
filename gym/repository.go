package gym

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/gym-ledger/generic"
)

// =============================================================================
// REPOSITORY - Typed reads and single-record writes
// =============================================================================

// Repository wraps a generic.Store with typed accessors. Multi-record
// writes go through the ledger package, never through here.
type Repository struct {
	Store generic.Store
}

func NewRepository(store generic.Store) *Repository {
	return &Repository{Store: store}
}

// -----------------------------------------------------------------------------
// Members
// -----------------------------------------------------------------------------

func (r *Repository) Member(ctx context.Context, id string) (Member, error) {
	return generic.Load[Member](ctx, r.Store, CollMembers, id)
}

// MemberFilter narrows ListMembers. Status is evaluated against now.
type MemberFilter struct {
	Status *MemberStatus
	Plan   Plan
	Search string
}

// Members lists members ordered by name. Status filtering happens after the
// read because status is not stored.
func (r *Repository) Members(ctx context.Context, f MemberFilter, now time.Time) ([]Member, error) {
	q := generic.All().Order("name", false)
	if f.Plan != "" {
		q = q.Where("membershipType", generic.OpEq, string(f.Plan))
	}
	members, err := generic.Find[Member](ctx, r.Store, CollMembers, q)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := members[:0]
	for _, m := range members {
		if f.Status != nil && m.Status(now) != *f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Contact), search) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Repository) RenewalsForMember(ctx context.Context, memberID string) ([]RenewalPayment, error) {
	return generic.Find[RenewalPayment](ctx, r.Store, CollRenewals,
		generic.Where(FieldMemberID, generic.OpEq, memberID).Order("paymentDate", true))
}

// Renewals lists renewal payments in a window, newest first.
func (r *Repository) Renewals(ctx context.Context, p generic.Period) ([]RenewalPayment, error) {
	return generic.Find[RenewalPayment](ctx, r.Store, CollRenewals,
		generic.All().In(p.Filters("paymentDate")...).Order("paymentDate", true))
}

// -----------------------------------------------------------------------------
// Walk-ins, sales
// -----------------------------------------------------------------------------

func (r *Repository) WalkIn(ctx context.Context, id string) (WalkIn, error) {
	return generic.Load[WalkIn](ctx, r.Store, CollWalkIns, id)
}

func (r *Repository) WalkIns(ctx context.Context, p generic.Period) ([]WalkIn, error) {
	return generic.Find[WalkIn](ctx, r.Store, CollWalkIns,
		generic.All().In(p.Filters(FieldDate)...).Order(FieldDate, true))
}

func (r *Repository) Sale(ctx context.Context, id string) (Sale, error) {
	return generic.Load[Sale](ctx, r.Store, CollSales, id)
}

func (r *Repository) Sales(ctx context.Context, p generic.Period) ([]Sale, error) {
	return generic.Find[Sale](ctx, r.Store, CollSales,
		generic.All().In(p.Filters(FieldDate)...).Order(FieldDate, true))
}

// -----------------------------------------------------------------------------
// Inventory
// -----------------------------------------------------------------------------

func (r *Repository) Item(ctx context.Context, id string) (InventoryItem, error) {
	return generic.Load[InventoryItem](ctx, r.Store, CollInventory, id)
}

func (r *Repository) Items(ctx context.Context) ([]InventoryItem, error) {
	return generic.Find[InventoryItem](ctx, r.Store, CollInventory, generic.All().Order("productName", false))
}

// ItemByName returns the first item whose productName matches exactly.
func (r *Repository) ItemByName(ctx context.Context, name string) (*InventoryItem, error) {
	items, err := generic.Find[InventoryItem](ctx, r.Store, CollInventory,
		generic.Where("productName", generic.OpEq, name).Take(1))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// SaveItem validates and writes a standalone inventory item. Items have no
// linked ledger rows, so a single-document batch is enough.
func (r *Repository) SaveItem(ctx context.Context, item *InventoryItem, now time.Time) error {
	item.ProductName = strings.TrimSpace(item.ProductName)
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = r.Store.NewID()
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return r.Store.Commit(ctx, generic.NewBatch().Set(CollInventory, item.ID, item))
}

// DeleteItem removes an item. Past sales keep their copied name and price;
// reversing them later recreates the item if needed.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	ok, err := generic.Exists(ctx, r.Store, CollInventory, id)
	if err != nil {
		return err
	}
	if !ok {
		return &generic.NotFoundError{Collection: CollInventory, ID: id}
	}
	return r.Store.Commit(ctx, generic.NewBatch().Delete(CollInventory, id))
}

// -----------------------------------------------------------------------------
// Ledger entries
// -----------------------------------------------------------------------------

func (r *Repository) Entry(ctx context.Context, id string) (CashflowEntry, error) {
	return generic.Load[CashflowEntry](ctx, r.Store, CollCashflow, id)
}

// EntryFilter narrows Entries.
type EntryFilter struct {
	Period generic.Period
	Type   EntryType
	Source string
}

func (r *Repository) Entries(ctx context.Context, f EntryFilter) ([]CashflowEntry, error) {
	q := generic.All().In(f.Period.Filters(FieldDate)...).Order(FieldDate, true)
	if f.Type != "" {
		q = q.Where(FieldType, generic.OpEq, string(f.Type))
	}
	if f.Source != "" {
		q = q.Where(FieldSource, generic.OpEq, f.Source)
	}
	return generic.Find[CashflowEntry](ctx, r.Store, CollCashflow, q)
}

// LinkedEntries returns every entry whose back-reference is id.
func (r *Repository) LinkedEntries(ctx context.Context, id string) ([]CashflowEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("linked id: %w", generic.ErrValidation)
	}
	return generic.Find[CashflowEntry](ctx, r.Store, CollCashflow,
		generic.Where(FieldLinkedID, generic.OpEq, id))
}

// -----------------------------------------------------------------------------
// Cleanup runs
// -----------------------------------------------------------------------------

func (r *Repository) CleanupRuns(ctx context.Context, limit int) ([]CleanupRun, error) {
	return generic.Find[CleanupRun](ctx, r.Store, CollCleanupRuns,
		generic.All().Order("startedAt", true).Take(limit))
}
