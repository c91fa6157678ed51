package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// WRITER - Primary record + linked ledger entry, atomically
// =============================================================================

// Writer creates primary records together with their ledger entries.
//
// INVARIANT: every successful call leaves exactly one entry with
// linkedId == primary id and amount == event amount. The primary id is
// generated before the batch is built so it can be embedded in the entry.
type Writer struct {
	base
}

func NewWriter(store generic.Store, clock generic.Clock) *Writer {
	return &Writer{base: newBase(store, clock)}
}

// -----------------------------------------------------------------------------
// Members
// -----------------------------------------------------------------------------

// EnrollMemberInput carries input for EnrollMember.
type EnrollMemberInput struct {
	Name          string
	Contact       string
	Email         string
	Plan          gym.Plan
	StartDate     generic.TimePoint  // zero = today
	ExpiryDate    *generic.TimePoint // custom expiry, Gladiator Pass only
	AmountPaid    *decimal.Decimal   // nil = plan price
	PaymentMethod gym.PaymentMethod
}

// Enrollment is the result of EnrollMember.
type Enrollment struct {
	Member gym.Member
	Entry  gym.CashflowEntry
}

// EnrollMember creates a member and the linked enrollment entry.
// PRE: operator in ctx
// POST: member + one entry {source: plan label, amount: amountPaid, linkedId: member id}
func (w *Writer) EnrollMember(ctx context.Context, in EnrollMemberInput) (*Enrollment, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}

	start := in.StartDate
	if start.IsZero() {
		start = w.today()
	}
	amount := in.Plan.DefaultPrice()
	if in.AmountPaid != nil {
		amount = *in.AmountPaid
	}

	now := w.now()
	m := gym.Member{
		ID:             w.Store.NewID(),
		Name:           strings.TrimSpace(in.Name),
		Contact:        strings.TrimSpace(in.Contact),
		Email:          strings.TrimSpace(in.Email),
		MembershipType: in.Plan,
		StartDate:      start,
		AmountPaid:     amount,
		PaymentMethod:  in.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := applyExpiry(&m, in.ExpiryDate); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	entry := w.linkedEntry(op, w.Store.NewID(), gym.LinkedMember, m.ID,
		m.MembershipType.Label(), m.AmountPaid, m.StartDate, m.Name)

	b := generic.NewBatch().
		Set(gym.CollMembers, m.ID, m).
		Set(gym.CollCashflow, entry.ID, entry)
	if err := w.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to enroll member: %w", err)
	}
	return &Enrollment{Member: m, Entry: entry}, nil
}

// applyExpiry sets ExpiryDate from the plan, or from a custom date when
// the plan allows it.
func applyExpiry(m *gym.Member, custom *generic.TimePoint) error {
	if custom != nil && !custom.IsZero() {
		if !m.MembershipType.AllowsCustomExpiry() {
			v := generic.NewValidator("member")
			v.Add("expiryDate", "can only be set for "+gym.PlanGladiatorPass.Label())
			return v.Err()
		}
		m.ExpiryDate = *custom
		return nil
	}
	m.ExpiryDate = m.MembershipType.ExpiryFrom(m.StartDate)
	return nil
}

// keepRenewedExpiry stops an edit from moving expiry behind a paid
// renewal. A recomputed expiry is raised to the latest renewal; an
// explicit one is rejected.
func (w *Writer) keepRenewedExpiry(ctx context.Context, m *gym.Member, explicit bool) error {
	renewals, err := w.Repo.RenewalsForMember(ctx, m.ID)
	if err != nil {
		return err
	}
	var latest generic.TimePoint
	for _, p := range renewals {
		if p.NewExpiryDate.After(latest) {
			latest = p.NewExpiryDate
		}
	}
	if latest.IsZero() || m.ExpiryDate.AfterOrEqual(latest) {
		return nil
	}
	if explicit {
		v := generic.NewValidator("member")
		v.Add("expiryDate", "cannot be before the last renewal ("+latest.String()+")")
		return v.Err()
	}
	m.ExpiryDate = latest
	return nil
}

// UpdateMemberInput carries optional changes; nil fields are kept.
type UpdateMemberInput struct {
	Name          *string
	Contact       *string
	Email         *string
	Plan          *gym.Plan
	StartDate     *generic.TimePoint
	ExpiryDate    *generic.TimePoint
	AmountPaid    *decimal.Decimal
	PaymentMethod *gym.PaymentMethod
}

// UpdateMember edits a member and rewrites its enrollment entry in the same
// batch. An unlinked legacy entry found by fallback is relinked on the way.
func (w *Writer) UpdateMember(ctx context.Context, id string, in UpdateMemberInput) (*gym.Member, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	before, err := w.Repo.Member(ctx, id)
	if err != nil {
		return nil, err
	}

	m := before
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Contact != nil {
		m.Contact = strings.TrimSpace(*in.Contact)
	}
	if in.Email != nil {
		m.Email = strings.TrimSpace(*in.Email)
	}
	if in.Plan != nil {
		m.MembershipType = *in.Plan
	}
	if in.StartDate != nil {
		m.StartDate = *in.StartDate
	}
	if in.AmountPaid != nil {
		m.AmountPaid = *in.AmountPaid
	}
	if in.PaymentMethod != nil {
		m.PaymentMethod = *in.PaymentMethod
	}
	switch {
	case in.ExpiryDate != nil:
		if err := applyExpiry(&m, in.ExpiryDate); err != nil {
			return nil, err
		}
	case m.MembershipType != before.MembershipType || !m.StartDate.Equal(before.StartDate):
		m.ExpiryDate = m.MembershipType.ExpiryFrom(m.StartDate)
	}
	if !m.ExpiryDate.Equal(before.ExpiryDate) {
		if err := w.keepRenewedExpiry(ctx, &m, in.ExpiryDate != nil && !in.ExpiryDate.IsZero()); err != nil {
			return nil, err
		}
	}
	m.UpdatedAt = w.now()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	b := generic.NewBatch().Set(gym.CollMembers, m.ID, m)
	fields := map[string]any{
		"source":    m.MembershipType.Label(),
		"amount":    m.AmountPaid,
		"date":      m.StartDate,
		"notes":     gym.EntryNotes(gym.LinkedMember, m.Name),
		"updatedAt": m.UpdatedAt,
	}
	if err := w.rewriteLinked(ctx, b, op, m.ID, gym.LinkedMember, fields, entryCriteria{
		Source: before.MembershipType.Label(),
		Amount: before.AmountPaid,
		Date:   before.StartDate,
		Party:  before.Name,
	}); err != nil {
		return nil, err
	}

	if err := w.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return &m, nil
}

// rewriteLinked queues updates for the entries linked to id with the given
// kind. Without linked entries, a unique fallback match is relinked and
// updated instead.
func (w *Writer) rewriteLinked(ctx context.Context, b *generic.Batch, op generic.Operator,
	id string, kind gym.LinkedType, fields map[string]any, old entryCriteria) error {
	linked, err := w.Repo.LinkedEntries(ctx, id)
	if err != nil {
		return err
	}
	found := false
	for _, e := range linked {
		if e.LinkedType != kind {
			continue
		}
		b.Update(gym.CollCashflow, e.ID, fields)
		found = true
	}
	if found {
		return nil
	}

	best, _, err := w.findFallback(ctx, fmt.Sprintf("%s %s", kind, id), old, nil)
	if err != nil || best == nil {
		return err
	}
	relink := map[string]any{
		gym.FieldLinkedID:   id,
		gym.FieldLinkedType: kind,
		"autoGenerated":     true,
	}
	for k, v := range fields {
		relink[k] = v
	}
	b.Update(gym.CollCashflow, best.ID, relink)
	return nil
}

// -----------------------------------------------------------------------------
// Walk-ins
// -----------------------------------------------------------------------------

// WalkInInput carries input for RecordWalkIn.
type WalkInInput struct {
	Name          string
	Date          generic.TimePoint // zero = today
	Amount        *decimal.Decimal  // nil = Day Pass price
	PaymentMethod gym.PaymentMethod
}

// Visit is a walk-in with its entry.
type Visit struct {
	WalkIn gym.WalkIn
	Entry  gym.CashflowEntry
}

// RecordWalkIn creates a walk-in and its linked "Day Pass" entry.
func (w *Writer) RecordWalkIn(ctx context.Context, in WalkInInput) (*Visit, error) {
	visits, err := w.RecordWalkIns(ctx, []WalkInInput{in})
	if err != nil {
		return nil, err
	}
	return &visits[0], nil
}

// RecordWalkIns creates several walk-ins in one batch. Every input is
// validated before anything is written.
func (w *Writer) RecordWalkIns(ctx context.Context, inputs []WalkInInput) ([]Visit, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		v := generic.NewValidator("walk-ins")
		v.Add("walkIns", "at least one walk-in is required")
		return nil, v.Err()
	}

	now := w.now()
	visits := make([]Visit, 0, len(inputs))
	b := generic.NewBatch()
	for i, in := range inputs {
		wi := gym.WalkIn{
			ID:            w.Store.NewID(),
			Name:          in.Name,
			Date:          in.Date,
			Amount:        gym.PlanDayPass.DefaultPrice(),
			PaymentMethod: in.PaymentMethod,
			CreatedAt:     now,
		}
		if wi.Date.IsZero() {
			wi.Date = w.today()
		}
		if in.Amount != nil {
			wi.Amount = *in.Amount
		}
		wi.Normalize()
		if err := wi.Validate(); err != nil {
			if len(inputs) > 1 {
				var verr *generic.ValidationError
				if errors.As(err, &verr) {
					verr.Entity = fmt.Sprintf("walk-in #%d", i+1)
					return nil, verr
				}
			}
			return nil, err
		}

		entry := w.linkedEntry(op, w.Store.NewID(), gym.LinkedWalkIn, wi.ID,
			gym.SourceWalkIn, wi.Amount, wi.Date, wi.Name)
		b.Set(gym.CollWalkIns, wi.ID, wi).Set(gym.CollCashflow, entry.ID, entry)
		visits = append(visits, Visit{WalkIn: wi, Entry: entry})
	}

	if err := w.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to record walk-ins: %w", err)
	}
	return visits, nil
}

// UpdateWalkInInput carries optional changes; nil fields are kept.
type UpdateWalkInInput struct {
	Name          *string
	Date          *generic.TimePoint
	Amount        *decimal.Decimal
	PaymentMethod *gym.PaymentMethod
}

// UpdateWalkIn edits a walk-in and its linked entry in one batch.
func (w *Writer) UpdateWalkIn(ctx context.Context, id string, in UpdateWalkInInput) (*gym.WalkIn, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	before, err := w.Repo.WalkIn(ctx, id)
	if err != nil {
		return nil, err
	}

	wi := before
	if in.Name != nil {
		wi.Name = *in.Name
	}
	if in.Date != nil {
		wi.Date = *in.Date
	}
	if in.Amount != nil {
		wi.Amount = *in.Amount
	}
	if in.PaymentMethod != nil {
		wi.PaymentMethod = *in.PaymentMethod
	}
	wi.Normalize()
	if err := wi.Validate(); err != nil {
		return nil, err
	}

	b := generic.NewBatch().Set(gym.CollWalkIns, wi.ID, wi)
	fields := map[string]any{
		"amount":    wi.Amount,
		"date":      wi.Date,
		"notes":     gym.EntryNotes(gym.LinkedWalkIn, wi.Name),
		"updatedAt": w.now(),
	}
	if err := w.rewriteLinked(ctx, b, op, wi.ID, gym.LinkedWalkIn, fields, entryCriteria{
		Source: gym.SourceWalkIn,
		Amount: before.Amount,
		Date:   before.Date,
		Party:  before.Name,
	}); err != nil {
		return nil, err
	}

	if err := w.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update walk-in: %w", err)
	}
	return &wi, nil
}

// -----------------------------------------------------------------------------
// Sales
// -----------------------------------------------------------------------------

// SaleLine is one requested product and quantity.
type SaleLine struct {
	ProductID string
	Quantity  int
}

// SaleInput carries input for RecordSale.
type SaleInput struct {
	Items         []SaleLine
	PaymentMethod gym.PaymentMethod
	CustomerName  string
	Date          generic.TimePoint // zero = today
}

// Checkout is a recorded sale with its entry.
type Checkout struct {
	Sale  gym.Sale
	Entry gym.CashflowEntry
}

// validateSaleLines checks each requested line before lines are merged.
func validateSaleLines(lines []SaleLine) error {
	v := generic.NewValidator("sale")
	v.Check(len(lines) > 0, "items", "at least one item is required")
	for i, line := range lines {
		field := fmt.Sprintf("items[%d]", i)
		v.Require(field+".productId", line.ProductID)
		v.Check(line.Quantity > 0, field+".quantity", "must be greater than zero")
	}
	return v.Err()
}

// RecordSale creates the sale, decrements stock for every line and writes
// the linked "Product Sale" entry, all in one batch. Prices are taken from
// the inventory at sale time.
// PRE: every product exists with enough stock
// POST: stock -= quantity per line; one entry with amount == sale total
func (w *Writer) RecordSale(ctx context.Context, in SaleInput) (*Checkout, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateSaleLines(in.Items); err != nil {
		return nil, err
	}

	// Merge repeated products so the stock check sees the full quantity.
	qty := make(map[string]int)
	var order []string
	for _, line := range in.Items {
		if _, seen := qty[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		qty[line.ProductID] += line.Quantity
	}

	sale := gym.Sale{
		ID:            w.Store.NewID(),
		PaymentMethod: in.PaymentMethod,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		Date:          in.Date,
		CreatedAt:     w.now(),
	}
	if sale.CustomerName == "" {
		sale.CustomerName = gym.DefaultCustomerName
	}
	if sale.Date.IsZero() {
		sale.Date = w.today()
	}

	for _, pid := range order {
		item, err := w.Repo.Item(ctx, pid)
		if err != nil {
			return nil, err
		}
		n := qty[pid]
		if n > 0 && item.Stock < n {
			return nil, &generic.InsufficientStockError{
				ProductID: item.ID, ProductName: item.ProductName,
				Available: item.Stock, Requested: n,
			}
		}
		sale.Items = append(sale.Items, gym.SaleItem{
			ProductID:   item.ID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    n,
			Subtotal:    item.Price.Mul(decimal.NewFromInt(int64(n))),
		})
	}
	sale.TotalAmount = sale.Total()
	if err := sale.Validate(); err != nil {
		return nil, err
	}

	entry := w.linkedEntry(op, w.Store.NewID(), gym.LinkedSale, sale.ID,
		gym.SourceSale, sale.TotalAmount, sale.Date, sale.CustomerName)

	b := generic.NewBatch().Set(gym.CollSales, sale.ID, sale)
	for _, it := range sale.Items {
		b.Increment(gym.CollInventory, it.ProductID, gym.FieldStock, -int64(it.Quantity))
	}
	b.Set(gym.CollCashflow, entry.ID, entry)

	if err := w.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}
	return &Checkout{Sale: sale, Entry: entry}, nil
}
