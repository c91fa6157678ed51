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
// RENEWALS - Extend a membership, record the payment, book the income
// =============================================================================
// One renewal is a three-document batch:
//   members/{id}          expiryDate moved forward
//   renewalPayments/{id}  audit record
//   cashflow/{id}         income, linkedType "renewal", linkedId = member id
//
// The new expiry counts from the later of the current expiry and today, so
// renewing early never loses paid days and renewing late never backdates.

// Renewals extends memberships.
type Renewals struct {
	base
}

func NewRenewals(store generic.Store, clock generic.Clock) *Renewals {
	return &Renewals{base: newBase(store, clock)}
}

// RenewalInput carries input for Renew. Nil fields default to the member's
// current plan and that plan's price; a zero PaymentDate means today.
type RenewalInput struct {
	MemberID      string
	Plan          *gym.Plan
	Amount        *decimal.Decimal
	PaymentMethod gym.PaymentMethod
	PaymentDate   generic.TimePoint
	Notes         string
}

// RenewalResult is the outcome of one renewal.
type RenewalResult struct {
	Member  gym.Member         `json:"member"`
	Payment gym.RenewalPayment `json:"payment"`
	Entry   gym.CashflowEntry  `json:"entry"`
}

// Renew extends one membership.
// PRE: member exists; operator in ctx
// POST: member.ExpiryDate == plan.ExpiryFrom(max(previous expiry, today))
// POST: exactly one new entry linked to the member with amount == payment
func (r *Renewals) Renew(ctx context.Context, in RenewalInput) (*RenewalResult, error) {
	op, err := generic.RequireOperator(ctx)
	if err != nil {
		return nil, err
	}
	m, err := r.Repo.Member(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}

	plan := m.MembershipType
	if in.Plan != nil {
		plan = *in.Plan
	}
	amount := plan.DefaultPrice()
	if in.Amount != nil {
		amount = *in.Amount
	}
	paid := in.PaymentDate
	if paid.IsZero() {
		paid = r.today()
	}
	notes := strings.TrimSpace(in.Notes)

	v := generic.NewValidator("renewal")
	v.Check(plan.Valid(), "membershipType", "unknown membership type")
	v.Check(amount.IsPositive(), "amount", "must be greater than zero")
	v.Check(in.PaymentMethod.Valid(), "paymentMethod", "unknown payment method")
	v.Check(len(notes) <= gym.MaxNotesLength, "notes", "cannot exceed 500 characters")
	if err := v.Err(); err != nil {
		return nil, err
	}

	previous := m.ExpiryDate
	from := generic.MaxTimePoint(previous, r.today())
	now := r.now()

	m.MembershipType = plan
	m.ExpiryDate = plan.ExpiryFrom(from)
	m.UpdatedAt = now

	entry := r.linkedEntry(op, r.Store.NewID(), gym.LinkedRenewal, m.ID,
		plan.Label(), amount, paid, m.Name)
	payment := gym.RenewalPayment{
		ID:                 r.Store.NewID(),
		MemberID:           m.ID,
		MemberName:         m.Name,
		MembershipType:     plan,
		Amount:             amount,
		PaymentMethod:      in.PaymentMethod,
		PaymentDate:        paid,
		RenewalPeriod:      plan.RenewalPeriod(),
		PreviousExpiryDate: previous,
		NewExpiryDate:      m.ExpiryDate,
		Notes:              notes,
		CashflowEntryID:    entry.ID,
		CreatedAt:          now,
	}

	b := generic.NewBatch().
		Update(gym.CollMembers, m.ID, map[string]any{
			"membershipType": m.MembershipType,
			"expiryDate":     m.ExpiryDate,
			"updatedAt":      m.UpdatedAt,
		}).
		Set(gym.CollRenewals, payment.ID, payment).
		Set(gym.CollCashflow, entry.ID, entry)
	if err := r.Store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to renew member %s: %w", m.ID, err)
	}
	return &RenewalResult{Member: m, Payment: payment, Entry: entry}, nil
}

// BulkRenewalInput renews several members on their own plans and prices.
type BulkRenewalInput struct {
	MemberIDs     []string
	PaymentMethod gym.PaymentMethod
	PaymentDate   generic.TimePoint
	Notes         string
}

// BulkFailure names a member that could not be renewed.
type BulkFailure struct {
	MemberID string `json:"memberId"`
	Error    string `json:"error"`
}

// BulkRenewalResult lists successes and failures.
type BulkRenewalResult struct {
	Renewed []RenewalResult `json:"renewed"`
	Failed  []BulkFailure   `json:"failed"`
}

// RenewBulk runs one atomic renewal per member. A failure is recorded and
// the loop moves on; earlier renewals stay committed.
func (r *Renewals) RenewBulk(ctx context.Context, in BulkRenewalInput) (*BulkRenewalResult, error) {
	if _, err := generic.RequireOperator(ctx); err != nil {
		return nil, err
	}
	if len(in.MemberIDs) == 0 {
		v := generic.NewValidator("bulk renewal")
		v.Add("memberIds", "at least one member is required")
		return nil, v.Err()
	}

	out := &BulkRenewalResult{Renewed: []RenewalResult{}, Failed: []BulkFailure{}}
	seen := make(map[string]bool, len(in.MemberIDs))
	for _, id := range in.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := r.Renew(ctx, RenewalInput{
			MemberID:      id,
			PaymentMethod: in.PaymentMethod,
			PaymentDate:   in.PaymentDate,
			Notes:         in.Notes,
		})
		if err != nil {
			log.Printf("[Ledger] bulk renewal: member %s failed: %v", id, err)
			out.Failed = append(out.Failed, BulkFailure{MemberID: id, Error: err.Error()})
			continue
		}
		out.Renewed = append(out.Renewed, *res)
	}
	log.Printf("[Ledger] bulk renewal: %d renewed, %d failed", len(out.Renewed), len(out.Failed))
	return out, nil
}
