package gym

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 100
	MaxNotesLength = 500
)

// =============================================================================
// MEMBER
// =============================================================================

// MemberStatus is derived, never stored.
type MemberStatus string

const (
	StatusActive  MemberStatus = "Active"
	StatusExpired MemberStatus = "Expired"
)

// Member is an enrolled gym member.
type Member struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Contact        string            `json:"contact"`
	Email          string            `json:"email,omitempty"`
	MembershipType Plan              `json:"membershipType"`
	StartDate      generic.TimePoint `json:"startDate"`
	ExpiryDate     generic.TimePoint `json:"expiryDate"`
	AmountPaid     decimal.Decimal   `json:"amountPaid"`
	PaymentMethod  PaymentMethod     `json:"paymentMethod"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Status is Active iff the expiry date is strictly after now. The expiry
// day starts at midnight in now's location.
// INVARIANT: depends only on ExpiryDate and now, never on stored state
func (m *Member) Status(now time.Time) MemberStatus {
	expiry := time.Date(m.ExpiryDate.Year(), m.ExpiryDate.Month(), m.ExpiryDate.Day(), 0, 0, 0, 0, now.Location())
	if expiry.After(now) {
		return StatusActive
	}
	return StatusExpired
}

// DaysRemaining returns whole days until expiry (negative once expired).
func (m *Member) DaysRemaining(now time.Time) int {
	today := generic.DayOf(now)
	return int(m.ExpiryDate.Midnight().Sub(today.Midnight()).Hours() / 24)
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns *generic.ValidationError listing every failed field
// INVARIANT: ExpiryDate is strictly after StartDate
func (m *Member) Validate() error {
	v := generic.NewValidator("member")
	v.Require("name", m.Name)
	v.Check(len(m.Name) <= MaxNameLength, "name", "cannot exceed 100 characters")
	v.Check(m.Email == "" || strings.Contains(m.Email, "@"), "email", "must be a valid email")
	v.Check(m.MembershipType.Valid(), "membershipType", "unknown membership type")
	v.Check(m.PaymentMethod.Valid(), "paymentMethod", "unknown payment method")
	v.Check(m.AmountPaid.IsPositive(), "amountPaid", "must be greater than zero")
	v.Check(!m.StartDate.IsZero(), "startDate", "is required")
	v.Check(!m.ExpiryDate.IsZero(), "expiryDate", "is required")
	if !m.StartDate.IsZero() && !m.ExpiryDate.IsZero() {
		v.Check(m.ExpiryDate.After(m.StartDate), "expiryDate", "must be after the start date")
	}
	return v.Err()
}

// =============================================================================
// WALK-IN
// =============================================================================

// WalkIn is a day-pass visitor without a membership.
type WalkIn struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Date          generic.TimePoint `json:"date"`
	Amount        decimal.Decimal   `json:"amount"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Normalize applies defaults.
func (w *WalkIn) Normalize() {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		w.Name = DefaultWalkInName
	}
}

func (w *WalkIn) Validate() error {
	v := generic.NewValidator("walk-in")
	v.Check(len(w.Name) <= MaxNameLength, "name", "cannot exceed 100 characters")
	v.Check(!w.Date.IsZero(), "date", "is required")
	v.Check(w.Amount.IsPositive(), "amount", "must be greater than zero")
	v.Check(w.PaymentMethod.Valid(), "paymentMethod", "unknown payment method")
	return v.Err()
}

// =============================================================================
// INVENTORY
// =============================================================================

// InventoryItem is a retail product on the shelf.
type InventoryItem struct {
	ID          string          `json:"id"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// FieldStock is the counter decremented by sales.
const FieldStock = "stock"

func (i *InventoryItem) Validate() error {
	v := generic.NewValidator("inventory item")
	v.Require("productName", i.ProductName)
	v.Check(len(i.ProductName) <= MaxNameLength, "productName", "cannot exceed 100 characters")
	v.Check(!i.Price.IsNegative(), "price", "cannot be negative")
	v.Check(i.Stock >= 0, "stock", "cannot be negative")
	return v.Err()
}

// =============================================================================
// SALE
// =============================================================================

// SaleItem is one line of a sale. Name and price are copied at sale time so
// the sale can be reversed after the product is renamed or deleted.
type SaleItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Sale is a completed retail transaction.
type Sale struct {
	ID            string            `json:"id"`
	Items         []SaleItem        `json:"items"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	CustomerName  string            `json:"customerName"`
	Date          generic.TimePoint `json:"date"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Total sums the line subtotals.
func (s *Sale) Total() decimal.Decimal {
	subtotals := make([]decimal.Decimal, len(s.Items))
	for i, it := range s.Items {
		subtotals[i] = it.Subtotal
	}
	return generic.SumMoney(subtotals...)
}

func (s *Sale) Validate() error {
	v := generic.NewValidator("sale")
	v.Check(len(s.Items) > 0, "items", "at least one item is required")
	for _, it := range s.Items {
		v.Check(it.Quantity > 0, "items", "quantity must be greater than zero for "+it.ProductName)
		v.Check(!it.Price.IsNegative(), "items", "price cannot be negative for "+it.ProductName)
	}
	v.Check(s.PaymentMethod.Valid(), "paymentMethod", "unknown payment method")
	v.Check(!s.Date.IsZero(), "date", "is required")
	v.Check(s.TotalAmount.IsPositive(), "totalAmount", "must be greater than zero")
	return v.Err()
}

// =============================================================================
// CASHFLOW ENTRY - The ledger row
// =============================================================================

// CashflowEntry is one income or expense event. Auto-generated entries carry
// a back-reference (LinkedID, LinkedType) to the record that produced them.
// Manual entries are typed in by staff and never belong to a primary record,
// so heuristic matching ignores them. Legacy rows have neither flag.
type CashflowEntry struct {
	ID            string            `json:"id"`
	Type          EntryType         `json:"type"`
	Source        string            `json:"source"`
	Amount        decimal.Decimal   `json:"amount"`
	Date          generic.TimePoint `json:"date"`
	Notes         string            `json:"notes"`
	LinkedID      string            `json:"linkedId,omitempty"`
	LinkedType    LinkedType        `json:"linkedType,omitempty"`
	AutoGenerated bool              `json:"autoGenerated,omitempty"`
	Manual        bool              `json:"manual,omitempty"`
	CreatedBy     string            `json:"createdBy,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Field names used in ledger queries.
const (
	FieldLinkedID   = "linkedId"
	FieldLinkedType = "linkedType"
	FieldType       = "type"
	FieldSource     = "source"
	FieldDate       = "date"
)

// IsLinked reports whether the entry carries a back-reference.
func (e *CashflowEntry) IsLinked() bool { return e.LinkedID != "" }

// SignedAmount is positive for income, negative for expense.
func (e *CashflowEntry) SignedAmount() decimal.Decimal {
	if e.Type == Expense {
		return e.Amount.Neg()
	}
	return e.Amount
}

func (e *CashflowEntry) Validate() error {
	v := generic.NewValidator("cashflow entry")
	v.Check(e.Type.Valid(), "type", "must be income or expense")
	v.Require("source", e.Source)
	if e.Type == Expense {
		v.Check(ExpenseCategory(e.Source).Valid(), "source", "unknown expense category")
	}
	v.Check(e.Amount.IsPositive(), "amount", "must be greater than zero")
	v.Check(!e.Date.IsZero(), "date", "is required")
	v.Check(len(e.Notes) <= MaxNotesLength, "notes", "cannot exceed 500 characters")
	return v.Err()
}

// EntryNotes builds the notes of an auto-generated entry. The party name
// is what the fallback matcher looks for later.
func EntryNotes(kind LinkedType, party string) string {
	var prefix string
	switch kind {
	case LinkedMember:
		prefix = "Membership"
	case LinkedWalkIn:
		prefix = "Walk-in"
	case LinkedSale:
		prefix = "Sale"
	case LinkedRenewal:
		prefix = "Renewal"
	default:
		prefix = string(kind)
	}
	if party == "" {
		return prefix
	}
	return prefix + " - " + party
}

// NotesMention reports whether notes names party (case-insensitive).
// Entries with empty notes match any party.
func NotesMention(notes, party string) bool {
	if strings.TrimSpace(notes) == "" || strings.TrimSpace(party) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(notes), strings.ToLower(strings.TrimSpace(party)))
}

// =============================================================================
// RENEWAL PAYMENT - Audit record of a membership extension
// =============================================================================

type RenewalPayment struct {
	ID                 string            `json:"id"`
	MemberID           string            `json:"memberId"`
	MemberName         string            `json:"memberName"`
	MembershipType     Plan              `json:"membershipType"`
	Amount             decimal.Decimal   `json:"amount"`
	PaymentMethod      PaymentMethod     `json:"paymentMethod"`
	PaymentDate        generic.TimePoint `json:"paymentDate"`
	RenewalPeriod      string            `json:"renewalPeriod"`
	PreviousExpiryDate generic.TimePoint `json:"previousExpiryDate"`
	NewExpiryDate      generic.TimePoint `json:"newExpiryDate"`
	Notes              string            `json:"notes"`
	CashflowEntryID    string            `json:"cashflowEntryId,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// FieldMemberID is the renewal → member reference.
const FieldMemberID = "memberId"

// =============================================================================
// CLEANUP RUN - History of operator-triggered scans
// =============================================================================

type CleanupRun struct {
	ID             string     `json:"id"`
	Kind           LinkedType `json:"kind"`
	Scanned        int        `json:"scanned"`
	DeletedOrphans int        `json:"deletedOrphans"`
	Relinked       int        `json:"relinked"`
	Ambiguous      int        `json:"ambiguous"`
	Skipped        int        `json:"skipped"`
	Operator       string     `json:"operator"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    time.Time  `json:"completedAt"`
}
