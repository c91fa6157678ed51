/*
Package gym holds the gym domain model: members, walk-ins, inventory,
sales, ledger entries and renewal payments.

PURPOSE:
  Plain records with JSON tags matching the stored documents, plus the
  derived fields and validation rules that belong to a single record.
  Cross-record consistency (a member and its ledger entry) is NOT handled
  here; that lives in the ledger package.

DERIVED STATE:
  Member.Status is never stored. It is recomputed from ExpiryDate and the
  clock on every read, so a member can silently move from Active to
  Expired between two reads without any write.

SEE ALSO:
  - plans.go:      Membership tiers and the expiry calculator
  - repository.go: Typed reads over generic.Store
  - ledger/:       Linked writes, reconciliation and cleanup
*/
package gym

import (
	"fmt"

	"github.com/warp/gym-ledger/generic"
)

// =============================================================================
// COLLECTIONS
// =============================================================================

const (
	CollMembers     generic.Collection = "members"
	CollWalkIns     generic.Collection = "walkIns"
	CollInventory   generic.Collection = "inventory"
	CollSales       generic.Collection = "sales"
	CollCashflow    generic.Collection = "cashflow"
	CollRenewals    generic.Collection = "renewalPayments"
	CollCleanupRuns generic.Collection = "cleanupRuns"
)

// =============================================================================
// ENUMS
// =============================================================================

// PaymentMethod is how a customer paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentGCash        PaymentMethod = "GCash"
	PaymentCard         PaymentMethod = "Card"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
)

// PaymentMethods lists every accepted method.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentGCash, PaymentCard, PaymentBankTransfer}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

func (t EntryType) Valid() bool { return t == Income || t == Expense }

// LinkedType is the kind of primary record a ledger entry points at.
type LinkedType string

const (
	LinkedMember  LinkedType = "member"
	LinkedWalkIn  LinkedType = "walkin"
	LinkedSale    LinkedType = "sale"
	LinkedRenewal LinkedType = "renewal" // linkedId is the member id
)

// LinkedTypes lists every kind the cleanup scanner knows.
var LinkedTypes = []LinkedType{LinkedMember, LinkedWalkIn, LinkedSale, LinkedRenewal}

// ParseLinkedType validates a kind name from the outside world.
func ParseLinkedType(s string) (LinkedType, error) {
	for _, k := range LinkedTypes {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, generic.ErrUnknownKind)
}

// Source labels for auto-generated entries. Membership entries use the
// plan label (see plans.go).
const (
	SourceWalkIn = "Day Pass"
	SourceSale   = "Product Sale"
)

// ExpenseCategory is the source of an expense entry.
type ExpenseCategory string

const (
	ExpenseRent        ExpenseCategory = "Rent"
	ExpenseUtilities   ExpenseCategory = "Utilities"
	ExpenseEquipment   ExpenseCategory = "Equipment"
	ExpenseSalaries    ExpenseCategory = "Salaries"
	ExpenseMaintenance ExpenseCategory = "Maintenance"
	ExpenseSupplies    ExpenseCategory = "Supplies"
	ExpenseMarketing   ExpenseCategory = "Marketing"
	ExpenseOther       ExpenseCategory = "Other"
)

var ExpenseCategories = []ExpenseCategory{
	ExpenseRent, ExpenseUtilities, ExpenseEquipment, ExpenseSalaries,
	ExpenseMaintenance, ExpenseSupplies, ExpenseMarketing, ExpenseOther,
}

func (c ExpenseCategory) Valid() bool {
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Defaults for blank names.
const (
	DefaultWalkInName   = "Guest"
	DefaultCustomerName = "Walk-in Customer"
)
