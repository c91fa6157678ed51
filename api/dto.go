/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Stored records in
  package gym already carry JSON tags, so most responses return them
  directly; DTOs exist where the wire shape differs:
  - Members gain derived status and daysRemaining
  - Writes return the primary record together with its ledger entry
  - Requests use pointers so "absent" and "zero" can be told apart

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DATES AND MONEY:
  Dates are "YYYY-MM-DD" strings decoded by generic.TimePoint. Amounts are
  decimal.Decimal and accept both 799 and "799.00".

VALIDATION:
  Validation is done by the ledger and gym packages, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/:     Input types these requests are converted into
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/ledger"
)

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO is a member with its derived state.
type MemberDTO struct {
	gym.Member
	Status        gym.MemberStatus `json:"status"`
	DaysRemaining int              `json:"daysRemaining"`
	PlanLabel     string           `json:"planLabel"`
}

func toMemberDTO(m gym.Member, now time.Time) MemberDTO {
	return MemberDTO{
		Member:        m,
		Status:        m.Status(now),
		DaysRemaining: m.DaysRemaining(now),
		PlanLabel:     m.MembershipType.Label(),
	}
}

// CreateMemberRequest is the request to enroll a member.
type CreateMemberRequest struct {
	Name          string             `json:"name"`
	Contact       string             `json:"contact"`
	Email         string             `json:"email"`
	Plan          gym.Plan           `json:"membershipType"`
	StartDate     generic.TimePoint  `json:"startDate"`
	ExpiryDate    *generic.TimePoint `json:"expiryDate"`
	AmountPaid    *decimal.Decimal   `json:"amountPaid"`
	PaymentMethod gym.PaymentMethod  `json:"paymentMethod"`
}

func (req CreateMemberRequest) input() ledger.EnrollMemberInput {
	return ledger.EnrollMemberInput{
		Name:          req.Name,
		Contact:       req.Contact,
		Email:         req.Email,
		Plan:          req.Plan,
		StartDate:     req.StartDate,
		ExpiryDate:    req.ExpiryDate,
		AmountPaid:    req.AmountPaid,
		PaymentMethod: req.PaymentMethod,
	}
}

// UpdateMemberRequest carries optional member changes.
type UpdateMemberRequest struct {
	Name          *string            `json:"name"`
	Contact       *string            `json:"contact"`
	Email         *string            `json:"email"`
	Plan          *gym.Plan          `json:"membershipType"`
	StartDate     *generic.TimePoint `json:"startDate"`
	ExpiryDate    *generic.TimePoint `json:"expiryDate"`
	AmountPaid    *decimal.Decimal   `json:"amountPaid"`
	PaymentMethod *gym.PaymentMethod `json:"paymentMethod"`
}

func (req UpdateMemberRequest) input() ledger.UpdateMemberInput {
	return ledger.UpdateMemberInput(req)
}

// EnrollmentResponse is a new member with its enrollment entry.
type EnrollmentResponse struct {
	Member MemberDTO         `json:"member"`
	Entry  gym.CashflowEntry `json:"entry"`
}

// RenewRequest renews one member. Plan and amount default to the
// member's current plan and its price.
type RenewRequest struct {
	Plan          *gym.Plan         `json:"membershipType"`
	Amount        *decimal.Decimal  `json:"amount"`
	PaymentMethod gym.PaymentMethod `json:"paymentMethod"`
	PaymentDate   generic.TimePoint `json:"paymentDate"`
	Notes         string            `json:"notes"`
}

// BulkRenewRequest renews several members on their own plans.
type BulkRenewRequest struct {
	MemberIDs     []string          `json:"memberIds"`
	PaymentMethod gym.PaymentMethod `json:"paymentMethod"`
	PaymentDate   generic.TimePoint `json:"paymentDate"`
	Notes         string            `json:"notes"`
}

// =============================================================================
// WALK-INS
// =============================================================================

// WalkInRequest is the request to record a walk-in.
type WalkInRequest struct {
	Name          string            `json:"name"`
	Date          generic.TimePoint `json:"date"`
	Amount        *decimal.Decimal  `json:"amount"`
	PaymentMethod gym.PaymentMethod `json:"paymentMethod"`
}

func (req WalkInRequest) input() ledger.WalkInInput {
	return ledger.WalkInInput{
		Name:          req.Name,
		Date:          req.Date,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
	}
}

// BulkWalkInRequest records several walk-ins at once.
type BulkWalkInRequest struct {
	WalkIns []WalkInRequest `json:"walkIns"`
}

// UpdateWalkInRequest carries optional walk-in changes.
type UpdateWalkInRequest struct {
	Name          *string            `json:"name"`
	Date          *generic.TimePoint `json:"date"`
	Amount        *decimal.Decimal   `json:"amount"`
	PaymentMethod *gym.PaymentMethod `json:"paymentMethod"`
}

// VisitResponse is a walk-in with its entry.
type VisitResponse struct {
	WalkIn gym.WalkIn        `json:"walkIn"`
	Entry  gym.CashflowEntry `json:"entry"`
}

// =============================================================================
// INVENTORY AND SALES
// =============================================================================

// InventoryItemRequest creates or replaces an item.
type InventoryItemRequest struct {
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// SaleLineRequest is one product and quantity.
type SaleLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// SaleRequest is the request to record a sale.
type SaleRequest struct {
	Items         []SaleLineRequest `json:"items"`
	PaymentMethod gym.PaymentMethod `json:"paymentMethod"`
	CustomerName  string            `json:"customerName"`
	Date          generic.TimePoint `json:"date"`
}

func (req SaleRequest) input() ledger.SaleInput {
	lines := make([]ledger.SaleLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = ledger.SaleLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return ledger.SaleInput{
		Items:         lines,
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		Date:          req.Date,
	}
}

// CheckoutResponse is a sale with its entry.
type CheckoutResponse struct {
	Sale  gym.Sale          `json:"sale"`
	Entry gym.CashflowEntry `json:"entry"`
}

// =============================================================================
// CASHFLOW
// =============================================================================

// EntryRequest is the request to record a manual entry.
type EntryRequest struct {
	Type   gym.EntryType     `json:"type"`
	Source string            `json:"source"`
	Amount decimal.Decimal   `json:"amount"`
	Date   generic.TimePoint `json:"date"`
	Notes  string            `json:"notes"`
}

// UpdateEntryRequest carries optional entry changes.
type UpdateEntryRequest struct {
	Type   *gym.EntryType     `json:"type"`
	Source *string            `json:"source"`
	Amount *decimal.Decimal   `json:"amount"`
	Date   *generic.TimePoint `json:"date"`
	Notes  *string            `json:"notes"`
}

// CashflowResponse lists entries with their totals.
type CashflowResponse struct {
	Entries []gym.CashflowEntry `json:"entries"`
	Totals  ledger.Totals       `json:"totals"`
}

// =============================================================================
// CLEANUP
// =============================================================================

// CleanupResponse wraps the reports of one operator-triggered run.
type CleanupResponse struct {
	Reports []ledger.CleanupReport `json:"reports"`
	Summary []string               `json:"summary"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Details string               `json:"details,omitempty"`
	Fields  []generic.FieldError `json:"fields,omitempty"`
}
