/*
handlers.go - HTTP API handlers for the gym admin console

PURPOSE:
  Exposes the ledger via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every multi-document write to the ledger
  package.

ENDPOINTS:
  Members:
    GET    /api/members                 List members (?status=&plan=&q=)
    POST   /api/members                 Enroll member + enrollment entry
    GET    /api/members/{id}            Member with derived status
    PUT    /api/members/{id}            Edit member, rewrite linked entry
    DELETE /api/members/{id}            Delete member and its entries
    POST   /api/members/{id}/renew      Renew one membership
    GET    /api/members/{id}/renewals   Renewal history
    POST   /api/members/renew-bulk      Renew several memberships

  Walk-ins:
    GET    /api/walkins                 List (?from=&to=)
    POST   /api/walkins                 Record walk-in + Day Pass entry
    POST   /api/walkins/bulk            Record several in one batch
    PUT    /api/walkins/{id}            Edit walk-in and its entry
    DELETE /api/walkins/{id}            Delete walk-in and its entry

  Inventory and sales:
    GET    /api/inventory               List items
    POST   /api/inventory               Create item
    PUT    /api/inventory/{id}          Edit item
    DELETE /api/inventory/{id}          Delete item
    GET    /api/sales                   List (?from=&to=)
    POST   /api/sales                   Record sale, decrement stock
    GET    /api/sales/{id}              Sale details
    DELETE /api/sales/{id}              Delete sale, restore stock

  Cashflow:
    GET    /api/cashflow                Entries + totals (?from=&to=&type=&source=)
    POST   /api/cashflow                Manual entry
    PUT    /api/cashflow/{id}           Edit manual entry
    DELETE /api/cashflow/{id}           Delete entry

  Cleanup:
    POST   /api/cleanup                 Scan every kind
    POST   /api/cleanup/{kind}          Scan one kind
    GET    /api/cleanup/runs            Past runs

REQUEST FLOW:
  1. Parse HTTP request into a *Request DTO
  2. Convert to a ledger input
  3. Call the ledger (operator identity comes from the context)
  4. Serialize response
  5. Map errors via writeLedgerError

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (with per-field messages), invalid input
  - 401: No operator identity
  - 404: Record not found
  - 409: Insufficient stock, editing a linked entry
  - 500: Store failures (details are logged, not returned)

SEE ALSO:
  - dto.go:       Request/response data structures
  - operator.go:  Operator identity middleware
  - export.go:    CSV/XLSX downloads
  - scenarios.go: Demo scenario loaders
  - server.go:    Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  generic.Store
	Repo   *gym.Repository
	Ledger *ledger.Ledger
	Clock  generic.Clock

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the given store.
func NewHandler(store generic.Store, clock generic.Clock) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Handler{
		Store:  store,
		Repo:   gym.NewRepository(store),
		Ledger: ledger.New(store, clock),
		Clock:  clock,
	}
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns members, optionally filtered by status, plan or a
// search term matched against name and contact.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := gym.MemberFilter{Plan: gym.Plan(q.Get("plan")), Search: q.Get("q")}
	if s := q.Get("status"); s != "" {
		status := gym.MemberStatus(s)
		if status != gym.StatusActive && status != gym.StatusExpired {
			writeError(w, http.StatusBadRequest, "Invalid status (use Active or Expired)", nil)
			return
		}
		filter.Status = &status
	}

	now := h.Clock.Now()
	members, err := h.Repo.Members(r.Context(), filter, now)
	if err != nil {
		writeLedgerError(w, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m, now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Repo.Member(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m, h.Clock.Now()))
}

// CreateMember enrolls a member and writes the enrollment entry.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Ledger.Writer.EnrollMember(r.Context(), req.input())
	if err != nil {
		writeLedgerError(w, "Failed to enroll member", err)
		return
	}
	writeJSON(w, http.StatusCreated, EnrollmentResponse{
		Member: toMemberDTO(res.Member, h.Clock.Now()),
		Entry:  res.Entry,
	})
}

// UpdateMember edits a member and its enrollment entry.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.Ledger.Writer.UpdateMember(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeLedgerError(w, "Failed to update member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m, h.Clock.Now()))
}

// DeleteMember removes a member, its renewals and every linked entry.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Ledger.Reconciler.DeleteMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to delete member", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// RenewMember extends one membership.
func (h *Handler) RenewMember(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Ledger.Renewals.Renew(r.Context(), ledger.RenewalInput{
		MemberID:      chi.URLParam(r, "id"),
		Plan:          req.Plan,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   req.PaymentDate,
		Notes:         req.Notes,
	})
	if err != nil {
		writeLedgerError(w, "Failed to renew member", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RenewBulk renews several members. Partial failures are reported in the
// body with status 200.
func (h *Handler) RenewBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRenewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Ledger.Renewals.RenewBulk(r.Context(), ledger.BulkRenewalInput{
		MemberIDs:     req.MemberIDs,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   req.PaymentDate,
		Notes:         req.Notes,
	})
	if err != nil {
		writeLedgerError(w, "Failed to renew members", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListRenewals returns the renewal history of a member.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Repo.Member(r.Context(), id); err != nil {
		writeLedgerError(w, "Failed to get member", err)
		return
	}
	payments, err := h.Repo.RenewalsForMember(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Failed to list renewals", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// =============================================================================
// WALK-IN HANDLERS
// =============================================================================

// ListWalkIns returns walk-ins in the requested window, newest first.
func (h *Handler) ListWalkIns(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	walkIns, err := h.Repo.WalkIns(r.Context(), period)
	if err != nil {
		writeLedgerError(w, "Failed to list walk-ins", err)
		return
	}
	writeJSON(w, http.StatusOK, walkIns)
}

// CreateWalkIn records one walk-in.
func (h *Handler) CreateWalkIn(w http.ResponseWriter, r *http.Request) {
	var req WalkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.Ledger.Writer.RecordWalkIn(r.Context(), req.input())
	if err != nil {
		writeLedgerError(w, "Failed to record walk-in", err)
		return
	}
	writeJSON(w, http.StatusCreated, VisitResponse{WalkIn: v.WalkIn, Entry: v.Entry})
}

// CreateWalkIns records several walk-ins in one batch: all or none.
func (h *Handler) CreateWalkIns(w http.ResponseWriter, r *http.Request) {
	var req BulkWalkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inputs := make([]ledger.WalkInInput, len(req.WalkIns))
	for i, wi := range req.WalkIns {
		inputs[i] = wi.input()
	}
	visits, err := h.Ledger.Writer.RecordWalkIns(r.Context(), inputs)
	if err != nil {
		writeLedgerError(w, "Failed to record walk-ins", err)
		return
	}

	out := make([]VisitResponse, len(visits))
	for i, v := range visits {
		out[i] = VisitResponse{WalkIn: v.WalkIn, Entry: v.Entry}
	}
	writeJSON(w, http.StatusCreated, out)
}

// UpdateWalkIn edits a walk-in and its entry.
func (h *Handler) UpdateWalkIn(w http.ResponseWriter, r *http.Request) {
	var req UpdateWalkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wi, err := h.Ledger.Writer.UpdateWalkIn(r.Context(), chi.URLParam(r, "id"), ledger.UpdateWalkInInput(req))
	if err != nil {
		writeLedgerError(w, "Failed to update walk-in", err)
		return
	}
	writeJSON(w, http.StatusOK, wi)
}

// DeleteWalkIn removes a walk-in and its entry.
func (h *Handler) DeleteWalkIn(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Ledger.Reconciler.DeleteWalkIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to delete walk-in", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListInventory returns every item by name.
func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.Items(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateItem adds a product.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item := gym.InventoryItem{ProductName: req.ProductName, Price: req.Price, Stock: req.Stock}
	if err := h.Repo.SaveItem(r.Context(), &item, h.Clock.Now().UTC()); err != nil {
		writeLedgerError(w, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem replaces name, price and stock of a product.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req InventoryItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Repo.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to get item", err)
		return
	}
	item.ProductName = req.ProductName
	item.Price = req.Price
	item.Stock = req.Stock
	if err := h.Repo.SaveItem(r.Context(), &item, h.Clock.Now().UTC()); err != nil {
		writeLedgerError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem removes a product. Past sales are unaffected.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns sales in the requested window, newest first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	sales, err := h.Repo.Sales(r.Context(), period)
	if err != nil {
		writeLedgerError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// GetSale returns a single sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Repo.Sale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// CreateSale records a sale and decrements stock.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Ledger.Writer.RecordSale(r.Context(), req.input())
	if err != nil {
		writeLedgerError(w, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResponse{Sale: c.Sale, Entry: c.Entry})
}

// DeleteSale removes a sale, restores its stock and removes its entry.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Ledger.Reconciler.DeleteSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// =============================================================================
// CASHFLOW HANDLERS
// =============================================================================

// ListCashflow returns entries and totals for the requested window.
func (h *Handler) ListCashflow(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	filter := gym.EntryFilter{
		Period: period,
		Type:   gym.EntryType(r.URL.Query().Get("type")),
		Source: r.URL.Query().Get("source"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid type (use income or expense)", nil)
		return
	}

	entries, totals, err := h.Ledger.Cashflow.Summarize(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, "Failed to list cashflow", err)
		return
	}
	writeJSON(w, http.StatusOK, CashflowResponse{Entries: entries, Totals: totals})
}

// CreateEntry records a manual entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.Ledger.Cashflow.RecordEntry(r.Context(), ledger.EntryInput(req))
	if err != nil {
		writeLedgerError(w, "Failed to record entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry edits a manual entry.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.Ledger.Cashflow.UpdateEntry(r.Context(), chi.URLParam(r, "id"), ledger.UpdateEntryInput(req))
	if err != nil {
		writeLedgerError(w, "Failed to update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry removes an entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Cashflow.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CLEANUP HANDLERS
// =============================================================================

// RunCleanup scans every kind.
func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Ledger.Scanner.ScanAll(r.Context())
	if err != nil {
		writeLedgerError(w, "Cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCleanupResponse(reports))
}

// RunCleanupKind scans one kind.
func (h *Handler) RunCleanupKind(w http.ResponseWriter, r *http.Request) {
	kind, err := gym.ParseLinkedType(chi.URLParam(r, "kind"))
	if err != nil {
		writeLedgerError(w, "Unknown kind", err)
		return
	}
	report, err := h.Ledger.Scanner.Scan(r.Context(), kind)
	if err != nil {
		writeLedgerError(w, "Cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toCleanupResponse([]ledger.CleanupReport{*report}))
}

// ListCleanupRuns returns recent runs, newest first (?limit=, default 20).
func (h *Handler) ListCleanupRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	runs, err := h.Repo.CleanupRuns(r.Context(), limit)
	if err != nil {
		writeLedgerError(w, "Failed to list cleanup runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func toCleanupResponse(reports []ledger.CleanupReport) CleanupResponse {
	summary := make([]string, len(reports))
	for i, rep := range reports {
		summary[i] = rep.String()
	}
	return CleanupResponse{Reports: reports, Summary: summary}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps the generic error taxonomy onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.Is(err, generic.ErrNoOperator):
		writeError(w, http.StatusUnauthorized, "Operator identity required", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: verr.Error(), Fields: verr.Fields})
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		log.Printf("[Server] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message+", please retry", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parsePeriod reads the optional ?from= and ?to= days.
func parsePeriod(w http.ResponseWriter, r *http.Request) (generic.Period, bool) {
	var p generic.Period
	for _, bound := range []struct {
		name string
		dst  *generic.TimePoint
	}{{"from", &p.Start}, {"to", &p.End}} {
		s := strings.TrimSpace(r.URL.Query().Get(bound.name))
		if s == "" {
			continue
		}
		tp, err := generic.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+bound.name+" date", err)
			return generic.Period{}, false
		}
		*bound.dst = tp
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return generic.Period{}, false
	}
	return p, true
}
