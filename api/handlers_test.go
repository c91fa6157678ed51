/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Operator identity (dev header, bearer tokens)
- Linked writes and deletes through the router
- Error mapping (400 with fields, 404, 409)
- CSV/XLSX export
*/
package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/generic/store"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/ledger"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var jan1 = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

const testOperator = "front@gym.test"

type apiFixture struct {
	t      *testing.T
	h      *Handler
	router http.Handler
	store  *store.Memory
}

func newAPI(t *testing.T) *apiFixture {
	return newAPIWithAuth(t, NewOperatorAuth(""))
}

func newAPIWithAuth(t *testing.T, auth *OperatorAuth) *apiFixture {
	s := store.NewMemory()
	h := NewHandler(s, generic.FixedClock{T: jan1})
	router := NewRouter(h, RouterOptions{
		Auth:      auth,
		StaticDir: filepath.Join(t.TempDir(), "missing"),
	})
	return &apiFixture{t: t, h: h, router: router, store: s}
}

// do sends a request as the test operator.
func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.doWith(method, path, body, map[string]string{OperatorHeader: testOperator})
}

func (f *apiFixture) doWith(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *apiFixture) cashflow() CashflowResponse {
	f.t.Helper()
	rec := f.do(http.MethodGet, "/api/cashflow", nil)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[CashflowResponse](f.t, rec)
}

func (f *apiFixture) createItem(name string, price int64, stock int) gym.InventoryItem {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/inventory", map[string]any{"productName": name, "price": price, "stock": stock})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[gym.InventoryItem](f.t, rec)
}

func (f *apiFixture) item(id string) gym.InventoryItem {
	f.t.Helper()
	it, err := f.h.Repo.Item(f.t.Context(), id)
	require.NoError(f.t, err)
	return it
}

// =============================================================================
// OPERATOR IDENTITY
// =============================================================================

func TestAPI_RequiresOperator(t *testing.T) {
	f := newAPI(t)

	// WHEN: No X-Operator header in dev mode
	rec := f.doWith(http.MethodGet, "/api/members", nil, nil)

	// THEN: 401, but health stays public
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusOK, f.doWith(http.MethodGet, "/health", nil, nil).Code)
}

func TestAPI_BearerToken(t *testing.T) {
	auth := NewOperatorAuth("0123456789abcdef0123456789abcdef")
	f := newAPIWithAuth(t, auth)

	token, err := auth.IssueToken(generic.Operator{ID: "staff-7", Email: "desk@gym.test"}, time.Hour)
	require.NoError(t, err)

	// WHEN: Enrolling with a valid token
	rec := f.doWith(http.MethodPost, "/api/walkins", map[string]any{"paymentMethod": "Cash"},
		map[string]string{"Authorization": "Bearer " + token})

	// THEN: The entry records the token's operator
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "desk@gym.test", decode[VisitResponse](t, rec).Entry.CreatedBy)

	// AND: The dev header is not enough once a secret is configured
	rec = f.do(http.MethodGet, "/api/walkins", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// AND: A token signed with another secret is rejected
	other, err := NewOperatorAuth("ffffffffffffffffffffffffffffffff").IssueToken(generic.Operator{ID: "x"}, time.Hour)
	require.NoError(t, err)
	rec = f.doWith(http.MethodGet, "/api/walkins", nil, map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// MEMBERS
// =============================================================================

func TestAPI_EnrollAndDeleteMember(t *testing.T) {
	f := newAPI(t)

	// WHEN: Enrolling a Warrior Pass member with no explicit amount
	rec := f.do(http.MethodPost, "/api/members", map[string]any{
		"name":           "Juan Dela Cruz",
		"contact":        "09171234567",
		"membershipType": "WarriorPass",
		"startDate":      "2024-01-01",
		"paymentMethod":  "Cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[EnrollmentResponse](t, rec)

	// THEN: Expiry, status and the linked entry follow the plan
	assert.Equal(t, "2024-02-01", res.Member.ExpiryDate.String())
	assert.Equal(t, gym.StatusActive, res.Member.Status)
	assert.Equal(t, 31, res.Member.DaysRemaining)
	assert.Equal(t, res.Member.ID, res.Entry.LinkedID)
	assert.Equal(t, "Warrior Pass", res.Entry.Source)
	assert.True(t, res.Entry.Amount.Equal(gym.PlanWarriorPass.DefaultPrice()))
	assert.Equal(t, testOperator, res.Entry.CreatedBy)

	cf := f.cashflow()
	assert.Equal(t, "799", cf.Totals.Net.String())

	// WHEN: Deleting the member
	rec = f.do(http.MethodDelete, "/api/members/"+res.Member.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rev := decode[ledger.Reversal](t, rec)

	// THEN: Exactly its entry is gone
	assert.Equal(t, []string{res.Entry.ID}, rev.RemovedEntries)
	assert.True(t, f.cashflow().Totals.Net.IsZero())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/members/"+res.Member.ID, nil).Code)
}

func TestAPI_ListMembersByStatus(t *testing.T) {
	f := newAPI(t)
	for _, m := range []map[string]any{
		{"name": "Active Ana", "membershipType": "AlphaElitePass", "startDate": "2023-12-15", "paymentMethod": "Cash"},
		{"name": "Expired Ed", "membershipType": "DayPass", "startDate": "2023-12-01", "paymentMethod": "GCash"},
	} {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/members", m).Code)
	}

	rec := f.do(http.MethodGet, "/api/members?status=Expired", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[[]MemberDTO](t, rec)
	require.Len(t, members, 1)
	assert.Equal(t, "Expired Ed", members[0].Name)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/members?status=Frozen", nil).Code)
}

func TestAPI_ValidationErrorListsFields(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/members", map[string]any{
		"name":           "",
		"membershipType": "WarriorPass",
		"paymentMethod":  "Barter",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	fields := make([]string, len(body.Fields))
	for i, fe := range body.Fields {
		fields[i] = fe.Field
	}
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "paymentMethod")
	assert.Empty(t, f.cashflow().Entries)
}

func TestAPI_RenewMember(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/members", map[string]any{
		"name": "Ria", "membershipType": "WarriorPass", "startDate": "2024-01-01", "paymentMethod": "Cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decode[EnrollmentResponse](t, rec).Member

	// WHEN: Renewing on the same plan
	rec = f.do(http.MethodPost, "/api/members/"+m.ID+"/renew", map[string]any{"paymentMethod": "GCash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[ledger.RenewalResult](t, rec)

	// THEN: Expiry extends from the old expiry, one more entry is linked
	assert.Equal(t, "2024-03-01", res.Member.ExpiryDate.String())
	assert.Equal(t, gym.LinkedRenewal, res.Entry.LinkedType)
	assert.Equal(t, "1598", f.cashflow().Totals.Income.String())

	rec = f.do(http.MethodGet, "/api/members/"+m.ID+"/renewals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]gym.RenewalPayment](t, rec), 1)

	// AND: Bulk renewal reports unknown members without failing the call
	rec = f.do(http.MethodPost, "/api/members/renew-bulk", map[string]any{
		"memberIds": []string{m.ID, "nobody"}, "paymentMethod": "Cash",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bulk := decode[ledger.BulkRenewalResult](t, rec)
	assert.Len(t, bulk.Renewed, 1)
	require.Len(t, bulk.Failed, 1)
	assert.Equal(t, "nobody", bulk.Failed[0].MemberID)
}

// =============================================================================
// WALK-INS AND CASHFLOW
// =============================================================================

func TestAPI_LinkedEntryCannotBeEdited(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/walkins", map[string]any{"name": "Guest", "paymentMethod": "Cash"})
	require.Equal(t, http.StatusCreated, rec.Code)
	visit := decode[VisitResponse](t, rec)
	assert.Equal(t, "100", visit.Entry.Amount.String())
	assert.Equal(t, "2024-01-01", visit.WalkIn.Date.String())

	// WHEN: Editing the auto-generated entry directly
	rec = f.do(http.MethodPut, "/api/cashflow/"+visit.Entry.ID, map[string]any{"amount": 1})

	// THEN: 409, and editing the walk-in rewrites the entry instead
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPut, "/api/walkins/"+visit.WalkIn.ID, map[string]any{"amount": 150})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "150", f.cashflow().Totals.Net.String())
}

func TestAPI_BulkWalkInsAreAllOrNothing(t *testing.T) {
	f := newAPI(t)

	rec := f.do(http.MethodPost, "/api/walkins/bulk", map[string]any{"walkIns": []map[string]any{
		{"name": "A", "paymentMethod": "Cash"},
		{"name": "B", "paymentMethod": "Seashells"},
	}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.store.Count(gym.CollWalkIns))
	assert.Equal(t, 0, f.store.Count(gym.CollCashflow))
}

func TestAPI_ManualEntriesAndFilters(t *testing.T) {
	f := newAPI(t)
	rec := f.do(http.MethodPost, "/api/cashflow", map[string]any{
		"type": "expense", "source": "Rent", "amount": "15000.50", "date": "2024-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[gym.CashflowEntry](t, rec)
	assert.True(t, e.Manual)

	rec = f.do(http.MethodGet, "/api/cashflow?from=2024-01-01&to=2024-01-31&type=expense", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cf := decode[CashflowResponse](t, rec)
	assert.Equal(t, 1, cf.Totals.Count)
	assert.Equal(t, "-15000.5", cf.Totals.Net.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/cashflow?from=2024-02-01&to=2024-01-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/cashflow?from=yesterday", nil).Code)

	rec = f.do(http.MethodDelete, "/api/cashflow/"+e.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/cashflow/"+e.ID, nil).Code)
}

// =============================================================================
// SALES
// =============================================================================

func TestAPI_SaleAndReversal(t *testing.T) {
	f := newAPI(t)
	bar := f.createItem("Protein Bar", 50, 10)

	// WHEN: Selling 2 bars
	rec := f.do(http.MethodPost, "/api/sales", map[string]any{
		"items":         []map[string]any{{"productId": bar.ID, "quantity": 2}},
		"paymentMethod": "Cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[CheckoutResponse](t, rec)

	// THEN: Total 100, stock 8, one entry
	assert.Equal(t, "100", c.Sale.TotalAmount.String())
	assert.Equal(t, gym.DefaultCustomerName, c.Sale.CustomerName)
	assert.Equal(t, 8, f.item(bar.ID).Stock)
	assert.Equal(t, "100", f.cashflow().Totals.Net.String())

	// WHEN: Deleting the sale
	rec = f.do(http.MethodDelete, "/api/sales/"+c.Sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Stock and ledger are back where they started
	assert.Equal(t, 10, f.item(bar.ID).Stock)
	assert.True(t, f.cashflow().Totals.Net.IsZero())
}

func TestAPI_SaleInsufficientStock(t *testing.T) {
	f := newAPI(t)
	bar := f.createItem("Protein Bar", 50, 1)

	rec := f.do(http.MethodPost, "/api/sales", map[string]any{
		"items":         []map[string]any{{"productId": bar.ID, "quantity": 3}},
		"paymentMethod": "Cash",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, f.item(bar.ID).Stock)
	assert.Equal(t, 0, f.store.Count(gym.CollSales))
}

func TestAPI_UnknownRecords(t *testing.T) {
	f := newAPI(t)

	for _, path := range []string{"/api/members/nope", "/api/sales/nope"} {
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, nil).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/walkins/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/cleanup/refund", nil).Code)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestAPI_ExportCSV(t *testing.T) {
	f := newAPI(t)
	require.NoError(t, f.h.loadFrontDeskDayScenario(generic.WithOperator(t.Context(), generic.Operator{ID: "seed"})))

	rec := f.do(http.MethodGet, "/api/export/members.csv", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "members-2024-01-01.csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Juan Dela Cruz", rows[1][1])
	assert.Equal(t, "Warrior Pass", rows[1][4])
	assert.Equal(t, "799.00", rows[1][8])
}

func TestAPI_ExportXLSX(t *testing.T) {
	f := newAPI(t)
	require.NoError(t, f.h.loadFrontDeskDayScenario(generic.WithOperator(t.Context(), generic.Operator{ID: "seed"})))

	rec := f.do(http.MethodGet, "/api/export/cashflow.xlsx?from=2024-01-01&to=2024-01-01", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("cashflow")
	require.NoError(t, err)
	// Header + enrollment, walk-in, sale and rent
	require.Len(t, rows, 5)
	assert.Equal(t, "Source", rows[0][3])
}

func TestAPI_ExportRejectsUnknown(t *testing.T) {
	f := newAPI(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/export/payroll.csv", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/export/members.pdf", nil).Code)
}
