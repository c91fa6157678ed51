/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario writes through the ledger
	the same way the front desk does, except legacy-drift, which plants
	rows the way the old console left them.

AVAILABLE SCENARIOS:

	front-desk-day:  One member, one walk-in, one product sale, one expense
	expiring-soon:   Members on every tier around today, Active and Expired
	legacy-drift:    Unlinked and orphaned entries for the cleanup scanner

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create inventory items
 3. Enroll members, record walk-ins and sales through the ledger
 4. Optionally plant legacy rows directly in the store

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "legacy-drift"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error helpers
  - ledger/:     Writes used by the loaders
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "front-desk-day",
		Name:        "Front Desk Day",
		Description: "Warrior Pass enrollment, a walk-in, a protein bar sale and the rent",
	},
	{
		ID:          "expiring-soon",
		Name:        "Expiring Soon",
		Description: "Members on every tier, some already expired, some about to",
	},
	{
		ID:          "legacy-drift",
		Name:        "Legacy Drift",
		Description: "Unlinked and orphaned ledger rows left by the old console, ready for cleanup",
	},
}

func (h *Handler) loaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"front-desk-day": h.loadFrontDeskDayScenario,
		"expiring-soon":  h.loadExpiringSoonScenario,
		"legacy-drift":   h.loadLegacyDriftScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	load, ok := h.loaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(r.Context()); err != nil {
		writeLedgerError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	h.currentScenario = req.ScenarioID
	log.Printf("[Server] loaded scenario %s", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(generic.Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return nil
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadFrontDeskDayScenario(ctx context.Context) error {
	day := generic.MustParseDate("2024-01-01")

	if _, err := h.Ledger.Writer.EnrollMember(ctx, ledger.EnrollMemberInput{
		Name:          "Juan Dela Cruz",
		Contact:       "09171234567",
		Plan:          gym.PlanWarriorPass,
		StartDate:     day,
		PaymentMethod: gym.PaymentCash,
	}); err != nil {
		return err
	}

	if _, err := h.Ledger.Writer.RecordWalkIn(ctx, ledger.WalkInInput{
		Name:          "Guest",
		Date:          day,
		PaymentMethod: gym.PaymentCash,
	}); err != nil {
		return err
	}

	bar := gym.InventoryItem{ProductName: "Protein Bar", Price: decimal.NewFromInt(50), Stock: 10}
	if err := h.Repo.SaveItem(ctx, &bar, h.Clock.Now().UTC()); err != nil {
		return err
	}
	shaker := gym.InventoryItem{ProductName: "Shaker Bottle", Price: decimal.NewFromInt(250), Stock: 5}
	if err := h.Repo.SaveItem(ctx, &shaker, h.Clock.Now().UTC()); err != nil {
		return err
	}
	if _, err := h.Ledger.Writer.RecordSale(ctx, ledger.SaleInput{
		Items:         []ledger.SaleLine{{ProductID: bar.ID, Quantity: 2}},
		PaymentMethod: gym.PaymentGCash,
		Date:          day,
	}); err != nil {
		return err
	}

	_, err := h.Ledger.Cashflow.RecordEntry(ctx, ledger.EntryInput{
		Type:   gym.Expense,
		Source: string(gym.ExpenseRent),
		Amount: decimal.NewFromInt(15000),
		Date:   day,
		Notes:  "January rent",
	})
	return err
}

func (h *Handler) loadExpiringSoonScenario(ctx context.Context) error {
	today := generic.Today(h.Clock)

	members := []struct {
		name  string
		plan  gym.Plan
		start generic.TimePoint
	}{
		{"Ana Reyes", gym.PlanWarriorPass, today.AddMonths(-1).AddDays(3)},  // expires in 3 days
		{"Ben Cruz", gym.PlanGladiatorPass, today.AddDays(-30)},             // expires today
		{"Carla Lim", gym.PlanAlphaElitePass, today.AddDays(-10)},           // active
		{"Dino Santos", gym.PlanWarriorPass, today.AddMonths(-3)},           // long expired
		{"Ella Garcia", gym.PlanDayPass, today},                             // expires tomorrow
		{"Fred Tan", gym.PlanGladiatorPass, today.AddDays(-40)},             // expired
		{"Gina Uy", gym.PlanAlphaElitePass, today.AddMonths(-3).AddDays(1)}, // expires tomorrow
		{"Hugo Ramos", gym.PlanWarriorPass, today.AddDays(-5)},              // active
	}
	for _, m := range members {
		if _, err := h.Ledger.Writer.EnrollMember(ctx, ledger.EnrollMemberInput{
			Name:          m.name,
			Contact:       "09170000000",
			Plan:          m.plan,
			StartDate:     m.start,
			PaymentMethod: gym.PaymentCash,
		}); err != nil {
			return err
		}
	}
	return nil
}

// loadLegacyDriftScenario plants the kinds of rows the old console left
// behind: entries without back-references, entries whose record is gone,
// and duplicates that cannot be told apart.
func (h *Handler) loadLegacyDriftScenario(ctx context.Context) error {
	if err := h.loadFrontDeskDayScenario(ctx); err != nil {
		return err
	}

	old := h.Clock.Now().UTC().Add(-90 * 24 * time.Hour)
	day := func(s string) generic.TimePoint { return generic.MustParseDate(s) }
	entry := func(source string, amount int64, date, notes string) gym.CashflowEntry {
		return gym.CashflowEntry{
			ID:        h.Store.NewID(),
			Type:      gym.Income,
			Source:    source,
			Amount:    decimal.NewFromInt(amount),
			Date:      day(date),
			Notes:     notes,
			CreatedAt: old,
			UpdatedAt: old,
		}
	}

	b := generic.NewBatch()

	// Member enrolled before entries were linked
	lara := gym.Member{
		ID:             h.Store.NewID(),
		Name:           "Lara Villanueva",
		Contact:        "09181112222",
		MembershipType: gym.PlanAlphaElitePass,
		StartDate:      day("2023-12-01"),
		ExpiryDate:     gym.PlanAlphaElitePass.ExpiryFrom(day("2023-12-01")),
		AmountPaid:     decimal.NewFromInt(2099),
		PaymentMethod:  gym.PaymentCard,
		CreatedAt:      old,
		UpdatedAt:      old,
	}
	b.Set(gym.CollMembers, lara.ID, lara)
	e := entry("Alpha Elite Pass", 2099, "2023-12-01", "Membership - Lara Villanueva")
	b.Set(gym.CollCashflow, e.ID, e)

	// Two identical walk-ins with one unlinked entry each: each entry
	// matches both walk-ins
	for i := 0; i < 2; i++ {
		wi := gym.WalkIn{
			ID: h.Store.NewID(), Name: "Guest", Date: day("2023-12-03"),
			Amount: decimal.NewFromInt(100), PaymentMethod: gym.PaymentCash, CreatedAt: old,
		}
		b.Set(gym.CollWalkIns, wi.ID, wi)
		e := entry(gym.SourceWalkIn, 100, "2023-12-03", "")
		b.Set(gym.CollCashflow, e.ID, e)
	}

	// Orphan: linked to a sale deleted by hand in the database console
	orphan := entry(gym.SourceSale, 300, "2023-12-05", "Sale - Walk-in Customer")
	orphan.LinkedID = h.Store.NewID()
	orphan.LinkedType = gym.LinkedSale
	orphan.AutoGenerated = true
	b.Set(gym.CollCashflow, orphan.ID, orphan)

	// Unlinked sale entry whose sale no longer exists
	stray := entry(gym.SourceSale, 75, "2023-12-06", "Sale - Nobody")
	b.Set(gym.CollCashflow, stray.ID, stray)

	return h.Store.Commit(ctx, b)
}
