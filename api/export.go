package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// EXPORT - CSV and XLSX downloads
// =============================================================================

// table is a header row plus data rows, shared by both formats.
type table struct {
	Header []string
	Rows   [][]string
}

type exporter func(ctx context.Context, h *Handler, p generic.Period) (table, error)

var exporters = map[string]exporter{
	"members":   exportMembers,
	"walkins":   exportWalkIns,
	"sales":     exportSales,
	"cashflow":  exportCashflow,
	"inventory": exportInventory,
	"renewals":  exportRenewals,
}

// Export serves GET /api/export/{file}, where file is "<collection>.csv" or
// "<collection>.xlsx". Date-bearing collections honor ?from= and ?to=.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	name := strings.TrimSuffix(file, ext)

	export, ok := exporters[name]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown export "+name, nil)
		return
	}
	if ext != ".csv" && ext != ".xlsx" {
		writeError(w, http.StatusBadRequest, "Unsupported format (use .csv or .xlsx)", nil)
		return
	}
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	t, err := export(r.Context(), h, period)
	if err != nil {
		writeLedgerError(w, "Export failed", err)
		return
	}

	filename := fmt.Sprintf("%s-%s%s", name, generic.Today(h.Clock), ext)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if ext == ".csv" {
		w.Header().Set("Content-Type", "text/csv")
		err = writeCSV(w, t)
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = writeXLSX(w, name, t)
	}
	if err != nil {
		// Headers are already sent
		log.Printf("[Server] export %s failed: %v", file, err)
	}
}

func writeCSV(w http.ResponseWriter, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeXLSX(w http.ResponseWriter, sheet string, t table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// -----------------------------------------------------------------------------
// Collections
// -----------------------------------------------------------------------------

func exportMembers(ctx context.Context, h *Handler, _ generic.Period) (table, error) {
	now := h.Clock.Now()
	members, err := h.Repo.Members(ctx, gym.MemberFilter{}, now)
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"ID", "Name", "Contact", "Email", "Membership", "Start", "Expiry", "Status", "Amount Paid", "Payment Method"}}
	for _, m := range members {
		t.Rows = append(t.Rows, []string{
			m.ID, m.Name, m.Contact, m.Email, m.MembershipType.Label(),
			m.StartDate.String(), m.ExpiryDate.String(), string(m.Status(now)),
			m.AmountPaid.StringFixed(2), string(m.PaymentMethod),
		})
	}
	return t, nil
}

func exportWalkIns(ctx context.Context, h *Handler, p generic.Period) (table, error) {
	walkIns, err := h.Repo.WalkIns(ctx, p)
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"ID", "Name", "Date", "Amount", "Payment Method"}}
	for _, wi := range walkIns {
		t.Rows = append(t.Rows, []string{wi.ID, wi.Name, wi.Date.String(), wi.Amount.StringFixed(2), string(wi.PaymentMethod)})
	}
	return t, nil
}

// exportSales writes one row per sale line.
func exportSales(ctx context.Context, h *Handler, p generic.Period) (table, error) {
	sales, err := h.Repo.Sales(ctx, p)
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"Sale ID", "Date", "Customer", "Payment Method", "Product", "Price", "Quantity", "Subtotal", "Sale Total"}}
	for _, s := range sales {
		for _, it := range s.Items {
			t.Rows = append(t.Rows, []string{
				s.ID, s.Date.String(), s.CustomerName, string(s.PaymentMethod),
				it.ProductName, it.Price.StringFixed(2), strconv.Itoa(it.Quantity),
				it.Subtotal.StringFixed(2), s.TotalAmount.StringFixed(2),
			})
		}
	}
	return t, nil
}

func exportCashflow(ctx context.Context, h *Handler, p generic.Period) (table, error) {
	entries, err := h.Repo.Entries(ctx, gym.EntryFilter{Period: p})
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"ID", "Date", "Type", "Source", "Amount", "Notes", "Linked Type", "Linked ID", "Created By"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.ID, e.Date.String(), string(e.Type), e.Source, e.Amount.StringFixed(2),
			e.Notes, string(e.LinkedType), e.LinkedID, e.CreatedBy,
		})
	}
	return t, nil
}

func exportInventory(ctx context.Context, h *Handler, _ generic.Period) (table, error) {
	items, err := h.Repo.Items(ctx)
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"ID", "Product", "Price", "Stock", "Updated"}}
	for _, it := range items {
		t.Rows = append(t.Rows, []string{it.ID, it.ProductName, it.Price.StringFixed(2), strconv.Itoa(it.Stock), it.UpdatedAt.Format(time.RFC3339)})
	}
	return t, nil
}

func exportRenewals(ctx context.Context, h *Handler, p generic.Period) (table, error) {
	payments, err := h.Repo.Renewals(ctx, p)
	if err != nil {
		return table{}, err
	}
	t := table{Header: []string{"ID", "Member ID", "Member", "Membership", "Payment Date", "Amount", "Payment Method", "Previous Expiry", "New Expiry", "Notes"}}
	for _, rp := range payments {
		t.Rows = append(t.Rows, []string{
			rp.ID, rp.MemberID, rp.MemberName, rp.MembershipType.Label(), rp.PaymentDate.String(),
			rp.Amount.StringFixed(2), string(rp.PaymentMethod), rp.PreviousExpiryDate.String(),
			rp.NewExpiryDate.String(), rp.Notes,
		})
	}
	return t, nil
}
