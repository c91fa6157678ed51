package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/generic"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/ledger"
)

// =============================================================================
// TEST DATA
// =============================================================================

func linkedEntry(id string, kind gym.LinkedType, linkedID, source string, amount int64, day string) gym.CashflowEntry {
	e := legacyEntry(id, source, amount, day, "")
	e.LinkedID = linkedID
	e.LinkedType = kind
	e.AutoGenerated = true
	return e
}

func legacyWalkIn(id, name string, amount int64, day string) gym.WalkIn {
	return gym.WalkIn{
		ID:            id,
		Name:          name,
		Date:          date(day),
		Amount:        money(amount),
		PaymentMethod: gym.PaymentCash,
		CreatedAt:     jan1,
	}
}

// seedDrift builds a store with every kind of drift the scanner repairs.
func seedDrift(t *testing.T, f *fixture) {
	t.Helper()

	// Healthy data written through the ledger
	f.enroll(t, "Healthy", gym.PlanWarriorPass, "2024-01-01", 799)

	// Orphan: linked to a member that no longer exists
	f.put(t, gym.CollCashflow, "e-orphan", linkedEntry("e-orphan", gym.LinkedMember, "m-gone", "Warrior Pass", 799, "2023-11-01"))

	// Unlinked entry for a legacy member
	f.put(t, gym.CollMembers, "m-legacy", legacyMember("m-legacy", "Lara", gym.PlanAlphaElitePass, "2023-12-01", 2099))
	f.put(t, gym.CollCashflow, "e-lara", legacyEntry("e-lara", "Alpha Elite Pass", 2099, "2023-12-01", "Membership - Lara"))

	// Unlinked entry matching nothing
	f.put(t, gym.CollCashflow, "e-stray", legacyEntry("e-stray", "Product Sale", 75, "2023-12-02", "Sale - Nobody"))

	// Unlinked Day Pass entry belonging to a legacy walk-in
	f.put(t, gym.CollWalkIns, "w-legacy", legacyWalkIn("w-legacy", "Guest", 100, "2023-12-03"))
	f.put(t, gym.CollCashflow, "e-walkin", legacyEntry("e-walkin", "Day Pass", 100, "2023-12-03", "Walk-in - Guest"))
}

// =============================================================================
// SINGLE KIND
// =============================================================================

func TestScanner_DeletesOrphan(t *testing.T) {
	// GIVEN: An entry linked to a deleted member
	f := newFixture(t)
	f.put(t, gym.CollCashflow, "e-orphan", linkedEntry("e-orphan", gym.LinkedMember, "m-gone", "Warrior Pass", 799, "2023-11-01"))

	// WHEN: Scanning members
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedMember)
	require.NoError(t, err)

	// THEN: The orphan is deleted
	assert.Equal(t, 1, rep.DeletedOrphans)
	require.Len(t, rep.Actions, 1)
	assert.Equal(t, ledger.ActionDeletedOrphan, rep.Actions[0].Action)
	assert.Equal(t, 0, f.count(t, gym.CollCashflow))
}

func TestScanner_RelinksUnlinkedEntry(t *testing.T) {
	for name, f := range map[string]*fixture{"memory": newFixture(t), "sqlite": newSQLiteFixture(t)} {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A legacy member and its unlinked entry
			f.put(t, gym.CollMembers, "m-legacy", legacyMember("m-legacy", "Lara", gym.PlanAlphaElitePass, "2023-12-01", 2099))
			f.put(t, gym.CollCashflow, "e-lara", legacyEntry("e-lara", "Alpha Elite Pass", 2099, "2023-12-01", "Membership - Lara"))

			// WHEN: Scanning members
			rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedMember)
			require.NoError(t, err)

			// THEN: The entry now points at the member
			assert.Equal(t, 1, rep.Relinked)
			assert.Equal(t, 0, rep.DeletedOrphans)
			e, err := f.repo.Entry(context.Background(), "e-lara")
			require.NoError(t, err)
			assert.Equal(t, "m-legacy", e.LinkedID)
			assert.Equal(t, gym.LinkedMember, e.LinkedType)
		})
	}
}

func TestScanner_DeletesUnmatchedEntry(t *testing.T) {
	// GIVEN: An unlinked sale entry that no sale explains
	f := newFixture(t)
	f.put(t, gym.CollCashflow, "e-stray", legacyEntry("e-stray", "Product Sale", 75, "2023-12-02", ""))

	// WHEN: Scanning sales
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedSale)
	require.NoError(t, err)

	// THEN: It is deleted
	assert.Equal(t, 1, rep.DeletedOrphans)
	assert.Equal(t, ledger.ActionDeletedUnmatched, rep.Actions[0].Action)
	assert.Equal(t, 0, f.count(t, gym.CollCashflow))
}

func TestScanner_SharedSourceIsSkipped(t *testing.T) {
	// GIVEN: An unlinked "Day Pass" entry that belongs to a walk-in
	f := newFixture(t)
	f.put(t, gym.CollWalkIns, "w-1", legacyWalkIn("w-1", "Guest", 100, "2023-12-03"))
	f.put(t, gym.CollCashflow, "e-walkin", legacyEntry("e-walkin", "Day Pass", 100, "2023-12-03", "Walk-in - Guest"))

	// WHEN: Scanning members first
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedMember)
	require.NoError(t, err)

	// THEN: The member scan leaves it for the walk-in scan
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 0, rep.DeletedOrphans)

	// WHEN: Scanning walk-ins
	rep, err = f.ledger.Scanner.Scan(f.ctx, gym.LinkedWalkIn)
	require.NoError(t, err)

	// THEN: It is relinked to the walk-in
	assert.Equal(t, 1, rep.Relinked)
	e, err := f.repo.Entry(context.Background(), "e-walkin")
	require.NoError(t, err)
	assert.Equal(t, "w-1", e.LinkedID)
}

func TestScanner_AmbiguousIsLeftAlone(t *testing.T) {
	// GIVEN: Two identical legacy walk-ins and one unlinked entry
	f := newFixture(t)
	f.put(t, gym.CollWalkIns, "w-1", legacyWalkIn("w-1", "Guest", 100, "2023-12-03"))
	f.put(t, gym.CollWalkIns, "w-2", legacyWalkIn("w-2", "Guest", 100, "2023-12-03"))
	f.put(t, gym.CollCashflow, "e-1", legacyEntry("e-1", "Day Pass", 100, "2023-12-03", "Walk-in - Guest"))

	// WHEN: Scanning walk-ins
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedWalkIn)
	require.NoError(t, err)

	// THEN: Reported as ambiguous, nothing changed
	assert.Equal(t, 1, rep.Ambiguous)
	assert.Equal(t, 0, rep.Relinked)
	assert.Equal(t, 0, rep.DeletedOrphans)
	require.Len(t, rep.Actions, 1)
	assert.ElementsMatch(t, []string{"w-1", "w-2"}, rep.Actions[0].Candidates)
	e, err := f.repo.Entry(context.Background(), "e-1")
	require.NoError(t, err)
	assert.False(t, e.IsLinked())
}

func TestScanner_ClaimedRecordsAreNotOffered(t *testing.T) {
	// GIVEN: A healthy member and a duplicate unlinked entry of the same payment
	f := newFixture(t)
	m := f.enroll(t, "Ana", gym.PlanWarriorPass, "2024-01-01", 799)
	f.put(t, gym.CollCashflow, "e-dup", legacyEntry("e-dup", "Warrior Pass", 799, "2024-01-01", "Membership - Ana"))

	// WHEN: Scanning members
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedMember)
	require.NoError(t, err)

	// THEN: The duplicate is removed, the linked entry kept
	assert.Equal(t, 0, rep.Relinked)
	assert.Equal(t, 1, rep.DeletedOrphans)
	assert.Len(t, f.linked(t, m.ID), 1)
	assert.Equal(t, 1, f.count(t, gym.CollCashflow))
}

func TestScanner_ManualEntriesAreIgnored(t *testing.T) {
	// GIVEN: A manual income entry using a sale source
	f := newFixture(t)
	_, err := f.ledger.Cashflow.RecordEntry(f.ctx, ledger.EntryInput{
		Type: gym.Income, Source: gym.SourceSale, Amount: money(300), Notes: "bulk order, cash",
	})
	require.NoError(t, err)

	// WHEN: Scanning sales
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedSale)
	require.NoError(t, err)

	// THEN: Untouched
	assert.Equal(t, 0, rep.Scanned)
	assert.Equal(t, 1, f.count(t, gym.CollCashflow))
}

func TestScanner_RelinksRenewal(t *testing.T) {
	// GIVEN: A member with a legacy renewal payment and its unlinked entry
	f := newFixture(t)
	m := f.enroll(t, "Rico", gym.PlanWarriorPass, "2023-11-01", 799)
	f.put(t, gym.CollRenewals, "r-1", gym.RenewalPayment{
		ID: "r-1", MemberID: m.ID, MemberName: "Rico", MembershipType: gym.PlanWarriorPass,
		Amount: money(799), PaymentMethod: gym.PaymentCash, PaymentDate: date("2023-12-01"),
		RenewalPeriod: "1 month", PreviousExpiryDate: date("2023-12-01"), NewExpiryDate: date("2024-01-01"),
		CreatedAt: jan1,
	})
	f.put(t, gym.CollCashflow, "e-renew", legacyEntry("e-renew", "Warrior Pass", 799, "2023-12-01", "Renewal - Rico"))

	// WHEN: Scanning members
	rep, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedMember)
	require.NoError(t, err)

	// THEN: The member scan leaves the renewal entry alone
	assert.Equal(t, 1, rep.Skipped)

	// WHEN: Scanning renewals
	rep, err = f.ledger.Scanner.Scan(f.ctx, gym.LinkedRenewal)
	require.NoError(t, err)

	// THEN: Entry points at the member and the payment points at the entry
	assert.Equal(t, 1, rep.Relinked)
	e, err := f.repo.Entry(context.Background(), "e-renew")
	require.NoError(t, err)
	assert.Equal(t, m.ID, e.LinkedID)
	assert.Equal(t, gym.LinkedRenewal, e.LinkedType)
	payments, err := f.repo.RenewalsForMember(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "e-renew", payments[0].CashflowEntryID)
}

func TestScanner_UnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Scanner.Scan(f.ctx, gym.LinkedType("invoice"))

	assert.ErrorIs(t, err, generic.ErrUnknownKind)
}

// =============================================================================
// FULL RUN
// =============================================================================

func TestScanner_ScanAllRepairsDrift(t *testing.T) {
	// GIVEN: Every kind of drift at once
	f := newFixture(t)
	seedDrift(t, f)

	// WHEN: Scanning everything
	reports, err := f.ledger.Scanner.ScanAll(f.ctx)
	require.NoError(t, err)
	require.Len(t, reports, len(gym.LinkedTypes))

	// THEN: Totals add up
	var deleted, relinked int
	for _, r := range reports {
		deleted += r.DeletedOrphans
		relinked += r.Relinked
	}
	assert.Equal(t, 2, deleted, "orphan + stray")
	assert.Equal(t, 2, relinked, "lara + walk-in")

	// AND: Every remaining entry is linked
	for _, e := range f.entries(t) {
		assert.True(t, e.IsLinked(), "entry %s should be linked", e.ID)
	}

	// AND: One run per kind is recorded
	runs, err := f.repo.CleanupRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, len(gym.LinkedTypes))
	assert.Equal(t, "front@gym.test", runs[0].Operator)
}

func TestScanner_Idempotent(t *testing.T) {
	for name, f := range map[string]*fixture{"memory": newFixture(t), "sqlite": newSQLiteFixture(t)} {
		t.Run(name, func(t *testing.T) {
			// GIVEN: Drifted data, scanned once
			seedDrift(t, f)
			_, err := f.ledger.Scanner.ScanAll(f.ctx)
			require.NoError(t, err)
			after := f.entries(t)

			// WHEN: Scanning again with no writes in between
			reports, err := f.ledger.Scanner.ScanAll(f.ctx)
			require.NoError(t, err)

			// THEN: Nothing else is deleted or relinked
			for _, r := range reports {
				assert.Equal(t, 0, r.DeletedOrphans, "%s", r.Kind)
				assert.Equal(t, 0, r.Relinked, "%s", r.Kind)
			}
			assert.Equal(t, len(after), len(f.entries(t)))
		})
	}
}
